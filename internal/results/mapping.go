package results

import (
	"net/url"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "analysis_results", "r").
	Project("id", "ID").
	Project("user_id", "UserID").
	Project("query", "Query").
	Project("analysis", "Analysis").
	Project("file_processed", "FileProcessed").
	Project("created_at", "CreatedAt").
	Join("", "users", "u", "JOIN", "u.id = r.user_id").
	Project("email", "Email").
	Project("username", "Username")

var userProjection = query.
	NewProjectionMap("", "users", "u").
	Project("id", "ID").
	Project("username", "Username").
	Project("email", "Email").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for result queries.
// Email uses exact matching; FileProcessed uses case-insensitive contains matching.
type Filters struct {
	Email         *string `json:"email,omitempty"`
	FileProcessed *string `json:"file_processed,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Email", f.Email).
		WhereContains("FileProcessed", f.FileProcessed)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if e := values.Get("email"); e != "" {
		f.Email = &e
	}

	if fp := values.Get("file_processed"); fp != "" {
		f.FileProcessed = &fp
	}

	return f
}

func scanResult(s repository.Scanner) (Result, error) {
	var r Result
	err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.Query,
		&r.Analysis,
		&r.FileProcessed,
		&r.CreatedAt,
		&r.Email,
		&r.Username,
	)
	return r, err
}

func scanUser(s repository.Scanner) (User, error) {
	var u User
	err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.CreatedAt,
	)
	return u, err
}
