package jobs

import (
	"net/url"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "analysis_jobs", "j").
	Project("id", "ID").
	Project("queue", "Queue").
	Project("status", "Status").
	Project("query", "Query").
	Project("file_key", "FileKey").
	Project("file_name", "FileName").
	Project("email", "Email").
	Project("username", "Username").
	Project("attempts", "Attempts").
	Project("error", "Error").
	Project("result_id", "ResultID").
	Project("enqueued_at", "EnqueuedAt").
	Project("started_at", "StartedAt").
	Project("finished_at", "FinishedAt").
	Project("lease_expires_at", "LeaseExpiresAt")

// returning lists the columns in scan order, unqualified for RETURNING clauses.
const returning = `id, queue, status, query, file_key, file_name, email, username,
	attempts, error, result_id, enqueued_at, started_at, finished_at, lease_expires_at`

var defaultSort = query.SortField{
	Field:      "EnqueuedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for job queries. All use exact matching.
type Filters struct {
	Status *string `json:"status,omitempty"`
	Email  *string `json:"email,omitempty"`
	Queue  *string `json:"queue,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Email", f.Email).
		WhereEquals("Queue", f.Queue)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if e := values.Get("email"); e != "" {
		f.Email = &e
	}

	if q := values.Get("queue"); q != "" {
		f.Queue = &q
	}

	return f
}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job
	err := s.Scan(
		&j.ID,
		&j.Queue,
		&j.Status,
		&j.Query,
		&j.FileKey,
		&j.FileName,
		&j.Email,
		&j.Username,
		&j.Attempts,
		&j.Error,
		&j.ResultID,
		&j.EnqueuedAt,
		&j.StartedAt,
		&j.FinishedAt,
		&j.LeaseExpiresAt,
	)
	return j, err
}
