package results_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/dbtest"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/routes"
)

var pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSystem(t *testing.T, db *dbtest.DB) results.System {
	t.Helper()
	return results.New(db.Conn, db.Dialect, discardLogger(), pageCfg)
}

var demo = results.Contact{Email: "demo@user.com", Username: "demo"}

func persist(t *testing.T, sys results.System, contact results.Contact, query, file string) *results.Result {
	t.Helper()
	res, err := sys.Persist(context.Background(), results.PersistCommand{
		RunID:     uuid.New(),
		Query:     query,
		Narrative: "## Clinical Nutritionist\n\n" + query,
		FileName:  file,
		Contact:   contact,
	})
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	return res
}

func countRows(t *testing.T, db *dbtest.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func testUserReuse(t *testing.T, db *dbtest.DB) {
	sys := newSystem(t, db)

	first := persist(t, sys, demo, "Summarise my Blood Test Report", "a.pdf")
	second := persist(t, sys, demo, "What about iron?", "b.pdf")

	if first.UserID != second.UserID {
		t.Errorf("user ids differ: %s vs %s", first.UserID, second.UserID)
	}
	if first.ID == second.ID {
		t.Error("distinct runs share a result id")
	}
	if got := countRows(t, db, "users"); got != 1 {
		t.Errorf("users = %d, want 1", got)
	}
	if got := countRows(t, db, "analysis_results"); got != 2 {
		t.Errorf("analysis_results = %d, want 2", got)
	}
}

func TestPersistReusesUser(t *testing.T) {
	testUserReuse(t, dbtest.SQLite(t))
}

func TestPersistIdempotentOnRunID(t *testing.T) {
	db := dbtest.SQLite(t)
	sys := newSystem(t, db)

	cmd := results.PersistCommand{
		RunID:     uuid.New(),
		Query:     "Summarise my Blood Test Report",
		Narrative: "first delivery",
		FileName:  "report.pdf",
		Contact:   demo,
	}

	a, err := sys.Persist(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}

	cmd.Narrative = "redelivery"
	b, err := sys.Persist(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	if a.ID != b.ID || b.Analysis != "first delivery" {
		t.Errorf("redelivery = %+v, want original row", b)
	}
	if got := countRows(t, db, "analysis_results"); got != 1 {
		t.Errorf("analysis_results = %d, want 1", got)
	}
}

func TestPersistContactConflictIsAtomic(t *testing.T) {
	db := dbtest.SQLite(t)
	sys := newSystem(t, db)

	persist(t, sys, demo, "q", "a.pdf")

	_, err := sys.Persist(context.Background(), results.PersistCommand{
		RunID:     uuid.New(),
		Query:     "q",
		Narrative: "n",
		Contact:   results.Contact{Email: "other@user.com", Username: "demo"},
	})
	if !errors.Is(err, results.ErrContactConflict) {
		t.Fatalf("Persist() error = %v, want ErrContactConflict", err)
	}
	if !errors.Is(err, results.ErrPersistence) {
		t.Errorf("error %v not wrapped in ErrPersistence", err)
	}
	if got := countRows(t, db, "analysis_results"); got != 1 {
		t.Errorf("analysis_results = %d, want 1 after rollback", got)
	}
	if got := countRows(t, db, "users"); got != 1 {
		t.Errorf("users = %d, want 1", got)
	}
}

func TestPersistInvalidContact(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))

	_, err := sys.Persist(context.Background(), results.PersistCommand{
		RunID:   uuid.New(),
		Contact: results.Contact{Email: " "},
	})
	if !errors.Is(err, results.ErrInvalidContact) {
		t.Errorf("Persist() error = %v, want ErrInvalidContact", err)
	}
}

func TestPersistConcurrentSameContact(t *testing.T) {
	db := dbtest.SQLite(t)
	sys := newSystem(t, db)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Go(func() {
			res, err := sys.Persist(context.Background(), results.PersistCommand{
				RunID:     uuid.New(),
				Query:     "q",
				Narrative: "n",
				Contact:   demo,
			})
			errs[i] = err
			if err == nil {
				ids[i] = res.UserID
			}
		})
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Persist()[%d] error = %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("user id[%d] = %s, want %s", i, ids[i], ids[0])
		}
	}
}

func TestFind(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))
	saved := persist(t, sys, demo, "iron", "report.pdf")

	got, err := sys.Find(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got.Email != demo.Email || got.Username != demo.Username {
		t.Errorf("Find() contact = %s/%s", got.Email, got.Username)
	}
	if got.FileProcessed == nil || *got.FileProcessed != "report.pdf" {
		t.Errorf("FileProcessed = %v", got.FileProcessed)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}

	if _, err := sys.Find(context.Background(), uuid.New()); !errors.Is(err, results.ErrNotFound) {
		t.Errorf("Find(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFindUser(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))
	persist(t, sys, demo, "q", "")

	u, err := sys.FindUser(context.Background(), demo.Email)
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if u.Username != "demo" {
		t.Errorf("Username = %q", u.Username)
	}

	if _, err := sys.FindUser(context.Background(), "nobody@user.com"); !errors.Is(err, results.ErrUserNotFound) {
		t.Errorf("FindUser(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestList(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))
	other := results.Contact{Email: "other@user.com", Username: "other"}

	persist(t, sys, demo, "ferritin is low", "iron-panel.pdf")
	persist(t, sys, demo, "cholesterol", "lipids.pdf")
	persist(t, sys, other, "ferritin again", "iron-followup.pdf")

	str := func(s string) *string { return &s }

	tests := []struct {
		name    string
		page    pagination.PageRequest
		filters results.Filters
		want    int
	}{
		{"all", pagination.PageRequest{}, results.Filters{}, 3},
		{"by email", pagination.PageRequest{}, results.Filters{Email: str("demo@user.com")}, 2},
		{"by file", pagination.PageRequest{}, results.Filters{FileProcessed: str("IRON")}, 2},
		{"search", pagination.PageRequest{Search: str("ferritin")}, results.Filters{}, 2},
		{"combined", pagination.PageRequest{Search: str("ferritin")}, results.Filters{Email: str("other@user.com")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sys.List(context.Background(), tt.page, tt.filters)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.want || len(got.Data) != tt.want {
				t.Errorf("Total = %d, len = %d, want %d", got.Total, len(got.Data), tt.want)
			}
		})
	}

	page, err := sys.List(context.Background(), pagination.PageRequest{Page: 2, PageSize: 2}, results.Filters{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Data) != 1 || page.TotalPages != 2 {
		t.Errorf("page 2 = %d items of %d pages", len(page.Data), page.TotalPages)
	}
}

func serve(sys results.System) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())
	return mux
}

func TestHandler(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))
	saved := persist(t, sys, demo, "iron", "report.pdf")
	mux := serve(sys)

	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"list", "/", http.StatusOK, `"total":1`},
		{"list filtered", "/?email=nobody@user.com", http.StatusOK, `"total":0`},
		{"find", "/" + saved.ID.String(), http.StatusOK, `"file_processed":"report.pdf"`},
		{"missing", "/" + uuid.NewString(), http.StatusNotFound, `"status":"error"`},
		{"bad id", "/not-a-uuid", http.StatusBadRequest, `"detail":"invalid result id"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if body := rec.Body.String(); !strings.Contains(body, tt.want) {
				t.Errorf("body = %s, want substring %s", body, tt.want)
			}
		})
	}
}

func TestHandlerFindBody(t *testing.T) {
	sys := newSystem(t, dbtest.SQLite(t))
	saved := persist(t, sys, demo, "iron", "report.pdf")

	rec := httptest.NewRecorder()
	serve(sys).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+saved.ID.String(), nil))

	var got results.Result
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != saved.ID || got.Query != "iron" {
		t.Errorf("body = %+v", got)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{results.ErrNotFound, http.StatusNotFound},
		{results.ErrContactConflict, http.StatusConflict},
		{results.ErrInvalidContact, http.StatusBadRequest},
		{results.ErrPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := results.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
