package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/dbtest"
	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/routes"
)

var pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSystem(t *testing.T, opts jobs.Options) jobs.System {
	t.Helper()
	db := dbtest.SQLite(t)
	return jobs.New(db.Conn, db.Dialect, discardLogger(), pageCfg, opts)
}

func enqueue(t *testing.T, sys jobs.System, q string) *jobs.Job {
	t.Helper()
	id := uuid.New()
	job, err := sys.Enqueue(context.Background(), jobs.EnqueueCommand{
		ID: id,
		Payload: jobs.Payload{
			Query:    q,
			FilePath: id.String() + ".pdf",
			FileName: "report.pdf",
		},
		Email:    "demo@user.com",
		Username: "demo",
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	return job
}

func TestEnqueue(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	job := enqueue(t, sys, "Summarise my Blood Test Report")

	if job.Status != jobs.StatusQueued {
		t.Errorf("Status = %q, want queued", job.Status)
	}
	if job.Queue != "default" {
		t.Errorf("Queue = %q, want default", job.Queue)
	}
	if job.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", job.Attempts)
	}
	if got := job.Payload(); got.FilePath != job.ID.String()+".pdf" || got.FileName != "report.pdf" {
		t.Errorf("Payload() = %+v", got)
	}

	_, err := sys.Enqueue(context.Background(), jobs.EnqueueCommand{
		ID:      job.ID,
		Payload: job.Payload(),
		Email:   "demo@user.com", Username: "demo",
	})
	if !errors.Is(err, jobs.ErrDuplicate) {
		t.Errorf("duplicate Enqueue() error = %v, want ErrDuplicate", err)
	}
}

func TestClaimOrder(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	first := enqueue(t, sys, "first")
	time.Sleep(2 * time.Millisecond)
	second := enqueue(t, sys, "second")

	ctx := context.Background()
	for _, want := range []uuid.UUID{first.ID, second.ID} {
		job, err := sys.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
		if job.ID != want {
			t.Errorf("claimed %s, want %s", job.ID, want)
		}
		if job.Status != jobs.StatusRunning || job.Attempts != 1 {
			t.Errorf("claimed job = %s/%d, want running/1", job.Status, job.Attempts)
		}
		if job.LeaseExpiresAt == nil || job.StartedAt == nil {
			t.Error("claimed job missing lease or start time")
		}
	}

	if _, err := sys.Claim(ctx); !errors.Is(err, jobs.ErrQueueEmpty) {
		t.Errorf("Claim() on drained queue error = %v, want ErrQueueEmpty", err)
	}
}

func TestCompleteAndFail(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	ctx := context.Background()
	enqueue(t, sys, "a")
	enqueue(t, sys, "b")

	ok, _ := sys.Claim(ctx)
	bad, _ := sys.Claim(ctx)

	resultID := uuid.New()
	if err := sys.Complete(ctx, ok, resultID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := sys.Fail(ctx, bad, "analysis failed"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	got, _ := sys.Find(ctx, ok.ID)
	if got.Status != jobs.StatusSucceeded || !got.ResultID.Valid || got.ResultID.UUID != resultID {
		t.Errorf("completed job = %+v", got)
	}
	if !got.Terminal() {
		t.Error("succeeded job not terminal")
	}

	got, _ = sys.Find(ctx, bad.ID)
	if got.Status != jobs.StatusFailed || got.Error == nil || *got.Error != "analysis failed" {
		t.Errorf("failed job = %+v", got)
	}

	// a finished job cannot be finished again
	if err := sys.Complete(ctx, ok, resultID); !errors.Is(err, jobs.ErrLeaseLost) {
		t.Errorf("second Complete() error = %v, want ErrLeaseLost", err)
	}

	missing := &jobs.Job{ID: uuid.New(), Attempts: 1}
	if err := sys.Fail(ctx, missing, "x"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("Fail() unknown job error = %v, want ErrNotFound", err)
	}
}

func TestFailTruncatesCause(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	ctx := context.Background()
	enqueue(t, sys, "a")

	job, err := sys.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if err := sys.Fail(ctx, job, strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	got, _ := sys.Find(ctx, job.ID)
	if got.Error == nil || len(*got.Error) != 2000 || !strings.HasSuffix(*got.Error, "...") {
		t.Errorf("stored error length = %d", len(deref(got.Error)))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	sys := newSystem(t, jobs.Options{VisibilityTimeout: time.Millisecond, MaxAttempts: 3})
	ctx := context.Background()
	enqueue(t, sys, "a")

	stale, err := sys.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	again, err := sys.Claim(ctx)
	if err != nil {
		t.Fatalf("reclaim error = %v", err)
	}
	if again.ID != stale.ID || again.Attempts != 2 {
		t.Errorf("reclaimed %s attempt %d, want %s attempt 2", again.ID, again.Attempts, stale.ID)
	}

	// the stale worker no longer holds the job
	if err := sys.Complete(ctx, stale, uuid.New()); !errors.Is(err, jobs.ErrLeaseLost) {
		t.Errorf("stale Complete() error = %v, want ErrLeaseLost", err)
	}
	if err := sys.Complete(ctx, again, uuid.New()); err != nil {
		t.Errorf("current Complete() error = %v", err)
	}
}

func TestExtendKeepsLease(t *testing.T) {
	sys := newSystem(t, jobs.Options{VisibilityTimeout: 200 * time.Millisecond, MaxAttempts: 3})
	ctx := context.Background()
	enqueue(t, sys, "a")

	held, err := sys.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	// renewed twice, the job outlives its original lease
	for range 2 {
		time.Sleep(120 * time.Millisecond)
		if err := sys.Extend(ctx, held); err != nil {
			t.Fatalf("Extend() error = %v", err)
		}
	}
	if _, err := sys.Claim(ctx); !errors.Is(err, jobs.ErrQueueEmpty) {
		t.Fatalf("Claim() of a renewed job error = %v, want ErrQueueEmpty", err)
	}

	time.Sleep(250 * time.Millisecond)
	again, err := sys.Claim(ctx)
	if err != nil {
		t.Fatalf("reclaim error = %v", err)
	}
	if err := sys.Extend(ctx, held); !errors.Is(err, jobs.ErrLeaseLost) {
		t.Errorf("stale Extend() error = %v, want ErrLeaseLost", err)
	}
	if err := sys.Extend(ctx, again); err != nil {
		t.Errorf("current Extend() error = %v", err)
	}
	if err := sys.Complete(ctx, again, uuid.New()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := sys.Extend(ctx, again); !errors.Is(err, jobs.ErrLeaseLost) {
		t.Errorf("Extend() after completion error = %v, want ErrLeaseLost", err)
	}
}

func TestReapAfterFinalAttempt(t *testing.T) {
	sys := newSystem(t, jobs.Options{VisibilityTimeout: time.Millisecond, MaxAttempts: 1})
	ctx := context.Background()
	job := enqueue(t, sys, "a")

	if _, err := sys.Claim(ctx); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := sys.Claim(ctx); !errors.Is(err, jobs.ErrQueueEmpty) {
		t.Errorf("Claim() past max attempts error = %v, want ErrQueueEmpty", err)
	}

	reaped, err := sys.Reap(ctx)
	if err != nil {
		t.Fatalf("Reap() error = %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != job.ID || reaped[0].FileKey != job.FileKey {
		t.Fatalf("Reap() = %+v, want the exhausted job", reaped)
	}
	if reaped[0].Status != jobs.StatusFailed {
		t.Errorf("reaped status = %q, want failed", reaped[0].Status)
	}

	reaped, _ = sys.Reap(ctx)
	if len(reaped) != 0 {
		t.Errorf("second Reap() = %d jobs, want 0", len(reaped))
	}
}

func TestCancel(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	ctx := context.Background()
	running := enqueue(t, sys, "a")
	time.Sleep(2 * time.Millisecond)
	queued := enqueue(t, sys, "b")

	if claimed, err := sys.Claim(ctx); err != nil || claimed.ID != running.ID {
		t.Fatalf("Claim() = %v, %v", claimed, err)
	}

	got, err := sys.Cancel(ctx, queued.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.Status != jobs.StatusCancelled || got.FinishedAt == nil {
		t.Errorf("cancelled job = %+v", got)
	}

	tests := []struct {
		name string
		id   uuid.UUID
		want error
	}{
		{"running job", running.ID, jobs.ErrNotCancellable},
		{"already cancelled", queued.ID, jobs.ErrNotCancellable},
		{"unknown job", uuid.New(), jobs.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sys.Cancel(ctx, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("Cancel() error = %v, want %v", err, tt.want)
			}
		})
	}

	// a cancelled job is never claimed
	if _, err := sys.Claim(ctx); !errors.Is(err, jobs.ErrQueueEmpty) {
		t.Errorf("Claim() error = %v, want ErrQueueEmpty", err)
	}
}

func TestListFilters(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	ctx := context.Background()
	for _, q := range []string{"iron levels", "cholesterol", "vitamin d"} {
		enqueue(t, sys, q)
	}
	claimed, _ := sys.Claim(ctx)

	status := string(jobs.StatusQueued)
	search := "iron"

	tests := []struct {
		name    string
		page    pagination.PageRequest
		filters jobs.Filters
		want    int
	}{
		{"all", pagination.PageRequest{}, jobs.Filters{}, 3},
		{"queued only", pagination.PageRequest{}, jobs.Filters{Status: &status}, 2},
		{"search query", pagination.PageRequest{Search: &search}, jobs.Filters{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := sys.List(ctx, tt.page, tt.filters)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Data) != tt.want {
				t.Errorf("List() total=%d len=%d, want %d", res.Total, len(res.Data), tt.want)
			}
		})
	}

	running := string(jobs.StatusRunning)
	res, _ := sys.List(ctx, pagination.PageRequest{}, jobs.Filters{Status: &running})
	if len(res.Data) != 1 || res.Data[0].ID != claimed.ID {
		t.Errorf("running filter = %+v", res.Data)
	}
}

type recordingCanceller struct {
	sys jobs.System
	ids []uuid.UUID
}

func (c *recordingCanceller) Cancel(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	c.ids = append(c.ids, id)
	return c.sys.Cancel(ctx, id)
}

func TestHandler(t *testing.T) {
	sys := newSystem(t, jobs.Options{})
	queued := enqueue(t, sys, "a")
	canceller := &recordingCanceller{sys: sys}

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(canceller).Routes())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list", "GET", "/", http.StatusOK},
		{"find", "GET", "/" + queued.ID.String(), http.StatusOK},
		{"find invalid id", "GET", "/not-a-uuid", http.StatusBadRequest},
		{"find unknown", "GET", "/" + uuid.NewString(), http.StatusNotFound},
		{"cancel queued", "DELETE", "/" + queued.ID.String(), http.StatusNoContent},
		{"cancel twice", "DELETE", "/" + queued.ID.String(), http.StatusConflict},
		{"cancel unknown", "DELETE", "/" + uuid.NewString(), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	if len(canceller.ids) != 3 {
		t.Errorf("canceller calls = %d, want 3", len(canceller.ids))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/"+queued.ID.String(), nil))
	var body jobs.Job
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != jobs.StatusCancelled {
		t.Errorf("status = %q, want cancelled", body.Status)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{jobs.ErrNotFound, http.StatusNotFound},
		{jobs.ErrNotCancellable, http.StatusConflict},
		{jobs.ErrDuplicate, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := jobs.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
