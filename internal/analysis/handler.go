package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/handlers"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/routes"
)

// formOverhead allows for multipart boundaries and the text fields beside the file.
const formOverhead = 1 << 20

// Service is the subset of Runner the handler drives.
type Service interface {
	Analyze(ctx context.Context, sub Submission) (*Outcome, error)
	Enqueue(ctx context.Context, sub Submission) (*jobs.Job, error)
}

// AnalyzeResponse is the body of an inline analysis. On a persistence
// failure it is returned with status "error", Saved false, and the
// narrative still attached.
type AnalyzeResponse struct {
	Status        string    `json:"status"`
	Detail        string    `json:"detail,omitempty"`
	Query         string    `json:"query"`
	Analysis      string    `json:"analysis"`
	FileProcessed string    `json:"file_processed"`
	RunID         uuid.UUID `json:"run_id"`
	Saved         bool      `json:"saved"`
}

// QueuedResponse is the body returned when a submission is queued.
type QueuedResponse struct {
	Status        string    `json:"status"`
	JobID         uuid.UUID `json:"job_id"`
	Query         string    `json:"query"`
	FileProcessed string    `json:"file_processed"`
}

// Handler provides the analyze endpoints.
type Handler struct {
	svc           Service
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler with the given service, logger, and upload size limit.
func NewHandler(svc Service, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		svc:           svc,
		logger:        logger.With("handler", "analysis"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group for analyze endpoints, relative to the module prefix.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Analyze},
			{Method: "POST", Pattern: "/jobs", Handler: h.Enqueue},
		},
	}
}

// Analyze runs the uploaded report through the pipeline and returns the narrative.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submission(w, r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	outcome, err := h.svc.Analyze(r.Context(), sub)
	if err != nil {
		if outcome != nil && outcome.Narrative != nil && errors.Is(err, results.ErrPersistence) {
			h.logger.Error("analysis not saved", "run_id", outcome.RunID, "error", err)
			handlers.RespondJSON(w, http.StatusInternalServerError, AnalyzeResponse{
				Status:        handlers.StatusError,
				Detail:        err.Error(),
				Query:         outcome.Narrative.Query,
				Analysis:      outcome.Narrative.Text,
				FileProcessed: outcome.Narrative.FileName,
				RunID:         outcome.RunID,
				Saved:         false,
			})
			return
		}
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), fmt.Errorf("error processing blood report: %w", err))
		return
	}

	handlers.RespondJSON(w, http.StatusOK, AnalyzeResponse{
		Status:        "success",
		Query:         outcome.Narrative.Query,
		Analysis:      outcome.Narrative.Text,
		FileProcessed: outcome.Narrative.FileName,
		RunID:         outcome.RunID,
		Saved:         outcome.Saved,
	})
}

// Enqueue stages the uploaded report and queues it for a worker.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	sub, err := h.submission(w, r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	job, err := h.svc.Enqueue(r.Context(), sub)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, QueuedResponse{
		Status:        string(jobs.StatusQueued),
		JobID:         job.ID,
		Query:         job.Query,
		FileProcessed: job.FileName,
	})
}

// submission reads the multipart form: file, query, and optional email and username.
func (h *Handler) submission(w http.ResponseWriter, r *http.Request) (Submission, error) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Submission{}, sizeError(h.maxUploadSize)
		}
		return Submission{}, fmt.Errorf("%w: %w", ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return Submission{}, ErrNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	return Submission{
		Query:    r.FormValue("query"),
		FileName: header.Filename,
		Data:     data,
		Contact: results.Contact{
			Email:    r.FormValue("email"),
			Username: r.FormValue("username"),
		},
	}, nil
}
