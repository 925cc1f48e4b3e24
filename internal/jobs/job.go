// Package jobs is a SQL-backed work queue for analysis runs.
// Delivery is at-least-once: a claim holds a lease, and a job whose lease
// expires becomes claimable again until its attempts are exhausted.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is a queued analysis run. ID is the run id.
type Job struct {
	ID             uuid.UUID     `json:"id"`
	Queue          string        `json:"queue"`
	Status         Status        `json:"status"`
	Query          string        `json:"query"`
	FileKey        string        `json:"file_key"`
	FileName       string        `json:"file_name"`
	Email          string        `json:"email"`
	Username       string        `json:"username"`
	Attempts       int           `json:"attempts"`
	Error          *string       `json:"error"`
	ResultID       uuid.NullUUID `json:"result_id"`
	EnqueuedAt     time.Time     `json:"enqueued_at"`
	StartedAt      *time.Time    `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at"`
	LeaseExpiresAt *time.Time    `json:"lease_expires_at"`
}

// Payload is the message carried across the queue boundary.
// FilePath is the artifact storage key, never a host path.
type Payload struct {
	Query    string `json:"query"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
}

// Payload returns the job's queue message.
func (j *Job) Payload() Payload {
	return Payload{
		Query:    j.Query,
		FilePath: j.FileKey,
		FileName: j.FileName,
	}
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EnqueueCommand creates a queued job.
type EnqueueCommand struct {
	ID       uuid.UUID
	Payload  Payload
	Email    string
	Username string
}

// Options configures queue behaviour.
type Options struct {
	Queue             string
	VisibilityTimeout time.Duration
	MaxAttempts       int
}
