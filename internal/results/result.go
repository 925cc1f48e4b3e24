// Package results persists analysis outcomes and the users they belong to.
package results

import (
	"time"

	"github.com/google/uuid"
)

// Result is a persisted analysis. It is never updated after insert.
type Result struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Query         string    `json:"query"`
	Analysis      string    `json:"analysis"`
	FileProcessed *string   `json:"file_processed"`
	CreatedAt     time.Time `json:"created_at"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
}

// User owns results. Email and username are each unique.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact identifies the user a result is saved for.
type Contact struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// PersistCommand carries one finished run to the sink. RunID is the idempotency key.
type PersistCommand struct {
	RunID     uuid.UUID
	Query     string
	Narrative string
	FileName  string
	Contact   Contact
}
