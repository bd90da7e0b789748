package domain

import "time"

// Auth attempt outcomes.
const (
	AttemptSuccess  = "success"
	AttemptFailure  = "failure"
	AttemptCritical = "critical"
)

// AuthAttempt is a single full-login attempt as recorded in the journal.
type AuthAttempt struct {
	ID        string    `json:"id" db:"id"`
	Attempt   int       `json:"attempt" db:"attempt"`
	Outcome   string    `json:"outcome" db:"outcome"`
	ErrorCode string    `json:"errorCode,omitempty" db:"error_code"`
	Message   string    `json:"message,omitempty" db:"message"`
	At        time.Time `json:"at" db:"at"`
}
