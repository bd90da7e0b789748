package domain

import "time"

// AuthPhase is a state of the authentication state machine.
type AuthPhase string

const (
	AuthPhaseIdle              AuthPhase = "idle"
	AuthPhaseCheckingRateLimit AuthPhase = "checking_rate_limit"
	AuthPhaseRestoringSession  AuthPhase = "restoring_session"
	AuthPhaseFullLogin         AuthPhase = "full_login"
	AuthPhaseAuthenticated     AuthPhase = "authenticated"
	AuthPhaseFailed            AuthPhase = "failed"
)

// AuthenticationState is the transient, in-memory view of the platform session.
type AuthenticationState struct {
	Phase           AuthPhase
	IsAuthenticated bool
	AccountID       string
	AccountName     string
	LastAuthTime    *time.Time
	RetryCount      uint
	LastError       error
	// Critical is set when Phase is failed because of a non-retryable protocol error
	// that requires the host to shut down.
	Critical bool
	// Restored is true when the current session came from the session store.
	Restored bool
}

// CoordinatorState is the transient view of the game coordinator channel.
type CoordinatorState struct {
	IsConnected        bool
	LastConnectTime    *time.Time
	LastDisconnectTime *time.Time
	ConnectionAttempts uint
	LastError          error
}
