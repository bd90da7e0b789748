// Package steamerr normalizes failures from the platform client into a small
// taxonomy and classifies which of them must stop the process.
package steamerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Error codes carried by every taxonomy member.
const (
	CodeRateLimit = "RATE_LIMIT_EXCEEDED"
	CodeSession   = "SESSION_ERROR"
	CodeNetwork   = "NETWORK_ERROR"
	CodeTwoFactor = "2FA_REQUIRED"
)

// AuthError is the generic authentication failure and the base of the taxonomy.
type AuthError struct {
	Message string
	Code    string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError creates a generic authentication error wrapping cause.
func NewAuthError(msg, code string, cause error) *AuthError {
	return &AuthError{Message: msg, Code: code, Err: cause}
}

// RateLimitError is returned before any network activity when the volume
// ledger has no headroom left.
type RateLimitError struct {
	Message        string
	DailyLimit     uint
	MonthlyLimit   uint
	CurrentDaily   uint
	CurrentMonthly uint
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: daily=%d/%d, monthly=%d/%d",
		e.Message, e.CurrentDaily, e.DailyLimit, e.CurrentMonthly, e.MonthlyLimit)
}

// Code returns the taxonomy code.
func (e *RateLimitError) Code() string { return CodeRateLimit }

// ProtocolError carries a platform result code.
type ProtocolError struct {
	Message string
	Result  EResult
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s (EResult %d %s)", e.Message, int(e.Result), e.Result)
}

// Code returns STEAM_ERESULT_<n>.
func (e *ProtocolError) Code() string { return fmt.Sprintf("STEAM_ERESULT_%d", int(e.Result)) }

// Name returns the human-readable result name.
func (e *ProtocolError) Name() string { return e.Result.String() }

// IsCritical reports whether the error requires an immediate, non-retryable shutdown.
func (e *ProtocolError) IsCritical() bool { return e.Result.Critical() }

// NetworkError covers transport failures and per-attempt timeouts.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string { return e.Message }
func (e *NetworkError) Unwrap() error { return e.Err }

// SessionError is a failure of the session store. It is logged, never fatal.
type SessionError struct {
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
func (e *SessionError) Unwrap() error { return e.Err }

// TwoFactorError is returned when the platform asks for a one-time code and
// no shared secret is configured.
type TwoFactorError struct {
	Message string
}

func (e *TwoFactorError) Error() string { return e.Message }

// resultCoder is implemented by collaborator errors that carry a platform result code.
type resultCoder interface {
	EResult() int
}

// Wrap maps an arbitrary collaborator error onto the taxonomy. Errors that
// already belong to it are returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	switch err.(type) {
	case *AuthError, *RateLimitError, *ProtocolError, *NetworkError, *SessionError, *TwoFactorError:
		return err
	}

	var rc resultCoder
	if errors.As(err, &rc) {
		return &ProtocolError{Message: err.Error(), Result: EResult(rc.EResult())}
	}

	if isNetwork(err) {
		return &NetworkError{Message: err.Error(), Err: err}
	}

	return &AuthError{Message: err.Error(), Err: err}
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsCritical reports whether err (or anything it wraps) is a critical protocol error.
func IsCritical(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.IsCritical()
}

// IsRetryable reports whether another login attempt may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		rl *RateLimitError
		tf *TwoFactorError
	)
	if errors.As(err, &rl) || errors.As(err, &tf) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !IsCritical(err)
}

// CodeOf returns the taxonomy code of err, or an empty string.
func CodeOf(err error) string {
	var (
		ae *AuthError
		rl *RateLimitError
		pe *ProtocolError
		ne *NetworkError
		se *SessionError
		tf *TwoFactorError
	)
	switch {
	case errors.As(err, &pe):
		return pe.Code()
	case errors.As(err, &rl):
		return rl.Code()
	case errors.As(err, &tf):
		return CodeTwoFactor
	case errors.As(err, &ne):
		return CodeNetwork
	case errors.As(err, &se):
		return CodeSession
	case errors.As(err, &ae):
		return ae.Code
	}
	return ""
}
