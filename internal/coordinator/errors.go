package coordinator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConnected      = errors.New("not connected to game coordinator")
	ErrConnectionTimeout = errors.New("game coordinator connection timed out")
	ErrTradeUpTimeout    = errors.New("trade-up timed out")
	ErrInvalidInput      = errors.New("invalid input")
)

// ValidationError lists every problem found in a request. Violations breaks
// the count and non-empty rules; Duplicates names ids given more than once.
type ValidationError struct {
	Violations []string
	Duplicates []string
}

func (e *ValidationError) Error() string {
	parts := append([]string(nil), e.Violations...)
	if len(e.Duplicates) > 0 {
		parts = append(parts, "duplicate asset ids: "+strings.Join(e.Duplicates, ", "))
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
