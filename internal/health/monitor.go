package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/ledger"
)

// DefaultCacheTTL bounds how often components are actually queried.
const DefaultCacheTTL = 10 * time.Second

// AuthStateSource exposes the authentication state.
type AuthStateSource interface {
	State() domain.AuthenticationState
}

// CoordinatorStateSource exposes the coordinator state.
type CoordinatorStateSource interface {
	State() domain.CoordinatorState
}

// VolumeSource exposes the volume ledger counters.
type VolumeSource interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

// Monitor aggregates health status from the bot components.
type Monitor struct {
	runID       string
	auth        AuthStateSource
	coordinator CoordinatorStateSource
	volume      VolumeSource
	cacheTTL    time.Duration
	lastCheck   time.Time
	lastReport  *HealthReport
	mu          sync.Mutex
}

// NewMonitor creates a new health monitor. Any source may be nil.
func NewMonitor(runID string, auth AuthStateSource, coordinator CoordinatorStateSource, volume VolumeSource) *Monitor {
	return &Monitor{
		runID:       runID,
		auth:        auth,
		coordinator: coordinator,
		volume:      volume,
		cacheTTL:    DefaultCacheTTL,
	}
}

// CheckHealth returns the current report, served from cache within the TTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		RunID:        m.runID,
		Components:   make(map[string]ComponentHealth),
	}

	if m.auth != nil {
		report.Components["auth"] = authHealth(m.auth.State())
	}
	if m.coordinator != nil {
		report.Components["coordinator"] = coordinatorHealth(m.coordinator.State())
	}
	if m.volume != nil {
		report.Components["volume"] = volumeHealth(m.volume.Stats(ctx))
	}

	for _, c := range report.Components {
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func authHealth(s domain.AuthenticationState) ComponentHealth {
	h := ComponentHealth{
		Status: StatusHealthy,
		Data: map[string]any{
			"phase":       s.Phase,
			"account":     s.AccountName,
			"restored":    s.Restored,
			"retry_count": s.RetryCount,
		},
	}
	switch {
	case s.Phase == domain.AuthPhaseFailed && s.Critical:
		h.Status = StatusCritical
	case !s.IsAuthenticated:
		h.Status = StatusDegraded
	}
	if s.LastError != nil {
		h.Detail = s.LastError.Error()
	}
	return h
}

func coordinatorHealth(s domain.CoordinatorState) ComponentHealth {
	h := ComponentHealth{
		Status: StatusHealthy,
		Data: map[string]any{
			"connected":           s.IsConnected,
			"connection_attempts": s.ConnectionAttempts,
		},
	}
	if !s.IsConnected {
		h.Status = StatusDegraded
	}
	if s.LastError != nil {
		h.Detail = s.LastError.Error()
	}
	return h
}

func volumeHealth(stats ledger.Stats, err error) ComponentHealth {
	if err != nil {
		return ComponentHealth{Status: StatusDegraded, Detail: err.Error()}
	}
	h := ComponentHealth{
		Status: StatusHealthy,
		Data: map[string]any{
			"daily":   fmt.Sprintf("%d/%d", stats.Daily.Count, stats.Daily.Limit),
			"monthly": fmt.Sprintf("%d/%d", stats.Monthly.Count, stats.Monthly.Limit),
		},
	}
	if stats.Exceeded() {
		h.Status = StatusDegraded
		h.Detail = "authentication volume ceiling reached"
	}
	return h
}
