package journal

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes journal records older than the retention period.
type Pruner struct {
	journal   Journal
	retention time.Duration
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(j Journal, retention time.Duration) *Pruner {
	return &Pruner{
		journal:   j,
		retention: retention,
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, clamped to [1m, 1h]
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs a single pass and returns the number of deleted records.
func (p *Pruner) Prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.retention)

	n, err := p.journal.Prune(ctx, threshold)
	if err != nil {
		slog.Error("Failed to prune journal", "before", threshold, "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Pruned journal", "deleted", n, "before", threshold)
	}
	return n
}
