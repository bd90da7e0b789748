// Package journal keeps an audit trail of login attempts and trade-ups.
// Journal failures are reported to the caller, who logs them; they never
// fail the operation being journaled.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
)

// Drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TradeUpRecord is a journaled trade-up.
type TradeUpRecord struct {
	ID            string
	RunID         string
	Success       bool
	InputAssetIDs []string
	Output        *domain.ItemDescriptor
	Error         string
	At            time.Time
}

// Journal records operations.
type Journal interface {
	RecordAuthAttempt(ctx context.Context, a domain.AuthAttempt) error
	RecordTradeUp(ctx context.Context, result domain.TradeUpResult, tradeErr error) error
	ListTradeUps(ctx context.Context, limit int) ([]TradeUpRecord, error)
	ListAuthAttempts(ctx context.Context, limit int) ([]domain.AuthAttempt, error)
	// Prune deletes records older than before and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver    string        `yaml:"driver"`
	DSN       string        `yaml:"dsn"`
	Retention time.Duration `yaml:"retention"` // 0 keeps everything
}

// Open creates the journal named by cfg.Driver. runID tags every record.
func Open(ctx context.Context, cfg Config, runID string) (Journal, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverSQLite:
		return NewSQLite(cfg.DSN, runID)
	case DriverPostgres:
		return NewPostgres(ctx, PostgresConfig{URL: cfg.DSN}, runID)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

func newTradeUpRecord(runID string, result domain.TradeUpResult, tradeErr error) TradeUpRecord {
	rec := TradeUpRecord{
		ID:            result.ID,
		RunID:         runID,
		Success:       result.Success && tradeErr == nil,
		InputAssetIDs: result.InputAssetIDs,
		Output:        result.OutputItem,
		At:            result.Timestamp.UTC(),
	}
	if tradeErr != nil {
		rec.Error = tradeErr.Error()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	return rec
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuthAttempt(context.Context, domain.AuthAttempt) error { return nil }
func (Nop) RecordTradeUp(context.Context, domain.TradeUpResult, error) error { return nil }
func (Nop) ListTradeUps(context.Context, int) ([]TradeUpRecord, error) { return nil, nil }
func (Nop) ListAuthAttempts(context.Context, int) ([]domain.AuthAttempt, error) { return nil, nil }
func (Nop) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (Nop) Close() error { return nil }
