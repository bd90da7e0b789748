// Package ledger tracks authentication attempt volume against persisted
// daily and monthly ceilings.
//
// Every call reads the current record from the store, rotates expired
// windows, mutates and writes the whole record back. Nothing is counted in
// memory only.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/persist"
	"github.com/vietddude/tradeup/internal/metrics"
)

// Default ceilings.
const (
	DefaultDailyLimit   = 10
	DefaultMonthlyLimit = 100
)

// Config holds the ceilings.
type Config struct {
	DailyLimit   uint
	MonthlyLimit uint
}

// WindowStats describes one counting window.
type WindowStats struct {
	Count uint   `json:"count"`
	Limit uint   `json:"limit"`
	Key   string `json:"key"`
}

// Stats is a snapshot of both windows.
type Stats struct {
	Daily   WindowStats `json:"daily"`
	Monthly WindowStats `json:"monthly"`
}

// Exceeded reports whether either window is at or above its ceiling.
func (s Stats) Exceeded() bool {
	return s.Daily.Count >= s.Daily.Limit || s.Monthly.Count >= s.Monthly.Limit
}

// Ledger is the volume ledger.
type Ledger struct {
	store persist.Store
	cfg   Config
	now   func() time.Time
	log   *slog.Logger
	mu    sync.Mutex
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for rotation.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger. Zero ceilings fall back to the defaults.
func New(store persist.Store, cfg Config, opts ...Option) *Ledger {
	if cfg.DailyLimit == 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}
	if cfg.MonthlyLimit == 0 {
		cfg.MonthlyLimit = DefaultMonthlyLimit
	}
	l := &Ledger{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   slog.With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the configured ceilings.
func (l *Ledger) Limits() Config {
	return l.cfg
}

// CheckExceeded reports whether no further attempt is allowed.
func (l *Ledger) CheckExceeded(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.current(ctx)
	if err != nil {
		return false, err
	}

	dailyExceeded := rec.Daily.Count >= l.cfg.DailyLimit
	monthlyExceeded := rec.Monthly.Count >= l.cfg.MonthlyLimit
	if dailyExceeded || monthlyExceeded {
		window := "monthly"
		if dailyExceeded {
			window = "daily"
		}
		l.log.Warn("Rate limit exceeded",
			"window", window,
			"daily", fmt.Sprintf("%d/%d", rec.Daily.Count, l.cfg.DailyLimit),
			"monthly", fmt.Sprintf("%d/%d", rec.Monthly.Count, l.cfg.MonthlyLimit))
	}
	return dailyExceeded || monthlyExceeded, nil
}

// Increment counts one authentication attempt. It fails with a
// *steamerr.RateLimitError, leaving the counts unchanged, when the attempt
// would push either window past its ceiling. The record is persisted before
// Increment returns; a write failure is returned to the caller.
func (l *Ledger) Increment(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.current(ctx)
	if err != nil {
		return err
	}

	if rec.Daily.Count+1 > l.cfg.DailyLimit || rec.Monthly.Count+1 > l.cfg.MonthlyLimit {
		return l.limitError("Authentication rate limit exceeded", rec)
	}

	rec.Daily.Count++
	rec.Monthly.Count++
	if err := l.save(ctx, rec); err != nil {
		return err
	}

	l.log.Info("Auth attempt tracked",
		"daily", fmt.Sprintf("%d/%d", rec.Daily.Count, l.cfg.DailyLimit),
		"monthly", fmt.Sprintf("%d/%d", rec.Monthly.Count, l.cfg.MonthlyLimit))
	l.observe(rec)
	return nil
}

// Stats returns the current counts, ceilings and calendar keys.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.current(ctx)
	if err != nil {
		return Stats{}, err
	}
	return l.stats(rec), nil
}

// ExceededError builds the rate limit error for the current counts.
func (l *Ledger) ExceededError(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.current(ctx)
	if err != nil {
		return err
	}
	return l.limitError("Authentication rate limit exceeded. Please try again later", rec)
}

// Reset zeros both counters unconditionally.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.fresh()
	if err := l.save(ctx, rec); err != nil {
		return err
	}
	l.log.Info("Volume counters reset")
	l.observe(rec)
	return nil
}

// current loads the persisted record and applies rotation. Rotation that
// changes a key is written back so the stored keys always name the window of
// the most recent check.
func (l *Ledger) current(ctx context.Context) (domain.VolumeRecord, error) {
	rec, err := l.load(ctx)
	if err != nil {
		return rec, err
	}
	if l.rotate(&rec) {
		if err := l.save(ctx, rec); err != nil {
			return rec, err
		}
		l.observe(rec)
	}
	return rec, nil
}

func (l *Ledger) load(ctx context.Context) (domain.VolumeRecord, error) {
	data, err := l.store.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		l.log.Info("Initializing with fresh volume data", "location", l.store.Location())
		rec := l.fresh()
		return rec, l.save(ctx, rec)
	}
	if err != nil {
		return domain.VolumeRecord{}, fmt.Errorf("failed to load volume data: %w", err)
	}

	var rec domain.VolumeRecord
	if err := json.Unmarshal(data, &rec); err != nil || !rec.Valid() {
		l.log.Warn("Volume data unreadable, starting fresh", "location", l.store.Location(), "error", err)
		rec = l.fresh()
		return rec, l.save(ctx, rec)
	}
	return rec, nil
}

func (l *Ledger) save(ctx context.Context, rec domain.VolumeRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode volume data: %w", err)
	}
	if err := l.store.Replace(ctx, data); err != nil {
		return fmt.Errorf("failed to persist volume data: %w", err)
	}
	return nil
}

// rotate zeroes any window whose calendar key is stale. Daily and monthly
// windows are independent.
func (l *Ledger) rotate(rec *domain.VolumeRecord) bool {
	now := l.now().UTC()
	date := now.Format(domain.DateLayout)
	month := now.Format(domain.MonthLayout)
	changed := false

	if rec.Daily.Date != date {
		l.log.Info("Rotating daily counter", "from", rec.Daily.Date, "to", date)
		rec.Daily.Date = date
		rec.Daily.Count = 0
		changed = true
	}
	if rec.Monthly.Month != month {
		l.log.Info("Rotating monthly counter", "from", rec.Monthly.Month, "to", month)
		rec.Monthly.Month = month
		rec.Monthly.Count = 0
		changed = true
	}
	return changed
}

func (l *Ledger) fresh() domain.VolumeRecord {
	now := l.now().UTC()
	return domain.VolumeRecord{
		Daily:   domain.DailyVolume{Date: now.Format(domain.DateLayout)},
		Monthly: domain.MonthlyVolume{Month: now.Format(domain.MonthLayout)},
	}
}

func (l *Ledger) stats(rec domain.VolumeRecord) Stats {
	return Stats{
		Daily:   WindowStats{Count: rec.Daily.Count, Limit: l.cfg.DailyLimit, Key: rec.Daily.Date},
		Monthly: WindowStats{Count: rec.Monthly.Count, Limit: l.cfg.MonthlyLimit, Key: rec.Monthly.Month},
	}
}

func (l *Ledger) limitError(msg string, rec domain.VolumeRecord) *steamerr.RateLimitError {
	return &steamerr.RateLimitError{
		Message:        msg,
		DailyLimit:     l.cfg.DailyLimit,
		MonthlyLimit:   l.cfg.MonthlyLimit,
		CurrentDaily:   rec.Daily.Count,
		CurrentMonthly: rec.Monthly.Count,
	}
}

func (l *Ledger) observe(rec domain.VolumeRecord) {
	metrics.LedgerCount.WithLabelValues("daily").Set(float64(rec.Daily.Count))
	metrics.LedgerCount.WithLabelValues("monthly").Set(float64(rec.Monthly.Count))
}
