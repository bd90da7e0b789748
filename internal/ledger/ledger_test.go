package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/persist"
)

// =============================================================================
// Helpers
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func readRecord(t *testing.T, store persist.Store) domain.VolumeRecord {
	t.Helper()
	data, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	var rec domain.VolumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	return rec
}

// =============================================================================
// Tests
// =============================================================================

func TestIncrementUpToCeiling(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()
	l := New(store, Config{DailyLimit: 5, MonthlyLimit: 20})

	for i := 0; i < 5; i++ {
		if err := l.Increment(ctx); err != nil {
			t.Fatalf("increment %d failed: %v", i+1, err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Daily.Count != 5 || stats.Daily.Limit != 5 {
		t.Errorf("expected daily 5/5, got %d/%d", stats.Daily.Count, stats.Daily.Limit)
	}
	if stats.Monthly.Count != 5 || stats.Monthly.Limit != 20 {
		t.Errorf("expected monthly 5/20, got %d/%d", stats.Monthly.Count, stats.Monthly.Limit)
	}

	err = l.Increment(ctx)
	var rl *steamerr.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.CurrentDaily != 5 || rl.DailyLimit != 5 || rl.CurrentMonthly != 5 || rl.MonthlyLimit != 20 {
		t.Errorf("unexpected error detail: %+v", rl)
	}

	// Failed increment leaves counts unchanged
	stats, _ = l.Stats(ctx)
	if stats.Daily.Count != 5 || stats.Monthly.Count != 5 {
		t.Errorf("failed increment changed counts: %+v", stats)
	}

	exceeded, err := l.CheckExceeded(ctx)
	if err != nil || !exceeded {
		t.Errorf("expected exceeded=true, got %v (err %v)", exceeded, err)
	}
}

func TestMonthlyCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	l := New(persist.NewMemoryStore(), Config{DailyLimit: 2, MonthlyLimit: 3}, WithClock(clock.Now))

	for day := 1; day <= 2; day++ {
		clock.Set(time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC))
		for i := 0; i < 2 && (day-1)*2+i < 3; i++ {
			if err := l.Increment(ctx); err != nil {
				t.Fatalf("day %d increment %d: %v", day, i, err)
			}
		}
	}

	// daily window has headroom (1/2) but monthly is full (3/3)
	err := l.Increment(ctx)
	var rl *steamerr.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected monthly RateLimitError, got %v", err)
	}
	if rl.CurrentMonthly != 3 || rl.CurrentDaily != 1 {
		t.Errorf("unexpected counts: %+v", rl)
	}
}

func TestRotationAcrossBoundaries(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()
	clock := newFakeClock(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC))
	l := New(store, Config{DailyLimit: 10, MonthlyLimit: 100}, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if err := l.Increment(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// Midnight and month boundary in a long-lived process
	clock.Set(time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC))
	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Daily.Count != 0 || stats.Daily.Key != "2026-02-01" {
		t.Errorf("daily not rotated: %+v", stats.Daily)
	}
	if stats.Monthly.Count != 0 || stats.Monthly.Key != "2026-02" {
		t.Errorf("monthly not rotated: %+v", stats.Monthly)
	}

	rec := readRecord(t, store)
	if rec.Daily.Date != "2026-02-01" || rec.Monthly.Month != "2026-02" {
		t.Errorf("rotation not persisted: %+v", rec)
	}

	// Day boundary only: monthly survives
	if err := l.Increment(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC))
	stats, _ = l.Stats(ctx)
	if stats.Daily.Count != 0 {
		t.Errorf("expected daily reset, got %d", stats.Daily.Count)
	}
	if stats.Monthly.Count != 1 {
		t.Errorf("expected monthly to keep 1, got %d", stats.Monthly.Count)
	}
}

func TestRotationIdempotentWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()
	clock := newFakeClock(time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	l := New(store, Config{}, WithClock(clock.Now))

	if _, err := l.CheckExceeded(ctx); err != nil {
		t.Fatal(err)
	}
	before := readRecord(t, store)
	writes := store.Replaces()

	clock.Set(time.Date(2026, 5, 10, 18, 30, 0, 0, time.UTC))
	if _, err := l.CheckExceeded(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Stats(ctx); err != nil {
		t.Fatal(err)
	}

	after := readRecord(t, store)
	if before.Daily.Date != after.Daily.Date || before.Monthly.Month != after.Monthly.Month {
		t.Errorf("keys changed within the same window: %+v -> %+v", before, after)
	}
	if store.Replaces() != writes {
		t.Errorf("checks within the same window must not rewrite the record")
	}
}

func TestCorruptedStateStartsFresh(t *testing.T) {
	ctx := context.Background()

	cases := map[string]string{
		"not json":        "{{{",
		"missing keys":    `{"daily":{"count":3},"monthly":{"count":4}}`,
		"wrong structure": `[1,2,3]`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store := persist.NewMemoryStoreWith([]byte(content))
			l := New(store, Config{DailyLimit: 5, MonthlyLimit: 20})

			stats, err := l.Stats(ctx)
			if err != nil {
				t.Fatalf("corrupted state must not be fatal: %v", err)
			}
			if stats.Daily.Count != 0 || stats.Monthly.Count != 0 {
				t.Errorf("expected fresh counters, got %+v", stats)
			}
			if !readRecord(t, store).Valid() {
				t.Error("expected a valid record to be written back")
			}
		})
	}
}

func TestIncrementSurfacesWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()
	l := New(store, Config{DailyLimit: 5, MonthlyLimit: 20})

	if err := l.Increment(ctx); err != nil {
		t.Fatal(err)
	}

	diskFull := errors.New("disk full")
	store.FailReplace = diskFull
	if err := l.Increment(ctx); !errors.Is(err, diskFull) {
		t.Fatalf("expected write failure to surface, got %v", err)
	}

	store.FailReplace = nil
	stats, _ := l.Stats(ctx)
	if stats.Daily.Count != 1 {
		t.Errorf("expected persisted count 1, got %d", stats.Daily.Count)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	l := New(persist.NewMemoryStore(), Config{DailyLimit: 2, MonthlyLimit: 2})

	_ = l.Increment(ctx)
	_ = l.Increment(ctx)
	if exceeded, _ := l.CheckExceeded(ctx); !exceeded {
		t.Fatal("expected exceeded before reset")
	}

	if err := l.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ := l.Stats(ctx)
	if stats.Daily.Count != 0 || stats.Monthly.Count != 0 {
		t.Errorf("expected zero counters, got %+v", stats)
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "volume.json")
	newStore := func() persist.Store {
		return persist.NewFileStore(path, persist.SharedFileMode, persist.SharedDirMode)
	}

	first := New(newStore(), Config{DailyLimit: 3, MonthlyLimit: 10})
	for i := 0; i < 3; i++ {
		if err := first.Increment(ctx); err != nil {
			t.Fatal(err)
		}
	}

	// A restarted process sees the same counts
	second := New(newStore(), Config{DailyLimit: 3, MonthlyLimit: 10})
	exceeded, err := second.CheckExceeded(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !exceeded {
		t.Error("expected counts to survive a restart")
	}
}

func TestDefaults(t *testing.T) {
	l := New(persist.NewMemoryStore(), Config{})
	if l.Limits().DailyLimit != DefaultDailyLimit || l.Limits().MonthlyLimit != DefaultMonthlyLimit {
		t.Errorf("unexpected defaults: %+v", l.Limits())
	}
}
