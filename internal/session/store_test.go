package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/persist"
)

func sampleRecord() domain.SessionRecord {
	return domain.SessionRecord{
		AccountID:    "76561198000000000",
		AccountName:  "trader",
		RefreshToken: "refresh-token",
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "session.json")
	s := NewFileStore(path)

	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !s.Has(ctx) {
		t.Fatal("expected session to exist")
	}

	rec, ok := s.Load(ctx)
	if !ok {
		t.Fatal("expected session to load")
	}
	if rec.AccountID != "76561198000000000" || rec.AccountName != "trader" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.RefreshToken != "refresh-token" {
		t.Errorf("expected token to round trip")
	}
	if rec.SavedAt.IsZero() {
		t.Error("expected SavedAt to be stamped")
	}
}

func TestSavePermissions(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "session.json")

	if err := NewFileStore(path).Save(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600, got %o", fi.Mode().Perm())
	}
	di, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if di.Mode().Perm() != 0o700 {
		t.Errorf("expected 0700, got %o", di.Mode().Perm())
	}
}

func TestSaveFailureIsSessionError(t *testing.T) {
	backend := persist.NewMemoryStore()
	backend.FailReplace = errors.New("read-only filesystem")

	err := New(backend).Save(context.Background(), sampleRecord())
	var se *steamerr.SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
}

func TestLoadInvalidRecordsAreDeleted(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "not json at all"},
		{"missing account id", `{"accountName":"trader","savedAt":"2026-01-01T00:00:00Z"}`},
		{"empty account name", `{"accountId":"1","accountName":"","savedAt":"2026-01-01T00:00:00Z"}`},
		{"missing savedAt", `{"accountId":"1","accountName":"trader"}`},
		{"wrong field type", `{"accountId":1,"accountName":"trader","savedAt":"2026-01-01T00:00:00Z"}`},
		{"expired", `{"accountId":"1","accountName":"trader","expiresAt":"2020-01-01T00:00:00Z","savedAt":"2019-12-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := persist.NewMemoryStoreWith([]byte(tt.content))
			s := New(backend)

			rec, ok := s.Load(context.Background())
			if ok || rec != nil {
				t.Fatalf("expected no session, got %+v", rec)
			}
			if backend.Exists() {
				t.Error("expected invalid session to be deleted")
			}
		})
	}
}

func TestLoadExpiredFileIsDeleted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path)

	past := time.Now().Add(-time.Hour)
	rec := sampleRecord()
	rec.ExpiresAt = &past
	if err := s.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Load(ctx); ok {
		t.Fatal("expected expired session to load as none")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected session file to be deleted, stat err = %v", err)
	}
}

func TestLoadFutureExpiry(t *testing.T) {
	ctx := context.Background()
	s := New(persist.NewMemoryStore())

	future := time.Now().Add(24 * time.Hour)
	rec := sampleRecord()
	rec.ExpiresAt = &future
	if err := s.Save(ctx, rec); err != nil {
		t.Fatal(err)
	}

	loaded, ok := s.Load(ctx)
	if !ok {
		t.Fatal("expected session with future expiry to load")
	}
	if loaded.ExpiresAt == nil || !loaded.ExpiresAt.Equal(future) {
		t.Errorf("expected expiry to round trip, got %v", loaded.ExpiresAt)
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "none.json"))
	if _, ok := s.Load(context.Background()); ok {
		t.Error("expected no session")
	}
	if s.Has(context.Background()) {
		t.Error("expected Has to be false")
	}
}

func TestClearIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	if err := s.Clear(ctx); err != nil {
		t.Errorf("clearing absent session should succeed: %v", err)
	}
	if err := s.Save(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second clear should succeed: %v", err)
	}
	if s.Has(ctx) {
		t.Error("expected session to be gone")
	}
}
