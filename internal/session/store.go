// Package session persists the credential snapshot that lets the bot
// reconnect without a fresh password login.
//
// A stored record may contain long-lived bearer tokens, so the file backend
// is always created owner-only (0600 file, 0700 directory).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/persist"
)

// Store is the session store.
type Store struct {
	backend persist.Store
	now     func() time.Time
	log     *slog.Logger
}

// NewFileStore creates a session store backed by an owner-only file at path.
func NewFileStore(path string) *Store {
	return New(persist.NewFileStore(path, persist.PrivateFileMode, persist.PrivateDirMode))
}

// New creates a session store over any persistence backend.
func New(backend persist.Store) *Store {
	return &Store{
		backend: backend,
		now:     time.Now,
		log:     slog.With("component", "session"),
	}
}

// WithClock overrides the time source used for expiry checks and timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Path returns where the session lives.
func (s *Store) Path() string {
	return s.backend.Location()
}

// Save writes rec, stamping SavedAt with the current time.
func (s *Store) Save(ctx context.Context, rec domain.SessionRecord) error {
	rec.SavedAt = s.now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &steamerr.SessionError{Message: "failed to encode session", Err: err}
	}
	if err := s.backend.Replace(ctx, data); err != nil {
		return &steamerr.SessionError{Message: "failed to save session to " + s.Path(), Err: err}
	}

	s.log.Info("Session saved", "path", s.Path(), "account_id", rec.AccountID, "account", rec.AccountName)
	return nil
}

// storedSession mirrors the file layout with every field optional so that
// structural validation can tell missing fields from empty ones.
type storedSession struct {
	AccountID    *string    `json:"accountId"`
	AccountName  *string    `json:"accountName"`
	RefreshToken string     `json:"refreshToken"`
	AccessToken  string     `json:"accessToken"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	SavedAt      *time.Time `json:"savedAt"`
}

// Load returns the stored session, or false when there is none or the stored
// record cannot be trusted. Unparseable, structurally invalid and expired
// records are deleted. Load never fails: any problem degrades to "no session".
func (s *Store) Load(ctx context.Context) (*domain.SessionRecord, bool) {
	data, err := s.backend.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		s.log.Info("No saved session found")
		return nil, false
	}
	if err != nil {
		s.log.Warn("Failed to load session", "error", err)
		return nil, false
	}

	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		s.discard(ctx, "Invalid JSON in session file")
		return nil, false
	}

	if !valid(stored) {
		s.discard(ctx, "Invalid session data structure")
		return nil, false
	}

	rec := &domain.SessionRecord{
		AccountID:    *stored.AccountID,
		AccountName:  *stored.AccountName,
		RefreshToken: stored.RefreshToken,
		AccessToken:  stored.AccessToken,
		ExpiresAt:    stored.ExpiresAt,
		SavedAt:      *stored.SavedAt,
	}

	if rec.Expired(s.now()) {
		s.discard(ctx, "Session expired")
		return nil, false
	}

	s.log.Info("Session loaded",
		"path", s.Path(),
		"account_id", rec.AccountID,
		"account", rec.AccountName,
		"saved", rec.SavedAt.Format(time.RFC3339))
	return rec, true
}

// Clear removes the stored session. Clearing an absent session succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Remove(ctx); err != nil {
		return &steamerr.SessionError{Message: "failed to clear session from " + s.Path(), Err: err}
	}
	s.log.Info("Session cleared", "path", s.Path())
	return nil
}

// Has reports whether a session record is present, without validating it.
func (s *Store) Has(ctx context.Context) bool {
	_, err := s.backend.Load(ctx)
	return err == nil
}

func (s *Store) discard(ctx context.Context, reason string) {
	s.log.Warn(reason + " - clearing session")
	if err := s.Clear(ctx); err != nil {
		s.log.Warn("Failed to clear invalid session", "error", err)
	}
}

func valid(s storedSession) bool {
	return s.AccountID != nil && *s.AccountID != "" &&
		s.AccountName != nil && *s.AccountName != "" &&
		s.SavedAt != nil && !s.SavedAt.IsZero()
}
