package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/persist"
	"github.com/vietddude/tradeup/internal/infra/steam"
	"github.com/vietddude/tradeup/internal/ledger"
	"github.com/vietddude/tradeup/internal/session"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeClient answers each LogOn with the event returned by respond for that
// attempt number. A nil event means no answer.
type fakeClient struct {
	*steam.Bus

	mu      sync.Mutex
	logons  int
	logoffs int
	respond func(attempt int, c *fakeClient) *steam.Event
}

func newFakeClient(respond func(attempt int, c *fakeClient) *steam.Event) *fakeClient {
	return &fakeClient{Bus: steam.NewBus(), respond: respond}
}

func (f *fakeClient) LogOn(steam.LogOnDetails) {
	f.mu.Lock()
	f.logons++
	n := f.logons
	f.mu.Unlock()

	if f.respond == nil {
		return
	}
	if ev := f.respond(n, f); ev != nil {
		go f.Emit(*ev)
	}
}

func (f *fakeClient) LogOff() {
	f.mu.Lock()
	f.logoffs++
	f.mu.Unlock()
	go f.Emit(steam.Event{Name: steam.EventDisconnected, Payload: steam.DisconnectInfo{Message: "logged off"}})
}

func (f *fakeClient) GamesPlayed([]uint32) {}

func (f *fakeClient) counts() (logons, logoffs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logons, f.logoffs
}

func loggedOn() *steam.Event {
	return &steam.Event{Name: steam.EventLoggedOn, Payload: steam.LoggedOnDetails{
		SteamID:      "76561198000000042",
		AccountName:  "trader",
		RefreshToken: "refresh",
	}}
}

func loginError(result int) *steam.Event {
	return &steam.Event{Name: steam.EventError, Payload: &steam.ResultError{Result: result}}
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type memoryRecorder struct {
	mu       sync.Mutex
	attempts []domain.AuthAttempt
}

func (m *memoryRecorder) RecordAuthAttempt(_ context.Context, a domain.AuthAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

type harness struct {
	client   *fakeClient
	ledger   *ledger.Ledger
	sessions *session.Store
	sessMem  *persist.MemoryStore
	sleeper  *recordingSleeper
	recorder *memoryRecorder
	orch     *Orchestrator
}

func newHarness(t *testing.T, client *fakeClient, mutate func(*Config)) *harness {
	t.Helper()

	sessMem := persist.NewMemoryStore()
	h := &harness{
		client:   client,
		ledger:   ledger.New(persist.NewMemoryStore(), ledger.Config{DailyLimit: 10, MonthlyLimit: 100}),
		sessions: session.New(sessMem),
		sessMem:  sessMem,
		sleeper:  &recordingSleeper{},
		recorder: &memoryRecorder{},
	}

	cfg := Config{
		Username:      "trader",
		Password:      "hunter2",
		MaxRetries:    3,
		RetryDelayMin: 30 * time.Second,
		RetryDelayMax: 60 * time.Second,
		LoginTimeout:  time.Second,
		LogoffTimeout: 200 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	orch, err := New(client, h.ledger, h.sessions, cfg,
		WithSleeper(h.sleeper.Sleep),
		WithRand(func() float64 { return 0.5 }),
		WithRecorder(h.recorder),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) dailyCount(t *testing.T) uint {
	t.Helper()
	stats, err := h.ledger.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return stats.Daily.Count
}

// =============================================================================
// Tests
// =============================================================================

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(newFakeClient(nil), nil, nil, Config{Username: "trader"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestFullLoginSucceedsFirstAttempt(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	state := h.orch.State()
	if !state.IsAuthenticated || state.Phase != domain.AuthPhaseAuthenticated {
		t.Errorf("expected authenticated state, got %+v", state)
	}
	if state.AccountID != "76561198000000042" || state.Restored {
		t.Errorf("unexpected state %+v", state)
	}
	if state.RetryCount != 0 {
		t.Errorf("expected retry count reset, got %d", state.RetryCount)
	}
	if got := h.dailyCount(t); got != 1 {
		t.Errorf("expected one ledger increment, got %d", got)
	}
	if !h.sessions.Has(context.Background()) {
		t.Error("expected session to be saved")
	}
	if len(h.sleeper.Delays()) != 0 {
		t.Errorf("expected no delays, got %v", h.sleeper.Delays())
	}
}

func TestRestoredSessionSkipsLedgerAndNetwork(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)

	err := h.sessions.Save(context.Background(), domain.SessionRecord{
		AccountID:    "76561198000000042",
		AccountName:  "trader",
		RefreshToken: "refresh",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	state := h.orch.State()
	if !state.IsAuthenticated || !state.Restored {
		t.Errorf("expected restored session, got %+v", state)
	}
	if logons, _ := client.counts(); logons != 0 {
		t.Errorf("expected no logon, got %d", logons)
	}
	if got := h.dailyCount(t); got != 0 {
		t.Errorf("session restore must not count, got %d", got)
	}
}

func TestRetriesIncrementLedgerOnce(t *testing.T) {
	client := newFakeClient(func(attempt int, _ *fakeClient) *steam.Event {
		if attempt < 3 {
			return loginError(int(steamerr.ResultFail))
		}
		return loggedOn()
	})
	h := newHarness(t, client, nil)

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if logons, _ := client.counts(); logons != 3 {
		t.Errorf("expected 3 logons, got %d", logons)
	}
	if got := h.dailyCount(t); got != 1 {
		t.Errorf("expected exactly one increment, got %d", got)
	}

	delays := h.sleeper.Delays()
	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff delays, got %v", delays)
	}
	for i, d := range delays {
		if d < 30*time.Second || d > 60*time.Second {
			t.Errorf("delay %d out of bounds: %s", i, d)
		}
		if i > 0 && d < delays[i-1] {
			t.Errorf("delays decreased: %v", delays)
		}
	}
	if h.orch.State().RetryCount != 0 {
		t.Errorf("expected retry count reset on success")
	}

	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	if len(h.recorder.attempts) != 3 {
		t.Fatalf("expected 3 journaled attempts, got %d", len(h.recorder.attempts))
	}
	if h.recorder.attempts[0].Outcome != domain.AttemptFailure || h.recorder.attempts[2].Outcome != domain.AttemptSuccess {
		t.Errorf("unexpected outcomes: %+v", h.recorder.attempts)
	}
	if h.recorder.attempts[0].ErrorCode != "STEAM_ERESULT_2" {
		t.Errorf("unexpected error code %q", h.recorder.attempts[0].ErrorCode)
	}
}

func TestCriticalErrorAbortsImmediately(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event {
		return loginError(int(steamerr.ResultBanned))
	})
	h := newHarness(t, client, nil)

	err := h.orch.Authenticate(context.Background())
	if !steamerr.IsCritical(err) {
		t.Fatalf("expected critical error, got %v", err)
	}

	logons, logoffs := client.counts()
	if logons != 1 {
		t.Errorf("expected a single attempt, got %d", logons)
	}
	if logoffs != 1 {
		t.Errorf("expected a clean logoff, got %d", logoffs)
	}
	if len(h.sleeper.Delays()) != 0 {
		t.Errorf("expected no backoff, got %v", h.sleeper.Delays())
	}

	state := h.orch.State()
	if state.Phase != domain.AuthPhaseFailed || !state.Critical {
		t.Errorf("expected Failed(critical), got %+v", state)
	}

	var pe *steamerr.ProtocolError
	if !errors.As(err, &pe) || pe.Name() != "Banned" {
		t.Errorf("expected Banned protocol error, got %v", err)
	}
}

func TestRateLimitPrecedesNetwork(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)
	h.ledger = ledger.New(persist.NewMemoryStore(), ledger.Config{DailyLimit: 1, MonthlyLimit: 100})
	h.orch.ledger = h.ledger

	if err := h.ledger.Increment(context.Background()); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	err := h.orch.Authenticate(context.Background())
	var rl *steamerr.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.CurrentDaily != 1 || rl.DailyLimit != 1 {
		t.Errorf("unexpected counts %+v", rl)
	}
	if logons, _ := client.counts(); logons != 0 {
		t.Errorf("expected no network activity, got %d logons", logons)
	}
	if h.orch.State().Phase != domain.AuthPhaseFailed {
		t.Errorf("expected failed phase")
	}
}

func TestTwoFactorWithoutSecretIsNotRetried(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event {
		return &steam.Event{Name: steam.EventSteamGuard, Payload: steam.GuardChallenge{Respond: func(string) {}}}
	})
	h := newHarness(t, client, nil)

	err := h.orch.Authenticate(context.Background())
	var tf *steamerr.TwoFactorError
	if !errors.As(err, &tf) {
		t.Fatalf("expected TwoFactorError, got %v", err)
	}
	if logons, _ := client.counts(); logons != 1 {
		t.Errorf("expected one attempt, got %d", logons)
	}
	if len(h.sleeper.Delays()) != 0 {
		t.Errorf("expected no retry delay")
	}
}

func TestTwoFactorWithSecretAnswersChallenge(t *testing.T) {
	secret := "MDEyMzQ1Njc4OWFiY2RlZmdoaWo="
	fixed := time.Unix(1700000000, 0)

	var (
		mu   sync.Mutex
		sent []string
	)
	client := newFakeClient(func(_ int, c *fakeClient) *steam.Event {
		return &steam.Event{Name: steam.EventSteamGuard, Payload: steam.GuardChallenge{
			Respond: func(code string) {
				mu.Lock()
				sent = append(sent, code)
				mu.Unlock()
				go c.Emit(*loggedOn())
			},
		}}
	})
	h := newHarness(t, client, func(c *Config) { c.SharedSecret = secret })
	h.orch.now = func() time.Time { return fixed }

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 || sent[0] != "C96G3" {
		t.Errorf("expected code C96G3, got %v", sent)
	}
}

func TestExhaustedRetriesReturnAggregate(t *testing.T) {
	client := newFakeClient(nil)
	h := newHarness(t, client, func(c *Config) { c.LoginTimeout = 20 * time.Millisecond })

	err := h.orch.Authenticate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Authentication failed after 3 attempts") {
		t.Errorf("unexpected message %q", err.Error())
	}

	var ne *steamerr.NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("expected aggregate to wrap the timeout, got %v", err)
	}
	if logons, _ := client.counts(); logons != 3 {
		t.Errorf("expected 3 attempts, got %d", logons)
	}
	if got := h.dailyCount(t); got != 1 {
		t.Errorf("expected one increment, got %d", got)
	}
	if len(h.sleeper.Delays()) != 2 {
		t.Errorf("expected 2 delays, got %v", h.sleeper.Delays())
	}
	if h.orch.State().Critical {
		t.Error("timeouts are not critical")
	}
}

func TestDisconnectClearsSession(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)
	ctx := context.Background()

	if err := h.orch.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	h.orch.Disconnect(ctx, true)

	if h.orch.IsAuthenticated() {
		t.Error("expected unauthenticated after disconnect")
	}
	if h.sessMem.Exists() {
		t.Error("expected session to be cleared")
	}
	if _, logoffs := client.counts(); logoffs != 1 {
		t.Errorf("expected one logoff, got %d", logoffs)
	}
}

func TestUnsolicitedDisconnectResetsState(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	client.Emit(steam.Event{Name: steam.EventDisconnected, Payload: steam.DisconnectInfo{EResult: 3, Message: "no connection"}})

	deadline := time.Now().Add(time.Second)
	for h.orch.IsAuthenticated() {
		if time.Now().After(deadline) {
			t.Fatal("state was not reset")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if h.orch.State().LastError == nil {
		t.Error("expected disconnect cause to be recorded")
	}
}

func TestCriticalErrorAfterLoginFailsAndSignals(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event { return loggedOn() })
	h := newHarness(t, client, nil)

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	client.Emit(*loginError(int(steamerr.ResultBanned)))

	select {
	case err := <-h.orch.Critical():
		if !steamerr.IsCritical(err) {
			t.Errorf("expected critical error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("critical error was not signalled")
	}

	state := h.orch.State()
	if state.Phase != domain.AuthPhaseFailed || !state.Critical || state.IsAuthenticated {
		t.Errorf("expected Failed(critical), got %+v", state)
	}
	if _, logoffs := client.counts(); logoffs != 1 {
		t.Errorf("expected one logoff, got %d", logoffs)
	}

	// A later disconnect event no longer touches the state
	client.Emit(steam.Event{Name: steam.EventDisconnected, Payload: steam.DisconnectInfo{Message: "late"}})
	time.Sleep(20 * time.Millisecond)
	if h.orch.State().Phase != domain.AuthPhaseFailed {
		t.Error("critical state was overwritten")
	}
}

func TestLoggedOnWithoutSteamIDSkipsSession(t *testing.T) {
	client := newFakeClient(func(int, *fakeClient) *steam.Event {
		return &steam.Event{Name: steam.EventLoggedOn, Payload: steam.LoggedOnDetails{AccountName: "trader", RefreshToken: "refresh"}}
	})
	h := newHarness(t, client, nil)

	if err := h.orch.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !h.orch.IsAuthenticated() {
		t.Error("expected authenticated")
	}
	if h.sessMem.Exists() {
		t.Error("session without steam id must not be saved")
	}
}
