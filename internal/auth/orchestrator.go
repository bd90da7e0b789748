// Package auth drives platform authentication: volume check, session reuse,
// then a paced retry loop over full logins.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/pacing"
	"github.com/vietddude/tradeup/internal/core/steamerr"
	"github.com/vietddude/tradeup/internal/infra/steam"
	"github.com/vietddude/tradeup/internal/ledger"
	"github.com/vietddude/tradeup/internal/metrics"
	"github.com/vietddude/tradeup/internal/session"
)

// Defaults.
const (
	DefaultMaxRetries    = 5
	DefaultRetryDelayMin = 30 * time.Second
	DefaultRetryDelayMax = 60 * time.Second
	DefaultLoginTimeout  = 30 * time.Second
	DefaultLogoffTimeout = 5 * time.Second
)

// ErrMissingCredentials is returned by New when username or password is empty.
var ErrMissingCredentials = errors.New("steam username and password are required")

// Config configures the orchestrator.
type Config struct {
	Username      string
	Password      string
	SharedSecret  string
	MaxRetries    int
	RetryDelayMin time.Duration
	RetryDelayMax time.Duration
	LoginTimeout  time.Duration
	LogoffTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelayMin <= 0 {
		c.RetryDelayMin = DefaultRetryDelayMin
	}
	if c.RetryDelayMax <= 0 {
		c.RetryDelayMax = DefaultRetryDelayMax
	}
	if c.RetryDelayMax < c.RetryDelayMin {
		c.RetryDelayMax = c.RetryDelayMin
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = DefaultLoginTimeout
	}
	if c.LogoffTimeout <= 0 {
		c.LogoffTimeout = DefaultLogoffTimeout
	}
}

// AttemptRecorder receives every full-login attempt.
type AttemptRecorder interface {
	RecordAuthAttempt(ctx context.Context, a domain.AuthAttempt) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the pacing sleeper.
func WithSleeper(s pacing.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithRand replaces the jitter source.
func WithRand(r pacing.Rand) Option {
	return func(o *Orchestrator) { o.rand = r }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRecorder journals every login attempt.
func WithRecorder(r AttemptRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator is the authentication state machine. Calls to Authenticate
// must be serialized by the caller.
type Orchestrator struct {
	client   steam.Client
	ledger   *ledger.Ledger
	sessions *session.Store
	cfg      Config
	sleep    pacing.Sleeper
	rand     pacing.Rand
	now      func() time.Time
	recorder AttemptRecorder
	log      *slog.Logger

	mu       sync.Mutex
	state    domain.AuthenticationState
	watchSub *steam.Subscription
	critical chan error
}

// New creates an orchestrator.
func New(client steam.Client, l *ledger.Ledger, sessions *session.Store, cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	cfg.applyDefaults()

	o := &Orchestrator{
		client:   client,
		ledger:   l,
		sessions: sessions,
		cfg:      cfg,
		sleep:    pacing.DefaultSleeper,
		rand:     pacing.DefaultRand,
		now:      time.Now,
		log:      slog.With("component", "auth"),
		state:    domain.AuthenticationState{Phase: domain.AuthPhaseIdle},
		critical: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Authenticate runs one authentication cycle.
//
// A critical protocol error leaves the state machine in Failed with
// Critical set; the host is expected to shut down (see steamerr.IsCritical).
func (o *Orchestrator) Authenticate(ctx context.Context) error {
	o.stopWatch()

	o.setPhase(domain.AuthPhaseCheckingRateLimit)
	exceeded, err := o.ledger.CheckExceeded(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("check volume ledger: %w", err), false)
	}
	if exceeded {
		metrics.AuthAttemptsTotal.WithLabelValues("rate_limited").Inc()
		return o.fail(o.ledger.ExceededError(ctx), false)
	}

	o.setPhase(domain.AuthPhaseRestoringSession)
	if rec, ok := o.sessions.Load(ctx); ok {
		o.restore(rec)
		return nil
	}

	o.setPhase(domain.AuthPhaseFullLogin)
	if err := o.ledger.Increment(ctx); err != nil {
		var rl *steamerr.RateLimitError
		if errors.As(err, &rl) {
			metrics.AuthAttemptsTotal.WithLabelValues("rate_limited").Inc()
		}
		return o.fail(err, false)
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		o.setRetryCount(uint(attempt - 1))
		o.log.Info("Attempting login", "account", o.cfg.Username, "attempt", attempt, "max", o.cfg.MaxRetries)

		details, err := o.attemptLogin(ctx, attempt)
		if err == nil {
			o.record(ctx, attempt, domain.AttemptSuccess, nil)
			o.succeed(ctx, details)
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			o.record(ctx, attempt, domain.AttemptFailure, err)
			return o.fail(ctx.Err(), false)
		}

		if steamerr.IsCritical(err) {
			o.record(ctx, attempt, domain.AttemptCritical, err)
			o.log.Error("Critical login error, aborting", "attempt", attempt, "code", steamerr.CodeOf(err), "error", err)
			o.logoff(ctx)
			return o.fail(err, true)
		}

		o.record(ctx, attempt, domain.AttemptFailure, err)
		if !steamerr.IsRetryable(err) {
			o.log.Error("Login failed, not retrying", "attempt", attempt, "code", steamerr.CodeOf(err), "error", err)
			return o.fail(err, false)
		}
		o.log.Warn("Login attempt failed", "attempt", attempt, "code", steamerr.CodeOf(err), "error", err)

		if attempt == o.cfg.MaxRetries {
			break
		}

		delay := pacing.Backoff(attempt, pacing.BackoffConfig{Min: o.cfg.RetryDelayMin, Max: o.cfg.RetryDelayMax}, o.rand())
		o.log.Info("Waiting before retry", "delay", delay.Round(time.Millisecond), "next_attempt", attempt+1)
		metrics.PacingDelay.WithLabelValues("login_retry").Observe(delay.Seconds())
		o.sleep(delay)

		if ctx.Err() != nil {
			return o.fail(ctx.Err(), false)
		}
	}

	agg := steamerr.NewAuthError(
		fmt.Sprintf("Authentication failed after %d attempts: %v", o.cfg.MaxRetries, lastErr),
		steamerr.CodeOf(lastErr),
		lastErr,
	)
	return o.fail(agg, false)
}

// attemptLogin performs one logon and waits for its outcome. The
// subscription lives for this attempt only.
func (o *Orchestrator) attemptLogin(ctx context.Context, attempt int) (steam.LoggedOnDetails, error) {
	sub := o.client.Subscribe(steam.EventLoggedOn, steam.EventError, steam.EventSteamGuard)
	defer sub.Close()

	timer := time.NewTimer(o.cfg.LoginTimeout)
	defer timer.Stop()

	o.client.LogOn(steam.LogOnDetails{AccountName: o.cfg.Username, Password: o.cfg.Password})

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return steam.LoggedOnDetails{}, &steamerr.NetworkError{Message: "event stream closed during login"}
			}
			switch ev.Name {
			case steam.EventLoggedOn:
				details, _ := ev.Payload.(steam.LoggedOnDetails)
				return details, nil

			case steam.EventError:
				err, _ := ev.Payload.(error)
				if err == nil {
					err = fmt.Errorf("login error: %v", ev.Payload)
				}
				return steam.LoggedOnDetails{}, steamerr.Wrap(err)

			case steam.EventSteamGuard:
				if err := o.answerGuard(ev); err != nil {
					return steam.LoggedOnDetails{}, err
				}
			}

		case <-timer.C:
			return steam.LoggedOnDetails{}, &steamerr.NetworkError{
				Message: fmt.Sprintf("login attempt %d timed out after %s", attempt, o.cfg.LoginTimeout),
				Err:     context.DeadlineExceeded,
			}

		case <-ctx.Done():
			return steam.LoggedOnDetails{}, ctx.Err()
		}
	}
}

func (o *Orchestrator) answerGuard(ev steam.Event) error {
	challenge, _ := ev.Payload.(steam.GuardChallenge)
	if o.cfg.SharedSecret == "" {
		return &steamerr.TwoFactorError{Message: "Steam Guard code required but no shared secret is configured"}
	}
	code, err := GenerateAuthCode(o.cfg.SharedSecret, o.now())
	if err != nil {
		return &steamerr.TwoFactorError{Message: fmt.Sprintf("Steam Guard code required but shared secret is unusable: %v", err)}
	}
	if challenge.LastCodeWrong {
		o.log.Warn("Previous Steam Guard code was rejected, sending a fresh one")
	}
	if challenge.Respond == nil {
		return &steamerr.TwoFactorError{Message: "Steam Guard challenge has no response callback"}
	}
	o.log.Info("Answering Steam Guard challenge", "domain", challenge.Domain)
	challenge.Respond(code)
	return nil
}

func (o *Orchestrator) succeed(ctx context.Context, d steam.LoggedOnDetails) {
	now := o.now()
	name := d.AccountName
	if name == "" {
		name = o.cfg.Username
	}

	o.mu.Lock()
	o.state = domain.AuthenticationState{
		Phase:           domain.AuthPhaseAuthenticated,
		IsAuthenticated: true,
		AccountID:       d.SteamID,
		AccountName:     name,
		LastAuthTime:    &now,
	}
	o.mu.Unlock()

	metrics.AuthAttemptsTotal.WithLabelValues(domain.AttemptSuccess).Inc()
	o.log.Info("Logged in", "account", name, "steam_id", d.SteamID)

	o.saveSession(ctx, domain.SessionRecord{
		AccountID:    d.SteamID,
		AccountName:  name,
		RefreshToken: d.RefreshToken,
		AccessToken:  d.AccessToken,
		ExpiresAt:    d.ExpiresAt,
	})

	o.watch()
}

// saveSession persists the session. A session without an account id would be
// discarded on the next load, so it is not written at all.
func (o *Orchestrator) saveSession(ctx context.Context, rec domain.SessionRecord) {
	if rec.AccountID == "" {
		o.log.Warn("Logged on without a steam id, session not saved")
		return
	}
	if err := o.sessions.Save(ctx, rec); err != nil {
		o.log.Warn("Failed to save session, next start will log in again", "error", err)
	}
}

func (o *Orchestrator) restore(rec *domain.SessionRecord) {
	now := o.now()

	o.mu.Lock()
	o.state = domain.AuthenticationState{
		Phase:           domain.AuthPhaseAuthenticated,
		IsAuthenticated: true,
		AccountID:       rec.AccountID,
		AccountName:     rec.AccountName,
		LastAuthTime:    &now,
		Restored:        true,
	}
	o.mu.Unlock()

	metrics.SessionRestoresTotal.Inc()
	o.log.Info("Restored saved session", "account", rec.AccountName, "saved_at", rec.SavedAt)
	o.watch()
}

func (o *Orchestrator) fail(err error, critical bool) error {
	o.mu.Lock()
	o.state.Phase = domain.AuthPhaseFailed
	o.state.IsAuthenticated = false
	o.state.LastError = err
	o.state.Critical = critical
	o.mu.Unlock()
	return err
}

func (o *Orchestrator) record(ctx context.Context, attempt int, outcome string, err error) {
	if outcome != domain.AttemptSuccess {
		metrics.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
	}
	if o.recorder == nil {
		return
	}

	a := domain.AuthAttempt{
		ID:      uuid.NewString(),
		Attempt: attempt,
		Outcome: outcome,
		At:      o.now().UTC(),
	}
	if err != nil {
		a.ErrorCode = steamerr.CodeOf(err)
		a.Message = err.Error()
	}
	if rerr := o.recorder.RecordAuthAttempt(context.WithoutCancel(ctx), a); rerr != nil {
		o.log.Warn("Failed to journal login attempt", "error", rerr)
	}
}

// Disconnect logs off and resets the state. With clearSession the persisted
// session is removed too.
func (o *Orchestrator) Disconnect(ctx context.Context, clearSession bool) {
	o.stopWatch()

	if clearSession {
		if err := o.sessions.Clear(ctx); err != nil {
			o.log.Warn("Failed to clear session", "error", err)
		}
	}

	o.mu.Lock()
	loggedOn := o.state.IsAuthenticated && !o.state.Restored
	o.mu.Unlock()
	if loggedOn {
		o.logoff(ctx)
	}

	o.mu.Lock()
	o.state = domain.AuthenticationState{Phase: domain.AuthPhaseIdle}
	o.mu.Unlock()
	o.log.Info("Disconnected", "session_cleared", clearSession)
}

// logoff signals logoff and waits for the disconnect, bounded by LogoffTimeout.
func (o *Orchestrator) logoff(ctx context.Context) {
	sub := o.client.Subscribe(steam.EventDisconnected)
	defer sub.Close()

	timer := time.NewTimer(o.cfg.LogoffTimeout)
	defer timer.Stop()

	o.client.LogOff()

	select {
	case <-sub.C:
	case <-timer.C:
		o.log.Warn("Logoff not confirmed, continuing", "timeout", o.cfg.LogoffTimeout)
	case <-ctx.Done():
	}
}

// watch resets the state when the platform drops the session. A critical
// error moves the state machine to Failed(critical), logs off and is
// delivered on Critical.
func (o *Orchestrator) watch() {
	sub := o.client.Subscribe(steam.EventDisconnected, steam.EventError)

	o.mu.Lock()
	if o.watchSub != nil {
		o.watchSub.Close()
	}
	o.watchSub = sub
	o.mu.Unlock()

	go func() {
		for ev := range sub.C {
			var cause error
			switch p := ev.Payload.(type) {
			case error:
				cause = steamerr.Wrap(p)
			case steam.DisconnectInfo:
				cause = &steamerr.NetworkError{Message: fmt.Sprintf("disconnected: %s (EResult %d)", p.Message, p.EResult)}
			}

			o.mu.Lock()
			if o.watchSub != sub {
				o.mu.Unlock()
				return
			}
			if steamerr.IsCritical(cause) {
				o.state = domain.AuthenticationState{Phase: domain.AuthPhaseFailed, LastError: cause, Critical: true}
				o.watchSub = nil
				o.mu.Unlock()
				sub.Close()

				metrics.AuthAttemptsTotal.WithLabelValues(domain.AttemptCritical).Inc()
				o.log.Error("Critical account error after login, logging off", "code", steamerr.CodeOf(cause), "error", cause)
				o.logoff(context.Background())
				o.signalCritical(cause)
				return
			}
			o.state = domain.AuthenticationState{Phase: domain.AuthPhaseIdle, LastError: cause}
			o.mu.Unlock()

			o.log.Warn("Platform session lost", "event", ev.Name, "error", cause)
		}
	}()
}

// Critical delivers critical errors raised by the platform after login.
// The host shuts down when it receives one.
func (o *Orchestrator) Critical() <-chan error {
	return o.critical
}

func (o *Orchestrator) signalCritical(err error) {
	select {
	case o.critical <- err:
	default:
	}
}

func (o *Orchestrator) stopWatch() {
	o.mu.Lock()
	sub := o.watchSub
	o.watchSub = nil
	o.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (o *Orchestrator) setPhase(p domain.AuthPhase) {
	o.mu.Lock()
	o.state.Phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) setRetryCount(n uint) {
	o.mu.Lock()
	o.state.RetryCount = n
	o.mu.Unlock()
}

// State returns a snapshot of the authentication state.
func (o *Orchestrator) State() domain.AuthenticationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsAuthenticated reports whether a session is active.
func (o *Orchestrator) IsAuthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.IsAuthenticated
}
