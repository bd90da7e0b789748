package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/vietddude/tradeup/internal/auth"
	"github.com/vietddude/tradeup/internal/coordinator"
	"github.com/vietddude/tradeup/internal/core/config"
	"github.com/vietddude/tradeup/internal/core/domain"
	"github.com/vietddude/tradeup/internal/core/pacing"
	"github.com/vietddude/tradeup/internal/health"
	"github.com/vietddude/tradeup/internal/infra/persist"
	redisclient "github.com/vietddude/tradeup/internal/infra/redis"
	"github.com/vietddude/tradeup/internal/infra/steam"
	_ "github.com/vietddude/tradeup/internal/infra/steam/sim"
	"github.com/vietddude/tradeup/internal/journal"
	"github.com/vietddude/tradeup/internal/ledger"
	"github.com/vietddude/tradeup/internal/session"
)

// Config holds the application configuration.
type Config struct {
	Port        int
	Steam       config.SteamConfig
	Auth        config.AuthConfig
	RateLimit   config.RateLimitConfig
	Session     config.SessionConfig
	Coordinator config.CoordinatorConfig
	Storage     config.StorageConfig
	Redis       redisclient.Config
	Journal     journal.Config

	// Sleeper and Rand replace the pacing hooks. Nil keeps the defaults.
	Sleeper pacing.Sleeper
	Rand    pacing.Rand
}

// FromAppConfig transforms the loaded configuration.
func FromAppConfig(cfg *config.AppConfig) Config {
	return Config{
		Port:        cfg.Server.Port,
		Steam:       cfg.Steam,
		Auth:        cfg.Auth,
		RateLimit:   cfg.RateLimit,
		Session:     cfg.Session,
		Coordinator: cfg.Coordinator,
		Storage:     cfg.Storage,
		Redis:       cfg.Redis,
		Journal:     cfg.Journal,
	}
}

// Bot is the main application struct that owns the platform session.
type Bot struct {
	cfg          Config
	runID        string
	platform     *steam.Platform
	stores       *Stores
	auth         *auth.Orchestrator
	coordinator  *coordinator.Coordinator
	journal      journal.Journal
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *journal.Pruner
	cancel       context.CancelFunc
	workersDone  chan struct{}
	log          *slog.Logger
}

// NewBot creates a new Bot instance with all dependencies initialized.
func NewBot(ctx context.Context, cfg Config) (*Bot, error) {
	runID := ulid.Make().String()
	log := slog.With("component", "bot", "run_id", runID)

	// 1. Initialize Storage
	stores, err := OpenStores(cfg)
	if err != nil {
		return nil, err
	}

	// 2. Initialize Platform
	platform, err := steam.Open(cfg.Steam.Driver, steam.DriverConfig{Options: cfg.Steam.Options})
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("failed to open steam driver: %w", err)
	}

	// 3. Initialize Journal
	jr, err := journal.Open(ctx, cfg.Journal, runID)
	if err != nil {
		stores.Close()
		closePlatform(platform)
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// 4. Initialize Orchestrators
	var authOpts []auth.Option
	var coordOpts []coordinator.Option
	if cfg.Sleeper != nil {
		authOpts = append(authOpts, auth.WithSleeper(cfg.Sleeper))
		coordOpts = append(coordOpts, coordinator.WithSleeper(cfg.Sleeper))
	}
	if cfg.Rand != nil {
		authOpts = append(authOpts, auth.WithRand(cfg.Rand))
		coordOpts = append(coordOpts, coordinator.WithRand(cfg.Rand))
	}
	authOpts = append(authOpts, auth.WithRecorder(jr))
	coordOpts = append(coordOpts, coordinator.WithRecorder(jr))

	authOrch, err := auth.New(platform.Client, stores.Ledger, stores.Sessions, auth.Config{
		Username:      cfg.Steam.Username,
		Password:      cfg.Steam.Password,
		SharedSecret:  cfg.Steam.SharedSecret,
		MaxRetries:    cfg.Auth.MaxRetries,
		RetryDelayMin: cfg.Auth.RetryDelayMin,
		RetryDelayMax: cfg.Auth.RetryDelayMax,
		LoginTimeout:  cfg.Auth.LoginTimeout,
		LogoffTimeout: cfg.Auth.LogoffTimeout,
	}, authOpts...)
	if err != nil {
		stores.Close()
		closePlatform(platform)
		_ = jr.Close()
		return nil, err
	}

	coord := coordinator.New(platform.Client, platform.Coordinator, coordinator.Config{
		ConnectionTimeout: cfg.Coordinator.ConnectionTimeout,
		OperationDelayMin: cfg.Coordinator.OperationDelayMin,
		OperationDelayMax: cfg.Coordinator.OperationDelayMax,
		TradeUpTimeout:    cfg.Coordinator.TradeUpTimeout,
		DisconnectTimeout: cfg.Coordinator.DisconnectTimeout,
		AppID:             cfg.Coordinator.AppID,
	}, coordOpts...)

	// 5. Initialize Health Monitor
	healthMon := health.NewMonitor(runID, authOrch, coord, stores.Ledger)
	var healthServer *health.Server
	if cfg.Port > 0 {
		healthServer = health.NewServer(healthMon, cfg.Port)
	}

	log.Info("Bot initialized",
		"driver", cfg.Steam.Driver,
		"storage", stores.Location(),
		"journal", cfg.Journal.Driver)

	return &Bot{
		cfg:          cfg,
		runID:        runID,
		platform:     platform,
		stores:       stores,
		auth:         authOrch,
		coordinator:  coord,
		journal:      jr,
		healthMon:    healthMon,
		healthServer: healthServer,
		pruner:       journal.NewPruner(jr, cfg.Journal.Retention),
		log:          log,
	}, nil
}

// Start authenticates and opens the coordinator channel.
//
// A critical authentication failure is returned as is; callers check
// steamerr.IsCritical and shut the process down.
func (b *Bot) Start(ctx context.Context) error {
	if b.healthServer != nil {
		go func() {
			if err := b.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.log.Error("Health server failed", "error", err)
			}
		}()
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.workersDone = make(chan struct{})
	go func() {
		defer close(b.workersDone)
		b.pruner.Start(workerCtx)
	}()

	if err := b.auth.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	if err := b.coordinator.Connect(ctx); err != nil {
		return fmt.Errorf("connect game coordinator: %w", err)
	}

	b.log.Info("Bot started")
	return nil
}

// Stop closes the coordinator channel and the platform session and releases
// every resource. The persisted session is kept.
func (b *Bot) Stop(ctx context.Context) error {
	b.log.Info("Stopping Bot...")

	if b.cancel != nil {
		b.cancel()
		<-b.workersDone
	}

	b.coordinator.Disconnect(ctx)
	b.auth.Disconnect(ctx, false)

	var errs []error
	if err := b.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	closePlatform(b.platform)
	b.stores.Close()

	if b.healthServer != nil {
		if err := b.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop health server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Logout disconnects and removes the persisted session.
func (b *Bot) Logout(ctx context.Context) {
	b.coordinator.Disconnect(ctx)
	b.auth.Disconnect(ctx, true)
}

// TradeUp executes one trade-up with the configured timeout.
func (b *Bot) TradeUp(ctx context.Context, assetIDs []string) (*domain.TradeUpResult, error) {
	return b.coordinator.ExecuteTradeUp(ctx, assetIDs, b.cfg.Coordinator.TradeUpTimeout)
}

// Inventory lists the account inventory.
func (b *Bot) Inventory(ctx context.Context) ([]domain.InventoryItem, error) {
	return b.coordinator.GetInventory(ctx)
}

// Stats returns the volume ledger counters.
func (b *Bot) Stats(ctx context.Context) (ledger.Stats, error) {
	return b.stores.Ledger.Stats(ctx)
}

// Health returns the current health report.
func (b *Bot) Health(ctx context.Context) health.HealthReport {
	return b.healthMon.CheckHealth(ctx)
}

// AuthState returns the authentication state.
func (b *Bot) AuthState() domain.AuthenticationState {
	return b.auth.State()
}

// CoordinatorState returns the coordinator state.
func (b *Bot) CoordinatorState() domain.CoordinatorState {
	return b.coordinator.State()
}

// RecentTradeUps returns the most recent journaled trade-ups.
func (b *Bot) RecentTradeUps(ctx context.Context, limit int) ([]journal.TradeUpRecord, error) {
	return b.journal.ListTradeUps(ctx, limit)
}

// Critical delivers a critical account error raised after Start returned.
// The host must stop the bot and exit.
func (b *Bot) Critical() <-chan error {
	return b.auth.Critical()
}

// RunID identifies this process in logs and the journal.
func (b *Bot) RunID() string {
	return b.runID
}

func closePlatform(p *steam.Platform) {
	if p == nil || p.Close == nil {
		return
	}
	if err := p.Close(); err != nil {
		slog.Warn("Failed to close steam driver", "error", err)
	}
}

// Stores bundles the persisted ledger and session.
type Stores struct {
	Ledger   *ledger.Ledger
	Sessions *session.Store
	redis    *redisclient.Client
	volume   persist.Store
}

// OpenStores builds the ledger and session store on the configured backend.
func OpenStores(cfg Config) (*Stores, error) {
	var (
		volume   persist.Store
		sessions *session.Store
		rc       *redisclient.Client
	)

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		var err error
		rc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		volume = persist.NewRedisStore(rc, "volume")
		sessions = session.New(persist.NewRedisStore(rc, "session"))
		slog.Info("Using Redis storage")
	case "", config.BackendFile:
		volume = persist.NewFileStore(cfg.RateLimit.VolumeFile, persist.SharedFileMode, persist.SharedDirMode)
		sessions = session.NewFileStore(cfg.Session.Path)
		slog.Debug("Using file storage", "volume", cfg.RateLimit.VolumeFile, "session", cfg.Session.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	return &Stores{
		Ledger: ledger.New(volume, ledger.Config{
			DailyLimit:   cfg.RateLimit.DailyLimit,
			MonthlyLimit: cfg.RateLimit.MonthlyLimit,
		}),
		Sessions: sessions,
		redis:    rc,
		volume:   volume,
	}, nil
}

// Location describes where the volume record lives.
func (s *Stores) Location() string {
	return s.volume.Location()
}

// Close releases the backend connection.
func (s *Stores) Close() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		slog.Warn("Failed to close Redis", "error", err)
	}
}
