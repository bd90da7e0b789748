package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// PacingFloor is the lowest retry and operation delay accepted for a real platform.
const PacingFloor = 30 * time.Second

// SimDriver is exempt from the pacing floor.
const SimDriver = "sim"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies
// environment overrides and defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	enforcePacingFloor(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv("MAX_DAILY_AUTH_ATTEMPTS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid MAX_DAILY_AUTH_ATTEMPTS %q: %w", v, err)
		}
		cfg.RateLimit.DailyLimit = uint(n)
	}
	if v := os.Getenv("MAX_MONTHLY_AUTH_ATTEMPTS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid MAX_MONTHLY_AUTH_ATTEMPTS %q: %w", v, err)
		}
		cfg.RateLimit.MonthlyLimit = uint(n)
	}

	if cfg.Steam.Username == "" {
		cfg.Steam.Username = os.Getenv("STEAM_USERNAME")
	}
	if cfg.Steam.Password == "" {
		cfg.Steam.Password = os.Getenv("STEAM_PASSWORD")
	}
	if cfg.Steam.SharedSecret == "" {
		cfg.Steam.SharedSecret = os.Getenv("STEAM_SHARED_SECRET")
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Steam.Driver == "" {
		cfg.Steam.Driver = SimDriver
	}

	if cfg.Auth.MaxRetries == 0 {
		cfg.Auth.MaxRetries = 5
	}
	if cfg.Auth.RetryDelayMin == 0 {
		cfg.Auth.RetryDelayMin = 30 * time.Second
	}
	if cfg.Auth.RetryDelayMax == 0 {
		cfg.Auth.RetryDelayMax = 60 * time.Second
	}
	if cfg.Auth.LoginTimeout == 0 {
		cfg.Auth.LoginTimeout = 30 * time.Second
	}
	if cfg.Auth.LogoffTimeout == 0 {
		cfg.Auth.LogoffTimeout = 5 * time.Second
	}

	if cfg.RateLimit.VolumeFile == "" {
		cfg.RateLimit.VolumeFile = "/data/volume.json"
	}
	if cfg.RateLimit.DailyLimit == 0 {
		cfg.RateLimit.DailyLimit = 10
	}
	if cfg.RateLimit.MonthlyLimit == 0 {
		cfg.RateLimit.MonthlyLimit = 100
	}

	if cfg.Session.Path == "" {
		cfg.Session.Path = "/data/session.json"
	}

	if cfg.Coordinator.AppID == 0 {
		cfg.Coordinator.AppID = 730
	}
	if cfg.Coordinator.ConnectionTimeout == 0 {
		cfg.Coordinator.ConnectionTimeout = 30 * time.Second
	}
	if cfg.Coordinator.OperationDelayMin == 0 {
		cfg.Coordinator.OperationDelayMin = 30 * time.Second
	}
	if cfg.Coordinator.OperationDelayMax == 0 {
		cfg.Coordinator.OperationDelayMax = 60 * time.Second
	}
	if cfg.Coordinator.TradeUpTimeout == 0 {
		cfg.Coordinator.TradeUpTimeout = 30 * time.Second
	}
	if cfg.Coordinator.DisconnectTimeout == 0 {
		cfg.Coordinator.DisconnectTimeout = 5 * time.Second
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "none"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// enforcePacingFloor raises delays below PacingFloor unless the simulator is in use.
func enforcePacingFloor(cfg *AppConfig) {
	if cfg.Steam.Driver == SimDriver {
		return
	}
	raise := func(name string, d *time.Duration) {
		if *d < PacingFloor {
			slog.Warn("Delay below ban-avoidance floor, raising", "setting", name, "configured", *d, "floor", PacingFloor)
			*d = PacingFloor
		}
	}
	raise("auth.retry_delay_min", &cfg.Auth.RetryDelayMin)
	raise("coordinator.operation_delay_min", &cfg.Coordinator.OperationDelayMin)
	if cfg.Auth.RetryDelayMax < cfg.Auth.RetryDelayMin {
		raise("auth.retry_delay_max", &cfg.Auth.RetryDelayMax)
	}
	if cfg.Coordinator.OperationDelayMax < cfg.Coordinator.OperationDelayMin {
		raise("coordinator.operation_delay_max", &cfg.Coordinator.OperationDelayMax)
	}
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Auth.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("auth.max_retries must be at least 1, got %d", c.Auth.MaxRetries))
	}
	if c.Auth.RetryDelayMax < c.Auth.RetryDelayMin {
		errs = append(errs, fmt.Errorf("auth.retry_delay_max (%s) must not be below retry_delay_min (%s)",
			c.Auth.RetryDelayMax, c.Auth.RetryDelayMin))
	}
	if c.Coordinator.OperationDelayMax < c.Coordinator.OperationDelayMin {
		errs = append(errs, fmt.Errorf("coordinator.operation_delay_max (%s) must not be below operation_delay_min (%s)",
			c.Coordinator.OperationDelayMax, c.Coordinator.OperationDelayMin))
	}
	if c.Journal.Retention < 0 {
		errs = append(errs, fmt.Errorf("journal.retention must not be negative, got %s", c.Journal.Retention))
	}
	switch c.Storage.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a logging level name to slog.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
