package config

import (
	"time"

	redisclient "github.com/vietddude/tradeup/internal/infra/redis"
	"github.com/vietddude/tradeup/internal/journal"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Steam       SteamConfig        `yaml:"steam"`
	Auth        AuthConfig         `yaml:"auth"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	Session     SessionConfig      `yaml:"session"`
	Coordinator CoordinatorConfig  `yaml:"coordinator"`
	Storage     StorageConfig      `yaml:"storage"`
	Redis       redisclient.Config `yaml:"redis"`
	Journal     journal.Config     `yaml:"journal"`
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// SteamConfig holds account credentials and the platform driver.
type SteamConfig struct {
	Driver       string            `yaml:"driver"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	SharedSecret string            `yaml:"shared_secret"` // optional, enables automatic Steam Guard codes
	Options      map[string]string `yaml:"options"`       // driver specific
}

// AuthConfig holds login retry settings.
type AuthConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelayMin time.Duration `yaml:"retry_delay_min"`
	RetryDelayMax time.Duration `yaml:"retry_delay_max"`
	LoginTimeout  time.Duration `yaml:"login_timeout"`
	LogoffTimeout time.Duration `yaml:"logoff_timeout"`
}

// RateLimitConfig holds the authentication volume ceilings.
type RateLimitConfig struct {
	VolumeFile   string `yaml:"volume_file"`
	DailyLimit   uint   `yaml:"daily_limit"`
	MonthlyLimit uint   `yaml:"monthly_limit"`
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// CoordinatorConfig holds game coordinator settings.
type CoordinatorConfig struct {
	AppID             uint32        `yaml:"app_id"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	OperationDelayMin time.Duration `yaml:"operation_delay_min"`
	OperationDelayMax time.Duration `yaml:"operation_delay_max"`
	TradeUpTimeout    time.Duration `yaml:"trade_up_timeout"`
	DisconnectTimeout time.Duration `yaml:"disconnect_timeout"`
}

// StorageConfig selects where the volume and session records live.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file, redis
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 disables the server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
