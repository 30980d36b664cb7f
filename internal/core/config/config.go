package config

import (
	"time"

	redisclient "github.com/vietddude/dexwatch/internal/infra/redis"
	"github.com/vietddude/dexwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Solana   SolanaConfig       `yaml:"solana"`
	Telegram TelegramConfig     `yaml:"telegram"`
	Storage  StorageConfig      `yaml:"storage"`
	Redis    redisclient.Config `yaml:"redis"`
	Database DatabaseConfig     `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SolanaConfig holds RPC endpoints and notification pipeline tuning.
type SolanaConfig struct {
	Providers      []ProviderConfig `yaml:"providers"`
	WSURL          string           `yaml:"ws_url"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	PingInterval   time.Duration    `yaml:"ping_interval"`
	DedupTTL       time.Duration    `yaml:"dedup_ttl"`
	FetchRetries   int              `yaml:"fetch_retries"`
	FetchDelay     time.Duration    `yaml:"fetch_delay"`
	MaxAttempts    int              `yaml:"max_attempts"` // per provider
}

// ProviderConfig holds settings for an RPC provider. Providers are tried in
// order; the next one takes over on rate limits.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token"`
	BotName string `yaml:"bot_name"`
	// AdminChatID receives alerts for wallets restored at boot. 0 waits
	// for /start.
	AdminChatID    int64   `yaml:"admin_chat_id"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids"` // empty = everyone
	ServerURL      string  `yaml:"server_url"`       // Bot API endpoint override
}

// StorageConfig holds the wallet file location.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// DatabaseConfig enables alert history when URL is set.
type DatabaseConfig struct {
	postgres.Config `yaml:",inline"`
	Retention       time.Duration `yaml:"retention"` // 0 = keep forever
}
