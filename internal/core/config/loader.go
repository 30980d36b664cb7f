package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultRPCURL is used when no provider is configured.
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// Load reads configuration from a YAML file. A .env file in the working
// directory is loaded first. A missing config file yields defaults filled
// from the environment.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			// Expand environment variables in the YAML content
			expandedData := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Validate reports settings the bot cannot run without.
func (c *AppConfig) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (BOT_TOKEN)")
	}
	if len(c.Solana.Providers) == 0 {
		return errors.New("at least one solana provider is required")
	}
	for _, p := range c.Solana.Providers {
		if p.URL == "" {
			return fmt.Errorf("provider %q has no url", p.Name)
		}
	}
	return nil
}

// ChatAllowed reports whether chatID may use the bot.
func (c *TelegramConfig) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func applyEnv(cfg *AppConfig) {
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if cfg.Telegram.BotName == "" {
		cfg.Telegram.BotName = os.Getenv("BOT_NAME")
	}
	if cfg.Telegram.AdminChatID == 0 {
		if id, err := strconv.ParseInt(os.Getenv("ADMIN_CHAT_ID"), 10, 64); err == nil {
			cfg.Telegram.AdminChatID = id
		}
	}

	if len(cfg.Solana.Providers) == 0 {
		if url := os.Getenv("SOLANA_RPC_URL"); url != "" {
			cfg.Solana.Providers = append(cfg.Solana.Providers, ProviderConfig{Name: "primary", URL: url})
		}
		if url := os.Getenv("HELUIS_RPC_URL"); url != "" {
			cfg.Solana.Providers = append(cfg.Solana.Providers, ProviderConfig{Name: "helius", URL: url})
		}
	}
	if cfg.Solana.WSURL == "" {
		cfg.Solana.WSURL = firstNonEmpty(os.Getenv("SOLANA_WS_URL"), os.Getenv("HELUIS_WS_URL"))
	}

	if cfg.Server.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			cfg.Server.Port = port
		}
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = os.Getenv("DATA_DIR")
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = os.Getenv("REDIS_URL")
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}

	s := &cfg.Solana
	if len(s.Providers) == 0 {
		s.Providers = []ProviderConfig{{Name: "mainnet", URL: DefaultRPCURL}}
	}
	for i := range s.Providers {
		if s.Providers[i].Name == "" {
			s.Providers[i].Name = fmt.Sprintf("provider-%d", i)
		}
	}
	if s.WSURL == "" {
		s.WSURL = WebsocketURL(s.Providers[0].URL)
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 30 * time.Second
	}
	if s.PingInterval == 0 {
		s.PingInterval = 30 * time.Second
	}
	if s.DedupTTL == 0 {
		s.DedupTTL = 10 * time.Minute
	}
	if s.FetchRetries == 0 {
		s.FetchRetries = 3
	}
	if s.FetchDelay == 0 {
		s.FetchDelay = time.Second
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 3
	}
}

// WebsocketURL derives the pubsub endpoint from an HTTP RPC URL.
func WebsocketURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	}
	return rpcURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
