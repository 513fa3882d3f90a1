package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level             string `yaml:"level"`
	Encoding          string `yaml:"encoding"`
	Development       bool   `yaml:"development"`
	DisableCaller     bool   `yaml:"disable_caller"`
	DisableStacktrace bool   `yaml:"disable_stacktrace"`
}

// MonitorConfig controls the alert polling loop.
type MonitorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	GroupDelay  time.Duration `yaml:"group_delay"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// QuotesConfig holds floor-price and exchange-rate provider settings.
type QuotesConfig struct {
	// Provider is "live" for OpenSea and CoinGecko, or "mock" for a fixed demo price feed.
	Provider         string        `yaml:"provider"`
	CoinGeckoBaseURL string        `yaml:"coingecko_base_url"`
	CoinGeckoAPIKey  string        `yaml:"coingecko_api_key"`
	OpenSeaBaseURL   string        `yaml:"opensea_base_url"`
	OpenSeaAPIKey    string        `yaml:"opensea_api_key"`
	RateCacheTTL     time.Duration `yaml:"rate_cache_ttl"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		HTTPAddr    string   `yaml:"http_addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log      LogConfig `yaml:"log"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Quotes   QuotesConfig  `yaml:"quotes"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		UserID   string `yaml:"user_id"`
	} `yaml:"telegram"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Wallet struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"wallet"`
	Proxy string `yaml:"proxy"`
}

// LoadDotEnv loads variables from a .env file if one exists. Existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Monitor.Enabled = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("MONITOR_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Monitor.Enabled = b
		}
	}
	if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Interval = d
		}
	}
	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Quotes.CoinGeckoAPIKey = v
	}
	if v := os.Getenv("OPENSEA_API_KEY"); v != "" {
		cfg.Quotes.OpenSeaAPIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_USER_ID"); v != "" {
		cfg.Telegram.UserID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WALLET_STATE_FILE"); v != "" {
		cfg.Wallet.StateFile = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/nft_sentinel.db"
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 5 * time.Minute
	}
	if cfg.Monitor.GroupDelay == 0 {
		cfg.Monitor.GroupDelay = time.Second
	}
	if cfg.Monitor.CallTimeout == 0 {
		cfg.Monitor.CallTimeout = 30 * time.Second
	}
	if cfg.Quotes.Provider == "" {
		cfg.Quotes.Provider = "live"
	}
	if cfg.Quotes.CoinGeckoBaseURL == "" {
		cfg.Quotes.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.Quotes.OpenSeaBaseURL == "" {
		cfg.Quotes.OpenSeaBaseURL = "https://api.opensea.io"
	}
	if cfg.Quotes.RateCacheTTL == 0 {
		cfg.Quotes.RateCacheTTL = time.Minute
	}
	if cfg.Quotes.Timeout == 0 {
		cfg.Quotes.Timeout = 30 * time.Second
	}
	if cfg.Wallet.StateFile == "" {
		cfg.Wallet.StateFile = "data/wallets.json"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	if c.Monitor.GroupDelay < 0 {
		return fmt.Errorf("monitor.group_delay must not be negative")
	}
	if c.Monitor.CallTimeout <= 0 {
		return fmt.Errorf("monitor.call_timeout must be positive")
	}
	if c.Quotes.Provider != "live" && c.Quotes.Provider != "mock" {
		return fmt.Errorf("quotes.provider must be live or mock, got %q", c.Quotes.Provider)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}
	return nil
}
