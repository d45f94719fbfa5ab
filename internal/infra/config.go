package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent identifies outgoing API requests.
const DefaultUserAgent = "crypto-dash/1.0 (+https://github.com/crypto-dash)"

const envPrefix = "CRYPTO_DASH_"

// Storage drivers accepted by storage.Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config holds every setting of the dashboard.
// 파일에서 로드한 뒤 CRYPTO_DASH_* 환경 변수로 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		CoinGecko struct {
			BaseURL    string  `yaml:"base_url"`
			VsCurrency string  `yaml:"vs_currency"`
			TimeoutSec int     `yaml:"timeout_sec"`
			Burst      int     `yaml:"burst"`
			PerSecond  float64 `yaml:"per_second"`
			APIKey     string  `yaml:"api_key"`
		} `yaml:"coingecko"`
		FearGreed struct {
			URL        string `yaml:"url"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"fear_greed"`
	} `yaml:"api"`

	Dashboard struct {
		Page          int `yaml:"page"`
		PerPage       int `yaml:"per_page"`
		DebounceMS    int `yaml:"debounce_ms"`
		NoticeLimit   int `yaml:"notice_limit"`
		CacheGCMinute int `yaml:"cache_gc_minutes"`
	} `yaml:"dashboard"`

	Storage struct {
		Driver string `yaml:"driver"`
		Dir    string `yaml:"dir"`
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used when a key is absent from the file.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = AppName
	cfg.App.Version = "0.1.0"
	cfg.API.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	cfg.API.CoinGecko.VsCurrency = "usd"
	cfg.API.CoinGecko.TimeoutSec = 10
	cfg.API.CoinGecko.Burst = 5
	cfg.API.CoinGecko.PerSecond = 0.5
	cfg.API.FearGreed.URL = "https://api.alternative.me/fng/"
	cfg.API.FearGreed.TimeoutSec = 10
	cfg.Dashboard.Page = 1
	cfg.Dashboard.PerPage = 100
	cfg.Dashboard.DebounceMS = 300
	cfg.Dashboard.NoticeLimit = 50
	cfg.Dashboard.CacheGCMinute = 5
	cfg.Storage.Driver = DriverFile
	cfg.Storage.Redis.Addr = "localhost:6379"
	cfg.Storage.Redis.Prefix = "crypto-dash:"
	cfg.Server.Addr = ":8080"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secrets, err := secretsFor(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(data, secrets)
}

// ParseConfig decodes YAML over the defaults, applies env overrides and validates.
func ParseConfig(data []byte) (*Config, error) {
	return parseConfig(data, nil)
}

// Precedence: defaults < yaml < secrets file < environment.
func parseConfig(data []byte, secrets *SecretConfig) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	secrets.apply(cfg)
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := validateHTTPURL(c.API.CoinGecko.BaseURL); err != nil {
		return fmt.Errorf("coingecko base_url: %w", err)
	}
	if err := validateHTTPURL(c.API.FearGreed.URL); err != nil {
		return fmt.Errorf("fear_greed url: %w", err)
	}
	if c.API.CoinGecko.VsCurrency == "" {
		return fmt.Errorf("vs_currency is required")
	}
	if c.API.CoinGecko.TimeoutSec <= 0 || c.API.FearGreed.TimeoutSec <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.API.CoinGecko.Burst <= 0 || c.API.CoinGecko.PerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Dashboard.Page < 1 || c.Dashboard.PerPage < 1 || c.Dashboard.PerPage > 250 {
		return fmt.Errorf("invalid page settings: page=%d per_page=%d", c.Dashboard.Page, c.Dashboard.PerPage)
	}
	if c.Dashboard.DebounceMS < 0 {
		return fmt.Errorf("debounce must not be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}
	return nil
}

// CoinGeckoTimeout returns the HTTP timeout of the market API client.
func (c *Config) CoinGeckoTimeout() time.Duration {
	return time.Duration(c.API.CoinGecko.TimeoutSec) * time.Second
}

// FearGreedTimeout returns the HTTP timeout of the sentiment client.
func (c *Config) FearGreedTimeout() time.Duration {
	return time.Duration(c.API.FearGreed.TimeoutSec) * time.Second
}

// Debounce returns the quiet period applied to search input.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Dashboard.DebounceMS) * time.Millisecond
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	setString(&cfg.API.CoinGecko.BaseURL, "COINGECKO_URL")
	setString(&cfg.API.CoinGecko.APIKey, "COINGECKO_KEY")
	setString(&cfg.API.CoinGecko.VsCurrency, "VS_CURRENCY")
	setString(&cfg.API.FearGreed.URL, "FEAR_GREED_URL")
	setString(&cfg.Storage.Driver, "STORAGE")
	setString(&cfg.Storage.Dir, "STORAGE_DIR")
	setString(&cfg.Storage.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Storage.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Storage.Redis.DB, "REDIS_DB")
	setString(&cfg.Server.Addr, "ADDR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, name string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
