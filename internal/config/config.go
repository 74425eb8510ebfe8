package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/dgallion1/wrnotes/internal/cookie"
)

type Config struct {
	Port      string `toml:"port"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Auth for the HTTP API. Empty disables it.
	APIKey string `toml:"api_key"`

	Upstream    UpstreamConfig    `toml:"upstream"`
	Credentials CredentialsConfig `toml:"credentials"`
	Cache       CacheConfig       `toml:"cache"`
	Jobs        JobsConfig        `toml:"jobs"`

	HighlighterURL    string `toml:"highlighter_url"`
	DetailConcurrency int    `toml:"detail_concurrency"`
}

// UpstreamConfig tunes the WeRead client.
type UpstreamConfig struct {
	BaseURL     string        `toml:"base_url"`
	Timeout     time.Duration `toml:"timeout"`
	MaxAttempts int           `toml:"max_attempts"`
	BaseDelay   time.Duration `toml:"base_delay"`
	Jitter      time.Duration `toml:"jitter"`
	StatsWindow time.Duration `toml:"stats_window"`
}

// CredentialsConfig holds launch-level credentials. The process
// environment is consulted separately by the cookie resolver.
type CredentialsConfig struct {
	Cookie        string `toml:"cookie"`
	VaultURL      string `toml:"vault_url"`
	VaultID       string `toml:"vault_id"`
	VaultPassword string `toml:"vault_password"`
}

// Launch converts the credentials into the resolver's launch tier.
func (c CredentialsConfig) Launch() cookie.Launch {
	return cookie.Launch{
		Cookie:        c.Cookie,
		VaultURL:      c.VaultURL,
		VaultID:       c.VaultID,
		VaultPassword: c.VaultPassword,
	}
}

// CacheConfig configures the optional redis cache. Empty RedisURL disables it.
type CacheConfig struct {
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`
}

// JobsConfig sizes the export worker pool.
type JobsConfig struct {
	WorkerCount  int           `toml:"worker_count"`
	MaxQueueSize int           `toml:"max_queue_size"`
	TTL          time.Duration `toml:"ttl"`
}

func Default() Config {
	return Config{
		Port:      "8090",
		LogLevel:  "info",
		LogFormat: "json",
		Upstream: UpstreamConfig{
			BaseURL:     "https://weread.qq.com",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			BaseDelay:   5 * time.Second,
			Jitter:      3 * time.Second,
			StatsWindow: 15 * time.Minute,
		},
		Cache: CacheConfig{TTL: 6 * time.Hour},
		Jobs: JobsConfig{
			WorkerCount:  2,
			MaxQueueSize: 100,
			TTL:          1 * time.Hour,
		},
		HighlighterURL:    "http://localhost:3100",
		DetailConcurrency: 4,
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path, .env files and the process environment, later sources winning.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	mergeEnv(&cfg)

	if cfg.Upstream.MaxAttempts <= 0 {
		cfg.Upstream.MaxAttempts = 3
	}
	if cfg.Jobs.WorkerCount <= 0 {
		cfg.Jobs.WorkerCount = 2
	}
	if cfg.Jobs.MaxQueueSize <= 0 {
		cfg.Jobs.MaxQueueSize = 100
	}
	if cfg.Jobs.TTL <= 0 {
		cfg.Jobs.TTL = 1 * time.Hour
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 6 * time.Hour
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 4
	}
	return cfg, nil
}

// loadDotEnv copies values from dotenv files into the environment without
// overriding variables that are already set. Missing files are skipped.
func loadDotEnv(names ...string) error {
	for _, name := range names {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); !exists {
				if err := os.Setenv(k, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.APIKey = envOr("WRNOTES_API_KEY", cfg.APIKey)

	cfg.Upstream.BaseURL = envOr("WEREAD_BASE_URL", cfg.Upstream.BaseURL)
	cfg.Upstream.Timeout = envDuration("UPSTREAM_TIMEOUT", cfg.Upstream.Timeout)
	cfg.Upstream.MaxAttempts = envInt("RETRY_MAX_ATTEMPTS", cfg.Upstream.MaxAttempts)
	cfg.Upstream.BaseDelay = envDuration("RETRY_BASE_DELAY", cfg.Upstream.BaseDelay)
	cfg.Upstream.Jitter = envDuration("RETRY_JITTER", cfg.Upstream.Jitter)
	cfg.Upstream.StatsWindow = envDuration("STATS_WINDOW", cfg.Upstream.StatsWindow)

	cfg.Cache.RedisURL = envOr("REDIS_URL", cfg.Cache.RedisURL)
	cfg.Cache.TTL = envDuration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Jobs.WorkerCount = envInt("WORKER_COUNT", cfg.Jobs.WorkerCount)
	cfg.Jobs.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.Jobs.MaxQueueSize)
	cfg.Jobs.TTL = envDuration("JOB_TTL", cfg.Jobs.TTL)

	cfg.HighlighterURL = envOr("HIGHLIGHTER_URL", cfg.HighlighterURL)
	cfg.DetailConcurrency = envInt("DETAIL_CONCURRENCY", cfg.DetailConcurrency)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if err := checkURL("WEREAD_BASE_URL", c.Upstream.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("HIGHLIGHTER_URL", c.HighlighterURL); err != nil {
		errs = append(errs, err)
	}
	if c.Credentials.VaultURL != "" {
		if err := checkURL("vault_url", c.Credentials.VaultURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.Upstream.BaseDelay < 0 || c.Upstream.Jitter < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	return errors.Join(errs...)
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
