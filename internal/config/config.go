// Package config loads service configuration from defaults, an optional YAML
// file and SCRY_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Prediction store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	Chain       ChainConfig       `yaml:"chain"`
	Reputation  ReputationConfig  `yaml:"reputation"`
	Scanner     ScannerConfig     `yaml:"scanner"`
	Predictions PredictionsConfig `yaml:"predictions"`
	Tier        TierConfig        `yaml:"tier"`
	API         APIConfig         `yaml:"api"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ChainConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst           int           `yaml:"burst"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

type ReputationConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ScannerConfig struct {
	ListCount       int           `yaml:"list_count"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type PredictionsConfig struct {
	MinStake      float64       `yaml:"min_stake"`
	MaxStake      float64       `yaml:"max_stake"`
	Duration      time.Duration `yaml:"duration"`
	HouseCutBps   int64         `yaml:"house_cut_bps"`
	Store         string        `yaml:"store"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Owner         string        `yaml:"owner"` // scopes the store key to one user
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TierConfig names the token whose balance selects a holder's tier.
type TierConfig struct {
	Token    string `yaml:"token"`
	Decimals int32  `yaml:"decimals"`
}

type APIConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			Endpoint:        "http://localhost:8545",
			Timeout:         15 * time.Second,
			MaxRetries:      3,
			RateLimit:       20,
			Burst:           10,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Reputation: ReputationConfig{
			BaseURL:  "https://api.neynar.com",
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Scanner: ScannerConfig{
			ListCount:       200,
			CacheTTL:        60 * time.Second,
			RefreshInterval: 60 * time.Second,
		},
		Predictions: PredictionsConfig{
			MinStake:      10,
			MaxStake:      100,
			Duration:      24 * time.Hour,
			HouseCutBps:   1000,
			Store:         StoreMemory,
			Owner:         "default",
			SweepInterval: time.Minute,
		},
		Tier: TierConfig{
			Decimals: 18,
		},
		API: APIConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is read
// first without overriding variables already set. path may be empty; when it is,
// SCRY_CONFIG is consulted.
func Load(path string) (Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("SCRY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Chain.Endpoint == "" {
		errs = append(errs, errors.New("chain.endpoint is required"))
	}
	if c.Chain.MaxRetries < 0 {
		errs = append(errs, errors.New("chain.max_retries must be >= 0"))
	}
	if c.Scanner.ListCount <= 0 {
		errs = append(errs, errors.New("scanner.list_count must be positive"))
	}
	if c.Scanner.CacheTTL <= 0 {
		errs = append(errs, errors.New("scanner.cache_ttl must be positive"))
	}
	if c.Scanner.RefreshInterval <= 0 {
		errs = append(errs, errors.New("scanner.refresh_interval must be positive"))
	}
	if c.Predictions.MinStake < 0 {
		errs = append(errs, errors.New("predictions.min_stake must be >= 0"))
	}
	if c.Predictions.MinStake > c.Predictions.MaxStake {
		errs = append(errs, fmt.Errorf("predictions.min_stake %v exceeds max_stake %v", c.Predictions.MinStake, c.Predictions.MaxStake))
	}
	if c.Predictions.Duration <= 0 {
		errs = append(errs, errors.New("predictions.duration must be positive"))
	}
	if c.Predictions.HouseCutBps < 0 || c.Predictions.HouseCutBps > 10000 {
		errs = append(errs, errors.New("predictions.house_cut_bps must be within [0, 10000]"))
	}
	if c.Predictions.SweepInterval <= 0 {
		errs = append(errs, errors.New("predictions.sweep_interval must be positive"))
	}
	switch c.Predictions.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Predictions.PostgresDSN == "" {
			errs = append(errs, errors.New("predictions.postgres_dsn is required for the postgres store"))
		}
	case StoreRedis:
		if c.Predictions.RedisAddr == "" {
			errs = append(errs, errors.New("predictions.redis_addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown predictions.store %q", c.Predictions.Store))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// PredictionKey is the store key holding the configured owner's predictions.
func (c Config) PredictionKey() string {
	return "predictions:" + c.Predictions.Owner
}

// LoadEnvFile sets variables from a KEY=VALUE file. Existing variables win.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

func applyEnv(c *Config) error {
	e := &envReader{}

	e.str("SCRY_CHAIN_ENDPOINT", &c.Chain.Endpoint)
	e.duration("SCRY_CHAIN_TIMEOUT", &c.Chain.Timeout)
	e.integer("SCRY_CHAIN_MAX_RETRIES", &c.Chain.MaxRetries)
	e.float("SCRY_CHAIN_RATE_LIMIT", &c.Chain.RateLimit)

	e.str("SCRY_REPUTATION_BASE_URL", &c.Reputation.BaseURL)
	e.str("NEYNAR_API_KEY", &c.Reputation.APIKey)
	e.str("SCRY_REPUTATION_API_KEY", &c.Reputation.APIKey)

	e.integer("SCRY_SCANNER_LIST_COUNT", &c.Scanner.ListCount)
	e.duration("SCRY_SCANNER_CACHE_TTL", &c.Scanner.CacheTTL)
	e.duration("SCRY_SCANNER_REFRESH_INTERVAL", &c.Scanner.RefreshInterval)

	e.str("SCRY_PREDICTIONS_STORE", &c.Predictions.Store)
	e.str("SCRY_POSTGRES_DSN", &c.Predictions.PostgresDSN)
	e.str("SCRY_REDIS_ADDR", &c.Predictions.RedisAddr)
	e.str("SCRY_REDIS_PASSWORD", &c.Predictions.RedisPassword)
	e.str("SCRY_PREDICTIONS_OWNER", &c.Predictions.Owner)
	e.duration("SCRY_PREDICTIONS_SWEEP_INTERVAL", &c.Predictions.SweepInterval)

	e.str("SCRY_TIER_TOKEN", &c.Tier.Token)

	e.str("SCRY_API_ADDR", &c.API.Addr)
	if v, ok := os.LookupEnv("SCRY_API_CORS_ORIGINS"); ok {
		c.API.CORSOrigins = splitList(v)
	}
	e.str("SCRY_METRICS_ADDR", &c.Metrics.Addr)
	e.str("SCRY_LOG_LEVEL", &c.Logging.Level)
	e.str("SCRY_LOG_FORMAT", &c.Logging.Format)

	return e.err()
}

// envReader overlays set variables and collects parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("environment: %w", errors.Join(e.errs...))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
