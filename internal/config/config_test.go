package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Scanner.ListCount)
	assert.Equal(t, 60*time.Second, cfg.Scanner.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Predictions.Duration)
	assert.Equal(t, int64(1000), cfg.Predictions.HouseCutBps)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeFile(t, "scry.yaml", `
chain:
  endpoint: https://gateway.example/rpc
  timeout: 5s
scanner:
  list_count: 50
  refresh_interval: 2m
predictions:
  store: redis
  redis_addr: localhost:6379
  min_stake: 1
api:
  cors_origins: ["https://scry.example"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.example/rpc", cfg.Chain.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Chain.Timeout)
	assert.Equal(t, 3, cfg.Chain.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.Scanner.ListCount)
	assert.Equal(t, 2*time.Minute, cfg.Scanner.RefreshInterval)
	assert.Equal(t, StoreRedis, cfg.Predictions.Store)
	assert.Equal(t, 1.0, cfg.Predictions.MinStake)
	assert.Equal(t, 100.0, cfg.Predictions.MaxStake)
	assert.Equal(t, []string{"https://scry.example"}, cfg.API.CORSOrigins)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "scry.yaml", "scanner:\n  list_count: 50\n")
	t.Setenv("SCRY_SCANNER_LIST_COUNT", "75")
	t.Setenv("SCRY_CHAIN_TIMEOUT", "1s")
	t.Setenv("SCRY_API_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SCRY_REPUTATION_API_KEY", "k")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Scanner.ListCount)
	assert.Equal(t, time.Second, cfg.Chain.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, "k", cfg.Reputation.APIKey)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "scry.yaml", "metrics:\n  addr: \":9999\"\n")
	t.Setenv("SCRY_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("SCRY_SCANNER_CACHE_TTL", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "SCRY_SCANNER_CACHE_TTL")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"min above max", func(c *Config) { c.Predictions.MinStake = 200 }, "exceeds max_stake"},
		{"zero ttl", func(c *Config) { c.Scanner.CacheTTL = 0 }, "cache_ttl"},
		{"unknown store", func(c *Config) { c.Predictions.Store = "s3" }, "unknown predictions.store"},
		{"postgres without dsn", func(c *Config) { c.Predictions.Store = StorePostgres }, "postgres_dsn"},
		{"house cut over 100%", func(c *Config) { c.Predictions.HouseCutBps = 10001 }, "house_cut_bps"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", `
# comment
SCRY_TEST_FROM_FILE="from file"
SCRY_TEST_EXISTING=file
not a pair
`)
	t.Setenv("SCRY_TEST_EXISTING", "env")
	t.Cleanup(func() { os.Unsetenv("SCRY_TEST_FROM_FILE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from file", os.Getenv("SCRY_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("SCRY_TEST_EXISTING"))

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestPredictionKey(t *testing.T) {
	cfg := Default()
	cfg.Predictions.Owner = "0xabc"
	assert.Equal(t, "predictions:0xabc", cfg.PredictionKey())
}
