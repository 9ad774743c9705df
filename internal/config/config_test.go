package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "KILN_API_KEY", "CACHE_TTL", "DEFAULT_ACCOUNT_LIMIT", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 3, cfg.DefaultAccountLimit)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3500.0, cfg.ETHUSDPrice)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KILN_API_KEY", "kiln-secret")
	t.Setenv("ETHERSCAN_API_KEY", "scan-secret")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("ETH_USD_PRICE", "2000.5")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://dash.example.com,")
	t.Setenv("STAKES_PAGE_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "kiln-secret", cfg.KilnAPIKey)
	assert.Equal(t, "scan-secret", cfg.EtherscanAPIKey)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 2000.5, cfg.ETHUSDPrice)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 100, cfg.StakesPageSize, "invalid values keep the default")
}

func TestLoadFile_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "4000"
kiln_base_url: https://kiln.test
cache_ttl: 2m
default_account_limit: 5
cors_origins:
  - http://localhost:3000
`), 0o600))

	t.Setenv("PORT", "")
	t.Setenv("KILN_API_URL", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("DEFAULT_ACCOUNT_LIMIT", "7")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "https://kiln.test", cfg.KilnBaseURL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 7, cfg.DefaultAccountLimit)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 3500.0, cfg.ETHUSDPrice, "unset keys keep defaults")
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{UpstreamRetryMax: -2}
	cfg.Validate()
	assert.Equal(t, 3, cfg.DefaultAccountLimit)
	assert.Equal(t, 0, cfg.UpstreamRetryMax)
	assert.Equal(t, 100, cfg.BulkCheckMaxAddresses)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}
