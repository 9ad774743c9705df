// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string `yaml:"port"`

	// Kiln staking API
	KilnBaseURL string `yaml:"kiln_base_url"`
	KilnAPIKey  string `yaml:"kiln_api_key"`

	// Etherscan API
	EtherscanBaseURL string `yaml:"etherscan_base_url"`
	EtherscanAPIKey  string `yaml:"etherscan_api_key"`

	// Upstream request behaviour
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	UpstreamRetryMax int           `yaml:"upstream_retry_max"`

	// Cache
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	CacheCleanupInterval time.Duration `yaml:"cache_cleanup_interval"`

	// Aggregation
	DefaultAccountLimit  int `yaml:"default_account_limit"`
	StakesPageSize       int `yaml:"stakes_page_size"`
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`

	// Pricing: "static" or "etherscan"
	PriceSource string  `yaml:"price_source"`
	ETHUSDPrice float64 `yaml:"eth_usd_price"`

	// Rate limiting for /api
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Circuit breaker around the live data source
	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold"`
	BreakerSuccessThreshold int           `yaml:"breaker_success_threshold"`
	BreakerCooldown         time.Duration `yaml:"breaker_cooldown"`

	// Compliance
	BulkCheckMaxAddresses int  `yaml:"bulk_check_max_addresses"`
	SignComplianceReports bool `yaml:"sign_compliance_reports"`

	// Allowed CORS origins; empty allows all
	CORSOrigins []string `yaml:"cors_origins"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint string `yaml:"otel_endpoint"`

	EnableMetrics bool   `yaml:"enable_metrics"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`

	// Seed for synthetic data; 0 seeds from the clock
	MockSeed int64 `yaml:"mock_seed"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Port:                    "3001",
		KilnBaseURL:             "https://api.kiln.fi",
		EtherscanBaseURL:        "https://api.etherscan.io/api",
		RequestTimeout:          10 * time.Second,
		UpstreamRetryMax:        1,
		CacheTTL:                5 * time.Minute,
		CacheCleanupInterval:    10 * time.Minute,
		DefaultAccountLimit:     3,
		StakesPageSize:          100,
		MaxConcurrentFetches:    8,
		PriceSource:             "static",
		ETHUSDPrice:             3500,
		RateLimitRPS:            20,
		RateLimitBurst:          40,
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 1,
		BreakerCooldown:         time.Minute,
		BulkCheckMaxAddresses:   100,
		SignComplianceReports:   true,
		EnableMetrics:           true,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// Load creates a new Config from defaults and environment variables
func Load() Config {
	cfg := DefaultConfig()
	applyEnvOverrides(&cfg)
	return cfg
}

// applyEnvOverrides replaces fields whose environment variable is set
func applyEnvOverrides(cfg *Config) {
	cfg.Port = GetEnvOrDefault("PORT", cfg.Port)
	cfg.KilnBaseURL = GetEnvOrDefault("KILN_API_URL", cfg.KilnBaseURL)
	cfg.KilnAPIKey = GetEnvOrDefault("KILN_API_KEY", cfg.KilnAPIKey)
	cfg.EtherscanBaseURL = GetEnvOrDefault("ETHERSCAN_API_URL", cfg.EtherscanBaseURL)
	cfg.EtherscanAPIKey = GetEnvOrDefault("ETHERSCAN_API_KEY", cfg.EtherscanAPIKey)
	cfg.RequestTimeout = GetEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.UpstreamRetryMax = GetEnvAsInt("UPSTREAM_RETRY_MAX", cfg.UpstreamRetryMax)
	cfg.CacheTTL = GetEnvAsDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.CacheCleanupInterval = GetEnvAsDuration("CACHE_CLEANUP_INTERVAL", cfg.CacheCleanupInterval)
	cfg.DefaultAccountLimit = GetEnvAsInt("DEFAULT_ACCOUNT_LIMIT", cfg.DefaultAccountLimit)
	cfg.StakesPageSize = GetEnvAsInt("STAKES_PAGE_SIZE", cfg.StakesPageSize)
	cfg.MaxConcurrentFetches = GetEnvAsInt("MAX_CONCURRENT_FETCHES", cfg.MaxConcurrentFetches)
	cfg.PriceSource = strings.ToLower(GetEnvOrDefault("PRICE_SOURCE", cfg.PriceSource))
	cfg.ETHUSDPrice = GetEnvAsFloat("ETH_USD_PRICE", cfg.ETHUSDPrice)
	cfg.RateLimitRPS = GetEnvAsFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = GetEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.BreakerFailureThreshold = GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", cfg.BreakerFailureThreshold)
	cfg.BreakerSuccessThreshold = GetEnvAsInt("BREAKER_SUCCESS_THRESHOLD", cfg.BreakerSuccessThreshold)
	cfg.BreakerCooldown = GetEnvAsDuration("BREAKER_COOLDOWN", cfg.BreakerCooldown)
	cfg.BulkCheckMaxAddresses = GetEnvAsInt("BULK_CHECK_MAX", cfg.BulkCheckMaxAddresses)
	cfg.SignComplianceReports = GetEnvAsBool("SIGN_COMPLIANCE_REPORTS", cfg.SignComplianceReports)
	cfg.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)
	cfg.EnableMetrics = GetEnvAsBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.LogLevel = strings.ToLower(GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(GetEnvOrDefault("LOG_FORMAT", cfg.LogFormat))
	cfg.MockSeed = int64(GetEnvAsInt("MOCK_SEED", int(cfg.MockSeed)))

	if raw, ok := GetEnv("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(raw)
	}
}

// Validate fills unusable numeric settings with their defaults
func (c *Config) Validate() {
	d := DefaultConfig()
	if c.DefaultAccountLimit <= 0 {
		c.DefaultAccountLimit = d.DefaultAccountLimit
	}
	if c.StakesPageSize <= 0 {
		c.StakesPageSize = d.StakesPageSize
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = d.MaxConcurrentFetches
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.UpstreamRetryMax < 0 {
		c.UpstreamRetryMax = 0
	}
	if c.ETHUSDPrice <= 0 {
		c.ETHUSDPrice = d.ETHUSDPrice
	}
	if c.BulkCheckMaxAddresses <= 0 {
		c.BulkCheckMaxAddresses = d.BulkCheckMaxAddresses
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if c.BreakerSuccessThreshold <= 0 {
		c.BreakerSuccessThreshold = d.BreakerSuccessThreshold
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetEnv retrieves an environment variable and whether it is set to a non-empty value
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists && value != ""
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
