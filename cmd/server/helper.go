package main

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/staking-analytics-api/internal/circuitbreaker"
	"github.com/yourorg/staking-analytics-api/internal/config"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/pricing"
)

// setupLogging configures the logging for the application
func setupLogging(level, format string) {
	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch strings.ToLower(level) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Debug("Logging configured")
}

// newBreaker creates the breaker guarding the live data source
func newBreaker(cfg config.Config, log logrus.FieldLogger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Options{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		CooldownPeriod:   cfg.BreakerCooldown,
		OnTrip: func(failures int, lastErr error) {
			log.WithError(lastErr).Warnf("Circuit breaker tripped after %d failures, serving synthetic data", failures)
		},
	})
}

// newPriceSource picks the ETH/USD price source. "etherscan" asks Etherscan and
// falls back to the configured static price.
func newPriceSource(cfg config.Config, etherscan *fetch.EtherscanClient, log logrus.FieldLogger) pricing.Source {
	if cfg.PriceSource == "etherscan" {
		log.Info("Using Etherscan ETH price with static fallback")
		return pricing.NewLive(etherscan, cfg.ETHUSDPrice, cfg.CacheTTL)
	}
	return pricing.Static(cfg.ETHUSDPrice)
}
