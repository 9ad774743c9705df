// Package main is the entry point for the staking analytics API, a backend
// that proxies Kiln and Etherscan and adds portfolio analytics on top.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yourorg/staking-analytics-api/internal/aggregate"
	"github.com/yourorg/staking-analytics-api/internal/api"
	"github.com/yourorg/staking-analytics-api/internal/cache"
	"github.com/yourorg/staking-analytics-api/internal/compliance"
	"github.com/yourorg/staking-analytics-api/internal/config"
	"github.com/yourorg/staking-analytics-api/internal/explorer"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/otel"
	"github.com/yourorg/staking-analytics-api/internal/security"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/validators"
)

func main() {
	app := &cli.App{
		Name:    "staking-analytics-api",
		Usage:   "Staking analytics backend for Kiln accounts",
		Version: api.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP server port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("Application error")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	cfg.Validate()

	setupLogging(cfg.LogLevel, cfg.LogFormat)

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server := newServer(cfg, logrus.StandardLogger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

// newServer wires upstream clients, data sources and services into the API server
func newServer(cfg config.Config, log logrus.FieldLogger) *api.Server {
	metrics := api.NewMetrics()

	kiln := fetch.NewKilnClient(fetch.KilnConfig{
		BaseURL:  cfg.KilnBaseURL,
		APIKey:   cfg.KilnAPIKey,
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.UpstreamRetryMax,
	})
	etherscan := fetch.NewEtherscanClient(cfg.EtherscanBaseURL, cfg.EtherscanAPIKey, cfg.RequestTimeout)

	breaker := newBreaker(cfg, log)
	metrics.RegisterBreaker(breaker)

	sources := &source.Selector{
		Live:       source.NewLive(kiln, etherscan),
		Synthetic:  source.NewSynthetic(cfg.MockSeed),
		Breaker:    breaker,
		OnFallback: metrics.ObserveFallback,
		Logger:     log.WithField("component", "source"),
	}

	ttlCache := cache.NewTTLCache(cfg.CacheTTL, cfg.CacheCleanupInterval)
	aggregator := aggregate.NewService(ttlCache, sources, newPriceSource(cfg, etherscan, log), aggregate.Options{
		DefaultAccountLimit:  cfg.DefaultAccountLimit,
		StakesPageSize:       cfg.StakesPageSize,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		CacheTTL:             cfg.CacheTTL,
		OnCacheLookup:        metrics.ObserveCacheLookup,
	}, log.WithField("component", "aggregate"))

	logrus.WithFields(logrus.Fields{
		"port":                  cfg.Port,
		"kiln_url":              cfg.KilnBaseURL,
		"cache_ttl":             cfg.CacheTTL,
		"default_account_limit": cfg.DefaultAccountLimit,
		"price_source":          cfg.PriceSource,
		"metrics":               cfg.EnableMetrics,
	}).Info("Server initialized")

	checker := compliance.NewChecker(sources, cfg.BulkCheckMaxAddresses, log.WithField("component", "compliance"))
	if cfg.SignComplianceReports {
		if signer, err := security.NewSigner(); err != nil {
			log.WithError(err).Warn("Compliance report signing disabled")
		} else {
			checker.SetSigner(signer)
			log.Infof("Signing compliance reports as %s", signer.Address())
		}
	}

	return api.New(cfg, api.Deps{
		Aggregator: aggregator,
		Validators: validators.NewService(sources, log.WithField("component", "validators")),
		Compliance: checker,
		Explorer:   explorer.New(sources, log.WithField("component", "explorer")),
		Sources:    sources,
		Cache:      ttlCache,
		Metrics:    metrics,
	}, log)
}
