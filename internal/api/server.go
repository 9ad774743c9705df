// Package api exposes the staking analytics HTTP surface on a gin router.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/staking-analytics-api/internal/aggregate"
	"github.com/yourorg/staking-analytics-api/internal/circuitbreaker"
	"github.com/yourorg/staking-analytics-api/internal/compliance"
	"github.com/yourorg/staking-analytics-api/internal/config"
	"github.com/yourorg/staking-analytics-api/internal/explorer"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/validators"
)

// Version is reported by the health and status endpoints
const Version = "1.0.0"

// Deps are the services behind the handlers
type Deps struct {
	Aggregator *aggregate.Service
	Validators *validators.Service
	Compliance *compliance.Checker
	Explorer   *explorer.Explorer
	Sources    *source.Selector

	// Cache is only inspected for its size on /status
	Cache interface{ ItemCount() int }

	// Metrics may be shared with the services so fallbacks and cache
	// lookups land on the same registry; nil creates a fresh one
	Metrics *Metrics
}

// Server represents the API server instance
type Server struct {
	cfg       config.Config
	deps      Deps
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *Metrics
	limiter   *rate.Limiter
	engine    *gin.Engine
	server    *http.Server
	log       logrus.FieldLogger
	startTime time.Time
}

// New builds the server and its router
func New(cfg config.Config, deps Deps, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		metrics:   deps.Metrics,
		log:       log.WithField("component", "api"),
		startTime: time.Now(),
	}
	if deps.Sources != nil {
		s.breaker = deps.Sources.Breaker
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	s.engine = s.routes()
	return s
}

// Handler returns the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(s.recovery))
	router.Use(cors.New(s.corsConfig()))
	router.Use(s.requestLogger())
	if s.cfg.EnableMetrics {
		router.Use(s.metrics.middleware())
	}

	router.GET("/metrics", s.handleMetrics)
	router.GET("/status", s.handleStatus)
	router.POST("/status/circuit/reset", s.handleCircuitReset)

	api := router.Group("/api")
	api.Use(s.rateLimit())
	{
		api.GET("/health", s.handleHealth)
		api.GET("/validators", s.handleValidators)
		api.GET("/validators/:id", s.handleValidator)
		api.GET("/network-stats", s.handleNetworkStats)
		api.GET("/stakes", s.handleStakes)
		api.GET("/rewards", s.handleRewards)
		api.GET("/accounts", s.handleAccounts)
		api.GET("/accounts/enhanced", s.handleEnhancedAccounts)
		api.GET("/organization/:orgId/portfolio", s.handlePortfolio)
		api.GET("/compliance/check-address/:address", s.handleCheckAddress)
		api.POST("/compliance/bulk-check", s.handleBulkCheck)
		api.GET("/explorer/transactions", s.handleTransactions)
	}

	return router
}

func (s *Server) corsConfig() cors.Config {
	c := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.cfg.CORSOrigins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	c.MaxAge = 12 * time.Hour
	return c
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("Server stopped")
	return nil
}
