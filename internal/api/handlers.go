package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/staking-analytics-api/internal/aggregate"
	"github.com/yourorg/staking-analytics-api/internal/compliance"
	"github.com/yourorg/staking-analytics-api/internal/explorer"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
	"github.com/yourorg/staking-analytics-api/internal/validation"
	"github.com/yourorg/staking-analytics-api/internal/validators"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// errorResponse maps err onto a status code and writes the error body
func (s *Server) errorResponse(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, validation.ErrInvalidTimeframe),
		errors.Is(err, validation.ErrInvalidDepth),
		errors.Is(err, validation.ErrInvalidLimit),
		errors.Is(err, validation.ErrInvalidNetwork),
		errors.Is(err, compliance.ErrNoAddresses),
		errors.Is(err, compliance.ErrTooManyAddresses):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrNotFound):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error(msg)
	}
	c.JSON(status, errorBody{Error: msg, Details: err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleValidators(c *gin.Context) {
	limit, err := validation.ParseLimit(c.Query("limit"), validators.DefaultLimit, validators.MaxLimit)
	if err != nil {
		s.errorResponse(c, "Invalid limit", err)
		return
	}
	res, err := s.deps.Validators.List(c.Request.Context(), limit)
	if err != nil {
		s.errorResponse(c, "Failed to fetch validators", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleValidator(c *gin.Context) {
	res, err := s.deps.Validators.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.errorResponse(c, "Failed to fetch validator", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleNetworkStats(c *gin.Context) {
	res, err := s.deps.Validators.NetworkStats(c.Request.Context())
	if err != nil {
		s.errorResponse(c, "Failed to fetch network stats", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStakes(c *gin.Context) {
	depth, err := validation.ParseDepth(c.Query("analytics"))
	if err != nil {
		s.errorResponse(c, "Invalid analytics depth", err)
		return
	}
	res, err := s.deps.Aggregator.Stakes(c.Request.Context(), aggregate.StakesRequest{
		AccountIDs: validation.ParseAccountIDs(c.Query("accounts")),
		Depth:      depth,
	})
	if err != nil {
		s.errorResponse(c, "Failed to fetch stakes", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRewards(c *gin.Context) {
	timeframe, err := validation.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		s.errorResponse(c, "Invalid timeframe", err)
		return
	}
	depth, err := validation.ParseDepth(c.Query("analytics"))
	if err != nil {
		s.errorResponse(c, "Invalid analytics depth", err)
		return
	}
	res, err := s.deps.Aggregator.Rewards(c.Request.Context(), aggregate.RewardsRequest{
		AccountIDs: validation.ParseAccountIDs(c.Query("accounts")),
		Timeframe:  timeframe,
		Depth:      depth,
	})
	if err != nil {
		s.errorResponse(c, "Failed to fetch rewards", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAccounts(c *gin.Context) {
	res, err := s.deps.Aggregator.Accounts(c.Request.Context())
	if err != nil {
		s.errorResponse(c, "Failed to fetch accounts", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleEnhancedAccounts(c *gin.Context) {
	res, err := s.deps.Aggregator.EnhancedAccounts(c.Request.Context())
	if err != nil {
		s.errorResponse(c, "Failed to fetch enhanced accounts", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type portfolioResponse struct {
	Portfolio   model.Portfolio `json:"portfolio"`
	Source      types.Origin    `json:"source"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

func (s *Server) handlePortfolio(c *gin.Context) {
	ctx := c.Request.Context()
	orgID := c.Param("orgId")

	p, origin, err := source.Run(ctx, s.deps.Sources, "portfolio", func(ds source.DataSource) (model.Portfolio, error) {
		return ds.OrganizationPortfolio(ctx, orgID)
	})
	if err != nil {
		s.errorResponse(c, "Failed to fetch organization portfolio", err)
		return
	}
	c.JSON(http.StatusOK, portfolioResponse{Portfolio: p, Source: origin, GeneratedAt: time.Now().UTC()})
}

func (s *Server) handleCheckAddress(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Compliance.Check(c.Request.Context(), c.Param("address")))
}

type bulkCheckRequest struct {
	Addresses []string `json:"addresses"`
}

func (s *Server) handleBulkCheck(c *gin.Context) {
	var req bulkCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid request body", Details: err.Error()})
		return
	}
	addresses := make([]string, 0, len(req.Addresses))
	for _, a := range req.Addresses {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	res, err := s.deps.Compliance.BulkCheck(c.Request.Context(), addresses)
	if err != nil {
		s.errorResponse(c, "Invalid addresses", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTransactions(c *gin.Context) {
	network, err := validation.ParseNetwork(c.Query("network"))
	if err != nil {
		s.errorResponse(c, "Invalid network", err)
		return
	}
	limit, err := validation.ParseLimit(c.Query("limit"), explorer.DefaultLimit, explorer.MaxLimit)
	if err != nil {
		s.errorResponse(c, "Invalid limit", err)
		return
	}
	res, err := s.deps.Explorer.LatestTransactions(c.Request.Context(), network, limit)
	if err != nil {
		s.errorResponse(c, "Failed to fetch transactions", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(c *gin.Context) {
	if !s.cfg.EnableMetrics {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "Metrics disabled"})
		return
	}
	s.metrics.handler().ServeHTTP(c.Writer, c.Request)
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"status":  "operational",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"version": Version,
		"configuration": gin.H{
			"default_account_limit":  s.cfg.DefaultAccountLimit,
			"cache_ttl":              s.cfg.CacheTTL.String(),
			"price_source":           s.cfg.PriceSource,
			"max_concurrent_fetches": s.cfg.MaxConcurrentFetches,
			"kiln_configured":        s.cfg.KilnAPIKey != "",
			"etherscan_configured":   s.cfg.EtherscanAPIKey != "",
		},
	}
	if s.deps.Cache != nil {
		status["cache_items"] = s.deps.Cache.ItemCount()
	}
	if s.breaker != nil {
		status["circuit_state"] = s.breaker.GetState()
		status["circuit_failures"] = s.breaker.Failures()
	}
	c.JSON(http.StatusOK, status)
}

// handleCircuitReset closes the breaker so the next request tries upstream again
func (s *Server) handleCircuitReset(c *gin.Context) {
	if s.breaker == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "Circuit breaker not enabled"})
		return
	}
	s.breaker.Reset()
	s.log.Info("Circuit breaker reset via API")
	c.JSON(http.StatusOK, gin.H{
		"state":   s.breaker.GetState(),
		"message": "Circuit breaker reset",
	})
}
