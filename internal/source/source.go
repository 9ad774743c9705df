// Package source defines the data-source capability every endpoint reads
// through. A request runs against the live upstream source, and falls back to
// the synthetic source when the live call fails or the circuit breaker is open.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/staking-analytics-api/internal/circuitbreaker"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

var (
	// ErrNotFound is returned when a requested entity does not exist upstream
	ErrNotFound = errors.New("not found")

	// ErrUnsupported is returned when a source cannot serve a capability at all.
	// It triggers the fallback without counting as an upstream failure.
	ErrUnsupported = errors.New("unsupported by this source")
)

// DataSource is everything the API reads from upstream
type DataSource interface {
	Origin() types.Origin
	Accounts(ctx context.Context) ([]model.Account, error)
	Stakes(ctx context.Context, accountID string, pageSize int) ([]model.Stake, error)
	Rewards(ctx context.Context, accountID string, start, end time.Time) ([]model.RewardRecord, error)
	ValidatorStakes(ctx context.Context, limit int) ([]model.Stake, error)
	ValidatorStake(ctx context.Context, id string) (model.Stake, error)
	NetworkStats(ctx context.Context, network types.Network) (model.NetworkStats, error)
	OrganizationPortfolio(ctx context.Context, orgID string) (model.Portfolio, error)
	AddressBalance(ctx context.Context, address string) (model.WeiAmount, error)
	LatestBlock(ctx context.Context, network types.Network) (fetch.Block, error)
}

// Selector pairs the live and synthetic sources with the breaker guarding the live one
type Selector struct {
	Live      DataSource
	Synthetic DataSource
	Breaker   *circuitbreaker.CircuitBreaker

	// OnFallback, if set, is called with the capability name on every fallback
	OnFallback func(capability string)

	Logger logrus.FieldLogger
}

func (s *Selector) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

// Record feeds the outcome of a live call made outside Run into the breaker.
// Synthetic outcomes and ErrNotFound are ignored.
func (s *Selector) Record(origin types.Origin, err error) {
	if s.Breaker == nil || origin != types.OriginLive {
		return
	}
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		s.Breaker.RecordSuccess()
	case errors.Is(err, ErrUnsupported), errors.Is(err, context.Canceled):
	default:
		s.Breaker.RecordFailure(err)
	}
}

// Run executes fn against the live source and falls back to the synthetic
// source on failure. ErrNotFound from the live source is returned as is.
func Run[T any](ctx context.Context, s *Selector, capability string, fn func(DataSource) (T, error)) (T, types.Origin, error) {
	log := s.logger().WithField("capability", capability)

	if s.Live != nil && (s.Breaker == nil || s.Breaker.Allow()) {
		result, err := fn(s.Live)
		s.Record(types.OriginLive, err)
		if err == nil {
			return result, types.OriginLive, nil
		}
		if errors.Is(err, ErrNotFound) {
			return result, types.OriginLive, err
		}
		if ctx.Err() != nil {
			return result, types.OriginLive, ctx.Err()
		}
		if errors.Is(err, ErrUnsupported) {
			log.Debug("Live source does not support capability, using synthetic data")
		} else {
			log.WithError(err).Warn("Live source failed, using synthetic data")
		}
	} else if s.Live != nil {
		log.Debug("Circuit breaker open, using synthetic data")
	}

	if s.OnFallback != nil {
		s.OnFallback(capability)
	}

	result, err := fn(s.Synthetic)
	return result, types.OriginMock, err
}
