// Package pricing supplies the ETH/USD price used for USD conversions.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Source returns the current ETH price in USD
type Source interface {
	ETHUSD(ctx context.Context) (float64, error)
}

// Static always returns the configured placeholder price. It is not a market feed.
type Static float64

func (s Static) ETHUSD(context.Context) (float64, error) {
	return float64(s), nil
}

// Fetcher is the upstream call behind a live price
type Fetcher interface {
	ETHPrice(ctx context.Context) (float64, error)
}

// Live asks an upstream for the price and remembers it for ttl. Any upstream
// failure falls back to the static price so conversions never fail.
type Live struct {
	fetcher  Fetcher
	fallback Static
	ttl      time.Duration

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
	now       func() time.Time
}

// NewLive wraps fetcher with a fallback price and a cache lifetime
func NewLive(fetcher Fetcher, fallback float64, ttl time.Duration) *Live {
	return &Live{fetcher: fetcher, fallback: Static(fallback), ttl: ttl, now: time.Now}
}

func (l *Live) ETHUSD(ctx context.Context) (float64, error) {
	l.mu.Lock()
	if l.price > 0 && l.now().Sub(l.fetchedAt) < l.ttl {
		price := l.price
		l.mu.Unlock()
		return price, nil
	}
	l.mu.Unlock()

	price, err := l.fetcher.ETHPrice(ctx)
	if err != nil || price <= 0 {
		logrus.WithError(err).Warn("Failed to fetch ETH price, using static price")
		return l.fallback.ETHUSD(ctx)
	}

	l.mu.Lock()
	l.price = price
	l.fetchedAt = l.now()
	l.mu.Unlock()
	return price, nil
}
