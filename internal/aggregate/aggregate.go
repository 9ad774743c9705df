// Package aggregate implements the account, stake and reward aggregation
// behind the /api/stakes, /api/rewards and /api/accounts/enhanced endpoints.
package aggregate

import (
	"context"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/staking-analytics-api/internal/cache"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/pricing"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

// Options tunes the aggregation service
type Options struct {
	// Accounts used when a request names none
	DefaultAccountLimit int

	StakesPageSize       int
	MaxConcurrentFetches int
	CacheTTL             time.Duration

	// OnCacheLookup, if set, observes every cache lookup
	OnCacheLookup func(endpoint string, hit bool)
}

// Service aggregates upstream data into dashboard payloads
type Service struct {
	cache   cache.Cache
	sources *source.Selector
	prices  pricing.Source
	opts    Options
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates an aggregation service
func NewService(c cache.Cache, sources *source.Selector, prices pricing.Source, opts Options, log logrus.FieldLogger) *Service {
	if opts.DefaultAccountLimit <= 0 {
		opts.DefaultAccountLimit = 3
	}
	if opts.StakesPageSize <= 0 {
		opts.StakesPageSize = 100
	}
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = 8
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{cache: c, sources: sources, prices: prices, opts: opts, log: log, now: time.Now}
}

// Meta is attached to every aggregation response
type Meta struct {
	Source            types.Origin         `json:"source"`
	AnalyticsDepth    types.AnalyticsDepth `json:"analyticsDepth,omitempty"`
	Cached            bool                 `json:"cached"`
	DefaultedAccounts bool                 `json:"defaultedAccounts"`
	GeneratedAt       time.Time            `json:"generatedAt"`
}

// accountSet is the account listing together with the source it came from.
// Per-account fetches go to the same source so one response never mixes origins.
type accountSet struct {
	ds        source.DataSource
	accounts  []model.Account
	defaulted bool
}

// selectAccounts lists accounts and narrows them to the requested IDs. With no
// IDs the first DefaultAccountLimit accounts are used. Requested IDs unknown to
// the live source are dropped; the synthetic source serves any ID.
func (s *Service) selectAccounts(ctx context.Context, ids []string, limit bool) (accountSet, types.Origin, error) {
	set, origin, err := source.Run(ctx, s.sources, "accounts", func(ds source.DataSource) (accountSet, error) {
		accounts, err := ds.Accounts(ctx)
		return accountSet{ds: ds, accounts: accounts}, err
	})
	if err != nil {
		return accountSet{}, origin, err
	}

	switch {
	case len(ids) == 0 && limit:
		if len(set.accounts) > s.opts.DefaultAccountLimit {
			set.accounts = set.accounts[:s.opts.DefaultAccountLimit]
		}
		set.defaulted = true
		s.log.WithField("limit", s.opts.DefaultAccountLimit).Warn("No accounts requested, defaulting to the first accounts of the listing")
	case len(ids) > 0:
		byID := lo.KeyBy(set.accounts, func(a model.Account) string { return a.ID })
		selected := make([]model.Account, 0, len(ids))
		for _, id := range ids {
			acct, ok := byID[id]
			switch {
			case ok:
				selected = append(selected, acct)
			case origin == types.OriginMock:
				selected = append(selected, model.Account{ID: id})
			default:
				s.log.WithField("account", id).Warn("Requested account not found upstream, skipping")
			}
		}
		set.accounts = selected
	}
	return set, origin, nil
}

// fanOut runs fn once per account with bounded concurrency. fn records its
// outcome in its own slot, so a failing account never affects the others.
func (s *Service) fanOut(ctx context.Context, accounts []model.Account, fn func(ctx context.Context, i int, acct model.Account)) {
	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrentFetches)
	for i, acct := range accounts {
		g.Go(func() error {
			fn(ctx, i, acct)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) lookup(endpoint, key string) (any, bool) {
	v, ok := s.cache.Get(key)
	if s.opts.OnCacheLookup != nil {
		s.opts.OnCacheLookup(endpoint, ok)
	}
	return v, ok
}

func (s *Service) ethPrice(ctx context.Context) float64 {
	price, err := s.prices.ETHUSD(ctx)
	if err != nil {
		s.log.WithError(err).Warn("ETH price unavailable, USD values will be zero")
		return 0
	}
	return price
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
