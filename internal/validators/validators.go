// Package validators serves the validator list, validator detail and network
// statistics views. Uptime, commission and performance history are
// illustrative values derived from the validator key, not measurements.
package validators

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	historyDays       = 30
	epochsPerDay      = 225
	withdrawalCredLen = 66
)

// Service builds validator views through the data-source selector
type Service struct {
	sources *source.Selector
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a validator service
func NewService(sources *source.Selector, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{sources: sources, log: log, now: time.Now}
}

// ListResponse is the payload of /api/validators
type ListResponse struct {
	Validators  []model.Validator `json:"validators"`
	Count       int               `json:"count"`
	Source      types.Origin      `json:"source"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// List returns up to limit validators enriched with display metrics
func (s *Service) List(ctx context.Context, limit int) (ListResponse, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	stakes, origin, err := source.Run(ctx, s.sources, "validators", func(ds source.DataSource) ([]model.Stake, error) {
		return ds.ValidatorStakes(ctx, limit)
	})
	if err != nil {
		return ListResponse{}, err
	}
	if len(stakes) > limit {
		stakes = stakes[:limit]
	}

	resp := ListResponse{
		Validators:  make([]model.Validator, 0, len(stakes)),
		Source:      origin,
		GeneratedAt: s.now().UTC(),
	}
	for _, st := range stakes {
		resp.Validators = append(resp.Validators, enrich(st))
	}
	resp.Count = len(resp.Validators)
	return resp, nil
}

// DetailResponse is the payload of /api/validators/:id
type DetailResponse struct {
	Validator   model.Validator          `json:"validator"`
	Performance []model.PerformancePoint `json:"performance"`
	Source      types.Origin             `json:"source"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Detail returns one validator with a 30-day performance history.
// source.ErrNotFound is returned when upstream does not know the validator.
func (s *Service) Detail(ctx context.Context, id string) (DetailResponse, error) {
	stake, origin, err := source.Run(ctx, s.sources, "validator", func(ds source.DataSource) (model.Stake, error) {
		return ds.ValidatorStake(ctx, id)
	})
	if err != nil {
		return DetailResponse{}, err
	}
	v := enrich(stake)
	now := s.now().UTC()
	return DetailResponse{
		Validator:   v,
		Performance: history(v, stake.BalanceETH(), now),
		Source:      origin,
		GeneratedAt: now,
	}, nil
}

func enrich(st model.Stake) model.Validator {
	r := keyed(st.ValidatorAddress)
	apy := st.GrossAPY
	if apy <= 0 {
		apy = 3 + r.Float64()*2
	}
	return model.Validator{
		ID:          lo.CoalesceOrEmpty(st.ID, st.ValidatorAddress),
		Address:     st.ValidatorAddress,
		Index:       st.ValidatorIndex,
		Network:     string(types.NetworkEthereum),
		Status:      st.State.Normalize(),
		BalanceETH:  st.BalanceETH(),
		RewardsETH:  st.RewardsETH(),
		Uptime:      round(99+r.Float64()*0.99, 2),
		APY:         round(apy, 2),
		Commission:  round(5+r.Float64()*5, 1),
		Compliance:  complianceTag(st),
		ActivatedAt: st.ActivatedAt,
	}
}

// history generates one point per day ending today
func history(v model.Validator, balance float64, now time.Time) []model.PerformancePoint {
	r := keyed("history/" + v.Address)
	points := make([]model.PerformancePoint, 0, historyDays)
	for i := historyDays - 1; i >= 0; i-- {
		apy := v.APY + (r.Float64()-0.5)*0.6
		points = append(points, model.PerformancePoint{
			Date:         now.AddDate(0, 0, -i).Format(time.DateOnly),
			Uptime:       round(98.5+r.Float64()*1.5, 2),
			APY:          round(apy, 2),
			RewardsETH:   balance * apy / 100 / 365,
			Attestations: epochsPerDay - r.IntN(4),
		})
	}
	return points
}

// complianceTag screens the withdrawal address behind 0x01 credentials.
// Validators without such credentials cannot be screened.
func complianceTag(st model.Stake) string {
	if addressbook.IsSanctioned(st.ValidatorAddress) {
		return model.ComplianceSanctioned
	}
	creds := strings.ToLower(st.WithdrawalCredentials)
	if len(creds) != withdrawalCredLen || !strings.HasPrefix(creds, "0x01") {
		if st.ValidatorAddress == "" {
			return model.ComplianceUnknown
		}
		return model.ComplianceClear
	}
	if addressbook.IsSanctioned("0x" + creds[len(creds)-40:]) {
		return model.ComplianceSanctioned
	}
	return model.ComplianceClear
}

// NetworkSummary is the fixed summary block shown next to network stats
type NetworkSummary struct {
	TotalValueLockedUSD float64 `json:"totalValueLockedUsd"`
	ActiveOperators     int     `json:"activeOperators"`
	AverageUptime       float64 `json:"averageUptime"`
	SupportedNetworks   int     `json:"supportedNetworks"`
}

var fixedSummary = NetworkSummary{
	TotalValueLockedUSD: 45_200_000_000,
	ActiveOperators:     127,
	AverageUptime:       99.7,
	SupportedNetworks:   2,
}

// NetworkStatsResponse is the payload of /api/network-stats
type NetworkStatsResponse struct {
	Ethereum    model.NetworkStats `json:"ethereum"`
	Solana      model.NetworkStats `json:"solana"`
	Summary     NetworkSummary     `json:"summary"`
	Sources     map[string]string  `json:"sources"`
	Source      types.Origin       `json:"source"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// NetworkStats fetches Ethereum and Solana statistics concurrently. The
// response source is live only when both networks were served live.
func (s *Service) NetworkStats(ctx context.Context) (NetworkStatsResponse, error) {
	var (
		eth, sol             model.NetworkStats
		ethOrigin, solOrigin types.Origin
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		eth, ethOrigin, err = s.networkStats(gctx, types.NetworkEthereum)
		return err
	})
	g.Go(func() error {
		var err error
		sol, solOrigin, err = s.networkStats(gctx, types.NetworkSolana)
		return err
	})
	if err := g.Wait(); err != nil {
		return NetworkStatsResponse{}, err
	}

	origin := types.OriginLive
	if ethOrigin != types.OriginLive || solOrigin != types.OriginLive {
		origin = types.OriginMock
	}
	return NetworkStatsResponse{
		Ethereum:    eth,
		Solana:      sol,
		Summary:     fixedSummary,
		Sources:     map[string]string{"ethereum": string(ethOrigin), "solana": string(solOrigin)},
		Source:      origin,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *Service) networkStats(ctx context.Context, network types.Network) (model.NetworkStats, types.Origin, error) {
	return source.Run(ctx, s.sources, "network_stats", func(ds source.DataSource) (model.NetworkStats, error) {
		return ds.NetworkStats(ctx, network)
	})
}

// keyed returns a generator that is stable for a given key
func keyed(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewPCG(h.Sum64(), 0x9e3779b97f4a7c15))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
