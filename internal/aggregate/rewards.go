package aggregate

import (
	"context"
	"net/url"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/staking-analytics-api/internal/analytics"
	"github.com/yourorg/staking-analytics-api/internal/cache"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/otel"
	"github.com/yourorg/staking-analytics-api/internal/types"
	"github.com/yourorg/staking-analytics-api/internal/validation"
)

// RewardsRequest selects accounts and the reward window
type RewardsRequest struct {
	AccountIDs []string
	Timeframe  types.Timeframe
	Depth      types.AnalyticsDepth
}

// RewardView is a reward record with its derived fields
type RewardView struct {
	model.RewardRecord
	ConsensusRewardsETH float64              `json:"consensusRewardsEth"`
	ExecutionRewardsETH float64              `json:"executionRewardsEth"`
	TotalRewardETH      float64              `json:"totalRewardEth"`
	RewardType          analytics.RewardType `json:"rewardType"`
	PerformanceRating   float64              `json:"performanceRating"`
}

// RewardSummary holds the per-account reward metrics
type RewardSummary struct {
	TotalRewardsETH    float64 `json:"totalRewardsEth"`
	RecordCount        int     `json:"recordCount"`
	AverageRating      float64 `json:"averageRating"`
	ConsistencyScore   float64 `json:"consistencyScore"`
	PerformanceGrade   float64 `json:"performanceGrade"`
	AverageAPY         float64 `json:"averageApy"`
	AverageDailyETH    float64 `json:"averageDailyEth"`
	DominantRewardType string  `json:"dominantRewardType"`
}

// AccountRewards is one account's rewards; Error is set when its fetch failed
type AccountRewards struct {
	Account string        `json:"account"`
	Name    string        `json:"name,omitempty"`
	Rewards []RewardView  `json:"rewards"`
	Summary RewardSummary `json:"summary"`
	Error   string        `json:"error,omitempty"`
}

// RewardAnalytics is the portfolio-level analytics block of a rewards response
type RewardAnalytics struct {
	Timeframe              types.Timeframe              `json:"timeframe"`
	StartDate              string                       `json:"startDate"`
	EndDate                string                       `json:"endDate"`
	TotalRewardsETH        float64                      `json:"totalRewardsEth"`
	TotalRewardsUSD        float64                      `json:"totalRewardsUsd"`
	ETHUSDPrice            float64                      `json:"ethUsdPrice"`
	TotalRecords           int                          `json:"totalRecords"`
	AverageDailyReward     float64                      `json:"averageDailyReward"`
	AverageAPY             float64                      `json:"averageApy"`
	GrowthTrend            analytics.Trend              `json:"growthTrend"`
	SharpeRatio            float64                      `json:"sharpeRatio"`
	MaxDrawdown            float64                      `json:"maxDrawdown"`
	ConsistencyScore       float64                      `json:"consistencyScore"`
	StabilityScore         float64                      `json:"stabilityScore"`
	RewardTypeDistribution map[analytics.RewardType]int `json:"rewardTypeDistribution"`
	DailySeries            []analytics.DailyPoint       `json:"dailySeries"`
}

// RewardsResponse is the payload of /api/rewards
type RewardsResponse struct {
	Accounts  []AccountRewards `json:"accounts"`
	Analytics RewardAnalytics  `json:"analytics"`
	Meta
}

// Rewards aggregates reward records of the requested accounts over the timeframe
func (s *Service) Rewards(ctx context.Context, req RewardsRequest) (RewardsResponse, error) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.Rewards")
	defer span.End()

	if !req.Timeframe.Valid() {
		req.Timeframe = types.DefaultTimeframe
	}

	key := cache.Key("rewards", url.Values{
		"accounts":  req.AccountIDs,
		"timeframe": {string(req.Timeframe)},
		"analytics": {string(req.Depth)},
	})
	if v, ok := s.lookup("rewards", key); ok {
		if resp, ok := v.(RewardsResponse); ok {
			resp.Cached = true
			return resp, nil
		}
	}

	set, origin, err := s.selectAccounts(ctx, req.AccountIDs, true)
	if err != nil {
		otel.RecordError(ctx, err)
		return RewardsResponse{}, err
	}
	span.SetAttributes(attribute.Int("accounts", len(set.accounts)), attribute.String("timeframe", string(req.Timeframe)))

	now := s.now()
	start, end := req.Timeframe.Window(now)
	days := req.Timeframe.Days()

	results := make([]AccountRewards, len(set.accounts))
	records := make([][]model.RewardRecord, len(set.accounts))
	failed := false
	s.fanOut(ctx, set.accounts, func(ctx context.Context, i int, acct model.Account) {
		recs, err := set.ds.Rewards(ctx, acct.ID, start, end)
		s.sources.Record(origin, err)
		entry := AccountRewards{Account: acct.ID, Name: acct.Name, Rewards: []RewardView{}}
		if err != nil {
			s.log.WithFields(logrus.Fields{"account": acct.ID, "source": origin}).WithError(err).Error("Failed to fetch rewards")
			entry.Error = err.Error()
			entry.Summary = summarize(nil, days)
			results[i] = entry
			return
		}
		recs = validation.SanitizeRewards(recs, s.log)
		records[i] = recs
		entry.Rewards = buildRewardViews(recs)
		entry.Summary = summarize(recs, days)
		results[i] = entry
	})

	all := lo.Flatten(records)
	for _, r := range results {
		if r.Error != "" {
			failed = true
		}
	}

	price := s.ethPrice(ctx)
	resp := RewardsResponse{
		Accounts:  results,
		Analytics: portfolioRewards(all, days, price),
		Meta: Meta{
			Source:            origin,
			AnalyticsDepth:    req.Depth,
			DefaultedAccounts: set.defaulted,
			GeneratedAt:       now.UTC(),
		},
	}
	resp.Analytics.Timeframe = req.Timeframe
	resp.Analytics.StartDate = start.Format(time.DateOnly)
	resp.Analytics.EndDate = end.Format(time.DateOnly)

	if origin == types.OriginLive && !failed {
		s.cache.Set(key, resp, s.opts.CacheTTL)
	}
	return resp, nil
}

func buildRewardViews(records []model.RewardRecord) []RewardView {
	return lo.Map(records, func(r model.RewardRecord, _ int) RewardView {
		return RewardView{
			RewardRecord:        r,
			ConsensusRewardsETH: r.ConsensusRewards.ETH(),
			ExecutionRewardsETH: r.ExecutionRewards.ETH(),
			TotalRewardETH:      r.TotalRewardETH(),
			RewardType:          analytics.ClassifyRewardType(r),
			PerformanceRating:   analytics.PerformanceRating(r),
		}
	})
}

func summarize(records []model.RewardRecord, days int) RewardSummary {
	ratings := lo.Map(records, func(r model.RewardRecord, _ int) float64 { return analytics.PerformanceRating(r) })
	total := lo.SumBy(records, func(r model.RewardRecord) float64 { return r.TotalRewardETH() })
	consistency := analytics.ConsistencyScore(analytics.Amounts(analytics.DailySeries(records)))
	return RewardSummary{
		TotalRewardsETH:    total,
		RecordCount:        len(records),
		AverageRating:      round2(analytics.Mean(ratings)),
		ConsistencyScore:   consistency,
		PerformanceGrade:   analytics.AccountPerformanceGrade(ratings, consistency),
		AverageAPY:         round2(analytics.Mean(lo.Map(records, func(r model.RewardRecord, _ int) float64 { return r.GrossAPY }))),
		AverageDailyETH:    analytics.AverageDailyReward(total, days),
		DominantRewardType: string(dominantType(analytics.RewardTypeDistribution(records))),
	}
}

// dominantType picks the most frequent reward type, NONE when there are no records
func dominantType(dist map[analytics.RewardType]int) analytics.RewardType {
	best, bestCount := analytics.RewardNone, 0
	for _, t := range []analytics.RewardType{analytics.RewardMixed, analytics.RewardConsensus, analytics.RewardExecution, analytics.RewardNone} {
		if dist[t] > bestCount {
			best, bestCount = t, dist[t]
		}
	}
	return best
}

func portfolioRewards(records []model.RewardRecord, days int, price float64) RewardAnalytics {
	series := analytics.DailySeries(records)
	amounts := analytics.Amounts(series)
	returns := lo.Map(series, func(p analytics.DailyPoint, _ int) float64 { return analytics.DailyReturn(p.AvgAPY) })
	total := lo.Sum(amounts)

	return RewardAnalytics{
		TotalRewardsETH:        total,
		TotalRewardsUSD:        round2(total * price),
		ETHUSDPrice:            price,
		TotalRecords:           len(records),
		AverageDailyReward:     analytics.AverageDailyReward(total, days),
		AverageAPY:             round2(analytics.Mean(lo.Map(records, func(r model.RewardRecord, _ int) float64 { return r.GrossAPY }))),
		GrowthTrend:            analytics.GrowthTrend(amounts),
		SharpeRatio:            analytics.SharpeRatio(returns),
		MaxDrawdown:            analytics.MaxDrawdown(amounts),
		ConsistencyScore:       analytics.ConsistencyScore(amounts),
		StabilityScore:         analytics.StabilityScore(amounts),
		RewardTypeDistribution: analytics.RewardTypeDistribution(records),
		DailySeries:            series,
	}
}
