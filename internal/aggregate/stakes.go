package aggregate

import (
	"context"
	"net/url"
	"sort"
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

// StakesRequest selects the accounts to aggregate
type StakesRequest struct {
	AccountIDs []string
	Depth      types.AnalyticsDepth
}

// StakeView is an upstream stake with its derived metrics
type StakeView struct {
	model.Stake
	BalanceETH          float64         `json:"balanceEth"`
	ConsensusRewardsETH float64         `json:"consensusRewardsEth"`
	ExecutionRewardsETH float64         `json:"executionRewardsEth"`
	TotalRewardsETH     float64         `json:"totalRewardsEth"`
	RiskScore           model.RiskScore `json:"riskScore"`
	PerformanceGrade    float64         `json:"performanceGrade"`
}

// AccountStakes is one account's stakes; Error is set when its fetch failed
type AccountStakes struct {
	Account string      `json:"account"`
	Name    string      `json:"name,omitempty"`
	Stakes  []StakeView `json:"stakes"`
	Error   string      `json:"error,omitempty"`
}

// AccountBreakdown holds the per-account portfolio metrics
type AccountBreakdown struct {
	Account                 string                   `json:"account"`
	Name                    string                   `json:"name,omitempty"`
	StakeCount              int                      `json:"stakeCount"`
	TotalValueETH           float64                  `json:"totalValueEth"`
	TotalValueUSD           float64                  `json:"totalValueUsd"`
	TotalRewardsETH         float64                  `json:"totalRewardsEth"`
	AveragePerformanceGrade float64                  `json:"averagePerformanceGrade"`
	AverageRiskScore        float64                  `json:"averageRiskScore"`
	RiskDistribution        map[model.RiskLevel]int  `json:"riskDistribution"`
	StatusDistribution      map[model.StakeState]int `json:"statusDistribution"`
	DiversificationScore    float64                  `json:"diversificationScore"`
	Error                   string                   `json:"error,omitempty"`
}

// PortfolioRisk summarizes risk across every aggregated stake
type PortfolioRisk struct {
	OverallRiskScore     float64                 `json:"overallRiskScore"`
	RiskLevel            model.RiskLevel         `json:"riskLevel"`
	TopRiskFactors       []analytics.FactorCount `json:"topRiskFactors"`
	DiversificationScore float64                 `json:"diversificationScore"`
}

// StakeAnalytics is the analytics block of a stakes response
type StakeAnalytics struct {
	TotalStakes      int                `json:"totalStakes"`
	TotalETHStaked   float64            `json:"totalEthStaked"`
	TotalUSDValue    float64            `json:"totalUsdValue"`
	ETHUSDPrice      float64            `json:"ethUsdPrice"`
	AverageAPY       float64            `json:"averageApy"`
	AccountBreakdown []AccountBreakdown `json:"accountBreakdown"`
	Portfolio        PortfolioRisk      `json:"portfolio"`
}

// StakesResponse is the payload of /api/stakes
type StakesResponse struct {
	Accounts  []AccountStakes `json:"accounts"`
	Analytics StakeAnalytics  `json:"analytics"`
	Meta
}

// Stakes aggregates the stakes of the requested accounts. A failed fetch for
// one account yields an empty, error-annotated entry for it; the rest of the
// aggregation is unaffected.
func (s *Service) Stakes(ctx context.Context, req StakesRequest) (StakesResponse, error) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.Stakes")
	defer span.End()

	key := cache.Key("stakes", url.Values{"accounts": req.AccountIDs, "analytics": {string(req.Depth)}})
	if v, ok := s.lookup("stakes", key); ok {
		if resp, ok := v.(StakesResponse); ok {
			resp.Cached = true
			return resp, nil
		}
	}

	set, origin, err := s.selectAccounts(ctx, req.AccountIDs, true)
	if err != nil {
		otel.RecordError(ctx, err)
		return StakesResponse{}, err
	}
	span.SetAttributes(attribute.Int("accounts", len(set.accounts)), attribute.String("source", string(origin)))

	accounts := s.fetchStakes(ctx, set, origin)
	now := s.now()
	price := s.ethPrice(ctx)

	resp := StakesResponse{
		Accounts:  make([]AccountStakes, 0, len(accounts)),
		Analytics: StakeAnalytics{ETHUSDPrice: price, AccountBreakdown: make([]AccountBreakdown, 0, len(accounts))},
		Meta: Meta{
			Source:            origin,
			AnalyticsDepth:    req.Depth,
			DefaultedAccounts: set.defaulted,
			GeneratedAt:       now.UTC(),
		},
	}

	var (
		allStakes []model.Stake
		allRisks  []model.RiskScore
		failed    bool
	)
	for _, acct := range accounts {
		views := buildStakeViews(acct.stakes, now)
		entry := AccountStakes{Account: acct.account.ID, Name: acct.account.Name, Stakes: views}
		if acct.err != nil {
			entry.Error = acct.err.Error()
			failed = true
		}
		resp.Accounts = append(resp.Accounts, entry)

		breakdown := breakdownFor(acct.account, acct.stakes, views, price)
		breakdown.Error = entry.Error
		resp.Analytics.AccountBreakdown = append(resp.Analytics.AccountBreakdown, breakdown)

		allStakes = append(allStakes, acct.stakes...)
		allRisks = append(allRisks, lo.Map(views, func(v StakeView, _ int) model.RiskScore { return v.RiskScore })...)
	}

	resp.Analytics.TotalStakes = len(allStakes)
	resp.Analytics.TotalETHStaked = lo.SumBy(allStakes, func(st model.Stake) float64 { return st.BalanceETH() })
	resp.Analytics.TotalUSDValue = round2(resp.Analytics.TotalETHStaked * price)
	resp.Analytics.AverageAPY = round2(analytics.Mean(lo.Map(allStakes, func(st model.Stake, _ int) float64 { return st.GrossAPY })))
	resp.Analytics.Portfolio = portfolioRisk(allStakes, allRisks)

	if origin == types.OriginLive && !failed {
		s.cache.Set(key, resp, s.opts.CacheTTL)
	}
	return resp, nil
}

type accountStakes struct {
	account model.Account
	stakes  []model.Stake
	err     error
}

// fetchStakes fetches every account's stakes concurrently from the source the
// account listing came from.
func (s *Service) fetchStakes(ctx context.Context, set accountSet, origin types.Origin) []accountStakes {
	results := make([]accountStakes, len(set.accounts))
	s.fanOut(ctx, set.accounts, func(ctx context.Context, i int, acct model.Account) {
		stakes, err := set.ds.Stakes(ctx, acct.ID, s.opts.StakesPageSize)
		s.sources.Record(origin, err)
		if err != nil {
			s.log.WithFields(logrus.Fields{"account": acct.ID, "source": origin}).WithError(err).Error("Failed to fetch stakes")
			results[i] = accountStakes{account: acct, stakes: []model.Stake{}, err: err}
			return
		}
		for j := range stakes {
			if stakes[j].AccountID == "" {
				stakes[j].AccountID = acct.ID
			}
		}
		results[i] = accountStakes{account: acct, stakes: validation.SanitizeStakes(stakes, s.log)}
	})
	return results
}

func buildStakeViews(stakes []model.Stake, now time.Time) []StakeView {
	views := make([]StakeView, 0, len(stakes))
	for _, st := range stakes {
		consensus := st.ConsensusRewards.ETH()
		execution := st.ExecutionRewards.ETH()
		views = append(views, StakeView{
			Stake:               st,
			BalanceETH:          st.BalanceETH(),
			ConsensusRewardsETH: consensus,
			ExecutionRewardsETH: execution,
			TotalRewardsETH:     st.RewardsETH(),
			RiskScore:           analytics.StakeRisk(st, now),
			PerformanceGrade:    analytics.PerformanceGrade(st),
		})
	}
	return views
}

func breakdownFor(acct model.Account, stakes []model.Stake, views []StakeView, price float64) AccountBreakdown {
	risks := lo.Map(views, func(v StakeView, _ int) model.RiskScore { return v.RiskScore })
	total := lo.SumBy(views, func(v StakeView) float64 { return v.BalanceETH })
	return AccountBreakdown{
		Account:                 acct.ID,
		Name:                    acct.Name,
		StakeCount:              len(views),
		TotalValueETH:           total,
		TotalValueUSD:           round2(total * price),
		TotalRewardsETH:         lo.SumBy(views, func(v StakeView) float64 { return v.TotalRewardsETH }),
		AveragePerformanceGrade: round2(analytics.Mean(lo.Map(views, func(v StakeView, _ int) float64 { return v.PerformanceGrade }))),
		AverageRiskScore:        round2(analytics.Mean(lo.Map(risks, func(r model.RiskScore, _ int) float64 { return r.Score }))),
		RiskDistribution:        analytics.RiskDistribution(risks),
		StatusDistribution:      analytics.StatusDistribution(stakes),
		DiversificationScore:    analytics.DiversificationScore(stakes),
	}
}

func portfolioRisk(stakes []model.Stake, risks []model.RiskScore) PortfolioRisk {
	overall := round2(analytics.Mean(lo.Map(risks, func(r model.RiskScore, _ int) float64 { return r.Score })))
	return PortfolioRisk{
		OverallRiskScore:     overall,
		RiskLevel:            analytics.ClassifyRisk(overall),
		TopRiskFactors:       analytics.RankFactors(risks),
		DiversificationScore: analytics.DiversificationScore(stakes),
	}
}

// EnhancedAccount is an upstream account with its stake metrics
type EnhancedAccount struct {
	model.Account
	Metrics AccountBreakdown `json:"metrics"`
}

// EnhancedAccountsResponse is the payload of /api/accounts/enhanced
type EnhancedAccountsResponse struct {
	Accounts []EnhancedAccount `json:"accounts"`
	Meta
}

// EnhancedAccounts returns every account with its per-account metrics, sorted
// by total staked ETH, largest first.
func (s *Service) EnhancedAccounts(ctx context.Context) (EnhancedAccountsResponse, error) {
	ctx, span := otel.Tracer().Start(ctx, "aggregate.EnhancedAccounts")
	defer span.End()

	key := cache.Key("accounts/enhanced", nil)
	if v, ok := s.lookup("accounts/enhanced", key); ok {
		if resp, ok := v.(EnhancedAccountsResponse); ok {
			resp.Cached = true
			return resp, nil
		}
	}

	set, origin, err := s.selectAccounts(ctx, nil, false)
	if err != nil {
		otel.RecordError(ctx, err)
		return EnhancedAccountsResponse{}, err
	}

	now := s.now()
	price := s.ethPrice(ctx)
	fetched := s.fetchStakes(ctx, set, origin)

	resp := EnhancedAccountsResponse{
		Accounts: make([]EnhancedAccount, 0, len(fetched)),
		Meta:     Meta{Source: origin, GeneratedAt: now.UTC()},
	}
	failed := false
	for _, acct := range fetched {
		breakdown := breakdownFor(acct.account, acct.stakes, buildStakeViews(acct.stakes, now), price)
		if acct.err != nil {
			breakdown.Error = acct.err.Error()
			failed = true
		}
		resp.Accounts = append(resp.Accounts, EnhancedAccount{Account: acct.account, Metrics: breakdown})
	}
	sort.SliceStable(resp.Accounts, func(i, j int) bool {
		return resp.Accounts[i].Metrics.TotalValueETH > resp.Accounts[j].Metrics.TotalValueETH
	})

	if origin == types.OriginLive && !failed {
		s.cache.Set(key, resp, s.opts.CacheTTL)
	}
	return resp, nil
}

// AccountsResponse is the payload of /api/accounts
type AccountsResponse struct {
	Accounts []model.Account `json:"accounts"`
	Meta
}

// Accounts returns the raw account listing
func (s *Service) Accounts(ctx context.Context) (AccountsResponse, error) {
	set, origin, err := s.selectAccounts(ctx, nil, false)
	if err != nil {
		return AccountsResponse{}, err
	}
	if set.accounts == nil {
		set.accounts = []model.Account{}
	}
	return AccountsResponse{Accounts: set.accounts, Meta: Meta{Source: origin, GeneratedAt: s.now().UTC()}}, nil
}
