package aggregate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/staking-analytics-api/internal/analytics"
	"github.com/yourorg/staking-analytics-api/internal/cache"
	"github.com/yourorg/staking-analytics-api/internal/circuitbreaker"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/pricing"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

const eth = "000000000000000000"

// fakeKiln serves four accounts. acct1 has an ongoing stake with a 0.05 reward
// ratio and a slashed stake, acct2 always fails, acct3 has one 40 ETH stake.
func fakeKiln(t *testing.T, stakeCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	activated := time.Now().AddDate(0, 0, -400).UTC().Format(time.RFC3339)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"acct1","name":"One"},{"id":"acct2","name":"Two"},{"id":"acct3","name":"Three"},{"id":"acct4","name":"Four"}]}`))
	})
	mux.HandleFunc("/v1/eth/stakes", func(w http.ResponseWriter, r *http.Request) {
		if stakeCalls != nil {
			stakeCalls.Add(1)
		}
		switch r.URL.Query().Get("accounts") {
		case "acct1":
			fmt.Fprintf(w, `{"data":[
				{"validator_address":"0xv1","state":"active_ongoing","activated_at":%q,"balance":"32%s","consensus_rewards":"1200000000000000000","execution_rewards":"400000000000000000","gross_apy":3.5},
				{"validator_address":"0xv2","state":"active_slashed","activated_at":%q,"balance":"32%s","consensus_rewards":"0","execution_rewards":"0","gross_apy":2.5}
			]}`, activated, eth, activated, eth)
		case "acct2":
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		case "acct3":
			fmt.Fprintf(w, `{"data":[{"validator_address":"0xv3","state":"active_ongoing","activated_at":%q,"balance":"40%s"}]}`, activated, eth)
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	})
	mux.HandleFunc("/v1/eth/rewards", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("accounts") {
		case "acct1":
			_, _ = w.Write([]byte(`{"data":[
				{"date":"2024-05-01","consensus_rewards":"20000000000000000","execution_rewards":"10000000000000000","gross_apy":3.5},
				{"date":"2024-05-02","consensus_rewards":"30000000000000000","execution_rewards":"0","gross_apy":3.5}
			]}`))
		case "acct2":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"data":[]}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(baseURL string, c cache.Cache, opts Options) *Service {
	kiln := fetch.NewKilnClient(fetch.KilnConfig{BaseURL: baseURL, Timeout: 2 * time.Second})
	sel := &source.Selector{
		Live:      source.NewLive(kiln, nil),
		Synthetic: source.NewSynthetic(1),
		Breaker:   circuitbreaker.New(circuitbreaker.Options{FailureThreshold: 10}),
	}
	log, _ := test.NewNullLogger()
	if opts.DefaultAccountLimit == 0 {
		opts.DefaultAccountLimit = 3
	}
	opts.CacheTTL = time.Minute
	return NewService(c, sel, pricing.Static(2000), opts, log)
}

func TestStakes_PartialFailureIsIsolated(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.Stakes(context.Background(), StakesRequest{AccountIDs: []string{"acct1", "acct2"}, Depth: types.DepthBasic})
	require.NoError(t, err)

	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, "acct1", resp.Accounts[0].Account)
	assert.Len(t, resp.Accounts[0].Stakes, 2)
	assert.Empty(t, resp.Accounts[0].Error)

	assert.Equal(t, "acct2", resp.Accounts[1].Account)
	assert.NotNil(t, resp.Accounts[1].Stakes)
	assert.Empty(t, resp.Accounts[1].Stakes)
	assert.Contains(t, resp.Accounts[1].Error, "status 500")

	a := resp.Analytics
	assert.Equal(t, 2, a.TotalStakes)
	assert.InDelta(t, 64.0, a.TotalETHStaked, 1e-9)
	assert.InDelta(t, 128000.0, a.TotalUSDValue, 1e-6)
	assert.Equal(t, 2000.0, a.ETHUSDPrice)
	assert.InDelta(t, 3.0, a.AverageAPY, 1e-9)

	ongoing, slashed := resp.Accounts[0].Stakes[0], resp.Accounts[0].Stakes[1]
	assert.Equal(t, 32.0, ongoing.BalanceETH)
	assert.InDelta(t, 1.6, ongoing.TotalRewardsETH, 1e-9)
	assert.Equal(t, 100.0, ongoing.PerformanceGrade)
	assert.Equal(t, model.RiskLow, ongoing.RiskScore.Level)
	assert.Equal(t, 35.0, slashed.PerformanceGrade)
	assert.Equal(t, 50.0, slashed.RiskScore.Score)
	assert.Equal(t, model.RiskHigh, slashed.RiskScore.Level)

	require.Len(t, a.AccountBreakdown, 2)
	b := a.AccountBreakdown[0]
	assert.Equal(t, 2, b.StakeCount)
	assert.Equal(t, 67.5, b.AveragePerformanceGrade)
	assert.Equal(t, 1, b.RiskDistribution[model.RiskHigh])
	assert.Equal(t, 1, b.StatusDistribution[model.StateActiveSlashed])
	assert.Equal(t, 72.5, b.DiversificationScore)
	assert.Equal(t, 0, a.AccountBreakdown[1].StakeCount)
	assert.NotEmpty(t, a.AccountBreakdown[1].Error)

	assert.Equal(t, 25.0, a.Portfolio.OverallRiskScore)
	assert.Equal(t, model.RiskMedium, a.Portfolio.RiskLevel)
	assert.Equal(t, []analytics.FactorCount{{Factor: analytics.FactorSlashed, Count: 1}}, a.Portfolio.TopRiskFactors)

	assert.Equal(t, types.OriginLive, resp.Source)
	assert.False(t, resp.Cached)
	assert.False(t, resp.DefaultedAccounts)
}

func TestStakes_DefaultsToFirstAccounts(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.Stakes(context.Background(), StakesRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 3)
	assert.Equal(t, []string{"acct1", "acct2", "acct3"},
		[]string{resp.Accounts[0].Account, resp.Accounts[1].Account, resp.Accounts[2].Account})
	assert.True(t, resp.DefaultedAccounts)
	assert.Equal(t, 3, resp.Analytics.TotalStakes)
}

func TestStakes_UnknownAccountsAreDropped(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.Stakes(context.Background(), StakesRequest{AccountIDs: []string{"nope", "acct3"}})
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "acct3", resp.Accounts[0].Account)
}

func TestStakes_CachesLiveResults(t *testing.T) {
	var calls atomic.Int32
	srv := fakeKiln(t, &calls)

	var hits, misses int
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{
		OnCacheLookup: func(_ string, hit bool) {
			if hit {
				hits++
			} else {
				misses++
			}
		},
	})

	req := StakesRequest{AccountIDs: []string{"acct1"}}
	first, err := svc.Stakes(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Stakes(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Analytics.TotalStakes, second.Analytics.TotalStakes)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestStakes_PartialFailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := fakeKiln(t, &calls)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	req := StakesRequest{AccountIDs: []string{"acct1", "acct2"}}
	for i := 0; i < 2; i++ {
		resp, err := svc.Stakes(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, resp.Cached)
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestStakes_FallsBackToSyntheticWhenUpstreamIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := cache.NewTTLCache(time.Minute, time.Minute)
	svc := newTestService(srv.URL, c, Options{})

	resp, err := svc.Stakes(context.Background(), StakesRequest{})
	require.NoError(t, err)
	assert.Equal(t, types.OriginMock, resp.Source)
	assert.Len(t, resp.Accounts, 3)
	assert.Greater(t, resp.Analytics.TotalStakes, 0)
	assert.Equal(t, 0, c.ItemCount(), "synthetic results must not be cached")
}

func TestRewards(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.Rewards(context.Background(), RewardsRequest{
		AccountIDs: []string{"acct1", "acct2"},
		Timeframe:  types.Timeframe7D,
		Depth:      types.DepthAdvanced,
	})
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 2)

	acct1 := resp.Accounts[0]
	require.Len(t, acct1.Rewards, 2)
	assert.Equal(t, analytics.RewardMixed, acct1.Rewards[0].RewardType)
	assert.Equal(t, analytics.RewardConsensus, acct1.Rewards[1].RewardType)
	assert.InDelta(t, 0.03, acct1.Rewards[0].TotalRewardETH, 1e-12)
	assert.Equal(t, 50.0, acct1.Rewards[0].PerformanceRating)
	assert.Equal(t, 100.0, acct1.Summary.ConsistencyScore)
	assert.InDelta(t, 65.0, acct1.Summary.PerformanceGrade, 1e-9)
	assert.Equal(t, string(analytics.RewardMixed), acct1.Summary.DominantRewardType)

	assert.Contains(t, resp.Accounts[1].Error, "status 502")
	assert.Empty(t, resp.Accounts[1].Rewards)

	a := resp.Analytics
	assert.Equal(t, types.Timeframe7D, a.Timeframe)
	assert.InDelta(t, 0.06, a.TotalRewardsETH, 1e-12)
	assert.InDelta(t, 120.0, a.TotalRewardsUSD, 1e-9)
	assert.InDelta(t, 0.06/7, a.AverageDailyReward, 1e-12)
	assert.Equal(t, analytics.TrendStable, a.GrowthTrend.Direction)
	assert.Equal(t, 1, a.RewardTypeDistribution[analytics.RewardMixed])
	assert.Equal(t, 1, a.RewardTypeDistribution[analytics.RewardConsensus])
	assert.Len(t, a.DailySeries, 2)
	assert.Equal(t, types.DepthAdvanced, resp.AnalyticsDepth)
}

func TestEnhancedAccounts_SortedByTotalStaked(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.EnhancedAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 4)

	ids := make([]string, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"acct1", "acct3", "acct2", "acct4"}, ids)
	assert.InDelta(t, 64.0, resp.Accounts[0].Metrics.TotalValueETH, 1e-9)
	assert.NotEmpty(t, resp.Accounts[2].Metrics.Error)
}

func TestAccounts(t *testing.T) {
	srv := fakeKiln(t, nil)
	svc := newTestService(srv.URL, cache.NewTTLCache(time.Minute, time.Minute), Options{})

	resp, err := svc.Accounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Accounts, 4)
	assert.Equal(t, types.OriginLive, resp.Source)
}
