package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/staking-analytics-api/internal/circuitbreaker"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

// stubLive answers Accounts with a fixed result or error and counts calls
type stubLive struct {
	*Synthetic
	err   error
	calls int
}

func (s *stubLive) Origin() types.Origin { return types.OriginLive }

func (s *stubLive) Accounts(_ context.Context) ([]model.Account, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []model.Account{{ID: "live-1"}}, nil
}

func newSelector(live DataSource, threshold int) (*Selector, *[]string) {
	var fallbacks []string
	return &Selector{
		Live:       live,
		Synthetic:  NewSynthetic(42),
		Breaker:    circuitbreaker.New(circuitbreaker.Options{FailureThreshold: threshold, CooldownPeriod: time.Hour}),
		OnFallback: func(c string) { fallbacks = append(fallbacks, c) },
	}, &fallbacks
}

func listAccounts(ds DataSource) ([]model.Account, error) {
	return ds.Accounts(context.Background())
}

func TestRun_LiveSuccess(t *testing.T) {
	live := &stubLive{Synthetic: NewSynthetic(1)}
	sel, fallbacks := newSelector(live, 3)

	accounts, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	require.NoError(t, err)
	assert.Equal(t, types.OriginLive, origin)
	assert.Equal(t, "live-1", accounts[0].ID)
	assert.Empty(t, *fallbacks)
}

func TestRun_FallbackOnFailure(t *testing.T) {
	live := &stubLive{Synthetic: NewSynthetic(1), err: errors.New("boom")}
	sel, fallbacks := newSelector(live, 3)

	accounts, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	require.NoError(t, err)
	assert.Equal(t, types.OriginMock, origin)
	assert.Len(t, accounts, syntheticAccounts)
	assert.Equal(t, []string{"accounts"}, *fallbacks)
	assert.Equal(t, 1, sel.Breaker.Failures())
}

func TestRun_OpenBreakerSkipsLive(t *testing.T) {
	live := &stubLive{Synthetic: NewSynthetic(1), err: errors.New("boom")}
	sel, _ := newSelector(live, 2)

	for i := 0; i < 2; i++ {
		_, _, _ = Run(context.Background(), sel, "accounts", listAccounts)
	}
	require.Equal(t, circuitbreaker.StateOpen, sel.Breaker.GetState())
	require.Equal(t, 2, live.calls)

	_, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	require.NoError(t, err)
	assert.Equal(t, types.OriginMock, origin)
	assert.Equal(t, 2, live.calls, "live source must not be called while the breaker is open")
}

func TestRun_NotFoundIsReturned(t *testing.T) {
	live := &stubLive{Synthetic: NewSynthetic(1), err: fmt.Errorf("validator x: %w", ErrNotFound)}
	sel, fallbacks := newSelector(live, 1)

	_, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, types.OriginLive, origin)
	assert.Empty(t, *fallbacks)
	assert.Equal(t, circuitbreaker.StateClosed, sel.Breaker.GetState())
}

func TestRun_UnsupportedFallsBackWithoutFailure(t *testing.T) {
	live := &stubLive{Synthetic: NewSynthetic(1), err: ErrUnsupported}
	sel, fallbacks := newSelector(live, 1)

	_, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	require.NoError(t, err)
	assert.Equal(t, types.OriginMock, origin)
	assert.Len(t, *fallbacks, 1)
	assert.Equal(t, 0, sel.Breaker.Failures())
	assert.Equal(t, circuitbreaker.StateClosed, sel.Breaker.GetState())
}

func TestRun_NoLiveSource(t *testing.T) {
	sel := &Selector{Synthetic: NewSynthetic(7)}
	_, origin, err := Run(context.Background(), sel, "accounts", listAccounts)
	require.NoError(t, err)
	assert.Equal(t, types.OriginMock, origin)
}

func TestSynthetic_StableWithinProcess(t *testing.T) {
	s := NewSynthetic(99)
	ctx := context.Background()

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	again, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, accounts, again)

	a, err := s.Stakes(ctx, accounts[0].ID, 100)
	require.NoError(t, err)
	b, err := s.Stakes(ctx, accounts[0].ID, 100)
	require.NoError(t, err)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ValidatorAddress, b[i].ValidatorAddress)
		assert.Equal(t, a[i].Balance.String(), b[i].Balance.String())
	}
	for _, st := range a {
		assert.Equal(t, accounts[0].ID, st.AccountID)
		assert.GreaterOrEqual(t, st.BalanceETH(), 32.0)
		assert.Len(t, st.ValidatorAddress, 2+96)
	}
}

func TestSynthetic_RewardsCoverWindow(t *testing.T) {
	s := NewSynthetic(5)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -30)

	records, err := s.Rewards(context.Background(), "acct", start, end)
	require.NoError(t, err)
	assert.Len(t, records, 31)
	assert.Equal(t, "2024-05-01", records[0].Date)
	for _, r := range records {
		assert.Greater(t, r.TotalRewardETH(), 0.0)
	}
}

func TestSynthetic_LatestBlock(t *testing.T) {
	s := NewSynthetic(3)
	block, err := s.LatestBlock(context.Background(), types.NetworkEthereum)
	require.NoError(t, err)
	assert.Len(t, block.Transactions, syntheticBlockTxs)
	assert.Greater(t, block.Number, uint64(19_000_000))
}

func TestLive_StakesPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("current_page") {
		case "1":
			_, _ = w.Write([]byte(`{"data":[{"validator_address":"0x1","state":"active_ongoing","balance":"32000000000000000000"}],
				"pagination":{"current_page":1,"page_size":1,"next_page":2}}`))
		default:
			_, _ = w.Write([]byte(`{"data":[{"validator_address":"0x2","state":"exited","balance":"0"}],
				"pagination":{"current_page":2,"page_size":1}}`))
		}
	}))
	defer srv.Close()

	live := NewLive(fetch.NewKilnClient(fetch.KilnConfig{BaseURL: srv.URL, Timeout: time.Second}), nil)
	stakes, err := live.Stakes(context.Background(), "acct1", 1)
	require.NoError(t, err)
	require.Len(t, stakes, 2)
	assert.Equal(t, "acct1", stakes[1].AccountID)

	_, err = live.LatestBlock(context.Background(), types.NetworkEthereum)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLive_ValidatorNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	live := NewLive(fetch.NewKilnClient(fetch.KilnConfig{BaseURL: srv.URL, Timeout: time.Second}), nil)
	_, err := live.ValidatorStake(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, ErrNotFound)
}
