package validators

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

// liveStub serves a fixed validator set and fails network stats for Solana
type liveStub struct {
	*source.Synthetic
	stakes []model.Stake
}

func (l *liveStub) Origin() types.Origin { return types.OriginLive }

func (l *liveStub) ValidatorStakes(_ context.Context, limit int) ([]model.Stake, error) {
	return l.stakes, nil
}

func (l *liveStub) ValidatorStake(_ context.Context, id string) (model.Stake, error) {
	for _, st := range l.stakes {
		if st.ValidatorAddress == id {
			return st, nil
		}
	}
	return model.Stake{}, fmt.Errorf("validator %s: %w", id, source.ErrNotFound)
}

func (l *liveStub) NetworkStats(ctx context.Context, network types.Network) (model.NetworkStats, error) {
	if network == types.NetworkSolana {
		return model.NetworkStats{}, errors.New("sol stats unavailable")
	}
	return model.NetworkStats{Network: "eth", GrossAPY: 3.2, ValidatorCount: 1_000_000}, nil
}

func sanctionedCreds() string {
	addr := addressbook.Sanctioned[0].Address
	return "0x010000000000000000000000" + addr[2:]
}

func newService() *Service {
	log, _ := test.NewNullLogger()
	live := &liveStub{
		Synthetic: source.NewSynthetic(1),
		stakes: []model.Stake{
			{ValidatorAddress: "0xaaa", State: "active_ongoing", Balance: model.NewWei("32000000000000000000"), GrossAPY: 3.456},
			{ValidatorAddress: "0xbbb", State: "exited_unslashed", WithdrawalCredentials: sanctionedCreds()},
		},
	}
	return NewService(&source.Selector{Live: live, Synthetic: source.NewSynthetic(1), Logger: log}, log)
}

func TestList(t *testing.T) {
	resp, err := newService().List(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, types.OriginLive, resp.Source)
	require.Equal(t, 2, resp.Count)

	v := resp.Validators[0]
	assert.Equal(t, "0xaaa", v.ID)
	assert.Equal(t, 32.0, v.BalanceETH)
	assert.Equal(t, 3.46, v.APY)
	assert.GreaterOrEqual(t, v.Uptime, 99.0)
	assert.LessOrEqual(t, v.Uptime, 99.99)
	assert.GreaterOrEqual(t, v.Commission, 5.0)
	assert.LessOrEqual(t, v.Commission, 10.0)
	assert.Equal(t, model.ComplianceClear, v.Compliance)

	exited := resp.Validators[1]
	assert.Equal(t, model.StateExited, exited.Status)
	assert.Equal(t, model.ComplianceSanctioned, exited.Compliance)
	assert.GreaterOrEqual(t, exited.APY, 3.0)
	assert.LessOrEqual(t, exited.APY, 5.0)
}

func TestList_StableEnrichment(t *testing.T) {
	svc := newService()
	a, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	b, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, a.Validators, b.Validators)
}

func TestDetail(t *testing.T) {
	svc := newService()
	svc.now = func() time.Time { return time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC) }

	resp, err := svc.Detail(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Len(t, resp.Performance, 30)
	assert.Equal(t, "2024-05-02", resp.Performance[0].Date)
	assert.Equal(t, "2024-05-31", resp.Performance[29].Date)
	for _, p := range resp.Performance {
		assert.InDelta(t, 99.25, p.Uptime, 0.75)
		assert.Greater(t, p.RewardsETH, 0.0)
		assert.InDelta(t, 223.5, float64(p.Attestations), 1.5)
	}
}

func TestDetail_NotFound(t *testing.T) {
	_, err := newService().Detail(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestNetworkStats(t *testing.T) {
	resp, err := newService().NetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.2, resp.Ethereum.GrossAPY)
	assert.Equal(t, "sol", resp.Solana.Network)
	assert.Equal(t, "live", resp.Sources["ethereum"])
	assert.Equal(t, "mock", resp.Sources["solana"])
	assert.Equal(t, types.OriginMock, resp.Source)
	assert.Equal(t, fixedSummary, resp.Summary)
}
