package compliance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/security"
	"github.com/yourorg/staking-analytics-api/internal/source"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

// balanceSource is a live source with a fixed balance for every address
type balanceSource struct {
	*source.Synthetic
	balance model.WeiAmount
	err     error
}

func (b *balanceSource) Origin() types.Origin { return types.OriginLive }

func (b *balanceSource) AddressBalance(context.Context, string) (model.WeiAmount, error) {
	return b.balance, b.err
}

func newChecker(live source.DataSource, maxBulk int) *Checker {
	log, _ := test.NewNullLogger()
	return NewChecker(&source.Selector{Live: live, Synthetic: source.NewSynthetic(1), Logger: log}, maxBulk, log)
}

const wellFormed = "0x1111111111111111111111111111111111111111"

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		live        *balanceSource
		wantStatus  string
		wantScore   float64
		wantLevel   model.RiskLevel
		wantFactors []string
		wantValid   bool
	}{
		{
			name:        "sanctioned",
			address:     strings.ToLower(addressbook.Sanctioned[0].Address),
			wantStatus:  model.ComplianceSanctioned,
			wantScore:   100,
			wantLevel:   model.RiskHigh,
			wantFactors: []string{FactorSanctioned},
			wantValid:   true,
		},
		{
			name:        "short address is clear but malformed",
			address:     "0x0000000000000000000000000000000000dEaD",
			wantStatus:  model.ComplianceClear,
			wantScore:   30,
			wantLevel:   model.RiskMedium,
			wantFactors: []string{FactorInvalidFormat},
		},
		{
			name:        "zero balance",
			address:     wellFormed,
			live:        &balanceSource{balance: model.NewWei("0")},
			wantStatus:  model.ComplianceClear,
			wantScore:   10,
			wantLevel:   model.RiskLow,
			wantFactors: []string{FactorZeroBalance},
			wantValid:   true,
		},
		{
			name:        "high balance",
			address:     wellFormed,
			live:        &balanceSource{balance: model.NewWei("5000000000000000000000")},
			wantStatus:  model.ComplianceClear,
			wantScore:   20,
			wantLevel:   model.RiskMedium,
			wantFactors: []string{FactorHighBalance},
			wantValid:   true,
		},
		{
			name:        "ordinary balance",
			address:     wellFormed,
			live:        &balanceSource{balance: model.NewWei("2500000000000000000")},
			wantStatus:  model.ComplianceClear,
			wantScore:   0,
			wantLevel:   model.RiskLow,
			wantFactors: []string{},
			wantValid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var live source.DataSource
			if tt.live != nil {
				tt.live.Synthetic = source.NewSynthetic(1)
				live = tt.live
			}
			res := newChecker(live, 10).Check(context.Background(), tt.address)

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantScore, res.RiskScore)
			assert.Equal(t, tt.wantLevel, res.RiskLevel)
			assert.Equal(t, tt.wantFactors, res.RiskFactors)
			assert.Equal(t, tt.wantValid, res.ValidFormat)
		})
	}
}

func TestCheck_MalformedAddressSkipsBalance(t *testing.T) {
	live := &balanceSource{Synthetic: source.NewSynthetic(1), balance: model.NewWei("0")}
	res := newChecker(live, 10).Check(context.Background(), "not-an-address")
	assert.Nil(t, res.BalanceETH)
	assert.Empty(t, res.BalanceSource)
}

func TestCheck_BalanceFallsBackToSynthetic(t *testing.T) {
	live := &balanceSource{Synthetic: source.NewSynthetic(1), err: errors.New("etherscan down")}
	res := newChecker(live, 10).Check(context.Background(), wellFormed)
	require.NotNil(t, res.BalanceETH)
	assert.Equal(t, string(types.OriginMock), res.BalanceSource)
	assert.Equal(t, model.ComplianceClear, res.Status)
}

func TestBulkCheck_Rejects(t *testing.T) {
	c := newChecker(nil, 2)

	_, err := c.BulkCheck(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAddresses)

	_, err = c.BulkCheck(context.Background(), []string{wellFormed, wellFormed, wellFormed})
	assert.ErrorIs(t, err, ErrTooManyAddresses)
}

func TestBulkCheck(t *testing.T) {
	c := newChecker(nil, 10)
	addresses := []string{
		addressbook.Sanctioned[1].Address,
		wellFormed,
		"0xdead",
	}

	res, err := c.BulkCheck(context.Background(), addresses)
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	for i, r := range res.Results {
		assert.Equal(t, addresses[i], r.Address)
	}
	assert.Equal(t, Summary{Total: 3, Sanctioned: 1, Clear: 2, Invalid: 1, HighRisk: 1}, res.Summary)
	assert.Len(t, res.ReportHash, 66)

	again, err := c.BulkCheck(context.Background(), addresses)
	require.NoError(t, err)
	assert.Equal(t, res.ReportHash, again.ReportHash)
}

func TestBulkCheck_SignsReport(t *testing.T) {
	c := newChecker(nil, 10)
	signer, err := security.NewSigner()
	require.NoError(t, err)
	c.SetSigner(signer)

	res, err := c.BulkCheck(context.Background(), []string{wellFormed})
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), res.Signer)
	assert.NoError(t, security.Verify(res.ReportHash, res.Signature, res.Signer))
}
