package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/fetch"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/types"
)

const (
	syntheticAccounts   = 5
	syntheticBlockTxs   = 25
	maxSyntheticRewards = 366
)

var syntheticNamespace = uuid.MustParse("5b2c7c1e-4f0a-4d55-9d8e-6f1b7a3c2e90")

// Synthetic produces random but structurally valid data. Each entity is
// generated from a generator keyed by its identity, so repeated calls for the
// same account or validator agree with each other within a process.
type Synthetic struct {
	seed uint64
	now  func() time.Time
}

// NewSynthetic creates a synthetic source. A zero seed picks one from the clock.
func NewSynthetic(seed int64) *Synthetic {
	s := uint64(seed)
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	return &Synthetic{seed: s, now: time.Now}
}

func (s *Synthetic) rng(key string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewPCG(s.seed, h.Sum64()))
}

func (s *Synthetic) Origin() types.Origin { return types.OriginMock }

// SyntheticAccountID returns the stable ID of the i-th synthetic account
func SyntheticAccountID(i int) string {
	return uuid.NewSHA1(syntheticNamespace, []byte(fmt.Sprintf("account-%d", i))).String()
}

func (s *Synthetic) Accounts(_ context.Context) ([]model.Account, error) {
	names := []string{"Treasury", "Operations", "Growth Fund", "Cold Reserve", "Client Pool"}
	accounts := make([]model.Account, 0, syntheticAccounts)
	for i := 0; i < syntheticAccounts; i++ {
		accounts = append(accounts, model.Account{
			ID:          SyntheticAccountID(i),
			Name:        names[i%len(names)],
			Description: "Synthetic account",
		})
	}
	return accounts, nil
}

func (s *Synthetic) Stakes(_ context.Context, accountID string, _ int) ([]model.Stake, error) {
	r := s.rng("stakes/" + accountID)
	n := 2 + r.IntN(5)
	stakes := make([]model.Stake, 0, n)
	for i := 0; i < n; i++ {
		st := s.stake(r, pubkey(r))
		st.AccountID = accountID
		stakes = append(stakes, st)
	}
	return stakes, nil
}

func (s *Synthetic) stake(r *rand.Rand, validator string) model.Stake {
	now := s.now().UTC()
	ageDays := 5 + r.IntN(700)
	activated := now.AddDate(0, 0, -ageDays)

	balance := 32 + r.Float64()*0.4
	if r.Float64() < 0.1 {
		balance = 64 + r.Float64()*1900
	}
	apy := 2.6 + r.Float64()*1.8
	earned := balance * apy / 100 * float64(ageDays) / 365
	execShare := 0.2 + r.Float64()*0.3

	return model.Stake{
		ID:               uuid.NewSHA1(syntheticNamespace, []byte(validator)).String(),
		ValidatorAddress: validator,
		ValidatorIndex:   int64(400000 + r.IntN(900000)),
		State:            randomState(r),
		ActivatedAt:      &activated,
		Balance:          model.WeiFromETH(balance),
		ConsensusRewards: model.WeiFromETH(earned * (1 - execShare)),
		ExecutionRewards: model.WeiFromETH(earned * execShare),
		GrossAPY:         apy,
	}
}

func randomState(r *rand.Rand) model.StakeState {
	switch p := r.Float64(); {
	case p < 0.75:
		return model.StateActiveOngoing
	case p < 0.83:
		return model.StatePending
	case p < 0.90:
		return model.StateActiveExiting
	case p < 0.95:
		return model.StateExited
	default:
		return model.StateActiveSlashed
	}
}

func (s *Synthetic) Rewards(_ context.Context, accountID string, start, end time.Time) ([]model.RewardRecord, error) {
	r := s.rng("rewards/" + accountID)
	validators := 2 + r.IntN(5)
	balance := float64(validators) * 32

	var records []model.RewardRecord
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end) && len(records) < maxSyntheticRewards; d = d.AddDate(0, 0, 1) {
		consensus := float64(validators) * (0.002 + r.Float64()*0.002)
		execution := 0.0
		if r.Float64() < 0.7 {
			execution = float64(validators) * r.Float64() * 0.003
		}
		records = append(records, model.RewardRecord{
			AccountID:        accountID,
			Date:             d.Format("2006-01-02"),
			ConsensusRewards: model.WeiFromETH(consensus),
			ExecutionRewards: model.WeiFromETH(execution),
			GrossAPY:         2.8 + r.Float64()*1.7,
			StakeBalance:     model.WeiFromETH(balance),
		})
	}
	return records, nil
}

func (s *Synthetic) ValidatorStakes(_ context.Context, limit int) ([]model.Stake, error) {
	r := s.rng("validators")
	stakes := make([]model.Stake, 0, limit)
	for i := 0; i < limit; i++ {
		stakes = append(stakes, s.stake(r, pubkey(r)))
	}
	return stakes, nil
}

func (s *Synthetic) ValidatorStake(_ context.Context, id string) (model.Stake, error) {
	return s.stake(s.rng("validator/"+id), id), nil
}

func (s *Synthetic) NetworkStats(_ context.Context, network types.Network) (model.NetworkStats, error) {
	r := s.rng("network/" + string(network))
	now := s.now().UTC()
	stats := model.NetworkStats{Network: network.KilnSlug(), UpdatedAt: &now}
	switch network {
	case types.NetworkSolana:
		stats.GrossAPY = 6.5 + r.Float64()*1.5
		stats.StakedPercent = 60 + r.Float64()*8
		stats.ValidatorCount = int64(1300 + r.IntN(400))
		stats.TotalStaked = 380_000_000 + r.Float64()*20_000_000
	default:
		stats.GrossAPY = 2.9 + r.Float64()*1.0
		stats.StakedPercent = 26 + r.Float64()*4
		stats.ValidatorCount = int64(1_000_000 + r.IntN(80_000))
		stats.TotalStaked = 33_000_000 + r.Float64()*2_000_000
	}
	return stats, nil
}

func (s *Synthetic) OrganizationPortfolio(_ context.Context, orgID string) (model.Portfolio, error) {
	r := s.rng("portfolio/" + orgID)
	stakes := 3 + r.IntN(40)
	balance := float64(stakes) * 32
	rewards := balance * (0.01 + r.Float64()*0.05)
	return model.Portfolio{
		"organization_id":   orgID,
		"total_stakes":      stakes,
		"total_balance_eth": balance,
		"total_rewards_eth": rewards,
		"networks":          []string{string(types.NetworkEthereum)},
	}, nil
}

func (s *Synthetic) AddressBalance(_ context.Context, address string) (model.WeiAmount, error) {
	r := s.rng("balance/" + address)
	if r.Float64() < 0.1 {
		return model.NewWei("0"), nil
	}
	return model.WeiFromETH(r.Float64() * 50), nil
}

// LatestBlock generates a block whose transactions hit a mix of known and random counterparties
func (s *Synthetic) LatestBlock(_ context.Context, network types.Network) (fetch.Block, error) {
	now := s.now().UTC()
	r := rand.New(rand.NewPCG(s.seed, uint64(now.UnixNano())))

	block := fetch.Block{Timestamp: now}
	switch network {
	case types.NetworkSolana:
		block.Number = 250_000_000 + uint64(r.IntN(10_000_000))
	default:
		block.Number = 19_000_000 + uint64(r.IntN(2_000_000))
	}

	for i := 0; i < syntheticBlockTxs; i++ {
		tx := fetch.RPCTransaction{
			From:  randomAddress(r),
			Value: hexutil.EncodeBig(randomWei(r)),
		}
		if network == types.NetworkSolana {
			tx.Hash = base58String(r, 88)
			tx.From = base58String(r, 44)
			to := base58String(r, 44)
			tx.To = &to
		} else {
			tx.Hash = "0x" + randomHex(r, 32)
			switch p := r.Float64(); {
			case p < 0.05:
				// contract creation
			case p < 0.35:
				to := addressbook.Known[r.IntN(len(addressbook.Known))].Address
				tx.To = &to
			default:
				to := randomAddress(r)
				tx.To = &to
			}
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

func randomWei(r *rand.Rand) *big.Int {
	eth := r.Float64() * 5
	if r.Float64() < 0.1 {
		eth = 32
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(1e18)).Int(nil)
	return wei
}

func randomHex(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return hex.EncodeToString(b)
}

func randomAddress(r *rand.Rand) string {
	return "0x" + randomHex(r, 20)
}

// pubkey returns a random 48-byte BLS public key
func pubkey(r *rand.Rand) string {
	return "0x" + randomHex(r, 48)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func base58String(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base58Alphabet[r.IntN(len(base58Alphabet))]
	}
	return string(b)
}
