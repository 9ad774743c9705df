package analytics

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/yourorg/staking-analytics-api/internal/model"
)

// Risk factor labels
const (
	FactorRecentlyActivated = "Recently activated"
	FactorSlashed           = "Slashed validator"
	FactorExiting           = "Validator exiting"
	FactorHighValue         = "High value stake"
)

const (
	recentActivationWindow = 30 * 24 * time.Hour
	highValueThresholdETH  = 100.0
)

// ClassifyRisk maps a 0-100 score onto a risk level
func ClassifyRisk(score float64) model.RiskLevel {
	switch {
	case score < 20:
		return model.RiskLow
	case score < 50:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// StakeRisk scores a single stake. A stake without an activation timestamp is
// not considered recently activated.
func StakeRisk(stake model.Stake, now time.Time) model.RiskScore {
	var score float64
	factors := []string{}

	if stake.ActivatedAt != nil && now.Sub(*stake.ActivatedAt) < recentActivationWindow {
		score += 20
		factors = append(factors, FactorRecentlyActivated)
	}

	switch stake.State.Normalize() {
	case model.StateActiveSlashed:
		score += 50
		factors = append(factors, FactorSlashed)
	case model.StateActiveExiting:
		score += 30
		factors = append(factors, FactorExiting)
	}

	if stake.BalanceETH() > highValueThresholdETH {
		score += 10
		factors = append(factors, FactorHighValue)
	}

	score = clampScore(score)
	return model.RiskScore{Score: score, Level: ClassifyRisk(score), Factors: factors}
}

// RewardRatio is total rewards over balance, 0 when the balance is zero
func RewardRatio(stake model.Stake) float64 {
	balance := stake.BalanceETH()
	if balance <= 0 {
		return 0
	}
	return stake.RewardsETH() / balance
}

// PerformanceGrade grades a stake from 100 down, by state and reward ratio.
func PerformanceGrade(stake model.Stake) float64 {
	grade := 100.0

	switch stake.State.Normalize() {
	case model.StateActiveSlashed:
		grade -= 50
	case model.StateActiveExiting:
		grade -= 20
	case model.StateActiveOngoing:
	default:
		grade -= 10
	}

	ratio := RewardRatio(stake)
	switch {
	case ratio > 0.10:
		grade += 10
	case ratio < 0.02:
		grade -= 15
	}

	return clampScore(grade)
}

// DiversificationScore combines validator spread (40%), activation-month
// spread (30%) and balance evenness (30%). Zero for one stake or fewer.
func DiversificationScore(stakes []model.Stake) float64 {
	if len(stakes) <= 1 {
		return 0
	}
	n := float64(len(stakes))

	validators := lo.Uniq(lo.Map(stakes, func(s model.Stake, _ int) string { return s.ValidatorAddress }))
	validatorScore := float64(len(validators)) / n * 100 * 0.4

	months := lo.Uniq(lo.FilterMap(stakes, func(s model.Stake, _ int) (string, bool) {
		if s.ActivatedAt == nil {
			return "", false
		}
		return s.ActivatedAt.UTC().Format("2006-01"), true
	}))
	temporalScore := Clamp(float64(len(months))/12*100, 0, 100) * 0.3

	balances := lo.Map(stakes, func(s model.Stake, _ int) float64 { return s.BalanceETH() })
	gini := Gini(balances)
	if gini < 0 {
		gini = -gini
	}
	balanceScore := (1 - gini) * 100 * 0.3

	return round2(clampScore(validatorScore + temporalScore + balanceScore))
}

// FactorCount is a risk factor and how many stakes it applies to
type FactorCount struct {
	Factor string `json:"factor"`
	Count  int    `json:"count"`
}

// RankFactors counts risk factors across scores, most frequent first
func RankFactors(scores []model.RiskScore) []FactorCount {
	counts := lo.CountValues(lo.FlatMap(scores, func(s model.RiskScore, _ int) []string { return s.Factors }))
	ranked := lo.MapToSlice(counts, func(f string, c int) FactorCount { return FactorCount{Factor: f, Count: c} })
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Factor < ranked[j].Factor
	})
	return ranked
}

// RiskDistribution counts scores per level; every level is present
func RiskDistribution(scores []model.RiskScore) map[model.RiskLevel]int {
	dist := map[model.RiskLevel]int{model.RiskLow: 0, model.RiskMedium: 0, model.RiskHigh: 0}
	for _, s := range scores {
		dist[s.Level]++
	}
	return dist
}

// StatusDistribution counts stakes per normalized state
func StatusDistribution(stakes []model.Stake) map[model.StakeState]int {
	dist := make(map[model.StakeState]int, len(model.AllStates))
	for _, st := range model.AllStates {
		dist[st] = 0
	}
	for _, s := range stakes {
		dist[s.State.Normalize()]++
	}
	return dist
}
