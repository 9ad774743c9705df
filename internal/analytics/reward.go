package analytics

import (
	"sort"

	"github.com/samber/lo"
	"github.com/yourorg/staking-analytics-api/internal/model"
)

// RewardType says which reward components of a record are positive
type RewardType string

const (
	RewardConsensus RewardType = "CONSENSUS"
	RewardExecution RewardType = "EXECUTION"
	RewardMixed     RewardType = "MIXED"
	RewardNone      RewardType = "NONE"
)

// Trend directions
const (
	TrendIncreasing = "INCREASING"
	TrendDecreasing = "DECREASING"
	TrendStable     = "STABLE"
)

// dailyRiskFreeRate is the assumed risk-free return per day
const dailyRiskFreeRate = 0.0002

// ClassifyRewardType inspects the consensus and execution components
func ClassifyRewardType(r model.RewardRecord) RewardType {
	consensus := r.ConsensusRewards.ETH() > 0
	execution := r.ExecutionRewards.ETH() > 0
	switch {
	case consensus && execution:
		return RewardMixed
	case consensus:
		return RewardConsensus
	case execution:
		return RewardExecution
	default:
		return RewardNone
	}
}

// PerformanceRating rates a reward record from a base of 50 using reward size
// and gross APY (percent) bands.
func PerformanceRating(r model.RewardRecord) float64 {
	rating := 50.0

	reward := r.TotalRewardETH()
	switch {
	case reward > 0.1:
		rating += 20
	case reward > 0.05:
		rating += 10
	case reward < 0.01:
		rating -= 15
	}

	switch {
	case r.GrossAPY > 6:
		rating += 15
	case r.GrossAPY > 4:
		rating += 5
	case r.GrossAPY < 3:
		rating -= 10
	}

	return clampScore(rating)
}

// ConsistencyScore is 100 minus the coefficient of variation in percent,
// floored at 0. Fewer than two points are perfectly consistent.
func ConsistencyScore(amounts []float64) float64 {
	if len(amounts) < 2 {
		return 100
	}
	mean := Mean(amounts)
	if mean <= 0 {
		return 0
	}
	cv := StdDev(amounts) / mean
	return round2(clampScore(100 - cv*100))
}

// AccountPerformanceGrade weights the mean record rating against consistency
func AccountPerformanceGrade(ratings []float64, consistency float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	return round2(0.7*Mean(ratings) + 0.3*consistency)
}

// AverageDailyReward spreads a total over the days of the window
func AverageDailyReward(total float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return total / float64(days)
}

// Trend is the direction and size of change between two halves of a series
type Trend struct {
	Direction     string  `json:"direction"`
	ChangePercent float64 `json:"changePercent"`
}

// GrowthTrend compares the first-half and second-half averages at a 5% threshold.
// A series growing from a zero baseline is reported as +100%.
func GrowthTrend(series []float64) Trend {
	if len(series) < 2 {
		return Trend{Direction: TrendStable}
	}
	half := len(series) / 2
	first := Mean(series[:half])
	second := Mean(series[half:])

	var change float64
	switch {
	case first > 0:
		change = (second - first) / first * 100
	case second > 0:
		change = 100
	}

	direction := TrendStable
	switch {
	case change > 5:
		direction = TrendIncreasing
	case change < -5:
		direction = TrendDecreasing
	}
	return Trend{Direction: direction, ChangePercent: round2(change)}
}

// DailyReturn converts a gross APY percentage into a daily return
func DailyReturn(grossAPY float64) float64 {
	return grossAPY / 100 / 365
}

// SharpeRatio is mean excess daily return over its standard deviation
func SharpeRatio(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	std := StdDev(dailyReturns)
	if std < 1e-12 {
		return 0
	}
	return round2((Mean(dailyReturns) - dailyRiskFreeRate) / std)
}

// MaxDrawdown is the largest peak-to-trough drop of the cumulative series, in percent
func MaxDrawdown(series []float64) float64 {
	var cumulative, peak, worst float64
	for _, v := range series {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			if dd := (peak - cumulative) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return round2(worst)
}

// VolatilityScore is 100 minus the standard deviation of day-over-day
// percentage changes. Days following a zero are skipped.
func VolatilityScore(series []float64) float64 {
	changes := make([]float64, 0, len(series))
	for i := 1; i < len(series); i++ {
		if series[i-1] > 0 {
			changes = append(changes, (series[i]-series[i-1])/series[i-1]*100)
		}
	}
	return clampScore(100 - StdDev(changes))
}

// StabilityScore blends consistency (60%) with the volatility score (40%)
func StabilityScore(series []float64) float64 {
	return round2(0.6*ConsistencyScore(series) + 0.4*VolatilityScore(series))
}

// DailyPoint is the reward total for one calendar day
type DailyPoint struct {
	Date       string  `json:"date"`
	RewardsETH float64 `json:"rewardsEth"`
	AvgAPY     float64 `json:"avgApy"`
}

// DailySeries groups records by day in ascending date order.
func DailySeries(records []model.RewardRecord) []DailyPoint {
	type bucket struct {
		total float64
		apys  []float64
	}
	buckets := map[string]*bucket{}
	for _, r := range records {
		key := r.Date
		if d, ok := r.Day(); ok {
			key = d.Format("2006-01-02")
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total += r.TotalRewardETH()
		b.apys = append(b.apys, r.GrossAPY)
	}

	points := make([]DailyPoint, 0, len(buckets))
	for date, b := range buckets {
		points = append(points, DailyPoint{Date: date, RewardsETH: b.total, AvgAPY: Mean(b.apys)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// Amounts extracts the reward totals of a daily series
func Amounts(points []DailyPoint) []float64 {
	return lo.Map(points, func(p DailyPoint, _ int) float64 { return p.RewardsETH })
}

// RewardTypeDistribution counts records per reward type; every type is present
func RewardTypeDistribution(records []model.RewardRecord) map[RewardType]int {
	dist := map[RewardType]int{RewardConsensus: 0, RewardExecution: 0, RewardMixed: 0, RewardNone: 0}
	for _, r := range records {
		dist[ClassifyRewardType(r)]++
	}
	return dist
}
