package model

import "time"

// Validator is the display view of a validator behind one or more stakes.
// Uptime and commission are illustrative values, not measured.
type Validator struct {
	ID          string     `json:"id"`
	Address     string     `json:"address"`
	Index       int64      `json:"index,omitempty"`
	Network     string     `json:"network"`
	Status      StakeState `json:"status"`
	BalanceETH  float64    `json:"balanceEth"`
	RewardsETH  float64    `json:"rewardsEth"`
	Uptime      float64    `json:"uptime"`
	APY         float64    `json:"apy"`
	Commission  float64    `json:"commission"`
	Compliance  string     `json:"compliance"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
}

// PerformancePoint is one day of a validator's performance history
type PerformancePoint struct {
	Date         string  `json:"date"`
	Uptime       float64 `json:"uptime"`
	APY          float64 `json:"apy"`
	RewardsETH   float64 `json:"rewardsEth"`
	Attestations int     `json:"attestations"`
}

// NetworkStats mirrors the Kiln network-stats payload for one network.
type NetworkStats struct {
	Network        string     `json:"network"`
	GrossAPY       float64    `json:"network_gross_apy"`
	StakedPercent  float64    `json:"supply_staked_percent"`
	ValidatorCount int64      `json:"nb_validators"`
	TotalStaked    float64    `json:"total_staked,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Portfolio is an organization portfolio proxied verbatim from upstream
type Portfolio map[string]any

// Transaction is one tagged transaction from the latest-block sample
type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to,omitempty"`
	ValueETH    float64   `json:"valueEth"`
	BlockNumber uint64    `json:"blockNumber"`
	Network     string    `json:"network"`
	Tag         string    `json:"tag"`
	Timestamp   time.Time `json:"timestamp"`
}

// Compliance statuses
const (
	ComplianceClear      = "CLEAR"
	ComplianceSanctioned = "SANCTIONED"
	ComplianceUnknown    = "UNKNOWN"
)

// ComplianceResult is the screening outcome for one address
type ComplianceResult struct {
	Address       string    `json:"address"`
	Status        string    `json:"status"`
	Sanctioned    bool      `json:"sanctioned"`
	Label         string    `json:"label,omitempty"`
	ValidFormat   bool      `json:"validFormat"`
	BalanceETH    *float64  `json:"balanceEth"`
	BalanceSource string    `json:"balanceSource,omitempty"`
	BalanceError  string    `json:"balanceError,omitempty"`
	RiskScore     float64   `json:"riskScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	RiskFactors   []string  `json:"riskFactors"`
	CheckedAt     time.Time `json:"checkedAt"`
}
