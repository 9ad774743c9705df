// Package model defines the core data structures for the staking analytics API.
package model

import (
	"strings"
	"time"
)

// Account is an organizational grouping of stakes, as returned by Kiln.
type Account struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// StakeState is the lifecycle state of a stake
type StakeState string

const (
	StatePending       StakeState = "pending"
	StateActiveOngoing StakeState = "active_ongoing"
	StateActiveExiting StakeState = "active_exiting"
	StateActiveSlashed StakeState = "active_slashed"
	StateExited        StakeState = "exited"
)

// AllStates lists the normalized lifecycle states in display order
var AllStates = []StakeState{StatePending, StateActiveOngoing, StateActiveExiting, StateActiveSlashed, StateExited}

// Normalize folds upstream state variants onto the five lifecycle states.
// Unknown values are returned lower-cased but otherwise untouched.
func (s StakeState) Normalize() StakeState {
	v := StakeState(strings.ToLower(strings.TrimSpace(string(s))))
	switch {
	case v == StatePending, strings.HasPrefix(string(v), "pending_"), v == "deposit_in_progress":
		return StatePending
	case v == StateActiveOngoing, v == "active":
		return StateActiveOngoing
	case v == StateActiveExiting:
		return StateActiveExiting
	case v == StateActiveSlashed, v == "slashed":
		return StateActiveSlashed
	case v == StateExited, strings.HasPrefix(string(v), "exited_"), strings.HasPrefix(string(v), "withdrawal_"):
		return StateExited
	}
	return v
}

// Stake is a unit of delegated capital bound to one validator and one account.
// Wei fields are decoded leniently; see WeiAmount.
type Stake struct {
	ID                    string     `json:"id,omitempty"`
	AccountID             string     `json:"account_id,omitempty"`
	ValidatorAddress      string     `json:"validator_address"`
	ValidatorIndex        int64      `json:"validator_index,omitempty"`
	State                 StakeState `json:"state"`
	ActivatedAt           *time.Time `json:"activated_at,omitempty"`
	Balance               WeiAmount  `json:"balance"`
	ConsensusRewards      WeiAmount  `json:"consensus_rewards"`
	ExecutionRewards      WeiAmount  `json:"execution_rewards"`
	GrossAPY              float64    `json:"gross_apy,omitempty"`
	WithdrawalCredentials string     `json:"withdrawal_credentials,omitempty"`
}

// BalanceETH returns the stake balance in ETH
func (s Stake) BalanceETH() float64 {
	return s.Balance.ETH()
}

// RewardsETH returns consensus plus execution rewards in ETH
func (s Stake) RewardsETH() float64 {
	return s.ConsensusRewards.Add(s.ExecutionRewards).ETH()
}

// RewardRecord is one reward data point for an account (and optionally a stake).
type RewardRecord struct {
	AccountID        string    `json:"account_id,omitempty"`
	StakeID          string    `json:"validator_address,omitempty"`
	Date             string    `json:"date"`
	ConsensusRewards WeiAmount `json:"consensus_rewards"`
	ExecutionRewards WeiAmount `json:"execution_rewards"`
	GrossAPY         float64   `json:"gross_apy"`
	StakeBalance     WeiAmount `json:"stake_balance"`
}

// TotalRewardETH recomputes the total from its two components; an upstream
// aggregate field is never trusted.
func (r RewardRecord) TotalRewardETH() float64 {
	return r.ConsensusRewards.Add(r.ExecutionRewards).ETH()
}

// Day parses the record date, accepting both date-only and RFC3339 forms.
func (r RewardRecord) Day() (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", r.Date); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, r.Date); err == nil {
		return t.UTC().Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}

// RiskLevel buckets a 0-100 risk score
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskScore is a clamped risk score with its level and the factors that contributed
type RiskScore struct {
	Score   float64   `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}
