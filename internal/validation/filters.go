// Package validation sanitizes upstream records before they reach the
// analytics and parses the query parameters of the API.
package validation

import (
	"github.com/sirupsen/logrus"

	"github.com/yourorg/staking-analytics-api/internal/model"
)

// SanitizeStakes drops stakes that carry no identifier at all and logs stakes
// whose wei fields could not be parsed. Malformed wei values already count as
// zero, so those stakes are kept.
func SanitizeStakes(stakes []model.Stake, log logrus.FieldLogger) []model.Stake {
	valid := make([]model.Stake, 0, len(stakes))
	for _, s := range stakes {
		if s.ValidatorAddress == "" && s.ID == "" {
			log.WithField("account", s.AccountID).Debug("Filtered stake without identifier")
			continue
		}
		if s.Balance.Malformed() || s.ConsensusRewards.Malformed() || s.ExecutionRewards.Malformed() {
			log.WithFields(logrus.Fields{
				"account":   s.AccountID,
				"validator": s.ValidatorAddress,
			}).Warn("Stake has malformed wei amounts, treating them as zero")
		}
		valid = append(valid, s)
	}
	return valid
}

// SanitizeRewards drops reward records without a date and logs malformed amounts
func SanitizeRewards(records []model.RewardRecord, log logrus.FieldLogger) []model.RewardRecord {
	valid := make([]model.RewardRecord, 0, len(records))
	for _, r := range records {
		if r.Date == "" {
			log.WithField("account", r.AccountID).Debug("Filtered reward record without date")
			continue
		}
		if r.ConsensusRewards.Malformed() || r.ExecutionRewards.Malformed() {
			log.WithFields(logrus.Fields{
				"account": r.AccountID,
				"date":    r.Date,
			}).Warn("Reward record has malformed wei amounts, treating them as zero")
		}
		valid = append(valid, r)
	}
	return valid
}
