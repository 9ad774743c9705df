// Package compliance screens addresses against the built-in sanctions list and
// scores them with a simple balance heuristic.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/staking-analytics-api/internal/addressbook"
	"github.com/yourorg/staking-analytics-api/internal/analytics"
	"github.com/yourorg/staking-analytics-api/internal/model"
	"github.com/yourorg/staking-analytics-api/internal/source"
)

var (
	ErrNoAddresses      = errors.New("addresses must be a non-empty array")
	ErrTooManyAddresses = errors.New("too many addresses")
)

// Risk factor labels
const (
	FactorSanctioned    = "Sanctioned address"
	FactorInvalidFormat = "Invalid address format"
	FactorHighBalance   = "High balance"
	FactorZeroBalance   = "Zero balance"
)

const (
	highBalanceETH   = 1000.0
	bulkConcurrency  = 8
	defaultBulkLimit = 100
)

// Checker screens addresses
type Checker struct {
	sources *source.Selector
	maxBulk int
	signer  ReportSigner
	log     logrus.FieldLogger
	now     func() time.Time
}

// ReportSigner signs bulk report hashes
type ReportSigner interface {
	Address() string
	SignHash(hash string) (string, error)
}

// SetSigner makes BulkCheck sign its report hash
func (c *Checker) SetSigner(s ReportSigner) {
	c.signer = s
}

// NewChecker creates a Checker. maxBulk bounds BulkCheck input.
func NewChecker(sources *source.Selector, maxBulk int, log logrus.FieldLogger) *Checker {
	if maxBulk <= 0 {
		maxBulk = defaultBulkLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{sources: sources, maxBulk: maxBulk, log: log, now: time.Now}
}

// Check screens one address. A sanctioned address scores 100. Otherwise the
// score is built from format validity and, for well-formed addresses, the
// balance. A failed balance lookup is reported on the result, never returned.
func (c *Checker) Check(ctx context.Context, address string) model.ComplianceResult {
	address = strings.TrimSpace(address)
	res := model.ComplianceResult{
		Address:     address,
		Status:      model.ComplianceClear,
		ValidFormat: common.IsHexAddress(address),
		RiskFactors: []string{},
		CheckedAt:   c.now().UTC(),
	}
	if e, ok := addressbook.Lookup(address); ok {
		res.Label = e.Label
	}

	if addressbook.IsSanctioned(address) {
		res.Status = model.ComplianceSanctioned
		res.Sanctioned = true
		res.RiskScore = 100
		res.RiskLevel = analytics.ClassifyRisk(100)
		res.RiskFactors = append(res.RiskFactors, FactorSanctioned)
		return res
	}

	var score float64
	if !res.ValidFormat {
		score += 30
		res.RiskFactors = append(res.RiskFactors, FactorInvalidFormat)
	} else {
		c.lookupBalance(ctx, &res)
		if res.BalanceETH != nil {
			switch balance := *res.BalanceETH; {
			case balance > highBalanceETH:
				score += 20
				res.RiskFactors = append(res.RiskFactors, FactorHighBalance)
			case balance == 0:
				score += 10
				res.RiskFactors = append(res.RiskFactors, FactorZeroBalance)
			}
		}
	}

	res.RiskScore = analytics.Clamp(score, 0, 100)
	res.RiskLevel = analytics.ClassifyRisk(res.RiskScore)
	return res
}

func (c *Checker) lookupBalance(ctx context.Context, res *model.ComplianceResult) {
	address := common.HexToAddress(res.Address).Hex()
	wei, origin, err := source.Run(ctx, c.sources, "balance", func(ds source.DataSource) (model.WeiAmount, error) {
		return ds.AddressBalance(ctx, address)
	})
	if err != nil {
		c.log.WithField("address", address).WithError(err).Warn("Balance lookup failed")
		res.BalanceError = err.Error()
		return
	}
	balance := wei.ETH()
	res.BalanceETH = &balance
	res.BalanceSource = string(origin)
}

// Summary counts bulk-check outcomes
type Summary struct {
	Total      int `json:"total"`
	Sanctioned int `json:"sanctioned"`
	Clear      int `json:"clear"`
	Invalid    int `json:"invalid"`
	HighRisk   int `json:"highRisk"`
}

// BulkResult is the outcome of BulkCheck
type BulkResult struct {
	Results    []model.ComplianceResult `json:"results"`
	Summary    Summary                  `json:"summary"`
	ReportHash string                   `json:"reportHash"`
	Signature  string                   `json:"signature,omitempty"`
	Signer     string                   `json:"signer,omitempty"`
	CheckedAt  time.Time                `json:"checkedAt"`
}

// BulkCheck screens every address, in input order
func (c *Checker) BulkCheck(ctx context.Context, addresses []string) (BulkResult, error) {
	if len(addresses) == 0 {
		return BulkResult{}, ErrNoAddresses
	}
	if len(addresses) > c.maxBulk {
		return BulkResult{}, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyAddresses, len(addresses), c.maxBulk)
	}

	results := make([]model.ComplianceResult, len(addresses))
	var g errgroup.Group
	g.SetLimit(bulkConcurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			results[i] = c.Check(ctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	out := BulkResult{Results: results, CheckedAt: c.now().UTC()}
	for _, r := range results {
		out.Summary.Total++
		if r.Sanctioned {
			out.Summary.Sanctioned++
		} else {
			out.Summary.Clear++
		}
		if !r.ValidFormat {
			out.Summary.Invalid++
		}
		if r.RiskLevel == model.RiskHigh {
			out.Summary.HighRisk++
		}
	}
	out.ReportHash = reportHash(results)
	if c.signer != nil {
		if sig, err := c.signer.SignHash(out.ReportHash); err != nil {
			c.log.WithError(err).Warn("Failed to sign compliance report")
		} else {
			out.Signature, out.Signer = sig, c.signer.Address()
		}
	}

	c.log.WithFields(logrus.Fields{
		"total":      out.Summary.Total,
		"sanctioned": out.Summary.Sanctioned,
	}).Info("Bulk compliance check completed")
	return out, nil
}

// reportHash is the keccak256 of one "address:status" line per result. It
// covers the screening verdicts only, so it is stable across balance changes.
func reportHash(results []model.ComplianceResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(strings.ToLower(r.Address))
		b.WriteByte(':')
		b.WriteString(r.Status)
		b.WriteByte('\n')
	}
	return crypto.Keccak256Hash([]byte(b.String())).Hex()
}
