package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/yourorg/staking-analytics-api/internal/types"
)

var (
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrInvalidDepth     = errors.New("invalid analytics depth")
	ErrInvalidLimit     = errors.New("invalid limit")
	ErrInvalidNetwork   = errors.New("invalid network")
)

// ParseAccountIDs splits a comma-separated account list, dropping blanks and duplicates
func ParseAccountIDs(raw string) []string {
	ids := lo.Map(strings.Split(raw, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(ids))
}

// ParseTimeframe accepts 7d, 30d, 90d or 1y; empty selects 30d
func ParseTimeframe(raw string) (types.Timeframe, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return types.DefaultTimeframe, nil
	}
	tf := types.Timeframe(raw)
	if !tf.Valid() {
		return "", fmt.Errorf("%w: %q (expected 7d, 30d, 90d or 1y)", ErrInvalidTimeframe, raw)
	}
	return tf, nil
}

// ParseDepth accepts basic or advanced; empty selects basic
func ParseDepth(raw string) (types.AnalyticsDepth, error) {
	switch d := types.AnalyticsDepth(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return types.DepthBasic, nil
	case types.DepthBasic, types.DepthAdvanced:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q (expected basic or advanced)", ErrInvalidDepth, raw)
	}
}

// ParseLimit parses a positive integer, returning def when raw is empty and
// capping the result at max.
func ParseLimit(raw string, def, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// ParseNetwork accepts ethereum (or eth) and solana (or sol); empty selects ethereum
func ParseNetwork(raw string) (types.Network, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "ethereum", "eth":
		return types.NetworkEthereum, nil
	case "solana", "sol":
		return types.NetworkSolana, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNetwork, raw)
	}
}
