// Package types contains shared type definitions used across multiple packages
package types

import "time"

// Network represents a blockchain network the dashboard reports on
type Network string

// Supported networks
const (
	NetworkEthereum Network = "ethereum"
	NetworkSolana   Network = "solana"
)

// KilnSlug returns the short network name used in Kiln API paths
func (n Network) KilnSlug() string {
	switch n {
	case NetworkSolana:
		return "sol"
	default:
		return "eth"
	}
}

// Timeframe is the reward analysis window requested by the client
type Timeframe string

// Supported timeframes
const (
	Timeframe7D  Timeframe = "7d"
	Timeframe30D Timeframe = "30d"
	Timeframe90D Timeframe = "90d"
	Timeframe1Y  Timeframe = "1y"

	DefaultTimeframe = Timeframe30D
)

// Days returns the number of days covered by the timeframe
func (t Timeframe) Days() int {
	switch t {
	case Timeframe7D:
		return 7
	case Timeframe90D:
		return 90
	case Timeframe1Y:
		return 365
	default:
		return 30
	}
}

// Window returns the [start, end] range of the timeframe ending at now
func (t Timeframe) Window(now time.Time) (time.Time, time.Time) {
	end := now.UTC()
	return end.AddDate(0, 0, -t.Days()), end
}

// Valid reports whether t is one of the supported timeframes
func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe7D, Timeframe30D, Timeframe90D, Timeframe1Y:
		return true
	}
	return false
}

// AnalyticsDepth is an advisory hint echoed back in responses
type AnalyticsDepth string

const (
	DepthBasic    AnalyticsDepth = "basic"
	DepthAdvanced AnalyticsDepth = "advanced"
)

// Origin tells the client whether a payload came from upstream or from the synthetic source
type Origin string

const (
	OriginLive Origin = "live"
	OriginMock Origin = "mock"
)
