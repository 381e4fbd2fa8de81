package model

import (
	"slices"
	"time"
)

// FeedCandidate is a ranked token joined with its cached risk evidence.
type FeedCandidate struct {
	Snapshot TokenSnapshot
	Security *SecurityEntry
	Rugpull  *RugpullEntry
	URLRisk  *URLRiskEntry

	SecurityJob *Job
	QualityJob  *Job
	// RankedAt is the ordering key used for cursor pagination.
	RankedAt time.Time
}

// FeedFilter narrows the ranked candidate set.
type FeedFilter struct {
	Chains          []ChainID
	MinLiquidityUSD float64
	MinVolume24hUSD float64
	MinFDV          float64
}

// Matches reports whether s passes the chain list and every threshold.
func (f FeedFilter) Matches(s TokenSnapshot) bool {
	if len(f.Chains) > 0 && !slices.Contains(f.Chains, s.ChainID) {
		return false
	}
	return atLeast(s.LiquidityUSD, f.MinLiquidityUSD) &&
		atLeast(s.Volume24h, f.MinVolume24hUSD) &&
		atLeast(s.FDV, f.MinFDV)
}

// atLeast treats a missing value as failing any positive threshold.
func atLeast(v *float64, min float64) bool {
	if min <= 0 {
		return true
	}
	return v != nil && *v >= min
}

// WishlistItem is one saved token for a client.
type WishlistItem struct {
	ClientID      string     `db:"client_id"`
	ChainID       ChainID    `db:"chain_id"`
	TokenAddress  string     `db:"token_address"`
	CreatedAt     time.Time  `db:"created_at"`
	CapturedPrice *float64   `db:"captured_price"`
	CapturedAt    *time.Time `db:"captured_at"`
}

func (w WishlistItem) TokenID() string {
	return TokenKey{ChainID: w.ChainID, TokenAddress: w.TokenAddress}.String()
}
