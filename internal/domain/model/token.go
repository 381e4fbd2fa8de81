package model

import "time"

// TokenSnapshot is the latest market view of a token, taken from its most
// liquid pair.
type TokenSnapshot struct {
	ChainID      ChainID `db:"chain_id"`
	TokenAddress string  `db:"token_address"`
	Symbol       string  `db:"symbol"`
	Name         string  `db:"name"`
	PairAddress  string  `db:"pair_address"`
	DexID        string  `db:"dex_id"`
	URL          string  `db:"url"`

	PriceUSD       *float64   `db:"price_usd"`
	LiquidityUSD   *float64   `db:"liquidity_usd"`
	Volume24h      *float64   `db:"volume_24h"`
	FDV            *float64   `db:"fdv"`
	MarketCap      *float64   `db:"market_cap"`
	PriceChange5m  *float64   `db:"price_change_5m"`
	PriceChange15m *float64   `db:"price_change_15m"`
	PriceChange1h  *float64   `db:"price_change_1h"`
	PriceChange24h *float64   `db:"price_change_24h"`
	Buys24h        *int64     `db:"buys_24h"`
	Sells24h       *int64     `db:"sells_24h"`
	PairCreatedAt  *time.Time `db:"pair_created_at"`
	LogoURL        string     `db:"logo_url"`
	WebsiteURL     string     `db:"website_url"`

	// LastActivityAt is the last time the token showed any 24h trade volume.
	LastActivityAt *time.Time `db:"last_activity_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (s TokenSnapshot) Key() TokenKey {
	return TokenKey{ChainID: s.ChainID, TokenAddress: s.TokenAddress}
}

// HasActivity reports whether the snapshot shows any 24h volume or trades.
func (s TokenSnapshot) HasActivity() bool {
	if s.Volume24h != nil && *s.Volume24h > 0 {
		return true
	}
	if s.Buys24h != nil && *s.Buys24h > 0 {
		return true
	}
	return s.Sells24h != nil && *s.Sells24h > 0
}

// CarryActivity keeps the previous last-activity time when the new
// snapshot shows no trading.
func (s TokenSnapshot) CarryActivity(prev TokenSnapshot) TokenSnapshot {
	if s.LastActivityAt == nil && prev.LastActivityAt != nil {
		t := *prev.LastActivityAt
		s.LastActivityAt = &t
	}
	return s
}

// InactiveFor reports whether the token has shown no activity for at least
// d as of now. A token never seen active counts from its first snapshot.
func (s TokenSnapshot) InactiveFor(d time.Duration, firstSeen, now time.Time) bool {
	last := firstSeen
	if s.LastActivityAt != nil {
		last = *s.LastActivityAt
	}
	return !last.IsZero() && now.Sub(last) >= d
}

// Discovery sources for newly seen tokens.
const (
	SourceProfiles  = "token_profiles"
	SourceBoostsNew = "boosts_latest"
	SourceBoostsTop = "boosts_top"
	SourceTakeovers = "community_takeovers"
	SourceSearch    = "search"
)
