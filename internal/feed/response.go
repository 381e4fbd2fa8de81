package feed

import (
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// CursorFormat is the wire format of feed cursors.
const CursorFormat = time.RFC3339Nano

// FormatCursor renders a cursor, or "" when there is none.
func FormatCursor(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(CursorFormat)
}

// ParseCursor reads a cursor; invalid input means "first page".
func ParseCursor(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(CursorFormat, raw)
	if err != nil {
		return nil
	}
	return &t
}

type SecurityView struct {
	AlwaysDeny  bool       `json:"always_deny"`
	DenyReasons []string   `json:"deny_reasons"`
	ScannedAt   *time.Time `json:"scanned_at"`
	Limited     bool       `json:"limited"`
	JobStatus   *string    `json:"job_status,omitempty"`
}

type URLRiskView struct {
	IsPhishing    *bool      `json:"is_phishing"`
	DappRiskLevel *string    `json:"dapp_risk_level"`
	ScannedAt     *time.Time `json:"scanned_at"`
}

type RugpullView struct {
	IsRugpullRisk *bool      `json:"is_rugpull_risk"`
	RiskLevel     *string    `json:"risk_level"`
	ScannedAt     *time.Time `json:"scanned_at"`
}

type QualityView struct {
	URLRisk   URLRiskView `json:"url_risk"`
	Rugpull   RugpullView `json:"rugpull"`
	JobStatus *string     `json:"job_status,omitempty"`
}

type VerboseToken struct {
	TokenID        string     `json:"token_id"`
	ChainID        string     `json:"chain_id"`
	TokenAddress   string     `json:"token_address"`
	Name           string     `json:"name"`
	Symbol         string     `json:"symbol"`
	LogoURL        string     `json:"logo_url"`
	WebsiteURL     string     `json:"website_url"`
	PriceUSD       *float64   `json:"price_usd"`
	LiquidityUSD   *float64   `json:"liquidity_usd"`
	Volume24h      *float64   `json:"volume_24h"`
	FDV            *float64   `json:"fdv"`
	MarketCap      *float64   `json:"market_cap"`
	PriceChange5m  *float64   `json:"price_change_5m"`
	PriceChange15m *float64   `json:"price_change_15m"`
	PriceChange1h  *float64   `json:"price_change_1h"`
	Buys24h        *int64     `json:"buys_24h"`
	Sells24h       *int64     `json:"sells_24h"`
	PairCreatedAt  *time.Time `json:"pair_created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	IsSurging      bool              `json:"is_surging"`
	SafetyScore    *int              `json:"safety_score"`
	IsSecurityRisk bool              `json:"is_security_risk"`
	RiskFactors    []string          `json:"risk_factors"`
	ChecksState    model.ChecksState `json:"checks_state"`

	Security SecurityView `json:"security"`
	Quality  QualityView  `json:"quality"`
}

type VerboseResponse struct {
	Tokens     []VerboseToken `json:"tokens"`
	Limit      int            `json:"limit"`
	Cursor     *string        `json:"cursor"`
	NextCursor *string        `json:"next_cursor"`
	Refreshed  RefreshStats   `json:"refreshed"`
}

type MinimalItem struct {
	ID             string   `json:"id"`
	ChainID        string   `json:"chain_id"`
	LogoURL        string   `json:"logo_url"`
	Symbol         string   `json:"symbol"`
	PriceChange5m  *float64 `json:"price_change_5m"`
	PriceChange15m *float64 `json:"price_change_15m"`
	PriceChange1h  *float64 `json:"price_change_1h"`
	IsSecurityRisk bool     `json:"is_security_risk"`
	SafetyScore    *int     `json:"safety_score"`
	IsSurging      bool     `json:"is_surging"`
}

func optionalCursor(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatCursor(t)
	return &s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jobStatus(j *model.Job) *string {
	if j == nil {
		return nil
	}
	s := string(j.Status)
	return &s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Verbose renders the full response object.
func Verbose(p Page) VerboseResponse {
	out := VerboseResponse{
		Tokens:     make([]VerboseToken, 0, len(p.Rows)),
		Limit:      p.Limit,
		Cursor:     optionalCursor(p.Cursor),
		NextCursor: optionalCursor(p.NextCursor),
		Refreshed:  p.Refreshed,
	}
	for _, r := range p.Rows {
		out.Tokens = append(out.Tokens, verboseToken(r))
	}
	return out
}

func verboseToken(r Row) VerboseToken {
	c := r.Candidate
	s := c.Snapshot
	v := VerboseToken{
		TokenID:        s.Key().String(),
		ChainID:        string(s.ChainID),
		TokenAddress:   s.TokenAddress,
		Name:           s.Name,
		Symbol:         s.Symbol,
		LogoURL:        s.LogoURL,
		WebsiteURL:     s.WebsiteURL,
		PriceUSD:       s.PriceUSD,
		LiquidityUSD:   s.LiquidityUSD,
		Volume24h:      s.Volume24h,
		FDV:            s.FDV,
		MarketCap:      s.MarketCap,
		PriceChange5m:  s.PriceChange5m,
		PriceChange15m: s.PriceChange15m,
		PriceChange1h:  s.PriceChange1h,
		Buys24h:        s.Buys24h,
		Sells24h:       s.Sells24h,
		PairCreatedAt:  s.PairCreatedAt,
		UpdatedAt:      s.UpdatedAt,

		IsSurging:      r.IsSurging,
		SafetyScore:    r.Score.SafetyScore,
		IsSecurityRisk: r.Score.IsSecurityRisk,
		RiskFactors:    r.Score.RiskFactors,
		ChecksState:    r.Score.ChecksState,

		Security: SecurityView{DenyReasons: []string{}, JobStatus: jobStatus(c.SecurityJob)},
		Quality:  QualityView{JobStatus: jobStatus(c.QualityJob)},
	}
	if v.RiskFactors == nil {
		v.RiskFactors = []string{}
	}
	if sec := c.Security; sec != nil {
		v.Security.AlwaysDeny = sec.AlwaysDeny
		if sec.DenyReasons != nil {
			v.Security.DenyReasons = sec.DenyReasons
		}
		v.Security.ScannedAt = timePtr(sec.ScannedAt)
		v.Security.Limited = sec.Limited
	}
	if u := c.URLRisk; u != nil {
		v.Quality.URLRisk = URLRiskView{
			IsPhishing:    u.IsPhishing,
			DappRiskLevel: optionalString(u.DappRiskLevel),
			ScannedAt:     timePtr(u.ScannedAt),
		}
	}
	if rp := c.Rugpull; rp != nil {
		v.Quality.Rugpull = RugpullView{
			IsRugpullRisk: rp.IsRugpullRisk,
			RiskLevel:     optionalString(rp.RiskLevel),
			ScannedAt:     timePtr(rp.ScannedAt),
		}
	}
	return v
}

// Minimal renders the flat array shape; the cursor travels in a header.
func Minimal(p Page) []MinimalItem {
	out := make([]MinimalItem, 0, len(p.Rows))
	for _, r := range p.Rows {
		s := r.Candidate.Snapshot
		out = append(out, MinimalItem{
			ID:             s.Key().String(),
			ChainID:        string(s.ChainID),
			LogoURL:        s.LogoURL,
			Symbol:         s.Symbol,
			PriceChange5m:  s.PriceChange5m,
			PriceChange15m: s.PriceChange15m,
			PriceChange1h:  s.PriceChange1h,
			IsSecurityRisk: r.Score.IsSecurityRisk,
			SafetyScore:    r.Score.SafetyScore,
			IsSurging:      r.IsSurging,
		})
	}
	return out
}

type WishlistItemView struct {
	TokenID          string            `json:"token_id"`
	ChainID          string            `json:"chain_id"`
	TokenAddress     string            `json:"token_address"`
	Symbol           string            `json:"symbol"`
	LogoURL          string            `json:"logo_url"`
	CapturedPrice    *float64          `json:"captured_price"`
	CapturedAt       *time.Time        `json:"captured_at"`
	CurrentPrice     *float64          `json:"current_price"`
	ROISinceCaptured *float64          `json:"roi_since_captured"`
	PriceChange5m    *float64          `json:"price_change_5m"`
	PriceChange1h    *float64          `json:"price_change_1h"`
	IsSurging        bool              `json:"is_surging"`
	IsSecurityRisk   bool              `json:"is_security_risk"`
	SafetyScore      *int              `json:"safety_score"`
	RiskFactors      []string          `json:"risk_factors"`
	ChecksState      model.ChecksState `json:"checks_state"`
	UpdatedAt        *time.Time        `json:"updated_at"`
}

type WishlistResponse struct {
	Items     []WishlistItemView `json:"items"`
	Limit     int                `json:"limit"`
	Refreshed RefreshStats       `json:"refreshed"`
}

func Wishlist(v WishlistView) WishlistResponse {
	out := WishlistResponse{
		Items:     make([]WishlistItemView, 0, len(v.Rows)),
		Limit:     v.Limit,
		Refreshed: v.Refreshed,
	}
	for _, r := range v.Rows {
		item := WishlistItemView{
			TokenID:          r.Item.TokenID(),
			ChainID:          string(r.Item.ChainID),
			TokenAddress:     r.Item.TokenAddress,
			CapturedPrice:    r.Item.CapturedPrice,
			CapturedAt:       r.Item.CapturedAt,
			ROISinceCaptured: r.ROI,
			IsSurging:        r.Surging,
			IsSecurityRisk:   r.Score.IsSecurityRisk,
			SafetyScore:      r.Score.SafetyScore,
			RiskFactors:      r.Score.RiskFactors,
			ChecksState:      r.Score.ChecksState,
		}
		if item.RiskFactors == nil {
			item.RiskFactors = []string{}
		}
		if s := r.Snapshot; s != nil {
			item.Symbol = s.Symbol
			item.LogoURL = s.LogoURL
			item.CurrentPrice = s.PriceUSD
			item.PriceChange5m = s.PriceChange5m
			item.PriceChange1h = s.PriceChange1h
			item.UpdatedAt = timePtr(s.UpdatedAt)
		}
		out.Items = append(out.Items, item)
	}
	return out
}
