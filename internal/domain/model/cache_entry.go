package model

import (
	"encoding/json"
	"time"
)

// SecuritySignals is the canonical token-security signal set. A nil field
// means the provider did not report it; it is never read as "safe".
type SecuritySignals struct {
	IsHoneypot    *bool    `json:"is_honeypot,omitempty"`
	IsBlacklisted *bool    `json:"is_blacklisted,omitempty"`
	CannotSellAll *bool    `json:"cannot_sell_all,omitempty"`
	BuyTax        *float64 `json:"buy_tax,omitempty"`
	SellTax       *float64 `json:"sell_tax,omitempty"`

	IsProxy            *bool `json:"is_proxy,omitempty"`
	TransferPausable   *bool `json:"transfer_pausable,omitempty"`
	SlippageModifiable *bool `json:"slippage_modifiable,omitempty"`
	ExternalCall       *bool `json:"external_call,omitempty"`

	OwnerChangeBalance *bool `json:"owner_change_balance,omitempty"`
	HiddenOwner        *bool `json:"hidden_owner,omitempty"`
	CannotBuy          *bool `json:"cannot_buy,omitempty"`
	TradingCooldown    *bool `json:"trading_cooldown,omitempty"`

	IsOpenSource         *bool `json:"is_open_source,omitempty"`
	IsMintable           *bool `json:"is_mintable,omitempty"`
	CanTakeBackOwnership *bool `json:"can_take_back_ownership,omitempty"`

	ContractUpgradeable *bool `json:"contract_upgradeable,omitempty"`
}

// HasAny reports whether at least one signal was extracted.
func (s SecuritySignals) HasAny() bool {
	bools := []*bool{
		s.IsHoneypot, s.IsBlacklisted, s.CannotSellAll,
		s.IsProxy, s.TransferPausable, s.SlippageModifiable, s.ExternalCall,
		s.OwnerChangeBalance, s.HiddenOwner, s.CannotBuy, s.TradingCooldown,
		s.IsOpenSource, s.IsMintable, s.CanTakeBackOwnership, s.ContractUpgradeable,
	}
	for _, b := range bools {
		if b != nil {
			return true
		}
	}
	return s.BuyTax != nil || s.SellTax != nil
}

// SecurityEntry is a cached token-security scan keyed by (chain, address).
type SecurityEntry struct {
	ChainID      ChainID         `db:"chain_id"`
	TokenAddress string          `db:"token_address"`
	Raw          json.RawMessage `db:"raw"`
	ScannedAt    time.Time       `db:"scanned_at"`
	Signals      SecuritySignals `db:"signals"`
	AlwaysDeny   bool            `db:"always_deny"`
	DenyReasons  []string        `db:"deny_reasons"`
	// Limited is set when the scan ran but yielded no usable signal or the
	// provider reported a business-level limitation.
	Limited     bool   `db:"limited"`
	LimitReason string `db:"limit_reason"`
}

func (e SecurityEntry) Key() TokenKey {
	return TokenKey{ChainID: e.ChainID, TokenAddress: e.TokenAddress}
}

// RugpullEntry is a cached rugpull-detection result keyed by (chain, address).
type RugpullEntry struct {
	ChainID       ChainID         `db:"chain_id"`
	TokenAddress  string          `db:"token_address"`
	Raw           json.RawMessage `db:"raw"`
	IsRugpullRisk *bool           `db:"is_rugpull_risk"`
	RiskLevel     string          `db:"risk_level"`
	ScannedAt     time.Time       `db:"scanned_at"`
}

func (e RugpullEntry) Key() TokenKey {
	return TokenKey{ChainID: e.ChainID, TokenAddress: e.TokenAddress}
}

// URLRiskEntry is a cached phishing/dApp check keyed by URL.
type URLRiskEntry struct {
	URL           string          `db:"url"`
	RawPhishing   json.RawMessage `db:"raw_phishing"`
	RawDapp       json.RawMessage `db:"raw_dapp"`
	IsPhishing    *bool           `db:"is_phishing"`
	DappRiskLevel string          `db:"dapp_risk_level"`
	ScannedAt     time.Time       `db:"scanned_at"`
}

// Deny reasons recorded on always-deny security entries.
const (
	DenyReasonHoneypot      = "is_honeypot"
	DenyReasonBlacklisted   = "is_blacklisted"
	DenyReasonCannotSell    = "cannot_sell"
	DenyReasonBuyTaxOver50  = "buy_tax_gt_50pct"
	DenyReasonSellTaxOver50 = "sell_tax_gt_50pct"
)

// CriticalTaxThreshold is the buy/sell tax fraction above which a token is denied.
const CriticalTaxThreshold = 0.5

// DenyPolicy derives the always-deny verdict from a signal set.
func DenyPolicy(s SecuritySignals) (bool, []string) {
	reasons := make([]string, 0, 4)
	if isTrue(s.CannotSellAll) {
		reasons = append(reasons, DenyReasonCannotSell)
	}
	if isTrue(s.IsHoneypot) {
		reasons = append(reasons, DenyReasonHoneypot)
	}
	if isTrue(s.IsBlacklisted) {
		reasons = append(reasons, DenyReasonBlacklisted)
	}
	if s.BuyTax != nil && *s.BuyTax > CriticalTaxThreshold {
		reasons = append(reasons, DenyReasonBuyTaxOver50)
	}
	if s.SellTax != nil && *s.SellTax > CriticalTaxThreshold {
		reasons = append(reasons, DenyReasonSellTaxOver50)
	}
	return len(reasons) > 0, reasons
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
