// Package risk derives a token's safety score from cached evidence. Scores
// are recomputed on every read so a model change applies retroactively.
package risk

import (
	"math"
	"strings"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// Risk factor labels.
const (
	FactorChecksUnsupported = "Checks Unsupported"
	FactorChecksLimited     = "Checks Limited"

	FactorHoneypot      = "Honeypot"
	FactorBlacklisted   = "Blacklisted"
	FactorCannotSellAll = "Cannot Sell All"
	FactorHighBuyTax    = "Buy Tax Over 50%"
	FactorHighSellTax   = "Sell Tax Over 50%"

	FactorProxy              = "Proxy Contract"
	FactorTransferPausable   = "Transfer Pausable"
	FactorSlippageModifiable = "Slippage Modifiable"
	FactorExternalCall       = "External Call"

	FactorOwnerChangeBalance = "Owner Can Change Balance"
	FactorHiddenOwner        = "Hidden Owner"
	FactorCannotBuy          = "Cannot Buy"
	FactorTradingCooldown    = "Trading Cooldown"

	FactorNotOpenSource     = "Not Open Source"
	FactorMintable          = "Mintable"
	FactorTakeBackOwnership = "Can Take Back Ownership"

	FactorDappRiskHigh   = "dApp Risk: High"
	FactorDappRiskMedium = "dApp Risk: Medium"
	FactorDappRiskLow    = "dApp Risk: Low"

	FactorPhishing = "Phishing Site"
	FactorRugpull  = "Rugpull Risk"
)

// Deduction weights.
const (
	MaxScore          = 100
	RiskThreshold     = 60
	HighDeduction     = 20
	MediumDeduction   = 10
	LowDeduction      = 5
	DappHighPenalty   = 40
	DappMediumPenalty = 20
	DappLowPenalty    = 5
)

// Input is the evidence available for one token. Nil entries mean the
// domain has not been scanned.
type Input struct {
	Chain    model.Chain
	Security *model.SecurityEntry
	Rugpull  *model.RugpullEntry
	URLRisk  *model.URLRiskEntry
}

// Score runs the checks-state machine. It is a pure function of in.
func Score(in Input) model.ScoreResult {
	if !in.Chain.SecuritySupported() {
		return model.ScoreResult{
			RiskFactors: []string{FactorChecksUnsupported},
			ChecksState: model.ChecksUnsupported,
		}
	}

	evidence := hardEvidence(in)
	switch {
	case in.Security == nil:
		res := model.ScoreResult{RiskFactors: []string{}, ChecksState: model.ChecksPending}
		if len(evidence) > 0 {
			res.IsSecurityRisk = true
			res.RiskFactors = evidence[:1]
		}
		return res

	case in.Security.Limited && !in.Security.AlwaysDeny:
		res := model.ScoreResult{
			RiskFactors: []string{limitedFactor(in.Security.LimitReason)},
			ChecksState: model.ChecksLimited,
		}
		if len(evidence) > 0 {
			res.IsSecurityRisk = true
			res.RiskFactors = append(res.RiskFactors, evidence...)
		}
		return res
	}

	return complete(in, evidence)
}

func complete(in Input, evidence []string) model.ScoreResult {
	sec := in.Security
	if critical := criticalFactors(*sec); len(critical) > 0 {
		return model.ScoreResult{
			SafetyScore:    intPtr(0),
			IsSecurityRisk: true,
			RiskFactors:    append(critical, evidence...),
			ChecksState:    model.ChecksComplete,
		}
	}

	s := sec.Signals
	score := float64(MaxScore)
	factors := make([]string, 0, 8)
	deduct := func(cond bool, points int, factor string) {
		if cond {
			score -= float64(points)
			factors = append(factors, factor)
		}
	}

	deduct(isTrue(s.IsProxy), HighDeduction, FactorProxy)
	deduct(isTrue(s.TransferPausable), HighDeduction, FactorTransferPausable)
	deduct(isTrue(s.SlippageModifiable), HighDeduction, FactorSlippageModifiable)
	deduct(isTrue(s.ExternalCall), HighDeduction, FactorExternalCall)

	deduct(isTrue(s.OwnerChangeBalance), MediumDeduction, FactorOwnerChangeBalance)
	deduct(isTrue(s.HiddenOwner), MediumDeduction, FactorHiddenOwner)
	deduct(isTrue(s.CannotBuy), MediumDeduction, FactorCannotBuy)
	deduct(isTrue(s.TradingCooldown), MediumDeduction, FactorTradingCooldown)

	deduct(isFalse(s.IsOpenSource), LowDeduction, FactorNotOpenSource)
	deduct(isTrue(s.IsMintable), LowDeduction, FactorMintable)
	deduct(isTrue(s.CanTakeBackOwnership), LowDeduction, FactorTakeBackOwnership)

	if in.URLRisk != nil {
		switch DappLevel(in.URLRisk.DappRiskLevel) {
		case "high":
			deduct(true, DappHighPenalty, FactorDappRiskHigh)
		case "medium":
			deduct(true, DappMediumPenalty, FactorDappRiskMedium)
		case "low":
			deduct(true, DappLowPenalty, FactorDappRiskLow)
		}
	}
	factors = append(factors, evidence...)

	final := clampScore(score)
	return model.ScoreResult{
		SafetyScore:    &final,
		IsSecurityRisk: final < RiskThreshold || len(evidence) > 0,
		RiskFactors:    factors,
		ChecksState:    model.ChecksComplete,
	}
}

// criticalFactors lists every triggered critical signal. An always-deny
// entry whose signals were not retained falls back to its deny reasons.
func criticalFactors(e model.SecurityEntry) []string {
	s := e.Signals
	out := make([]string, 0, 5)
	if isTrue(s.IsHoneypot) {
		out = append(out, FactorHoneypot)
	}
	if isTrue(s.IsBlacklisted) {
		out = append(out, FactorBlacklisted)
	}
	if isTrue(s.CannotSellAll) {
		out = append(out, FactorCannotSellAll)
	}
	if s.BuyTax != nil && *s.BuyTax > model.CriticalTaxThreshold {
		out = append(out, FactorHighBuyTax)
	}
	if s.SellTax != nil && *s.SellTax > model.CriticalTaxThreshold {
		out = append(out, FactorHighSellTax)
	}
	if len(out) > 0 || !e.AlwaysDeny {
		return out
	}
	for _, r := range e.DenyReasons {
		if f, ok := denyReasonFactors[r]; ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		out = append(out, FactorHoneypot)
	}
	return out
}

var denyReasonFactors = map[string]string{
	model.DenyReasonHoneypot:      FactorHoneypot,
	model.DenyReasonBlacklisted:   FactorBlacklisted,
	model.DenyReasonCannotSell:    FactorCannotSellAll,
	model.DenyReasonBuyTaxOver50:  FactorHighBuyTax,
	model.DenyReasonSellTaxOver50: FactorHighSellTax,
}

// hardEvidence collects cross-domain flags that force a risk verdict,
// phishing first.
func hardEvidence(in Input) []string {
	var out []string
	if in.URLRisk != nil && isTrue(in.URLRisk.IsPhishing) {
		out = append(out, FactorPhishing)
	}
	if in.Rugpull != nil && isTrue(in.Rugpull.IsRugpullRisk) {
		out = append(out, FactorRugpull)
	}
	return out
}

// DappLevel normalizes a GoPlus dApp risk level to high, medium, low or "".
func DappLevel(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "danger":
		return "high"
	case "medium", "warning":
		return "medium"
	case "low":
		return "low"
	}
	return ""
}

func limitedFactor(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return FactorChecksLimited
	}
	return FactorChecksLimited + ": " + reason
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return int(math.Round(v))
}

func isTrue(b *bool) bool { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }

func intPtr(v int) *int { return &v }
