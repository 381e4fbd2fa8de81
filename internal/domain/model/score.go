package model

// ChecksState summarizes how much security evidence backs a score.
type ChecksState string

const (
	ChecksPending     ChecksState = "pending"
	ChecksComplete    ChecksState = "complete"
	ChecksLimited     ChecksState = "limited"
	ChecksUnsupported ChecksState = "unsupported"
)

// ScoreResult is derived on every read and never persisted.
type ScoreResult struct {
	SafetyScore    *int        `json:"safety_score"`
	IsSecurityRisk bool        `json:"is_security_risk"`
	RiskFactors    []string    `json:"risk_factors"`
	ChecksState    ChecksState `json:"checks_state"`
}
