package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type PlanTier string

const (
	TierFree PlanTier = "FREE"
	TierPro  PlanTier = "PRO"
)

// PlanConfig is the budget and freshness policy for one run. It is resolved
// once at startup and passed by value.
type PlanConfig struct {
	Tier           PlanTier `json:"tier"`
	CUBudgetPerRun uint     `json:"cu_budget_per_run"`
	CacheTTLHours  uint     `json:"cache_ttl_hours"`

	// DailyMaxScans is nil when the tier has no daily cap.
	DailyMaxScans               *uint   `json:"daily_max_scans"`
	AllowLiveFetchInRequestPath bool    `json:"allow_live_fetch_in_request_path"`
	MinLiquidityUSD             float64 `json:"min_liquidity_usd"`
	MinVolume24hUSD             float64 `json:"min_volume_24h_usd"`
	ScanMinLiquidityUSD         float64 `json:"scan_min_liquidity_usd"`
	ScanMinVolume24hUSD         float64 `json:"scan_min_volume_24h_usd"`
}

// CacheTTL is the security cache freshness window.
func (p PlanConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLHours) * time.Hour
}

type tierDefaults struct {
	cuDefault, cuMin, cuMax uint
	ttlDefault              uint
	dailyDefault            *uint
	liveFetch               bool
	minLiquidity            float64
	minVolume               float64
}

var (
	freeDailyCap uint = 150

	planDefaults = map[PlanTier]tierDefaults{
		TierFree: {
			cuDefault:    100,
			cuMin:        1,
			cuMax:        100,
			ttlDefault:   24,
			dailyDefault: &freeDailyCap,
			liveFetch:    false,
			minLiquidity: 10_000,
			minVolume:    50_000,
		},
		TierPro: {
			cuDefault:    3500,
			cuMin:        3000,
			cuMax:        4000,
			ttlDefault:   6,
			dailyDefault: nil,
			liveFetch:    true,
			minLiquidity: 2_000,
			minVolume:    5_000,
		},
	}
)

const (
	ttlMinHours      = 1
	ttlMaxHours      = 168
	maxThresholdUSD  = 1e12
	scanMinLiquidity = 5_000
	scanMinVolume    = 10_000
)

// ParseTier maps free-form input to a tier; anything but "PRO" is FREE.
func ParseTier(raw string) PlanTier {
	if strings.ToUpper(strings.TrimSpace(raw)) == string(TierPro) {
		return TierPro
	}
	return TierFree
}

// LoadPlan resolves the plan from the environment. Unparsable values fall
// back to the tier default; parsed values are clamped to the tier's range.
func LoadPlan() PlanConfig {
	tier := ParseTier(os.Getenv("GOPLUS_PLAN_TIER"))
	d := planDefaults[tier]

	p := PlanConfig{
		Tier:                        tier,
		CUBudgetPerRun:              uint(getEnvIntBounded("GOPLUS_CU_BUDGET_PER_RUN", int(d.cuDefault), int(d.cuMin), int(d.cuMax))),
		CacheTTLHours:               uint(getEnvIntBounded("GOPLUS_CACHE_TTL_HOURS", int(d.ttlDefault), ttlMinHours, ttlMaxHours)),
		AllowLiveFetchInRequestPath: d.liveFetch,
		MinLiquidityUSD:             clampFloat(getEnvFloat("DEXSCREENER_MIN_LIQUIDITY_USD", d.minLiquidity), 0, maxThresholdUSD),
		MinVolume24hUSD:             clampFloat(getEnvFloat("DEXSCREENER_MIN_VOLUME_24H_USD", d.minVolume), 0, maxThresholdUSD),
		ScanMinLiquidityUSD:         nonNegativeFloat("SECURITY_ENQUEUE_MIN_LIQUIDITY_USD", scanMinLiquidity),
		ScanMinVolume24hUSD:         nonNegativeFloat("SECURITY_ENQUEUE_MIN_VOLUME_24H", scanMinVolume),
	}
	if d.dailyDefault != nil {
		v := uint(getEnvIntBounded("GOPLUS_DAILY_MAX_SCANS", int(*d.dailyDefault), 0, int(*d.dailyDefault)))
		p.DailyMaxScans = &v
	}
	return p
}

// nonNegativeFloat returns fallback for missing, invalid or negative input.
func nonNegativeFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}
