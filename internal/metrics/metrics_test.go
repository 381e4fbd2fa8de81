package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"QueueEnqueuedTotal", QueueEnqueuedTotal},
		{"QueueClaimedTotal", QueueClaimedTotal},
		{"QueueCompletedTotal", QueueCompletedTotal},
		{"QueueClaimDuration", QueueClaimDuration},
		{"BudgetCUSpentTotal", BudgetCUSpentTotal},
		{"BudgetStopsTotal", BudgetStopsTotal},
		{"BudgetDeferredJobsTotal", BudgetDeferredJobsTotal},
		{"BudgetDailyScans", BudgetDailyScans},
		{"ProviderRequestsTotal", ProviderRequestsTotal},
		{"ProviderRetriesTotal", ProviderRetriesTotal},
		{"ProviderRequestDuration", ProviderRequestDuration},
		{"ProviderRateLimitWaits", ProviderRateLimitWaits},
		{"ProviderCircuitState", ProviderCircuitState},
		{"CacheLookupsTotal", CacheLookupsTotal},
		{"CachePutsTotal", CachePutsTotal},
		{"CacheLocalHits", CacheLocalHits},
		{"CacheLocalMisses", CacheLocalMisses},
		{"CacheLocalEvictions", CacheLocalEvictions},
		{"ScamTokensDetected", ScamTokensDetected},
		{"FeedRequestsTotal", FeedRequestsTotal},
		{"FeedRequestDuration", FeedRequestDuration},
		{"FeedRefreshTimeouts", FeedRefreshTimeouts},
		{"FeedChecksState", FeedChecksState},
		{"APIRateLimited", APIRateLimited},
		{"PipelineRunsTotal", PipelineRunsTotal},
		{"PipelineRunDuration", PipelineRunDuration},
		{"PipelineJobsProcessed", PipelineJobsProcessed},
		{"PipelineHealthStatus", PipelineHealthStatus},
		{"PipelineConsecutiveFailures", PipelineConsecutiveFailures},
		{"DiscoveredTokensTotal", DiscoveredTokensTotal},
		{"DBPoolOpen", DBPoolOpen},
		{"AlertsSentTotal", AlertsSentTotal},
		{"AlertsCooldownSkipped", AlertsCooldownSkipped},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_CounterIncrement(t *testing.T) {
	t.Parallel()

	c := QueueCompletedTotal.WithLabelValues("metrics-test", "succeeded")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	assert.NotPanics(t, func() { BudgetStopsTotal.WithLabelValues("security", "cu_budget_exhausted").Inc() })
	assert.NotPanics(t, func() { ProviderRequestsTotal.WithLabelValues("goplus", "token_security", "ok").Inc() })
	assert.NotPanics(t, func() { CacheLookupsTotal.WithLabelValues("security", "fresh").Inc() })
}

func TestMetrics_HistogramObserveNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { QueueClaimDuration.WithLabelValues("market").Observe(0.01) })
	assert.NotPanics(t, func() { ProviderRequestDuration.WithLabelValues("dexscreener", "tokens").Observe(1.5) })
	assert.NotPanics(t, func() { FeedRequestDuration.WithLabelValues("feed").Observe(0.2) })
	assert.NotPanics(t, func() { PipelineRunDuration.WithLabelValues("security").Observe(12) })
}

func TestMetrics_GaugeSetNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { BudgetDailyScans.Set(42) })
	assert.NotPanics(t, func() { ProviderCircuitState.WithLabelValues("goplus").Set(1) })
	assert.NotPanics(t, func() { PipelineHealthStatus.WithLabelValues("quality").Set(1) })
	assert.NotPanics(t, func() { DBPoolOpen.Set(3) })
	assert.NotPanics(t, func() { DBPoolWaitDurationSeconds.Set(0.5) })
}
