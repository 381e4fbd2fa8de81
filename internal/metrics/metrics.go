package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dexswipe"

var (
	// Work queue
	QueueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Total jobs inserted into a stage queue",
	}, []string{"stage"})

	QueueClaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "claimed_total",
		Help:      "Total jobs leased by workers",
	}, []string{"stage"})

	QueueCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "completed_total",
		Help:      "Total job completions by outcome (succeeded, failed, suppressed, deferred)",
	}, []string{"stage", "outcome"})

	QueueClaimDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "claim_duration_seconds",
		Help:      "Duration of the atomic claim query",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"stage"})

	// Budget governor
	BudgetCUSpentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "budget",
		Name:      "cu_spent_total",
		Help:      "Total compute units charged for provider scans",
	}, []string{"stage", "family"})

	BudgetStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "budget",
		Name:      "stops_total",
		Help:      "Total runs stopped by the governor, by reason",
	}, []string{"stage", "reason"})

	BudgetDeferredJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "budget",
		Name:      "deferred_jobs_total",
		Help:      "Total jobs deferred because the budget or daily cap was reached",
	}, []string{"stage", "reason"})

	BudgetDailyScans = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "budget",
		Name:      "daily_scans",
		Help:      "Scans counted against the current UTC day",
	})

	// Provider client
	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Total provider HTTP requests by outcome",
	}, []string{"provider", "endpoint", "outcome"})

	ProviderRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "retries_total",
		Help:      "Total retried provider requests",
	}, []string{"provider", "endpoint"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Provider request duration including retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider", "endpoint"})

	ProviderRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "rate_limit_waits_total",
		Help:      "Total times provider calls waited for the rate limiter",
	}, []string{"provider"})

	ProviderCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "circuit_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"provider"})

	// Cache store
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Total cache lookups by domain and result (fresh, stale, miss)",
	}, []string{"domain", "result"})

	CachePutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "puts_total",
		Help:      "Total cache writes by domain and outcome",
	}, []string{"domain", "outcome"})

	CacheLocalHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "local_hits_total",
		Help:      "Total in-process LRU hits for security entries",
	})

	CacheLocalMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "local_misses_total",
		Help:      "Total in-process LRU misses for security entries",
	})

	CacheLocalEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "local_evictions_total",
		Help:      "Total security entries pushed out of the in-process LRU by its size limit",
	})

	ScamTokensDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "scam_tokens_detected_total",
		Help:      "Total tokens that became always-deny",
	}, []string{"chain"})

	// Feed
	FeedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "requests_total",
		Help:      "Total feed and wishlist requests",
	}, []string{"route", "status"})

	FeedRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "request_duration_seconds",
		Help:      "Feed request duration",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5},
	}, []string{"route"})

	FeedRefreshTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "refresh_timeouts_total",
		Help:      "Total live market refreshes cut off by the latency ceiling",
	})

	FeedChecksState = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "checks_state_total",
		Help:      "Total scored feed items by checks_state",
	}, []string{"state"})

	APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Total requests rejected by the per-client rate limiter",
	})

	// Pipeline runs
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total stage invocations by result",
	}, []string{"stage", "result"})

	PipelineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Stage invocation duration",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	PipelineJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "jobs_processed_total",
		Help:      "Total jobs processed by stage and chain",
	}, []string{"stage", "chain"})

	PipelineHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "health_status",
		Help:      "Stage health status (0=UNKNOWN, 1=HEALTHY, 2=UNHEALTHY, 3=INACTIVE)",
	}, []string{"stage"})

	PipelineConsecutiveFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "consecutive_failures",
		Help:      "Number of consecutive failed stage invocations",
	}, []string{"stage"})

	DiscoveredTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "discovered_tokens_total",
		Help:      "Total tokens seen by discovery, by source",
	}, []string{"source"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Latest PostgreSQL pool wait duration in seconds",
	})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
