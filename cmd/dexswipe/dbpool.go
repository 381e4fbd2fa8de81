package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const dbPoolStatsInterval = 15 * time.Second

type dbStatsProvider interface {
	Stats() sql.DBStats
}

type dbPoolStatsGauges struct {
	open         prometheus.Gauge
	inUse        prometheus.Gauge
	idle         prometheus.Gauge
	waitCount    prometheus.Gauge
	waitDuration prometheus.Gauge
}

func defaultDBPoolGauges() dbPoolStatsGauges {
	return dbPoolStatsGauges{
		open:         metrics.DBPoolOpen,
		inUse:        metrics.DBPoolInUse,
		idle:         metrics.DBPoolIdle,
		waitCount:    metrics.DBPoolWaitCount,
		waitDuration: metrics.DBPoolWaitDurationSeconds,
	}
}

func collectDBPoolStats(db dbStatsProvider, gauges dbPoolStatsGauges) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}

	stats := db.Stats()
	gauges.open.Set(float64(stats.OpenConnections))
	gauges.inUse.Set(float64(stats.InUse))
	gauges.idle.Set(float64(stats.Idle))
	gauges.waitCount.Set(float64(stats.WaitCount))
	gauges.waitDuration.Set(stats.WaitDuration.Seconds())
	return nil
}

// startDBPoolStatsPump samples pool stats until ctx is done.
func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, interval time.Duration, logger *slog.Logger) {
	if db == nil || interval <= 0 {
		return
	}
	gauges := defaultDBPoolGauges()
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db, gauges); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db, gauges); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}
