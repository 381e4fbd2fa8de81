package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/apfl99/DexSwipe-Backend/internal/alert"
	"github.com/apfl99/DexSwipe-Backend/internal/api"
	"github.com/apfl99/DexSwipe-Backend/internal/budget"
	"github.com/apfl99/DexSwipe-Backend/internal/cache"
	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/feed"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/discovery"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/market"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/quality"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/security"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/worker"
	"github.com/apfl99/DexSwipe-Backend/internal/provider"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/dexscreener"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/goplus"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/ratelimit"
	"github.com/apfl99/DexSwipe-Backend/internal/queue"
	"github.com/apfl99/DexSwipe-Backend/internal/riskcache"
)

// app holds everything the process runs: stage runners for the scheduler
// and the HTTP server for clients and cron callers.
type app struct {
	registry  *pipeline.Registry
	schedules map[string]string
	server    *api.Server
	limiter   *api.RateLimitMiddleware
}

func buildApp(ctx context.Context, cfg *config.Config, b *backend, logger *slog.Logger) (*app, error) {
	if err := b.chains.UpsertChains(ctx, cfg.Chains.Chains); err != nil {
		return nil, fmt.Errorf("sync chain mappings: %w", err)
	}
	stored, err := b.chains.ListChains(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chain mappings: %w", err)
	}
	chains := model.NewChainRegistry(stored)

	alerter := buildAlerter(cfg.Alert, logger)
	dex, gp := buildProviders(cfg, b, logger)

	var local cache.Cache[model.TokenKey, model.SecurityEntry]
	if cfg.Feed.LocalCacheSize > 0 && cfg.Feed.LocalCacheTTL > 0 {
		local = cache.NewShardedLRU[model.TokenKey, model.SecurityEntry](cfg.Feed.LocalCacheSize, cfg.Feed.LocalCacheTTL, model.TokenKey.String)
	}
	risk := riskcache.New(
		riskcache.Repos{
			Security: b.security,
			Rugpull:  b.rugpull,
			URLRisk:  b.urlRisk,
		},
		riskcache.TTLs{
			Security: cfg.Plan.CacheTTL(),
			Rugpull:  cfg.Pipeline.RugpullTTL,
			URLRisk:  cfg.Pipeline.URLRiskTTL,
		},
		riskcache.WithLocalCache(local),
		riskcache.WithAlerter(alerter),
		riskcache.WithLogger(logger),
	)

	newQueue := func(stage model.Stage) *queue.Queue {
		return queue.New(b.jobs, stage,
			queue.WithLeaseTimeout(cfg.Pipeline.LeaseTimeout),
			queue.WithLogger(logger),
		)
	}
	queues := market.Queues{
		Market:   newQueue(model.StageMarket),
		Security: newQueue(model.StageSecurity),
		Quality:  newQueue(model.StageQuality),
	}

	stages := []pipeline.Stage{
		discovery.New(discovery.Config{
			Cap:           cfg.Pipeline.DiscoveryCap,
			Sources:       cfg.Pipeline.DiscoverySources,
			Rotate:        true,
			SearchQueries: cfg.Pipeline.DiscoverySearchQueries,
		}, queues.Market, b.runs, dex, chains, logger),
		market.New(market.Config{
			Plan:   cfg.Plan,
			Limits: worker.Limits{BatchSize: cfg.Pipeline.BatchSize, MaxJobs: cfg.Pipeline.MaxJobsMarket},
		}, queues, b.tokens, dex, chains, logger),
		security.New(security.Config{
			Plan:     cfg.Plan,
			Costs:    budget.CostTable(cfg.Chains.Costs),
			Limits:   worker.Limits{BatchSize: cfg.Pipeline.BatchSize, MaxJobs: cfg.Pipeline.MaxJobsSecurity},
			Deferral: cfg.Pipeline.BudgetDeferral,
		}, queues.Security, risk, gp, chains,
			security.WithDailyCounter(b.daily),
			security.WithAlerter(alerter),
			security.WithLogger(logger),
		),
		quality.New(quality.Config{
			Limits: worker.Limits{BatchSize: cfg.Pipeline.BatchSize, MaxJobs: cfg.Pipeline.MaxJobsQuality},
		}, queues.Quality, b.tokens, risk, gp, chains, logger),
	}

	registry := pipeline.NewRegistry()
	for _, st := range stages {
		registry.Register(pipeline.NewRunner(st,
			pipeline.WithAlerter(alerter),
			pipeline.WithRunTimeout(cfg.Pipeline.RunTimeout),
			pipeline.WithRunnerLogger(logger),
		))
	}

	agg := feed.NewAggregator(feed.Deps{
		Feed:     b.feed,
		Tokens:   b.tokens,
		Wishlist: b.wishlist,
		Risk:     risk,
		Jobs:     b.jobs,
		Market:   dex,
		Chains:   chains,
	}, cfg.Plan, feed.Settings{
		LatencyCeiling: cfg.Feed.LatencyCeiling,
		StaleAfter:     cfg.Feed.RefreshStaleAfter,
	}, logger)

	limiter := api.NewRateLimitMiddleware(cfg.Server.ClientRateRPS, cfg.Server.ClientRateBurst, logger)
	opts := []api.ServerOption{
		api.WithStageRunner(registry),
		api.WithHealthProvider(registry),
		api.WithDailyUsage(b.daily),
		api.WithCronSecret(cfg.Server.CronSecret),
		api.WithRateLimiter(limiter),
	}
	for _, c := range b.checks {
		opts = append(opts, api.WithCheck(c.name, c.fn))
	}

	return &app{
		registry: registry,
		schedules: map[string]string{
			"discovery":                 cfg.Pipeline.DiscoverySchedule,
			string(model.StageMarket):   cfg.Pipeline.MarketSchedule,
			string(model.StageSecurity): cfg.Pipeline.SecuritySchedule,
			string(model.StageQuality):  cfg.Pipeline.QualitySchedule,
		},
		server:  api.NewServer(agg, cfg.Plan, logger, opts...),
		limiter: limiter,
	}, nil
}

func buildProviders(cfg *config.Config, b *backend, logger *slog.Logger) (*dexscreener.Client, *goplus.Client) {
	pc := cfg.Providers
	policy := provider.RetryPolicy{
		MaxAttempts: pc.Retry.MaxAttempts,
		BaseDelay:   pc.Retry.BaseDelay,
		MaxDelay:    pc.Retry.MaxDelay,
		Timeout:     pc.Retry.Timeout,
	}

	dexHTTP := provider.NewClient(dexscreener.Name,
		provider.WithLimiter(ratelimit.NewLimiter(pc.DexScreener.RateRPS, pc.DexScreener.RateBurst, dexscreener.Name)),
		provider.WithBreaker(provider.NewBreaker(dexscreener.Name, pc.BreakerFailures, pc.BreakerOpenTimeout)),
		provider.WithRetryPolicy(policy),
		provider.WithUserAgent(pc.UserAgent),
		provider.WithLogger(logger),
	)
	gpHTTP := provider.NewClient(goplus.Name,
		provider.WithLimiter(ratelimit.NewLimiter(pc.GoPlus.RateRPS, pc.GoPlus.RateBurst, goplus.Name)),
		provider.WithBreaker(provider.NewBreaker(goplus.Name, pc.BreakerFailures, pc.BreakerOpenTimeout)),
		provider.WithRetryPolicy(policy),
		provider.WithUserAgent(pc.UserAgent),
		provider.WithEnvelope(),
		provider.WithLogger(logger),
	)

	auth := goplus.NewAuthenticator(goplus.AuthConfig{
		BaseURL:     pc.GoPlus.BaseURL,
		AppKey:      pc.GoPlus.AppKey,
		AppSecret:   pc.GoPlus.AppSecret,
		AccessToken: pc.GoPlus.AccessToken,
		APIKey:      pc.GoPlus.APIKey,
	}, &http.Client{Timeout: pc.Retry.Timeout}, b.tokenCache, logger)

	return dexscreener.NewClient(dexHTTP, pc.DexScreener.BaseURL), goplus.NewClient(gpHTTP, pc.GoPlus.BaseURL, auth)
}

// buildAlerter always logs alerts and adds Slack and webhook delivery when
// configured.
func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	alerters := []alert.Alerter{alert.NewLogAlerter(logger)}
	if cfg.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, alerters...)
}
