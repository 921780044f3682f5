package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"viralbot/internal/caption"
	"viralbot/internal/clock"
	"viralbot/internal/config"
	"viralbot/internal/content"
	"viralbot/internal/domain"
	"viralbot/internal/events"
	"viralbot/internal/learner"
	"viralbot/internal/platform/x"
	"viralbot/internal/scheduler"
	"viralbot/internal/service"
	"viralbot/internal/source/reddit"
	"viralbot/internal/storage/ledger"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the posting loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, db, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				logger.Info("received shutdown signal", "signal", sig)
				cancel()
			}()

			if err := run(ctx, cfg, logger, db); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sqlx.DB) error {
	store := ledger.New(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	clk := clock.Real{}

	var eventSink service.EventSink
	if cfg.Events.Enabled {
		rabbit, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
			QueueName:  cfg.Events.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		eventSink = rabbit
	}

	scraper := reddit.New(reddit.Config{
		MemeSources:      cfg.Scraper.MemeSources,
		VideoSources:     cfg.Scraper.VideoSources,
		QuoteSources:     cfg.Scraper.QuoteSources,
		WhitelistDomains: cfg.Scraper.WhitelistDomains,
		Timeout:          cfg.Scraper.Timeout,
	}, rng, logger)

	cache, err := content.NewStore(content.Config{
		Dir:          cfg.Cache.Dir,
		MaxDimension: cfg.Cache.MaxDimension,
		JPEGQuality:  cfg.Cache.JPEGQuality,
	}, logger)
	if err != nil {
		return err
	}

	captions := caption.NewGenerator(caption.Config{
		HashtagPool: hashtagPool(ctx, cfg, rng, logger),
		BrandTags:   cfg.Caption.BrandTags,
		MinHashtags: cfg.Caption.MinHashtags,
		MaxHashtags: cfg.Caption.MaxHashtags,
	})

	platform := x.New(x.Config{
		APIKey:       cfg.Platform.APIKey,
		APISecret:    cfg.Platform.APISecret,
		AccessToken:  cfg.Platform.AccessToken,
		AccessSecret: cfg.Platform.AccessSecret,
		BearerToken:  cfg.Platform.BearerToken,
		Timeout:      cfg.Platform.Timeout,
	}, logger)

	attempter := service.NewAttemptController(
		scraper, cache, store, platform, captions, eventSink,
		clk, rng,
		service.AttemptConfig{
			MaxCandidates:     cfg.Posting.MaxCandidates,
			MinInterPostDelay: cfg.Posting.MinInterPostDelay,
		},
		logger,
	)

	metrics := service.NewMetricsService(
		store, platform, eventSink, clk,
		service.MetricsConfig{
			WindowDays: cfg.Metrics.WindowDays,
			FetchDelay: cfg.Metrics.FetchDelay,
		},
		logger,
	)

	learn := learner.New(store, cfg.Learning.MaxHours, logger)

	prefs := domain.LearnedPreferences{BestHours: cfg.Learning.SeedHours}
	if cfg.Learning.Enabled {
		// Pick up whatever history already exists; seed hours survive an
		// empty window.
		prefs = learn.Recompute(ctx, cfg.Learning.WindowDays, prefs)
	}

	loop := scheduler.NewLoop(
		attempter, learn, prefs, clk, rng,
		scheduler.Config{
			MinInterval:     cfg.Posting.MinInterval,
			MaxInterval:     cfg.Posting.MaxInterval,
			SkipProbability: cfg.Posting.SkipProbability,
			LearningEnabled: cfg.Learning.Enabled,
			LearnEveryN:     cfg.Learning.EveryNPosts,
			LearnWindowDays: cfg.Learning.WindowDays,
		},
		logger,
	)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Metrics.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if _, err := metrics.Refresh(refreshCtx); err != nil {
			logger.Error("metrics refresh failed", "error", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	go heartbeat(ctx, cfg.Metrics.HeartbeatInterval, logger)

	logger.Info("starting bot",
		"best_hours", prefs.BestHours,
		"learning", cfg.Learning.Enabled,
		"events", cfg.Events.Enabled,
	)

	return loop.Run(ctx)
}

// hashtagPool optionally blends trending hashtags into the configured
// pool. Trend scraping failing just leaves the base pool.
func hashtagPool(ctx context.Context, cfg *config.Config, rng *rand.Rand, logger *slog.Logger) []string {
	pool := cfg.Caption.HashtagPool
	trends := reddit.NewTrendDetector(cfg.Scraper.Timeout, rng, logger)
	if smart := trends.SmartHashtags(ctx, pool); len(smart) > 0 {
		pool = smart
	}
	return pool
}

// heartbeat keeps hosting platforms from idling the process out. It
// shares no state with the decision loop.
func heartbeat(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("keep-alive ping")
		}
	}
}
