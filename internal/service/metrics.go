package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"viralbot/internal/clock"
	"viralbot/internal/domain"
	"viralbot/internal/events"
)

type MetricsConfig struct {
	WindowDays int
	FetchDelay time.Duration
}

// MetricsService sweeps posts whose metrics were never fetched and fills
// in their counters. One post failing never aborts the sweep.
type MetricsService struct {
	ledger  Ledger
	fetcher MetricsFetcher
	events  EventSink

	clk    clock.Clock
	cfg    MetricsConfig
	logger *slog.Logger
}

func NewMetricsService(
	ledger Ledger,
	fetcher MetricsFetcher,
	eventsSink EventSink,
	clk clock.Clock,
	cfg MetricsConfig,
	logger *slog.Logger,
) *MetricsService {
	return &MetricsService{
		ledger:  ledger,
		fetcher: fetcher,
		events:  eventsSink,
		clk:     clk,
		cfg:     cfg,
		logger:  logger,
	}
}

// Refresh updates metrics for every pending post in the window and returns
// how many were updated.
func (s *MetricsService) Refresh(ctx context.Context) (int, error) {
	ids, err := s.ledger.PendingMetrics(ctx, s.cfg.WindowDays)
	if err != nil {
		return 0, fmt.Errorf("pending metrics: %w", err)
	}

	s.logger.Info("metrics refresh started", "pending", len(ids))

	updated := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if i > 0 {
			// Politeness delay between platform calls.
			s.clk.Sleep(ctx, s.cfg.FetchDelay)
		}

		m, err := s.fetcher.GetMetrics(ctx, id)
		if err != nil {
			s.logger.Warn("metrics fetch failed, skipping post",
				"post_id", id,
				"error", fmt.Errorf("%w: %v", domain.ErrMetricsFetch, err),
			)
			continue
		}

		if err := s.ledger.UpdateMetrics(ctx, id, m); err != nil {
			s.logger.Warn("metrics update failed, skipping post", "post_id", id, "error", err)
			continue
		}
		updated++

		s.logger.Info("metrics updated",
			"post_id", id,
			"impressions", m.Impressions,
			"likes", m.Likes,
			"engagement_rate", m.EngagementRate(),
		)

		if s.events != nil {
			post := &domain.Post{
				PostID:         id,
				Impressions:    m.Impressions,
				Likes:          m.Likes,
				Retweets:       m.Retweets,
				Replies:        m.Replies,
				EngagementRate: m.EngagementRate(),
			}
			if err := s.events.Publish(ctx, events.ActionMetricsUpdated, post); err != nil {
				s.logger.Warn("event publish failed", "post_id", id, "error", err)
			}
		}
	}

	s.logger.Info("metrics refresh completed", "updated", updated, "pending", len(ids))
	return updated, nil
}
