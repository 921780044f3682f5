// Package learner turns posting history into posting-time preferences.
package learner

import (
	"context"
	"log/slog"
	"time"

	"viralbot/internal/domain"
)

// StatsStore is the slice of the ledger the learner reads.
type StatsStore interface {
	HourlyStats(ctx context.Context, since time.Time) ([]domain.HourStat, error)
	ContentTypeStats(ctx context.Context, since time.Time) ([]domain.ContentTypeStat, error)
}

type Learner struct {
	store    StatsStore
	maxHours int
	logger   *slog.Logger
}

func New(store StatsStore, maxHours int, logger *slog.Logger) *Learner {
	return &Learner{
		store:    store,
		maxHours: maxHours,
		logger:   logger,
	}
}

// Recompute derives fresh preferences from the trailing window. Only posts
// with fetched metrics contribute. When the window is empty or a query
// fails, prev is returned unchanged; absence of data must never collapse
// the preference set.
func (l *Learner) Recompute(ctx context.Context, windowDays int, prev domain.LearnedPreferences) domain.LearnedPreferences {
	since := time.Now().AddDate(0, 0, -windowDays)

	hours, err := l.store.HourlyStats(ctx, since)
	if err != nil {
		l.logger.Error("learning query failed, keeping previous preferences", "error", err)
		return prev
	}
	if len(hours) == 0 {
		l.logger.Info("no engagement data in window, keeping previous preferences",
			"window_days", windowDays,
		)
		return prev
	}

	if len(hours) > l.maxHours {
		hours = hours[:l.maxHours]
	}

	next := domain.LearnedPreferences{
		BestHours:       make([]int, 0, len(hours)),
		BestContentType: prev.BestContentType,
		LearnedAt:       time.Now(),
	}
	for _, h := range hours {
		next.BestHours = append(next.BestHours, h.Hour)
	}

	// Best content type is informational only. It never gates what gets
	// posted; feeding it back into source weighting is a deliberate
	// extension point.
	types, err := l.store.ContentTypeStats(ctx, since)
	if err != nil {
		l.logger.Warn("content type stats failed", "error", err)
	} else if len(types) > 0 {
		next.BestContentType = types[0].ContentType
		l.logger.Info("best content type",
			"content_type", types[0].ContentType,
			"avg_engagement", types[0].AvgEngagement,
			"posts", types[0].Posts,
		)
	}

	l.logger.Info("learned best hours", "best_hours", next.BestHours)

	return next
}
