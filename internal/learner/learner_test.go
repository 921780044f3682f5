package learner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"viralbot/internal/domain"
)

type fakeStats struct {
	hours    []domain.HourStat
	hoursErr error
	types    []domain.ContentTypeStat
	typesErr error
}

func (f *fakeStats) HourlyStats(context.Context, time.Time) ([]domain.HourStat, error) {
	return f.hours, f.hoursErr
}

func (f *fakeStats) ContentTypeStats(context.Context, time.Time) ([]domain.ContentTypeStat, error) {
	return f.types, f.typesErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRecompute_RanksHours(t *testing.T) {
	stats := &fakeStats{
		hours: []domain.HourStat{
			{Hour: 9, AvgEngagement: 6.0, Posts: 2},
			{Hour: 14, AvgEngagement: 2.0, Posts: 1},
		},
		types: []domain.ContentTypeStat{
			{ContentType: domain.ContentMeme, AvgEngagement: 4.5, Posts: 3},
			{ContentType: domain.ContentQuote, AvgEngagement: 1.0, Posts: 1},
		},
	}
	l := New(stats, 6, testLogger())

	prev := domain.LearnedPreferences{BestHours: []int{20}}
	got := l.Recompute(context.Background(), 7, prev)

	assert.Equal(t, []int{9, 14}, got.BestHours)
	assert.Equal(t, domain.ContentMeme, got.BestContentType)
	assert.False(t, got.LearnedAt.IsZero())
}

func TestRecompute_TruncatesToMaxHours(t *testing.T) {
	stats := &fakeStats{
		hours: []domain.HourStat{
			{Hour: 9, AvgEngagement: 9},
			{Hour: 12, AvgEngagement: 8},
			{Hour: 15, AvgEngagement: 7},
			{Hour: 18, AvgEngagement: 6},
		},
	}
	l := New(stats, 2, testLogger())

	got := l.Recompute(context.Background(), 7, domain.LearnedPreferences{})

	assert.Equal(t, []int{9, 12}, got.BestHours)
}

func TestRecompute_EmptyWindowKeepsPrevious(t *testing.T) {
	l := New(&fakeStats{}, 6, testLogger())

	prev := domain.LearnedPreferences{
		BestHours:       []int{9, 12, 20},
		BestContentType: domain.ContentVideo,
	}
	got := l.Recompute(context.Background(), 7, prev)

	assert.Equal(t, prev, got)
}

func TestRecompute_QueryErrorKeepsPrevious(t *testing.T) {
	l := New(&fakeStats{hoursErr: errors.New("db gone")}, 6, testLogger())

	prev := domain.LearnedPreferences{BestHours: []int{9, 12}}
	got := l.Recompute(context.Background(), 7, prev)

	assert.Equal(t, prev, got)
}

func TestRecompute_ContentTypeErrorKeepsHours(t *testing.T) {
	stats := &fakeStats{
		hours:    []domain.HourStat{{Hour: 10, AvgEngagement: 3}},
		typesErr: errors.New("db gone"),
	}
	l := New(stats, 6, testLogger())

	prev := domain.LearnedPreferences{BestContentType: domain.ContentQuote}
	got := l.Recompute(context.Background(), 7, prev)

	assert.Equal(t, []int{10}, got.BestHours)
	assert.Equal(t, domain.ContentQuote, got.BestContentType)
}
