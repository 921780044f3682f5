package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"viralbot/internal/domain"
)

type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(count int)
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
}

type fakeAttempter struct {
	calls int
	post  *domain.Post
	err   error
}

func (a *fakeAttempter) Attempt(_ context.Context) (*domain.Post, error) {
	a.calls++
	return a.post, a.err
}

type fakeLearner struct {
	calls int
	next  domain.LearnedPreferences
}

func (l *fakeLearner) Recompute(_ context.Context, _ int, _ domain.LearnedPreferences) domain.LearnedPreferences {
	l.calls++
	return l.next
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		MinInterval:     45 * time.Minute,
		MaxInterval:     90 * time.Minute,
		SkipProbability: 0,
		LearningEnabled: false,
		LearnEveryN:     10,
		LearnWindowDays: 7,
	}
}

func TestLoop_AttemptsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clk := &fakeClock{now: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)}
	clk.onSleep = func(count int) {
		if count == 3 {
			cancel()
		}
	}
	attempter := &fakeAttempter{post: &domain.Post{PostID: "t1"}}

	loop := NewLoop(attempter, nil, domain.LearnedPreferences{}, clk,
		rand.New(rand.NewSource(1)), testConfig(), testLogger())

	err := loop.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, attempter.calls)
	require.Equal(t, 3, loop.SuccessCount())
	require.Equal(t, StateTerminal, loop.State())
}

func TestLoop_OffPeakSkip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// 03:00 is not among the best hours, and SkipProbability 1 forces the
	// skip branch every tick.
	clk := &fakeClock{now: time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)}
	clk.onSleep = func(count int) {
		if count == 2 {
			cancel()
		}
	}
	attempter := &fakeAttempter{post: &domain.Post{PostID: "t1"}}

	cfg := testConfig()
	cfg.SkipProbability = 1

	loop := NewLoop(attempter, nil,
		domain.LearnedPreferences{BestHours: []int{9, 12, 18}},
		clk, rand.New(rand.NewSource(1)), cfg, testLogger())

	err := loop.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, attempter.calls, "skipped ticks never reach the attempter")
	require.Len(t, clk.sleeps, 2, "skipped ticks still cool down")
}

func TestLoop_PeakHourNeverSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clk := &fakeClock{now: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)}
	clk.onSleep = func(count int) {
		if count == 1 {
			cancel()
		}
	}
	attempter := &fakeAttempter{post: &domain.Post{PostID: "t1"}}

	cfg := testConfig()
	cfg.SkipProbability = 1

	loop := NewLoop(attempter, nil,
		domain.LearnedPreferences{BestHours: []int{9, 12, 18}},
		clk, rand.New(rand.NewSource(1)), cfg, testLogger())

	err := loop.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempter.calls)
}

func TestLoop_LearnsEveryN(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clk := &fakeClock{now: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)}
	clk.onSleep = func(count int) {
		if count == 5 {
			cancel()
		}
	}
	attempter := &fakeAttempter{post: &domain.Post{PostID: "t1"}}
	learner := &fakeLearner{next: domain.LearnedPreferences{
		BestHours:       []int{20, 21},
		BestContentType: domain.ContentVideo,
	}}

	cfg := testConfig()
	cfg.LearningEnabled = true
	cfg.LearnEveryN = 2

	loop := NewLoop(attempter, learner,
		domain.LearnedPreferences{BestHours: []int{9}},
		clk, rand.New(rand.NewSource(1)), cfg, testLogger())

	err := loop.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, learner.calls, "5 posts at every-2 means two recomputes")
	require.Equal(t, []int{20, 21}, loop.Preferences().BestHours)
	require.Equal(t, domain.ContentVideo, loop.Preferences().BestContentType)
}

func TestLoop_AttemptErrorKeepsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	clk := &fakeClock{now: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)}
	clk.onSleep = func(count int) {
		if count == 3 {
			cancel()
		}
	}
	attempter := &fakeAttempter{err: errors.New("all candidates exhausted")}

	loop := NewLoop(attempter, nil, domain.LearnedPreferences{}, clk,
		rand.New(rand.NewSource(1)), testConfig(), testLogger())

	err := loop.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, attempter.calls, "failed attempts never terminate the loop")
	require.Zero(t, loop.SuccessCount())
}

func TestLoop_DrawIntervalBounds(t *testing.T) {
	cfg := testConfig()
	loop := NewLoop(nil, nil, domain.LearnedPreferences{},
		&fakeClock{}, rand.New(rand.NewSource(42)), cfg, testLogger())

	for i := 0; i < 1000; i++ {
		d := loop.drawInterval()
		require.GreaterOrEqual(t, d, cfg.MinInterval)
		require.LessOrEqual(t, d, cfg.MaxInterval)
	}
}

func TestLoop_DrawIntervalDegenerateRange(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInterval = cfg.MinInterval
	loop := NewLoop(nil, nil, domain.LearnedPreferences{},
		&fakeClock{}, rand.New(rand.NewSource(42)), cfg, testLogger())

	require.Equal(t, cfg.MinInterval, loop.drawInterval())
}
