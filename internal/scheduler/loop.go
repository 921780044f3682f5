// Package scheduler drives the posting decision loop: an infinite,
// strictly sequential state machine that decides each tick whether to
// attempt a post, cools down for a random interval, and periodically
// replaces its learned preferences.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"viralbot/internal/clock"
	"viralbot/internal/domain"
)

// Attempter runs one posting attempt.
type Attempter interface {
	Attempt(ctx context.Context) (*domain.Post, error)
}

// PreferenceLearner recomputes preferences, falling back to prev when the
// window holds no data.
type PreferenceLearner interface {
	Recompute(ctx context.Context, windowDays int, prev domain.LearnedPreferences) domain.LearnedPreferences
}

type State int

const (
	StateIdle State = iota
	StateDeciding
	StateAttempting
	StateCooling
	StateTerminal
)

type Config struct {
	MinInterval     time.Duration
	MaxInterval     time.Duration
	SkipProbability float64
	LearningEnabled bool
	LearnEveryN     int
	LearnWindowDays int
}

type Loop struct {
	attempter Attempter
	learner   PreferenceLearner
	clk       clock.Clock
	rng       *rand.Rand
	cfg       Config
	logger    *slog.Logger

	prefs        atomic.Pointer[domain.LearnedPreferences]
	state        State
	successCount int
}

func NewLoop(
	attempter Attempter,
	learner PreferenceLearner,
	initial domain.LearnedPreferences,
	clk clock.Clock,
	rng *rand.Rand,
	cfg Config,
	logger *slog.Logger,
) *Loop {
	l := &Loop{
		attempter: attempter,
		learner:   learner,
		clk:       clk,
		rng:       rng,
		cfg:       cfg,
		logger:    logger,
	}
	l.prefs.Store(&initial)
	return l
}

// Preferences returns the live preference set.
func (l *Loop) Preferences() domain.LearnedPreferences {
	return *l.prefs.Load()
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	return l.state
}

// SuccessCount returns how many posts have been published this run.
func (l *Loop) SuccessCount() int {
	return l.successCount
}

// Run executes the loop until ctx is cancelled. A failed attempt never
// terminates the loop; cancellation is the only exit, and it always lands
// in the Terminal state with the ledger untouched by the abort (posts are
// recorded only after a confirmed publish).
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("decision loop started",
		"min_interval", l.cfg.MinInterval,
		"max_interval", l.cfg.MaxInterval,
		"skip_probability", l.cfg.SkipProbability,
		"best_hours", l.Preferences().BestHours,
	)

	for {
		if err := ctx.Err(); err != nil {
			l.state = StateTerminal
			l.logger.Info("decision loop stopped")
			return err
		}

		l.state = StateDeciding
		interval := l.drawInterval()
		hour := l.clk.Now().Hour()
		prefs := l.Preferences()

		if prefs.IsPeak(hour) {
			l.logger.Info("peak hour", "hour", hour)
		} else if l.rng.Float64() < l.cfg.SkipProbability {
			// Deliberately post less during low-value hours without
			// fully stopping.
			l.logger.Info("off-peak skip", "hour", hour, "cooldown", interval)
			if err := l.cool(ctx, interval); err != nil {
				return err
			}
			continue
		}

		l.state = StateAttempting
		post, err := l.attempter.Attempt(ctx)
		if err != nil {
			l.logger.Warn("attempt failed", "error", err)
		}
		if post != nil {
			l.successCount++
			l.maybeLearn(ctx)
		}

		l.logger.Info("cooling down", "interval", interval, "posts", l.successCount)
		if err := l.cool(ctx, interval); err != nil {
			return err
		}
	}
}

func (l *Loop) cool(ctx context.Context, d time.Duration) error {
	l.state = StateCooling
	l.clk.Sleep(ctx, d)
	if err := ctx.Err(); err != nil {
		l.state = StateTerminal
		l.logger.Info("decision loop stopped")
		return err
	}
	l.state = StateIdle
	return nil
}

// maybeLearn replaces the live preferences every N successful posts. The
// replacement is wholesale: the learner returns a complete value, never a
// partial mutation.
func (l *Loop) maybeLearn(ctx context.Context) {
	if !l.cfg.LearningEnabled || l.learner == nil {
		return
	}
	if l.successCount%l.cfg.LearnEveryN != 0 {
		return
	}

	l.logger.Info("learning from analytics", "posts", l.successCount)
	next := l.learner.Recompute(ctx, l.cfg.LearnWindowDays, l.Preferences())
	l.prefs.Store(&next)
}

// drawInterval picks a cooldown uniformly from [min,max]. Peak and
// off-peak ticks draw from the same range.
func (l *Loop) drawInterval() time.Duration {
	span := int64(l.cfg.MaxInterval - l.cfg.MinInterval)
	if span <= 0 {
		return l.cfg.MinInterval
	}
	return l.cfg.MinInterval + time.Duration(l.rng.Int63n(span+1))
}
