package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"viralbot/internal/caption"
	"viralbot/internal/clock"
	"viralbot/internal/domain"
	"viralbot/internal/events"
	"viralbot/internal/fingerprint"
)

type AttemptConfig struct {
	MaxCandidates     int
	MinInterPostDelay time.Duration
}

// AttemptController runs one posting attempt: candidate fetch, dedupe,
// caption synthesis, publish, ledger insert. Duplicate and fetch failures
// move on to the next candidate within the budget; a publish failure
// aborts the whole attempt, since platform errors are rarely
// content-specific.
type AttemptController struct {
	source    ContentSource
	cache     ContentCache
	ledger    Ledger
	publisher Publisher
	captions  *caption.Generator
	events    EventSink

	clk    clock.Clock
	rng    *rand.Rand
	cfg    AttemptConfig
	logger *slog.Logger

	lastPostAt time.Time
}

func NewAttemptController(
	source ContentSource,
	cache ContentCache,
	ledger Ledger,
	publisher Publisher,
	captions *caption.Generator,
	eventsSink EventSink,
	clk clock.Clock,
	rng *rand.Rand,
	cfg AttemptConfig,
	logger *slog.Logger,
) *AttemptController {
	return &AttemptController{
		source:    source,
		cache:     cache,
		ledger:    ledger,
		publisher: publisher,
		captions:  captions,
		events:    eventsSink,
		clk:       clk,
		rng:       rng,
		cfg:       cfg,
		logger:    logger,
	}
}

// prepared is a candidate that passed fingerprinting and the dedupe check.
type prepared struct {
	candidate   domain.Candidate
	fingerprint string
	mediaPath   string
}

// Attempt tries up to MaxCandidates candidates and returns the recorded
// post on success, or nil when no unique candidate could be published.
// A non-nil post together with a non-nil error means the publish succeeded
// but the ledger write failed; callers must treat the post as made.
func (c *AttemptController) Attempt(ctx context.Context) (*domain.Post, error) {
	for i := 0; i < c.cfg.MaxCandidates; i++ {
		cand, err := c.source.GetRandomContent(ctx)
		if err != nil {
			c.logger.Warn("candidate fetch failed",
				"attempt", i+1,
				"error", fmt.Errorf("%w: %v", domain.ErrFetch, err),
			)
			continue
		}

		prep, err := c.prepare(ctx, cand)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateContent) {
				c.logger.Info("skipping duplicate candidate",
					"attempt", i+1,
					"content_type", cand.Type,
				)
			} else {
				c.logger.Warn("candidate preparation failed",
					"attempt", i+1,
					"content_type", cand.Type,
					"error", err,
				)
			}
			continue
		}

		return c.publish(ctx, prep)
	}

	c.logger.Info("no unique candidate found", "budget", c.cfg.MaxCandidates)
	return nil, nil
}

// prepare fingerprints the candidate, rejects duplicates, and materializes
// binary payloads in the cache.
func (c *AttemptController) prepare(ctx context.Context, cand domain.Candidate) (prepared, error) {
	prep := prepared{candidate: cand}

	if cand.IsBinary() {
		raw, err := c.source.Download(ctx, cand.URL)
		if err != nil {
			return prep, fmt.Errorf("%w: %v", domain.ErrFetch, err)
		}
		// Identity comes from the fetched bytes, never the URL: upstream
		// CDNs redirect and randomize URLs per request.
		prep.fingerprint = fingerprint.Bytes(raw)

		if err := c.checkDuplicate(ctx, prep.fingerprint); err != nil {
			return prep, err
		}

		fetched := func(context.Context) ([]byte, error) { return raw, nil }

		var path string
		if cand.Type == domain.ContentVideo {
			path, err = c.cache.MaterializeRaw(ctx, prep.fingerprint, ".mp4", fetched)
		} else {
			path, err = c.cache.Materialize(ctx, prep.fingerprint, fetched)
		}
		if err != nil {
			return prep, fmt.Errorf("%w: %v", domain.ErrFetch, err)
		}
		prep.mediaPath = path
		return prep, nil
	}

	prep.fingerprint = fingerprint.Text(cand.Text)
	if err := c.checkDuplicate(ctx, prep.fingerprint); err != nil {
		return prep, err
	}
	return prep, nil
}

func (c *AttemptController) checkDuplicate(ctx context.Context, fp string) error {
	dup, err := c.ledger.IsDuplicate(ctx, fp)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if dup {
		return fmt.Errorf("fingerprint %s: %w", fp, domain.ErrDuplicateContent)
	}
	return nil
}

func (c *AttemptController) publish(ctx context.Context, prep prepared) (*domain.Post, error) {
	capText, captionType, hashtags := c.captions.Generate(c.rng)

	text := capText
	if prep.candidate.Type == domain.ContentQuote {
		text = prep.candidate.Text + "\n\n" + capText
	}

	c.waitInterPostDelay(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	postID, err := c.publisher.Publish(ctx, text, prep.mediaPath)
	if err != nil {
		// Abort the attempt entirely; trying another candidate against a
		// failing platform just burns quota.
		return nil, fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}
	c.lastPostAt = c.clk.Now()

	now := c.clk.Now()
	post := &domain.Post{
		PostID:             postID,
		ContentFingerprint: prep.fingerprint,
		ContentType:        prep.candidate.Type,
		Caption:            text,
		CaptionType:        captionType,
		Hashtags:           hashtags,
		PostedAt:           now,
		PostedHour:         now.Hour(),
	}
	if prep.candidate.URL != "" {
		u := prep.candidate.URL
		post.SourceURL = &u
	}

	// The publish is confirmed; the ledger write must be attempted no
	// matter what, and its failure reported, never swallowed.
	if err := c.ledger.Record(ctx, post); err != nil {
		recErr := fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		c.logger.Error("post published but not recorded",
			"post_id", postID,
			"fingerprint", prep.fingerprint,
			"error", recErr,
		)
		return post, recErr
	}

	if c.events != nil {
		if err := c.events.Publish(ctx, events.ActionPosted, post); err != nil {
			c.logger.Warn("event publish failed", "post_id", postID, "error", err)
		}
	}

	c.logger.Info("posted",
		"post_id", postID,
		"content_type", post.ContentType,
		"caption_type", captionType,
		"fingerprint", prep.fingerprint,
	)

	return post, nil
}

// waitInterPostDelay blocks until the minimum spacing since the previous
// publish has elapsed.
func (c *AttemptController) waitInterPostDelay(ctx context.Context) {
	if c.lastPostAt.IsZero() {
		return
	}
	elapsed := c.clk.Now().Sub(c.lastPostAt)
	if remaining := c.cfg.MinInterPostDelay - elapsed; remaining > 0 {
		c.logger.Debug("rate limit wait", "remaining", remaining)
		c.clk.Sleep(ctx, remaining)
	}
}
