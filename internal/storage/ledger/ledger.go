// Package ledger persists the posting history: one row per successful
// publish, updated only by the metrics refresh sweep. The fingerprint
// primary key is the dedup contract: a fingerprint appears at most once,
// ever, with no time window.
//
// Queries use ? placeholders and sqlx.Rebind so the same store runs on an
// embedded sqlite file or on postgres, chosen by config.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"viralbot/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		content_fingerprint TEXT PRIMARY KEY,
		post_id             TEXT NOT NULL,
		source_url          TEXT,
		content_type        TEXT NOT NULL,
		caption             TEXT NOT NULL,
		caption_type        TEXT NOT NULL,
		hashtags            TEXT NOT NULL,
		posted_at           TIMESTAMP NOT NULL,
		posted_hour         INTEGER NOT NULL,
		impressions         BIGINT NOT NULL DEFAULT 0,
		likes               BIGINT NOT NULL DEFAULT 0,
		retweets            BIGINT NOT NULL DEFAULT 0,
		replies             BIGINT NOT NULL DEFAULT 0,
		engagement_rate     DOUBLE PRECISION NOT NULL DEFAULT 0
	)`

type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Migrate creates the posts table if it does not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate posts table: %w", err)
	}
	return nil
}

// Reset drops and recreates the posts table. Administrative use only.
func (l *Ledger) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DROP TABLE IF EXISTS posts`); err != nil {
		return fmt.Errorf("drop posts table: %w", err)
	}
	return l.Migrate(ctx)
}

// IsDuplicate reports whether a post with the fingerprint already exists.
func (l *Ledger) IsDuplicate(ctx context.Context, fp string) (bool, error) {
	var count int
	query := l.db.Rebind(`SELECT COUNT(*) FROM posts WHERE content_fingerprint = ?`)
	if err := l.db.GetContext(ctx, &count, query, fp); err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

// Record inserts a new post row. The primary key backstops the caller's
// IsDuplicate check: a unique violation surfaces as ErrDuplicateContent.
func (l *Ledger) Record(ctx context.Context, post *domain.Post) error {
	query := l.db.Rebind(`
		INSERT INTO posts (
			content_fingerprint, post_id, source_url, content_type,
			caption, caption_type, hashtags, posted_at, posted_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := l.db.ExecContext(ctx, query,
		post.ContentFingerprint,
		post.PostID,
		post.SourceURL,
		post.ContentType,
		post.Caption,
		post.CaptionType,
		post.Hashtags,
		post.PostedAt,
		post.PostedHour,
	)
	if err != nil {
		// Classify without depending on driver-specific error codes.
		if dup, dupErr := l.IsDuplicate(ctx, post.ContentFingerprint); dupErr == nil && dup {
			return fmt.Errorf("fingerprint %s: %w", post.ContentFingerprint, domain.ErrDuplicateContent)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// PendingMetrics returns post ids within the trailing window whose metrics
// have never been fetched.
func (l *Ledger) PendingMetrics(ctx context.Context, windowDays int) ([]string, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)
	query := l.db.Rebind(`
		SELECT post_id FROM posts
		WHERE posted_at > ? AND impressions = 0
		ORDER BY posted_at`)

	var ids []string
	if err := l.db.SelectContext(ctx, &ids, query, cutoff); err != nil {
		return nil, fmt.Errorf("select pending metrics: %w", err)
	}
	return ids, nil
}

// UpdateMetrics stores a metrics snapshot and the engagement rate derived
// from it.
func (l *Ledger) UpdateMetrics(ctx context.Context, postID string, m domain.Metrics) error {
	query := l.db.Rebind(`
		UPDATE posts SET
			impressions = ?, likes = ?, retweets = ?, replies = ?, engagement_rate = ?
		WHERE post_id = ?`)

	_, err := l.db.ExecContext(ctx, query,
		m.Impressions, m.Likes, m.Retweets, m.Replies, m.EngagementRate(), postID,
	)
	if err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}
	return nil
}

// HourlyStats returns per-hour average engagement for posts since the
// cutoff, restricted to rows with fetched metrics, best hours first and
// ascending hour on ties.
func (l *Ledger) HourlyStats(ctx context.Context, since time.Time) ([]domain.HourStat, error) {
	query := l.db.Rebind(`
		SELECT posted_hour,
		       AVG(engagement_rate) AS avg_engagement,
		       AVG(impressions) AS avg_impressions,
		       COUNT(*) AS posts
		FROM posts
		WHERE posted_at > ? AND impressions > 0
		GROUP BY posted_hour
		ORDER BY avg_engagement DESC, posted_hour ASC`)

	var stats []domain.HourStat
	if err := l.db.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("select hourly stats: %w", err)
	}
	return stats, nil
}

// ContentTypeStats returns per-content-type average engagement since the
// cutoff, best type first.
func (l *Ledger) ContentTypeStats(ctx context.Context, since time.Time) ([]domain.ContentTypeStat, error) {
	query := l.db.Rebind(`
		SELECT content_type,
		       AVG(engagement_rate) AS avg_engagement,
		       AVG(impressions) AS avg_impressions,
		       COUNT(*) AS posts
		FROM posts
		WHERE posted_at > ? AND impressions > 0
		GROUP BY content_type
		ORDER BY avg_engagement DESC, content_type ASC`)

	var stats []domain.ContentTypeStat
	if err := l.db.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("select content type stats: %w", err)
	}
	return stats, nil
}

func (l *Ledger) captionTypeStats(ctx context.Context, since time.Time) ([]domain.CaptionTypeStat, error) {
	query := l.db.Rebind(`
		SELECT caption_type,
		       AVG(engagement_rate) AS avg_engagement,
		       COUNT(*) AS posts
		FROM posts
		WHERE posted_at > ? AND impressions > 0
		GROUP BY caption_type
		ORDER BY avg_engagement DESC, caption_type ASC`)

	var stats []domain.CaptionTypeStat
	if err := l.db.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("select caption type stats: %w", err)
	}
	return stats, nil
}

// Report builds the aggregate engagement report for the trailing window.
// Pure read, no mutation.
func (l *Ledger) Report(ctx context.Context, windowDays int) (*domain.Report, error) {
	since := time.Now().AddDate(0, 0, -windowDays)
	report := &domain.Report{WindowDays: windowDays}

	totalsQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(impressions), 0),
		       COALESCE(SUM(likes), 0),
		       COALESCE(SUM(retweets), 0)
		FROM posts`
	row := l.db.QueryRowContext(ctx, totalsQuery)
	if err := row.Scan(&report.TotalPosts, &report.TotalViews, &report.TotalLikes, &report.TotalRetweets); err != nil {
		return nil, fmt.Errorf("select totals: %w", err)
	}

	avgQuery := `SELECT COALESCE(AVG(engagement_rate), 0) FROM posts WHERE impressions > 0`
	if err := l.db.GetContext(ctx, &report.AvgEngagement, avgQuery); err != nil {
		return nil, fmt.Errorf("select avg engagement: %w", err)
	}

	topQuery := l.db.Rebind(`
		SELECT content_fingerprint, post_id, source_url, content_type,
		       caption, caption_type, hashtags, posted_at, posted_hour,
		       impressions, likes, retweets, replies, engagement_rate
		FROM posts
		WHERE posted_at > ?
		ORDER BY impressions DESC
		LIMIT 5`)
	if err := l.db.SelectContext(ctx, &report.TopPosts, topQuery, since); err != nil {
		return nil, fmt.Errorf("select top posts: %w", err)
	}

	hours, err := l.HourlyStats(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(hours) > 6 {
		hours = hours[:6]
	}
	report.BestHours = hours

	if report.ContentTypes, err = l.ContentTypeStats(ctx, since); err != nil {
		return nil, err
	}
	if report.CaptionTypes, err = l.captionTypeStats(ctx, since); err != nil {
		return nil, err
	}
	if report.DailyTrend, err = l.dailyTrend(ctx, windowDays); err != nil {
		return nil, err
	}

	return report, nil
}

// dailyTrend queries one row per day, oldest first. Day bucketing happens
// in Go with half-open ranges so it works identically on both engines.
func (l *Ledger) dailyTrend(ctx context.Context, days int) ([]domain.DayStat, error) {
	query := l.db.Rebind(`
		SELECT COUNT(*),
		       COALESCE(SUM(impressions), 0),
		       COALESCE(SUM(likes), 0),
		       COALESCE(AVG(engagement_rate), 0)
		FROM posts
		WHERE posted_at >= ? AND posted_at < ?`)

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	trend := make([]domain.DayStat, 0, days)
	for i := days - 1; i >= 0; i-- {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		stat := domain.DayStat{Day: dayStart}
		row := l.db.QueryRowContext(ctx, query, dayStart, dayEnd)
		if err := row.Scan(&stat.Posts, &stat.Views, &stat.Likes, &stat.AvgEngagement); err != nil {
			return nil, fmt.Errorf("select daily trend: %w", err)
		}
		trend = append(trend, stat)
	}
	return trend, nil
}
