package domain

import "time"

// ContentType classifies where a piece of content came from.
type ContentType string

const (
	ContentMeme  ContentType = "meme"
	ContentVideo ContentType = "video"
	ContentQuote ContentType = "quote"
)

// Candidate is one piece of content offered by a scraper source.
// Binary content carries a URL; quotes carry only Text.
type Candidate struct {
	URL   string
	Type  ContentType
	Title string
	Text  string
}

// IsBinary reports whether the candidate's payload must be downloaded.
func (c Candidate) IsBinary() bool {
	return c.Type != ContentQuote
}

// Post is one successfully published piece of content. A row is created
// only after the platform confirms the publish; metrics fields start at
// zero and are filled in by the refresh sweep.
type Post struct {
	PostID             string      `db:"post_id"`
	ContentFingerprint string      `db:"content_fingerprint"`
	SourceURL          *string     `db:"source_url"`
	ContentType        ContentType `db:"content_type"`
	Caption            string      `db:"caption"`
	CaptionType        string      `db:"caption_type"`
	Hashtags           string      `db:"hashtags"`
	PostedAt           time.Time   `db:"posted_at"`
	PostedHour         int         `db:"posted_hour"`
	Impressions        int64       `db:"impressions"`
	Likes              int64       `db:"likes"`
	Retweets           int64       `db:"retweets"`
	Replies            int64       `db:"replies"`
	EngagementRate     float64     `db:"engagement_rate"`
}

// Metrics is one snapshot of a post's public counters.
type Metrics struct {
	Impressions int64
	Likes       int64
	Retweets    int64
	Replies     int64
}

// EngagementRate is (likes+retweets+replies)/impressions as a percentage,
// 0 when there are no impressions.
func (m Metrics) EngagementRate() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Likes+m.Retweets+m.Replies) / float64(m.Impressions) * 100
}

// LearnedPreferences is the output of one learning cycle. It is replaced
// wholesale after each recompute, never mutated field by field.
type LearnedPreferences struct {
	BestHours       []int
	BestContentType ContentType
	LearnedAt       time.Time
}

// IsPeak reports whether hour is in the learned best-hours set.
func (p LearnedPreferences) IsPeak(hour int) bool {
	for _, h := range p.BestHours {
		if h == hour {
			return true
		}
	}
	return false
}
