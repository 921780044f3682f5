package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"viralbot/internal/content"
	"viralbot/internal/domain"
)

// ContentSource hands out candidate content and downloads its payload.
type ContentSource interface {
	GetRandomContent(ctx context.Context) (domain.Candidate, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Publisher posts to the social platform and returns the platform post id.
type Publisher interface {
	Publish(ctx context.Context, caption string, mediaPath string) (string, error)
}

// MetricsFetcher retrieves public engagement counters for one post.
type MetricsFetcher interface {
	GetMetrics(ctx context.Context, postID string) (domain.Metrics, error)
}

// Ledger is the slice of the post store the services need.
type Ledger interface {
	IsDuplicate(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, post *domain.Post) error
	PendingMetrics(ctx context.Context, windowDays int) ([]string, error)
	UpdateMetrics(ctx context.Context, postID string, m domain.Metrics) error
}

// ContentCache materializes binary content on disk, keyed by fingerprint.
// Materialize normalizes images; MaterializeRaw stores payloads untouched.
type ContentCache interface {
	Materialize(ctx context.Context, fingerprint string, source content.ByteSource) (string, error)
	MaterializeRaw(ctx context.Context, fingerprint, ext string, source content.ByteSource) (string, error)
}

// EventSink publishes post-lifecycle events. May be nil when events are
// disabled.
type EventSink interface {
	Publish(ctx context.Context, action string, post *domain.Post) error
}
