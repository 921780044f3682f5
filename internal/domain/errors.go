package domain

import "errors"

// Error taxonomy for the posting loop. Everything here is recoverable at
// the loop level; what differs is how far an error aborts the current
// attempt (see the attempt controller).
var (
	// ErrDuplicateContent means the fingerprint has already been posted.
	// The next candidate should be tried.
	ErrDuplicateContent = errors.New("content already posted")

	// ErrFetch means a scrape or download failed. The next candidate or
	// the next tick should be tried.
	ErrFetch = errors.New("content fetch failed")

	// ErrPublish means the platform rejected the post or the call failed.
	// Publishing failure is rarely content-specific, so it aborts the
	// whole attempt rather than trying another candidate.
	ErrPublish = errors.New("publish failed")

	// ErrPersistence means a ledger write failed after a confirmed
	// publish. It must be logged loudly, never swallowed.
	ErrPersistence = errors.New("ledger write failed")

	// ErrMetricsFetch means metrics for one post could not be fetched.
	// The refresh sweep skips the post and continues.
	ErrMetricsFetch = errors.New("metrics fetch failed")
)
