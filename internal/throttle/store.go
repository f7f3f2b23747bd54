// Package throttle records when each URL was last probed and suppresses
// re-probing within a minimum interval.
//
// This package is internal to publink. Two implementations of [Store] are
// provided:
//
//   - [MemoryStore]: mutex-guarded map, one per editing session by default
//   - [RedisStore]: Redis hashes with TTL, shared by every replica of the service
//
// Besides the probe timestamp, a record keeps the outcome of the last
// completed probe so a throttled URL can still report its last known status.
package throttle

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the minimum time between probes of the same URL.
	DefaultInterval = 3 * time.Second

	// DefaultRecordTTL is how long an untouched record is kept before it may
	// be evicted.
	DefaultRecordTTL = time.Hour
)

// Record is what a [Store] knows about one URL.
type Record struct {
	// URL is the probed URL.
	URL string

	// CheckedAt is when the last probe was started.
	CheckedAt time.Time

	// Reachable is the outcome of the last completed probe. Only meaningful
	// when Known is true.
	Reachable bool

	// Known is true once at least one probe of URL has completed.
	Known bool
}

// Store is the per-URL probe throttle.
//
// Implementations must be safe for concurrent use. Acquire must be atomic:
// of two concurrent Acquire calls for the same URL inside one interval,
// exactly one returns true.
type Store interface {
	// ShouldProbe reports whether url has no record or was last probed at
	// least one interval before now.
	ShouldProbe(ctx context.Context, url string, now time.Time) (bool, error)

	// RecordProbe unconditionally sets the probe time of url to now.
	RecordProbe(ctx context.Context, url string, now time.Time) error

	// Acquire is ShouldProbe followed by RecordProbe as one atomic step.
	// It returns true when the caller should probe url.
	Acquire(ctx context.Context, url string, now time.Time) (bool, error)

	// RecordOutcome stores the result of a completed probe of url.
	RecordOutcome(ctx context.Context, url string, reachable bool) error

	// Lookup returns the record for url, if any.
	Lookup(ctx context.Context, url string) (Record, bool, error)
}

// due reports whether a probe started at last is old enough to repeat at now.
func due(last, now time.Time, interval time.Duration) bool {
	return now.Sub(last) >= interval
}
