package throttle

import (
	"context"
	"sync"
	"time"
)

// minSweepThreshold is the record count below which no eviction sweep runs.
const minSweepThreshold = 1024

// MemoryStore is an in-memory implementation of [Store].
//
// Records not probed for longer than the record TTL are evicted lazily: when
// the map grows past a threshold, the next write sweeps stale entries and
// doubles the threshold relative to what survived. A record older than the
// TTL (which is never shorter than the interval) no longer throttles anything,
// so eviction only forgets last known outcomes.
type MemoryStore struct {
	interval time.Duration
	ttl      time.Duration

	mu             sync.Mutex
	records        map[string]*Record
	sweepThreshold int
}

// NewMemoryStore creates a [MemoryStore].
//
// Non-positive values fall back to [DefaultInterval] and [DefaultRecordTTL].
// A TTL shorter than the interval is raised to the interval.
func NewMemoryStore(interval, ttl time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	if ttl < interval {
		ttl = interval
	}

	return &MemoryStore{
		interval:       interval,
		ttl:            ttl,
		records:        make(map[string]*Record),
		sweepThreshold: minSweepThreshold,
	}
}

// Interval returns the configured throttle interval.
func (m *MemoryStore) Interval() time.Duration {
	return m.interval
}

// ShouldProbe implements [Store].
func (m *MemoryStore) ShouldProbe(_ context.Context, url string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shouldProbeLocked(url, now), nil
}

// RecordProbe implements [Store].
func (m *MemoryStore) RecordProbe(_ context.Context, url string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recordLocked(url, now)
	return nil
}

// Acquire implements [Store].
func (m *MemoryStore) Acquire(_ context.Context, url string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.shouldProbeLocked(url, now) {
		return false, nil
	}
	m.recordLocked(url, now)
	return true, nil
}

// RecordOutcome implements [Store].
func (m *MemoryStore) RecordOutcome(_ context.Context, url string, reachable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[url]
	if !ok {
		rec = &Record{URL: url}
		m.records[url] = rec
	}
	rec.Reachable = reachable
	rec.Known = true
	return nil
}

// Lookup implements [Store].
func (m *MemoryStore) Lookup(_ context.Context, url string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[url]
	if !ok {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

// Len returns the number of records currently held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}

func (m *MemoryStore) shouldProbeLocked(url string, now time.Time) bool {
	rec, ok := m.records[url]
	if !ok || rec.CheckedAt.IsZero() {
		return true
	}
	return due(rec.CheckedAt, now, m.interval)
}

func (m *MemoryStore) recordLocked(url string, now time.Time) {
	rec, ok := m.records[url]
	if !ok {
		rec = &Record{URL: url}
		m.records[url] = rec
	}
	rec.CheckedAt = now

	if len(m.records) >= m.sweepThreshold {
		m.sweepLocked(now)
	}
}

// sweepLocked drops records whose last probe is older than the TTL.
func (m *MemoryStore) sweepLocked(now time.Time) {
	for url, rec := range m.records {
		if now.Sub(rec.CheckedAt) >= m.ttl {
			delete(m.records, url)
		}
	}

	m.sweepThreshold = 2 * len(m.records)
	if m.sweepThreshold < minSweepThreshold {
		m.sweepThreshold = minSweepThreshold
	}
}
