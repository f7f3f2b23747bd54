package throttle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the keys written by [RedisStore].
const DefaultKeyPrefix = "publink:probe:"

const (
	fieldURL       = "url"
	fieldCheckedAt = "checked_at"
	fieldReachable = "reachable"
)

// acquireScript performs the throttle check and the timestamp update in one
// server-side step.
//
// KEYS[1] record key; ARGV[1] now (ms); ARGV[2] interval (ms); ARGV[3] ttl (ms); ARGV[4] url.
var acquireScript = redis.NewScript(`
local last = redis.call('HGET', KEYS[1], 'checked_at')
if last and (tonumber(ARGV[1]) - tonumber(last)) < tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'checked_at', ARGV[1], 'url', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisStore is a [Store] backed by Redis, for deployments where several
// service replicas should share one throttle.
//
// Each URL maps to a hash keyed by the SHA-256 of the URL. Keys expire after
// the record TTL, which bounds growth the same way [MemoryStore] sweeps do.
type RedisStore struct {
	client   redis.UniversalClient
	interval time.Duration
	ttl      time.Duration
	prefix   string
}

// NewRedisStore creates a [RedisStore] using client.
//
// Non-positive durations fall back to the package defaults. The caller owns
// client and is responsible for closing it.
func NewRedisStore(client redis.UniversalClient, interval, ttl time.Duration) *RedisStore {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	if ttl < interval {
		ttl = interval
	}

	return &RedisStore{
		client:   client,
		interval: interval,
		ttl:      ttl,
		prefix:   DefaultKeyPrefix,
	}
}

// Key returns the Redis key used for url.
func (r *RedisStore) Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return r.prefix + hex.EncodeToString(sum[:])
}

// ShouldProbe implements [Store].
func (r *RedisStore) ShouldProbe(ctx context.Context, url string, now time.Time) (bool, error) {
	raw, err := r.client.HGet(ctx, r.Key(url), fieldCheckedAt).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to read probe record: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, fmt.Errorf("corrupt probe record for %s: %w", url, err)
	}
	return due(time.UnixMilli(ms), now, r.interval), nil
}

// RecordProbe implements [Store].
func (r *RedisStore) RecordProbe(ctx context.Context, url string, now time.Time) error {
	key := r.Key(url)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldCheckedAt, now.UnixMilli(), fieldURL, url)
		pipe.PExpire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}
	return nil
}

// Acquire implements [Store].
func (r *RedisStore) Acquire(ctx context.Context, url string, now time.Time) (bool, error) {
	res, err := acquireScript.Run(ctx, r.client,
		[]string{r.Key(url)},
		now.UnixMilli(), r.interval.Milliseconds(), r.ttl.Milliseconds(), url,
	).Int()
	if err != nil {
		return true, fmt.Errorf("failed to acquire probe slot: %w", err)
	}
	return res == 1, nil
}

// RecordOutcome implements [Store].
func (r *RedisStore) RecordOutcome(ctx context.Context, url string, reachable bool) error {
	key := r.Key(url)
	val := "0"
	if reachable {
		val = "1"
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldReachable, val, fieldURL, url)
		pipe.PExpire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// Lookup implements [Store].
func (r *RedisStore) Lookup(ctx context.Context, url string) (Record, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.Key(url)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read probe record: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}
	return decodeRecord(url, fields), true, nil
}

// Ping checks connectivity to Redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// decodeRecord converts a hash into a [Record]. Malformed fields are ignored.
func decodeRecord(url string, fields map[string]string) Record {
	rec := Record{URL: url}

	if raw, ok := fields[fieldCheckedAt]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.CheckedAt = time.UnixMilli(ms)
		}
	}
	if raw, ok := fields[fieldReachable]; ok {
		switch raw {
		case "1":
			rec.Known, rec.Reachable = true, true
		case "0":
			rec.Known = true
		}
	}

	return rec
}
