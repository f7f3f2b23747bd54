package throttle

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore returns a RedisStore against PUBLINK_TEST_REDIS_ADDR, skipping
// the test when no server is configured.
func redisStore(t *testing.T, interval time.Duration) *RedisStore {
	t.Helper()

	addr := os.Getenv("PUBLINK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PUBLINK_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, interval, time.Minute)
	s.prefix = "publink:test:" + strings.ReplaceAll(t.Name(), "/", ":") + ":"

	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return s
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore(nil, 0, 0)

	a := s.Key("https://service.example/projects/a")
	b := s.Key("https://service.example/projects/b")

	if !strings.HasPrefix(a, DefaultKeyPrefix) {
		t.Errorf("Key() = %q, want prefix %q", a, DefaultKeyPrefix)
	}
	if len(a) != len(DefaultKeyPrefix)+64 {
		t.Errorf("Key() length = %d, want prefix + 64 hex chars", len(a))
	}
	if a == b {
		t.Error("distinct URLs mapped to the same key")
	}
	if a != s.Key("https://service.example/projects/a") {
		t.Error("Key() is not deterministic")
	}
}

func TestNewRedisStore_Defaults(t *testing.T) {
	s := NewRedisStore(nil, 0, 0)
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
	if s.ttl != DefaultRecordTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultRecordTTL)
	}
}

func TestDecodeRecord(t *testing.T) {
	rec := decodeRecord("u", map[string]string{
		fieldCheckedAt: "1735732800000",
		fieldReachable: "0",
	})
	if !rec.Known || rec.Reachable {
		t.Errorf("decodeRecord() = %+v, want known unreachable", rec)
	}
	if rec.CheckedAt.UnixMilli() != 1735732800000 {
		t.Errorf("CheckedAt = %v", rec.CheckedAt)
	}

	rec = decodeRecord("u", map[string]string{fieldCheckedAt: "garbage"})
	if rec.Known || !rec.CheckedAt.IsZero() {
		t.Errorf("decodeRecord() with bad fields = %+v, want zero record", rec)
	}
}

func TestRedisStore_Acquire(t *testing.T) {
	s := redisStore(t, 3*time.Second)
	ctx := context.Background()
	const url = "https://service.example/projects/a"
	t.Cleanup(func() { s.client.Del(ctx, s.Key(url)) })

	if ok, err := s.Acquire(ctx, url, t0); err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := s.Acquire(ctx, url, t0.Add(time.Second)); ok {
		t.Error("Acquire() within interval = true, want false")
	}
	if ok, _ := s.Acquire(ctx, url, t0.Add(3*time.Second)); !ok {
		t.Error("Acquire() at interval = false, want true")
	}
}

func TestRedisStore_OutcomeRoundTrip(t *testing.T) {
	s := redisStore(t, 3*time.Second)
	ctx := context.Background()
	const url = "https://service.example/projects/b"
	t.Cleanup(func() { s.client.Del(ctx, s.Key(url)) })

	if _, found, _ := s.Lookup(ctx, url); found {
		t.Fatal("Lookup() found a record before any write")
	}
	if ok, _ := s.ShouldProbe(ctx, url, t0); !ok {
		t.Error("ShouldProbe() = false with no record")
	}

	if err := s.RecordProbe(ctx, url, t0); err != nil {
		t.Fatalf("RecordProbe() error = %v", err)
	}
	if err := s.RecordOutcome(ctx, url, false); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}

	rec, found, err := s.Lookup(ctx, url)
	if err != nil || !found {
		t.Fatalf("Lookup() = %v, %v", found, err)
	}
	if !rec.Known || rec.Reachable {
		t.Errorf("Lookup() = %+v, want known unreachable", rec)
	}
	if ok, _ := s.ShouldProbe(ctx, url, t0.Add(time.Second)); ok {
		t.Error("ShouldProbe() within interval = true")
	}
}
