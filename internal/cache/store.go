// Package cache stores advisory responses in Redis as TTL-stamped envelopes.
// Redis itself never expires entries; freshness is checked on every read so a
// stale entry behaves exactly like a missing one, and Sweep removes them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when there is no usable entry for the key.
var ErrCacheMiss = errors.New("cache miss")

// ErrStale is returned by Get when an entry exists but is older than its TTL.
// It satisfies errors.Is(err, ErrCacheMiss).
var ErrStale = fmt.Errorf("%w: stale entry", ErrCacheMiss)

// envelope is the stored form of every entry.
type envelope struct {
	GeneratedAt time.Time       `json:"generated_at"`
	TTLSeconds  int64           `json:"ttl_seconds"`
	Payload     json.RawMessage `json:"payload"`
}

func (e envelope) fresh(now time.Time) bool {
	return now.Sub(e.GeneratedAt) < time.Duration(e.TTLSeconds)*time.Second
}

// Store is a JSON cache over a Redis client. All keys are namespaced by prefix.
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New constructs a Store. now is the clock used to stamp and check entries.
func New(client *redis.Client, prefix string, now func() time.Time) *Store {
	return &Store{client: client, prefix: prefix, now: now}
}

// Get decodes the payload stored under key into dst and returns when it was generated.
// Returns ErrCacheMiss (or ErrStale) when there is nothing fresh to return.
func (s *Store) Get(ctx context.Context, key string, dst any) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("cache.Store.Get: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return time.Time{}, fmt.Errorf("cache.Store.Get: corrupt entry: %w", ErrCacheMiss)
	}
	if !env.fresh(s.now()) {
		return time.Time{}, ErrStale
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return time.Time{}, fmt.Errorf("cache.Store.Get: corrupt payload: %w", ErrCacheMiss)
	}
	return env.GeneratedAt, nil
}

// Put stores v under key, stamped with the current time and ttl.
// An existing entry is overwritten.
func (s *Store) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache.Store.Put: encode: %w", err)
	}
	raw, err := json.Marshal(envelope{
		GeneratedAt: s.now().UTC(),
		TTLSeconds:  int64(ttl / time.Second),
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("cache.Store.Put: encode envelope: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("cache.Store.Put: %w", err)
	}
	return nil
}

// Sweep deletes every stale or unreadable entry under the store's prefix and
// returns how many were removed. It iterates with SCAN, never KEYS.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	deleted := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("cache.Store.Sweep: %w", err)
		}

		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.fresh(now) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return deleted, fmt.Errorf("cache.Store.Sweep: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache.Store.Sweep: %w", err)
	}
	return deleted, nil
}

// Key joins parts into a cache key with '|'. Each part is trimmed and
// lower-cased. Letters and digits of any script and '-' are kept; every other
// rune becomes '_', so user input can never inject the separator.
func Key(parts ...string) string {
	clean := make([]string, len(parts))
	for i, p := range parts {
		clean[i] = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
				return r
			}
			return '_'
		}, strings.ToLower(strings.TrimSpace(p)))
	}
	return strings.Join(clean, "|")
}
