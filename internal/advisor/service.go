package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voyagesur/backend/internal/cache"
	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/metrics"
)

// Freshness windows for cached answers.
const (
	WeatherTTL = 24 * time.Hour
	AdviceTTL  = 30 * 24 * time.Hour
)

// completer is the slice of Client the service needs.
type completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Cache is the slice of cache.Store the service needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (time.Time, error)
	Put(ctx context.Context, key string, v any, ttl time.Duration) error
	Sweep(ctx context.Context) (int, error)
}

// Service answers weather and advice queries cache-aside. Cache failures are
// logged and bypassed; they never fail a query. A nil cache disables caching.
type Service struct {
	llm   completer
	cache Cache
	now   func() time.Time
	log   *slog.Logger
}

// NewService constructs a Service.
func NewService(llm completer, c Cache, now func() time.Time, log *slog.Logger) *Service {
	return &Service{llm: llm, cache: c, now: now, log: log}
}

// Weather returns the weather summary for q, from cache when fresh.
func (s *Service) Weather(ctx context.Context, q domain.WeatherQuery) (domain.Weather, error) {
	key := cache.Key("weather", q.Destination, q.Start.UTC().Format(dateLayout), q.End.UTC().Format(dateLayout))
	w, err := cached(ctx, s, "weather", key, WeatherTTL, func(ctx context.Context) (domain.Weather, bool, error) {
		content, err := s.llm.Complete(ctx, systemPrompt, weatherPrompt(q))
		if err != nil {
			return domain.Weather{}, false, err
		}
		w := parseWeather(content)
		w.GeneratedAt = s.now().UTC()
		return w, w.Degraded, nil
	})
	if err != nil {
		return domain.Weather{}, fmt.Errorf("advisor.Service.Weather: %w", err)
	}
	return w, nil
}

// Advice returns travel advice for q, from cache when fresh.
func (s *Service) Advice(ctx context.Context, q domain.AdviceQuery) (domain.TravelAdvice, error) {
	key := cache.Key("advice", q.Destination, q.Start.UTC().Format(dateLayout), q.End.UTC().Format(dateLayout), string(q.TravelType))
	a, err := cached(ctx, s, "advice", key, AdviceTTL, func(ctx context.Context) (domain.TravelAdvice, bool, error) {
		content, err := s.llm.Complete(ctx, systemPrompt, advicePrompt(q))
		if err != nil {
			return domain.TravelAdvice{}, false, err
		}
		a := parseAdvice(content)
		a.GeneratedAt = s.now().UTC()
		return a, a.Degraded, nil
	})
	if err != nil {
		return domain.TravelAdvice{}, fmt.Errorf("advisor.Service.Advice: %w", err)
	}
	return a, nil
}

// Sweep removes stale cache entries.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.Sweep(ctx)
	if err != nil {
		return n, fmt.Errorf("advisor.Service.Sweep: %w", err)
	}
	return n, nil
}

// cached serves key from the cache when fresh, otherwise calls fetch and
// stores its result. Degraded results are returned but not stored.
func cached[T any](ctx context.Context, s *Service, kind, key string, ttl time.Duration,
	fetch func(ctx context.Context) (T, bool, error)) (T, error) {
	if s.cache != nil {
		var hit T
		_, err := s.cache.Get(ctx, key, &hit)
		switch {
		case err == nil:
			metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
			return hit, nil
		case errors.Is(err, cache.ErrStale):
			metrics.CacheLookups.WithLabelValues(kind, "stale").Inc()
		case errors.Is(err, cache.ErrCacheMiss):
			metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
		default:
			metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
			s.log.Warn("advisory cache read failed", "kind", kind, "key", key, "error", err)
		}
	}

	start := time.Now()
	v, degraded, err := fetch(ctx)
	metrics.ObserveUpstream(kind, outcome(err), time.Since(start))
	if err != nil {
		var zero T
		return zero, err
	}

	if degraded {
		s.log.Warn("advisory answer was not valid JSON", "kind", kind, "key", key)
		return v, nil
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, key, v, ttl); err != nil {
			s.log.Warn("advisory cache write failed", "kind", kind, "key", key, "error", err)
		}
	}
	return v, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(domain.UpstreamKindOf(err))
}
