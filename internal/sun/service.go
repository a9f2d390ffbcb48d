package sun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
	"github.com/saaga0h/jeeves-mirror/pkg/metrics"
	"github.com/saaga0h/jeeves-mirror/pkg/redis"
)

// Service serves solar events through a Redis cache, asking the primary
// provider on a miss and the fallback provider when the primary fails
type Service struct {
	primary  Provider
	fallback Provider
	cache    redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService wires the providers and cache. fallback and cache may be nil.
func NewService(primary, fallback Provider, cache redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// Events returns the events for date at the given coordinates. Invalid
// coordinates are replaced by DefaultCoordinates. The returned events always
// carry the coordinates they were computed for.
func (s *Service) Events(ctx context.Context, at sky.Coordinates, date time.Time) (*sky.AstronomicalEvents, error) {
	if !ValidCoordinates(at) {
		s.logger.Warn("Invalid coordinates, using default location",
			"lat", at.Lat, "lng", at.Lng)
		at = DefaultCoordinates
	}

	key := redis.SunTimesKey(at.Lat, at.Lng, date)
	if events, ok := s.fromCache(ctx, key); ok {
		return events, nil
	}

	events, source, err := s.fetch(ctx, at, date)
	if err != nil {
		return nil, err
	}
	if events.Coordinates == nil {
		coords := at
		events.Coordinates = &coords
	}

	// Only primary results are cached so a recovered API replaces fallback data
	if source == s.primary.Name() {
		s.toCache(ctx, key, events)
	}

	if missing := events.Missing(); len(missing) > 0 {
		s.logger.Info("Some solar events are unavailable",
			"date", date.Format("2006-01-02"),
			"source", source,
			"missing", missing)
	}
	return events, nil
}

func (s *Service) fetch(ctx context.Context, at sky.Coordinates, date time.Time) (*sky.AstronomicalEvents, string, error) {
	events, err := s.primary.Events(ctx, at, date)
	metrics.RecordFetch("sun", s.primary.Name(), err)
	if err == nil {
		return events, s.primary.Name(), nil
	}
	if s.fallback == nil || errors.Is(err, context.Canceled) {
		return nil, "", fmt.Errorf("failed to fetch sun times from %s: %w", s.primary.Name(), err)
	}

	s.logger.Warn("Sun times source failed, using fallback",
		"source", s.primary.Name(),
		"fallback", s.fallback.Name(),
		"error", err)

	events, ferr := s.fallback.Events(ctx, at, date)
	metrics.RecordFetch("sun", s.fallback.Name(), ferr)
	if ferr != nil {
		return nil, "", fmt.Errorf("failed to fetch sun times: %w", errors.Join(err, ferr))
	}
	return events, s.fallback.Name(), nil
}

func (s *Service) fromCache(ctx context.Context, key string) (*sky.AstronomicalEvents, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			s.logger.Warn("Failed to read sun times cache", "key", key, "error", err)
		}
		metrics.RecordCache("sun", false)
		return nil, false
	}

	var events sky.AstronomicalEvents
	if err := json.Unmarshal([]byte(data), &events); err != nil {
		s.logger.Warn("Discarding corrupt sun times cache entry", "key", key, "error", err)
		metrics.RecordCache("sun", false)
		return nil, false
	}
	metrics.RecordCache("sun", true)
	return &events, true
}

func (s *Service) toCache(ctx context.Context, key string, events *sky.AstronomicalEvents) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(events)
	if err != nil {
		s.logger.Warn("Failed to encode sun times for cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("Failed to cache sun times", "key", key, "error", err)
	}
}
