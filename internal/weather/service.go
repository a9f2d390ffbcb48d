package weather

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

// ErrDisabled is returned when no API key is configured
var ErrDisabled = errors.New("weather is disabled")

// Service caches weather reports in Redis per location
type Service struct {
	client *Client
	cache  redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a cached weather service. A nil client disables it.
func NewService(client *Client, cache redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{client: client, cache: cache, ttl: ttl, logger: logger}
}

// Enabled reports whether the service can fetch reports
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil && s.client.apiKey != ""
}

// Current returns a cached report when one is fresh, otherwise fetches and caches
func (s *Service) Current(ctx context.Context, at sky.Coordinates) (*Report, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	key := redis.WeatherKey(at.Lat, at.Lng)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			var report Report
			if jerr := json.Unmarshal([]byte(data), &report); jerr == nil {
				metrics.RecordCache("weather", true)
				return &report, nil
			}
		} else if !errors.Is(err, redis.ErrNotFound) {
			s.logger.Warn("Failed to read weather cache", "key", key, "error", err)
		}
		metrics.RecordCache("weather", false)
	}

	report, err := s.client.Current(ctx, at)
	metrics.RecordFetch("weather", "openweathermap", err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}

	if s.cache != nil {
		data, err := json.Marshal(report)
		if err == nil {
			err = s.cache.Set(ctx, key, data, s.ttl)
		}
		if err != nil {
			s.logger.Warn("Failed to cache weather", "key", key, "error", err)
		}
	}
	return report, nil
}
