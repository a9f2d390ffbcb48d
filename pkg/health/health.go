package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/jeeves-mirror/pkg/mqtt"
	"github.com/saaga0h/jeeves-mirror/pkg/redis"
)

// SkyStatus reports the state of the sky engine
type SkyStatus interface {
	// TimelineDate returns the day the current timeline was built for and
	// false when no timeline has been built yet
	TimelineDate() (time.Time, bool)
}

// Checker provides health check functionality for the mirror
type Checker struct {
	mqtt   mqtt.Client
	redis  redis.Client
	sky    SkyStatus
	logger *slog.Logger
}

// NewChecker creates a new health checker with the given dependencies.
// Any dependency may be nil.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, sky SkyStatus, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:   mqttClient,
		redis:  redisClient,
		sky:    sky,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Timeline string `json:"timeline"`
}

// HandlerFunc returns 200 while the process is alive without checking dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc returns a handler that checks all dependencies.
// Broker or cache outages only degrade the mirror; the sky keeps rendering
// from the last timeline. A missing timeline is reported as unavailable.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := h.Check(r.Context())

		status := "healthy"
		statusCode := http.StatusOK

		if services.Redis != "connected" || services.MQTT != "connected" {
			status = "degraded"
		}
		if services.Timeline != "ready" {
			status = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}
		h.write(w, statusCode, response)
	}
}

// Check probes each dependency. Redis gets a short ping.
func (h *Checker) Check(ctx context.Context) *Services {
	services := &Services{
		Redis:    "disconnected",
		MQTT:     "disconnected",
		Timeline: "pending",
	}

	if h.mqtt != nil && h.mqtt.IsConnected() {
		services.MQTT = "connected"
	}

	if h.redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := h.redis.Ping(pingCtx); err == nil {
			services.Redis = "connected"
		} else {
			h.logger.Debug("Redis ping failed", "error", err)
		}
	}

	if h.sky != nil {
		if _, ok := h.sky.TimelineDate(); ok {
			services.Timeline = "ready"
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
