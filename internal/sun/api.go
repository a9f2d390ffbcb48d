package sun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

// DefaultAPIURL is the public sunrise-sunset.org endpoint
const DefaultAPIURL = "https://api.sunrise-sunset.org/json"

type apiResponse struct {
	Results json.RawMessage `json:"results"`
	Status  string          `json:"status"`
}

// APIProvider fetches solar events from sunrise-sunset.org
type APIProvider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAPIProvider creates a provider for the given endpoint
func NewAPIProvider(baseURL string, logger *slog.Logger) *APIProvider {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &APIProvider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (p *APIProvider) Name() string { return "api" }

// Events requests the day's events with formatted=0 so every field is an
// ISO 8601 timestamp in UTC
func (p *APIProvider) Events(ctx context.Context, at sky.Coordinates, date time.Time) (*sky.AstronomicalEvents, error) {
	startTime := time.Now()

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sun API URL: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	q.Set("date", date.Format("2006-01-02"))
	q.Set("formatted", "0")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sun API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Status != "OK" {
		return nil, fmt.Errorf("sun API status %q", payload.Status)
	}
	if len(payload.Results) == 0 || string(payload.Results) == "null" {
		return nil, fmt.Errorf("sun API response has no results")
	}

	var events sky.AstronomicalEvents
	if err := json.Unmarshal(payload.Results, &events); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	coords := at
	events.Coordinates = &coords

	p.logger.Debug("Sun times fetched",
		"lat", at.Lat,
		"lng", at.Lng,
		"date", date.Format("2006-01-02"),
		"missing", len(events.Missing()),
		"duration_ms", time.Since(startTime).Milliseconds())

	return &events, nil
}
