package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

// DefaultAPIURL is the OpenWeatherMap current weather endpoint
const DefaultAPIURL = "https://api.openweathermap.org/data/2.5/weather"

// Report is the part of a current-weather response the mirror shows
type Report struct {
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Temp        float64   `json:"temp"`
	Place       string    `json:"place,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// IconURL returns the OpenWeatherMap icon image for the report
func (r Report) IconURL() string {
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", r.Icon)
}

// Degrees returns the temperature truncated toward zero
func (r Report) Degrees() int {
	return int(math.Trunc(r.Temp))
}

// Widget is the tray content for the report
func (r Report) Widget() map[string]any {
	return map[string]any{
		"icon":        r.IconURL(),
		"temp":        r.Degrees(),
		"unit":        "°C",
		"description": r.Description,
	}
}

type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Name string `json:"name"`
}

// Client fetches current conditions from OpenWeatherMap
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultAPIURL.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Current returns the conditions at the given position in metric units
func (c *Client) Current(ctx context.Context, at sky.Coordinates) (*Report, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid weather API URL: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Weather) == 0 || payload.Main == nil {
		return nil, fmt.Errorf("weather response is missing conditions")
	}

	report := &Report{
		Icon:        payload.Weather[0].Icon,
		Description: payload.Weather[0].Description,
		Temp:        payload.Main.Temp,
		Place:       payload.Name,
		FetchedAt:   time.Now().UTC(),
	}

	c.logger.Debug("Weather fetched",
		"place", report.Place,
		"icon", report.Icon,
		"temp", report.Temp)

	return report, nil
}
