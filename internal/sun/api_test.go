package sun

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const okResponse = `{
	"results": {
		"sunrise": "2024-12-21T07:24:00+00:00",
		"sunset": "2024-12-21T14:30:00+00:00",
		"solar_noon": "2024-12-21T10:57:00+00:00",
		"day_length": 25560,
		"civil_twilight_begin": "2024-12-21T06:35:00+00:00",
		"civil_twilight_end": "2024-12-21T15:19:00+00:00",
		"nautical_twilight_begin": "2024-12-21T05:41:00+00:00",
		"nautical_twilight_end": "2024-12-21T16:13:00+00:00",
		"astronomical_twilight_begin": "2024-12-21T04:53:00+00:00",
		"astronomical_twilight_end": "1970-01-01T00:00:01+00:00"
	},
	"status": "OK",
	"tzid": "UTC"
}`

func TestAPIProvider_Events(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"lat":       q.Get("lat"),
			"lng":       q.Get("lng"),
			"date":      q.Get("date"),
			"formatted": q.Get("formatted"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okResponse))
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, testLogger())
	date := time.Date(2024, 12, 21, 0, 0, 0, 0, time.UTC)

	events, err := p.Events(context.Background(), DefaultCoordinates, date)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"lat":       "57.6529",
		"lng":       "11.9106",
		"date":      "2024-12-21",
		"formatted": "0",
	}, query)

	rise, ok := events.Valid(sky.Sunrise)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 21, 7, 24, 0, 0, time.UTC), rise.UTC())
	assert.Equal(t, []sky.Event{sky.AstronomicalTwilightEnd}, events.Missing())
	require.NotNil(t, events.Coordinates)
	assert.Equal(t, DefaultCoordinates, *events.Coordinates)
}

func TestAPIProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{"http error", http.StatusBadGateway, "upstream down", "status 502"},
		{"api status", http.StatusOK, `{"results": "", "status": "INVALID_DATE"}`, "INVALID_DATE"},
		{"no results", http.StatusOK, `{"status": "OK"}`, "no results"},
		{"bad json", http.StatusOK, `{"status":`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAPIProvider(srv.URL, testLogger()).Events(context.Background(), DefaultCoordinates, time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAPIProvider_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAPIProvider(srv.URL, testLogger()).Events(ctx, DefaultCoordinates, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
