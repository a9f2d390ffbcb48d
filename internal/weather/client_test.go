package weather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

var gothenburg = sky.Coordinates{Lat: 57.65, Lng: 11.916}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const owmBody = `{
	"weather": [{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"}],
	"main": {"temp": -3.7, "feels_like": -8.1, "humidity": 91},
	"name": "Gothenburg"
}`

func weatherServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		q := r.URL.Query()
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "secret", q.Get("appid"))
		assert.Equal(t, "57.65", q.Get("lat"))
		assert.Equal(t, "11.916", q.Get("lon"))
		_, _ = w.Write([]byte(owmBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Current(t *testing.T) {
	hits := 0
	srv := weatherServer(t, &hits)

	report, err := NewClient(srv.URL, "secret", testLogger()).Current(context.Background(), gothenburg)
	require.NoError(t, err)

	assert.Equal(t, "10d", report.Icon)
	assert.Equal(t, "light rain", report.Description)
	assert.Equal(t, "Gothenburg", report.Place)
	assert.Equal(t, -3, report.Degrees())
	assert.Equal(t, "https://openweathermap.org/img/wn/10d@2x.png", report.IconURL())

	w := report.Widget()
	assert.Equal(t, -3, w["temp"])
	assert.Equal(t, report.IconURL(), w["icon"])
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod": 401, "message": "Invalid API key"}`},
		{"no conditions", http.StatusOK, `{"weather": [], "main": {"temp": 1}}`},
		{"no main", http.StatusOK, `{"weather": [{"icon": "01d"}]}`},
		{"garbage", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", testLogger()).Current(context.Background(), gothenburg)
			assert.Error(t, err)
		})
	}
}

func TestReport_DegreesTruncates(t *testing.T) {
	assert.Equal(t, 21, Report{Temp: 21.9}.Degrees())
	assert.Equal(t, 0, Report{Temp: -0.4}.Degrees())
}
