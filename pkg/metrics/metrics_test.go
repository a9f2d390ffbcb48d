package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddleware_LabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Middleware(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/widgets/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	out := scrape(t)
	assert.Contains(t, out, `mirror_http_requests_total{code="418",method="GET",path="GET /api/widgets/{id}"}`)
	assert.NotContains(t, out, `path="/api/widgets/abc"`)
}

func TestRecorders(t *testing.T) {
	RecordFetch("sun", "api", nil)
	RecordFetch("sun", "api", errors.New("boom"))
	RecordCache("weather", true)
	RecordSky(0.5, 0.25, "day", []string{"night", "day"})
	RecordTimelineBuild(3, nil)
	SetWidgets(2)

	out := scrape(t)
	assert.Contains(t, out, `mirror_upstream_fetches_total{collaborator="sun",result="error",source="api"}`)
	assert.Contains(t, out, `mirror_cache_lookups_total{collaborator="weather",outcome="hit"}`)
	assert.Contains(t, out, `mirror_sky_phase{phase="day"} 1`)
	assert.Contains(t, out, `mirror_sky_phase{phase="night"} 0`)
	assert.Contains(t, out, "mirror_sky_stars_opacity 0.25")
	assert.Contains(t, out, "mirror_timeline_adjustments 3")
	assert.Contains(t, out, "mirror_widgets_active 2")
}
