package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_upstream_fetches_total",
			Help: "Upstream data fetches by collaborator, source and result.",
		},
		[]string{"collaborator", "source", "result"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_cache_lookups_total",
			Help: "Cache lookups by collaborator and outcome.",
		},
		[]string{"collaborator", "outcome"},
	)

	skyTimeFraction = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_sky_time_fraction",
		Help: "Fraction of the local day at the last sky tick.",
	})

	skyStarsOpacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_sky_stars_opacity",
		Help: "Star layer opacity at the last sky tick.",
	})

	skyPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_sky_phase",
			Help: "1 for the current sky phase, 0 otherwise.",
		},
		[]string{"phase"},
	)

	timelineAdjustments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_timeline_adjustments",
		Help: "Number of keyframes substituted or clamped in the current timeline.",
	})

	timelineBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_timeline_builds_total",
			Help: "Timeline rebuilds by result.",
		},
		[]string{"result"},
	)

	widgetsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_widgets_active",
		Help: "Widgets currently in the tray.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		fetchesTotal,
		cacheLookupsTotal,
		skyTimeFraction,
		skyStarsOpacity,
		skyPhase,
		timelineAdjustments,
		timelineBuildsTotal,
		widgetsActive,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch counts one upstream fetch; result is "ok" or "error"
func RecordFetch(collaborator, source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	fetchesTotal.WithLabelValues(collaborator, source, result).Inc()
}

// RecordCache counts a cache hit or miss
func RecordCache(collaborator string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookupsTotal.WithLabelValues(collaborator, outcome).Inc()
}

// RecordSky publishes the state of the last sky tick
func RecordSky(timeFraction, starsOpacity float64, phase string, phases []string) {
	skyTimeFraction.Set(timeFraction)
	skyStarsOpacity.Set(starsOpacity)
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		skyPhase.WithLabelValues(p).Set(v)
	}
}

// RecordTimelineBuild counts a rebuild and the adjustments it needed
func RecordTimelineBuild(adjustments int, err error) {
	if err != nil {
		timelineBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	timelineBuildsTotal.WithLabelValues("ok").Inc()
	timelineAdjustments.Set(float64(adjustments))
}

// SetWidgets records the tray size
func SetWidgets(n int) {
	widgetsActive.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
// Requests are labelled with the matched mux pattern rather than the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
