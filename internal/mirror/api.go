package mirror

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
	"github.com/saaga0h/jeeves-mirror/internal/weather"
	"github.com/saaga0h/jeeves-mirror/pkg/health"
	"github.com/saaga0h/jeeves-mirror/pkg/metrics"
)

const maxBodyBytes = 64 << 10

// Server exposes the mirror over HTTP
type Server struct {
	httpServer *http.Server
	agent      *Agent
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. static, when non-nil, is served at /.
func NewServer(addr string, agent *Agent, checker *health.Checker, static fs.FS, logger *slog.Logger) *Server {
	s := &Server{agent: agent, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", checker.HandlerFunc())
	mux.HandleFunc("GET /health/detailed", checker.DetailedHandlerFunc())
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/sky", s.handleSky)
	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/gradient", s.handleGradient)
	mux.HandleFunc("GET /api/sun-times", s.handleSunTimes)
	mux.HandleFunc("GET /api/weather", s.handleWeather)
	mux.HandleFunc("GET /api/widgets", s.handleListWidgets)
	mux.HandleFunc("POST /api/widgets", s.handlePutWidget)
	mux.HandleFunc("DELETE /api/widgets/{id}", s.handleDeleteWidget)
	mux.HandleFunc("GET /api/settings/location", s.handleGetLocation)
	mux.HandleFunc("PUT /api/settings/location", s.handlePutLocation)
	mux.HandleFunc("DELETE /api/settings/location", s.handleResetLocation)

	if static != nil {
		mux.Handle("GET /", http.FileServerFS(static))
	}

	// Build middleware chain: metrics -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) handleSky(w http.ResponseWriter, r *http.Request) {
	current, ok := s.agent.Engine().Last()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "sky not ready")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type timelineResponse struct {
	*sky.Timeline
	Location sky.Coordinates `json:"location"`
	TimeZone string          `json:"timeZone"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	tl := s.agent.Engine().Timeline()
	if tl.Empty() {
		writeError(w, http.StatusServiceUnavailable, "timeline not ready")
		return
	}
	at, _ := s.agent.Location()
	writeJSON(w, http.StatusOK, timelineResponse{
		Timeline: tl,
		Location: at,
		TimeZone: s.agent.Engine().Location().String(),
	})
}

func (s *Server) handleGradient(w http.ResponseWriter, r *http.Request) {
	tl := s.agent.Engine().Timeline()
	if tl.Empty() {
		writeError(w, http.StatusServiceUnavailable, "timeline not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"gradient": sky.CSSGradient(tl)})
}

// handleSunTimes returns today's events, or those of ?date=YYYY-MM-DD
func (s *Server) handleSunTimes(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("date"); v != "" {
		date, err := time.ParseInLocation("2006-01-02", v, s.agent.Engine().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		events, err := s.agent.SunTimesFor(r.Context(), date)
		if err != nil {
			s.logger.Error("Failed to fetch sun times", "date", v, "error", err)
			writeError(w, http.StatusBadGateway, "failed to fetch sunrise-sunset data")
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	events, ok := s.agent.SunTimes()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "sun times not loaded")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	report, err := s.agent.Weather(r.Context())
	if errors.Is(err, weather.ErrDisabled) {
		writeError(w, http.StatusNotFound, "weather is not configured")
		return
	}
	if err != nil {
		s.logger.Error("Failed to fetch weather", "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch weather data")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*weather.Report
		IconURL string `json:"iconUrl"`
		Degrees int    `json:"degrees"`
	}{report, report.IconURL(), report.Degrees()})
}

func (s *Server) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.Tray().List())
}

type putWidgetRequest struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Content json.RawMessage `json:"content"`
}

func (s *Server) handlePutWidget(w http.ResponseWriter, r *http.Request) {
	var req putWidgetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = kindGeneric
	}
	if len(req.Content) == 0 {
		req.Content = json.RawMessage("null")
	}
	if req.ID == widgetWeather || req.ID == widgetMusic {
		writeError(w, http.StatusConflict, "widget id is reserved")
		return
	}

	id, changed, err := s.agent.Tray().Put(req.ID, req.Kind, req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.SetWidgets(s.agent.Tray().Len())

	status := http.StatusOK
	if changed {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{"id": id, "changed": changed})
}

func (s *Server) handleDeleteWidget(w http.ResponseWriter, r *http.Request) {
	if !s.agent.Tray().Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "widget not found")
		return
	}
	metrics.SetWidgets(s.agent.Tray().Len())
	w.WriteHeader(http.StatusNoContent)
}

type locationResponse struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	TimeZone string  `json:"timeZone"`
	Source   string  `json:"source"`
}

func (s *Server) locationResponse() locationResponse {
	at, override := s.agent.Location()
	source := "config"
	if override {
		source = "settings"
	}
	return locationResponse{
		Lat:      at.Lat,
		Lng:      at.Lng,
		TimeZone: s.agent.Engine().Location().String(),
		Source:   source,
	}
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.locationResponse())
}

func (s *Server) handlePutLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	if err := s.agent.SetLocation(r.Context(), sky.Coordinates{Lat: *req.Lat, Lng: *req.Lng}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.locationResponse())
}

func (s *Server) handleResetLocation(w http.ResponseWriter, r *http.Request) {
	s.agent.ResetLocation(r.Context())
	writeJSON(w, http.StatusOK, s.locationResponse())
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// probePath returns true for paths polled often enough that they should not log at INFO.
func probePath(path string) bool {
	switch path {
	case "/health", "/health/detailed", "/metrics", "/api/sky", "/api/widgets":
		return true
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
