package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
	"github.com/saaga0h/jeeves-mirror/internal/sun"
	"github.com/saaga0h/jeeves-mirror/internal/weather"
	"github.com/saaga0h/jeeves-mirror/internal/widgets"
	"github.com/saaga0h/jeeves-mirror/pkg/config"
	"github.com/saaga0h/jeeves-mirror/pkg/metrics"
	"github.com/saaga0h/jeeves-mirror/pkg/mqtt"
	"github.com/saaga0h/jeeves-mirror/pkg/redis"
)

const (
	// how often the refresh loop checks for a new local day or retries a failed build
	refreshCheckInterval = time.Minute
	connectTimeout       = 10 * time.Second
)

var allPhases = []string{
	string(sky.PhaseNight),
	string(sky.PhaseDawn),
	string(sky.PhaseSunrise),
	string(sky.PhaseDay),
	string(sky.PhaseSunset),
	string(sky.PhaseDusk),
}

// Agent drives the mirror: it keeps a timeline for the current local day,
// renders the sky on a fixed interval and maintains the widget tray
type Agent struct {
	mqtt   mqtt.Client
	redis  redis.Client
	cfg    *config.Config
	logger *slog.Logger

	engine  *sky.Engine
	palette sky.Palette
	opts    sky.BuildOptions
	sun     *sun.Service
	weather *weather.Service
	tray    *widgets.Tray

	// State management
	stateMux  sync.RWMutex
	location  sky.Coordinates
	override  bool
	events    *sky.AstronomicalEvents
	day       string
	lastPhase sky.Phase

	// Lifecycle. runMu orders Start's wg.Add against Stop's wg.Wait.
	runMu       sync.Mutex
	stopped     bool
	cancelRun   context.CancelFunc
	topics      []string
	refreshChan chan struct{}
	stopChan    chan struct{}
	wg          sync.WaitGroup
	now         func() time.Time
}

// NewAgent creates a new mirror agent. It performs no I/O.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	loc, err := sky.ResolveLocation(cfg.TimeZone)
	if err != nil {
		logger.Warn("Time zone fallback", "configured", cfg.TimeZone, "using", loc.String(), "error", err)
	}

	blend, err := sky.ParseBlendMode(cfg.BlendMode)
	if err != nil {
		return nil, err
	}

	palette := sky.DefaultPalette()
	if cfg.PaletteFile != "" {
		palette, err = sky.LoadPalette(cfg.PaletteFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded palette", "file", cfg.PaletteFile)
	}

	var primary, fallback sun.Provider
	switch cfg.SunSource {
	case "suncalc":
		primary = sun.NewCalcProvider()
	default:
		primary = sun.NewAPIProvider(cfg.SunAPIURL, logger)
		if cfg.SunCalcOnError {
			fallback = sun.NewCalcProvider()
		}
	}
	sunTTL := time.Duration(cfg.SunCacheHours * float64(time.Hour))

	var weatherClient *weather.Client
	if cfg.WeatherAPIKey != "" {
		weatherClient = weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey, logger)
	}
	weatherTTL := time.Duration(cfg.WeatherCacheMin) * time.Minute

	return &Agent{
		mqtt:    mqttClient,
		redis:   redisClient,
		cfg:     cfg,
		logger:  logger,
		engine:  sky.NewEngine(loc, blend, nil),
		palette: palette,
		opts: sky.BuildOptions{
			FallbackOffset: cfg.FallbackOffset,
			StartBoundary:  0,
			EndBoundary:    cfg.EndBoundary,
		},
		sun:         sun.NewService(primary, fallback, redisClient, sunTTL, logger),
		weather:     weather.NewService(weatherClient, redisClient, weatherTTL, logger),
		tray:        widgets.NewTray(cfg.MaxWidgets),
		location:    sky.Coordinates{Lat: cfg.Latitude, Lng: cfg.Longitude},
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		now:         time.Now,
	}, nil
}

// Start connects, restores persisted state, builds the first timeline and
// runs the loops until ctx is cancelled or Stop is called. Broker and cache
// outages are logged and tolerated; the sky keeps rendering without them.
func (a *Agent) Start(ctx context.Context) error {
	// Startup counts as running work so Stop waits for it, and cancels it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.runMu.Lock()
	if a.stopped {
		a.runMu.Unlock()
		return nil
	}
	a.cancelRun = cancel
	a.wg.Add(1)
	a.runMu.Unlock()

	ok := a.startup(ctx)
	a.wg.Done()
	if !ok {
		return nil
	}

	a.logger.Info("Mirror agent started and ready")

	<-ctx.Done()
	a.logger.Info("Mirror agent stopping")
	return nil
}

// startup runs once under the Start work count. It returns false when the
// agent was stopped part way.
func (a *Agent) startup(ctx context.Context) bool {
	a.logger.Info("Starting mirror agent",
		"service_name", a.cfg.ServiceName,
		"time_zone", a.engine.Location().String(),
		"sun_source", a.cfg.SunSource,
		"sample_interval_sec", a.cfg.SampleIntervalSec,
		"weather_enabled", a.weather.Enabled())

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	if err := a.mqtt.Connect(connectCtx); err != nil {
		a.logger.Warn("MQTT not available yet, continuing without it", "error", err)
	}
	cancel()

	if err := a.redis.Ping(ctx); err != nil {
		a.logger.Warn("Redis not available, continuing without cache", "error", err)
	}

	a.restoreSky(ctx)
	a.restoreLocation(ctx)

	a.subscribe(a.cfg.NowPlayingTopic, a.handleNowPlaying)
	a.subscribe(mqtt.TopicWidgets, a.handleWidget)

	if err := a.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		a.logger.Error("Initial timeline build failed, will retry", "error", err)
	}
	if ctx.Err() != nil {
		return false
	}
	a.tick(ctx)

	a.startRefreshLoop(ctx)
	a.startSkyLoop(ctx)
	if a.weather.Enabled() {
		a.startWeatherLoop(ctx)
	}
	return true
}

func (a *Agent) subscribe(topic string, handler mqtt.MessageHandler) {
	if err := a.mqtt.Subscribe(topic, 0, handler); err != nil {
		a.logger.Warn("Subscription deferred until connected", "topic", topic, "error", err)
	}
	a.runMu.Lock()
	a.topics = append(a.topics, topic)
	a.runMu.Unlock()
}

// Stop gracefully stops the agent. It may be called before, during or
// after Start.
func (a *Agent) Stop() error {
	a.logger.Info("Stopping mirror agent")

	a.runMu.Lock()
	if !a.stopped {
		a.stopped = true
		close(a.stopChan)
		if a.cancelRun != nil {
			a.cancelRun()
		}
	}
	a.runMu.Unlock()

	a.wg.Wait()

	a.runMu.Lock()
	topics := a.topics
	a.topics = nil
	a.runMu.Unlock()

	// No handler may touch the tray once stopped
	for _, topic := range topics {
		if err := a.mqtt.Unsubscribe(topic); err != nil {
			a.logger.Debug("Failed to unsubscribe", "topic", topic, "error", err)
		}
	}
	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Mirror agent stopped")
	return nil
}

// Engine returns the sky engine
func (a *Agent) Engine() *sky.Engine { return a.engine }

// Tray returns the widget tray
func (a *Agent) Tray() *widgets.Tray { return a.tray }

// Location returns the active coordinates and whether they were set at runtime
func (a *Agent) Location() (sky.Coordinates, bool) {
	a.stateMux.RLock()
	defer a.stateMux.RUnlock()
	return a.location, a.override
}

// SetLocation switches to new coordinates, persists them and rebuilds the timeline
func (a *Agent) SetLocation(ctx context.Context, c sky.Coordinates) error {
	if !sun.ValidCoordinates(c) {
		return fmt.Errorf("coordinates out of range: lat %.4f lng %.4f", c.Lat, c.Lng)
	}

	a.stateMux.Lock()
	a.location = c
	a.override = true
	a.day = ""
	a.stateMux.Unlock()

	data, err := json.Marshal(c)
	if err == nil {
		err = a.redis.Set(ctx, redis.LocationKey(a.cfg.ServiceName), data, 0)
	}
	if err != nil {
		a.logger.Warn("Failed to persist location", "error", err)
	}

	a.logger.Info("Location changed", "lat", c.Lat, "lng", c.Lng)
	a.requestRefresh()
	return nil
}

// ResetLocation returns to the configured coordinates
func (a *Agent) ResetLocation(ctx context.Context) {
	a.stateMux.Lock()
	a.location = sky.Coordinates{Lat: a.cfg.Latitude, Lng: a.cfg.Longitude}
	a.override = false
	a.day = ""
	a.stateMux.Unlock()

	if err := a.redis.Del(ctx, redis.LocationKey(a.cfg.ServiceName)); err != nil {
		a.logger.Warn("Failed to clear persisted location", "error", err)
	}

	a.logger.Info("Location reset to configured default")
	a.requestRefresh()
}

// SunTimes returns the events the current timeline was built from
func (a *Agent) SunTimes() (*sky.AstronomicalEvents, bool) {
	a.stateMux.RLock()
	defer a.stateMux.RUnlock()
	return a.events, a.events != nil
}

// SunTimesFor looks up the events of another day at the active location
func (a *Agent) SunTimesFor(ctx context.Context, date time.Time) (*sky.AstronomicalEvents, error) {
	at, _ := a.Location()
	return a.sun.Events(ctx, at, date)
}

// Weather returns the current report at the active location
func (a *Agent) Weather(ctx context.Context) (*weather.Report, error) {
	at, _ := a.Location()
	return a.weather.Current(ctx, at)
}

// TimelineDate returns the day of the current timeline
func (a *Agent) TimelineDate() (time.Time, bool) {
	tl := a.engine.Timeline()
	if tl.Empty() {
		return time.Time{}, false
	}
	return tl.Date, true
}

// Refresh fetches today's events and swaps in a new timeline. On failure the
// previous timeline stays in place.
func (a *Agent) Refresh(ctx context.Context) error {
	loc := a.engine.Location()
	now := a.now().In(loc)
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	at, _ := a.Location()

	events, err := a.sun.Events(ctx, at, date)
	if err != nil {
		metrics.RecordTimelineBuild(0, err)
		return fmt.Errorf("failed to get sun times: %w", err)
	}

	tl := sky.BuildTimeline(events, loc, a.palette, a.opts)
	if tl.Empty() {
		err := errors.New("sun data has no solar noon")
		metrics.RecordTimelineBuild(0, err)
		return err
	}

	for _, adj := range tl.Adjustments {
		a.logger.Info("Timeline keyframe adjusted",
			"event", adj.Event,
			"reason", adj.Reason,
			"percentage", adj.Percentage)
	}

	a.engine.SetTimeline(tl)
	metrics.RecordTimelineBuild(len(tl.Adjustments), nil)

	a.stateMux.Lock()
	a.events = events
	a.day = date.Format("2006-01-02")
	a.stateMux.Unlock()

	a.logger.Info("Timeline built",
		"date", date.Format("2006-01-02"),
		"lat", at.Lat,
		"lng", at.Lng,
		"keyframes", tl.Len(),
		"adjustments", len(tl.Adjustments))
	return nil
}

// needsRefresh reports whether the timeline is missing or from another day
func (a *Agent) needsRefresh() bool {
	today := a.now().In(a.engine.Location()).Format("2006-01-02")
	a.stateMux.RLock()
	defer a.stateMux.RUnlock()
	return a.day != today
}

func (a *Agent) requestRefresh() {
	select {
	case a.refreshChan <- struct{}{}:
	default:
	}
}

// startRefreshLoop rebuilds the timeline on date rollover and on request
func (a *Agent) startRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshCheckInterval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !a.needsRefresh() {
					continue
				}
			case <-a.refreshChan:
			case <-a.stopChan:
				return
			case <-ctx.Done():
				return
			}

			if err := a.Refresh(ctx); err != nil {
				a.logger.Error("Timeline refresh failed", "error", err)
				continue
			}
			a.tick(ctx)
		}
	}()
}

// startSkyLoop renders the sky on the sample interval
func (a *Agent) startSkyLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.SampleIntervalSec) * time.Second
	ticker := time.NewTicker(interval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer ticker.Stop()
		a.logger.Info("Starting sky loop", "interval_sec", a.cfg.SampleIntervalSec)
		for {
			select {
			case <-ticker.C:
				a.tick(ctx)
			case <-a.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// startWeatherLoop keeps the weather widget current
func (a *Agent) startWeatherLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.WeatherIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer ticker.Stop()
		a.updateWeather(ctx)
		for {
			select {
			case <-ticker.C:
				a.updateWeather(ctx)
			case <-a.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// tick renders one frame, persists it and announces phase changes
func (a *Agent) tick(ctx context.Context) {
	s, fresh := a.engine.Tick(a.now())
	if !fresh {
		a.logger.Debug("No timeline, keeping last sky")
		return
	}

	metrics.RecordSky(s.TimeFraction, s.StarsOpacity, string(s.Phase), allPhases)
	a.saveSky(ctx, s)

	a.stateMux.Lock()
	changed := s.Phase != a.lastPhase
	a.lastPhase = s.Phase
	a.stateMux.Unlock()

	if changed {
		if err := a.publishSkyContext(s); err != nil {
			a.logger.Warn("Failed to publish sky context", "error", err)
		}
	}
}

// publishSkyContext announces the sky phase as a retained message
func (a *Agent) publishSkyContext(s sky.Sky) error {
	at, _ := a.Location()
	contextMsg := map[string]interface{}{
		"phase":         s.Phase,
		"top_color":     s.TopColor,
		"bottom_color":  s.BottomColor,
		"stars_opacity": s.StarsOpacity,
		"time_fraction": s.TimeFraction,
		"location":      at,
		"sun_altitude":  math.Round(sun.SunAltitude(s.At, at)*10) / 10,
		"timestamp":     s.At.Format(time.RFC3339),
	}

	payload, err := json.Marshal(contextMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal sky context: %w", err)
	}
	if err := a.mqtt.Publish(a.cfg.SkyContextTopic, 0, true, payload); err != nil {
		return err
	}

	a.logger.Info("Published sky context", "phase", s.Phase, "topic", a.cfg.SkyContextTopic)
	return nil
}

func (a *Agent) saveSky(ctx context.Context, s sky.Sky) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	ttl := time.Duration(a.cfg.SkyStateTTLMin) * time.Minute
	if err := a.redis.Set(ctx, redis.SkyStateKey(a.cfg.ServiceName), data, ttl); err != nil {
		a.logger.Debug("Failed to save sky state", "error", err)
	}
}

// restoreSky seeds the engine with the last sky saved before a restart
func (a *Agent) restoreSky(ctx context.Context) {
	data, err := a.redis.Get(ctx, redis.SkyStateKey(a.cfg.ServiceName))
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			a.logger.Warn("Failed to load last sky", "error", err)
		}
		return
	}

	var last sky.Sky
	if err := json.Unmarshal([]byte(data), &last); err != nil {
		a.logger.Warn("Discarding corrupt sky state", "error", err)
		return
	}
	a.engine.Restore(last)
	a.logger.Info("Restored last sky", "phase", last.Phase, "at", last.At)
}

// restoreLocation applies a location set through the settings API before a restart
func (a *Agent) restoreLocation(ctx context.Context) {
	data, err := a.redis.Get(ctx, redis.LocationKey(a.cfg.ServiceName))
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			a.logger.Warn("Failed to load saved location", "error", err)
		}
		return
	}

	var c sky.Coordinates
	if err := json.Unmarshal([]byte(data), &c); err != nil || !sun.ValidCoordinates(c) {
		a.logger.Warn("Ignoring invalid saved location", "value", data)
		return
	}

	a.stateMux.Lock()
	a.location = c
	a.override = true
	a.stateMux.Unlock()
	a.logger.Info("Restored saved location", "lat", c.Lat, "lng", c.Lng)
}

func (a *Agent) updateWeather(ctx context.Context) {
	report, err := a.Weather(ctx)
	if err != nil {
		a.logger.Warn("Weather update failed", "error", err)
		return
	}

	_, changed, err := a.tray.Put(widgetWeather, kindWeather, report.Widget())
	if err != nil {
		a.logger.Error("Failed to update weather widget", "error", err)
		return
	}
	if changed {
		metrics.SetWidgets(a.tray.Len())
		a.logger.Debug("Weather widget updated", "temp", report.Degrees(), "icon", report.Icon)
	}
}
