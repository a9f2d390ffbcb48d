package mirror

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
	"github.com/saaga0h/jeeves-mirror/pkg/config"
	"github.com/saaga0h/jeeves-mirror/pkg/mqtt"
	"github.com/saaga0h/jeeves-mirror/pkg/redis"
)

type testMessage struct {
	topic   string
	payload string
}

func (m testMessage) Topic() string   { return m.topic }
func (m testMessage) Payload() []byte { return []byte(m.payload) }
func (m testMessage) Retained() bool  { return false }
func (m testMessage) Ack()            {}

type testEnv struct {
	agent *Agent
	mqtt  *mqtt.MockClient
	redis *redis.MockClient
	now   time.Time
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.ServiceName = "mirror-test"
	cfg.TimeZone = "UTC"
	cfg.SunSource = "suncalc"
	cfg.SampleIntervalSec = 1
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	env := &testEnv{
		mqtt:  mqtt.NewMockClient(),
		redis: redis.NewMockClient(),
		// Gothenburg midsummer, an hour after solar noon
		now: time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	agent, err := NewAgent(env.mqtt, env.redis, cfg, logger)
	require.NoError(t, err)
	agent.now = func() time.Time { return env.now }
	env.agent = agent
	return env
}

func (e *testEnv) skyPublishes() []mqtt.Published {
	var out []mqtt.Published
	for _, p := range e.mqtt.Published() {
		if p.Topic == mqtt.TopicSkyContext {
			out = append(out, p)
		}
	}
	return out
}

func TestNewAgent_InvalidSettings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.BlendMode = "cmyk"
	_, err := NewAgent(mqtt.NewMockClient(), redis.NewMockClient(), cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.PaletteFile = "/nonexistent/palette.yaml"
	_, err = NewAgent(mqtt.NewMockClient(), redis.NewMockClient(), cfg, logger)
	assert.Error(t, err)
}

func TestAgent_Refresh(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	assert.True(t, env.agent.needsRefresh())
	_, ok := env.agent.TimelineDate()
	assert.False(t, ok)

	require.NoError(t, env.agent.Refresh(ctx))

	date, ok := env.agent.TimelineDate()
	require.True(t, ok)
	assert.Equal(t, "2024-06-21", date.Format("2006-01-02"))
	assert.Equal(t, 10, env.agent.Engine().Timeline().Len())
	assert.False(t, env.agent.needsRefresh())

	events, ok := env.agent.SunTimes()
	require.True(t, ok)
	_, ok = events.Valid(sky.SolarNoon)
	assert.True(t, ok)

	var cached bool
	for _, k := range env.redis.Keys() {
		if strings.HasPrefix(k, "mirror:sun:") {
			cached = true
		}
	}
	assert.True(t, cached, "sun times should be cached")

	env.now = env.now.Add(24 * time.Hour)
	assert.True(t, env.agent.needsRefresh())
}

func TestAgent_TickPublishesPhaseChanges(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	require.NoError(t, env.agent.Refresh(ctx))

	env.agent.tick(ctx)
	env.agent.tick(ctx)

	published := env.skyPublishes()
	require.Len(t, published, 1)
	assert.True(t, published[0].Retained)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(published[0].Payload, &msg))
	assert.Equal(t, "day", msg["phase"])
	assert.Contains(t, msg, "top_color")
	assert.Contains(t, msg, "timestamp")
	// midsummer noon in Gothenburg
	assert.Greater(t, msg["sun_altitude"], 40.0)

	env.now = time.Date(2024, 6, 21, 23, 59, 0, 0, time.UTC)
	env.agent.tick(ctx)

	published = env.skyPublishes()
	require.Len(t, published, 2)
	require.NoError(t, json.Unmarshal(published[1].Payload, &msg))
	assert.Equal(t, "night", msg["phase"])
}

func TestAgent_TickSavesSky(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	require.NoError(t, env.agent.Refresh(ctx))
	env.agent.tick(ctx)

	data, err := env.redis.Get(ctx, redis.SkyStateKey("mirror-test"))
	require.NoError(t, err)

	var saved sky.Sky
	require.NoError(t, json.Unmarshal([]byte(data), &saved))
	assert.Equal(t, sky.PhaseDay, saved.Phase)
	assert.Equal(t, 0.5, saved.TimeFraction)

	ttl, _ := env.redis.TTL(ctx, redis.SkyStateKey("mirror-test"))
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 1)
}

func TestAgent_TickWithoutTimeline(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.agent.tick(context.Background())

	assert.Empty(t, env.mqtt.Published())
	_, err := env.redis.Get(context.Background(), redis.SkyStateKey("mirror-test"))
	assert.ErrorIs(t, err, redis.ErrNotFound)
}

func TestAgent_RestoreSky(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	last := sky.Sky{TopColor: "#112233", BottomColor: "#445566", Phase: sky.PhaseDusk, StarsOpacity: 0.4}
	data, _ := json.Marshal(last)
	require.NoError(t, env.redis.Set(ctx, redis.SkyStateKey("mirror-test"), data, time.Hour))

	env.agent.restoreSky(ctx)

	restored, ok := env.agent.Engine().Last()
	require.True(t, ok)
	assert.Equal(t, "#112233", restored.TopColor)
	assert.Equal(t, sky.PhaseDusk, restored.Phase)
}

func TestAgent_SetAndResetLocation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	err := env.agent.SetLocation(ctx, sky.Coordinates{Lat: 91, Lng: 0})
	assert.Error(t, err)

	stockholm := sky.Coordinates{Lat: 59.3293, Lng: 18.0686}
	require.NoError(t, env.agent.SetLocation(ctx, stockholm))

	at, override := env.agent.Location()
	assert.Equal(t, stockholm, at)
	assert.True(t, override)
	assert.True(t, env.agent.needsRefresh())
	assert.Len(t, env.agent.refreshChan, 1)

	data, err := env.redis.Get(ctx, redis.LocationKey("mirror-test"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":59.3293,"lng":18.0686}`, data)

	env.agent.ResetLocation(ctx)
	at, override = env.agent.Location()
	assert.Equal(t, sky.Coordinates{Lat: 57.6529, Lng: 11.9106}, at)
	assert.False(t, override)
	_, err = env.redis.Get(ctx, redis.LocationKey("mirror-test"))
	assert.ErrorIs(t, err, redis.ErrNotFound)
}

func TestAgent_RestoreLocation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	require.NoError(t, env.redis.Set(ctx, redis.LocationKey("mirror-test"), `{"lat":65.58,"lng":22.15}`, 0))

	env.agent.restoreLocation(ctx)

	at, override := env.agent.Location()
	assert.Equal(t, sky.Coordinates{Lat: 65.58, Lng: 22.15}, at)
	assert.True(t, override)
}

func TestAgent_NowPlaying(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tray := env.agent.Tray()

	env.agent.handleNowPlaying(testMessage{mqtt.TopicNowPlaying,
		`{"state":"playing","title":"Teardrop","artist":"Massive Attack"}`})
	w, ok := tray.Get(widgetMusic)
	require.True(t, ok)
	assert.Equal(t, kindMusic, w.Kind)
	assert.JSONEq(t, `{"title":"Teardrop","artist":"Massive Attack"}`, string(w.Content))

	env.agent.handleNowPlaying(testMessage{mqtt.TopicNowPlaying, `{not json`})
	assert.Equal(t, 1, tray.Len(), "malformed messages are ignored")

	env.agent.handleNowPlaying(testMessage{mqtt.TopicNowPlaying, `{"state":"paused","title":"Teardrop"}`})
	assert.Equal(t, 0, tray.Len())

	env.agent.handleNowPlaying(testMessage{mqtt.TopicNowPlaying,
		`{"state":"playing","title":"Angel","artist":"Massive Attack"}`})
	env.agent.handleNowPlaying(testMessage{mqtt.TopicNowPlaying, ``})
	assert.Equal(t, 0, tray.Len())
}

func TestAgent_WidgetMessages(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tray := env.agent.Tray()

	env.agent.handleWidget(testMessage{mqtt.WidgetTopic("calendar"), `{"kind":"calendar","content":{"next":"Dentist 14:00"}}`})
	env.agent.handleWidget(testMessage{mqtt.WidgetTopic("note"), `"Buy milk"`})
	env.agent.handleWidget(testMessage{mqtt.WidgetTopic("weather"), `{"kind":"weather"}`})
	env.agent.handleWidget(testMessage{"mirror/widget/a/b", `{}`})

	snap := tray.List()
	require.Len(t, snap.Widgets, 2)
	assert.Equal(t, "calendar", snap.Widgets[0].Kind)
	assert.JSONEq(t, `{"next":"Dentist 14:00"}`, string(snap.Widgets[0].Content))
	assert.Equal(t, kindGeneric, snap.Widgets[1].Kind)
	assert.Equal(t, `"Buy milk"`, string(snap.Widgets[1].Content))

	env.agent.handleWidget(testMessage{mqtt.WidgetTopic("note"), ``})
	_, ok := tray.Get("note")
	assert.False(t, ok)
}

func TestAgent_TrayLimit(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		env.agent.handleWidget(testMessage{mqtt.WidgetTopic(id), `"` + id + `"`})
	}

	snap := env.agent.Tray().List()
	require.Len(t, snap.Widgets, 4)
	assert.Equal(t, "b", snap.Widgets[0].ID)
}

func TestAgent_WeatherWidget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[{"description":"clear sky","icon":"01d"}],"main":{"temp":18.6}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.WeatherAPIURL = srv.URL
	cfg.WeatherAPIKey = "key"
	env := newTestEnv(t, cfg)

	env.agent.updateWeather(context.Background())

	w, ok := env.agent.Tray().Get(widgetWeather)
	require.True(t, ok)
	assert.JSONEq(t, `{"icon":"https://openweathermap.org/img/wn/01d@2x.png","temp":18,"unit":"°C","description":"clear sky"}`,
		string(w.Content))
}

func TestAgent_StartStop(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.agent.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := env.agent.TimelineDate()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(env.skyPublishes()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{mqtt.TopicNowPlaying, mqtt.TopicWidgets}, env.mqtt.Subscriptions())
	assert.True(t, env.mqtt.Deliver(mqtt.WidgetTopic("news"), []byte(`"hello"`), true))
	_, ok := env.agent.Tray().Get("news")
	assert.True(t, ok)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, env.agent.Stop())
	assert.False(t, env.mqtt.IsConnected())
	assert.Empty(t, env.mqtt.Subscriptions())
}

func TestAgent_StopBeforeStart(t *testing.T) {
	env := newTestEnv(t, testConfig())
	require.NoError(t, env.agent.Stop())

	require.NoError(t, env.agent.Start(context.Background()))
	assert.Empty(t, env.mqtt.Subscriptions())
	assert.Empty(t, env.mqtt.Published())
	_, ok := env.agent.TimelineDate()
	assert.False(t, ok)
}

func TestAgent_StopDuringInitialRefresh(t *testing.T) {
	requested := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.SunSource = "api"
	cfg.SunAPIURL = srv.URL
	cfg.SunCalcOnError = false
	env := newTestEnv(t, cfg)

	started := make(chan error, 1)
	go func() { started <- env.agent.Start(context.Background()) }()

	select {
	case <-requested:
	case <-time.After(5 * time.Second):
		t.Fatal("sun times were never requested")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- env.agent.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the initial refresh")
	}
	require.NoError(t, <-started)

	assert.NotContains(t, env.redis.Keys(), redis.SkyStateKey(cfg.ServiceName))
	assert.Empty(t, env.skyPublishes())
	assert.Empty(t, env.mqtt.Subscriptions())
}
