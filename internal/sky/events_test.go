package sky

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gothenburgResults = `{
	"sunrise": "2024-12-21T07:24:00+00:00",
	"sunset": "2024-12-21T14:30:00+00:00",
	"solar_noon": "2024-12-21T10:57:00+00:00",
	"civil_twilight_begin": "2024-12-21T06:35:00+00:00",
	"civil_twilight_end": "2024-12-21T15:19:00+00:00",
	"nautical_twilight_begin": "2024-12-21T05:41:00+00:00",
	"nautical_twilight_end": "2024-12-21T16:13:00+00:00",
	"astronomical_twilight_begin": "1970-01-01T00:00:01+00:00",
	"astronomical_twilight_end": "not a time",
	"day_length": 25560
}`

func TestAstronomicalEvents_Unmarshal(t *testing.T) {
	var ev AstronomicalEvents
	require.NoError(t, json.Unmarshal([]byte(gothenburgResults), &ev))

	noon, ok := ev.Valid(SolarNoon)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 21, 10, 57, 0, 0, time.UTC), noon.UTC())

	_, ok = ev.Valid(AstronomicalTwilightBegin)
	assert.False(t, ok, "sentinel must count as unavailable")

	assert.Equal(t, []Event{AstronomicalTwilightBegin, AstronomicalTwilightEnd}, ev.Missing())
}

func TestAstronomicalEvents_MarshalWritesSentinel(t *testing.T) {
	ev := NewAstronomicalEvents()
	ev.Times[Sunrise] = time.Date(2024, 12, 21, 7, 24, 0, 0, time.UTC)
	ev.Times[Sunset] = time.Date(2024, 12, 21, 14, 30, 0, 0, time.UTC)
	ev.Coordinates = &Coordinates{Lat: 57.6529, Lng: 11.9106}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, UnavailableTimestamp, out["solar_noon"])
	assert.Equal(t, "2024-12-21T07:24:00Z", out["sunrise"])
	assert.Equal(t, 25560.0, out["day_length"])
	assert.Equal(t, map[string]any{"lat": 57.6529, "lng": 11.9106}, out["coordinates"])

	var back AstronomicalEvents
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Len(t, back.Missing(), 7)
}

func TestAstronomicalEvents_NilSafe(t *testing.T) {
	var ev *AstronomicalEvents
	_, ok := ev.Valid(Sunrise)
	assert.False(t, ok)
	assert.Equal(t, SolarEvents, ev.Missing())
}

func TestIsUnavailable(t *testing.T) {
	sentinel, err := time.Parse(time.RFC3339, UnavailableTimestamp)
	require.NoError(t, err)

	assert.True(t, IsUnavailable(sentinel))
	assert.True(t, IsUnavailable(time.Time{}))
	assert.True(t, IsUnavailable(time.Date(1970, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.False(t, IsUnavailable(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsUnavailable(time.Now()))
}

func TestParsePalette(t *testing.T) {
	p, err := ParsePalette([]byte(`
sunrise:
  top: "#ff0000"
solar_noon:
  top: "#00ff00"
  bottom: "#0000ff"
`))
	require.NoError(t, err)

	assert.Equal(t, "#ff0000", p[Sunrise].Top.Hex())
	assert.Equal(t, "#9c7cc9", p[Sunrise].Bottom.Hex(), "unset side keeps the default")
	assert.Equal(t, "#0000ff", p[SolarNoon].Bottom.Hex())
	assert.Equal(t, "#051937", p[Midnight].Top.Hex())
}

func TestParsePalette_Errors(t *testing.T) {
	_, err := ParsePalette([]byte("moonrise:\n  top: \"#ffffff\"\n"))
	assert.ErrorContains(t, err, "unknown palette event")

	_, err = ParsePalette([]byte("sunset:\n  top: \"orange\"\n"))
	assert.ErrorContains(t, err, "invalid top colour")

	_, err = ParsePalette([]byte("sunset: [1, 2"))
	assert.Error(t, err)

	_, err = LoadPalette("/nonexistent/palette.yaml")
	assert.Error(t, err)
}

func TestPalette_PairFallsBackToMidnight(t *testing.T) {
	p := DefaultPalette()
	assert.Equal(t, p[Midnight], p.Pair(Event("eclipse")))

	var empty Palette
	assert.Equal(t, "#051937", empty.Pair(Sunrise).Top.Hex())
}

func TestResolveLocation(t *testing.T) {
	loc, err := ResolveLocation("Europe/Stockholm")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", loc.String())

	loc, err = ResolveLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
	assert.Equal(t, DefaultZone, loc.String())

	t.Setenv("TZ", "")
	loc, err = ResolveLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestTimeFraction(t *testing.T) {
	// 06:00 local in UTC+1
	assert.Equal(t, 0.25, TimeFraction(time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), utcPlus1))
	assert.Equal(t, 0.0, TimeFraction(time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), utcPlus1))
	// seconds are ignored
	assert.Equal(t, 0.5, TimeFraction(time.Date(2024, 1, 1, 12, 0, 59, 0, time.UTC), nil))

	assert.Equal(t, 29.2, PercentOfDay(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), utcPlus1))
}
