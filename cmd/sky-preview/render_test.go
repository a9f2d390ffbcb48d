package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

func previewTimeline(t *testing.T) *sky.Timeline {
	t.Helper()
	ev := sky.NewAstronomicalEvents()
	for name, s := range map[sky.Event]string{
		sky.AstronomicalTwilightBegin: "2024-03-01T04:00:00Z",
		sky.NauticalTwilightBegin:     "2024-03-01T05:00:00Z",
		sky.CivilTwilightBegin:        "2024-03-01T06:00:00Z",
		sky.Sunrise:                   "2024-03-01T07:00:00Z",
		sky.SolarNoon:                 "2024-03-01T12:00:00Z",
		sky.Sunset:                    "2024-03-01T17:00:00Z",
		sky.CivilTwilightEnd:          "2024-03-01T18:00:00Z",
		sky.NauticalTwilightEnd:       "2024-03-01T20:00:00Z",
		sky.AstronomicalTwilightEnd:   sky.UnavailableTimestamp,
	} {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		ev.Times[name] = ts
	}
	tl := sky.BuildTimeline(ev, time.UTC, nil, sky.DefaultBuildOptions())
	require.False(t, tl.Empty())
	return tl
}

func TestClockTime(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, "00:00"},
		{25, "06:00"},
		{50, "12:00"},
		{99.5, "23:53"},
		{100, "23:59"},
		{-3, "00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clockTime(tt.pct), "pct %.1f", tt.pct)
	}
}

func TestRenderKeyframes(t *testing.T) {
	out := renderKeyframes(previewTimeline(t))

	assert.Contains(t, out, string(sky.SolarNoon))
	assert.Contains(t, out, "12:00")
	assert.Contains(t, out, "#38bdf8")
	// header plus one line per keyframe
	assert.Len(t, strings.Split(out, "\n"), 11)
}

func TestRenderAdjustments(t *testing.T) {
	out := renderAdjustments(previewTimeline(t))
	assert.Contains(t, out, string(sky.AstronomicalTwilightEnd))

	assert.Empty(t, renderAdjustments(sky.NewTimeline(time.Time{}, nil, nil)))
}

func TestRenderStrip(t *testing.T) {
	out := renderStrip(previewTimeline(t), sky.BlendLinearRGB, 48)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[3], "00")
	assert.Contains(t, lines[3], "12")

	assert.Empty(t, renderStrip(nil, sky.BlendLinearRGB, 48))
}

func TestStarGlyph(t *testing.T) {
	assert.Equal(t, "*", starGlyph(1))
	assert.Equal(t, ".", starGlyph(0.5))
	assert.Equal(t, " ", starGlyph(0))
}
