package sun

import (
	"context"
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

// calcNames maps suncalc's day times onto the event set
var calcNames = map[sky.Event]suncalc.DayTimeName{
	sky.AstronomicalTwilightBegin: suncalc.NightEnd,
	sky.NauticalTwilightBegin:     suncalc.NauticalDawn,
	sky.CivilTwilightBegin:        suncalc.Dawn,
	sky.Sunrise:                   suncalc.Sunrise,
	sky.SolarNoon:                 suncalc.SolarNoon,
	sky.Sunset:                    suncalc.Sunset,
	sky.CivilTwilightEnd:          suncalc.Dusk,
	sky.NauticalTwilightEnd:       suncalc.NauticalDusk,
	sky.AstronomicalTwilightEnd:   suncalc.Night,
}

// CalcProvider computes solar events locally. It needs no network and is
// used offline or when the API is down.
type CalcProvider struct{}

// NewCalcProvider creates a local calculator
func NewCalcProvider() *CalcProvider {
	return &CalcProvider{}
}

func (p *CalcProvider) Name() string { return "suncalc" }

// Events computes the day's events. Times suncalc cannot produce (the sun
// never reaches the altitude) come back as zero or far from the requested
// day and are left out, which makes them unavailable.
func (p *CalcProvider) Events(ctx context.Context, at sky.Coordinates, date time.Time) (*sky.AstronomicalEvents, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// suncalc works from the instant given; local noon keeps it on the right day
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, date.Location())
	times := suncalc.GetTimes(noon, at.Lat, at.Lng)

	events := sky.NewAstronomicalEvents()
	coords := at
	events.Coordinates = &coords

	for ev, name := range calcNames {
		dt, ok := times[name]
		if !ok || !plausible(dt.Value, noon) {
			continue
		}
		events.Times[ev] = dt.Value.UTC()
	}
	return events, nil
}

// SunAltitude returns the sun's altitude in degrees at t
func SunAltitude(t time.Time, at sky.Coordinates) float64 {
	position := suncalc.GetPosition(t, at.Lat, at.Lng)
	return position.Altitude * (180.0 / math.Pi)
}

func plausible(t, noon time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := t.Sub(noon)
	return d > -36*time.Hour && d < 36*time.Hour
}
