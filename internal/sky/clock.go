package sky

import (
	"fmt"
	"math"
	"os"
	"time"
)

// DefaultZone is used when neither the configured nor the runtime zone can be loaded
const DefaultZone = "Europe/Stockholm"

const minutesPerDay = 24 * 60

// ResolveLocation returns the zone to render in: name when given, otherwise the
// runtime zone (TZ, then time.Local). On failure it falls back to DefaultZone
// and finally UTC; the returned location is always usable and the error only
// explains the fallback.
func ResolveLocation(name string) (*time.Location, error) {
	if name == "" {
		name = os.Getenv("TZ")
		if name == "" {
			return time.Local, nil
		}
	}

	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}

	if fallback, ferr := time.LoadLocation(DefaultZone); ferr == nil {
		return fallback, fmt.Errorf("unknown time zone %q, using %s: %w", name, DefaultZone, err)
	}
	return time.UTC, fmt.Errorf("unknown time zone %q, using UTC: %w", name, err)
}

// TimeFraction returns the minutes since local midnight divided by 1440, in [0,1)
func TimeFraction(now time.Time, loc *time.Location) float64 {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	return float64(t.Hour()*60+t.Minute()) / minutesPerDay
}

// PercentOfDay returns the local time of t as a percentage of the day, rounded
// to one decimal
func PercentOfDay(t time.Time, loc *time.Location) float64 {
	return round1(TimeFraction(t, loc) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampFraction keeps a time fraction inside [0,1). NaN becomes 0.
func clampFraction(tf float64) float64 {
	if math.IsNaN(tf) || tf < 0 {
		return 0
	}
	if tf >= 1 {
		return math.Nextafter(1, 0)
	}
	return tf
}
