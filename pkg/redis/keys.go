package redis

import (
	"fmt"
	"time"
)

// Key construction helpers for the mirror cache

// SunTimesKey returns the key for cached sun times (string, JSON)
// Pattern: mirror:sun:{lat}:{lng}:{yyyy-mm-dd}
func SunTimesKey(lat, lng float64, date time.Time) string {
	return fmt.Sprintf("mirror:sun:%.4f:%.4f:%s", lat, lng, date.Format("2006-01-02"))
}

// WeatherKey returns the key for a cached weather report (string, JSON)
// Pattern: mirror:weather:{lat}:{lon}
func WeatherKey(lat, lon float64) string {
	return fmt.Sprintf("mirror:weather:%.3f:%.3f", lat, lon)
}

// SkyStateKey returns the key for the last rendered sky (string, JSON)
// Pattern: mirror:sky:{service}
func SkyStateKey(service string) string {
	return fmt.Sprintf("mirror:sky:%s", service)
}

// LocationKey returns the key for a location set through the settings API
// (string, JSON, no expiry)
// Pattern: mirror:settings:location:{service}
func LocationKey(service string) string {
	return fmt.Sprintf("mirror:settings:location:%s", service)
}
