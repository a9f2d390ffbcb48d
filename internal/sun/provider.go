package sun

import (
	"context"
	"time"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

// DefaultCoordinates is used when no location has been configured (Gothenburg)
var DefaultCoordinates = sky.Coordinates{Lat: 57.6529, Lng: 11.9106}

// Provider returns the solar events for one calendar day at one place
type Provider interface {
	Events(ctx context.Context, at sky.Coordinates, date time.Time) (*sky.AstronomicalEvents, error)

	// Name identifies the source in logs and metrics
	Name() string
}

// ValidCoordinates reports whether c is a usable position
func ValidCoordinates(c sky.Coordinates) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
