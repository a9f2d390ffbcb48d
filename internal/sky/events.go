package sky

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names a keyframe in the day. The string values match the
// sunrise-sunset.org field names.
type Event string

const (
	Midnight                  Event = "midnight"
	AstronomicalTwilightBegin Event = "astronomical_twilight_begin"
	NauticalTwilightBegin     Event = "nautical_twilight_begin"
	CivilTwilightBegin        Event = "civil_twilight_begin"
	Sunrise                   Event = "sunrise"
	SolarNoon                 Event = "solar_noon"
	Sunset                    Event = "sunset"
	CivilTwilightEnd          Event = "civil_twilight_end"
	NauticalTwilightEnd       Event = "nautical_twilight_end"
	AstronomicalTwilightEnd   Event = "astronomical_twilight_end"
)

// SolarEvents lists the nine solar events in day order
var SolarEvents = []Event{
	AstronomicalTwilightBegin,
	NauticalTwilightBegin,
	CivilTwilightBegin,
	Sunrise,
	SolarNoon,
	Sunset,
	CivilTwilightEnd,
	NauticalTwilightEnd,
	AstronomicalTwilightEnd,
}

// DayOrder is the keyframe order of a full timeline: the synthetic midnight
// start followed by the solar events.
var DayOrder = append([]Event{Midnight}, SolarEvents...)

// UnavailableTimestamp is what the upstream API reports for an event that does
// not happen on the requested day.
const UnavailableTimestamp = "1970-01-01T00:00:01+00:00"

// IsUnavailable reports whether t is the zero time or falls on the epoch date
func IsUnavailable(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	u := t.UTC()
	return u.Year() == 1970 && u.Month() == time.January && u.Day() == 1
}

// Coordinates is a geographic position in decimal degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AstronomicalEvents holds the solar event timestamps for one day at one place
type AstronomicalEvents struct {
	Times       map[Event]time.Time
	Coordinates *Coordinates
}

// NewAstronomicalEvents returns an empty event set
func NewAstronomicalEvents() *AstronomicalEvents {
	return &AstronomicalEvents{Times: make(map[Event]time.Time, len(SolarEvents))}
}

// Valid returns the timestamp of ev when it is present and not the sentinel
func (e *AstronomicalEvents) Valid(ev Event) (time.Time, bool) {
	if e == nil {
		return time.Time{}, false
	}
	t, ok := e.Times[ev]
	if !ok || IsUnavailable(t) {
		return time.Time{}, false
	}
	return t, true
}

// Missing lists the solar events that are absent or unavailable
func (e *AstronomicalEvents) Missing() []Event {
	var missing []Event
	for _, ev := range SolarEvents {
		if _, ok := e.Valid(ev); !ok {
			missing = append(missing, ev)
		}
	}
	return missing
}

type eventsJSON struct {
	AstronomicalTwilightBegin string       `json:"astronomical_twilight_begin"`
	NauticalTwilightBegin     string       `json:"nautical_twilight_begin"`
	CivilTwilightBegin        string       `json:"civil_twilight_begin"`
	Sunrise                   string       `json:"sunrise"`
	SolarNoon                 string       `json:"solar_noon"`
	Sunset                    string       `json:"sunset"`
	CivilTwilightEnd          string       `json:"civil_twilight_end"`
	NauticalTwilightEnd       string       `json:"nautical_twilight_end"`
	AstronomicalTwilightEnd   string       `json:"astronomical_twilight_end"`
	DayLength                 *float64     `json:"day_length,omitempty"`
	Coordinates               *Coordinates `json:"coordinates,omitempty"`
}

func (j *eventsJSON) fields() map[Event]*string {
	return map[Event]*string{
		AstronomicalTwilightBegin: &j.AstronomicalTwilightBegin,
		NauticalTwilightBegin:     &j.NauticalTwilightBegin,
		CivilTwilightBegin:        &j.CivilTwilightBegin,
		Sunrise:                   &j.Sunrise,
		SolarNoon:                 &j.SolarNoon,
		Sunset:                    &j.Sunset,
		CivilTwilightEnd:          &j.CivilTwilightEnd,
		NauticalTwilightEnd:       &j.NauticalTwilightEnd,
		AstronomicalTwilightEnd:   &j.AstronomicalTwilightEnd,
	}
}

// UnmarshalJSON reads the sunrise-sunset.org "results" shape. Fields that are
// missing or do not parse are left out, which makes them unavailable.
func (e *AstronomicalEvents) UnmarshalJSON(data []byte) error {
	var raw eventsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode astronomical events: %w", err)
	}

	e.Times = make(map[Event]time.Time, len(SolarEvents))
	e.Coordinates = raw.Coordinates
	for ev, s := range raw.fields() {
		if *s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, *s)
		if err != nil {
			continue
		}
		e.Times[ev] = t
	}
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON reads. Unavailable events
// are written as the epoch sentinel.
func (e AstronomicalEvents) MarshalJSON() ([]byte, error) {
	var raw eventsJSON
	raw.Coordinates = e.Coordinates
	for ev, s := range raw.fields() {
		if t, ok := e.Valid(ev); ok {
			*s = t.UTC().Format(time.RFC3339)
		} else {
			*s = UnavailableTimestamp
		}
	}

	rise, okRise := e.Valid(Sunrise)
	set, okSet := e.Valid(Sunset)
	if okRise && okSet && set.After(rise) {
		seconds := set.Sub(rise).Seconds()
		raw.DayLength = &seconds
	}

	return json.Marshal(raw)
}
