package sky

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Keyframe anchors a point of the day to a colour pair
type Keyframe struct {
	Event      Event
	Percentage float64
	Top        colorful.Color
	Bottom     colorful.Color
}

// MarshalJSON writes colours as hex strings
func (k Keyframe) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Event      Event   `json:"event"`
		Percentage float64 `json:"percentage"`
		Top        string  `json:"top"`
		Bottom     string  `json:"bottom"`
	}{k.Event, k.Percentage, k.Top.Hex(), k.Bottom.Hex()})
}

// Adjustment records a keyframe whose percentage did not come straight from
// its own event
type Adjustment struct {
	Event      Event   `json:"event"`
	Reason     string  `json:"reason"`
	Percentage float64 `json:"percentage"`
}

// Timeline is an immutable, ascending sequence of keyframes. A nil or empty
// timeline means no sun data is available and nothing should be rendered.
type Timeline struct {
	Date        time.Time    `json:"date"`
	Keyframes   []Keyframe   `json:"keyframes"`
	Adjustments []Adjustment `json:"adjustments"`

	index map[Event]int
}

// Len returns the number of keyframes
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Keyframes)
}

// Empty reports whether the timeline has no keyframes
func (t *Timeline) Empty() bool {
	return t.Len() == 0
}

// Keyframe looks a keyframe up by event
func (t *Timeline) Keyframe(ev Event) (Keyframe, bool) {
	if t == nil {
		return Keyframe{}, false
	}
	i, ok := t.index[ev]
	if !ok {
		return Keyframe{}, false
	}
	return t.Keyframes[i], true
}

// Percentage returns the day percentage of ev
func (t *Timeline) Percentage(ev Event) (float64, bool) {
	kf, ok := t.Keyframe(ev)
	return kf.Percentage, ok
}

// NewTimeline builds a timeline from keyframes that are already in day order
func NewTimeline(date time.Time, keyframes []Keyframe, adjustments []Adjustment) *Timeline {
	index := make(map[Event]int, len(keyframes))
	for i, kf := range keyframes {
		index[kf.Event] = i
	}
	return &Timeline{
		Date:        date,
		Keyframes:   keyframes,
		Adjustments: adjustments,
		index:       index,
	}
}

// BuildOptions tune how missing events are substituted
type BuildOptions struct {
	// FallbackOffset is the percentage of the day a substituted event is moved
	// away from solar noon, per fallback step
	FallbackOffset float64

	// StartBoundary and EndBoundary are used when no event in a fallback chain
	// is available. EndBoundary stays short of 100 so the last keyframe does not
	// coincide with the day wrap.
	StartBoundary float64
	EndBoundary   float64
}

// DefaultBuildOptions returns the standard fallback tuning
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		FallbackOffset: 3,
		StartBoundary:  0,
		EndBoundary:    99.5,
	}
}

// fallbackChains lists, per event, the events to substitute in order, moving
// toward solar noon without crossing it
var fallbackChains = map[Event][]Event{
	AstronomicalTwilightBegin: {NauticalTwilightBegin, CivilTwilightBegin},
	NauticalTwilightBegin:     {CivilTwilightBegin, Sunrise},
	CivilTwilightBegin:        {Sunrise},
	AstronomicalTwilightEnd:   {NauticalTwilightEnd, CivilTwilightEnd},
	NauticalTwilightEnd:       {CivilTwilightEnd, Sunset},
	CivilTwilightEnd:          {Sunset},
}

func isBeginSide(ev Event) bool {
	switch ev {
	case AstronomicalTwilightBegin, NauticalTwilightBegin, CivilTwilightBegin, Sunrise:
		return true
	}
	return false
}

// BuildTimeline turns one day of solar events into a timeline of ten
// keyframes: midnight at 0% followed by the nine events.
//
// Unavailable events are substituted through their fallback chain and clamped
// into their half of the day. Events that fall on the wrong side of solar noon
// crossed midnight and are pinned to the day boundary. Keyframe percentages are
// then forced non-decreasing in day order; this relies on neighbouring events
// being at least a rounding step apart in practice, and every forced value is
// recorded in Adjustments.
//
// Without events or without a valid solar noon the timeline is empty.
func BuildTimeline(events *AstronomicalEvents, loc *time.Location, palette Palette, opts BuildOptions) *Timeline {
	if loc == nil {
		loc = time.UTC
	}
	if palette == nil {
		palette = DefaultPalette()
	}

	noonTime, ok := events.Valid(SolarNoon)
	if !ok {
		return &Timeline{}
	}
	noon := PercentOfDay(noonTime, loc)

	b := &builder{
		events: events,
		loc:    loc,
		noon:   noon,
		opts:   opts,
	}

	keyframes := make([]Keyframe, 0, len(DayOrder))
	pair := palette.Pair(Midnight)
	keyframes = append(keyframes, Keyframe{Event: Midnight, Percentage: 0, Top: pair.Top, Bottom: pair.Bottom})

	prev := 0.0
	for _, ev := range SolarEvents {
		pct := b.resolve(ev)
		if pct < prev {
			b.note(ev, fmt.Sprintf("moved from %.1f to keep day order", pct), prev)
			pct = prev
		}
		prev = pct

		pair := palette.Pair(ev)
		keyframes = append(keyframes, Keyframe{Event: ev, Percentage: pct, Top: pair.Top, Bottom: pair.Bottom})
	}

	local := noonTime.In(loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	return NewTimeline(date, keyframes, b.adjustments)
}

type builder struct {
	events      *AstronomicalEvents
	loc         *time.Location
	noon        float64
	opts        BuildOptions
	adjustments []Adjustment
}

func (b *builder) note(ev Event, reason string, pct float64) {
	b.adjustments = append(b.adjustments, Adjustment{Event: ev, Reason: reason, Percentage: pct})
}

// band returns the range an event on ev's side of noon must stay within
func (b *builder) band(ev Event) (lo, hi float64) {
	if ev == SolarNoon {
		return b.noon, b.noon
	}
	if isBeginSide(ev) {
		return b.opts.StartBoundary, b.noon
	}
	return b.noon, b.opts.EndBoundary
}

func (b *builder) boundary(ev Event) float64 {
	if isBeginSide(ev) {
		return b.opts.StartBoundary
	}
	return b.opts.EndBoundary
}

// percent returns the local percentage of ev, and whether it is usable on its
// side of noon. wrapped is set when the event exists but crossed midnight.
func (b *builder) percent(ev Event) (pct float64, ok bool, wrapped bool) {
	t, valid := b.events.Valid(ev)
	if !valid {
		return 0, false, false
	}
	pct = PercentOfDay(t, b.loc)
	if ev == SolarNoon {
		return pct, true, false
	}
	if isBeginSide(ev) && pct > b.noon {
		return pct, false, true
	}
	if !isBeginSide(ev) && pct < b.noon {
		return pct, false, true
	}
	return pct, true, false
}

func (b *builder) resolve(ev Event) float64 {
	if ev == SolarNoon {
		return b.noon
	}

	lo, hi := b.band(ev)

	pct, ok, wrapped := b.percent(ev)
	if ok {
		return clamp(pct, lo, hi)
	}
	if wrapped {
		edge := b.boundary(ev)
		b.note(ev, "crossed midnight", edge)
		return edge
	}

	// Substitutes move away from noon: earlier for begin events, later for end events
	direction := 1.0
	if isBeginSide(ev) {
		direction = -1.0
	}

	for step, fallback := range fallbackChains[ev] {
		fpct, fok, _ := b.percent(fallback)
		if !fok {
			continue
		}
		offset := b.opts.FallbackOffset * float64(step+1)
		v := clamp(round1(fpct+direction*offset), lo, hi)
		b.note(ev, fmt.Sprintf("substituted from %s", fallback), v)
		return v
	}

	edge := b.boundary(ev)
	b.note(ev, "unavailable, pinned to day boundary", edge)
	return edge
}
