package sky

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is a coarse name for the current lighting condition
type Phase string

const (
	PhaseNight   Phase = "night"
	PhaseDawn    Phase = "dawn"
	PhaseSunrise Phase = "sunrise"
	PhaseDay     Phase = "day"
	PhaseSunset  Phase = "sunset"
	PhaseDusk    Phase = "dusk"
)

// phaseStartingAt maps the keyframe opening a segment to the phase it paints
var phaseStartingAt = map[Event]Phase{
	Midnight:                  PhaseNight,
	AstronomicalTwilightBegin: PhaseDawn,
	NauticalTwilightBegin:     PhaseDawn,
	CivilTwilightBegin:        PhaseSunrise,
	Sunrise:                   PhaseDay,
	SolarNoon:                 PhaseDay,
	Sunset:                    PhaseSunset,
	CivilTwilightEnd:          PhaseDusk,
	NauticalTwilightEnd:       PhaseDusk,
	AstronomicalTwilightEnd:   PhaseNight,
}

// PhaseOf returns the phase of the segment a sample was taken from
func PhaseOf(s Sample) Phase {
	if p, ok := phaseStartingAt[s.From]; ok {
		return p
	}
	return PhaseNight
}

// Sky is the visual state for one tick
type Sky struct {
	TopColor     string    `json:"topColor"`
	BottomColor  string    `json:"bottomColor"`
	StarsOpacity float64   `json:"starsOpacity"`
	ShowStars    bool      `json:"showStars"`
	TimeFraction float64   `json:"timeFraction"`
	Phase        Phase     `json:"phase"`
	At           time.Time `json:"at"`
}

// Engine renders the sky from the current timeline. The timeline is replaced
// wholesale by SetTimeline and never mutated, so Tick may run concurrently
// with a refresh.
type Engine struct {
	timeline atomic.Pointer[Timeline]
	loc      *time.Location
	blend    BlendMode

	mu      sync.RWMutex
	last    Sky
	hasLast bool
}

// NewEngine creates an engine rendering in loc. lastKnown, when non-nil, is
// returned by Tick until a timeline is available.
func NewEngine(loc *time.Location, blend BlendMode, lastKnown *Sky) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{loc: loc, blend: blend}
	if lastKnown != nil {
		e.last = *lastKnown
		e.hasLast = true
	}
	return e
}

// Restore seeds the last-known sky unless one has already been rendered
func (e *Engine) Restore(last Sky) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasLast {
		e.last = last
		e.hasLast = true
	}
}

// Location returns the zone the engine renders in
func (e *Engine) Location() *time.Location {
	return e.loc
}

// SetTimeline swaps in a new timeline
func (e *Engine) SetTimeline(tl *Timeline) {
	e.timeline.Store(tl)
}

// Timeline returns the current timeline, possibly nil
func (e *Engine) Timeline() *Timeline {
	return e.timeline.Load()
}

// Tick renders the sky at now. The time fraction is computed once and shared
// by the sampler and the star function. fresh is false when there is no
// timeline; the last rendered sky is returned unchanged in that case.
func (e *Engine) Tick(now time.Time) (sky Sky, fresh bool) {
	tl := e.timeline.Load()
	tf := TimeFraction(now, e.loc)

	sample, ok := SampleSky(tl, tf, e.blend)
	if !ok {
		last, _ := e.Last()
		return last, false
	}
	opacity, _ := StarOpacity(tl, tf)

	sky = Sky{
		TopColor:     sample.Top,
		BottomColor:  sample.Bottom,
		StarsOpacity: opacity,
		ShowStars:    sample.ShowStars,
		TimeFraction: tf,
		Phase:        PhaseOf(sample),
		At:           now,
	}

	e.mu.Lock()
	e.last = sky
	e.hasLast = true
	e.mu.Unlock()

	return sky, true
}

// Last returns the most recently rendered (or injected) sky
func (e *Engine) Last() (Sky, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.hasLast
}

// CSSGradient renders the timeline as a vertical CSS gradient of the whole
// day, one stop per keyframe using its top colour
func CSSGradient(tl *Timeline) string {
	if tl.Empty() {
		return ""
	}
	stops := make([]string, 0, tl.Len())
	for _, kf := range tl.Keyframes {
		stops = append(stops, fmt.Sprintf("%s %.1f%%", kf.Top.Hex(), kf.Percentage))
	}
	return "linear-gradient(to bottom, " + strings.Join(stops, ", ") + ")"
}
