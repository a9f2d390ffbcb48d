package sky

// StarOpacity returns the star layer opacity in [0,1] at time fraction tf.
// Stars fade in between civil and astronomical dusk, and fade out between
// astronomical and civil dawn. ok is false when the timeline is empty or lacks
// the twilight keyframes.
func StarOpacity(tl *Timeline, tf float64) (float64, bool) {
	if tl.Empty() {
		return 0, false
	}

	fadeInStart, ok1 := tl.Percentage(CivilTwilightEnd)
	fadeInEnd, ok2 := tl.Percentage(AstronomicalTwilightEnd)
	fadeOutStart, ok3 := tl.Percentage(AstronomicalTwilightBegin)
	fadeOutEnd, ok4 := tl.Percentage(CivilTwilightBegin)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	if twilightCollapsed(tl) {
		return 0, true
	}

	x := clampFraction(tf) * 100

	var opacity float64
	switch {
	case x >= fadeInStart && x <= fadeInEnd:
		opacity = ramp(x, fadeInStart, fadeInEnd)
	case x >= fadeOutStart && x <= fadeOutEnd:
		opacity = 1 - ramp(x, fadeOutStart, fadeOutEnd)
	case x > fadeInEnd || x < fadeOutStart:
		opacity = 1
	}

	return clamp(opacity, 0, 1), true
}

// ramp rises linearly from 0 at a to 1 at b. A zero-width or inverted ramp is a step.
func ramp(x, a, b float64) float64 {
	if b <= a {
		return 1
	}
	return (x - a) / (b - a)
}

// twilightCollapsed reports whether civil dawn sits on the first keyframe and
// civil dusk on the last one. That is what a day with no twilight builds
// (polar day, or a polar night darker than astronomical twilight): every
// twilight event pinned to the day edges. The gap between the end boundary
// and midnight is then not a night, and no stars are shown.
func twilightCollapsed(tl *Timeline) bool {
	kfs := tl.Keyframes
	dawn, okDawn := tl.Percentage(CivilTwilightBegin)
	dusk, okDusk := tl.Percentage(CivilTwilightEnd)
	if !okDawn || !okDusk {
		return false
	}
	return dawn <= kfs[0].Percentage && dusk >= kfs[len(kfs)-1].Percentage
}
