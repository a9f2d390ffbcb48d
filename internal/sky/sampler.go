package sky

// Sample is the gradient to paint at one moment
type Sample struct {
	Top       string  `json:"topColor"`
	Bottom    string  `json:"bottomColor"`
	ShowStars bool    `json:"showStars"`
	From      Event   `json:"from"`
	To        Event   `json:"to"`
	Progress  float64 `json:"progress"`
}

// segment finds the keyframe pair bracketing tf and the progress between them.
// The segment after the last keyframe wraps into the next day, ending on the
// keyframe that is painted at the start of the day: the last of the keyframes
// sharing the first percentage. On a polar day midnight and the whole dawn
// side sit at 0% and the day starts on sunrise, not midnight.
func segment(tl *Timeline, tf float64) (from, to int, progress float64) {
	kfs := tl.Keyframes
	x := clampFraction(tf) * 100

	from = len(kfs) - 1
	for i := 0; i < len(kfs)-1; i++ {
		if kfs[i+1].Percentage > x {
			from = i
			break
		}
	}

	to = from + 1
	if to == len(kfs) {
		to = dayStart(kfs)
	}
	start := kfs[from].Percentage
	end := kfs[to].Percentage
	if to <= from {
		end += 100
	}

	if end <= start {
		return from, to, 0
	}
	return from, to, clamp((x-start)/(end-start), 0, 1)
}

// SampleSky returns the colours for time fraction tf. ok is false when the
// timeline is empty; callers keep whatever they rendered last.
func SampleSky(tl *Timeline, tf float64, mode BlendMode) (Sample, bool) {
	if tl.Empty() {
		return Sample{}, false
	}

	from, to, progress := segment(tl, tf)
	a, b := tl.Keyframes[from], tl.Keyframes[to]

	return Sample{
		Top:       Blend(a.Top, b.Top, progress, mode).Hex(),
		Bottom:    Blend(a.Bottom, b.Bottom, progress, mode).Hex(),
		ShowStars: showStars(tl, tf),
		From:      a.Event,
		To:        b.Event,
		Progress:  progress,
	}, true
}

// dayStart returns the index of the keyframe segment lookup lands on at 0%
func dayStart(kfs []Keyframe) int {
	i := 0
	for i+1 < len(kfs) && kfs[i+1].Percentage <= kfs[0].Percentage {
		i++
	}
	return i
}

// showStars is true from civil dusk until civil dawn
func showStars(tl *Timeline, tf float64) bool {
	if twilightCollapsed(tl) {
		return false
	}
	x := clampFraction(tf) * 100

	dawn, okDawn := tl.Percentage(CivilTwilightBegin)
	dusk, okDusk := tl.Percentage(CivilTwilightEnd)
	if !okDawn || !okDusk {
		return false
	}
	return x <= dawn || x >= dusk
}
