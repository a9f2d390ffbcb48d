package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
)

func swatch(hex string, width int) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(hex)).Render(strings.Repeat(" ", width))
}

// renderStrip samples the day at width evenly spaced moments and paints the
// top colour row over the bottom colour row, with an hour axis below.
func renderStrip(tl *sky.Timeline, blend sky.BlendMode, width int) string {
	if width < 24 {
		width = 24
	}

	var top, bottom, stars strings.Builder
	for i := 0; i < width; i++ {
		tf := float64(i) / float64(width)
		s, ok := sky.SampleSky(tl, tf, blend)
		if !ok {
			return ""
		}
		top.WriteString(swatch(s.Top, 1))
		bottom.WriteString(swatch(s.Bottom, 1))

		opacity, _ := sky.StarOpacity(tl, tf)
		stars.WriteString(starGlyph(opacity))
	}

	axis := []rune(strings.Repeat(" ", width))
	for h := 0; h < 24; h += 6 {
		col := h * width / 24
		for j, r := range fmt.Sprintf("%02d", h) {
			if col+j < width {
				axis[col+j] = r
			}
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		dimStyle.Render(stars.String()),
		top.String(),
		bottom.String(),
		dimStyle.Render(string(axis)),
	)
}

func starGlyph(opacity float64) string {
	switch {
	case opacity >= 0.75:
		return "*"
	case opacity >= 0.25:
		return "."
	default:
		return " "
	}
}

// renderKeyframes lists each keyframe with its clock time and colours
func renderKeyframes(tl *sky.Timeline) string {
	lines := []string{labelStyle.Render(fmt.Sprintf("%-26s %6s  %5s  %-7s %-7s", "EVENT", "%", "TIME", "TOP", "BOTTOM"))}
	for _, kf := range tl.Keyframes {
		lines = append(lines, fmt.Sprintf("%-26s %6.1f  %5s  %s %s %s %s",
			kf.Event,
			kf.Percentage,
			clockTime(kf.Percentage),
			swatch(kf.Top.Hex(), 2), kf.Top.Hex(),
			swatch(kf.Bottom.Hex(), 2), kf.Bottom.Hex(),
		))
	}
	return strings.Join(lines, "\n")
}

// renderAdjustments explains keyframes that were estimated or clamped
func renderAdjustments(tl *sky.Timeline) string {
	if len(tl.Adjustments) == 0 {
		return ""
	}
	lines := []string{labelStyle.Render("ADJUSTMENTS")}
	for _, a := range tl.Adjustments {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%-26s %6.1f  %s", a.Event, a.Percentage, a.Reason)))
	}
	return strings.Join(lines, "\n")
}

// clockTime converts a percentage of the day to HH:MM
func clockTime(pct float64) string {
	minutes := int(pct/100*24*60 + 0.5)
	if minutes >= 24*60 {
		minutes = 24*60 - 1
	}
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
