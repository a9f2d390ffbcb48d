package sky

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// BlendMode selects the colour space keyframe colours are mixed in
type BlendMode string

const (
	// BlendLinearRGB mixes in linear-light RGB. Straight sRGB averaging darkens
	// and muddies the midpoint between saturated sky colours.
	BlendLinearRGB BlendMode = "lrgb"
	BlendRGB       BlendMode = "rgb"
	BlendLab       BlendMode = "lab"
	BlendLuv       BlendMode = "luv"
	BlendHCL       BlendMode = "hcl"
)

// ParseBlendMode validates a blend mode name. Empty means BlendLinearRGB.
func ParseBlendMode(s string) (BlendMode, error) {
	switch m := BlendMode(s); m {
	case "":
		return BlendLinearRGB, nil
	case BlendLinearRGB, BlendRGB, BlendLab, BlendLuv, BlendHCL:
		return m, nil
	}
	return "", fmt.Errorf("unknown blend mode %q", s)
}

// Blend mixes a toward b by t in [0,1]
func Blend(a, b colorful.Color, t float64, mode BlendMode) colorful.Color {
	t = clamp(t, 0, 1)

	var c colorful.Color
	switch mode {
	case BlendRGB:
		c = a.BlendRgb(b, t)
	case BlendLab:
		c = a.BlendLab(b, t)
	case BlendLuv:
		c = a.BlendLuv(b, t)
	case BlendHCL:
		c = a.BlendHcl(b, t)
	default:
		ar, ag, ab := a.LinearRgb()
		br, bg, bb := b.LinearRgb()
		c = colorful.LinearRgb(
			ar+(br-ar)*t,
			ag+(bg-ag)*t,
			ab+(bb-ab)*t,
		)
	}
	return c.Clamped()
}
