package sky

import (
	"fmt"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// ColorPair is the gradient painted for a keyframe: Top at the top of the
// viewport, Bottom at the bottom.
type ColorPair struct {
	Top    colorful.Color
	Bottom colorful.Color
}

// Palette maps every keyframe event to its colour pair
type Palette map[Event]ColorPair

var defaultPaletteHex = map[Event][2]string{
	Midnight:                  {"#051937", "#1F2240"}, // deep night
	AstronomicalTwilightBegin: {"#051937", "#1F2240"},
	NauticalTwilightBegin:     {"#051937", "#8E3661"}, // first glow on the horizon
	CivilTwilightBegin:        {"#ad405d", "#E48239"}, // golden hour
	Sunrise:                   {"#71D1FA", "#9c7cc9"},
	SolarNoon:                 {"#38bdf8", "#52caff"}, // full daylight
	Sunset:                    {"#80ACF4", "#CB88BD"},
	CivilTwilightEnd:          {"#6C4771", "#D47E97"},
	NauticalTwilightEnd:       {"#051937", "#8E3661"},
	AstronomicalTwilightEnd:   {"#051937", "#1F2240"},
}

// DefaultPalette returns the built-in hand-tuned colours
func DefaultPalette() Palette {
	p := make(Palette, len(defaultPaletteHex))
	for ev, hex := range defaultPaletteHex {
		top, _ := colorful.Hex(hex[0])
		bottom, _ := colorful.Hex(hex[1])
		p[ev] = ColorPair{Top: top, Bottom: bottom}
	}
	return p
}

// Pair returns the colours for ev, falling back to the midnight pair
func (p Palette) Pair(ev Event) ColorPair {
	if pair, ok := p[ev]; ok {
		return pair
	}
	if pair, ok := p[Midnight]; ok {
		return pair
	}
	return DefaultPalette()[Midnight]
}

type paletteEntry struct {
	Top    string `yaml:"top"`
	Bottom string `yaml:"bottom"`
}

// LoadPalette reads a YAML palette file. Entries override the defaults;
// events not listed keep their default colours.
//
//	sunrise:
//	  top: "#71D1FA"
//	  bottom: "#9c7cc9"
func LoadPalette(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette file: %w", err)
	}
	return ParsePalette(data)
}

// ParsePalette parses YAML palette data on top of the defaults
func ParsePalette(data []byte) (Palette, error) {
	var entries map[string]paletteEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse palette YAML: %w", err)
	}

	known := make(map[Event]bool, len(DayOrder))
	for _, ev := range DayOrder {
		known[ev] = true
	}

	p := DefaultPalette()
	for name, entry := range entries {
		ev := Event(name)
		if !known[ev] {
			return nil, fmt.Errorf("unknown palette event %q", name)
		}

		pair := p[ev]
		if entry.Top != "" {
			c, err := colorful.Hex(entry.Top)
			if err != nil {
				return nil, fmt.Errorf("invalid top colour for %s: %w", name, err)
			}
			pair.Top = c
		}
		if entry.Bottom != "" {
			c, err := colorful.Hex(entry.Bottom)
			if err != nil {
				return nil, fmt.Errorf("invalid bottom colour for %s: %w", name, err)
			}
			pair.Bottom = c
		}
		p[ev] = pair
	}

	return p, nil
}
