package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-mirror/internal/sky"
	"github.com/saaga0h/jeeves-mirror/internal/sun"
	"github.com/saaga0h/jeeves-mirror/pkg/config"
)

func main() {
	// Same configuration hierarchy as the agent: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()

	fs := pflag.NewFlagSet("sky-preview", pflag.ExitOnError)
	cfg.RegisterFlags(fs)
	date := fs.String("date", "", "Day to preview as YYYY-MM-DD (default today)")
	width := fs.Int("width", 96, "Columns in the day strip")
	fs.Parse(os.Args[1:])

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	loc, err := sky.ResolveLocation(cfg.TimeZone)
	if err != nil {
		logger.Warn("Time zone fallback", "requested", cfg.TimeZone, "using", loc.String(), "error", err)
	}

	blend, err := sky.ParseBlendMode(cfg.BlendMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	palette := sky.DefaultPalette()
	if cfg.PaletteFile != "" {
		if palette, err = sky.LoadPalette(cfg.PaletteFile); err != nil {
			fmt.Fprintf(os.Stderr, "Palette error: %v\n", err)
			os.Exit(1)
		}
	}

	day := time.Now().In(loc)
	if *date != "" {
		if day, err = time.ParseInLocation(time.DateOnly, *date, loc); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --date: %v\n", err)
			os.Exit(1)
		}
	}

	var provider sun.Provider = sun.NewCalcProvider()
	if cfg.SunSource == "api" {
		provider = sun.NewAPIProvider(cfg.SunAPIURL, logger)
	}

	coords := sky.Coordinates{Lat: cfg.Latitude, Lng: cfg.Longitude}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := provider.Events(ctx, coords, day)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get sun times from %s: %v\n", provider.Name(), err)
		os.Exit(1)
	}

	tl := sky.BuildTimeline(events, loc, palette, sky.DefaultBuildOptions())
	if tl.Empty() {
		fmt.Fprintln(os.Stderr, "No timeline: solar noon is missing for this day")
		os.Exit(1)
	}

	fmt.Printf("%s  %.4f, %.4f  %s  (%s, %s)\n\n",
		day.Format(time.DateOnly), coords.Lat, coords.Lng, loc, provider.Name(), blend)
	fmt.Println(renderStrip(tl, blend, *width))
	fmt.Println()
	fmt.Println(renderKeyframes(tl))
	if adj := renderAdjustments(tl); adj != "" {
		fmt.Println()
		fmt.Println(adj)
	}
}
