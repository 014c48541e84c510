package main

import (
	"flag"
	"fmt"
	"strings"

	"gps_journey_player/internal/config"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type Arguments struct {
	ConfigFile string
	Tracks     listFlag
	Hops       string
	Compare    listFlag
	From, To   string

	OutputDir        string
	SnapshotEvery    int
	RenderFirstFrame bool
	Prefetch         bool
	Realtime         bool
	Autoplay         bool

	// Overrides applied on top of the config file and environment.
	Speed     float64
	Style     string
	Preset    string
	Mode      string
	Framerate float64
	Is2x      bool
	Terrain   bool
	Duration  float64
}

func parseArguments() *Arguments {
	args := &Arguments{}

	flag.StringVar(&args.ConfigFile, "config", "", "Path to a YAML config file.")
	flag.Var(&args.Tracks, "track", "GPX or FIT track file; repeat to chain several tracks into one journey.")
	flag.StringVar(&args.Hops, "hops", "", "Comma-separated transportation modes between consecutive tracks (car, train, plane, boat, bus, walk, bike); empty joins directly.")
	flag.Var(&args.Compare, "compare", "Comparison track as path[:#rrggbb]; repeatable.")
	flag.StringVar(&args.From, "from", "", "Cut a single track from this offset (e.g. 90s or 2.5km).")
	flag.StringVar(&args.To, "to", "", "Cut a single track up to this offset (e.g. 3600s or 40km).")
	flag.StringVar(&args.OutputDir, "o", "frames", "Directory for PNG snapshots.")
	flag.IntVar(&args.SnapshotEvery, "every", 0, "Write a PNG snapshot every N frames (0 disables).")
	flag.BoolVar(&args.RenderFirstFrame, "render-first-frame", false, "Render only the first frame and save as first_frame.png.")
	flag.BoolVar(&args.Prefetch, "prefetch", false, "Download every tile along the journey before rendering.")
	flag.BoolVar(&args.Realtime, "realtime", false, "Run against the wall clock with the control API instead of rendering offline.")
	flag.BoolVar(&args.Autoplay, "autoplay", true, "Start playing immediately.")
	flag.Float64Var(&args.Speed, "speed", 0, "Playback speed multiplier.")
	flag.StringVar(&args.Style, "style", "", "Map style (e.g., default, cyclosm, toner, positron) or a {z}/{x}/{y} URL template.")
	flag.StringVar(&args.Preset, "preset", "", "Camera preset (near, medium, far).")
	flag.StringVar(&args.Mode, "mode", "", "Camera mode (follow, overview, free).")
	flag.Float64Var(&args.Framerate, "framerate", 0, "Frames per second.")
	flag.BoolVar(&args.Is2x, "2x", false, "Use 2x tiles.")
	flag.BoolVar(&args.Terrain, "terrain", false, "Also preload terrain elevation tiles.")
	flag.Float64Var(&args.Duration, "duration", 0, "Playback seconds per recorded track.")

	flag.Parse()
	return args
}

// apply overrides cfg with the flags that were set.
func (a *Arguments) apply(cfg *config.Config) error {
	if a.Speed != 0 {
		cfg.Playback.Speed = a.Speed
	}
	if a.Style != "" {
		cfg.Tiles.Style = a.Style
	}
	if a.Preset != "" {
		cfg.Camera.DefaultPreset = a.Preset
	}
	if a.Mode != "" {
		cfg.Camera.Mode = a.Mode
	}
	if a.Framerate != 0 {
		cfg.Playback.FrameRate = a.Framerate
	}
	if a.Is2x {
		cfg.Tiles.Retina = true
		cfg.Render.TileSize = 512
	}
	if a.Terrain {
		cfg.Tiles.Terrain = true
	}
	if a.Duration != 0 {
		cfg.Segments.TrackSeconds = a.Duration
	}
	if len(a.Tracks) == 0 {
		return fmt.Errorf("at least one -track is required")
	}
	return cfg.Validate()
}

// hopModes returns the mode between track i and i+1, "" for a direct join.
func (a *Arguments) hopModes() []string {
	modes := make([]string, max(len(a.Tracks)-1, 0))
	for i, m := range strings.Split(a.Hops, ",") {
		if i >= len(modes) {
			break
		}
		modes[i] = strings.TrimSpace(m)
	}
	return modes
}

// splitCompare splits path[:#rrggbb].
func splitCompare(v string) (path, color string) {
	if i := strings.LastIndex(v, ":#"); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}
