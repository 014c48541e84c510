package camera

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid camera config")

// Preset is a named following zoom and pitch.
type Preset struct {
	Name  string
	Zoom  float64
	Pitch float64
}

// DefaultPresets are the built-in following distances.
var DefaultPresets = []Preset{
	{Name: "near", Zoom: 16, Pitch: 60},
	{Name: "medium", Zoom: 14.5, Pitch: 50},
	{Name: "far", Zoom: 13, Pitch: 40},
}

// Mode selects who drives the surface pose.
type Mode string

const (
	// ModeFollow lets the camera chase the playhead.
	ModeFollow Mode = "follow"
	// ModeOverview holds the bounds-fit overview.
	ModeOverview Mode = "overview"
	// ModeFree never moves the surface; preloading still runs.
	ModeFree Mode = "free"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFollow, ModeOverview, ModeFree:
		return m, nil
	}
	return "", fmt.Errorf("unknown camera mode %q", s)
}

// Config is fixed for the lifetime of a Camera.
type Config struct {
	Presets       []Preset
	DefaultPreset string

	// BearingSmoothing is the fraction of the remaining bearing error
	// closed each frame, in (0,1].
	BearingSmoothing float64
	// LookAhead is the progress distance used to derive the direction of
	// travel.
	LookAhead float64

	CinematicDuration time.Duration
	// FollowEase must stay below FrameInterval so consecutive moves
	// supersede each other.
	FollowEase    time.Duration
	FrameInterval time.Duration

	EndZoomDelay    time.Duration
	EndZoomDuration time.Duration
	EndPitch        float64

	ViewportWidth  int
	ViewportHeight int
	TileSize       int
	PaddingPx      float64
	MinZoom        float64
	MaxZoom        float64

	// ElevationZoomPerKm widens the overview by this many zoom levels per
	// km of start elevation, up to MaxElevationZoomOffset.
	ElevationZoomPerKm     float64
	MaxElevationZoomOffset float64
}

func DefaultConfig() Config {
	presets := make([]Preset, len(DefaultPresets))
	copy(presets, DefaultPresets)
	return Config{
		Presets:                presets,
		DefaultPreset:          "medium",
		BearingSmoothing:       0.15,
		LookAhead:              0.002,
		CinematicDuration:      2500 * time.Millisecond,
		FollowEase:             12 * time.Millisecond,
		FrameInterval:          time.Second / 60,
		EndZoomDelay:           1500 * time.Millisecond,
		EndZoomDuration:        2 * time.Second,
		EndPitch:               30,
		ViewportWidth:          1280,
		ViewportHeight:         720,
		TileSize:               512,
		PaddingPx:              60,
		MinZoom:                2,
		MaxZoom:                17,
		ElevationZoomPerKm:     0.25,
		MaxElevationZoomOffset: 1,
	}
}

// Validate checks the config for values the camera cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(len(c.Presets) > 0, "no presets")
	names := make(map[string]struct{}, len(c.Presets))
	for _, p := range c.Presets {
		_, dup := names[p.Name]
		check(p.Name != "" && !dup, "preset name %q empty or duplicated", p.Name)
		check(p.Pitch >= 0 && p.Pitch <= 85, "preset %s pitch %.1f outside [0,85]", p.Name, p.Pitch)
		names[p.Name] = struct{}{}
	}
	_, ok := names[c.DefaultPreset]
	check(ok, "default preset %q not defined", c.DefaultPreset)

	check(c.BearingSmoothing > 0 && c.BearingSmoothing <= 1, "bearing smoothing %.3f outside (0,1]", c.BearingSmoothing)
	check(c.LookAhead > 0 && c.LookAhead < 1, "look-ahead %.4f outside (0,1)", c.LookAhead)
	check(c.CinematicDuration > 0, "cinematic duration must be positive")
	check(c.FrameInterval > 0, "frame interval must be positive")
	check(c.FollowEase >= 0 && c.FollowEase < c.FrameInterval, "follow ease %s must be shorter than the frame interval %s", c.FollowEase, c.FrameInterval)
	check(c.EndZoomDelay >= 0 && c.EndZoomDuration > 0, "end zoom delay/duration invalid")
	check(c.ViewportWidth > 0 && c.ViewportHeight > 0, "viewport %dx%d", c.ViewportWidth, c.ViewportHeight)
	check(c.TileSize > 0, "tile size %d", c.TileSize)
	check(2*c.PaddingPx < float64(min(c.ViewportWidth, c.ViewportHeight)), "padding %.0fpx leaves no viewport", c.PaddingPx)
	check(c.MinZoom >= 0 && c.MinZoom <= c.MaxZoom, "zoom range [%.1f,%.1f]", c.MinZoom, c.MaxZoom)
	check(c.ElevationZoomPerKm >= 0 && c.MaxElevationZoomOffset >= 0, "elevation zoom offset must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) preset(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
