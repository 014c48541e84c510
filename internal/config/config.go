// Package config loads player settings from built-in defaults, an optional
// YAML file and the environment (.env included), in that order of
// precedence. Command-line flags are applied on top by the caller, which
// then calls Validate again.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Playback  Playback  `yaml:"playback"`
	Camera    Camera    `yaml:"camera"`
	Tiles     Tiles     `yaml:"tiles"`
	Render    Render    `yaml:"render"`
	Sync      Sync      `yaml:"sync"`
	Segments  Segments  `yaml:"segments"`
	Endpoints Endpoints `yaml:"endpoints"`
}

type Playback struct {
	FrameRate        float64 `yaml:"frame_rate" validate:"gt=0,lte=240"`
	Speed            float64 `yaml:"speed" validate:"gt=0"`
	DriftTolerance   float64 `yaml:"drift_tolerance" validate:"gt=0"`
	LookAheadSeconds float64 `yaml:"look_ahead_seconds" validate:"gte=0"`
}

type Preset struct {
	Name  string  `yaml:"name" validate:"required"`
	Zoom  float64 `yaml:"zoom" validate:"gte=0,lte=22"`
	Pitch float64 `yaml:"pitch" validate:"gte=0,lte=85"`
}

type Camera struct {
	Presets          []Preset `yaml:"presets" validate:"required,min=1,dive"`
	DefaultPreset    string   `yaml:"default_preset" validate:"required"`
	Mode             string   `yaml:"mode" validate:"oneof=follow overview free"`
	BearingSmoothing float64  `yaml:"bearing_smoothing" validate:"gt=0,lte=1"`
	LookAhead        float64  `yaml:"look_ahead" validate:"gt=0,lt=1"`
	CinematicSeconds float64  `yaml:"cinematic_seconds" validate:"gt=0"`
	EndZoomDelay     float64  `yaml:"end_zoom_delay_seconds" validate:"gte=0"`
	EndZoomSeconds   float64  `yaml:"end_zoom_seconds" validate:"gt=0"`
	EndPitch         float64  `yaml:"end_pitch" validate:"gte=0,lte=85"`
	PaddingPx        float64  `yaml:"padding_px" validate:"gte=0"`
}

type Tiles struct {
	// Style is a named style or a custom {z}/{x}/{y} template.
	Style          string  `yaml:"style" validate:"required"`
	Terrain        bool    `yaml:"terrain"`
	TerrainURL     string  `yaml:"terrain_url"`
	Retina         bool    `yaml:"retina"`
	CacheDir       string  `yaml:"cache_dir" validate:"required"`
	Concurrency    int     `yaml:"concurrency" validate:"gt=0,lte=64"`
	TimeoutSeconds float64 `yaml:"timeout_seconds" validate:"gt=0"`
}

type Render struct {
	Width          int     `yaml:"width" validate:"gt=0"`
	Height         int     `yaml:"height" validate:"gt=0"`
	TileSize       int     `yaml:"tile_size" validate:"oneof=256 512"`
	PathWidth      float64 `yaml:"path_width" validate:"gt=0"`
	PathColor      string  `yaml:"path_color" validate:"hexcolor,len=7"`
	MarkerColor    string  `yaml:"marker_color" validate:"hexcolor,len=7"`
	IndicatorColor string  `yaml:"indicator_color" validate:"hexcolor,len=7"`
}

type Sync struct {
	ProximityKm     float64 `yaml:"proximity_km" validate:"gt=0"`
	AssumedSpeedKmh float64 `yaml:"assumed_speed_kmh" validate:"gte=0"`
	// AutoSyntheticTime accepts the synthetic time offer without asking.
	AutoSyntheticTime bool `yaml:"auto_synthetic_time"`
}

type Segments struct {
	TrackSeconds float64            `yaml:"track_seconds" validate:"gt=0"`
	HopPoints    int                `yaml:"hop_points" validate:"gte=1"`
	ModeSeconds  map[string]float64 `yaml:"mode_seconds" validate:"dive,keys,oneof=car train plane boat bus walk bike,endkeys,gt=0"`
}

type Endpoints struct {
	ControlAddr       string  `yaml:"control_addr"`
	MetricsAddr       string  `yaml:"metrics_addr"`
	NATSURL           string  `yaml:"nats_url" validate:"omitempty,url"`
	NATSSubjectPrefix string  `yaml:"nats_subject_prefix" validate:"required"`
	PublishHz         float64 `yaml:"publish_hz" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Playback: Playback{
			FrameRate:        30,
			Speed:            1,
			DriftTolerance:   1,
			LookAheadSeconds: 2,
		},
		Camera: Camera{
			Presets: []Preset{
				{Name: "near", Zoom: 16, Pitch: 60},
				{Name: "medium", Zoom: 14.5, Pitch: 50},
				{Name: "far", Zoom: 13, Pitch: 40},
			},
			DefaultPreset:    "medium",
			Mode:             "follow",
			BearingSmoothing: 0.15,
			LookAhead:        0.002,
			CinematicSeconds: 2.5,
			EndZoomDelay:     1.5,
			EndZoomSeconds:   2,
			EndPitch:         30,
			PaddingPx:        60,
		},
		Tiles: Tiles{
			Style:          "default",
			CacheDir:       "tiles",
			Concurrency:    8,
			TimeoutSeconds: 3,
		},
		Render: Render{
			Width:          1280,
			Height:         720,
			TileSize:       512,
			PathWidth:      6,
			PathColor:      "#ff0000",
			MarkerColor:    "#0000ff",
			IndicatorColor: "#ffffff",
		},
		Sync: Sync{
			ProximityKm:       0.5,
			AutoSyntheticTime: true,
		},
		Segments: Segments{
			TrackSeconds: 60,
			HopPoints:    20,
			ModeSeconds: map[string]float64{
				"car":   20,
				"train": 20,
				"plane": 15,
				"boat":  20,
				"bus":   20,
				"walk":  10,
				"bike":  10,
			},
		},
		Endpoints: Endpoints{
			NATSSubjectPrefix: "journey",
			PublishHz:         5,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Endpoints.ControlAddr = getenvDefault("CONTROL_ADDR", c.Endpoints.ControlAddr)
	c.Endpoints.MetricsAddr = getenvDefault("METRICS_ADDR", c.Endpoints.MetricsAddr)
	c.Endpoints.NATSURL = getenvDefault("NATS_URL", c.Endpoints.NATSURL)
	c.Endpoints.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", c.Endpoints.NATSSubjectPrefix)
	c.Tiles.Style = getenvDefault("TILE_URL", c.Tiles.Style)
	c.Tiles.CacheDir = getenvDefault("TILE_CACHE_DIR", c.Tiles.CacheDir)
	if v := os.Getenv("TERRAIN_URL"); v != "" {
		c.Tiles.TerrainURL = v
		c.Tiles.Terrain = true
	}

	if v := os.Getenv("SPEED_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("%w: invalid SPEED_MULTIPLIER: %q", ErrInvalid, v)
		}
		c.Playback.Speed = f
	}
	if v := os.Getenv("TILE_RETINA"); v != "" {
		c.Tiles.Retina = parseBool(v)
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	found := false
	seen := make(map[string]struct{}, len(c.Camera.Presets))
	for _, p := range c.Camera.Presets {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate camera preset %q", ErrInvalid, p.Name)
		}
		seen[p.Name] = struct{}{}
		found = found || p.Name == c.Camera.DefaultPreset
	}
	if !found {
		return fmt.Errorf("%w: default preset %q not defined", ErrInvalid, c.Camera.DefaultPreset)
	}
	if err := c.CameraConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// FrameInterval is the wall-clock time between frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Playback.FrameRate)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}
