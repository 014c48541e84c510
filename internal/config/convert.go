package config

import (
	"fmt"
	"time"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/compare"
	"gps_journey_player/internal/player"
	"gps_journey_player/internal/render"
	"gps_journey_player/internal/tiles"
)

// CameraConfig builds the camera's immutable configuration.
func (c *Config) CameraConfig() camera.Config {
	cc := camera.DefaultConfig()
	cc.Presets = cc.Presets[:0]
	for _, p := range c.Camera.Presets {
		cc.Presets = append(cc.Presets, camera.Preset{Name: p.Name, Zoom: p.Zoom, Pitch: p.Pitch})
	}
	cc.DefaultPreset = c.Camera.DefaultPreset
	cc.BearingSmoothing = c.Camera.BearingSmoothing
	cc.LookAhead = c.Camera.LookAhead
	cc.CinematicDuration = seconds(c.Camera.CinematicSeconds)
	cc.EndZoomDelay = seconds(c.Camera.EndZoomDelay)
	cc.EndZoomDuration = seconds(c.Camera.EndZoomSeconds)
	cc.EndPitch = c.Camera.EndPitch
	cc.PaddingPx = c.Camera.PaddingPx
	cc.ViewportWidth = c.Render.Width
	cc.ViewportHeight = c.Render.Height
	cc.TileSize = c.Render.TileSize

	cc.FrameInterval = c.FrameInterval()
	cc.FollowEase = min(cc.FollowEase, cc.FrameInterval/2)
	return cc
}

// PlayerConfig builds the frame loop configuration.
func (c *Config) PlayerConfig() player.Config {
	pc := player.DefaultConfig()
	pc.Speed = c.Playback.Speed
	pc.DriftTolerance = c.Playback.DriftTolerance
	pc.LookAhead = seconds(c.Playback.LookAheadSeconds)
	pc.AutoSyntheticTime = c.Sync.AutoSyntheticTime
	pc.Camera = c.CameraConfig()
	pc.Sync = compare.Config{
		ProximityKm:     c.Sync.ProximityKm,
		AssumedSpeedKmh: c.Sync.AssumedSpeedKmh,
	}
	return pc
}

// MapStyle resolves the configured map style.
func (c *Config) MapStyle() (tiles.Style, error) {
	s, err := tiles.LookupStyle(c.Tiles.Style)
	if err != nil {
		return tiles.Style{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return s, nil
}

// TerrainStyle returns the elevation tile source, or nil when terrain
// preloading is off.
func (c *Config) TerrainStyle() *tiles.Style {
	if !c.Tiles.Terrain {
		return nil
	}
	s := tiles.Terrain
	if c.Tiles.TerrainURL != "" {
		s.URL = c.Tiles.TerrainURL
	}
	return &s
}

// PreloaderConfig builds the tile preloader configuration. observe may be
// nil.
func (c *Config) PreloaderConfig(style tiles.Style, observe func(tiles.Kind, string)) tiles.PreloaderConfig {
	return tiles.PreloaderConfig{
		Style:          style,
		Terrain:        c.TerrainStyle(),
		Retina:         c.Tiles.Retina,
		ViewportWidth:  c.Render.Width,
		ViewportHeight: c.Render.Height,
		TileSize:       c.Render.TileSize,
		Concurrency:    c.Tiles.Concurrency,
		Timeout:        seconds(c.Tiles.TimeoutSeconds),
		Observe:        observe,
	}
}

// RenderOptions builds the raster surface options.
func (c *Config) RenderOptions(style tiles.Style, cachedOnly bool) (render.Options, error) {
	opts := render.Options{
		Width:       c.Render.Width,
		Height:      c.Render.Height,
		TileSize:    c.Render.TileSize,
		Retina:      c.Tiles.Retina,
		Style:       style,
		CachedOnly:  cachedOnly,
		TileTimeout: seconds(c.Tiles.TimeoutSeconds),
		PathWidth:   c.Render.PathWidth,
	}
	var err error
	if opts.PathColor, err = render.ParseHexColor(c.Render.PathColor); err != nil {
		return render.Options{}, fmt.Errorf("%w: path color: %w", ErrInvalid, err)
	}
	if opts.MarkerColor, err = render.ParseHexColor(c.Render.MarkerColor); err != nil {
		return render.Options{}, fmt.Errorf("%w: marker color: %w", ErrInvalid, err)
	}
	if opts.IndicatorColor, err = render.ParseHexColor(c.Render.IndicatorColor); err != nil {
		return render.Options{}, fmt.Errorf("%w: indicator color: %w", ErrInvalid, err)
	}
	return opts, nil
}

// PublishInterval is the minimum time between NATS playhead messages.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Endpoints.PublishHz)
}
