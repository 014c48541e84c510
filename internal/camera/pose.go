package camera

import (
	"math"

	"gps_journey_player/internal/tiles"
	"gps_journey_player/internal/track"
)

// Pose is a camera placement. Bearing is degrees clockwise from north,
// pitch is degrees from vertical.
type Pose struct {
	Lat, Lon float64
	Zoom     float64
	Pitch    float64
	Bearing  float64
}

func easeInOutCubic(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// lerpPose interpolates every field, turning the bearing the short way.
func lerpPose(a, b Pose, f float64) Pose {
	if f >= 1 {
		return b
	}
	return Pose{
		Lat:     a.Lat + (b.Lat-a.Lat)*f,
		Lon:     a.Lon + (b.Lon-a.Lon)*f,
		Zoom:    a.Zoom + (b.Zoom-a.Zoom)*f,
		Pitch:   a.Pitch + (b.Pitch-a.Pitch)*f,
		Bearing: track.NormalizeBearing(a.Bearing + track.AngleDelta(a.Bearing, b.Bearing)*f),
	}
}

// fitZoom returns the largest zoom at which bounds fit the padded viewport.
func fitZoom(b track.Bounds, cfg Config) float64 {
	x0, y0 := tiles.Deg2Num(b.MaxLat, b.MinLon, 0)
	x1, y1 := tiles.Deg2Num(b.MinLat, b.MaxLon, 0)
	dx := math.Abs(x1-x0) * float64(cfg.TileSize)
	dy := math.Abs(y1-y0) * float64(cfg.TileSize)

	availW := float64(cfg.ViewportWidth) - 2*cfg.PaddingPx
	availH := float64(cfg.ViewportHeight) - 2*cfg.PaddingPx

	z := cfg.MaxZoom
	if dx > 0 {
		z = math.Min(z, math.Log2(availW/dx))
	}
	if dy > 0 {
		z = math.Min(z, math.Log2(availH/dy))
	}
	return clamp(z, cfg.MinZoom, cfg.MaxZoom)
}

// elevationZoomOffset grows with start elevation and is capped.
func elevationZoomOffset(eleMeters float64, cfg Config) float64 {
	if eleMeters <= 0 || math.IsNaN(eleMeters) {
		return 0
	}
	return math.Min(eleMeters/1000*cfg.ElevationZoomPerKm, cfg.MaxElevationZoomOffset)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
