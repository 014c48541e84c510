// Package track holds the recorded point model, the geometry helpers used
// by the camera and the synchronizer, and the file loaders.
package track

import (
	"errors"
	"time"
)

// ErrTooFewPoints is returned when a track cannot be animated.
var ErrTooFewPoints = errors.New("track has fewer than two points")

// Point is a single recorded (or synthesized) track point. Distance is the
// cumulative distance from the first point in km, Speed is km/h and Ele is
// metres. Time is zero when the source carried no timestamp.
type Point struct {
	Lat, Lon, Ele, Speed, Distance float64
	Time                           time.Time
}

// HasTime reports whether the point carries a timestamp.
func (p Point) HasTime() bool { return !p.Time.IsZero() }

// Track is a named, prepared point sequence.
type Track struct {
	Name   string
	Points []Point
}

// TotalDistance returns the cumulative distance of the last point in km.
func (t *Track) TotalDistance() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Distance
}
