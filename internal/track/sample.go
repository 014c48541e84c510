package track

import (
	"math"
	"time"
)

// Sample is a point interpolated on a track at a given progress.
type Sample struct {
	Lat, Lon, Ele, Speed, Distance float64
	// Index is the fractional point index the sample was taken at.
	Index float64
	// Time is interpolated only when both neighbouring points carry time.
	Time time.Time
}

// HasTime reports whether the sample carries an interpolated timestamp.
func (s Sample) HasTime() bool { return !s.Time.IsZero() }

// SampleAt interpolates every numeric field of points at progress, where
// progress maps linearly onto the fractional index progress*(N-1).
// Progress is clamped to [0,1]; NaN is treated as 0.
func SampleAt(points []Point, progress float64) Sample {
	n := len(points)
	if n == 0 {
		return Sample{}
	}
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	idx := progress * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if hi >= n {
		hi = n - 1
	}
	if lo >= n {
		lo = n - 1
	}
	f := idx - float64(lo)
	p1, p2 := points[lo], points[hi]

	s := Sample{
		Lat:      lerp(p1.Lat, p2.Lat, f),
		Lon:      lerp(p1.Lon, p2.Lon, f),
		Ele:      lerp(p1.Ele, p2.Ele, f),
		Speed:    lerp(p1.Speed, p2.Speed, f),
		Distance: lerp(p1.Distance, p2.Distance, f),
		Index:    idx,
	}
	if p1.HasTime() && p2.HasTime() {
		dt := p2.Time.Sub(p1.Time)
		s.Time = p1.Time.Add(time.Duration(float64(dt) * f))
	}
	return s
}

// Point returns the sample as a bare Point.
func (s Sample) Point() Point {
	return Point{Lat: s.Lat, Lon: s.Lon, Ele: s.Ele, Speed: s.Speed, Distance: s.Distance, Time: s.Time}
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
