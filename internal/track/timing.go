package track

import (
	"time"
)

// HasTime reports whether points carry a usable time window: at least two
// timestamped points with the last strictly after the first.
func HasTime(points []Point) bool {
	_, _, ok := TimeWindow(points)
	return ok
}

// TimeWindow returns the first and last timestamps of points.
func TimeWindow(points []Point) (start, end time.Time, ok bool) {
	for _, p := range points {
		if p.HasTime() {
			start = p.Time
			break
		}
	}
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].HasTime() {
			end = points[i].Time
			break
		}
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// AverageSpeed returns the mean speed in km/h over the recorded time window,
// or 0 when the track has no usable time.
func AverageSpeed(points []Point) float64 {
	start, end, ok := TimeWindow(points)
	if !ok || len(points) == 0 {
		return 0
	}
	hours := end.Sub(start).Hours()
	return points[len(points)-1].Distance / hours
}

// FillSyntheticTime overwrites every point's timestamp with an estimate
// derived from its cumulative distance at a constant speed, anchored at
// anchor. This is the single permitted mutation of loaded points.
// Speed <= 0 leaves points untouched and returns false.
func FillSyntheticTime(points []Point, anchor time.Time, speedKmh float64) bool {
	if speedKmh <= 0 || len(points) == 0 {
		return false
	}
	for i := range points {
		hours := points[i].Distance / speedKmh
		points[i].Time = anchor.Add(time.Duration(hours * float64(time.Hour)))
		if points[i].Speed == 0 {
			points[i].Speed = speedKmh
		}
	}
	return true
}
