package track

import "math"

// Prepare returns a copy of points with elevation gaps filled, cumulative
// distance recomputed and speed derived over a centred 5-point window.
// Timestamps are left untouched; speed stays 0 where time is missing.
func Prepare(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	if len(out) == 0 {
		return out
	}

	fillElevation(out)

	out[0].Distance = 0
	for i := 1; i < len(out); i++ {
		out[i].Distance = out[i-1].Distance + Haversine(out[i-1], out[i])
	}

	for i := range out {
		windowStart := max(i-2, 0)
		windowEnd := min(i+2, len(out)-1)

		var totalDist, totalTime float64
		for j := windowStart; j < windowEnd; j++ {
			if !out[j].HasTime() || !out[j+1].HasTime() {
				continue
			}
			totalDist += out[j+1].Distance - out[j].Distance
			totalTime += out[j+1].Time.Sub(out[j].Time).Seconds()
		}
		switch {
		case totalTime > 0:
			out[i].Speed = totalDist * 3600 / totalTime
		case out[i].Speed > 0:
			// keep a speed the source already reported
		case i > 0:
			out[i].Speed = out[i-1].Speed
		}
	}
	return out
}

// fillElevation replaces missing (zero or NaN) elevation with the first
// known value before it and the last known value after it.
func fillElevation(points []Point) {
	firstIdx := -1
	for i, p := range points {
		if p.Ele != 0 && !math.IsNaN(p.Ele) {
			firstIdx = i
			break
		}
	}
	if firstIdx == -1 {
		for i := range points {
			points[i].Ele = 0
		}
		return
	}
	for i := 0; i < firstIdx; i++ {
		points[i].Ele = points[firstIdx].Ele
	}
	last := points[firstIdx].Ele
	for i := firstIdx; i < len(points); i++ {
		if points[i].Ele == 0 || math.IsNaN(points[i].Ele) {
			points[i].Ele = last
		} else {
			last = points[i].Ele
		}
	}
}
