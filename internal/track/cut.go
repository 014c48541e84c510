package track

import (
	"fmt"
	"strconv"
	"strings"
)

// Cut keeps the part of prepared points between two boundaries. A boundary
// is an offset from the start in seconds ("90s") or kilometres ("12.5km");
// an empty boundary means the track's start or end. Distance is rebased to
// start at zero.
func Cut(points []Point, from, to string) ([]Point, error) {
	start, err := cutIndex(from, points, 0)
	if err != nil {
		return nil, fmt.Errorf("cut from: %w", err)
	}
	end, err := cutIndex(to, points, len(points))
	if err != nil {
		return nil, fmt.Errorf("cut to: %w", err)
	}
	if end-start < 2 {
		return nil, fmt.Errorf("cut %q..%q leaves %d points: %w", from, to, max(end-start, 0), ErrTooFewPoints)
	}

	out := make([]Point, end-start)
	copy(out, points[start:end])
	base := out[0].Distance
	for i := range out {
		out[i].Distance -= base
	}
	return out, nil
}

// cutIndex returns the first index at or past boundary.
func cutIndex(boundary string, points []Point, def int) (int, error) {
	boundary = strings.TrimSpace(boundary)
	if boundary == "" || len(points) == 0 {
		return def, nil
	}
	switch {
	case strings.HasSuffix(boundary, "km"):
		km, err := strconv.ParseFloat(strings.TrimSuffix(boundary, "km"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid distance %q", boundary)
		}
		for i, p := range points {
			if p.Distance >= km {
				return i, nil
			}
		}
		return len(points), nil
	case strings.HasSuffix(boundary, "s"):
		seconds, err := strconv.ParseFloat(strings.TrimSuffix(boundary, "s"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q", boundary)
		}
		if !points[0].HasTime() {
			return 0, fmt.Errorf("time offset %q on a track without timestamps", boundary)
		}
		startTime := points[0].Time
		for i, p := range points {
			if p.HasTime() && p.Time.Sub(startTime).Seconds() >= seconds {
				return i, nil
			}
		}
		return len(points), nil
	}
	return 0, fmt.Errorf("boundary %q needs an s or km suffix", boundary)
}
