package journey

import (
	"fmt"
	"time"

	"gps_journey_player/internal/track"
)

// DefaultHopPoints is the number of synthesized points in a transportation
// hop between two tracks.
const DefaultHopPoints = 20

// Part is one leg of a journey under composition: a recorded track, or a
// transportation hop (Mode set, Track nil) bridging its neighbours.
type Part struct {
	Track        *track.Track
	Mode         string
	UserDuration *float64
}

// IsHop reports whether the part is a synthesized transportation hop.
func (p Part) IsHop() bool { return p.Track == nil }

// Compose flattens parts into one point array with contiguous segments.
// Every hop must sit between two tracks; its points are interpolated
// strictly between the previous track's last point and the next track's
// first point, so segments never share an index.
func Compose(parts []Part, hopPoints int) (*Journey, error) {
	if len(parts) == 0 {
		return nil, ErrNoSegments
	}
	if hopPoints <= 0 {
		hopPoints = DefaultHopPoints
	}

	j := &Journey{}
	for i, part := range parts {
		start := len(j.Points)
		if part.IsHop() {
			if i == 0 || i == len(parts)-1 || parts[i-1].IsHop() || parts[i+1].IsHop() {
				return nil, fmt.Errorf("part %d: %s hop must sit between two tracks", i, part.Mode)
			}
			prev := parts[i-1].Track.Points
			next := parts[i+1].Track.Points
			if len(prev) == 0 || len(next) == 0 {
				return nil, fmt.Errorf("part %d: %w", i, track.ErrTooFewPoints)
			}
			j.Points = append(j.Points, hopLine(prev[len(prev)-1], next[0], hopPoints)...)
			j.Segments = append(j.Segments, Segment{
				Type:         SegmentTransportation,
				StartIndex:   start,
				EndIndex:     len(j.Points) - 1,
				Mode:         part.Mode,
				Source:       part.Mode,
				UserDuration: part.UserDuration,
			})
			continue
		}

		if len(part.Track.Points) == 0 {
			return nil, fmt.Errorf("part %d (%s): %w", i, part.Track.Name, track.ErrTooFewPoints)
		}
		j.Points = append(j.Points, part.Track.Points...)
		j.Segments = append(j.Segments, Segment{
			Type:         SegmentTrack,
			StartIndex:   start,
			EndIndex:     len(j.Points) - 1,
			Source:       part.Track.Name,
			UserDuration: part.UserDuration,
		})
	}

	recomputeDistance(j.Points)
	if err := Validate(j.Segments, len(j.Points)); err != nil {
		return nil, err
	}
	return j, nil
}

// hopLine interpolates n interior points from a to b. Elevation is linear;
// time is only interpolated when both ends carry it.
func hopLine(a, b track.Point, n int) []track.Point {
	out := make([]track.Point, n)
	for k := 1; k <= n; k++ {
		f := float64(k) / float64(n+1)
		p := track.Point{
			Lat: a.Lat + (b.Lat-a.Lat)*f,
			Lon: a.Lon + (b.Lon-a.Lon)*f,
			Ele: a.Ele + (b.Ele-a.Ele)*f,
		}
		if a.HasTime() && b.HasTime() && b.Time.After(a.Time) {
			p.Time = a.Time.Add(time.Duration(float64(b.Time.Sub(a.Time)) * f))
		}
		out[k-1] = p
	}
	return out
}

func recomputeDistance(points []track.Point) {
	for i := range points {
		if i == 0 {
			points[i].Distance = 0
			continue
		}
		points[i].Distance = points[i-1].Distance + track.Haversine(points[i-1], points[i])
	}
}
