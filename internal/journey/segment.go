// Package journey builds the timing model of a journey: an ordered set of
// contiguous segments over one flattened point array, each played back over
// a wall-clock duration, and the bidirectional mapping between coordinate
// progress and journey elapsed time.
package journey

import (
	"errors"
	"fmt"
	"math"

	"gps_journey_player/internal/track"
)

var (
	// ErrNoSegments is returned when a journey has nothing to play.
	ErrNoSegments = errors.New("journey has no segments")
	// ErrNonContiguous is returned when segment boundaries leave gaps,
	// overlap or run outside the point array.
	ErrNonContiguous = errors.New("journey segments are not contiguous")
)

// SegmentType distinguishes recorded tracks from synthesized hops.
type SegmentType string

const (
	SegmentTrack          SegmentType = "track"
	SegmentTransportation SegmentType = "transportation"
)

// Segment is a contiguous, inclusive index range of the journey's points.
type Segment struct {
	Type       SegmentType
	StartIndex int
	EndIndex   int
	// Mode is the transportation mode (car, train, plane...) of a hop.
	Mode string
	// Source names the track file or hop the points came from.
	Source string
	// UserDuration is an explicit per-segment override in seconds.
	UserDuration *float64
	// DefaultDuration is the externally supplied duration in seconds.
	DefaultDuration float64
}

// Duration resolves the playback duration: user override first, then the
// externally supplied default. Invalid values resolve to 0.
func (s Segment) Duration() float64 {
	if s.UserDuration != nil && validDuration(*s.UserDuration) {
		return *s.UserDuration
	}
	if validDuration(s.DefaultDuration) {
		return s.DefaultDuration
	}
	return 0
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

// Validate checks that segments are ordered, contiguous and cover exactly
// the indices [0, totalPoints-1].
func Validate(segments []Segment, totalPoints int) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}
	next := 0
	for i, s := range segments {
		if s.StartIndex > s.EndIndex {
			return fmt.Errorf("segment %d: start %d after end %d: %w", i, s.StartIndex, s.EndIndex, ErrNonContiguous)
		}
		if s.StartIndex != next {
			return fmt.Errorf("segment %d: starts at %d, want %d: %w", i, s.StartIndex, next, ErrNonContiguous)
		}
		next = s.EndIndex + 1
	}
	if next != totalPoints {
		return fmt.Errorf("segments end at %d, want %d: %w", next-1, totalPoints-1, ErrNonContiguous)
	}
	return nil
}

// Journey is a flattened point array with its segment composition.
type Journey struct {
	Points   []track.Point
	Segments []Segment
}

// Single wraps one track as a one-segment journey.
func Single(t *track.Track, duration float64) *Journey {
	return &Journey{
		Points: t.Points,
		Segments: []Segment{{
			Type:            SegmentTrack,
			StartIndex:      0,
			EndIndex:        len(t.Points) - 1,
			Source:          t.Name,
			DefaultDuration: duration,
		}},
	}
}

// SetUserDuration overrides the duration of segment i. A nil value clears
// the override. The caller must rebuild the timeline afterwards.
func (j *Journey) SetUserDuration(i int, seconds *float64) error {
	if i < 0 || i >= len(j.Segments) {
		return fmt.Errorf("segment %d out of range [0,%d)", i, len(j.Segments))
	}
	j.Segments[i].UserDuration = seconds
	return nil
}

// ResolveDefaults fills DefaultDuration for segments that have none: hops
// from modeDefaults by mode, tracks from trackDefault. Anything still
// unresolved plays for one second.
func ResolveDefaults(segments []Segment, trackDefault float64, modeDefaults map[string]float64) {
	for i := range segments {
		s := &segments[i]
		if validDuration(s.DefaultDuration) {
			continue
		}
		switch s.Type {
		case SegmentTransportation:
			s.DefaultDuration = modeDefaults[s.Mode]
		default:
			s.DefaultDuration = trackDefault
		}
		if !validDuration(s.DefaultDuration) {
			s.DefaultDuration = 1
		}
	}
}
