package journey

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"gps_journey_player/internal/monitoring"
)

// SegmentTiming is the fully populated timing row of one segment. Times are
// seconds from journey start; ratios are coordinate progress in [0,1].
type SegmentTiming struct {
	Index    int
	Type     SegmentType
	Mode     string
	Duration float64

	StartTime float64
	EndTime   float64

	// CoordinateLength is the number of index steps the segment spans in
	// progress space: (ProgressEndRatio-ProgressStartRatio)*(N-1).
	CoordinateLength   float64
	ProgressStartRatio float64
	ProgressEndRatio   float64
	StartCoordIndex    int
	EndCoordIndex      int
}

func (s SegmentTiming) valid() bool {
	for _, v := range []float64{s.Duration, s.StartTime, s.EndTime, s.CoordinateLength, s.ProgressStartRatio, s.ProgressEndRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.Duration >= 0 && s.EndTime >= s.StartTime && s.ProgressEndRatio >= s.ProgressStartRatio
}

// Timeline is the normalized per-segment timing table of a journey. It is a
// pure function of the segments and the point count and is rebuilt whenever
// either changes.
type Timeline struct {
	Segments          []SegmentTiming
	TotalDuration     float64
	TrackDuration     float64
	TransportDuration float64
	TotalCoordinates  int

	warned sync.Map // segment index -> struct{}
}

// BuildTimeline accumulates coordinate length and time over segments in one
// pass. Fewer than two coordinates (or no segments) produce a trivial
// single-row timeline spanning the whole of [0,1].
func BuildTimeline(segments []Segment, totalCoordinates int) *Timeline {
	if totalCoordinates <= 1 || len(segments) == 0 {
		return trivialTimeline(segments, totalCoordinates)
	}

	denom := float64(totalCoordinates - 1)
	tl := &Timeline{
		Segments:         make([]SegmentTiming, 0, len(segments)),
		TotalCoordinates: totalCoordinates,
	}

	var (
		elapsed, coordSoFar float64
		trackDur, transpDur []float64
	)
	allDurations := make([]float64, 0, len(segments))
	for i, s := range segments {
		d := s.Duration()
		if d == 0 && (s.UserDuration != nil || s.DefaultDuration != 0) {
			monitoring.Logf("journey: segment %d (%s) has invalid duration, playing it instantly", i, s.Source)
		}
		length := float64(s.EndIndex - s.StartIndex + 1)
		if length < 0 {
			length = 0
		}

		startRatio := clamp01(coordSoFar / denom)
		coordSoFar += length
		endRatio := clamp01(coordSoFar / denom)

		tl.Segments = append(tl.Segments, SegmentTiming{
			Index:              i,
			Type:               s.Type,
			Mode:               s.Mode,
			Duration:           d,
			StartTime:          elapsed,
			EndTime:            elapsed + d,
			CoordinateLength:   (endRatio - startRatio) * denom,
			ProgressStartRatio: startRatio,
			ProgressEndRatio:   endRatio,
			StartCoordIndex:    s.StartIndex,
			EndCoordIndex:      s.EndIndex,
		})
		elapsed += d

		allDurations = append(allDurations, d)
		if s.Type == SegmentTransportation {
			transpDur = append(transpDur, d)
		} else {
			trackDur = append(trackDur, d)
		}
	}

	tl.TotalDuration = floats.Sum(allDurations)
	tl.TrackDuration = floats.Sum(trackDur)
	tl.TransportDuration = floats.Sum(transpDur)
	return tl
}

func trivialTimeline(segments []Segment, totalCoordinates int) *Timeline {
	var d, trackD, transpD float64
	for _, s := range segments {
		d += s.Duration()
		if s.Type == SegmentTransportation {
			transpD += s.Duration()
		} else {
			trackD += s.Duration()
		}
	}
	return &Timeline{
		Segments: []SegmentTiming{{
			Type:             SegmentTrack,
			Duration:         d,
			EndTime:          d,
			CoordinateLength: float64(max(totalCoordinates-1, 0)),
			ProgressEndRatio: 1,
			EndCoordIndex:    max(totalCoordinates-1, 0),
		}},
		TotalDuration:     d,
		TrackDuration:     trackD,
		TransportDuration: transpD,
		TotalCoordinates:  totalCoordinates,
	}
}

func (tl *Timeline) warnInvalid(i int) {
	if _, loaded := tl.warned.LoadOrStore(i, struct{}{}); !loaded {
		monitoring.Logf("journey: skipping segment %d with invalid timing %+v", i, tl.Segments[i])
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
