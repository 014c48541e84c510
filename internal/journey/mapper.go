package journey

import (
	"math"

	"gps_journey_player/internal/monitoring"
)

// ProgressToTime converts coordinate progress into journey elapsed seconds
// by interpolating inside the segment whose progress range contains p. On
// a boundary the later segment wins. When no segment matches, the result
// falls back to p*TotalDuration. The result is never NaN.
func (tl *Timeline) ProgressToTime(p float64) float64 {
	if tl == nil {
		return 0
	}
	p = clamp01(p)

	i := tl.segmentForProgress(p)
	if i < 0 {
		monitoring.Logf("journey: no segment contains progress %.6f, estimating proportionally", p)
		return finiteOrZero(p * tl.TotalDuration)
	}
	s := tl.Segments[i]
	span := s.ProgressEndRatio - s.ProgressStartRatio
	if span <= 0 {
		return s.StartTime
	}
	local := (p - s.ProgressStartRatio) / span
	return s.StartTime + local*s.Duration
}

// TimeToProgress is the inverse of ProgressToTime: it finds the segment
// whose [StartTime, EndTime] contains t and inverts the interpolation. The
// fallback is t/TotalDuration.
func (tl *Timeline) TimeToProgress(t float64) float64 {
	if tl == nil {
		return 0
	}
	t = tl.clampTime(t)

	i := tl.segmentForTime(t)
	if i < 0 {
		monitoring.Logf("journey: no segment contains time %.3fs, estimating proportionally", t)
		if tl.TotalDuration <= 0 {
			return 0
		}
		return clamp01(t / tl.TotalDuration)
	}
	s := tl.Segments[i]
	if s.Duration <= 0 {
		return s.ProgressEndRatio
	}
	local := (t - s.StartTime) / s.Duration
	return s.ProgressStartRatio + local*(s.ProgressEndRatio-s.ProgressStartRatio)
}

// SegmentAt returns the index of the segment playing at elapsed time t and
// the fraction of that segment's duration already played. It returns -1
// when no valid segment contains t.
func (tl *Timeline) SegmentAt(t float64) (index int, local float64) {
	if tl == nil {
		return -1, 0
	}
	t = tl.clampTime(t)
	i := tl.segmentForTime(t)
	if i < 0 {
		return -1, 0
	}
	s := tl.Segments[i]
	if s.Duration <= 0 {
		return i, 1
	}
	return i, clamp01((t - s.StartTime) / s.Duration)
}

// SegmentIndexAtProgress returns the segment whose progress range contains
// p, or -1.
func (tl *Timeline) SegmentIndexAtProgress(p float64) int {
	if tl == nil {
		return -1
	}
	return tl.segmentForProgress(clamp01(p))
}

func (tl *Timeline) segmentForProgress(p float64) int {
	match := -1
	for i, s := range tl.Segments {
		if !s.valid() {
			tl.warnInvalid(i)
			continue
		}
		if s.ProgressStartRatio <= p && p <= s.ProgressEndRatio {
			match = i
		}
	}
	return match
}

func (tl *Timeline) segmentForTime(t float64) int {
	match := -1
	for i, s := range tl.Segments {
		if !s.valid() {
			tl.warnInvalid(i)
			continue
		}
		if s.StartTime <= t && t <= s.EndTime {
			match = i
		}
	}
	return match
}

func (tl *Timeline) clampTime(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > tl.TotalDuration:
		return tl.TotalDuration
	}
	return t
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
