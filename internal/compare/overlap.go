// Package compare plays secondary tracks alongside the primary journey,
// aligned on recorded absolute time when both sides carry it.
package compare

import (
	"time"

	"gps_journey_player/internal/track"
)

// TimeOverlap describes how a comparison track's recorded time window sits
// against the primary's.
type TimeOverlap struct {
	HasOverlap   bool
	OverlapStart time.Time
	OverlapEnd   time.Time
	MainStart    time.Time
	MainEnd      time.Time
	CompStart    time.Time
	CompEnd      time.Time
	// SpatialOnly is set when neither track carries time.
	SpatialOnly bool
}

// Duration returns the length of the overlap window, or 0.
func (o TimeOverlap) Duration() time.Duration {
	if !o.HasOverlap {
		return 0
	}
	return o.OverlapEnd.Sub(o.OverlapStart)
}

// ComputeOverlap intersects the recorded time windows of main and comp.
func ComputeOverlap(main, comp []track.Point) TimeOverlap {
	var o TimeOverlap
	ms, me, mainOK := track.TimeWindow(main)
	cs, ce, compOK := track.TimeWindow(comp)
	switch {
	case !mainOK && !compOK:
		o.SpatialOnly = true
		return o
	case !mainOK || !compOK:
		return o
	}

	o.MainStart, o.MainEnd = ms, me
	o.CompStart, o.CompEnd = cs, ce

	start, end := ms, me
	if cs.After(start) {
		start = cs
	}
	if ce.Before(end) {
		end = ce
	}
	if start.Before(end) {
		o.HasOverlap = true
		o.OverlapStart, o.OverlapEnd = start, end
	}
	return o
}

// progressAt maps an absolute instant onto the comparison track's own
// window, clamped to [0,1].
func (o TimeOverlap) progressAt(t time.Time) float64 {
	span := o.CompEnd.Sub(o.CompStart)
	if span <= 0 {
		return 0
	}
	p := float64(t.Sub(o.CompStart)) / float64(span)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
