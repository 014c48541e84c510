// Package playback advances a journey's playhead frame by frame.
package playback

import (
	"errors"
	"math"
	"time"

	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/timeutil"
)

// DefaultDriftTolerance is the largest tolerated gap, in seconds, between the
// clock's elapsed time and the time derived from the current progress.
const DefaultDriftTolerance = 1.0

// completionEpsilon absorbs float accumulation over many small frame deltas.
const completionEpsilon = 1e-6

var ErrInvalidSpeed = errors.New("speed multiplier must be a positive finite number")

// State is the animation clock state.
type State int

const (
	Stopped State = iota
	Playing
	Completed
)

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Completed:
		return "completed"
	default:
		return "stopped"
	}
}

// Options configures a Clock. Zero values fall back to defaults.
type Options struct {
	Speed          float64
	DriftTolerance float64
	// OnComplete runs once each time playback reaches the end.
	OnComplete func()
	// OnDrift runs when a frame snaps elapsed time back to the
	// position-derived time.
	OnDrift func(from, to float64)
}

// PlaybackState is a copy of the playhead for readers outside the frame loop.
type PlaybackState struct {
	Progress     float64
	Elapsed      float64
	IsAnimating  bool
	Speed        float64
	SegmentIndex int
	State        State
}

// Clock owns the playhead. Elapsed time is authoritative; progress is
// derived from it through the segment's coordinate range so the marker
// always lands on a sampleable fractional index.
type Clock struct {
	clock timeutil.Clock
	tl    *journey.Timeline
	opts  Options

	state    State
	progress float64
	elapsed  float64
	speed    float64

	// last is the wall-clock baseline for the next frame delta.
	last time.Time
}

// New creates a stopped clock at progress 0.
func New(clk timeutil.Clock, tl *journey.Timeline, opts Options) *Clock {
	if clk == nil {
		clk = timeutil.RealClock{}
	}
	if !validSpeed(opts.Speed) {
		opts.Speed = 1
	}
	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = DefaultDriftTolerance
	}
	return &Clock{
		clock: clk,
		tl:    tl,
		opts:  opts,
		speed: opts.Speed,
	}
}

// SetTimeline swaps in a rebuilt timeline, keeping the current progress.
func (c *Clock) SetTimeline(tl *journey.Timeline) {
	c.tl = tl
	c.elapsed = tl.ProgressToTime(c.progress)
	c.resetBaseline()
}

// Play starts or resumes playback. Playing from Completed restarts at 0.
func (c *Clock) Play() {
	switch c.state {
	case Playing:
		return
	case Completed:
		c.progress, c.elapsed = 0, 0
	}
	c.state = Playing
	c.resetBaseline()
}

// Pause stops advancing without moving the playhead.
func (c *Clock) Pause() {
	if c.state == Playing {
		c.state = Stopped
	}
}

// SeekProgress moves the playhead to coordinate progress p.
func (c *Clock) SeekProgress(p float64) {
	c.progress = clamp01(p)
	c.elapsed = c.tl.ProgressToTime(c.progress)
	c.afterSeek()
}

// SeekTime moves the playhead to elapsed journey time t seconds.
func (c *Clock) SeekTime(t float64) {
	c.elapsed = c.clampElapsed(t)
	c.progress = c.progressAt(c.elapsed)
	c.afterSeek()
}

func (c *Clock) afterSeek() {
	if c.state == Completed {
		c.state = Stopped
	}
	c.resetBaseline()
}

// SetSpeed changes the speed multiplier.
func (c *Clock) SetSpeed(x float64) error {
	if !validSpeed(x) {
		return ErrInvalidSpeed
	}
	c.speed = x
	return nil
}

// Tick advances one frame. It is a no-op unless the clock is playing.
func (c *Clock) Tick() State {
	if c.state != Playing {
		return c.state
	}

	c.correctDrift()

	now := c.clock.Now()
	if c.last.IsZero() {
		c.last = now
		return c.state
	}
	delta := now.Sub(c.last).Seconds()
	c.last = now
	if delta < 0 {
		delta = 0
	}

	c.elapsed += delta * c.speed
	total := c.tl.TotalDuration
	if c.elapsed >= total-completionEpsilon {
		c.elapsed = total
		c.progress = 1
		c.state = Completed
		if c.opts.OnComplete != nil {
			c.opts.OnComplete()
		}
		return c.state
	}
	c.progress = c.progressAt(c.elapsed)
	return c.state
}

func (c *Clock) correctDrift() {
	expected := c.tl.ProgressToTime(c.progress)
	if math.Abs(c.elapsed-expected) <= c.opts.DriftTolerance {
		return
	}
	monitoring.Logf("playback: drift %.3fs at progress %.6f, snapping elapsed %.3fs -> %.3fs",
		c.elapsed-expected, c.progress, c.elapsed, expected)
	from := c.elapsed
	c.elapsed = expected
	if c.opts.OnDrift != nil {
		c.opts.OnDrift(from, expected)
	}
}

// progressAt maps elapsed time to a global coordinate index through the
// segment playing at t, then normalizes it.
func (c *Clock) progressAt(t float64) float64 {
	n := c.tl.TotalCoordinates
	i, local := c.tl.SegmentAt(t)
	if i < 0 || n <= 1 {
		return c.tl.TimeToProgress(t)
	}
	s := c.tl.Segments[i]
	index := float64(s.StartCoordIndex) + local*s.CoordinateLength
	return clamp01(index / float64(n-1))
}

func (c *Clock) resetBaseline() {
	c.last = c.clock.Now()
}

func (c *Clock) clampElapsed(t float64) float64 {
	switch {
	case math.IsNaN(t), t < 0:
		return 0
	case t > c.tl.TotalDuration:
		return c.tl.TotalDuration
	}
	return t
}

func (c *Clock) Progress() float64 { return c.progress }
func (c *Clock) Elapsed() float64  { return c.elapsed }
func (c *Clock) Speed() float64    { return c.speed }
func (c *Clock) State() State      { return c.state }
func (c *Clock) IsAnimating() bool { return c.state == Playing }

// Timeline returns the timeline the clock currently maps against.
func (c *Clock) Timeline() *journey.Timeline { return c.tl }

// SegmentIndex returns the segment playing at the current elapsed time.
func (c *Clock) SegmentIndex() int {
	i, _ := c.tl.SegmentAt(c.elapsed)
	return i
}

// SyncDelta is the difference between time-derived and position-derived
// progress. It stays near zero while the two mappings agree.
func (c *Clock) SyncDelta() float64 {
	return c.tl.TimeToProgress(c.elapsed) - c.progress
}

// Snapshot copies the playhead.
func (c *Clock) Snapshot() PlaybackState {
	return PlaybackState{
		Progress:     c.progress,
		Elapsed:      c.elapsed,
		IsAnimating:  c.IsAnimating(),
		Speed:        c.speed,
		SegmentIndex: c.SegmentIndex(),
		State:        c.state,
	}
}

func validSpeed(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
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
