// Package camera implements the follow-behind journey camera as an explicit
// state machine driven once per frame.
package camera

import (
	"fmt"
	"math"
	"time"

	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/timeutil"
	"gps_journey_player/internal/track"
)

// State is the camera FSM state.
type State int

const (
	Uninitialized State = iota
	Overview
	CinematicTransition
	Following
	EndZoomOut
)

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s State) String() string {
	switch s {
	case Overview:
		return "overview"
	case CinematicTransition:
		return "cinematic"
	case Following:
		return "following"
	case EndZoomOut:
		return "end-zoom-out"
	default:
		return "uninitialized"
	}
}

// Surface is the narrow view of the renderer the camera drives.
type Surface interface {
	// PointAt samples the primary track at progress.
	PointAt(progress float64) track.Sample
	// SetPose moves the view, easing over ease (0 snaps).
	SetPose(p Pose, ease time.Duration)
	Pose() Pose
}

// Preloader warms tiles around a position. Calls must not block.
type Preloader interface {
	Preload(lat, lon float64, zoom int)
}

// Target is the per-frame input while following.
type Target struct {
	Progress float64
	// AheadProgress is where the playhead will be shortly; tiles are
	// preloaded around it.
	AheadProgress float64
	// Center overrides the followed position, e.g. with a dual-marker
	// midpoint. Nil follows PointAt(Progress).
	Center *track.Sample
}

type transition struct {
	from, to   Pose
	start      time.Time
	duration   time.Duration
	then       State
	generation uint64
}

// Camera is not safe for concurrent use; it runs inside the frame loop.
type Camera struct {
	cfg       Config
	clock     timeutil.Clock
	surface   Surface
	preloader Preloader

	state  State
	mode   Mode
	preset Preset

	points   []track.Point
	overview Pose
	endPose  Pose

	// bearing is the smoothed following bearing.
	bearing float64

	// generation invalidates in-flight transitions and scheduled zooms.
	generation uint64
	tr         *transition
	endZoomAt  time.Time
	endZoomGen uint64
}

// New validates cfg and returns an uninitialized camera. preloader may be nil.
func New(cfg Config, clk timeutil.Clock, surface Surface, preloader Preloader) (*Camera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = timeutil.RealClock{}
	}
	p, _ := cfg.preset(cfg.DefaultPreset)
	return &Camera{
		cfg:       cfg,
		clock:     clk,
		surface:   surface,
		preloader: preloader,
		mode:      ModeFollow,
		preset:    p,
	}, nil
}

// Load frames a new track and snaps to its overview. Anything in flight for
// the previous track is cancelled.
func (c *Camera) Load(points []track.Point) {
	c.Invalidate()
	c.points = points
	if len(points) == 0 {
		return
	}

	b := track.BoundsOf(points)
	lat, lon := b.Center()
	fit := fitZoom(b, c.cfg)
	c.overview = Pose{
		Lat:  lat,
		Lon:  lon,
		Zoom: clamp(fit-elevationZoomOffset(points[0].Ele, c.cfg), c.cfg.MinZoom, c.cfg.MaxZoom),
	}
	c.endPose = Pose{Lat: lat, Lon: lon, Zoom: fit, Pitch: c.cfg.EndPitch}

	c.state = Overview
	c.bearing = 0
	c.surface.SetPose(c.overview, 0)
}

// Invalidate cancels transitions and scheduled zooms and forgets the track
// state. Call it when the underlying track changes.
func (c *Camera) Invalidate() {
	if c.tr != nil {
		monitoring.Logf("camera: track changed during %s, transition cancelled", c.state)
	}
	c.cancel()
	c.state = Uninitialized
}

// Reset snaps straight to the overview pose with no easing.
func (c *Camera) Reset() {
	c.cancel()
	if len(c.points) == 0 {
		c.state = Uninitialized
		return
	}
	c.state = Overview
	c.bearing = 0
	c.surface.SetPose(c.overview, 0)
}

func (c *Camera) cancel() {
	c.generation++
	c.tr = nil
	c.endZoomAt = time.Time{}
}

// StartCinematic eases from the current pose to the first following pose.
// It returns false unless the camera is sitting on the overview in follow
// mode.
func (c *Camera) StartCinematic() bool {
	if c.state != Overview || c.mode != ModeFollow {
		return false
	}
	start := c.surface.PointAt(0)
	c.bearing = c.travelBearing(0, 0)
	target := Pose{Lat: start.Lat, Lon: start.Lon, Zoom: c.preset.Zoom, Pitch: c.preset.Pitch, Bearing: c.bearing}
	c.begin(target, c.cfg.CinematicDuration, Following)
	c.state = CinematicTransition
	return true
}

// BeginFollowing enters Following directly at progress, without a
// cinematic.
func (c *Camera) BeginFollowing(progress float64) {
	if len(c.points) == 0 {
		return
	}
	c.cancel()
	c.bearing = c.travelBearing(progress, c.bearing)
	c.state = Following
}

// ScheduleEndZoom starts the end-of-journey zoom-out after EndZoomDelay.
func (c *Camera) ScheduleEndZoom() {
	if len(c.points) == 0 {
		return
	}
	c.endZoomAt = c.clock.Now().Add(c.cfg.EndZoomDelay)
	c.endZoomGen = c.generation
}

// CancelEndZoom drops a scheduled end zoom-out that has not started yet.
func (c *Camera) CancelEndZoom() { c.endZoomAt = time.Time{} }

func (c *Camera) begin(to Pose, d time.Duration, then State) {
	c.tr = &transition{
		from:       c.surface.Pose(),
		to:         to,
		start:      c.clock.Now(),
		duration:   d,
		then:       then,
		generation: c.generation,
	}
}

// Frame advances the camera by one frame.
func (c *Camera) Frame(t Target) {
	now := c.clock.Now()

	if !c.endZoomAt.IsZero() && c.endZoomGen == c.generation && !now.Before(c.endZoomAt) {
		c.endZoomAt = time.Time{}
		c.begin(c.endPose, c.cfg.EndZoomDuration, EndZoomOut)
		c.state = EndZoomOut
	}

	switch c.state {
	case CinematicTransition, EndZoomOut:
		c.stepTransition(now)
	case Following:
		c.follow(t)
	}
}

func (c *Camera) stepTransition(now time.Time) {
	tr := c.tr
	if tr == nil {
		return
	}
	if tr.generation != c.generation {
		c.tr = nil
		return
	}
	f := 1.0
	if tr.duration > 0 {
		f = float64(now.Sub(tr.start)) / float64(tr.duration)
	}
	if c.mode == ModeFollow {
		c.surface.SetPose(lerpPose(tr.from, tr.to, easeInOutCubic(f)), c.cfg.FollowEase)
	}
	if f >= 1 {
		c.state = tr.then
		c.tr = nil
	}
}

func (c *Camera) follow(t Target) {
	pos := c.surface.PointAt(t.Progress)
	if t.Center != nil {
		pos = *t.Center
	}

	target := c.travelBearing(t.Progress, c.bearing)
	c.bearing = track.NormalizeBearing(c.bearing + track.AngleDelta(c.bearing, target)*c.cfg.BearingSmoothing)

	if c.mode == ModeFollow {
		c.surface.SetPose(Pose{
			Lat:     pos.Lat,
			Lon:     pos.Lon,
			Zoom:    c.preset.Zoom,
			Pitch:   c.preset.Pitch,
			Bearing: c.bearing,
		}, c.cfg.FollowEase)
	}

	if c.preloader != nil {
		ahead := c.surface.PointAt(t.AheadProgress)
		c.preloader.Preload(ahead.Lat, ahead.Lon, int(math.Round(c.surface.Pose().Zoom)))
	}
}

// travelBearing is the direction of travel at progress, looking a short way
// ahead (or behind at the very end). Stationary stretches keep fallback.
func (c *Camera) travelBearing(progress, fallback float64) float64 {
	const minStepKm = 0.001
	a := c.surface.PointAt(progress)
	b := c.surface.PointAt(math.Min(progress+c.cfg.LookAhead, 1))
	if track.Haversine(a.Point(), b.Point()) < minStepKm {
		a = c.surface.PointAt(math.Max(progress-c.cfg.LookAhead, 0))
		b = c.surface.PointAt(progress)
		if track.Haversine(a.Point(), b.Point()) < minStepKm {
			return fallback
		}
	}
	return track.Bearing(a.Point(), b.Point())
}

// SetPreset switches the following zoom and pitch.
func (c *Camera) SetPreset(name string) error {
	p, ok := c.cfg.preset(name)
	if !ok {
		return fmt.Errorf("unknown camera preset %q", name)
	}
	c.preset = p
	return nil
}

// SetMode changes who drives the surface. Overview snaps to the overview
// pose.
func (c *Camera) SetMode(m Mode) {
	c.mode = m
	if m == ModeOverview && len(c.points) > 0 {
		c.surface.SetPose(c.overview, 0)
	}
}

// Presets lists the available presets.
func (c *Camera) Presets() []Preset {
	out := make([]Preset, len(c.cfg.Presets))
	copy(out, c.cfg.Presets)
	return out
}

func (c *Camera) State() State       { return c.state }
func (c *Camera) Mode() Mode         { return c.mode }
func (c *Camera) Preset() Preset     { return c.preset }
func (c *Camera) OverviewPose() Pose { return c.overview }
func (c *Camera) Bearing() float64   { return c.bearing }
func (c *Camera) Config() Config     { return c.cfg }

// Settled reports whether no timed transition is running.
func (c *Camera) Settled() bool { return c.tr == nil }
