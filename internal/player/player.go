// Package player runs the per-frame journey playback: it owns the clock,
// the camera, the comparison synchronizer and the render surface, and
// applies queued control commands between frames.
package player

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/compare"
	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/render"
	"gps_journey_player/internal/timeutil"
	"gps_journey_player/internal/track"
)

var (
	ErrNoJourney  = errors.New("no journey loaded")
	ErrQueueFull  = errors.New("command queue full")
	ErrBadCommand = errors.New("invalid command")
)

// Surface is the render surface as the player uses it.
type Surface interface {
	camera.Surface
	SetTrack(points []track.Point)
	ShowFullPath(show bool)
	SetFrame(v render.FrameView)
}

// Observer receives a snapshot after every frame. Calls happen on the frame
// loop and must return quickly.
type Observer interface {
	ObserveFrame(s State, compute time.Duration)
	ObserveDrift(from, to float64)
}

type Config struct {
	Speed          float64
	DriftTolerance float64
	// LookAhead is the journey time ahead of the playhead used for tile
	// preloading.
	LookAhead time.Duration
	// StartThreshold is the progress at or below which playback counts as
	// starting from the beginning.
	StartThreshold float64
	// AutoSyntheticTime accepts the synthetic time offer when a comparison
	// and the primary disagree on having timestamps.
	AutoSyntheticTime bool
	QueueSize         int

	Camera camera.Config
	Sync   compare.Config
}

func DefaultConfig() Config {
	return Config{
		Speed:             1,
		DriftTolerance:    playback.DefaultDriftTolerance,
		LookAhead:         2 * time.Second,
		StartThreshold:    0.001,
		AutoSyntheticTime: true,
		QueueSize:         64,
		Camera:            camera.DefaultConfig(),
		Sync:              compare.Config{ProximityKm: compare.DefaultProximityKm},
	}
}

// Player is driven by calling Frame once per frame from a single goroutine.
// Control methods may be called from any goroutine; they validate their
// input and queue the change for the next frame.
type Player struct {
	cfg     Config
	clock   timeutil.Clock
	surface Surface
	cam     *camera.Camera
	sync    *compare.Synchronizer

	journey   *journey.Journey
	journeyID string
	pb        *playback.Clock

	// pendingPlay holds the clock back until the start cinematic is done.
	pendingPlay bool
	final       *FinalStats

	commands  chan func(*Player) error
	observers []Observer

	mu   sync.RWMutex
	snap State
}

// New creates a player. preloader may be nil.
func New(clk timeutil.Clock, surface Surface, preloader camera.Preloader, cfg Config) (*Player, error) {
	if clk == nil {
		clk = timeutil.RealClock{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.LookAhead < 0 {
		cfg.LookAhead = 0
	}
	cam, err := camera.New(cfg.Camera, clk, surface, preloader)
	if err != nil {
		return nil, err
	}
	return &Player{
		cfg:      cfg,
		clock:    clk,
		surface:  surface,
		cam:      cam,
		sync:     compare.NewSynchronizer(cfg.Sync),
		commands: make(chan func(*Player) error, cfg.QueueSize),
	}, nil
}

// AddObserver registers o. Call before the frame loop starts.
func (p *Player) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// LoadJourney replaces the journey. It must be called from the frame loop
// goroutine or before the loop starts.
func (p *Player) LoadJourney(j *journey.Journey) error {
	if err := journey.Validate(j.Segments, len(j.Points)); err != nil {
		return err
	}
	tl := journey.BuildTimeline(j.Segments, len(j.Points))

	p.journey = j
	p.journeyID = uuid.NewString()
	p.pendingPlay = false
	p.final = nil
	p.pb = playback.New(p.clock, tl, playback.Options{
		Speed:          p.cfg.Speed,
		DriftTolerance: p.cfg.DriftTolerance,
		OnComplete:     p.onComplete,
		OnDrift:        p.onDrift,
	})

	p.surface.SetTrack(j.Points)
	p.surface.ShowFullPath(true)
	p.cam.Load(j.Points)
	p.sync.SetPrimary(j.Points)

	monitoring.Logf("player: loaded journey %s: %d points, %d segments, %.1fs", p.journeyID, len(j.Points), len(j.Segments), tl.TotalDuration)
	p.publish(0)
	return nil
}

func (p *Player) onComplete() {
	p.surface.ShowFullPath(true)
	p.cam.ScheduleEndZoom()
	stats := ComputeFinalStats(p.journey.Points, p.pb.Timeline().TotalDuration)
	p.final = &stats
	monitoring.Logf("player: journey %s complete: %.2f km in %.1fs", p.journeyID, stats.DistanceKm, stats.DurationSeconds)
}

func (p *Player) onDrift(from, to float64) {
	for _, o := range p.observers {
		o.ObserveDrift(from, to)
	}
}

// Frame applies queued commands, advances the clock, updates comparisons,
// moves the camera and hands the frame to the surface.
func (p *Player) Frame() {
	start := time.Now()
	p.drain()
	if p.pb == nil {
		return
	}

	if p.pendingPlay && p.cam.State() != camera.CinematicTransition {
		p.pendingPlay = false
		p.pb.Play()
	}
	p.pb.Tick()

	progress := p.pb.Progress()
	pos := p.surface.PointAt(progress)
	p.sync.Update(pos, progress)
	center := p.sync.Center(pos)

	target := camera.Target{
		Progress:      progress,
		AheadProgress: p.pb.Timeline().TimeToProgress(p.pb.Elapsed() + p.cfg.LookAhead.Seconds()*p.pb.Speed()),
	}
	if center.Dual {
		target.Center = &track.Sample{Lat: center.Lat, Lon: center.Lon, Ele: center.Ele, Speed: center.Speed, Distance: center.Distance}
	}
	p.cam.Frame(target)

	p.surface.SetFrame(p.frameView(pos, center))
	p.publish(time.Since(start))
}

func (p *Player) frameView(pos track.Sample, center compare.Center) render.FrameView {
	tl := p.pb.Timeline()
	v := render.FrameView{
		Progress: p.pb.Progress(),
		Position: pos,
		Speed:    center.Speed,
		Ele:      center.Ele,
		Distance: center.Distance,
		Elapsed:  p.pb.Elapsed(),
		Total:    tl.TotalDuration,
	}
	if p.final != nil {
		v.Distance = p.final.DistanceKm
	}
	if i := p.pb.SegmentIndex(); i >= 0 && i < len(p.journey.Segments) {
		s := p.journey.Segments[i]
		v.SegmentLabel = s.Source
		if s.Type == journey.SegmentTransportation {
			v.SegmentLabel = s.Mode
		}
	}
	for _, e := range p.sync.Entries() {
		v.Comparisons = append(v.Comparisons, render.Marker{
			Name:     e.Name,
			Color:    markerColor(e),
			Points:   e.Points,
			Progress: e.Progress,
			Position: e.Position,
		})
	}
	return v
}

var palette = []color.Color{
	color.RGBA{R: 30, G: 136, B: 229, A: 255},
	color.RGBA{R: 67, G: 160, B: 71, A: 255},
	color.RGBA{R: 142, G: 36, B: 170, A: 255},
	color.RGBA{R: 251, G: 140, B: 0, A: 255},
}

func markerColor(e *compare.Entry) color.Color {
	if c, err := render.ParseHexColor(e.Color); err == nil {
		return c
	}
	return palette[e.Index%len(palette)]
}

// Run calls Frame every interval until ctx is done.
func (p *Player) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Frame()
		}
	}
}

func (p *Player) drain() {
	for {
		select {
		case cmd := <-p.commands:
			if err := cmd(p); err != nil {
				monitoring.Logf("player: command failed: %v", err)
			}
		default:
			return
		}
	}
}

func (p *Player) enqueue(cmd func(*Player) error) error {
	select {
	case p.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Player) requireJourney() error {
	if p.pb == nil {
		return ErrNoJourney
	}
	return nil
}

// Camera exposes the camera for read-only inspection.
func (p *Player) Camera() *camera.Camera { return p.cam }

// Presets lists the camera preset names. Safe from any goroutine.
func (p *Player) Presets() []string {
	var names []string
	for _, pr := range p.cfg.Camera.Presets {
		names = append(names, pr.Name)
	}
	return names
}

func (p *Player) hasPreset(name string) bool {
	for _, pr := range p.cfg.Camera.Presets {
		if pr.Name == name {
			return true
		}
	}
	return false
}
