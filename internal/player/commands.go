package player

import (
	"fmt"
	"math"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/render"
	"gps_journey_player/internal/track"
)

// Play starts or resumes playback. From the very start in follow mode the
// camera first runs its cinematic and the clock starts once it has landed.
func (p *Player) Play() error { return p.enqueue((*Player).play) }

// Pause stops the clock. The camera keeps its pose.
func (p *Player) Pause() error { return p.enqueue((*Player).pause) }

// Reset pauses, rewinds to the start and snaps the camera to the overview.
func (p *Player) Reset() error { return p.enqueue((*Player).reset) }

// SeekProgress jumps to coordinate progress in [0,1].
func (p *Player) SeekProgress(progress float64) error {
	if math.IsNaN(progress) || progress < 0 || progress > 1 {
		return fmt.Errorf("%w: progress %v outside [0,1]", ErrBadCommand, progress)
	}
	return p.enqueue(func(p *Player) error { return p.seek(progress, false) })
}

// SeekTime jumps to journey elapsed seconds.
func (p *Player) SeekTime(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return fmt.Errorf("%w: time %v", ErrBadCommand, seconds)
	}
	return p.enqueue(func(p *Player) error { return p.seek(seconds, true) })
}

// SetSpeed changes the playback speed multiplier.
func (p *Player) SetSpeed(x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return fmt.Errorf("%w: %w", ErrBadCommand, playback.ErrInvalidSpeed)
	}
	return p.enqueue(func(p *Player) error {
		if err := p.requireJourney(); err != nil {
			return err
		}
		return p.pb.SetSpeed(x)
	})
}

// SetCameraPreset switches the follow zoom and pitch preset.
func (p *Player) SetCameraPreset(name string) error {
	if !p.hasPreset(name) {
		return fmt.Errorf("%w: unknown camera preset %q", ErrBadCommand, name)
	}
	return p.enqueue(func(p *Player) error { return p.cam.SetPreset(name) })
}

// SetCameraMode switches between follow, overview and free camera.
func (p *Player) SetCameraMode(name string) error {
	m, err := camera.ParseMode(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadCommand, err)
	}
	return p.enqueue(func(p *Player) error { return p.setMode(m) })
}

// Attach adds a comparison track. The colour is a #rrggbb string; an empty
// colour picks one from the palette.
func (p *Player) Attach(name, hexColor string, points []track.Point) error {
	if len(points) < 2 {
		return fmt.Errorf("%w: comparison %q: %w", ErrBadCommand, name, track.ErrTooFewPoints)
	}
	if hexColor != "" {
		if _, err := render.ParseHexColor(hexColor); err != nil {
			return fmt.Errorf("%w: %w", ErrBadCommand, err)
		}
	}
	return p.enqueue(func(p *Player) error { return p.attach(name, hexColor, points) })
}

// Detach removes the comparison with the given index.
func (p *Player) Detach(index int) error {
	return p.enqueue(func(p *Player) error { return p.sync.Detach(index) })
}

// Designate picks which comparison drives the dual-marker camera centre.
func (p *Player) Designate(index int) error {
	return p.enqueue(func(p *Player) error { return p.sync.Designate(index) })
}

// SetSegmentDuration overrides (or with nil clears) the playback duration of
// segment i and rebuilds the timeline at the current progress.
func (p *Player) SetSegmentDuration(i int, seconds *float64) error {
	if seconds != nil && (math.IsNaN(*seconds) || math.IsInf(*seconds, 0) || *seconds <= 0) {
		return fmt.Errorf("%w: duration %v", ErrBadCommand, *seconds)
	}
	return p.enqueue(func(p *Player) error {
		if err := p.requireJourney(); err != nil {
			return err
		}
		if err := p.journey.SetUserDuration(i, seconds); err != nil {
			return err
		}
		p.pb.SetTimeline(journey.BuildTimeline(p.journey.Segments, len(p.journey.Points)))
		return nil
	})
}

func (p *Player) play() error {
	if err := p.requireJourney(); err != nil {
		return err
	}
	if p.pb.State() == playback.Completed {
		p.pb.SeekProgress(0)
		p.cam.Reset()
		p.final = nil
	}
	p.surface.ShowFullPath(false)

	if p.pb.Progress() <= p.cfg.StartThreshold && p.cam.Mode() == camera.ModeFollow {
		if p.cam.State() != camera.Overview {
			p.cam.Reset()
		}
		if p.cam.StartCinematic() {
			p.pendingPlay = true
			return nil
		}
	}
	if p.cam.State() != camera.Following {
		p.cam.BeginFollowing(p.pb.Progress())
	}
	p.pb.Play()
	return nil
}

func (p *Player) pause() error {
	if err := p.requireJourney(); err != nil {
		return err
	}
	p.pendingPlay = false
	p.pb.Pause()
	return nil
}

func (p *Player) reset() error {
	if err := p.requireJourney(); err != nil {
		return err
	}
	p.pendingPlay = false
	p.pb.Pause()
	p.pb.SeekProgress(0)
	p.cam.Reset()
	p.surface.ShowFullPath(true)
	p.final = nil
	return nil
}

func (p *Player) seek(v float64, isTime bool) error {
	if err := p.requireJourney(); err != nil {
		return err
	}
	progress := v
	if isTime {
		progress = p.pb.Timeline().TimeToProgress(v)
	}
	if progress <= p.cfg.StartThreshold {
		playing := p.pb.IsAnimating() || p.pendingPlay
		if err := p.reset(); err != nil {
			return err
		}
		if playing {
			return p.play()
		}
		return nil
	}

	if isTime {
		p.pb.SeekTime(v)
	} else {
		p.pb.SeekProgress(v)
	}
	p.final = nil
	p.cam.CancelEndZoom()
	switch p.cam.State() {
	case camera.EndZoomOut, camera.CinematicTransition:
		wasPending := p.pendingPlay
		p.pendingPlay = false
		p.cam.BeginFollowing(p.pb.Progress())
		p.surface.ShowFullPath(false)
		if wasPending {
			p.pb.Play()
		}
	case camera.Overview:
		if p.pb.IsAnimating() {
			p.cam.BeginFollowing(p.pb.Progress())
		}
	}
	return nil
}

func (p *Player) setMode(m camera.Mode) error {
	p.cam.SetMode(m)
	if m == camera.ModeFollow && p.pb != nil && p.pb.IsAnimating() && p.cam.State() != camera.Following {
		p.cam.BeginFollowing(p.pb.Progress())
	}
	return nil
}

func (p *Player) attach(name, hexColor string, points []track.Point) error {
	e := p.sync.Attach(name, hexColor, points)
	if p.cfg.AutoSyntheticTime && p.sync.NeedsSyntheticTime(e.Index) {
		if err := p.sync.GenerateSyntheticTime(e.Index); err != nil {
			return err
		}
	}
	monitoring.Logf("player: attached comparison %d %q (%d points, %s)", e.Index, name, len(points), e.Mode())
	return nil
}
