package player

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/track"
)

// ComparisonState is the per-frame view of one attached comparison.
type ComparisonState struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Mode     string  `json:"mode"`
	Progress float64 `json:"progress"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// FinalStats summarises a completed journey.
type FinalStats struct {
	DistanceKm      float64 `json:"distanceKm"`
	DurationSeconds float64 `json:"durationSeconds"`
	MaxSpeedKmh     float64 `json:"maxSpeedKmh"`
	ElevationGainM  float64 `json:"elevationGainM"`
}

// ComputeFinalStats summarises points played back over duration seconds.
func ComputeFinalStats(points []track.Point, duration float64) FinalStats {
	s := FinalStats{DurationSeconds: duration}
	if len(points) == 0 {
		return s
	}
	s.DistanceKm = points[len(points)-1].Distance

	speeds := make([]float64, len(points))
	for i, p := range points {
		speeds[i] = p.Speed
		if i > 0 && p.Ele > points[i-1].Ele {
			s.ElevationGainM += p.Ele - points[i-1].Ele
		}
	}
	s.MaxSpeedKmh = floats.Max(speeds)
	return s
}

// State is a consistent snapshot taken at the end of a frame.
type State struct {
	JourneyID    string         `json:"journeyId"`
	Progress     float64        `json:"progress"`
	Elapsed      float64        `json:"elapsed"`
	Total        float64        `json:"total"`
	Speed        float64        `json:"speed"`
	Playback     playback.State `json:"playback"`
	SegmentIndex int            `json:"segmentIndex"`
	SegmentType  string         `json:"segmentType,omitempty"`
	SegmentMode  string         `json:"segmentMode,omitempty"`
	// SyncDelta is the progress implied by elapsed time minus the actual
	// progress.
	SyncDelta float64 `json:"syncDelta"`

	Camera     camera.State `json:"camera"`
	CameraMode camera.Mode  `json:"cameraMode"`
	Preset     string       `json:"preset"`
	Presets    []string     `json:"presets"`

	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Ele     float64 `json:"ele"`
	Bearing float64 `json:"bearing"`

	Comparisons []ComparisonState `json:"comparisons"`
	Final       *FinalStats       `json:"final,omitempty"`
}

// Snapshot returns the state as of the last frame. Safe from any goroutine.
func (p *Player) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.snap
	s.Presets = append([]string(nil), p.snap.Presets...)
	s.Comparisons = append([]ComparisonState(nil), p.snap.Comparisons...)
	return s
}

func (p *Player) publish(compute time.Duration) {
	s := p.buildState()
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
	for _, o := range p.observers {
		o.ObserveFrame(s, compute)
	}
}

func (p *Player) buildState() State {
	s := State{
		JourneyID:  p.journeyID,
		Camera:     p.cam.State(),
		CameraMode: p.cam.Mode(),
		Preset:     p.cam.Preset().Name,
		Presets:    p.Presets(),
		Bearing:    p.cam.Bearing(),
	}
	if p.pb == nil {
		return s
	}
	s.Progress = p.pb.Progress()
	s.Elapsed = p.pb.Elapsed()
	s.Total = p.pb.Timeline().TotalDuration
	s.Speed = p.pb.Speed()
	s.Playback = p.pb.State()
	s.SegmentIndex = p.pb.SegmentIndex()
	s.SyncDelta = p.pb.SyncDelta()
	if i := s.SegmentIndex; i >= 0 && i < len(p.journey.Segments) {
		s.SegmentType = string(p.journey.Segments[i].Type)
		s.SegmentMode = p.journey.Segments[i].Mode
	}

	pos := track.SampleAt(p.journey.Points, s.Progress)
	s.Lat, s.Lon, s.Ele = pos.Lat, pos.Lon, pos.Ele

	for _, e := range p.sync.Entries() {
		s.Comparisons = append(s.Comparisons, ComparisonState{
			Index:    e.Index,
			Name:     e.Name,
			Mode:     e.Mode(),
			Progress: e.Progress,
			Lat:      e.Position.Lat,
			Lon:      e.Position.Lon,
		})
	}
	if p.final != nil {
		f := *p.final
		s.Final = &f
	}
	return s
}
