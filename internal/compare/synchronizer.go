package compare

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/track"
)

const (
	// DefaultProximityKm is the marker distance under which the camera
	// centres between the primary and the designated comparison marker.
	DefaultProximityKm = 0.5
	// fallbackSpeedKmh is used for synthetic time when neither the config
	// nor the timed track yields a usable speed.
	fallbackSpeedKmh = 12.0
)

var ErrUnknownEntry = errors.New("unknown comparison entry")

// Config tunes the synchronizer.
type Config struct {
	ProximityKm float64
	// AssumedSpeedKmh drives synthetic time generation. Zero uses the timed
	// track's average speed.
	AssumedSpeedKmh float64
}

// Entry is an attached comparison track and its per-frame playhead.
type Entry struct {
	Index   int
	Name    string
	Color   string
	Points  []track.Point
	Overlap TimeOverlap

	Progress float64
	Position track.Sample
}

// Mode reports how the entry is being aligned.
func (e *Entry) Mode() string {
	switch {
	case e.Overlap.HasOverlap:
		return "time"
	case e.Overlap.SpatialOnly:
		return "spatial"
	default:
		return "same-pace"
	}
}

// Center is the camera centre for the current frame together with the
// values shown in the HUD.
type Center struct {
	Lat, Lon, Ele, Speed, Distance float64
	// Dual is set when the centre is the midpoint of two markers.
	Dual bool
}

// Synchronizer owns the comparison entries. Like the rest of the frame
// loop it is not safe for concurrent use.
type Synchronizer struct {
	cfg       Config
	primary   []track.Point
	entries   []*Entry
	nextIndex int
	// designated is the entry index used for dual-marker centring, -1 if none.
	designated int
}

func NewSynchronizer(cfg Config) *Synchronizer {
	if cfg.ProximityKm <= 0 {
		cfg.ProximityKm = DefaultProximityKm
	}
	return &Synchronizer{cfg: cfg, designated: -1}
}

// SetPrimary replaces the primary track and recomputes every overlap.
func (s *Synchronizer) SetPrimary(points []track.Point) {
	s.primary = points
	s.refreshOverlaps()
}

// Attach adds a comparison track. The first attached entry becomes the
// designated centring marker.
func (s *Synchronizer) Attach(name, color string, points []track.Point) *Entry {
	e := &Entry{
		Index:   s.nextIndex,
		Name:    name,
		Color:   color,
		Points:  points,
		Overlap: ComputeOverlap(s.primary, points),
	}
	s.nextIndex++
	s.entries = append(s.entries, e)
	if s.designated < 0 {
		s.designated = e.Index
	}
	monitoring.Logf("compare: attached %q (#%d) in %s mode, overlap %s", name, e.Index, e.Mode(), e.Overlap.Duration())
	return e
}

// Detach removes an entry.
func (s *Synchronizer) Detach(index int) error {
	for i, e := range s.entries {
		if e.Index != index {
			continue
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		if s.designated == index {
			s.designated = -1
			if len(s.entries) > 0 {
				s.designated = s.entries[0].Index
			}
		}
		return nil
	}
	return fmt.Errorf("detach %d: %w", index, ErrUnknownEntry)
}

// Designate picks the entry used for dual-marker centring.
func (s *Synchronizer) Designate(index int) error {
	if _, err := s.Entry(index); err != nil {
		return err
	}
	s.designated = index
	return nil
}

// Designated returns the centring entry, or nil.
func (s *Synchronizer) Designated() *Entry {
	e, _ := s.Entry(s.designated)
	return e
}

// Entry looks up an attached entry by index.
func (s *Synchronizer) Entry(index int) (*Entry, error) {
	for _, e := range s.entries {
		if e.Index == index {
			return e, nil
		}
	}
	return nil, fmt.Errorf("entry %d: %w", index, ErrUnknownEntry)
}

// Entries returns the attached entries in attach order.
func (s *Synchronizer) Entries() []*Entry {
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// NeedsSyntheticTime reports whether exactly one of the primary and the
// entry lacks a usable time window.
func (s *Synchronizer) NeedsSyntheticTime(index int) bool {
	e, err := s.Entry(index)
	if err != nil {
		return false
	}
	return track.HasTime(s.primary) != track.HasTime(e.Points)
}

// GenerateSyntheticTime estimates timestamps for whichever side of the pair
// lacks them, from cumulative distance at the assumed speed, anchored at the
// other side's start. Overlaps are recomputed afterwards.
func (s *Synchronizer) GenerateSyntheticTime(index int) error {
	e, err := s.Entry(index)
	if err != nil {
		return err
	}
	if !s.NeedsSyntheticTime(index) {
		return nil
	}

	timed, untimed := s.primary, e.Points
	side := "comparison"
	if !track.HasTime(s.primary) {
		timed, untimed = e.Points, s.primary
		side = "primary"
	}
	anchor, _, _ := track.TimeWindow(timed)

	speed := s.cfg.AssumedSpeedKmh
	if speed <= 0 {
		speed = track.AverageSpeed(timed)
	}
	if speed <= 0 {
		speed = fallbackSpeedKmh
	}
	track.FillSyntheticTime(untimed, anchor, speed)
	monitoring.Logf("compare: generated synthetic time for %s side of %q at %.1f km/h from %s", side, e.Name, speed, anchor)

	s.refreshOverlaps()
	return nil
}

// Update positions every entry for the current primary playhead. Entries
// with an overlapping time window follow the primary's absolute time; all
// others move at the primary's coordinate progress.
func (s *Synchronizer) Update(primary track.Sample, primaryProgress float64) {
	for _, e := range s.entries {
		p := primaryProgress
		if e.Overlap.HasOverlap && primary.HasTime() {
			p = e.Overlap.progressAt(primary.Time)
		}
		e.Progress = p
		e.Position = track.SampleAt(e.Points, p)
	}
}

// Center returns the camera centre: the midpoint of the primary and the
// designated comparison marker when they are within the proximity radius,
// otherwise the primary alone.
func (s *Synchronizer) Center(primary track.Sample) Center {
	solo := Center{Lat: primary.Lat, Lon: primary.Lon, Ele: primary.Ele, Speed: primary.Speed, Distance: primary.Distance}
	e := s.Designated()
	if e == nil || len(e.Points) == 0 {
		return solo
	}
	other := e.Position
	if track.HaversineLatLon(primary.Lat, primary.Lon, other.Lat, other.Lon) > s.cfg.ProximityKm {
		return solo
	}
	return Center{
		Lat:      stat.Mean([]float64{primary.Lat, other.Lat}, nil),
		Lon:      midLon(primary.Lon, other.Lon),
		Ele:      stat.Mean([]float64{primary.Ele, other.Ele}, nil),
		Speed:    stat.Mean([]float64{primary.Speed, other.Speed}, nil),
		Distance: stat.Mean([]float64{primary.Distance, other.Distance}, nil),
		Dual:     true,
	}
}

// midLon halves the short arc between two longitudes, so markers either side
// of the antimeridian centre near 180 rather than 0.
func midLon(a, b float64) float64 {
	return track.NormalizeBearing(a+track.AngleDelta(a, b)/2+180) - 180
}

func (s *Synchronizer) refreshOverlaps() {
	for _, e := range s.entries {
		e.Overlap = ComputeOverlap(s.primary, e.Points)
	}
}
