package player

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/render"
	"gps_journey_player/internal/timeutil"
	"gps_journey_player/internal/track"
)

func init() {
	monitoring.SetLogger(nil)
}

const frame = 100 * time.Millisecond

type fakeSurface struct {
	points   []track.Point
	pose     camera.Pose
	fullPath bool
	view     render.FrameView
	frames   int
}

func (s *fakeSurface) SetTrack(points []track.Point)  { s.points = points }
func (s *fakeSurface) PointAt(p float64) track.Sample { return track.SampleAt(s.points, p) }
func (s *fakeSurface) Pose() camera.Pose              { return s.pose }
func (s *fakeSurface) ShowFullPath(show bool)         { s.fullPath = show }

func (s *fakeSurface) SetPose(p camera.Pose, _ time.Duration) { s.pose = p }

func (s *fakeSurface) SetFrame(v render.FrameView) {
	s.view = v
	s.frames++
}

type recorder struct {
	mu     sync.Mutex
	frames int
	drifts int
	last   State
}

func (r *recorder) ObserveFrame(s State, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.last = s
}

func (r *recorder) ObserveDrift(float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drifts++
}

// northbound returns n points ~100 m apart heading north from Zurich.
func northbound(n int) []track.Point {
	pts := make([]track.Point, n)
	for i := range pts {
		pts[i] = track.Point{Lat: 47.37 + float64(i)*0.0009, Lon: 8.54, Ele: 400 + float64(i%3)}
	}
	return track.Prepare(pts)
}

// twoSegments is 21 points played as two ten-second segments.
func twoSegments() *journey.Journey {
	return &journey.Journey{
		Points: northbound(21),
		Segments: []journey.Segment{
			{Type: journey.SegmentTrack, StartIndex: 0, EndIndex: 9, Source: "morning.gpx", DefaultDuration: 10},
			{Type: journey.SegmentTransportation, Mode: "train", StartIndex: 10, EndIndex: 20, DefaultDuration: 10},
		},
	}
}

type harness struct {
	p       *Player
	clock   *timeutil.MockClock
	surface *fakeSurface
	rec     *recorder
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		clock:   timeutil.NewMockClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		surface: &fakeSurface{},
		rec:     &recorder{},
	}
	p, err := New(h.clock, h.surface, nil, cfg)
	require.NoError(t, err)
	p.AddObserver(h.rec)
	require.NoError(t, p.LoadJourney(twoSegments()))
	h.p = p
	return h
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(frame)
		h.p.Frame()
	}
}

// playing starts playback and runs frames until the clock is running.
func (h *harness) playing(t *testing.T) {
	t.Helper()
	require.NoError(t, h.p.Play())
	h.p.Frame()
	for i := 0; i < 100 && h.p.Snapshot().Playback != playback.Playing; i++ {
		h.step(1)
	}
	require.Equal(t, playback.Playing, h.p.Snapshot().Playback)
}

func TestPlayer_LoadJourney(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	s := h.p.Snapshot()
	assert.NotEmpty(t, s.JourneyID)
	assert.Equal(t, 20.0, s.Total)
	assert.Equal(t, camera.Overview, s.Camera)
	assert.Equal(t, playback.Stopped, s.Playback)
	assert.Equal(t, []string{"near", "medium", "far"}, s.Presets)
	assert.True(t, h.surface.fullPath)
	assert.Len(t, h.surface.points, 21)
}

func TestPlayer_LoadJourney_Invalid(t *testing.T) {
	t.Parallel()
	p, err := New(timeutil.NewMockClock(time.Now()), &fakeSurface{}, nil, DefaultConfig())
	require.NoError(t, err)

	j := twoSegments()
	j.Segments[1].StartIndex = 11
	require.ErrorIs(t, p.LoadJourney(j), journey.ErrNonContiguous)

	require.NoError(t, p.Play())
	p.Frame()
	assert.Empty(t, p.Snapshot().JourneyID)
}

func TestPlayer_CinematicBeforeClock(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.p.Play())
	h.p.Frame()
	s := h.p.Snapshot()
	assert.Equal(t, camera.CinematicTransition, s.Camera)
	assert.Equal(t, playback.Stopped, s.Playback)
	assert.False(t, h.surface.fullPath)

	// 2.5s cinematic at 100ms frames.
	h.step(25)
	s = h.p.Snapshot()
	assert.Equal(t, camera.Following, s.Camera)
	assert.Equal(t, playback.Stopped, s.Playback)
	assert.Zero(t, s.Elapsed)

	h.step(1)
	assert.Equal(t, playback.Playing, h.p.Snapshot().Playback)
	assert.Zero(t, h.p.Snapshot().Elapsed)

	h.step(10)
	assert.InDelta(t, 1.0, h.p.Snapshot().Elapsed, 1e-9)
}

func TestPlayer_CompletionAndEndZoom(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playing(t)

	for i := 0; i < 400 && h.p.Snapshot().Playback != playback.Completed; i++ {
		h.step(1)
	}
	s := h.p.Snapshot()
	require.Equal(t, playback.Completed, s.Playback)
	assert.Equal(t, 1.0, s.Progress)
	assert.Equal(t, 20.0, s.Elapsed)
	assert.True(t, h.surface.fullPath)
	require.NotNil(t, s.Final)
	assert.InDelta(t, h.surface.points[20].Distance, s.Final.DistanceKm, 1e-9)
	assert.Equal(t, 20.0, s.Final.DurationSeconds)
	assert.Equal(t, camera.Following, s.Camera)

	h.step(15)
	assert.Equal(t, camera.EndZoomOut, h.p.Snapshot().Camera)
	assert.Zero(t, h.rec.drifts)

	// Play again restarts from the beginning with a fresh cinematic.
	require.NoError(t, h.p.Play())
	h.p.Frame()
	s = h.p.Snapshot()
	assert.Equal(t, camera.CinematicTransition, s.Camera)
	assert.Zero(t, s.Progress)
	assert.Nil(t, s.Final)
}

func TestPlayer_SeekToStartResets(t *testing.T) {
	t.Parallel()

	t.Run("while playing replays", func(t *testing.T) {
		h := newHarness(t, nil)
		h.playing(t)
		h.step(50)
		require.Greater(t, h.p.Snapshot().Progress, 0.2)

		require.NoError(t, h.p.SeekProgress(0))
		h.p.Frame()
		s := h.p.Snapshot()
		assert.Zero(t, s.Progress)
		assert.Equal(t, camera.CinematicTransition, s.Camera)
	})

	t.Run("while paused stays on overview", func(t *testing.T) {
		h := newHarness(t, nil)
		h.playing(t)
		h.step(50)
		require.NoError(t, h.p.Pause())
		require.NoError(t, h.p.SeekTime(0))
		h.p.Frame()
		s := h.p.Snapshot()
		assert.Zero(t, s.Progress)
		assert.Equal(t, playback.Stopped, s.Playback)
		assert.Equal(t, camera.Overview, s.Camera)
		assert.Equal(t, h.p.Camera().OverviewPose(), h.surface.pose)
		assert.True(t, h.surface.fullPath)
	})
}

func TestPlayer_SeekMidJourney(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.p.SeekTime(15))
	h.p.Frame()
	s := h.p.Snapshot()
	assert.InDelta(t, 0.75, s.Progress, 1e-9)
	assert.Equal(t, 1, s.SegmentIndex)
	assert.Equal(t, "transportation", s.SegmentType)
	assert.Equal(t, "train", s.SegmentMode)
	assert.Equal(t, "train", h.surface.view.SegmentLabel)

	require.NoError(t, h.p.SeekProgress(0.25))
	h.p.Frame()
	s = h.p.Snapshot()
	assert.InDelta(t, 0.25, s.Progress, 1e-9)
	assert.InDelta(t, 5.0, s.Elapsed, 1e-9)
	assert.Equal(t, "morning.gpx", h.surface.view.SegmentLabel)
}

func TestPlayer_SeekDuringEndZoomFollowsAgain(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playing(t)
	for i := 0; i < 400 && h.p.Snapshot().Camera != camera.EndZoomOut; i++ {
		h.step(1)
	}
	require.Equal(t, camera.EndZoomOut, h.p.Snapshot().Camera)

	require.NoError(t, h.p.SeekProgress(0.5))
	h.p.Frame()
	s := h.p.Snapshot()
	assert.Equal(t, camera.Following, s.Camera)
	assert.Equal(t, playback.Stopped, s.Playback)
	assert.Nil(t, s.Final)
	assert.False(t, h.surface.fullPath)
}

func TestPlayer_SeekAfterCompletionCancelsEndZoom(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playing(t)
	for i := 0; i < 400 && h.p.Snapshot().Playback != playback.Completed; i++ {
		h.step(1)
	}
	require.Equal(t, playback.Completed, h.p.Snapshot().Playback)
	require.Equal(t, camera.Following, h.p.Snapshot().Camera)

	// Back into the journey before the 1.5s zoom-out delay runs out.
	require.NoError(t, h.p.SeekProgress(0.3))
	require.NoError(t, h.p.Play())
	h.p.Frame()
	require.Equal(t, playback.Playing, h.p.Snapshot().Playback)

	h.step(20)
	s := h.p.Snapshot()
	assert.Equal(t, playback.Playing, s.Playback)
	assert.Equal(t, camera.Following, s.Camera)
	assert.InDelta(t, 0.4, s.Progress, 1e-9)
	assert.Equal(t, h.p.Camera().Preset().Zoom, h.surface.pose.Zoom)
}

func TestPlayer_SeekDuringCinematicKeepsPlay(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.p.Play())
	h.p.Frame()
	require.Equal(t, camera.CinematicTransition, h.p.Snapshot().Camera)

	require.NoError(t, h.p.SeekProgress(0.5))
	h.p.Frame()
	s := h.p.Snapshot()
	assert.Equal(t, camera.Following, s.Camera)
	assert.Equal(t, playback.Playing, s.Playback)

	h.step(30)
	s = h.p.Snapshot()
	assert.Equal(t, playback.Playing, s.Playback)
	assert.InDelta(t, 0.65, s.Progress, 1e-9)
}

func TestPlayer_CommandsApplyAtFrameStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playing(t)
	h.step(5)

	before := h.p.Snapshot()
	require.NoError(t, h.p.Pause())
	require.NoError(t, h.p.SetSpeed(2))
	assert.Equal(t, before.Playback, h.p.Snapshot().Playback)

	h.step(1)
	s := h.p.Snapshot()
	assert.Equal(t, playback.Stopped, s.Playback)
	assert.Equal(t, 2.0, s.Speed)
	assert.Equal(t, before.Elapsed, s.Elapsed)
}

func TestPlayer_RejectsInvalidCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	tests := []struct {
		name string
		err  error
	}{
		{"seek progress", h.p.SeekProgress(1.5)},
		{"seek nan", h.p.SeekProgress(math.NaN())},
		{"seek time", h.p.SeekTime(-1)},
		{"speed", h.p.SetSpeed(0)},
		{"preset", h.p.SetCameraPreset("orbit")},
		{"mode", h.p.SetCameraMode("chase")},
		{"short comparison", h.p.Attach("x", "", northbound(1))},
		{"colour", h.p.Attach("x", "red", northbound(5))},
		{"duration", h.p.SetSegmentDuration(0, ptr(-3))},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, ErrBadCommand, tt.name)
	}
}

func TestPlayer_QueueFull(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(c *Config) { c.QueueSize = 1 })

	require.NoError(t, h.p.Pause())
	require.ErrorIs(t, h.p.Pause(), ErrQueueFull)
	h.p.Frame()
	require.NoError(t, h.p.Pause())
}

func TestPlayer_SetSegmentDuration(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.p.SeekProgress(0.5))
	require.NoError(t, h.p.SetSegmentDuration(0, ptr(15)))
	h.p.Frame()
	s := h.p.Snapshot()
	assert.Equal(t, 25.0, s.Total)
	assert.InDelta(t, 0.5, s.Progress, 1e-9)

	require.NoError(t, h.p.SetSegmentDuration(0, nil))
	h.p.Frame()
	assert.Equal(t, 20.0, h.p.Snapshot().Total)
}

func TestPlayer_Comparisons(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	require.NoError(t, h.p.Attach("friend", "#ff0000", northbound(11)))
	require.NoError(t, h.p.SeekProgress(0.5))
	h.p.Frame()

	s := h.p.Snapshot()
	require.Len(t, s.Comparisons, 1)
	c := s.Comparisons[0]
	assert.Equal(t, "spatial", c.Mode)
	assert.InDelta(t, 0.5, c.Progress, 1e-9)
	require.Len(t, h.surface.view.Comparisons, 1)
	assert.Equal(t, "friend", h.surface.view.Comparisons[0].Name)

	require.NoError(t, h.p.Detach(c.Index))
	h.p.Frame()
	assert.Empty(t, h.p.Snapshot().Comparisons)

	require.NoError(t, h.p.Detach(c.Index))
	h.p.Frame()
	assert.Empty(t, h.p.Snapshot().Comparisons)
}

func TestPlayer_CameraModeWhilePlaying(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.playing(t)

	require.NoError(t, h.p.SetCameraMode("overview"))
	h.step(1)
	assert.Equal(t, camera.ModeOverview, h.p.Snapshot().CameraMode)
	assert.Equal(t, h.p.Camera().OverviewPose(), h.surface.pose)

	require.NoError(t, h.p.SetCameraMode("follow"))
	require.NoError(t, h.p.SetCameraPreset("near"))
	h.step(1)
	s := h.p.Snapshot()
	assert.Equal(t, camera.Following, s.Camera)
	assert.Equal(t, "near", s.Preset)
}

func TestPlayer_Observer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.step(3)

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	assert.Equal(t, 4, h.rec.frames)
	assert.Equal(t, h.p.Snapshot().JourneyID, h.rec.last.JourneyID)
}

func TestComputeFinalStats(t *testing.T) {
	t.Parallel()

	pts := []track.Point{
		{Ele: 100, Speed: 10, Distance: 0},
		{Ele: 120, Speed: 25, Distance: 1},
		{Ele: 110, Speed: 15, Distance: 2},
		{Ele: 130, Speed: 5, Distance: 3.5},
	}
	got := ComputeFinalStats(pts, 90)
	want := FinalStats{DistanceKm: 3.5, DurationSeconds: 90, MaxSpeedKmh: 25, ElevationGainM: 40}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ComputeFinalStats mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, FinalStats{DurationSeconds: 5}, ComputeFinalStats(nil, 5))
}

func ptr(v float64) *float64 { return &v }
