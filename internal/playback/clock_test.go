package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

const frame = 500 * time.Millisecond

func testTimeline() *journey.Timeline {
	return journey.BuildTimeline([]journey.Segment{
		{Type: journey.SegmentTrack, StartIndex: 0, EndIndex: 9, DefaultDuration: 60},
		{Type: journey.SegmentTransportation, Mode: "car", StartIndex: 10, EndIndex: 19, DefaultDuration: 30},
		{Type: journey.SegmentTrack, StartIndex: 20, EndIndex: 30, DefaultDuration: 90},
	}, 31)
}

func newTestClock(opts Options) (*Clock, *timeutil.MockClock) {
	mc := timeutil.NewMockClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	return New(mc, testTimeline(), opts), mc
}

func step(c *Clock, mc *timeutil.MockClock, n int) {
	for i := 0; i < n; i++ {
		mc.Advance(frame)
		c.Tick()
	}
}

func TestClock_PlaysExactlyTotalDuration(t *testing.T) {
	t.Parallel()

	completions, drifts := 0, 0
	c, mc := newTestClock(Options{
		OnComplete: func() { completions++ },
		OnDrift:    func(float64, float64) { drifts++ },
	})
	c.Play()
	require.True(t, c.IsAnimating())

	prev := 0.0
	for i := 0; i < 359; i++ {
		mc.Advance(frame)
		c.Tick()
		require.Equal(t, Playing, c.State(), "completed early at frame %d", i)
		require.GreaterOrEqual(t, c.Progress(), prev)
		prev = c.Progress()
	}

	mc.Advance(frame)
	assert.Equal(t, Completed, c.Tick())
	assert.False(t, c.IsAnimating())
	assert.Equal(t, 1.0, c.Progress())
	assert.Equal(t, 180.0, c.Elapsed())
	assert.Equal(t, 1, completions)
	assert.Zero(t, drifts)

	// further frames are inert
	step(c, mc, 5)
	assert.Equal(t, 1, completions)
	assert.Equal(t, 180.0, c.Elapsed())
}

func TestClock_SpeedMultiplier(t *testing.T) {
	t.Parallel()

	c, mc := newTestClock(Options{})
	require.NoError(t, c.SetSpeed(2))
	assert.ErrorIs(t, c.SetSpeed(0), ErrInvalidSpeed)
	assert.Equal(t, 2.0, c.Speed())

	c.Play()
	step(c, mc, 179)
	assert.Equal(t, Playing, c.State())
	assert.InDelta(t, 179.0, c.Elapsed(), 1e-9)

	step(c, mc, 1)
	assert.Equal(t, Completed, c.State())
}

func TestClock_DriftCorrection(t *testing.T) {
	t.Parallel()

	var from, to float64
	c, mc := newTestClock(Options{OnDrift: func(a, b float64) { from, to = a, b }})
	c.Play()
	step(c, mc, 40)
	require.InDelta(t, 20.0, c.Elapsed(), 1e-9)
	require.InDelta(t, 1.0/9, c.Progress(), 1e-9)

	t.Run("small offset is tolerated", func(t *testing.T) {
		c.elapsed += 0.5
		step(c, mc, 1)
		assert.InDelta(t, 21.0, c.Elapsed(), 1e-9)
		assert.Zero(t, to)
	})

	t.Run("large offset snaps back", func(t *testing.T) {
		expected := c.Timeline().ProgressToTime(c.Progress())
		c.elapsed += 5
		step(c, mc, 1)
		assert.InDelta(t, expected+5, from, 1e-9)
		assert.InDelta(t, expected, to, 1e-9)
		assert.InDelta(t, expected+0.5, c.Elapsed(), 1e-9)
		assert.InDelta(t, 0, c.SyncDelta(), 1e-9)
	})
}

func TestClock_SeekResetsBaseline(t *testing.T) {
	t.Parallel()

	c, mc := newTestClock(Options{})
	c.Play()
	step(c, mc, 10)

	mc.Advance(30 * time.Second)
	c.SeekProgress(0.5)
	assert.InDelta(t, 75.0, c.Elapsed(), 1e-9)
	assert.Equal(t, 1, c.SegmentIndex())

	step(c, mc, 1)
	assert.InDelta(t, 75.5, c.Elapsed(), 1e-9)

	mc.Advance(time.Minute)
	c.SeekTime(90)
	assert.InDelta(t, 2.0/3, c.Progress(), 1e-9)
	assert.Equal(t, 2, c.SegmentIndex(), "boundary belongs to the later segment")

	step(c, mc, 1)
	assert.InDelta(t, 90.5, c.Elapsed(), 1e-9)
}

func TestClock_PauseAndResume(t *testing.T) {
	t.Parallel()

	c, mc := newTestClock(Options{})
	c.Play()
	step(c, mc, 4)
	c.Pause()
	assert.Equal(t, Stopped, c.State())

	mc.Advance(time.Hour)
	c.Tick()
	assert.InDelta(t, 2.0, c.Elapsed(), 1e-9)

	c.Play()
	step(c, mc, 1)
	assert.InDelta(t, 2.5, c.Elapsed(), 1e-9)
}

func TestClock_AfterCompletion(t *testing.T) {
	t.Parallel()

	c, mc := newTestClock(Options{})
	c.Play()
	c.SeekProgress(1)
	step(c, mc, 1)
	require.Equal(t, Completed, c.State())

	t.Run("seek leaves completed", func(t *testing.T) {
		c.SeekProgress(0.25)
		assert.Equal(t, Stopped, c.State())
		assert.InDelta(t, 45.0, c.Elapsed(), 1e-9)
	})

	t.Run("play restarts from zero", func(t *testing.T) {
		c.Play()
		c.SeekProgress(1)
		step(c, mc, 1)
		require.Equal(t, Completed, c.State())
		c.Play()
		assert.Equal(t, 0.0, c.Progress())
		assert.Equal(t, 0.0, c.Elapsed())
		assert.True(t, c.IsAnimating())
	})
}

func TestClock_SyncDeltaStaysSmall(t *testing.T) {
	t.Parallel()

	c, mc := newTestClock(Options{})
	c.Play()
	for i := 0; i < 300; i++ {
		step(c, mc, 1)
		assert.InDelta(t, 0, c.SyncDelta(), 1e-9)
	}
	snap := c.Snapshot()
	assert.True(t, snap.IsAnimating)
	assert.Equal(t, 2, snap.SegmentIndex)
	assert.Equal(t, "playing", snap.State.String())
}
