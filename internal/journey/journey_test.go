package journey

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/track"
)

func init() {
	monitoring.SetLogger(nil)
}

// threeSegments builds a 31-point journey split 10/10/11 with durations
// 60/30/90 seconds.
func threeSegments() []Segment {
	return []Segment{
		{Type: SegmentTrack, StartIndex: 0, EndIndex: 9, DefaultDuration: 60},
		{Type: SegmentTransportation, Mode: "train", StartIndex: 10, EndIndex: 19, DefaultDuration: 30},
		{Type: SegmentTrack, StartIndex: 20, EndIndex: 30, DefaultDuration: 90},
	}
}

func TestBuildTimeline(t *testing.T) {
	t.Parallel()

	tl := BuildTimeline(threeSegments(), 31)
	require.Len(t, tl.Segments, 3)

	assert.Equal(t, 180.0, tl.TotalDuration)
	assert.Equal(t, 150.0, tl.TrackDuration)
	assert.Equal(t, 30.0, tl.TransportDuration)

	assert.Equal(t, 0.0, tl.Segments[0].ProgressStartRatio)
	assert.Equal(t, 1.0, tl.Segments[2].ProgressEndRatio)
	for i := 0; i+1 < len(tl.Segments); i++ {
		assert.Equal(t, tl.Segments[i].EndTime, tl.Segments[i+1].StartTime, "time continuity at %d", i)
		assert.Equal(t, tl.Segments[i].ProgressEndRatio, tl.Segments[i+1].ProgressStartRatio, "progress continuity at %d", i)
		assert.LessOrEqual(t, tl.Segments[i].ProgressStartRatio, tl.Segments[i].ProgressEndRatio)
	}
	assert.InDelta(t, 10.0, tl.Segments[0].CoordinateLength, 1e-9)
	assert.InDelta(t, 10.0, tl.Segments[2].CoordinateLength, 1e-9)
}

func TestBuildTimeline_Idempotent(t *testing.T) {
	t.Parallel()

	a := BuildTimeline(threeSegments(), 31)
	b := BuildTimeline(threeSegments(), 31)
	assert.Equal(t, a.Segments, b.Segments)
	assert.Equal(t, a.TotalDuration, b.TotalDuration)
}

func TestBuildTimeline_UserOverrideWins(t *testing.T) {
	t.Parallel()

	segs := threeSegments()
	override := 10.0
	segs[1].UserDuration = &override

	tl := BuildTimeline(segs, 31)
	assert.Equal(t, 160.0, tl.TotalDuration)
	assert.Equal(t, 10.0, tl.Segments[1].Duration)
}

func TestBuildTimeline_Trivial(t *testing.T) {
	t.Parallel()

	tl := BuildTimeline([]Segment{{Type: SegmentTrack, DefaultDuration: 12}}, 1)
	require.Len(t, tl.Segments, 1)
	assert.Equal(t, 12.0, tl.TotalDuration)
	assert.Equal(t, 0.0, tl.ProgressToTime(0))
	assert.Equal(t, 12.0, tl.ProgressToTime(1))

	empty := BuildTimeline(nil, 0)
	assert.Equal(t, 0.0, empty.TotalDuration)
	assert.False(t, math.IsNaN(empty.TimeToProgress(5)))
	assert.False(t, math.IsNaN(empty.ProgressToTime(0.5)))
}

func TestProgressTimeMapping(t *testing.T) {
	t.Parallel()

	tl := BuildTimeline(threeSegments(), 31)

	t.Run("endpoints", func(t *testing.T) {
		assert.Equal(t, 0.0, tl.ProgressToTime(0))
		assert.InDelta(t, 180.0, tl.ProgressToTime(1), 1e-9)
		assert.Equal(t, 0.0, tl.TimeToProgress(0))
		assert.InDelta(t, 1.0, tl.TimeToProgress(180), 1e-9)
	})

	t.Run("round trip inside segments", func(t *testing.T) {
		for _, p := range []float64{0.01, 0.2, 0.3333, 0.34, 0.5, 0.65, 0.7, 0.999} {
			got := tl.TimeToProgress(tl.ProgressToTime(p))
			assert.InDelta(t, p, got, 1e-6, "p=%v", p)
		}
	})

	t.Run("boundary resolves to later segment", func(t *testing.T) {
		boundary := tl.Segments[1].ProgressStartRatio
		assert.Equal(t, 1, tl.SegmentIndexAtProgress(boundary))
		idx, local := tl.SegmentAt(60)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 0.0, local)
	})

	t.Run("out of range input is clamped", func(t *testing.T) {
		assert.InDelta(t, 180.0, tl.ProgressToTime(2), 1e-9)
		assert.Equal(t, 0.0, tl.ProgressToTime(math.NaN()))
		assert.InDelta(t, 1.0, tl.TimeToProgress(1e9), 1e-9)
	})
}

func TestMapping_SkipsMalformedSegment(t *testing.T) {
	t.Parallel()

	tl := BuildTimeline(threeSegments(), 31)
	tl.Segments[1].Duration = math.NaN()

	// inside the broken segment: proportional fallback, never NaN
	got := tl.ProgressToTime(0.5)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 0.5*180, got, 1e-9)

	// healthy segments still map exactly
	assert.InDelta(t, 30.0, tl.ProgressToTime(tl.Segments[0].ProgressEndRatio/2), 1e-9)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(threeSegments(), 31))

	gap := threeSegments()
	gap[1].StartIndex = 11
	assert.ErrorIs(t, Validate(gap, 31), ErrNonContiguous)

	assert.ErrorIs(t, Validate(threeSegments(), 40), ErrNonContiguous)
	assert.ErrorIs(t, Validate(nil, 0), ErrNoSegments)
}

func TestCompose(t *testing.T) {
	t.Parallel()

	a := &track.Track{Name: "morning", Points: []track.Point{{Lat: 45, Lon: 7}, {Lat: 45.01, Lon: 7}}}
	b := &track.Track{Name: "afternoon", Points: []track.Point{{Lat: 46, Lon: 8}, {Lat: 46.01, Lon: 8}, {Lat: 46.02, Lon: 8}}}

	j, err := Compose([]Part{{Track: a}, {Mode: "train"}, {Track: b}}, 4)
	require.NoError(t, err)
	require.Len(t, j.Points, 2+4+3)
	require.Len(t, j.Segments, 3)

	assert.Equal(t, Segment{Type: SegmentTransportation, StartIndex: 2, EndIndex: 5, Mode: "train", Source: "train"}, j.Segments[1])
	assert.Equal(t, 6, j.Segments[2].StartIndex)
	assert.Equal(t, 8, j.Segments[2].EndIndex)

	for i := 1; i < len(j.Points); i++ {
		assert.Greater(t, j.Points[i].Distance, j.Points[i-1].Distance)
	}
	assert.Equal(t, 0.0, a.Points[1].Distance, "source tracks are not mutated")

	_, err = Compose([]Part{{Mode: "plane"}, {Track: a}}, 4)
	assert.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	segs := []Segment{
		{Type: SegmentTrack},
		{Type: SegmentTransportation, Mode: "plane"},
		{Type: SegmentTransportation, Mode: "teleport"},
		{Type: SegmentTrack, DefaultDuration: 7},
	}
	ResolveDefaults(segs, 45, map[string]float64{"plane": 20})

	assert.Equal(t, 45.0, segs[0].Duration())
	assert.Equal(t, 20.0, segs[1].Duration())
	assert.Equal(t, 1.0, segs[2].Duration())
	assert.Equal(t, 7.0, segs[3].Duration())
}
