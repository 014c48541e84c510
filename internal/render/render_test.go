package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/tiles"
	"gps_journey_player/internal/track"
)

func init() {
	monitoring.SetLogger(nil)
}

var green = color.RGBA{G: 200, A: 255}

type solidFetcher struct {
	size   int
	calls  atomic.Int32
	cached bool
}

func (f *solidFetcher) Fetch(ctx context.Context, req tiles.Request) (image.Image, error) {
	f.calls.Add(1)
	img := image.NewRGBA(image.Rect(0, 0, f.size, f.size))
	draw.Draw(img, img.Bounds(), image.NewUniform(green), image.Point{}, draw.Src)
	return img, nil
}

type emptyCache struct{ solidFetcher }

func (f *emptyCache) Cached(tiles.Request) (image.Image, bool) { return nil, false }

func eastbound() []track.Point {
	pts := make([]track.Point, 50)
	for i := range pts {
		pts[i] = track.Point{Lat: 45, Lon: 7 + float64(i)*0.0005, Ele: 400}
	}
	return track.Prepare(pts)
}

func newTestSurface(t *testing.T, f tiles.Fetcher, cachedOnly bool) *Surface {
	t.Helper()
	s, err := New(Options{
		Width: 320, Height: 240, TileSize: 512, Retina: true,
		Style:      tiles.Style{Name: "test", URL: "http://tiles.invalid/{z}/{x}/{y}.png"},
		CachedOnly: cachedOnly,
	}, f)
	require.NoError(t, err)
	pts := eastbound()
	s.SetTrack(pts)
	start := s.PointAt(0)
	s.SetPose(camera.Pose{Lat: start.Lat, Lon: start.Lon, Zoom: 15.3}, 0)
	s.SetFrame(FrameView{Position: start, Total: 120, SegmentLabel: "track"})
	return s
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestSurface_Render(t *testing.T) {
	t.Parallel()

	f := &solidFetcher{size: 256}
	s := newTestSurface(t, f, false)
	img := s.Render(context.Background())

	assert.Equal(t, image.Rect(0, 0, 320, 240), img.Bounds())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, rgba(img, 160, 120), "primary marker at the centre")
	got := rgba(img, 20, 100)
	assert.InDelta(t, green.G, got.G, 2, "map tiles behind the route")
	assert.InDelta(t, 0, got.R, 2)
	assert.InDelta(t, 0, got.B, 2)
	assert.Positive(t, f.calls.Load())
}

func TestSurface_CachedOnlySkipsNetwork(t *testing.T) {
	t.Parallel()

	f := &emptyCache{solidFetcher{size: 512}}
	s := newTestSurface(t, f, true)
	img := s.Render(context.Background())

	assert.Zero(t, f.calls.Load())
	assert.Equal(t, color.RGBA{R: 224, G: 224, B: 224, A: 255}, rgba(img, 20, 100))
}

func TestSurface_PoseAndSampling(t *testing.T) {
	t.Parallel()

	s := newTestSurface(t, nil, false)
	p := camera.Pose{Lat: 45.1, Lon: 7.2, Zoom: 12, Pitch: 40, Bearing: 270}
	s.SetPose(p, 12*time.Millisecond)
	assert.Equal(t, p, s.Pose())

	mid := s.PointAt(0.5)
	assert.InDelta(t, 7+24.5*0.0005, mid.Lon, 1e-9)
	assert.InDelta(t, 24.5, mid.Index, 1e-9)

	out := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, s.SavePNG(context.Background(), out))
}

func TestParseHexColor(t *testing.T) {
	t.Parallel()

	c, err := ParseHexColor("#ff9800")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 152, A: 255}, c)

	_, err = ParseHexColor("orange")
	assert.Error(t, err)
}

func TestClockText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0:00", clockText(-3))
	assert.Equal(t, "1:05", clockText(65.2))
	assert.Equal(t, "61:40", clockText(3700))
}
