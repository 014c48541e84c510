// Package render draws journey frames onto a raster map with gg. Surface is
// the camera's view of the renderer.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/tiles"
	"gps_journey_player/internal/track"
)

// Options configures a Surface.
type Options struct {
	Width, Height int
	TileSize      int
	Retina        bool
	Style         tiles.Style
	// CachedOnly draws only tiles already in the fetcher's cache, so a
	// realtime frame never waits on the network.
	CachedOnly  bool
	TileTimeout time.Duration

	PathWidth      float64
	PathColor      color.Color
	MarkerColor    color.Color
	IndicatorColor color.Color
	Background     color.Color
	Font           *truetype.Font
}

// Marker is a comparison track drawn next to the primary.
type Marker struct {
	Name     string
	Color    color.Color
	Points   []track.Point
	Progress float64
	Position track.Sample
}

// FrameView is everything the HUD shows for one frame.
type FrameView struct {
	Progress float64
	Position track.Sample
	// Speed, Ele and Distance are the displayed values, possibly averaged
	// over two markers.
	Speed, Ele, Distance float64
	Elapsed, Total       float64
	SegmentLabel         string
	Comparisons          []Marker
}

type cachedFetcher interface {
	Cached(req tiles.Request) (image.Image, bool)
}

// Surface implements camera.Surface. Poses and frame data may be set from
// the frame loop while a previous frame is being encoded elsewhere.
type Surface struct {
	opts    Options
	fetcher tiles.Fetcher

	mu       sync.Mutex
	points   []track.Point
	total    float64
	pose     camera.Pose
	ease     time.Duration
	showFull bool
	view     FrameView

	valueFace, unitFace, labelFace font.Face

	// failedTiles is only touched by Render, which is not reentrant.
	failedTiles map[string]struct{}
}

func New(opts Options, fetcher tiles.Fetcher) (*Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.TileSize <= 0 {
		opts.TileSize = tiles.DefaultTileSize
	}
	if opts.TileTimeout <= 0 {
		opts.TileTimeout = 3 * time.Second
	}
	if opts.PathWidth <= 0 {
		opts.PathWidth = 6
	}
	if opts.PathColor == nil {
		opts.PathColor = color.RGBA{R: 255, A: 255}
	}
	if opts.MarkerColor == nil {
		opts.MarkerColor = color.RGBA{B: 255, A: 255}
	}
	if opts.IndicatorColor == nil {
		opts.IndicatorColor = color.White
	}
	if opts.Background == nil {
		opts.Background = color.RGBA{R: 224, G: 224, B: 224, A: 255}
	}
	if opts.Font == nil {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, err
		}
		opts.Font = f
	}

	valueSize := float64(opts.Height) / 14
	return &Surface{
		opts:        opts,
		fetcher:     fetcher,
		showFull:    true,
		valueFace:   truetype.NewFace(opts.Font, &truetype.Options{Size: valueSize}),
		unitFace:    truetype.NewFace(opts.Font, &truetype.Options{Size: valueSize / 2}),
		labelFace:   truetype.NewFace(opts.Font, &truetype.Options{Size: valueSize / 2.5}),
		failedTiles: make(map[string]struct{}),
	}, nil
}

// SetTrack replaces the primary track.
func (s *Surface) SetTrack(points []track.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = points
	s.total = 0
	if len(points) > 0 {
		s.total = points[len(points)-1].Distance
	}
}

func (s *Surface) PointAt(progress float64) track.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return track.SampleAt(s.points, progress)
}

// SetPose applies p. Frames are discrete and every ease the camera issues
// is shorter than a frame, so the next rendered frame shows p.
func (s *Surface) SetPose(p camera.Pose, ease time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = p
	s.ease = ease
}

func (s *Surface) Pose() camera.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// ShowFullPath toggles drawing the whole route under the travelled part.
func (s *Surface) ShowFullPath(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showFull = show
}

func (s *Surface) SetFrame(v FrameView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// viewport maps world pixels at an integer tile zoom onto the frame.
type viewport struct {
	w, h       float64
	z          int
	scale      float64
	cx, cy     float64
	sinB, cosB float64
	tileSize   float64
	bearingRad float64
}

func newViewport(p camera.Pose, w, h, tileSize int) viewport {
	z := int(math.Round(p.Zoom))
	if z < 0 {
		z = 0
	}
	cx, cy := tiles.Deg2Num(p.Lat, p.Lon, z)
	rad := -gg.Radians(p.Bearing)
	return viewport{
		w:          float64(w),
		h:          float64(h),
		z:          z,
		scale:      math.Pow(2, p.Zoom-float64(z)),
		cx:         cx * float64(tileSize),
		cy:         cy * float64(tileSize),
		sinB:       math.Sin(rad),
		cosB:       math.Cos(rad),
		tileSize:   float64(tileSize),
		bearingRad: rad,
	}
}

func (v viewport) project(lat, lon float64) (float64, float64) {
	wx, wy := tiles.Deg2Num(lat, lon, v.z)
	dx := (wx*v.tileSize - v.cx) * v.scale
	dy := (wy*v.tileSize - v.cy) * v.scale
	return v.w/2 + dx*v.cosB - dy*v.sinB, v.h/2 + dx*v.sinB + dy*v.cosB
}

// Render draws the current frame.
func (s *Surface) Render(ctx context.Context) image.Image {
	s.mu.Lock()
	pose, view, showFull, points := s.pose, s.view, s.showFull, s.points
	total := s.total
	s.mu.Unlock()

	dc := gg.NewContext(s.opts.Width, s.opts.Height)
	dc.SetColor(s.opts.Background)
	dc.Clear()

	vp := newViewport(pose, s.opts.Width, s.opts.Height, s.opts.TileSize)
	s.drawTiles(ctx, dc, pose, vp)

	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	if showFull && len(points) > 1 {
		s.strokePath(dc, vp, points, len(points), nil, withAlpha(s.opts.PathColor, 110))
	}
	for _, m := range view.Comparisons {
		upto := int(math.Floor(m.Progress * float64(len(m.Points)-1)))
		s.strokePath(dc, vp, m.Points, upto+1, &m.Position, m.Color)
	}
	if len(points) > 1 {
		upto := int(math.Floor(view.Progress * float64(len(points)-1)))
		s.strokePath(dc, vp, points, upto+1, &view.Position, s.opts.PathColor)
	}

	for _, m := range view.Comparisons {
		x, y := vp.project(m.Position.Lat, m.Position.Lon)
		drawMarker(dc, x, y, m.Color)
	}
	if len(points) > 0 {
		x, y := vp.project(view.Position.Lat, view.Position.Lon)
		drawMarker(dc, x, y, s.opts.MarkerColor)
	}

	s.drawHUD(dc, pose, view, total)
	return dc.Image()
}

func (s *Surface) drawTiles(ctx context.Context, dc *gg.Context, pose camera.Pose, vp viewport) {
	if s.fetcher == nil {
		return
	}
	// cover the rotated frame: a square of the frame's diagonal, in
	// tile-zoom pixels
	diag := int(math.Ceil(math.Hypot(vp.w, vp.h)/vp.scale)) + 1
	n := 1 << vp.z

	dc.Push()
	defer dc.Pop()
	dc.Translate(vp.w/2, vp.h/2)
	dc.Rotate(vp.bearingRad)
	dc.Scale(vp.scale, vp.scale)
	dc.Translate(-vp.cx, -vp.cy)

	for _, t := range tiles.Window(pose.Lat, pose.Lon, vp.z, diag, diag, s.opts.TileSize) {
		img := s.tile(ctx, t)
		if img == nil {
			continue
		}
		// unwrap X to the copy of the world nearest the centre
		ux := t.X + n*int(math.Round((vp.cx/vp.tileSize-float64(t.X))/float64(n)))
		x, y := float64(ux)*vp.tileSize, float64(t.Y)*vp.tileSize
		if w := img.Bounds().Dx(); w > 0 && w != s.opts.TileSize {
			f := vp.tileSize / float64(w)
			dc.Push()
			dc.Translate(x, y)
			dc.Scale(f, f)
			dc.DrawImage(img, 0, 0)
			dc.Pop()
			continue
		}
		dc.DrawImage(img, int(x), int(y))
	}
}

func (s *Surface) tile(ctx context.Context, t tiles.Tile) image.Image {
	req := tiles.Request{Kind: tiles.KindMap, Style: s.opts.Style, Tile: t, Retina: s.opts.Retina}
	if s.opts.CachedOnly {
		if cf, ok := s.fetcher.(cachedFetcher); ok {
			img, _ := cf.Cached(req)
			return img
		}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.TileTimeout)
	defer cancel()
	img, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		url := req.URL()
		if _, seen := s.failedTiles[url]; !seen {
			s.failedTiles[url] = struct{}{}
			monitoring.Logf("render: could not get tile image: %v", err)
		}
		return nil
	}
	return img
}

// strokePath draws points[:upto], ending at tip when given.
func (s *Surface) strokePath(dc *gg.Context, vp viewport, points []track.Point, upto int, tip *track.Sample, c color.Color) {
	upto = min(max(upto, 0), len(points))
	if upto == 0 {
		return
	}
	dc.NewSubPath()
	for i := 0; i < upto; i++ {
		x, y := vp.project(points[i].Lat, points[i].Lon)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	if tip != nil {
		x, y := vp.project(tip.Lat, tip.Lon)
		dc.LineTo(x, y)
	}
	dc.SetColor(c)
	dc.SetLineWidth(s.opts.PathWidth)
	dc.Stroke()
}

func drawMarker(dc *gg.Context, x, y float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawPoint(x, y, 8)
	dc.Fill()
	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawPoint(x, y, 8)
	dc.Stroke()
}

func (s *Surface) drawHUD(dc *gg.Context, pose camera.Pose, view FrameView, total float64) {
	w, h := float64(s.opts.Width), float64(s.opts.Height)
	panelH := h / 5
	panelY := h - panelH
	valueSize := h / 14
	iconSize := valueSize * 0.9
	iconLine := math.Max(1, h/300)

	dc.SetColor(color.RGBA{A: 150})
	dc.DrawRectangle(0, panelY, w, panelH)
	dc.Fill()

	row1Y := panelY + valueSize*1.2
	dc.SetColor(s.opts.IndicatorColor)

	drawSpeedIcon(dc, iconSize, row1Y-valueSize/3, iconSize, iconLine)
	s.drawValue(dc, fmt.Sprintf("%.0f", math.Round(view.Speed)), " km/h", iconSize*2, row1Y)

	drawElevationIcon(dc, w/2, row1Y-valueSize/3, iconSize, iconLine)
	s.drawValue(dc, fmt.Sprintf("%.0f", view.Ele), " m", w/2+iconSize, row1Y)

	dc.SetFontFace(s.unitFace)
	dc.DrawStringAnchored(fmt.Sprintf("%s / %s", clockText(view.Elapsed), clockText(view.Total)), w-valueSize/2, row1Y, 1, 0)

	// distance bar
	barY := row1Y + valueSize*0.5
	barH := panelH - (barY - panelY) - valueSize*0.4
	barX, barW := valueSize/2, w-valueSize
	frac := 0.0
	if total > 0 {
		frac = math.Max(0, math.Min(1, view.Distance/total))
	}
	dc.SetColor(color.RGBA{R: 80, G: 80, B: 80, A: 255})
	dc.DrawRectangle(barX, barY, barW, barH)
	dc.Fill()
	dc.SetColor(color.RGBA{R: 100, G: 180, B: 255, A: 255})
	dc.DrawRectangle(barX, barY, barW*frac, barH)
	dc.Fill()
	dc.SetColor(s.opts.IndicatorColor)
	dc.SetFontFace(s.unitFace)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f / %.2f km", view.Distance, total), barX+barW/2, barY+barH/2, 0.5, 0.5)

	// top strip: segment, legend, north arrow
	dc.SetFontFace(s.labelFace)
	y := valueSize / 2
	if view.SegmentLabel != "" {
		dc.SetColor(color.Black)
		dc.DrawString(view.SegmentLabel, valueSize/2, y+valueSize/3)
		y += valueSize / 2
	}
	for _, m := range view.Comparisons {
		dc.SetColor(m.Color)
		dc.DrawPoint(valueSize/2+4, y+valueSize/6, 4)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawString(m.Name, valueSize/2+14, y+valueSize/3)
		y += valueSize / 2
	}
	dc.SetColor(color.Black)
	drawNorthArrow(dc, w-valueSize, valueSize, valueSize*0.8, pose.Bearing)
}

func (s *Surface) drawValue(dc *gg.Context, value, unit string, x, y float64) {
	dc.SetFontFace(s.valueFace)
	valueWidth, _ := dc.MeasureString(value)
	dc.DrawString(value, x, y)
	dc.SetFontFace(s.unitFace)
	dc.DrawString(unit, x+valueWidth, y)
}

func clockText(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, sec)
}

// SavePNG renders the frame and writes it to path.
func (s *Surface) SavePNG(ctx context.Context, path string) error {
	return gg.SavePNG(path, s.Render(ctx))
}
