// Package tiles decides which slippy-map tiles cover a viewport and warms a
// disk cache with them ahead of the playhead.
package tiles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultCacheDir    = "tiles"
	DefaultConcurrency = 8
	DefaultTileSize    = 512
)

type Tile struct {
	X, Y, Z int
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Style is a raster tile source.
type Style struct {
	Name    string
	URL     string
	Headers map[string]string
	// NoRetina marks sources that only serve 256px tiles.
	NoRetina bool
}

var Styles = map[string]Style{
	"default":  {Name: "default", URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png", NoRetina: true},
	"cyclosm":  {Name: "cyclosm", URL: "https://c.tile-cyclosm.openstreetmap.fr/cyclosm/{z}/{x}/{y}.png", NoRetina: true},
	"toner":    {Name: "toner", URL: "https://tiles.stadiamaps.com/tiles/stamen_toner/{z}/{x}/{y}.png", Headers: map[string]string{"Referer": "https://mc.bbbike.org/"}},
	"positron": {Name: "positron", URL: "https://d.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png"},
}

// Terrain is the Terrarium-encoded elevation source used when
// elevation-aware rendering is on.
var Terrain = Style{
	Name:     "terrain",
	URL:      "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png",
	NoRetina: true,
}

// LookupStyle resolves a named style. A value containing "{z}" is treated as
// a custom URL template.
func LookupStyle(name string) (Style, error) {
	if s, ok := Styles[name]; ok {
		return s, nil
	}
	if strings.Contains(name, "{z}") {
		return Style{Name: "custom", URL: name, NoRetina: true}, nil
	}
	return Style{}, fmt.Errorf("invalid map style: %s", name)
}

// TileURL expands the style template for t. With retina set, styles that
// support it are asked for @2x tiles.
func (s Style) TileURL(t Tile, retina bool) string {
	url := strings.Replace(s.URL, "{z}", strconv.Itoa(t.Z), 1)
	url = strings.Replace(url, "{x}", strconv.Itoa(t.X), 1)
	url = strings.Replace(url, "{y}", strconv.Itoa(t.Y), 1)
	if retina && !s.NoRetina {
		url = strings.Replace(url, ".png", "@2x.png", 1)
	}
	return url
}

// Deg2Num converts a coordinate to fractional tile numbers at zoom.
func Deg2Num(lat, lon float64, zoom int) (float64, float64) {
	latRad := lat * math.Pi / 180
	n := math.Pow(2, float64(zoom))
	xtile := (lon + 180) / 360 * n
	ytile := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return xtile, ytile
}

// Num2Deg is the inverse of Deg2Num.
func Num2Deg(x, y float64, zoom int) (lat, lon float64) {
	n := math.Pow(2, float64(zoom))
	lon = x/n*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
	return lat, lon
}

// Window returns the tiles covering a width x height pixel viewport centred
// on lat/lon at zoom. X wraps around the antimeridian; rows outside the
// world are dropped.
func Window(lat, lon float64, zoom, width, height, tileSize int) []Tile {
	if zoom < 0 || tileSize <= 0 {
		return nil
	}
	worldPx, worldPy := Deg2Num(lat, lon, zoom)
	worldPx *= float64(tileSize)
	worldPy *= float64(tileSize)

	halfW := float64(width) / 2
	halfH := float64(height) / 2

	txMin := int(math.Floor((worldPx - halfW) / float64(tileSize)))
	tyMin := int(math.Floor((worldPy - halfH) / float64(tileSize)))
	txMax := int(math.Floor((worldPx + halfW) / float64(tileSize)))
	tyMax := int(math.Floor((worldPy + halfH) / float64(tileSize)))

	n := 1 << zoom
	seen := make(map[Tile]struct{})
	var out []Tile
	for x := txMin; x <= txMax; x++ {
		for y := tyMin; y <= tyMax; y++ {
			if y < 0 || y >= n {
				continue
			}
			t := Tile{X: ((x % n) + n) % n, Y: y, Z: zoom}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
