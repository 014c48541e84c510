package tiles

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Kind distinguishes map imagery from terrain elevation tiles.
type Kind string

const (
	KindMap     Kind = "map"
	KindTerrain Kind = "terrain"
)

// Request identifies one tile fetch.
type Request struct {
	Kind  Kind
	Style Style
	Tile  Tile
	// Retina asks for 512px tiles where the style supports them.
	Retina bool
}

// URL returns the request's source URL.
func (r Request) URL() string {
	return r.Style.TileURL(r.Tile, r.Retina)
}

// Fetcher loads tile images.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (image.Image, error)
}

// HTTPFetcher downloads tiles and keeps them in memory and on disk under
// CacheDir/<style>/<z>/<x>/<y>.png.
type HTTPFetcher struct {
	Client    *http.Client
	CacheDir  string
	UserAgent string

	mem sync.Map // cache path -> image.Image
}

func NewHTTPFetcher(cacheDir string) *HTTPFetcher {
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: 3 * time.Second},
		CacheDir:  cacheDir,
		UserAgent: "GpsJourneyPlayerGo/0.1",
	}
}

func (f *HTTPFetcher) cachePath(req Request) string {
	name := strconv.Itoa(req.Tile.Y) + ".png"
	if req.Retina && !req.Style.NoRetina {
		name = strconv.Itoa(req.Tile.Y) + "@2x.png"
	}
	return filepath.Join(f.CacheDir, req.Style.Name, strconv.Itoa(req.Tile.Z), strconv.Itoa(req.Tile.X), name)
}

// Cached returns a tile only if it is already in memory or on disk.
func (f *HTTPFetcher) Cached(req Request) (image.Image, bool) {
	path := f.cachePath(req)
	if img, ok := f.mem.Load(path); ok {
		return img.(image.Image), true
	}
	img, err := f.readDisk(path)
	if err != nil {
		return nil, false
	}
	f.mem.Store(path, img)
	return img, true
}

// Fetch returns the tile from memory, disk or the network, in that order.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (image.Image, error) {
	if img, ok := f.Cached(req); ok {
		return img, nil
	}
	path := f.cachePath(req)
	url := req.URL()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", f.UserAgent)
	for k, v := range req.Style.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download tile %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download tile %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode tile %s: %w", url, err)
	}

	if err := f.writeDisk(path, img); err != nil {
		return nil, err
	}
	f.mem.Store(path, img)
	return img, nil
}

func (f *HTTPFetcher) readDisk(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	return img, err
}

func (f *HTTPFetcher) writeDisk(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create tile cache dir: %w", err)
	}
	out, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(out.Name())
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(out.Name(), path)
}
