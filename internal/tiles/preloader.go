package tiles

import (
	"context"
	"sync"
	"time"

	"gps_journey_player/internal/monitoring"
)

// Preload results reported to PreloaderConfig.Observe.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
	ResultSkipped   = "skipped"
)

type PreloaderConfig struct {
	Style Style
	// Terrain, when set, also preloads elevation tiles for each window.
	Terrain *Style
	Retina  bool

	ViewportWidth  int
	ViewportHeight int
	TileSize       int
	Concurrency    int
	Timeout        time.Duration

	// Observe is called once per requested tile with one of the Result
	// constants. It may be called from fetch goroutines.
	Observe func(kind Kind, result string)
}

// Preloader issues fire-and-forget tile fetches around a position. Each URL
// is requested at most once while it is in flight or cached; a failed fetch
// is forgotten so a later frame asks again. When all fetch slots are busy
// the tile is skipped rather than queued.
type Preloader struct {
	ctx     context.Context
	fetcher Fetcher
	cfg     PreloaderConfig

	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	seen   map[string]struct{}
	failed map[string]struct{}
}

func NewPreloader(ctx context.Context, fetcher Fetcher, cfg PreloaderConfig) *Preloader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Preloader{
		ctx:     ctx,
		fetcher: fetcher,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.Concurrency),
		seen:    make(map[string]struct{}),
		failed:  make(map[string]struct{}),
	}
}

// Preload requests the viewport window around lat/lon at zoom and at one
// coarser fallback zoom.
func (p *Preloader) Preload(lat, lon float64, zoom int) {
	for _, z := range []int{zoom, zoom - 1} {
		if z < 0 {
			continue
		}
		for _, t := range Window(lat, lon, z, p.cfg.ViewportWidth, p.cfg.ViewportHeight, p.cfg.TileSize) {
			p.request(Request{Kind: KindMap, Style: p.cfg.Style, Tile: t, Retina: p.cfg.Retina})
			if p.cfg.Terrain != nil {
				p.request(Request{Kind: KindTerrain, Style: *p.cfg.Terrain, Tile: t})
			}
		}
	}
}

func (p *Preloader) request(req Request) {
	url := req.URL()

	p.mu.Lock()
	if _, ok := p.seen[url]; ok {
		p.mu.Unlock()
		p.observe(req.Kind, ResultDuplicate)
		return
	}
	select {
	case p.sem <- struct{}{}:
	default:
		p.mu.Unlock()
		p.observe(req.Kind, ResultSkipped)
		return
	}
	p.seen[url] = struct{}{}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()

		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
		defer cancel()
		if _, err := p.fetcher.Fetch(ctx, req); err != nil {
			p.forget(url, err)
			p.observe(req.Kind, ResultError)
			return
		}
		p.observe(req.Kind, ResultOK)
	}()
}

func (p *Preloader) forget(url string, err error) {
	p.mu.Lock()
	delete(p.seen, url)
	_, logged := p.failed[url]
	p.failed[url] = struct{}{}
	p.mu.Unlock()
	if !logged {
		monitoring.Logf("tiles: preload failed: %v", err)
	}
}

func (p *Preloader) observe(kind Kind, result string) {
	if p.cfg.Observe != nil {
		p.cfg.Observe(kind, result)
	}
}

// Seen reports whether url is cached or in flight.
func (p *Preloader) Seen(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[url]
	return ok
}

// Wait blocks until every in-flight fetch has finished.
func (p *Preloader) Wait() {
	p.wg.Wait()
}
