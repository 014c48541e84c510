package tiles

import (
	"context"
	"sync"

	"gps_journey_player/internal/track"
)

// TrackRequests returns the distinct requests covering the viewport around
// every point at zoom, map tiles first and then terrain when cfg has it.
func TrackRequests(points []track.Point, zoom int, cfg PreloaderConfig) []Request {
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	seen := make(map[Tile]struct{})
	var all []Tile
	for _, p := range points {
		for _, t := range Window(p.Lat, p.Lon, zoom, cfg.ViewportWidth, cfg.ViewportHeight, cfg.TileSize) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			all = append(all, t)
		}
	}

	reqs := make([]Request, 0, len(all))
	for _, t := range all {
		reqs = append(reqs, Request{Kind: KindMap, Style: cfg.Style, Tile: t, Retina: cfg.Retina})
	}
	if cfg.Terrain != nil {
		for _, t := range all {
			reqs = append(reqs, Request{Kind: KindTerrain, Style: *cfg.Terrain, Tile: t})
		}
	}
	return reqs
}

// Prefetch fetches every request with at most concurrency fetches in flight
// and blocks until all are done or ctx is cancelled. done, if set, is called
// after each request. It returns the number of failed fetches.
func Prefetch(ctx context.Context, f Fetcher, reqs []Request, concurrency int, done func(Request, error)) int {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	limit := make(chan struct{}, concurrency)

	for i, req := range reqs {
		if ctx.Err() != nil {
			wg.Wait()
			return failed + len(reqs) - i
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return failed + len(reqs) - i
		case limit <- struct{}{}:
		}
		wg.Add(1)
		go func(r Request) {
			defer wg.Done()
			defer func() { <-limit }()
			_, err := f.Fetch(ctx, r)
			mu.Lock()
			if err != nil {
				failed++
			}
			if done != nil {
				done(r, err)
			}
			mu.Unlock()
		}(req)
	}
	wg.Wait()
	return failed
}

