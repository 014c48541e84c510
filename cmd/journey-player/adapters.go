package main

import (
	"context"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"

	"gps_journey_player/internal/metrics"
	"gps_journey_player/internal/publisher"
	"gps_journey_player/internal/tiles"
	"gps_journey_player/internal/track"
)

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

func observeTiles(c *metrics.Collector) func(tiles.Kind, string) {
	if c == nil {
		return nil
	}
	return c.ObserveTile
}

// prefetchJourney downloads every tile along the journey at zoom before
// rendering starts.
func prefetchJourney(ctx context.Context, f tiles.Fetcher, points []track.Point, zoom int, cfg tiles.PreloaderConfig) {
	reqs := tiles.TrackRequests(points, zoom, cfg)
	log.Println("Prefetching map tiles...")
	bar := progressbar.Default(int64(len(reqs)), "Downloading Tiles")
	failed := tiles.Prefetch(ctx, f, reqs, cfg.Concurrency, func(tiles.Request, error) { bar.Add(1) })
	if failed > 0 {
		log.Printf("%d of %d tiles failed to download", failed, len(reqs))
	}
}
