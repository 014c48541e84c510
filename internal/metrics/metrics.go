// Package metrics exposes the player's Prometheus metrics.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/player"
	"gps_journey_player/internal/tiles"
)

type Collector struct {
	reg *prometheus.Registry

	Frames           prometheus.Counter
	FrameDuration    prometheus.Histogram
	DriftCorrections prometheus.Counter
	DriftSeconds     prometheus.Histogram

	Progress    prometheus.Gauge
	Elapsed     prometheus.Gauge // seconds
	SyncDelta   prometheus.Gauge
	Speed       prometheus.Gauge
	Playing     prometheus.Gauge
	CameraState prometheus.Gauge
	Comparisons prometheus.Gauge

	TilePreloads *prometheus.CounterVec // kind: map|terrain, result: ok|error|duplicate|skipped

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_frames_total",
			Help: "Total frames processed by the playback loop.",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "player_frame_duration_seconds",
			Help:    "Time spent computing one frame (commands, clock, sync, camera).",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
		}),
		DriftCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_drift_corrections_total",
			Help: "Times elapsed time was snapped back to the position-derived time.",
		}),
		DriftSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "player_drift_seconds",
			Help:    "Absolute drift corrected, in journey seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_progress_ratio",
			Help: "Coordinate progress of the playhead in [0,1].",
		}),
		Elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_elapsed_seconds",
			Help: "Journey elapsed time of the playhead.",
		}),
		SyncDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_sync_delta_ratio",
			Help: "Time-derived minus position-derived progress.",
		}),
		Speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_speed_multiplier",
			Help: "Current playback speed multiplier.",
		}),
		Playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_playing",
			Help: "1 while the animation clock is running, 0 otherwise.",
		}),
		CameraState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_camera_state",
			Help: "Camera state: 0 uninitialized, 1 overview, 2 cinematic, 3 following, 4 end zoom-out.",
		}),
		Comparisons: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_comparisons",
			Help: "Number of attached comparison tracks.",
		}),
		TilePreloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "player_tile_preloads_total",
			Help: "Tile preload requests by tile kind and result.",
		}, []string{"kind", "result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_nats_published_total",
			Help: "Total NATS playhead messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "player_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "player_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "player_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Frames, c.FrameDuration, c.DriftCorrections, c.DriftSeconds,
		c.Progress, c.Elapsed, c.SyncDelta, c.Speed, c.Playing, c.CameraState, c.Comparisons,
		c.TilePreloads,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)
	return c
}

// ObserveFrame records one frame snapshot.
func (c *Collector) ObserveFrame(s player.State, compute time.Duration) {
	c.Frames.Inc()
	c.FrameDuration.Observe(compute.Seconds())
	c.Progress.Set(s.Progress)
	c.Elapsed.Set(s.Elapsed)
	c.SyncDelta.Set(s.SyncDelta)
	c.Speed.Set(s.Speed)
	c.CameraState.Set(float64(s.Camera))
	c.Comparisons.Set(float64(len(s.Comparisons)))
	if s.Playback == playback.Playing {
		c.Playing.Set(1)
	} else {
		c.Playing.Set(0)
	}
}

// ObserveDrift records a drift correction.
func (c *Collector) ObserveDrift(from, to float64) {
	c.DriftCorrections.Inc()
	d := from - to
	if d < 0 {
		d = -d
	}
	c.DriftSeconds.Observe(d)
}

// ObserveTile is the tiles.PreloaderConfig.Observe hook.
func (c *Collector) ObserveTile(kind tiles.Kind, result string) {
	c.TilePreloads.WithLabelValues(string(kind), result).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
