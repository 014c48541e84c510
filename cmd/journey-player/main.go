package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"gps_journey_player/internal/camera"
	"gps_journey_player/internal/config"
	"gps_journey_player/internal/control"
	"gps_journey_player/internal/journey"
	"gps_journey_player/internal/metrics"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/player"
	"gps_journey_player/internal/publisher"
	"gps_journey_player/internal/render"
	"gps_journey_player/internal/tiles"
	"gps_journey_player/internal/timeutil"
	"gps_journey_player/internal/track"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	args := parseArguments()

	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := args.apply(cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	j, err := loadJourney(args, cfg)
	if err != nil {
		log.Fatalf("Error loading journey: %v", err)
	}
	log.Printf("journey: %d points in %d segments", len(j.Points), len(j.Segments))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	style, err := cfg.MapStyle()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.Endpoints.MetricsAddr != "" {
		mcol = metrics.NewCollector()
		metricsSrv = mcol.Serve(cfg.Endpoints.MetricsAddr)
	}

	fetcher := tiles.NewHTTPFetcher(cfg.Tiles.CacheDir)
	preloadCfg := cfg.PreloaderConfig(style, observeTiles(mcol))
	preloader := tiles.NewPreloader(ctx, fetcher, preloadCfg)

	if args.Prefetch {
		prefetchJourney(ctx, fetcher, j.Points, presetZoom(cfg), preloadCfg)
	}

	renderOpts, err := cfg.RenderOptions(style, args.Realtime)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	surface, err := render.New(renderOpts, fetcher)
	if err != nil {
		log.Fatalf("render error: %v", err)
	}

	var clk timeutil.Clock = timeutil.RealClock{}
	var mock *timeutil.MockClock
	if !args.Realtime {
		mock = timeutil.NewMockClock(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
		clk = mock
	}

	p, err := player.New(clk, surface, preloader, cfg.PlayerConfig())
	if err != nil {
		log.Fatalf("player error: %v", err)
	}
	if mcol != nil {
		p.AddObserver(mcol)
	}
	if cfg.Endpoints.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.Endpoints.NATSURL, cfg.Endpoints.NATSSubjectPrefix, cfg.PublishInterval(), wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		p.AddObserver(pub)
	}

	if err := p.LoadJourney(j); err != nil {
		log.Fatalf("Error loading journey: %v", err)
	}
	for _, v := range args.Compare {
		path, color := splitCompare(v)
		t, err := track.Load(path)
		if err != nil {
			log.Fatalf("Error loading comparison: %v", err)
		}
		if err := p.Attach(t.Name, color, t.Points); err != nil {
			log.Fatalf("Error attaching comparison: %v", err)
		}
	}
	if err := p.SetCameraMode(cfg.Camera.Mode); err != nil {
		log.Fatalf("config error: %v", err)
	}

	if args.RenderFirstFrame {
		log.Println("Rendering first frame only...")
		p.Frame()
		if err := surface.SavePNG(ctx, "first_frame.png"); err != nil {
			log.Fatalf("Error saving frame: %v", err)
		}
		log.Println("Saved first_frame.png")
		return
	}

	if args.Autoplay {
		if err := p.Play(); err != nil {
			log.Fatalf("player error: %v", err)
		}
	}

	if args.Realtime {
		runRealtime(ctx, p, cfg)
	} else {
		runOffline(ctx, p, mock, surface, cfg, args)
	}

	preloader.Wait()
	if metricsSrv != nil {
		shutdown(metricsSrv)
	}
}

func loadJourney(args *Arguments, cfg *config.Config) (*journey.Journey, error) {
	modes := args.hopModes()
	var parts []journey.Part
	for i, path := range args.Tracks {
		t, err := track.Load(path)
		if err != nil {
			return nil, err
		}
		if len(args.Tracks) == 1 && (args.From != "" || args.To != "") {
			if t.Points, err = track.Cut(t.Points, args.From, args.To); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		if i > 0 && modes[i-1] != "" {
			parts = append(parts, journey.Part{Mode: modes[i-1]})
		}
		parts = append(parts, journey.Part{Track: t})
	}

	j, err := journey.Compose(parts, cfg.Segments.HopPoints)
	if err != nil {
		return nil, err
	}
	journey.ResolveDefaults(j.Segments, cfg.Segments.TrackSeconds, cfg.Segments.ModeSeconds)
	return j, nil
}

// presetZoom is the tile zoom the default preset follows at.
func presetZoom(cfg *config.Config) int {
	for _, p := range cfg.Camera.Presets {
		if p.Name == cfg.Camera.DefaultPreset {
			return int(math.Round(p.Zoom))
		}
	}
	return 14
}

// runOffline drives the player on a mock clock, one frame interval per
// frame, until the end zoom-out has settled.
func runOffline(ctx context.Context, p *player.Player, mock *timeutil.MockClock, surface *render.Surface, cfg *config.Config, args *Arguments) {
	interval := cfg.FrameInterval()
	cc := cfg.CameraConfig()

	p.Frame()
	s := p.Snapshot()
	playSeconds := s.Total / s.Speed
	budget := cc.CinematicDuration + time.Duration(playSeconds*float64(time.Second)) + cc.EndZoomDelay + cc.EndZoomDuration
	totalFrames := int(budget/interval) + 2

	if args.SnapshotEvery > 0 {
		if err := os.MkdirAll(args.OutputDir, 0o755); err != nil {
			log.Fatalf("Error creating output directory: %v", err)
		}
	}

	bar := progressbar.Default(int64(totalFrames), "Rendering")
	for frame := 0; frame < totalFrames*2; frame++ {
		if ctx.Err() != nil {
			log.Printf("interrupted at frame %d", frame)
			return
		}
		mock.Advance(interval)
		p.Frame()
		bar.Add(1)

		if args.SnapshotEvery > 0 && frame%args.SnapshotEvery == 0 {
			path := filepath.Join(args.OutputDir, fmt.Sprintf("frame_%06d.png", frame))
			if err := surface.SavePNG(ctx, path); err != nil {
				log.Printf("Failed to save frame %d: %v", frame, err)
			}
		}

		s := p.Snapshot()
		if s.Playback == playback.Completed && s.Camera == camera.EndZoomOut && p.Camera().Settled() {
			break
		}
		if !args.Autoplay && frame >= totalFrames {
			break
		}
	}
	bar.Finish()

	s = p.Snapshot()
	if s.Final != nil {
		fmt.Printf("\nJourney complete: %.2f km, max %.1f km/h, +%.0f m in %s\n",
			s.Final.DistanceKm, s.Final.MaxSpeedKmh, s.Final.ElevationGainM, time.Duration(s.Final.DurationSeconds*float64(time.Second)))
	}
	path := filepath.Join(args.OutputDir, "last_frame.png")
	if err := os.MkdirAll(args.OutputDir, 0o755); err == nil {
		if err := surface.SavePNG(ctx, path); err == nil {
			log.Printf("Saved %s", path)
		}
	}
}

func runRealtime(ctx context.Context, p *player.Player, cfg *config.Config) {
	if cfg.Endpoints.ControlAddr != "" {
		srv := control.NewServer(p, track.Load).Serve(cfg.Endpoints.ControlAddr)
		defer shutdown(srv)
	}
	log.Printf("playing in realtime at %.1f fps", cfg.Playback.FrameRate)
	p.Run(ctx, cfg.FrameInterval())
	log.Printf("shutting down")
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
