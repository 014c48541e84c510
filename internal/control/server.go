// Package control serves the HTTP control API. Handlers only validate and
// queue commands; the player applies them at the start of its next frame.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gps_journey_player/internal/player"
	"gps_journey_player/internal/track"
)

// Player is the command surface of *player.Player.
type Player interface {
	Play() error
	Pause() error
	Reset() error
	SeekProgress(progress float64) error
	SeekTime(seconds float64) error
	SetSpeed(x float64) error
	SetCameraPreset(name string) error
	SetCameraMode(name string) error
	Attach(name, hexColor string, points []track.Point) error
	Detach(index int) error
	Designate(index int) error
	SetSegmentDuration(i int, seconds *float64) error
	Snapshot() player.State
}

// Loader reads a comparison track file.
type Loader func(path string) (*track.Track, error)

type Server struct {
	player Player
	load   Loader
	router chi.Router
}

func NewServer(p Player, load Loader) *Server {
	if load == nil {
		load = track.Load
	}
	s := &Server{player: p, load: load}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/play", s.command(p.Play))
	r.Post("/pause", s.command(p.Pause))
	r.Post("/reset", s.command(p.Reset))
	r.Post("/seek", s.seek)
	r.Post("/speed", s.speed)
	r.Post("/camera/preset", s.preset)
	r.Post("/camera/mode", s.mode)
	r.Route("/compare", func(r chi.Router) {
		r.Post("/", s.attach)
		r.Delete("/{index}", s.detach)
		r.Post("/{index}/designate", s.designate)
	})
	r.Put("/segments/{index}/duration", s.segmentDuration)
	r.Get("/state", s.state)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Serve starts the control API on addr.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("control server error: %v", err)
		}
	}()
	log.Printf("control API listening on %s", addr)
	return srv
}

func (s *Server) command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respond(w, fn())
	}
}

func (s *Server) seek(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("progress"):
		v, err := queryFloat(r, "progress")
		if err != nil {
			respond(w, err)
			return
		}
		respond(w, s.player.SeekProgress(v))
	case q.Has("time"):
		v, err := queryFloat(r, "time")
		if err != nil {
			respond(w, err)
			return
		}
		respond(w, s.player.SeekTime(v))
	default:
		respond(w, badRequest("seek needs progress or time"))
	}
}

func (s *Server) speed(w http.ResponseWriter, r *http.Request) {
	x, err := queryFloat(r, "x")
	if err != nil {
		respond(w, err)
		return
	}
	respond(w, s.player.SetSpeed(x))
}

func (s *Server) preset(w http.ResponseWriter, r *http.Request) {
	respond(w, s.player.SetCameraPreset(r.URL.Query().Get("name")))
}

func (s *Server) mode(w http.ResponseWriter, r *http.Request) {
	respond(w, s.player.SetCameraMode(r.URL.Query().Get("name")))
}

type attachRequest struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) attach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, badRequest("decode body: %v", err))
		return
	}
	if req.Path == "" {
		respond(w, badRequest("path is required"))
		return
	}
	t, err := s.load(req.Path)
	if err != nil {
		respond(w, badRequest("load %s: %v", req.Path, err))
		return
	}
	name := req.Name
	if name == "" {
		name = t.Name
	}
	respond(w, s.player.Attach(name, req.Color, t.Points))
}

func (s *Server) detach(w http.ResponseWriter, r *http.Request) {
	i, err := urlIndex(r)
	if err != nil {
		respond(w, err)
		return
	}
	respond(w, s.player.Detach(i))
}

func (s *Server) designate(w http.ResponseWriter, r *http.Request) {
	i, err := urlIndex(r)
	if err != nil {
		respond(w, err)
		return
	}
	respond(w, s.player.Designate(i))
}

// segmentDuration sets ?seconds= on a segment; an empty value clears the
// override.
func (s *Server) segmentDuration(w http.ResponseWriter, r *http.Request) {
	i, err := urlIndex(r)
	if err != nil {
		respond(w, err)
		return
	}
	var seconds *float64
	if r.URL.Query().Get("seconds") != "" {
		v, err := queryFloat(r, "seconds")
		if err != nil {
			respond(w, err)
			return
		}
		seconds = &v
	}
	respond(w, s.player.SetSegmentDuration(i, seconds))
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Snapshot())
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", key, raw)
	}
	return v, nil
}

func urlIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid index %q", raw)
	}
	return i, nil
}

func respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case errors.Is(err, errBadRequest), errors.Is(err, player.ErrBadCommand):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, player.ErrQueueFull):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("control: write response: %v", err)
	}
}
