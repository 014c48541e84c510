// Package publisher streams the playhead to NATS.
package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/player"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc       *nats.Conn
	conn     Conn
	prefix   string
	interval time.Duration
	metrics  PublisherMetrics

	mu        sync.Mutex
	last      time.Time
	lastState playback.State
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, interval time.Duration, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gps-journey-player"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			monitoring.Logf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			monitoring.Logf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			monitoring.Logf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := New(nc, prefix, interval, m)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection. interval throttles per-frame messages;
// zero publishes every frame.
func New(conn Conn, prefix string, interval time.Duration, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix, interval: interval, metrics: m, lastState: -1}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	JourneyID    string    `json:"journeyId"`
	Timestamp    time.Time `json:"timestamp"`
	Progress     float64   `json:"progress"`
	Elapsed      float64   `json:"elapsed"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Ele          float64   `json:"ele"`
	Bearing      float64   `json:"bearing"`
	SegmentIndex int       `json:"segmentIndex"`
	State        string    `json:"state"`
}

// Subject is the position subject for a journey.
func (p *NATSPublisher) Subject(journeyID string) string {
	return fmt.Sprintf("%s.%s.position", subjectToken(p.prefix), subjectToken(journeyID))
}

func (p *NATSPublisher) PublishPosition(msg PositionMessage) error {
	subject := p.Subject(msg.JourneyID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// ObserveFrame publishes the playhead at most once per interval, and
// immediately whenever the playback state changes.
func (p *NATSPublisher) ObserveFrame(s player.State, _ time.Duration) {
	if s.JourneyID == "" {
		return
	}
	now := time.Now()
	p.mu.Lock()
	due := s.Playback != p.lastState || now.Sub(p.last) >= p.interval
	if due {
		p.last, p.lastState = now, s.Playback
	}
	p.mu.Unlock()
	if !due {
		return
	}

	err := p.PublishPosition(PositionMessage{
		JourneyID:    s.JourneyID,
		Timestamp:    now.UTC(),
		Progress:     s.Progress,
		Elapsed:      s.Elapsed,
		Lat:          s.Lat,
		Lon:          s.Lon,
		Ele:          s.Ele,
		Bearing:      s.Bearing,
		SegmentIndex: s.SegmentIndex,
		State:        s.Playback.String(),
	})
	if err != nil {
		monitoring.Logf("nats publish error: %v", err)
	}
}

func (p *NATSPublisher) ObserveDrift(float64, float64) {}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
