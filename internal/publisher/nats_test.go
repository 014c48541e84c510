package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gps_journey_player/internal/monitoring"
	"gps_journey_player/internal/playback"
	"gps_journey_player/internal/player"
)

func init() {
	monitoring.SetLogger(nil)
}

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

type countingMetrics struct{ ok, errs, observed int }

func (m *countingMetrics) NATSPublishedInc()            { m.ok++ }
func (m *countingMetrics) NATSPublishErrInc()           { m.errs++ }
func (m *countingMetrics) PublishObserve(time.Duration) { m.observed++ }
func (m *countingMetrics) NATSSetConnected(bool)        {}

func TestSubjectToken(t *testing.T) {
	tests := []struct{ in, want string }{
		{"journey", "journey"},
		{" a b ", "a_b"},
		{"x.y>*", "x_y__"},
		{"", "_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subjectToken(tt.in), tt.in)
	}

	p := New(&fakeConn{}, "rides.eu", 0, nil)
	assert.Equal(t, "rides_eu.abc.position", p.Subject("abc"))
}

func TestObserveFrame_Throttles(t *testing.T) {
	conn := &fakeConn{}
	m := &countingMetrics{}
	p := New(conn, "journey", time.Hour, m)

	s := player.State{JourneyID: "j1", Progress: 0.1, Lat: 47.3, Lon: 8.5, SegmentIndex: 2, Playback: playback.Playing}
	p.ObserveFrame(s, 0)
	s.Progress = 0.2
	p.ObserveFrame(s, 0)
	require.Len(t, conn.msgs, 1)

	// A state change is always published.
	s.Playback = playback.Completed
	p.ObserveFrame(s, 0)
	require.Len(t, conn.msgs, 2)
	assert.Equal(t, 2, m.ok)
	assert.Equal(t, 2, m.observed)

	var msg PositionMessage
	require.NoError(t, json.Unmarshal(conn.msgs[1].data, &msg))
	assert.Equal(t, "journey.j1.position", conn.msgs[1].subject)
	assert.Equal(t, "j1", msg.JourneyID)
	assert.Equal(t, 0.2, msg.Progress)
	assert.Equal(t, 2, msg.SegmentIndex)
	assert.Equal(t, "completed", msg.State)
}

func TestObserveFrame_NoJourney(t *testing.T) {
	conn := &fakeConn{}
	New(conn, "journey", 0, nil).ObserveFrame(player.State{}, 0)
	assert.Empty(t, conn.msgs)
}

func TestPublishPosition_Error(t *testing.T) {
	m := &countingMetrics{}
	p := New(&fakeConn{err: errors.New("nats: connection closed")}, "journey", 0, m)
	require.Error(t, p.PublishPosition(PositionMessage{JourneyID: "j"}))
	assert.Equal(t, 1, m.errs)
	assert.Zero(t, m.ok)
}
