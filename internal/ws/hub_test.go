package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []string
	fail     bool
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, string(data))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestBroadcastReachesOnlyThatForm(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.AddConnection("f1", a)
	h.AddConnection("f1", b)
	h.AddConnection("f2", other)

	h.Broadcast("f1", Message{Type: EventResponseStarted, Data: map[string]string{"response_id": "r1"}})

	want := `{"type":"response_started","data":{"response_id":"r1"}}`
	require.Len(t, a.messages, 1)
	assert.JSONEq(t, want, a.messages[0])
	assert.Len(t, b.messages, 1)
	assert.Empty(t, other.messages)
}

func TestBroadcastDropsFailedConnections(t *testing.T) {
	h := NewHub(zap.NewNop())
	good, bad := &fakeConn{}, &fakeConn{fail: true}
	h.AddConnection("f1", good)
	h.AddConnection("f1", bad)

	h.Broadcast("f1", Message{Type: EventResponseSubmitted})

	assert.Equal(t, 1, h.Connections("f1"))
	assert.True(t, bad.closed)
	assert.False(t, good.closed)
}

func TestRemoveConnection(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := &fakeConn{}
	h.AddConnection("f1", c)
	h.RemoveConnection("f1", c)
	h.RemoveConnection("f1", c)

	assert.Equal(t, 0, h.Connections("f1"))
	assert.True(t, c.closed)

	// No watchers is not an error.
	h.Broadcast("f1", Message{Type: EventResponseStarted})
}
