package kanban

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records written messages in memory.
type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("write: broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) raw() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.raw() {
		var v map[string]any
		require.NoError(t, json.Unmarshal(m, &v))
		out = append(out, v)
	}
	return out
}

func TestRegistry_AdmitAndEvict(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	s := r.Admit(conn, nil)
	assert.NotEmpty(t, s.ID())
	assert.Nil(t, s.UserID())
	assert.Equal(t, 1, r.Count())

	r.Evict(s)
	assert.Equal(t, 0, r.Count())
	assert.True(t, conn.isClosed())
}

func TestRegistry_EvictTwiceIsNoop(t *testing.T) {
	r := NewRegistry()
	s := r.Admit(&fakeConn{}, nil)
	other := r.Admit(&fakeConn{}, nil)

	r.Evict(s)
	assert.NotPanics(t, func() { r.Evict(s) })
	assert.NotPanics(t, func() { r.Evict(nil) })
	assert.Equal(t, 1, r.Count())

	r.Evict(other)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_BroadcastReachesEverySession(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Admit(a, nil)
	r.Admit(b, nil)

	require.NoError(t, r.Broadcast(context.Background(), ColumnDeletedMessage{Action: ActionDeleteColumn, ColumnID: 3}))

	for _, conn := range []*fakeConn{a, b} {
		msgs := conn.raw()
		require.Len(t, msgs, 1)
		assert.JSONEq(t, `{"action":"delete_column","kanban_column_id":3}`, string(msgs[0]))
	}
}

func TestRegistry_BroadcastEvictsFailedSession(t *testing.T) {
	metrics := NewMetrics(nil)
	r := NewRegistry(WithRegistryMetrics(metrics))
	healthy, broken, alsoHealthy := &fakeConn{}, &fakeConn{fail: true}, &fakeConn{}
	r.Admit(healthy, nil)
	r.Admit(broken, nil)
	r.Admit(alsoHealthy, nil)

	delivered := r.BroadcastRaw([]byte(`{"action":"ping"}`))

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 2, r.Count())
	assert.True(t, broken.isClosed())
	assert.Len(t, healthy.raw(), 1)
	assert.Len(t, alsoHealthy.raw(), 1)
}

func TestRegistry_ConcurrentAdmitEvictBroadcast(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := r.Admit(&fakeConn{}, nil)
			r.BroadcastRaw([]byte(`{}`))
			r.Evict(s)
			r.Evict(s)
		}()
		go func() {
			defer wg.Done()
			r.BroadcastRaw([]byte(`{}`))
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Admit(a, nil)
	r.Admit(b, nil)

	r.CloseAll()

	assert.Equal(t, 0, r.Count())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
}

func TestRegistry_SessionGaugeTracksCount(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewRegistry(WithRegistryMetrics(metrics))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(evict bool) {
			defer wg.Done()
			s := r.Admit(&fakeConn{}, nil)
			if evict {
				r.Evict(s)
				r.Evict(s)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Count())
	assert.Equal(t, float64(r.Count()), testutil.ToFloat64(metrics.sessions))

	r.CloseAll()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.sessions))
}
