package subscriber

import (
	"sync"
	"testing"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(queueSize int) *Hub {
	return NewHub(zap.NewNop().Sugar(), queueSize)
}

func point(value float64) models.MetricPoint {
	return models.MetricPoint{
		Timestamp: time.Now(),
		Value:     value,
		Name:      "cpu_usage_percent",
		Source:    "test",
	}
}

// collector накапливает доставленные значения под мьютексом.
type collector struct {
	mu     sync.Mutex
	values []float64
}

func (c *collector) callback(_ string, p models.MetricPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, p.Value)
}

func (c *collector) snapshot() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.values...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached within 2s")
}

func TestSubscribeAndNotify(t *testing.T) {
	h := newTestHub(0)
	defer h.Close()

	c := &collector{}
	require.NoError(t, h.Subscribe("ws-1", c.callback))
	assert.Equal(t, 1, h.Count())

	h.Notify("cpu_usage_percent", point(42))

	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
	assert.Equal(t, 42.0, c.snapshot()[0])
}

func TestSubscribeValidation(t *testing.T) {
	h := newTestHub(0)
	defer h.Close()

	assert.Error(t, h.Subscribe("", func(string, models.MetricPoint) {}))
	assert.Error(t, h.Subscribe("x", nil))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub(0)
	defer h.Close()

	c := &collector{}
	require.NoError(t, h.Subscribe("ws-1", c.callback))

	h.Notify("cpu_usage_percent", point(1))
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	h.Unsubscribe("ws-1")
	assert.Equal(t, 0, h.Count())

	h.Notify("cpu_usage_percent", point(2))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.snapshot(), 1, "unsubscribed callback must not receive points")
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(0)
	defer h.Close()

	require.NoError(t, h.Subscribe("broken", func(string, models.MetricPoint) {
		panic("always fails")
	}))

	good := &collector{}
	require.NoError(t, h.Subscribe("good", good.callback))

	for i := 0; i < 5; i++ {
		h.Notify("cpu_usage_percent", point(float64(i)))
	}

	waitFor(t, func() bool { return len(good.snapshot()) == 5 })
	assert.Equal(t, 2, h.Count(), "panicking subscriber stays registered")
}

func TestDropOldestOnOverflow(t *testing.T) {
	h := newTestHub(2)
	defer h.Close()

	started := make(chan struct{})
	gate := make(chan struct{})
	c := &collector{}

	require.NoError(t, h.Subscribe("slow", func(name string, p models.MetricPoint) {
		c.callback(name, p)
		if p.Value == 0 {
			close(started)
			<-gate
		}
	}))

	// Первое измерение блокирует горутину доставки внутри callback.
	h.Notify("cpu_usage_percent", point(0))
	<-started

	// Очередь ёмкостью 2 переполняется, старые измерения вытесняются.
	for i := 1; i <= 5; i++ {
		h.Notify("cpu_usage_percent", point(float64(i)))
	}

	close(gate)

	waitFor(t, func() bool { return len(c.snapshot()) == 3 })

	got := c.snapshot()
	assert.Equal(t, []float64{0, 4, 5}, got, "expected drop-oldest to keep the newest points")
	assert.Equal(t, uint64(3), h.Dropped())
}

func TestResubscribeReplacesCallback(t *testing.T) {
	h := newTestHub(0)
	defer h.Close()

	first := &collector{}
	second := &collector{}

	require.NoError(t, h.Subscribe("ws-1", first.callback))
	require.NoError(t, h.Subscribe("ws-1", second.callback))
	assert.Equal(t, 1, h.Count())

	h.Notify("cpu_usage_percent", point(7))

	waitFor(t, func() bool { return len(second.snapshot()) == 1 })
	assert.Empty(t, first.snapshot())
}

func TestCloseWaitsForWorkers(t *testing.T) {
	h := newTestHub(0)

	c := &collector{}
	require.NoError(t, h.Subscribe("ws-1", c.callback))

	for i := 0; i < 10; i++ {
		h.Notify("cpu_usage_percent", point(float64(i)))
	}

	h.Close()

	// После Close все поставленные в очередь измерения доставлены.
	assert.Len(t, c.snapshot(), 10)
	assert.Error(t, h.Subscribe("late", c.callback))
}
