package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestLimiter_BurstThenRefill(t *testing.T) {
	clk := newClock()
	l := newLimiter(Config{RequestsPerSecond: 2, Burst: 3}, clk.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "burst token %d", i)
	}
	assert.False(t, l.Allow())

	clk.Advance(500 * time.Millisecond)
	assert.True(t, l.Allow(), "one token refilled after 0.5s at 2 rps")
	assert.False(t, l.Allow())

	clk.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow())
	}
	assert.False(t, l.Allow(), "refill is capped at burst")
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestManager_KeysAreIndependent(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	clk := newClock()
	m.now = clk.Now

	assert.True(t, m.Allow("10.0.0.1"))
	assert.False(t, m.Allow("10.0.0.1"))
	assert.True(t, m.Allow("10.0.0.2"))
	assert.Same(t, m.GetLimiter("10.0.0.1"), m.GetLimiter("10.0.0.1"))
	assert.Equal(t, 2, m.Len())
}

func TestManager_Prune(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	clk := newClock()
	m.now = clk.Now

	m.Allow("old")
	clk.Advance(10 * time.Minute)
	m.Allow("fresh")

	assert.Equal(t, 1, m.Prune(5*time.Minute))
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Allow("old"), "a pruned key starts with a full bucket")
}

func TestConfig_Enabled(t *testing.T) {
	assert.True(t, Config{RequestsPerSecond: 5, Burst: 10}.Enabled())
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{RequestsPerSecond: 5}.Enabled())
}

func TestManager_StartPrunerStops(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.StartPruner(time.Millisecond, time.Hour, stop)
		close(done)
	}()
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}
