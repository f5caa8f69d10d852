package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-service/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(8*time.Second, WithClock(clock.Now)), clock
}

func TestSetAndGet(t *testing.T) {
	s, clock := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")
	clock.Advance(time.Second)
	s.Set("u2", "g1", models.TargetGroup, "Ben")
	s.Set("u3", "g2", models.TargetGroup, "Cid")

	got := s.Get("g1")
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, "Ana", got[0].SenderName)
	assert.Equal(t, "u2", got[1].UserID)
	assert.Empty(t, s.Get("missing"))
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	s, clock := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")

	clock.Advance(7 * time.Second)
	assert.Len(t, s.Get("g1"), 1)

	clock.Advance(2 * time.Second)
	assert.Empty(t, s.Get("g1"))
}

func TestRefreshExtendsLifetime(t *testing.T) {
	s, clock := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")
	clock.Advance(6 * time.Second)
	s.Set("u1", "g1", models.TargetGroup, "Ana")
	clock.Advance(6 * time.Second)

	assert.Len(t, s.Get("g1"), 1)
}

func TestClear(t *testing.T) {
	s, _ := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")

	assert.True(t, s.Clear("u1", "g1"))
	assert.False(t, s.Clear("u1", "g1"))
	assert.Empty(t, s.Get("g1"))
}

func TestClearUserRemovesEveryChat(t *testing.T) {
	s, _ := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")
	s.Set("u1", models.DirectRoomID("u1", "u2"), models.TargetDirect, "Ana")
	s.Set("u2", "g1", models.TargetGroup, "Ben")

	cleared := s.ClearUser("u1")
	assert.Len(t, cleared, 2)
	assert.Len(t, s.Get("g1"), 1)
	assert.Empty(t, s.Get(models.DirectRoomID("u1", "u2")))
}

func TestSweep(t *testing.T) {
	s, clock := newTestStore()
	s.Set("u1", "g1", models.TargetGroup, "Ana")
	clock.Advance(5 * time.Second)
	s.Set("u2", "g2", models.TargetGroup, "Ben")
	clock.Advance(4 * time.Second)

	assert.Equal(t, 1, s.Sweep())
	assert.Empty(t, s.Get("g1"))
	assert.Len(t, s.Get("g2"), 1)
}

func TestRunStopsWithContext(t *testing.T) {
	s := NewStore(time.Millisecond)
	s.Set("u1", "g1", models.TargetGroup, "Ana")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(s.Get("g1")) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewStore(0).TTL())
}
