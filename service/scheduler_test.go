package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"parimutuel/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// snapshotSource is a mutable snapshot the refresh loop polls
type snapshotSource struct {
	mu    sync.Mutex
	snap  *models.RoundSnapshot
	valid bool
}

func (s *snapshotSource) get() (*models.RoundSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return nil, false
	}
	copied := *s.snap
	return &copied, true
}

func (s *snapshotSource) setTotal(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TotalPool = total
}

func TestScheduler_Refresh(t *testing.T) {
	t.Run("renders only when the snapshot changes", func(t *testing.T) {
		s := NewScheduler(2*time.Millisecond, time.Hour, nil)
		t.Cleanup(s.Shutdown)

		source := &snapshotSource{snap: &models.RoundSnapshot{RoundID: "r1", Status: models.RoundStatusOpen}, valid: true}
		var renders atomic.Int32

		s.StartRound("r1", time.Now().Add(time.Hour), RoundHooks{
			Snapshot: source.get,
			Render: func(ctx context.Context, snapshot *models.RoundSnapshot) error {
				renders.Add(1)
				return nil
			},
		})

		require.Eventually(t, func() bool { return renders.Load() == 1 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(1), renders.Load(), "unchanged snapshot must not re-render")

		source.setTotal(50)
		require.Eventually(t, func() bool { return renders.Load() == 2 }, time.Second, time.Millisecond)
	})

	t.Run("no render after stop", func(t *testing.T) {
		s := NewScheduler(time.Millisecond, time.Hour, nil)
		t.Cleanup(s.Shutdown)

		var total atomic.Int64
		var stopped atomic.Bool
		var lateRender atomic.Bool

		s.StartRound("r2", time.Now().Add(time.Hour), RoundHooks{
			Snapshot: func() (*models.RoundSnapshot, bool) {
				// Always different so every tick wants to render
				return &models.RoundSnapshot{RoundID: "r2", TotalPool: total.Add(1)}, true
			},
			Render: func(ctx context.Context, snapshot *models.RoundSnapshot) error {
				if stopped.Load() {
					lateRender.Store(true)
				}
				time.Sleep(time.Millisecond)
				return nil
			},
		})

		time.Sleep(10 * time.Millisecond)
		s.StopRound("r2")
		stopped.Store(true)
		time.Sleep(20 * time.Millisecond)

		assert.False(t, lateRender.Load())
		open, _ := s.ActiveTasks()
		assert.Equal(t, 0, open)
	})

	t.Run("stop interrupts an in-flight render", func(t *testing.T) {
		s := NewScheduler(time.Millisecond, time.Hour, nil)
		t.Cleanup(s.Shutdown)

		started := make(chan struct{})
		var once sync.Once
		s.StartRound("r4", time.Now().Add(time.Hour), RoundHooks{
			Snapshot: func() (*models.RoundSnapshot, bool) {
				return &models.RoundSnapshot{RoundID: "r4"}, true
			},
			Render: func(ctx context.Context, snapshot *models.RoundSnapshot) error {
				once.Do(func() { close(started) })
				<-ctx.Done()
				return ctx.Err()
			},
		})

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("render never started")
		}

		stopped := make(chan struct{})
		go func() {
			s.StopRound("r4")
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("StopRound blocked on a render waiting for its context")
		}
	})

	t.Run("stops when the round leaves open", func(t *testing.T) {
		s := NewScheduler(time.Millisecond, time.Hour, nil)
		t.Cleanup(s.Shutdown)

		renderer := new(MockRenderer)
		renderer.On("RenderStatus", mock.Anything, mock.Anything).Return(errors.New("discord unavailable")).Maybe()

		source := &snapshotSource{snap: &models.RoundSnapshot{RoundID: "r3"}, valid: false}
		s.StartRound("r3", time.Now().Add(time.Hour), RoundHooks{
			Snapshot: source.get,
			Render:   renderer.RenderStatus,
		})

		time.Sleep(10 * time.Millisecond)
		renderer.AssertNotCalled(t, "RenderStatus", mock.Anything, mock.Anything)
	})
}

func TestScheduler_Deadline(t *testing.T) {
	t.Run("fires once when the deadline passes", func(t *testing.T) {
		clock := newTestClock()
		s := NewScheduler(time.Hour, time.Millisecond, clock.Now)
		t.Cleanup(s.Shutdown)

		var fired atomic.Int32
		s.StartRound("r1", clock.Now().Add(time.Minute), RoundHooks{
			OnDeadline: func(ctx context.Context) { fired.Add(1) },
		})

		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())

		clock.Advance(time.Minute)
		require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

		clock.Advance(time.Minute)
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(1), fired.Load())
	})

	t.Run("cancelled round never fires", func(t *testing.T) {
		clock := newTestClock()
		s := NewScheduler(time.Hour, time.Millisecond, clock.Now)
		t.Cleanup(s.Shutdown)

		var fired atomic.Int32
		s.StartRound("r2", clock.Now().Add(time.Minute), RoundHooks{
			OnDeadline: func(ctx context.Context) { fired.Add(1) },
		})
		s.StopRound("r2")

		clock.Advance(time.Hour)
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())
	})
}

func TestScheduler_Expiry(t *testing.T) {
	clock := newTestClock()
	s := NewScheduler(time.Hour, time.Millisecond, clock.Now)

	var expired, cancelled atomic.Int32
	s.StartExpiry("r1", clock.Now().Add(time.Minute), func(ctx context.Context) { expired.Add(1) })
	s.StartExpiry("r2", clock.Now().Add(time.Minute), func(ctx context.Context) { cancelled.Add(1) })
	s.StopExpiry("r2")

	_, expiring := s.ActiveTasks()
	assert.Equal(t, 1, expiring)

	clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), cancelled.Load())

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}
