package service

import (
	"context"
	"sync"
	"time"

	"parimutuel/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RoundHooks connect the scheduler to a round without giving it access to
// round state. Hooks are called without any scheduler lock held except
// Render, which runs under the task lock so Stop can wait for it. Stop
// cancels the render context first, so Render must return once ctx is done.
type RoundHooks struct {
	// Snapshot returns the current state, or false once the round left open
	Snapshot func() (*models.RoundSnapshot, bool)
	// Render displays a changed snapshot. It must not call back into the
	// round manager.
	Render func(ctx context.Context, snapshot *models.RoundSnapshot) error
	// OnDeadline is called once when the deadline passes
	OnDeadline func(ctx context.Context)
}

// roundTask tracks the goroutines of one round phase
type roundTask struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// stop cancels the task context and marks it stopped. The context is
// cancelled before taking the lock so an in-flight render is interrupted
// instead of waited on. Once stop returns no further render runs.
func (t *roundTask) stop() {
	t.cancel()
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *roundTask) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Scheduler drives the time-based effects of rounds: periodic status
// renders and the deadline watch while a round is open, and the expiry
// watch once it is closed. It holds no business logic.
type Scheduler struct {
	refreshInterval time.Duration
	pollInterval    time.Duration
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.Mutex
	open   map[string]*roundTask
	expiry map[string]*roundTask
}

// NewScheduler creates a scheduler. refreshInterval paces status renders,
// pollInterval paces deadline and expiry checks.
func NewScheduler(refreshInterval, pollInterval time.Duration, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		refreshInterval: refreshInterval,
		pollInterval:    pollInterval,
		now:             now,
		ctx:             ctx,
		cancel:          cancel,
		open:            make(map[string]*roundTask),
		expiry:          make(map[string]*roundTask),
	}
}

// StartRound begins the status refresh and deadline watch for an open round
func (s *Scheduler) StartRound(roundID string, deadline time.Time, hooks RoundHooks) {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &roundTask{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.open[roundID]; ok {
		prev.stop()
	}
	s.open[roundID] = task
	s.mu.Unlock()

	logger := log.WithField("roundID", roundID)
	logger.Debug("Round scheduler started")

	s.group.Go(func() error {
		s.refreshLoop(ctx, task, hooks)
		return nil
	})
	s.group.Go(func() error {
		if s.waitUntil(ctx, task, deadline) && hooks.OnDeadline != nil {
			logger.Info("Round deadline reached")
			hooks.OnDeadline(ctx)
		}
		return nil
	})
}

// StopRound stops the refresh and deadline tasks of a round. It does not
// wait for the goroutines to exit, but no render starts after it returns.
func (s *Scheduler) StopRound(roundID string) {
	s.mu.Lock()
	task, ok := s.open[roundID]
	delete(s.open, roundID)
	s.mu.Unlock()

	if ok {
		task.stop()
		log.WithField("roundID", roundID).Debug("Round scheduler stopped")
	}
}

// StartExpiry calls onExpire once expiresAt passes unless StopExpiry runs first
func (s *Scheduler) StartExpiry(roundID string, expiresAt time.Time, onExpire func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &roundTask{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.expiry[roundID]; ok {
		prev.stop()
	}
	s.expiry[roundID] = task
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"roundID":   roundID,
		"expiresAt": expiresAt,
	}).Debug("Round expiry watch started")

	s.group.Go(func() error {
		if s.waitUntil(ctx, task, expiresAt) {
			onExpire(ctx)
		}
		return nil
	})
}

// StopExpiry cancels a pending expiry watch
func (s *Scheduler) StopExpiry(roundID string) {
	s.mu.Lock()
	task, ok := s.expiry[roundID]
	delete(s.expiry, roundID)
	s.mu.Unlock()

	if ok {
		task.stop()
	}
}

// ActiveTasks returns the number of scheduled open rounds and expiry watches
func (s *Scheduler) ActiveTasks() (open int, expiring int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open), len(s.expiry)
}

// Shutdown stops every task and waits for the goroutines to exit
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, task := range s.open {
		task.stop()
		delete(s.open, id)
	}
	for id, task := range s.expiry {
		task.stop()
		delete(s.expiry, id)
	}
	s.mu.Unlock()

	s.cancel()
	_ = s.group.Wait()
	log.Info("Round scheduler shut down")
}

// waitUntil polls the clock until at passes. It returns false when the task
// was cancelled first.
func (s *Scheduler) waitUntil(ctx context.Context, task *roundTask, at time.Time) bool {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if task.isStopped() {
			return false
		}
		if !s.now().Before(at) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) refreshLoop(ctx context.Context, task *roundTask, hooks RoundHooks) {
	if hooks.Snapshot == nil || hooks.Render == nil {
		return
	}

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	var lastFingerprint string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// The snapshot hook takes the round lock, so it must run before the
		// task lock to keep lock order consistent with StopRound callers.
		snapshot, ok := hooks.Snapshot()
		if !ok {
			return
		}
		fingerprint := snapshot.Fingerprint()
		if fingerprint == lastFingerprint {
			continue
		}

		task.mu.Lock()
		if task.stopped {
			task.mu.Unlock()
			return
		}
		if err := hooks.Render(ctx, snapshot); err != nil {
			log.WithError(err).WithField("roundID", snapshot.RoundID).Warn("Failed to render round status")
		} else {
			lastFingerprint = fingerprint
		}
		task.mu.Unlock()
	}
}
