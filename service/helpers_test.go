package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"parimutuel/events"
	"parimutuel/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory Ledger for round manager tests
type fakeLedger struct {
	mu              sync.Mutex
	startingBalance int64
	balances        map[int64]map[int64]int64
}

func newFakeLedger(startingBalance int64) *fakeLedger {
	return &fakeLedger{
		startingBalance: startingBalance,
		balances:        make(map[int64]map[int64]int64),
	}
}

func (l *fakeLedger) ForCommunity(communityID int64) CommunityLedger {
	return &fakeCommunityLedger{parent: l, communityID: communityID}
}

func (l *fakeLedger) set(communityID, memberID, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountsLocked(communityID)[memberID] = balance
}

func (l *fakeLedger) balance(communityID, memberID int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(communityID, memberID)
}

func (l *fakeLedger) accountsLocked(communityID int64) map[int64]int64 {
	accounts, ok := l.balances[communityID]
	if !ok {
		accounts = make(map[int64]int64)
		l.balances[communityID] = accounts
	}
	return accounts
}

func (l *fakeLedger) getLocked(communityID, memberID int64) int64 {
	accounts := l.accountsLocked(communityID)
	balance, ok := accounts[memberID]
	if !ok {
		balance = l.startingBalance
		accounts[memberID] = balance
	}
	return balance
}

type fakeCommunityLedger struct {
	parent      *fakeLedger
	communityID int64
}

func (c *fakeCommunityLedger) GetBalance(ctx context.Context, memberID int64) (int64, error) {
	return c.parent.balance(c.communityID, memberID), nil
}

func (c *fakeCommunityLedger) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error) {
	l := c.parent
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.getLocked(c.communityID, adj.MemberID) + adj.Delta
	if next < 0 {
		return 0, models.ErrNegativeBalance
	}
	l.accountsLocked(c.communityID)[adj.MemberID] = next
	return next, nil
}

func (c *fakeCommunityLedger) ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error {
	l := c.parent
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make(map[int64]int64)
	for _, adj := range adjs {
		current, ok := next[adj.MemberID]
		if !ok {
			current = l.getLocked(c.communityID, adj.MemberID)
		}
		current += adj.Delta
		if current < 0 {
			return models.ErrNegativeBalance
		}
		next[adj.MemberID] = current
	}
	for member, balance := range next {
		l.accountsLocked(c.communityID)[member] = balance
	}
	return nil
}

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventRecorder collects events emitted on a bus
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func recordEvents(bus *events.Bus) *eventRecorder {
	r := &eventRecorder{}
	bus.SubscribeAll(func(ctx context.Context, e events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *eventRecorder) has(t events.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Type() == t {
			return true
		}
	}
	return false
}

type testManagerOptions struct {
	policy   PayoutPolicy
	grace    time.Duration
	ledger   Ledger
	refresh  time.Duration
	renderer Renderer
}

type testManager struct {
	*RoundManager
	ledger    *fakeLedger
	clock     *testClock
	scheduler *Scheduler
	events    *eventRecorder
}

func newTestManager(t *testing.T, opts testManagerOptions) *testManager {
	t.Helper()

	clock := newTestClock()
	fake := newFakeLedger(1000)
	ledger := opts.ledger
	if ledger == nil {
		ledger = fake
	}
	if opts.policy.ZeroWinnerPolicy == "" {
		opts.policy.ZeroWinnerPolicy = models.ZeroWinnerForfeit
	}
	if opts.grace == 0 {
		opts.grace = time.Hour
	}

	if opts.refresh == 0 {
		opts.refresh = time.Hour
	}

	scheduler := NewScheduler(opts.refresh, 2*time.Millisecond, clock.Now)
	t.Cleanup(scheduler.Shutdown)

	bus := events.NewBus()
	recorder := recordEvents(bus)

	manager, err := NewRoundManager(ledger, scheduler, bus, RoundManagerConfig{
		Policy:                opts.policy,
		SettlementGracePeriod: opts.grace,
		Now:                   clock.Now,
	})
	require.NoError(t, err)
	if opts.renderer != nil {
		manager.SetRenderer(opts.renderer)
	}

	return &testManager{
		RoundManager: manager,
		ledger:       fake,
		clock:        clock,
		scheduler:    scheduler,
		events:       recorder,
	}
}

func mockLedgerFor(communityID int64, ledger *MockCommunityLedger) *MockLedger {
	m := new(MockLedger)
	m.On("ForCommunity", communityID).Return(ledger)
	return m
}

func assertAllMockExpectations(t *testing.T, mocks ...interface{}) {
	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(mock.TestingT) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}
