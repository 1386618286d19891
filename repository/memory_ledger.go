package repository

import (
	"context"
	"sync"

	"parimutuel/events"
	"parimutuel/models"
	"parimutuel/service"
)

// MemoryLedger keeps balances in process memory. Balances are lost on restart.
type MemoryLedger struct {
	mu              sync.Mutex
	eventBus        *events.Bus
	startingBalance int64
	balances        map[int64]map[int64]int64
}

// NewMemoryLedger creates an empty in-memory ledger. eventBus may be nil.
func NewMemoryLedger(eventBus *events.Bus, startingBalance int64) *MemoryLedger {
	return &MemoryLedger{
		eventBus:        eventBus,
		startingBalance: startingBalance,
		balances:        make(map[int64]map[int64]int64),
	}
}

// ForCommunity returns the community's balance store
func (l *MemoryLedger) ForCommunity(communityID int64) service.CommunityLedger {
	return &memoryCommunityLedger{parent: l, communityID: communityID}
}

// getLocked returns the member's balance, creating the account when missing
func (l *MemoryLedger) getLocked(communityID, memberID int64, staged *events.TransactionalBus) int64 {
	accounts, ok := l.balances[communityID]
	if !ok {
		accounts = make(map[int64]int64)
		l.balances[communityID] = accounts
	}
	balance, ok := accounts[memberID]
	if !ok {
		balance = l.startingBalance
		accounts[memberID] = balance
		change := memberChange(memberID, 0, balance, models.TransactionTypeInitial, "")
		change.CommunityID = communityID
		staged.Publish(change)
	}
	return balance
}

type memoryCommunityLedger struct {
	parent      *MemoryLedger
	communityID int64
}

func (c *memoryCommunityLedger) GetBalance(ctx context.Context, memberID int64) (int64, error) {
	staged := events.NewTransactionalBus(c.parent.eventBus)

	c.parent.mu.Lock()
	balance := c.parent.getLocked(c.communityID, memberID, staged)
	c.parent.mu.Unlock()

	staged.Flush(ctx)
	return balance, nil
}

func (c *memoryCommunityLedger) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error) {
	balances, err := c.apply(ctx, []models.BalanceAdjustment{adj})
	if err != nil {
		return 0, err
	}
	return balances[adj.MemberID], nil
}

func (c *memoryCommunityLedger) ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error {
	if len(adjs) == 0 {
		return nil
	}
	_, err := c.apply(ctx, adjs)
	return err
}

// apply commits the adjustments atomically and returns the resulting balance
// of every member it touched, as written under the lock
func (c *memoryCommunityLedger) apply(ctx context.Context, adjs []models.BalanceAdjustment) (map[int64]int64, error) {
	staged := events.NewTransactionalBus(c.parent.eventBus)

	c.parent.mu.Lock()
	next, err := c.applyLocked(adjs, staged)
	c.parent.mu.Unlock()

	if err != nil {
		staged.Discard()
		return nil, err
	}
	staged.Flush(ctx)
	return next, nil
}

func (c *memoryCommunityLedger) applyLocked(adjs []models.BalanceAdjustment, staged *events.TransactionalBus) (map[int64]int64, error) {
	next := make(map[int64]int64)
	for _, adj := range adjs {
		before, ok := next[adj.MemberID]
		if !ok {
			before = c.parent.getLocked(c.communityID, adj.MemberID, staged)
		}
		after := before + adj.Delta
		if after < 0 {
			return nil, models.ErrNegativeBalance.Withf("balance cannot go below zero: have %d, change %d", before, adj.Delta)
		}
		next[adj.MemberID] = after

		change := memberChange(adj.MemberID, before, after, adj.TransactionType, adj.RoundID)
		change.CommunityID = c.communityID
		staged.Publish(change)
	}
	for member, balance := range next {
		c.parent.balances[c.communityID][member] = balance
	}
	return next, nil
}

var _ service.Ledger = (*MemoryLedger)(nil)
