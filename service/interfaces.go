package service

import (
	"context"
	"time"

	"parimutuel/events"
	"parimutuel/models"
)

// AccountRepository defines the interface for ledger account data access.
// Implementations are scoped to one community.
type AccountRepository interface {
	// GetOrCreateForUpdate locks the member's account row, creating it with
	// defaultBalance when missing. created reports whether it was inserted.
	GetOrCreateForUpdate(ctx context.Context, memberID int64, defaultBalance int64) (account *models.Account, created bool, err error)

	// UpdateBalance sets the member's balance
	UpdateBalance(ctx context.Context, memberID int64, newBalance int64) error
}

// BalanceHistoryRepository defines the interface for balance history data access
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error
}

// UnitOfWork groups repository calls into one transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work scoped to a community
type UnitOfWorkFactory interface {
	CreateForCommunity(communityID int64) UnitOfWork
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// Ledger resolves the balance store for a community
type Ledger interface {
	ForCommunity(communityID int64) CommunityLedger
}

// CommunityLedger is a per-community balance store. Balances never go
// below zero; accounts are created with the default balance on first use.
type CommunityLedger interface {
	// GetBalance returns the member's balance
	GetBalance(ctx context.Context, memberID int64) (int64, error)

	// AdjustBalance applies a signed change and returns the new balance.
	// It fails with models.ErrNegativeBalance when the result would be negative.
	AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error)

	// ApplyBatch applies every adjustment or none of them
	ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error
}

// Renderer displays round state. Implementations must be safe to call
// from scheduler goroutines.
type Renderer interface {
	RenderStatus(ctx context.Context, snapshot *models.RoundSnapshot) error
}

// RoundService is the command surface of the round engine
type RoundService interface {
	// OpenRound starts a round in the community
	OpenRound(ctx context.Context, communityID int64, title string, contenders []string, duration time.Duration) (*models.RoundSnapshot, error)

	// PlaceWager debits the member and adds the wager to the pool
	PlaceWager(ctx context.Context, communityID, memberID int64, contender int, amount int64) (*WagerReceipt, error)

	// CloseRound stops betting
	CloseRound(ctx context.Context, communityID int64, callerIsOperator bool) (*CloseResult, error)

	// DeclareWinner settles the round and credits the winners
	DeclareWinner(ctx context.Context, communityID int64, contender int, callerIsOperator bool) (*models.PayoutReport, error)

	// Refund returns every wager and finishes the round
	Refund(ctx context.Context, communityID int64, callerIsOperator bool) (*models.RefundReport, error)

	// GetStatus returns the current round snapshot
	GetStatus(communityID int64) (*models.RoundSnapshot, error)

	// ListWagers returns the wagers in the current round, optionally for one contender
	ListWagers(communityID int64, contender int) ([]WagerListing, error)

	// LastResult returns the outcome of the previous round, nil if none
	LastResult(communityID int64) *models.RoundResult

	// GetBalance returns a member's balance
	GetBalance(ctx context.Context, communityID, memberID int64) (int64, error)

	// AdjustBalance changes a member's balance by delta
	AdjustBalance(ctx context.Context, communityID, memberID, delta int64, callerIsOperator bool) (int64, error)
}
