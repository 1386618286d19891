package service

import (
	"context"
	"fmt"

	"parimutuel/models"

	log "github.com/sirupsen/logrus"
)

// transactionalLedger implements Ledger on top of units of work. Every
// adjustment locks the account row for the duration of its transaction.
type transactionalLedger struct {
	uowFactory      UnitOfWorkFactory
	startingBalance int64
}

// NewTransactionalLedger creates a ledger backed by the unit of work factory
func NewTransactionalLedger(uowFactory UnitOfWorkFactory, startingBalance int64) Ledger {
	return &transactionalLedger{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

func (l *transactionalLedger) ForCommunity(communityID int64) CommunityLedger {
	return &communityLedger{
		communityID:     communityID,
		uowFactory:      l.uowFactory,
		startingBalance: l.startingBalance,
	}
}

// communityLedger is the per-community handle of a transactionalLedger
type communityLedger struct {
	communityID     int64
	uowFactory      UnitOfWorkFactory
	startingBalance int64
}

// GetBalance returns the member's balance, creating the account if needed
func (l *communityLedger) GetBalance(ctx context.Context, memberID int64) (int64, error) {
	uow := l.uowFactory.CreateForCommunity(l.communityID)
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := l.ensureAccount(ctx, uow, memberID)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account.Balance, nil
}

// AdjustBalance applies a signed change in its own transaction
func (l *communityLedger) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error) {
	uow := l.uowFactory.CreateForCommunity(l.communityID)
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balance, err := l.apply(ctx, uow, adj)
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// ApplyBatch applies every adjustment in a single transaction
func (l *communityLedger) ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error {
	if len(adjs) == 0 {
		return nil
	}

	uow := l.uowFactory.CreateForCommunity(l.communityID)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	for _, adj := range adjs {
		if _, err := l.apply(ctx, uow, adj); err != nil {
			return fmt.Errorf("failed to adjust balance for member %d: %w", adj.MemberID, err)
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *communityLedger) ensureAccount(ctx context.Context, uow UnitOfWork, memberID int64) (*models.Account, error) {
	account, created, err := uow.AccountRepository().GetOrCreateForUpdate(ctx, memberID, l.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if created {
		history := &models.BalanceHistory{
			CommunityID:     l.communityID,
			MemberID:        memberID,
			BalanceBefore:   0,
			BalanceAfter:    account.Balance,
			ChangeAmount:    account.Balance,
			TransactionType: models.TransactionTypeInitial,
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"community": l.communityID,
			"member":    memberID,
			"balance":   account.Balance,
		}).Debug("Created ledger account")
	}
	return account, nil
}

func (l *communityLedger) apply(ctx context.Context, uow UnitOfWork, adj models.BalanceAdjustment) (int64, error) {
	account, err := l.ensureAccount(ctx, uow, adj.MemberID)
	if err != nil {
		return 0, err
	}

	newBalance := account.Balance + adj.Delta
	if newBalance < 0 {
		return 0, models.ErrNegativeBalance.Withf("balance cannot go below zero: have %d, change %d", account.Balance, adj.Delta)
	}

	if err := uow.AccountRepository().UpdateBalance(ctx, adj.MemberID, newBalance); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	history := &models.BalanceHistory{
		CommunityID:     l.communityID,
		MemberID:        adj.MemberID,
		BalanceBefore:   account.Balance,
		BalanceAfter:    newBalance,
		ChangeAmount:    adj.Delta,
		TransactionType: adj.TransactionType,
	}
	if adj.RoundID != "" {
		roundID := adj.RoundID
		history.RoundID = &roundID
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return 0, err
	}

	account.Balance = newBalance
	return newBalance, nil
}
