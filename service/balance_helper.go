package service

import (
	"context"
	"fmt"

	"parimutuel/events"
	"parimutuel/models"
)

// RecordBalanceChange records a balance history entry and emits the
// matching event. This is the single entry point for balance changes made
// through a unit of work.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	event := events.BalanceChangeEvent{
		CommunityID:     history.CommunityID,
		MemberID:        history.MemberID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	}
	if history.RoundID != nil {
		event.RoundID = *history.RoundID
	}
	uow.EventBus().Publish(event)

	return nil
}
