package repository

import (
	"context"
	"fmt"

	"parimutuel/models"
)

// BalanceHistoryRepository implements service.BalanceHistoryRepository for one community
type BalanceHistoryRepository struct {
	q           queryable
	communityID int64
}

// newBalanceHistoryRepository creates a balance history repository bound to a transaction
func newBalanceHistoryRepository(tx queryable, communityID int64) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx, communityID: communityID}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	query := `
		INSERT INTO balance_history
		(community_id, member_id, balance_before, balance_after, change_amount, transaction_type, round_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		r.communityID,
		history.MemberID,
		history.BalanceBefore,
		history.BalanceAfter,
		history.ChangeAmount,
		history.TransactionType,
		history.RoundID,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for member %d: %w", history.MemberID, err)
	}

	history.CommunityID = r.communityID
	return nil
}
