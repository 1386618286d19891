package repository

import (
	"context"
	"errors"
	"fmt"

	"parimutuel/models"

	"github.com/jackc/pgx/v5"
)

// AccountRepository implements service.AccountRepository for one community
type AccountRepository struct {
	q           queryable
	communityID int64
}

// newAccountRepository creates an account repository bound to a transaction
func newAccountRepository(tx queryable, communityID int64) *AccountRepository {
	return &AccountRepository{q: tx, communityID: communityID}
}

// GetOrCreateForUpdate inserts the account if missing and locks its row
func (r *AccountRepository) GetOrCreateForUpdate(ctx context.Context, memberID int64, defaultBalance int64) (*models.Account, bool, error) {
	insert := `
		INSERT INTO ledger_accounts (community_id, member_id, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (community_id, member_id) DO NOTHING
		RETURNING community_id, member_id, balance, created_at, updated_at
	`

	var account models.Account
	err := r.q.QueryRow(ctx, insert, r.communityID, memberID, defaultBalance).Scan(
		&account.CommunityID,
		&account.MemberID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == nil {
		// A freshly inserted row is already locked by this transaction
		return &account, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create account for member %d: %w", memberID, err)
	}

	query := `
		SELECT community_id, member_id, balance, created_at, updated_at
		FROM ledger_accounts
		WHERE community_id = $1 AND member_id = $2
		FOR UPDATE
	`
	err = r.q.QueryRow(ctx, query, r.communityID, memberID).Scan(
		&account.CommunityID,
		&account.MemberID,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock account for member %d: %w", memberID, err)
	}
	return &account, false, nil
}

// UpdateBalance sets the member's balance
func (r *AccountRepository) UpdateBalance(ctx context.Context, memberID int64, newBalance int64) error {
	query := `
		UPDATE ledger_accounts
		SET balance = $1, updated_at = NOW()
		WHERE community_id = $2 AND member_id = $3
	`

	result, err := r.q.Exec(ctx, query, newBalance, r.communityID, memberID)
	if err != nil {
		return fmt.Errorf("failed to update balance for member %d: %w", memberID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account for member %d not found in community %d", memberID, r.communityID)
	}
	return nil
}
