package testutil

import (
	"context"
	"errors"
	"testing"

	"parimutuel/database"
	"parimutuel/models"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// CreateTestBalanceHistory creates a balance history entry for a debit of 100
func CreateTestBalanceHistory(memberID int64, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		MemberID:        memberID,
		BalanceBefore:   1000,
		BalanceAfter:    900,
		ChangeAmount:    -100,
		TransactionType: transactionType,
	}
}

// CreateTestRoundHistory creates a history entry tied to a round
func CreateTestRoundHistory(memberID int64, roundID string, before, after int64, transactionType models.TransactionType) *models.BalanceHistory {
	history := CreateTestBalanceHistory(memberID, transactionType)
	history.BalanceBefore = before
	history.BalanceAfter = after
	history.ChangeAmount = after - before
	history.RoundID = &roundID
	return history
}

// SeedAccount inserts an account row with the given balance
func SeedAccount(t *testing.T, db *database.DB, communityID, memberID, balance int64) {
	t.Helper()
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(),
			`INSERT INTO ledger_accounts (community_id, member_id, balance) VALUES ($1, $2, $3)`,
			communityID, memberID, balance)
		return err
	})
	require.NoError(t, err)
}

// AccountBalance reads a stored balance. ok is false when the account does not exist.
func AccountBalance(t *testing.T, db *database.DB, communityID, memberID int64) (balance int64, ok bool) {
	t.Helper()
	err := db.Pool.QueryRow(context.Background(),
		`SELECT balance FROM ledger_accounts WHERE community_id = $1 AND member_id = $2`,
		communityID, memberID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false
	}
	require.NoError(t, err)
	return balance, true
}

// MemberHistory returns a member's history entries, newest first
func MemberHistory(t *testing.T, db *database.DB, communityID, memberID int64) []*models.BalanceHistory {
	t.Helper()
	return queryHistory(t, db, `
		SELECT id, community_id, member_id, balance_before, balance_after, change_amount,
		       transaction_type, round_id, created_at
		FROM balance_history
		WHERE community_id = $1 AND member_id = $2
		ORDER BY id DESC`, communityID, memberID)
}

// RoundHistory returns the history entries tied to a round in insertion order
func RoundHistory(t *testing.T, db *database.DB, communityID int64, roundID string) []*models.BalanceHistory {
	t.Helper()
	return queryHistory(t, db, `
		SELECT id, community_id, member_id, balance_before, balance_after, change_amount,
		       transaction_type, round_id, created_at
		FROM balance_history
		WHERE community_id = $1 AND round_id = $2
		ORDER BY id ASC`, communityID, roundID)
}

func queryHistory(t *testing.T, db *database.DB, query string, args ...any) []*models.BalanceHistory {
	rows, err := db.Pool.Query(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var histories []*models.BalanceHistory
	for rows.Next() {
		var h models.BalanceHistory
		require.NoError(t, rows.Scan(
			&h.ID,
			&h.CommunityID,
			&h.MemberID,
			&h.BalanceBefore,
			&h.BalanceAfter,
			&h.ChangeAmount,
			&h.TransactionType,
			&h.RoundID,
			&h.CreatedAt,
		))
		histories = append(histories, &h)
	}
	require.NoError(t, rows.Err())
	return histories
}
