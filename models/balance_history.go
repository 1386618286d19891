package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial     TransactionType = "initial"
	TransactionTypeWagerPlaced TransactionType = "wager_placed"
	TransactionTypeWagerRefund TransactionType = "wager_refund"
	TransactionTypeRoundPayout TransactionType = "round_payout"
	TransactionTypeAdminAdjust TransactionType = "admin_adjust"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID              int64           `db:"id"`
	CommunityID     int64           `db:"community_id"`
	MemberID        int64           `db:"member_id"`
	BalanceBefore   int64           `db:"balance_before"`
	BalanceAfter    int64           `db:"balance_after"`
	ChangeAmount    int64           `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	RoundID         *string         `db:"round_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

// Account is a member's balance row in a community ledger
type Account struct {
	CommunityID int64     `db:"community_id"`
	MemberID    int64     `db:"member_id"`
	Balance     int64     `db:"balance"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// BalanceAdjustment is a single signed change to a member's balance
type BalanceAdjustment struct {
	MemberID        int64
	Delta           int64
	TransactionType TransactionType
	RoundID         string
}
