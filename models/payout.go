package models

import (
	"time"
)

// ZeroWinnerPolicy decides what happens to the pool when nobody backed the
// winning contender
type ZeroWinnerPolicy string

const (
	// ZeroWinnerForfeit keeps every losing wager
	ZeroWinnerForfeit ZeroWinnerPolicy = "forfeit"
	// ZeroWinnerRefund returns every wager in full
	ZeroWinnerRefund ZeroWinnerPolicy = "refund"
)

// MemberPayout is the amount credited to one member at settlement or refund
type MemberPayout struct {
	MemberID       int64 `json:"member_id"`
	ContenderIndex int   `json:"contender_index"` // 0-based
	Wagered        int64 `json:"wagered"`
	Payout         int64 `json:"payout"`
}

// Profit returns the payout net of the original stake
func (m MemberPayout) Profit() int64 {
	return m.Payout - m.Wagered
}

// PayoutReport describes a settlement
type PayoutReport struct {
	RoundID       string `json:"round_id"`
	CommunityID   int64  `json:"community_id"`
	Title         string `json:"title"`
	WinnerIndex   int    `json:"winner_index"` // 0-based
	WinnerName    string `json:"winner_name"`
	WinnerPoolSum int64  `json:"winner_pool_sum"`
	LoserPoolSum  int64  `json:"loser_pool_sum"`
	// Distributable is the losing pool after the retained fraction, floored
	Distributable int64 `json:"distributable"`
	// Retained is what the house keeps, truncation included
	Retained         int64          `json:"retained"`
	Payouts          []MemberPayout `json:"payouts"`
	BiggestWinner    *MemberPayout  `json:"biggest_winner,omitempty"`
	ZeroWinnerRefund bool           `json:"zero_winner_refund"`
	SettledAt        time.Time      `json:"settled_at"`
}

// TotalPaid returns the sum of all payouts
func (r *PayoutReport) TotalPaid() int64 {
	var total int64
	for _, p := range r.Payouts {
		total += p.Payout
	}
	return total
}

// PayoutFor returns the payout credited to a member, 0 if none
func (r *PayoutReport) PayoutFor(memberID int64) int64 {
	for _, p := range r.Payouts {
		if p.MemberID == memberID {
			return p.Payout
		}
	}
	return 0
}

// RefundReport describes a round whose wagers were returned in full
type RefundReport struct {
	RoundID     string         `json:"round_id"`
	CommunityID int64          `json:"community_id"`
	Title       string         `json:"title"`
	Refunds     []MemberPayout `json:"refunds"`
	Total       int64          `json:"total"`
	Expired     bool           `json:"expired"`
	RefundedAt  time.Time      `json:"refunded_at"`
}

// RoundResult is the outcome of the last finished round in a community
type RoundResult struct {
	RoundID    string
	Title      string
	Contenders []string
	Status     RoundStatus
	FinishedAt time.Time
	Pool       *WagerPool
	Payout     *PayoutReport
	Refund     *RefundReport
}
