package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinContenders = 2
	MaxContenders = 10
)

// RoundStatus represents the state of a round
type RoundStatus string

const (
	RoundStatusOpen     RoundStatus = "open"
	RoundStatusClosed   RoundStatus = "closed"
	RoundStatusSettled  RoundStatus = "settled"
	RoundStatusRefunded RoundStatus = "refunded"
	RoundStatusExpired  RoundStatus = "expired"
)

// IsTerminal reports whether no further transitions are possible
func (s RoundStatus) IsTerminal() bool {
	switch s {
	case RoundStatusSettled, RoundStatusRefunded, RoundStatusExpired:
		return true
	}
	return false
}

// Round is a single wagering event in a community
type Round struct {
	ID          string
	CommunityID int64
	Title       string
	Contenders  []string
	OpenedAt    time.Time
	Deadline    time.Time
	ClosedAt    *time.Time
	Status      RoundStatus
	Pool        *WagerPool
}

// NewRound validates the inputs and creates an open round with an empty pool
func NewRound(communityID int64, title string, contenders []string, openedAt time.Time, duration time.Duration) (*Round, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(contenders) < MinContenders || len(contenders) > MaxContenders {
		return nil, ErrInvalidContenderCount.Withf("a round needs between %d and %d contenders, got %d", MinContenders, MaxContenders, len(contenders))
	}
	if duration <= 0 {
		return nil, ErrNonPositiveDuration
	}

	names := make([]string, len(contenders))
	seen := make(map[string]bool, len(contenders))
	for i, name := range contenders {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrEmptyContender
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, ErrDuplicateContender.Withf("contender %q is listed twice", name)
		}
		seen[key] = true
		names[i] = name
	}

	return &Round{
		ID:          uuid.New().String(),
		CommunityID: communityID,
		Title:       title,
		Contenders:  names,
		OpenedAt:    openedAt,
		Deadline:    openedAt.Add(duration),
		Status:      RoundStatusOpen,
		Pool:        NewWagerPool(len(names)),
	}, nil
}

// IsOpen checks if the round is accepting wagers by status
func (r *Round) IsOpen() bool {
	return r.Status == RoundStatusOpen
}

// IsTerminal checks if the round is finished
func (r *Round) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// DeadlinePassed checks if betting time is over at now
func (r *Round) DeadlinePassed(now time.Time) bool {
	return !now.Before(r.Deadline)
}

// Close moves an open round to closed. It returns false when the round was
// not open, leaving it untouched.
func (r *Round) Close(now time.Time) bool {
	if r.Status != RoundStatusOpen {
		return false
	}
	r.Status = RoundStatusClosed
	r.ClosedAt = &now
	return true
}

// TotalPool returns the sum of every wager in the round
func (r *Round) TotalPool() int64 {
	return r.Pool.TotalAll()
}

// ContenderIndex converts a 1-based contender number to a pool index
func (r *Round) ContenderIndex(number int) (int, error) {
	if number < 1 || number > len(r.Contenders) {
		return 0, ErrInvalidContenderIndex.Withf("contender must be between 1 and %d", len(r.Contenders))
	}
	return number - 1, nil
}

// ContenderSnapshot is the display state of one contender
type ContenderSnapshot struct {
	Number          int     `json:"number"`
	Name            string  `json:"name"`
	Total           int64   `json:"total"`
	Count           int     `json:"count"`
	TopBettorID     int64   `json:"top_bettor_id,omitempty"`
	TopBettorAmount int64   `json:"top_bettor_amount,omitempty"`
	Percentage      float64 `json:"percentage"`
	Odds            float64 `json:"odds"`
}

// RoundSnapshot is a read-only view of a round for renderers
type RoundSnapshot struct {
	RoundID          string              `json:"round_id"`
	CommunityID      int64               `json:"community_id"`
	Title            string              `json:"title"`
	Status           RoundStatus         `json:"status"`
	Contenders       []ContenderSnapshot `json:"contenders"`
	TotalPool        int64               `json:"total_pool"`
	Deadline         time.Time           `json:"deadline"`
	SecondsRemaining int64               `json:"seconds_remaining"`
}

// Snapshot captures the round state at now
func (r *Round) Snapshot(now time.Time) *RoundSnapshot {
	pcts := r.Pool.Percentages()
	odds := r.Pool.Odds()

	contenders := make([]ContenderSnapshot, len(r.Contenders))
	for i, name := range r.Contenders {
		cs := ContenderSnapshot{
			Number:     i + 1,
			Name:       name,
			Total:      r.Pool.TotalFor(i),
			Count:      r.Pool.CountFor(i),
			Percentage: pcts[i],
			Odds:       odds[i],
		}
		if member, amount, ok := r.Pool.TopWagerFor(i); ok {
			cs.TopBettorID = member
			cs.TopBettorAmount = amount
		}
		contenders[i] = cs
	}

	var remaining int64
	if r.Status == RoundStatusOpen && now.Before(r.Deadline) {
		remaining = int64(r.Deadline.Sub(now).Seconds())
	}

	return &RoundSnapshot{
		RoundID:          r.ID,
		CommunityID:      r.CommunityID,
		Title:            r.Title,
		Status:           r.Status,
		Contenders:       contenders,
		TotalPool:        r.Pool.TotalAll(),
		Deadline:         r.Deadline,
		SecondsRemaining: remaining,
	}
}

// Fingerprint identifies the rendered content of a snapshot. The countdown
// is left out since renderers show the deadline as a relative timestamp.
func (s *RoundSnapshot) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d", s.RoundID, s.Status, s.TotalPool)
	for _, c := range s.Contenders {
		fmt.Fprintf(&b, "|%d:%d:%d:%d", c.Total, c.Count, c.TopBettorID, c.TopBettorAmount)
	}
	return b.String()
}
