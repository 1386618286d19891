package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parimutuel/events"
	"parimutuel/models"

	log "github.com/sirupsen/logrus"
)

// expiryRetryDelay is how long an expiry waits before retrying a failed refund
const expiryRetryDelay = 30 * time.Second

// WagerReceipt is returned for an accepted wager
type WagerReceipt struct {
	RoundID         string
	ContenderNumber int
	ContenderName   string
	Amount          int64
	MemberTotal     int64
	NewBalance      int64
	Snapshot        *models.RoundSnapshot
}

// CloseResult is returned by CloseRound
type CloseResult struct {
	Snapshot      *models.RoundSnapshot
	AlreadyClosed bool
}

// WagerListing is one member's wager in the current round
type WagerListing struct {
	MemberID        int64
	ContenderNumber int
	ContenderName   string
	Amount          int64
}

// RoundManagerConfig holds the settlement and timing settings of a RoundManager
type RoundManagerConfig struct {
	Policy PayoutPolicy
	// SettlementGracePeriod is how long a closed round may wait for a winner
	// before it expires and every wager is refunded
	SettlementGracePeriod time.Duration
	Now                   func() time.Time
}

// community holds the round slot of one community. mu serializes every
// operation that reads and then writes round, pool or ledger state.
type community struct {
	mu      sync.Mutex
	id      int64
	ledger  CommunityLedger
	round   *models.Round
	last    *models.RoundResult
	removed bool
}

// RoundManager owns at most one round per community
type RoundManager struct {
	ledger    Ledger
	scheduler *Scheduler
	bus       *events.Bus
	policy    PayoutPolicy
	grace     time.Duration
	now       func() time.Time

	mu          sync.RWMutex
	communities map[int64]*community
	renderer    Renderer
}

var _ RoundService = (*RoundManager)(nil)

// NewRoundManager creates a round manager
func NewRoundManager(ledger Ledger, scheduler *Scheduler, bus *events.Bus, cfg RoundManagerConfig) (*RoundManager, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payout policy: %w", err)
	}
	if cfg.SettlementGracePeriod < 0 {
		return nil, fmt.Errorf("settlement grace period cannot be negative")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RoundManager{
		ledger:      ledger,
		scheduler:   scheduler,
		bus:         bus,
		policy:      cfg.Policy,
		grace:       cfg.SettlementGracePeriod,
		now:         now,
		communities: make(map[int64]*community),
	}, nil
}

// SetRenderer sets the renderer used for periodic status updates of rounds
// opened from now on
func (m *RoundManager) SetRenderer(r Renderer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderer = r
}

// RegisterCommunity resolves and caches the ledger handle for a community
func (m *RoundManager) RegisterCommunity(communityID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.communities[communityID]; ok {
		return
	}
	m.communities[communityID] = &community{
		id:     communityID,
		ledger: m.ledger.ForCommunity(communityID),
	}
	log.WithField("community", communityID).Debug("Registered community")
}

// RemoveCommunity drops the community's cached state. A running round is
// refunded first; the report is nil when there was none.
func (m *RoundManager) RemoveCommunity(ctx context.Context, communityID int64) (*models.RefundReport, error) {
	m.mu.Lock()
	c, ok := m.communities[communityID]
	delete(m.communities, communityID)
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = true

	if c.round == nil {
		return nil, nil
	}

	bus := events.NewTransactionalBus(m.bus)
	report, err := m.refundLocked(ctx, c, bus, models.RoundStatusRefunded)
	if err != nil {
		return nil, err
	}
	bus.Flush(ctx)

	log.WithFields(log.Fields{
		"community": communityID,
		"roundID":   report.RoundID,
	}).Info("Refunded round of removed community")
	return report, nil
}

// acquire returns the community locked, registering it on first use
func (m *RoundManager) acquire(communityID int64) *community {
	for {
		m.mu.RLock()
		c, ok := m.communities[communityID]
		m.mu.RUnlock()

		if !ok {
			m.RegisterCommunity(communityID)
			continue
		}

		c.mu.Lock()
		if c.removed {
			c.mu.Unlock()
			continue
		}
		return c
	}
}

// OpenRound starts a round in the community
func (m *RoundManager) OpenRound(ctx context.Context, communityID int64, title string, contenders []string, duration time.Duration) (*models.RoundSnapshot, error) {
	c := m.acquire(communityID)
	defer c.mu.Unlock()

	if c.round != nil && !c.round.IsTerminal() {
		return nil, models.ErrRoundAlreadyOpen
	}

	now := m.now()
	round, err := models.NewRound(communityID, title, contenders, now, duration)
	if err != nil {
		return nil, err
	}
	c.round = round

	bus := events.NewTransactionalBus(m.bus)
	bus.Publish(events.RoundOpenedEvent{
		RoundID:     round.ID,
		CommunityID: communityID,
		Title:       round.Title,
		Contenders:  append([]string(nil), round.Contenders...),
		Deadline:    round.Deadline,
	})

	m.scheduler.StartRound(round.ID, round.Deadline, m.hooksFor(c, round.ID))
	bus.Flush(ctx)

	log.WithFields(log.Fields{
		"community":  communityID,
		"roundID":    round.ID,
		"title":      round.Title,
		"contenders": len(round.Contenders),
		"deadline":   round.Deadline,
	}).Info("Round opened")

	return round.Snapshot(now), nil
}

// PlaceWager debits the member and adds the wager to the pool. contender
// is 1-based.
func (m *RoundManager) PlaceWager(ctx context.Context, communityID, memberID int64, contender int, amount int64) (*WagerReceipt, error) {
	if amount <= 0 {
		return nil, models.ErrNonPositiveAmount
	}

	c := m.acquire(communityID)
	defer c.mu.Unlock()

	round := c.round
	if round == nil {
		return nil, models.ErrNoOpenRound
	}

	now := m.now()
	bus := events.NewTransactionalBus(m.bus)
	defer bus.Flush(ctx)

	if round.IsOpen() && round.DeadlinePassed(now) {
		m.closeLocked(c, bus, now, true)
	}
	if !round.IsOpen() {
		return nil, models.ErrRoundClosed
	}

	idx, err := round.ContenderIndex(contender)
	if err != nil {
		return nil, err
	}
	if err := round.Pool.CheckWager(idx, memberID, amount); err != nil {
		if errors.Is(err, models.ErrAlreadyCommittedElsewhere) {
			side, _ := round.Pool.ContenderOf(memberID)
			return nil, models.ErrAlreadyCommittedElsewhere.Withf("you already bet on %s", round.Contenders[side])
		}
		return nil, err
	}

	balance, err := c.ledger.GetBalance(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance < amount {
		return nil, models.ErrInsufficientBalance.Withf("insufficient balance: you have %d, tried to bet %d", balance, amount)
	}

	newBalance, err := c.ledger.AdjustBalance(ctx, models.BalanceAdjustment{
		MemberID:        memberID,
		Delta:           -amount,
		TransactionType: models.TransactionTypeWagerPlaced,
		RoundID:         round.ID,
	})
	if err != nil {
		if errors.Is(err, models.ErrNegativeBalance) {
			return nil, models.ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit wager: %w", err)
	}

	if err := round.Pool.AddWager(idx, memberID, amount); err != nil {
		m.compensate(ctx, c, round.ID, memberID, amount)
		return nil, err
	}

	memberTotal := round.Pool.MemberTotal(memberID)
	bus.Publish(events.WagerPlacedEvent{
		RoundID:        round.ID,
		CommunityID:    communityID,
		MemberID:       memberID,
		ContenderIndex: idx,
		Amount:         amount,
		MemberTotal:    memberTotal,
		TotalPool:      round.TotalPool(),
	})

	log.WithFields(log.Fields{
		"community": communityID,
		"roundID":   round.ID,
		"member":    memberID,
		"contender": contender,
		"amount":    amount,
	}).Debug("Wager placed")

	return &WagerReceipt{
		RoundID:         round.ID,
		ContenderNumber: contender,
		ContenderName:   round.Contenders[idx],
		Amount:          amount,
		MemberTotal:     memberTotal,
		NewBalance:      newBalance,
		Snapshot:        round.Snapshot(now),
	}, nil
}

// compensate returns a debit whose pool update failed
func (m *RoundManager) compensate(ctx context.Context, c *community, roundID string, memberID, amount int64) {
	_, err := c.ledger.AdjustBalance(context.WithoutCancel(ctx), models.BalanceAdjustment{
		MemberID:        memberID,
		Delta:           amount,
		TransactionType: models.TransactionTypeWagerRefund,
		RoundID:         roundID,
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"community": c.id,
			"roundID":   roundID,
			"member":    memberID,
			"amount":    amount,
		}).Error("Failed to return debit after rejected wager")
	}
}

// CloseRound stops betting. Closing a closed round reports AlreadyClosed.
func (m *RoundManager) CloseRound(ctx context.Context, communityID int64, callerIsOperator bool) (*CloseResult, error) {
	if !callerIsOperator {
		return nil, models.ErrNotOperator
	}

	c := m.acquire(communityID)
	defer c.mu.Unlock()

	round := c.round
	if round == nil {
		return nil, models.ErrNoOpenRound
	}

	now := m.now()
	switch round.Status {
	case models.RoundStatusClosed:
		return &CloseResult{Snapshot: round.Snapshot(now), AlreadyClosed: true}, nil
	case models.RoundStatusOpen:
	default:
		return nil, models.ErrRoundNotOpen
	}

	bus := events.NewTransactionalBus(m.bus)
	m.closeLocked(c, bus, now, false)
	bus.Flush(ctx)

	return &CloseResult{Snapshot: round.Snapshot(now)}, nil
}

// closeLocked moves the round to closed, stops its refresh and deadline
// tasks and arms the expiry watch
func (m *RoundManager) closeLocked(c *community, bus *events.TransactionalBus, now time.Time, byDeadline bool) {
	round := c.round
	if !round.Close(now) {
		return
	}
	m.scheduler.StopRound(round.ID)

	bus.Publish(events.RoundClosedEvent{
		RoundID:     round.ID,
		CommunityID: c.id,
		ByDeadline:  byDeadline,
		Snapshot:    round.Snapshot(now),
	})

	expiresAt := round.Deadline
	if now.After(expiresAt) {
		expiresAt = now
	}
	m.armExpiry(c, round.ID, expiresAt.Add(m.grace))

	log.WithFields(log.Fields{
		"community":  c.id,
		"roundID":    round.ID,
		"byDeadline": byDeadline,
		"totalPool":  round.TotalPool(),
	}).Info("Round closed")
}

func (m *RoundManager) armExpiry(c *community, roundID string, at time.Time) {
	m.scheduler.StartExpiry(roundID, at, func(ctx context.Context) {
		m.expire(ctx, c, roundID)
	})
}

// DeclareWinner settles the round for the 1-based contender and credits the
// winners. The round may still be open.
func (m *RoundManager) DeclareWinner(ctx context.Context, communityID int64, contender int, callerIsOperator bool) (*models.PayoutReport, error) {
	if !callerIsOperator {
		return nil, models.ErrNotOperator
	}

	c := m.acquire(communityID)
	defer c.mu.Unlock()

	round := c.round
	if round == nil {
		return nil, models.ErrNoOpenRound
	}

	idx, err := round.ContenderIndex(contender)
	if err != nil {
		return nil, err
	}

	report, err := CalculatePayouts(round.Pool, idx, m.policy)
	if err != nil {
		return nil, err
	}

	txType := models.TransactionTypeRoundPayout
	if report.ZeroWinnerRefund {
		txType = models.TransactionTypeWagerRefund
	}
	adjs := make([]models.BalanceAdjustment, 0, len(report.Payouts))
	for _, p := range report.Payouts {
		if p.Payout <= 0 {
			continue
		}
		adjs = append(adjs, models.BalanceAdjustment{
			MemberID:        p.MemberID,
			Delta:           p.Payout,
			TransactionType: txType,
			RoundID:         round.ID,
		})
	}
	if err := c.ledger.ApplyBatch(ctx, adjs); err != nil {
		return nil, fmt.Errorf("failed to credit payouts: %w", err)
	}

	now := m.now()
	report.RoundID = round.ID
	report.CommunityID = communityID
	report.Title = round.Title
	report.WinnerName = round.Contenders[idx]
	report.SettledAt = now

	round.Status = models.RoundStatusSettled
	m.finishLocked(c, now, report, nil)

	bus := events.NewTransactionalBus(m.bus)
	bus.Publish(events.RoundSettledEvent{Report: report})
	bus.Flush(ctx)

	log.WithFields(log.Fields{
		"community":     communityID,
		"roundID":       round.ID,
		"winner":        report.WinnerName,
		"winnerPool":    report.WinnerPoolSum,
		"loserPool":     report.LoserPoolSum,
		"retained":      report.Retained,
		"winners":       len(report.Payouts),
		"zeroWinnerRef": report.ZeroWinnerRefund,
	}).Info("Round settled")

	return report, nil
}

// Refund returns every wager in full and finishes the round
func (m *RoundManager) Refund(ctx context.Context, communityID int64, callerIsOperator bool) (*models.RefundReport, error) {
	if !callerIsOperator {
		return nil, models.ErrNotOperator
	}

	c := m.acquire(communityID)
	defer c.mu.Unlock()

	if c.round == nil {
		return nil, models.ErrNoOpenRound
	}

	bus := events.NewTransactionalBus(m.bus)
	report, err := m.refundLocked(ctx, c, bus, models.RoundStatusRefunded)
	if err != nil {
		return nil, err
	}
	bus.Flush(ctx)

	return report, nil
}

// expire refunds a closed round whose settlement grace period ran out
func (m *RoundManager) expire(ctx context.Context, c *community, roundID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	round := c.round
	if c.removed || round == nil || round.ID != roundID || round.Status != models.RoundStatusClosed {
		return
	}

	bus := events.NewTransactionalBus(m.bus)
	if _, err := m.refundLocked(ctx, c, bus, models.RoundStatusExpired); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"community": c.id,
			"roundID":   roundID,
		}).Error("Failed to refund expired round, retrying later")
		m.armExpiry(c, roundID, m.now().Add(expiryRetryDelay))
		return
	}
	bus.Flush(ctx)
}

// refundLocked credits every stake back and finishes the round with status
func (m *RoundManager) refundLocked(ctx context.Context, c *community, bus *events.TransactionalBus, status models.RoundStatus) (*models.RefundReport, error) {
	round := c.round
	refunds, total := refundsFor(round.Pool)

	adjs := make([]models.BalanceAdjustment, 0, len(refunds))
	for _, r := range refunds {
		adjs = append(adjs, models.BalanceAdjustment{
			MemberID:        r.MemberID,
			Delta:           r.Payout,
			TransactionType: models.TransactionTypeWagerRefund,
			RoundID:         round.ID,
		})
	}
	if err := c.ledger.ApplyBatch(ctx, adjs); err != nil {
		return nil, fmt.Errorf("failed to refund wagers: %w", err)
	}

	now := m.now()
	report := &models.RefundReport{
		RoundID:     round.ID,
		CommunityID: c.id,
		Title:       round.Title,
		Refunds:     refunds,
		Total:       total,
		Expired:     status == models.RoundStatusExpired,
		RefundedAt:  now,
	}

	round.Status = status
	m.finishLocked(c, now, nil, report)

	if report.Expired {
		bus.Publish(events.RoundExpiredEvent{Report: report})
	} else {
		bus.Publish(events.RoundRefundedEvent{Report: report})
	}

	log.WithFields(log.Fields{
		"community": c.id,
		"roundID":   round.ID,
		"status":    status,
		"refunded":  total,
		"members":   len(refunds),
	}).Info("Round refunded")

	return report, nil
}

// finishLocked stops the round's tasks, records it as the last result and
// clears the slot. Tasks are stopped first so a late tick cannot act on
// the finished round.
func (m *RoundManager) finishLocked(c *community, now time.Time, payout *models.PayoutReport, refund *models.RefundReport) {
	round := c.round
	m.scheduler.StopRound(round.ID)
	m.scheduler.StopExpiry(round.ID)

	c.last = &models.RoundResult{
		RoundID:    round.ID,
		Title:      round.Title,
		Contenders: append([]string(nil), round.Contenders...),
		Status:     round.Status,
		FinishedAt: now,
		Pool:       round.Pool.Clone(),
		Payout:     payout,
		Refund:     refund,
	}
	c.round = nil
}

// GetStatus returns a snapshot of the community's current round
func (m *RoundManager) GetStatus(communityID int64) (*models.RoundSnapshot, error) {
	c := m.acquire(communityID)
	defer c.mu.Unlock()

	if c.round == nil {
		return nil, models.ErrNoOpenRound
	}
	return c.round.Snapshot(m.now()), nil
}

// ListWagers returns the wagers in the current round. A contender of 0
// lists every contender.
func (m *RoundManager) ListWagers(communityID int64, contender int) ([]WagerListing, error) {
	c := m.acquire(communityID)
	defer c.mu.Unlock()

	round := c.round
	if round == nil {
		return nil, models.ErrNoOpenRound
	}

	from, to := 0, len(round.Contenders)
	if contender != 0 {
		idx, err := round.ContenderIndex(contender)
		if err != nil {
			return nil, err
		}
		from, to = idx, idx+1
	}

	var listings []WagerListing
	for i := from; i < to; i++ {
		for _, s := range round.Pool.StakesFor(i) {
			listings = append(listings, WagerListing{
				MemberID:        s.MemberID,
				ContenderNumber: i + 1,
				ContenderName:   round.Contenders[i],
				Amount:          s.Amount,
			})
		}
	}
	return listings, nil
}

// LastResult returns the outcome of the community's previous round
func (m *RoundManager) LastResult(communityID int64) *models.RoundResult {
	c := m.acquire(communityID)
	defer c.mu.Unlock()
	return c.last
}

// GetBalance returns a member's balance
func (m *RoundManager) GetBalance(ctx context.Context, communityID, memberID int64) (int64, error) {
	c := m.acquire(communityID)
	ledger := c.ledger
	c.mu.Unlock()

	return ledger.GetBalance(ctx, memberID)
}

// AdjustBalance gives or takes points from a member
func (m *RoundManager) AdjustBalance(ctx context.Context, communityID, memberID, delta int64, callerIsOperator bool) (int64, error) {
	if !callerIsOperator {
		return 0, models.ErrNotOperator
	}
	if delta == 0 {
		return 0, models.ErrNonPositiveAmount
	}

	c := m.acquire(communityID)
	ledger := c.ledger
	c.mu.Unlock()

	balance, err := ledger.AdjustBalance(ctx, models.BalanceAdjustment{
		MemberID:        memberID,
		Delta:           delta,
		TransactionType: models.TransactionTypeAdminAdjust,
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"community":  communityID,
		"member":     memberID,
		"delta":      delta,
		"newBalance": balance,
	}).Info("Balance adjusted by operator")
	return balance, nil
}

// hooksFor builds the scheduler hooks of a round
func (m *RoundManager) hooksFor(c *community, roundID string) RoundHooks {
	m.mu.RLock()
	renderer := m.renderer
	m.mu.RUnlock()

	hooks := RoundHooks{
		Snapshot: func() (*models.RoundSnapshot, bool) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.round == nil || c.round.ID != roundID || !c.round.IsOpen() {
				return nil, false
			}
			return c.round.Snapshot(m.now()), true
		},
		OnDeadline: func(ctx context.Context) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.removed || c.round == nil || c.round.ID != roundID || !c.round.IsOpen() {
				return
			}
			bus := events.NewTransactionalBus(m.bus)
			m.closeLocked(c, bus, m.now(), true)
			bus.Flush(ctx)
		},
	}
	if renderer != nil {
		hooks.Render = renderer.RenderStatus
	}
	return hooks
}
