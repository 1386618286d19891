package events

import (
	"context"
	"sync"
	"time"

	"parimutuel/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypeRoundOpened   EventType = "round_opened"
	EventTypeWagerPlaced   EventType = "wager_placed"
	EventTypeRoundClosed   EventType = "round_closed"
	EventTypeRoundSettled  EventType = "round_settled"
	EventTypeRoundRefunded EventType = "round_refunded"
	EventTypeRoundExpired  EventType = "round_expired"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Community() int64
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	CommunityID     int64                  `json:"community_id"`
	MemberID        int64                  `json:"member_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount"`
	RoundID         string                 `json:"round_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

func (e BalanceChangeEvent) Community() int64 {
	return e.CommunityID
}

// RoundOpenedEvent is emitted when an operator opens a round
type RoundOpenedEvent struct {
	RoundID     string    `json:"round_id"`
	CommunityID int64     `json:"community_id"`
	Title       string    `json:"title"`
	Contenders  []string  `json:"contenders"`
	Deadline    time.Time `json:"deadline"`
}

func (e RoundOpenedEvent) Type() EventType {
	return EventTypeRoundOpened
}

func (e RoundOpenedEvent) Community() int64 {
	return e.CommunityID
}

// WagerPlacedEvent is emitted for every accepted wager
type WagerPlacedEvent struct {
	RoundID        string `json:"round_id"`
	CommunityID    int64  `json:"community_id"`
	MemberID       int64  `json:"member_id"`
	ContenderIndex int    `json:"contender_index"`
	Amount         int64  `json:"amount"`
	MemberTotal    int64  `json:"member_total"`
	TotalPool      int64  `json:"total_pool"`
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

func (e WagerPlacedEvent) Community() int64 {
	return e.CommunityID
}

// RoundClosedEvent is emitted when betting stops, by an operator or the deadline
type RoundClosedEvent struct {
	RoundID     string                `json:"round_id"`
	CommunityID int64                 `json:"community_id"`
	ByDeadline  bool                  `json:"by_deadline"`
	Snapshot    *models.RoundSnapshot `json:"snapshot"`
}

func (e RoundClosedEvent) Type() EventType {
	return EventTypeRoundClosed
}

func (e RoundClosedEvent) Community() int64 {
	return e.CommunityID
}

// RoundSettledEvent is emitted after winners have been credited
type RoundSettledEvent struct {
	Report *models.PayoutReport `json:"report"`
}

func (e RoundSettledEvent) Type() EventType {
	return EventTypeRoundSettled
}

func (e RoundSettledEvent) Community() int64 {
	return e.Report.CommunityID
}

// RoundRefundedEvent is emitted after an operator refunded a round
type RoundRefundedEvent struct {
	Report *models.RefundReport `json:"report"`
}

func (e RoundRefundedEvent) Type() EventType {
	return EventTypeRoundRefunded
}

func (e RoundRefundedEvent) Community() int64 {
	return e.Report.CommunityID
}

// RoundExpiredEvent is emitted when an unsettled round was refunded automatically
type RoundExpiredEvent struct {
	Report *models.RefundReport `json:"report"`
}

func (e RoundExpiredEvent) Type() EventType {
	return EventTypeRoundExpired
}

func (e RoundExpiredEvent) Community() int64 {
	return e.Report.CommunityID
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range AllEventTypes() {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"community":    event.Community(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never holds up a round
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// AllEventTypes lists every event type the system emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeRoundOpened,
		EventTypeWagerPlaced,
		EventTypeRoundClosed,
		EventTypeRoundSettled,
		EventTypeRoundRefunded,
		EventTypeRoundExpired,
	}
}

// TransactionalBus holds events for one operation until it succeeds.
// Flush forwards them to the underlying bus, Discard drops them.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the events staged so far
func (b *TransactionalBus) Pending() []Event {
	return b.pending
}

// called after the operation committed
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus")

	// Handlers must outlive the request that produced the events
	eventCtx := context.WithoutCancel(ctx)

	if b.real != nil {
		for _, ev := range b.pending {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
	return nil
}

// called after rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
