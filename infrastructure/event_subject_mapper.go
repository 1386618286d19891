package infrastructure

import (
	"fmt"

	"parimutuel/events"
)

// StreamName is the JetStream stream carrying every forwarded event
const StreamName = "parimutuel_events"

// EventSubjectMapper maps events to NATS subjects. Round events go to
// rounds.<community>.<event>, balance changes to ledger.<community>.balance_changed.
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts an event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	community := event.Community()
	switch event.Type() {
	case events.EventTypeBalanceChange:
		return fmt.Sprintf("ledger.%d.balance_changed", community)
	case events.EventTypeRoundOpened:
		return fmt.Sprintf("rounds.%d.opened", community)
	case events.EventTypeWagerPlaced:
		return fmt.Sprintf("rounds.%d.wager_placed", community)
	case events.EventTypeRoundClosed:
		return fmt.Sprintf("rounds.%d.closed", community)
	case events.EventTypeRoundSettled:
		return fmt.Sprintf("rounds.%d.settled", community)
	case events.EventTypeRoundRefunded:
		return fmt.Sprintf("rounds.%d.refunded", community)
	case events.EventTypeRoundExpired:
		return fmt.Sprintf("rounds.%d.expired", community)
	default:
		return fmt.Sprintf("unknown.%d.%s", community, event.Type())
	}
}

// GetAllSubjects returns the subject filters of the stream
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{"rounds.>", "ledger.>"}
}
