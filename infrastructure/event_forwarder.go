package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parimutuel/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MessagePublisher sends raw payloads to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	CommunityID   int64           `json:"community_id"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventForwarder republishes bus events to a message broker
type EventForwarder struct {
	publisher      MessagePublisher
	subjectMapper  *EventSubjectMapper
	now            func() time.Time
	publishTimeout time.Duration
}

// NewEventForwarder creates a forwarder publishing through publisher
func NewEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *EventForwarder {
	return &EventForwarder{
		publisher:      publisher,
		subjectMapper:  subjectMapper,
		now:            time.Now,
		publishTimeout: 5 * time.Second,
	}
}

// Attach subscribes the forwarder to every event on the bus
func (f *EventForwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := f.Forward(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"community": event.Community(),
				"error":     err,
			}).Warn("Failed to forward event")
		}
	})
}

// Forward wraps the event in an envelope and publishes it
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	envelope, err := f.Envelope(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.publishTimeout)
	defer cancel()

	subject := f.subjectMapper.MapEventToSubject(event)
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event")
	return nil
}

// Envelope builds the envelope for an event
func (f *EventForwarder) Envelope(event events.Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		CommunityID:   event.Community(),
		Timestamp:     f.now().UTC(),
		SourceService: "parimutuel",
		Payload:       payload,
	}, nil
}
