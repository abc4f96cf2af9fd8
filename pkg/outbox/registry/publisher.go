package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wiedu/wiedu-backend/pkg/config"
	"github.com/wiedu/wiedu-backend/pkg/db/models"
	"github.com/wiedu/wiedu-backend/pkg/enums"
	"github.com/wiedu/wiedu-backend/pkg/outbox"
	"github.com/wiedu/wiedu-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry routes every study lifecycle event to the study events topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.StudyEventsTopic == "" {
		return nil, fmt.Errorf("study events topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	factories := map[enums.OutboxEventType]func() interface{}{
		enums.EventStudyCreated:          func() interface{} { return &payloads.StudyCreatedEvent{} },
		enums.EventStudyUpdated:          func() interface{} { return &payloads.StudyUpdatedEvent{} },
		enums.EventStudyClosed:           func() interface{} { return &payloads.StudyFinishedEvent{} },
		enums.EventStudyCompleted:        func() interface{} { return &payloads.StudyFinishedEvent{} },
		enums.EventStudyRequestSubmitted: func() interface{} { return &payloads.RequestSubmittedEvent{} },
		enums.EventStudyRequestApproved:  func() interface{} { return &payloads.RequestApprovedEvent{} },
		enums.EventStudyRequestRejected:  func() interface{} { return &payloads.RequestRejectedEvent{} },
		enums.EventStudyRequestCanceled:  func() interface{} { return &payloads.RequestCanceledEvent{} },
		enums.EventStudyMemberWithdrawn:  func() interface{} { return &payloads.MemberRemovedEvent{} },
		enums.EventStudyMemberKicked:     func() interface{} { return &payloads.MemberRemovedEvent{} },
		enums.EventStudyLeaderDelegated:  func() interface{} { return &payloads.LeaderDelegatedEvent{} },
	}
	for eventType, factory := range factories {
		reg.register(EventDescriptor{
			EventType:      eventType,
			AggregateType:  enums.AggregateStudy,
			Topic:          cfg.StudyEventsTopic,
			PayloadFactory: factory,
		})
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
