package outbox

import (
	"fmt"

	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// EventDescriptor links an event type to its aggregate and destination topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// EventRegistry maps each supported event type to its descriptor. Both relay
// deployments share one registry; a row an orders-side relay can never hold
// (a payments event) simply never comes out of its own outbox table.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRoutableError marks a row the relay should skip and leave unprocessed
// rather than crash on: an event type outside the contract.
type NonRoutableError struct {
	Err error
}

func (e NonRoutableError) Error() string {
	if e.Err == nil {
		return "non-routable outbox event"
	}
	return e.Err.Error()
}

func (e NonRoutableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry from the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrderCreatedTopic == "" {
		return nil, fmt.Errorf("order created topic is required")
	}
	if cfg.PaymentProcessedTopic == "" {
		return nil, fmt.Errorf("payment processed topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	reg.register(EventDescriptor{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		Topic:         cfg.OrderCreatedTopic,
	})
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPaymentSuccess,
		enums.EventPaymentFailed,
	} {
		reg.register(EventDescriptor{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			Topic:         cfg.PaymentProcessedTopic,
		})
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	r.entries[desc.EventType] = desc
}

// Resolve validates the row against the contract and returns its routing.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return EventDescriptor{}, NonRoutableError{Err: fmt.Errorf("unsupported event type %s", event.EventType)}
	}
	if desc.AggregateType != event.AggregateType {
		return EventDescriptor{}, NonRoutableError{Err: fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)}
	}
	return desc, nil
}
