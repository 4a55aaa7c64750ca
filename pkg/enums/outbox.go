package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_event.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "Order"
	AggregatePayment OutboxAggregateType = "Payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_event.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "ORDER_CREATED"
	EventPaymentSuccess OutboxEventType = "PAYMENT_SUCCESS"
	EventPaymentFailed  OutboxEventType = "PAYMENT_FAILED"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventPaymentSuccess,
	EventPaymentFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
