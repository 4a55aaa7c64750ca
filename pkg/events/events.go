package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// Topic names are the only coupling between the two services besides the
// payload shapes below.
const (
	TopicOrderCreated     = "order.created"
	TopicPaymentProcessed = "payment.processed"
)

// AttrMessageID carries the producer-side outbox row id on every published
// message; consumers prefer it when deriving their dedup key.
const AttrMessageID = "message_id"

// ErrMissingPaymentStatus marks a payment.processed payload whose discriminant
// is absent or not a string. Unlike other malformed payloads this one blocks
// acknowledgment and forces redelivery.
var ErrMissingPaymentStatus = errors.New("payload missing or malformed paymentStatus field")

// OrderCreated is published by the orders service when an order row commits.
type OrderCreated struct {
	ID     uuid.UUID       `json:"id"`
	UserID uuid.UUID       `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentProcessed is published by the payments service once a payment
// decision has been made. Reason is present only on FAILURE.
type PaymentProcessed struct {
	OrderID       uuid.UUID           `json:"orderId"`
	UserID        uuid.UUID           `json:"userId"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentID     uuid.UUID           `json:"paymentId"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Reason        *string             `json:"reason,omitempty"`
}

// NewPaymentSucceeded builds a SUCCESS outcome with a fresh payment id.
func NewPaymentSucceeded(orderID, userID uuid.UUID, amount decimal.Decimal) PaymentProcessed {
	return PaymentProcessed{
		OrderID:       orderID,
		UserID:        userID,
		Amount:        amount,
		PaymentID:     uuid.New(),
		PaymentStatus: enums.PaymentStatusSuccess,
	}
}

// NewPaymentFailed builds a FAILURE outcome carrying the reason code.
func NewPaymentFailed(orderID, userID uuid.UUID, amount decimal.Decimal, reason enums.FailureReason) PaymentProcessed {
	r := string(reason)
	return PaymentProcessed{
		OrderID:       orderID,
		UserID:        userID,
		Amount:        amount,
		PaymentID:     uuid.New(),
		PaymentStatus: enums.PaymentStatusFailure,
		Reason:        &r,
	}
}

// PaymentOutcome is the closed set of things a payment.processed payload can
// mean to a consumer. The unrecognized branch is logged and ignored, never
// treated as fatal.
type PaymentOutcome interface {
	isPaymentOutcome()
}

// PaymentSucceeded finalizes the order.
type PaymentSucceeded struct {
	PaymentID uuid.UUID
}

// PaymentFailed cancels the order.
type PaymentFailed struct {
	PaymentID uuid.UUID
	Reason    string
}

// PaymentOutcomeUnrecognized covers status strings outside the contract.
type PaymentOutcomeUnrecognized struct {
	Raw string
}

func (PaymentSucceeded) isPaymentOutcome()           {}
func (PaymentFailed) isPaymentOutcome()              {}
func (PaymentOutcomeUnrecognized) isPaymentOutcome() {}

// Outcome folds the string-typed wire discriminant into the closed variant.
func (e PaymentProcessed) Outcome() PaymentOutcome {
	switch e.PaymentStatus {
	case enums.PaymentStatusSuccess:
		return PaymentSucceeded{PaymentID: e.PaymentID}
	case enums.PaymentStatusFailure:
		reason := ""
		if e.Reason != nil {
			reason = *e.Reason
		}
		return PaymentFailed{PaymentID: e.PaymentID, Reason: reason}
	default:
		return PaymentOutcomeUnrecognized{Raw: string(e.PaymentStatus)}
	}
}

// DecodeOrderCreated parses an order.created payload.
func DecodeOrderCreated(payload []byte) (*OrderCreated, error) {
	var evt OrderCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode order.created payload: %w", err)
	}
	return &evt, nil
}

// DecodePaymentProcessed parses a payment.processed payload. The discriminant
// is probed first: a payload that is valid JSON but lacks a string
// paymentStatus returns ErrMissingPaymentStatus so callers can force
// redelivery instead of dropping the message as poison.
func DecodePaymentProcessed(payload []byte) (*PaymentProcessed, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("decode payment.processed payload: %w", err)
	}

	rawStatus, ok := probe["paymentStatus"]
	if !ok {
		return nil, ErrMissingPaymentStatus
	}
	var status string
	if err := json.Unmarshal(rawStatus, &status); err != nil {
		return nil, ErrMissingPaymentStatus
	}

	var evt PaymentProcessed
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode payment.processed fields: %w", err)
	}
	return &evt, nil
}
