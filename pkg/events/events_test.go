package events

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

func TestDecodePaymentProcessedSuccess(t *testing.T) {
	payload := []byte(`{
		"orderId":"0c5f3f6e-019f-44c3-b4b5-63b837735dd7",
		"userId":"9a6e1cb0-67a9-44a4-bf30-7e40ce20f0a2",
		"amount":"100.00",
		"paymentId":"2c7a1f09-1708-4fd2-a831-f340aa87bb5e",
		"paymentStatus":"SUCCESS"
	}`)

	evt, err := DecodePaymentProcessed(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.PaymentStatus != enums.PaymentStatusSuccess {
		t.Fatalf("unexpected status %s", evt.PaymentStatus)
	}
	if _, ok := evt.Outcome().(PaymentSucceeded); !ok {
		t.Fatalf("expected success outcome, got %T", evt.Outcome())
	}
	if !evt.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("unexpected amount %s", evt.Amount)
	}
}

func TestDecodePaymentProcessedMissingStatusIsHardFailure(t *testing.T) {
	for _, payload := range []string{
		`{"orderId":"0c5f3f6e-019f-44c3-b4b5-63b837735dd7"}`,
		`{"paymentStatus":42}`,
		`{"paymentStatus":null}`,
	} {
		_, err := DecodePaymentProcessed([]byte(payload))
		if !errors.Is(err, ErrMissingPaymentStatus) {
			t.Fatalf("payload %s: expected ErrMissingPaymentStatus, got %v", payload, err)
		}
	}
}

func TestDecodePaymentProcessedMalformedJSON(t *testing.T) {
	_, err := DecodePaymentProcessed([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrMissingPaymentStatus) {
		t.Fatal("malformed JSON must not look like a missing discriminant")
	}
}

func TestOutcomeUnrecognizedStatus(t *testing.T) {
	evt := PaymentProcessed{PaymentStatus: enums.PaymentStatus("PENDING")}
	out, ok := evt.Outcome().(PaymentOutcomeUnrecognized)
	if !ok {
		t.Fatalf("expected unrecognized branch, got %T", evt.Outcome())
	}
	if out.Raw != "PENDING" {
		t.Fatalf("unexpected raw value %q", out.Raw)
	}
}

func TestFailureCarriesReason(t *testing.T) {
	evt := NewPaymentFailed(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"), enums.FailureReasonInsufficientFunds)
	failed, ok := evt.Outcome().(PaymentFailed)
	if !ok {
		t.Fatalf("expected failed outcome, got %T", evt.Outcome())
	}
	if failed.Reason != string(enums.FailureReasonInsufficientFunds) {
		t.Fatalf("unexpected reason %q", failed.Reason)
	}
	if evt.PaymentID == uuid.Nil {
		t.Fatal("expected fresh payment id")
	}
}

func TestSuccessOmitsReason(t *testing.T) {
	evt := NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	if evt.Reason != nil {
		t.Fatal("reason must be absent on success")
	}
}

func TestDecodeOrderCreated(t *testing.T) {
	payload := []byte(`{"id":"0c5f3f6e-019f-44c3-b4b5-63b837735dd7","userId":"9a6e1cb0-67a9-44a4-bf30-7e40ce20f0a2","amount":"42.50"}`)
	evt, err := DecodeOrderCreated(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !evt.Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Fatalf("unexpected amount %s", evt.Amount)
	}
}
