package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsFindsWrappedError(t *testing.T) {
	base := New(CodeNotFound, "order missing")
	wrapped := fmt.Errorf("outer: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestAsReturnsNilForPlainError(t *testing.T) {
	if As(errors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(CodeDependency, cause, "fetch account")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if MetadataFor(err.Code()).HTTPStatus != http.StatusServiceUnavailable {
		t.Fatal("dependency errors should map to 503")
	}
}

func TestDumpWalksChain(t *testing.T) {
	err := Wrap(CodeValidation, errors.New("amount must be positive"), "create order")
	d := Dump(err)
	if d.Code != CodeValidation {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(d.Chain))
	}
	if d.PG != nil {
		t.Fatal("no driver error in the chain, expected nil diagnostics")
	}
}

func TestDumpFieldsLeaveOutAbsentParts(t *testing.T) {
	fields := Dump(errors.New("plain failure")).Fields()
	if fields["error"] != "plain failure" {
		t.Fatalf("unexpected error field %v", fields["error"])
	}
	if _, ok := fields["error_code"]; ok {
		t.Fatal("untyped error must not report a code")
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("no driver error, pg fields must be absent")
	}
}
