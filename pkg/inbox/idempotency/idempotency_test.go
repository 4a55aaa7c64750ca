package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) DedupKey(scope, id string) string {
	return "osync:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestCheckAndMarkProcessed_FirstDelivery(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	guard, err := NewGuard(store, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	already, err := guard.CheckAndMarkProcessed(context.Background(), "payments-worker", "broker-msg-42")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first delivery to return false, got true")
	}

	expectedKey := "osync:idempotency:evt:processed:payments-worker:broker-msg-42"
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 30*24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_Redelivery(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	guard, err := NewGuard(store, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	already, err := guard.CheckAndMarkProcessed(context.Background(), "payments-worker", "broker-msg-42")
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected redelivery to report already processed")
	}
}

func TestCheckAndMarkProcessed_StoreError(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	guard, err := NewGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if _, err = guard.CheckAndMarkProcessed(context.Background(), "payments-worker", "msg"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckAndMarkProcessed_RequiresConsumerAndMessageID(t *testing.T) {
	guard, err := NewGuard(&fakeStore{}, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if _, err := guard.CheckAndMarkProcessed(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := guard.CheckAndMarkProcessed(context.Background(), "payments-worker", ""); err == nil {
		t.Fatal("expected error for empty message id")
	}
}

func TestRelease(t *testing.T) {
	store := &fakeStore{}
	guard, err := NewGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	if err := guard.Release(context.Background(), "orders-worker", "broker-msg-7"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	expected := "osync:idempotency:evt:processed:orders-worker:broker-msg-7"
	if store.lastDeleted != expected {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
