package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/angelmondragon/ordersync-backend/pkg/events"
	"github.com/angelmondragon/ordersync-backend/pkg/inbox"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
	"github.com/angelmondragon/ordersync-backend/pkg/pagination"
)

type stubOrdersService struct {
	applied []orders.PaymentOutcomeInput
	err     error
}

func (s *stubOrdersService) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (enums.OrderStatus, error) {
	panic("not implemented")
}

func (s *stubOrdersService) ListOrders(ctx context.Context, params pagination.Params, filters orders.OrderFilters) (*orders.OrderList, error) {
	panic("not implemented")
}

func (s *stubOrdersService) ApplyPaymentOutcome(ctx context.Context, tx *gorm.DB, input orders.PaymentOutcomeInput) error {
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, input)
	return nil
}

type stubInbox struct {
	recorded []models.InboxMessage
	err      error
	seen     bool
	seenErr  error
}

func (s *stubInbox) Record(tx *gorm.DB, row *models.InboxMessage) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, *row)
	return nil
}

func (s *stubInbox) Seen(messageID string) (bool, error) {
	return s.seen, s.seenErr
}

type stubGuard struct {
	already  bool
	checkErr error
	released []string
}

func (s *stubGuard) CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error) {
	return s.already, s.checkErr
}

func (s *stubGuard) Release(ctx context.Context, consumer, messageID string) error {
	s.released = append(s.released, messageID)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSubscriber struct{}

func (stubSubscriber) Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error {
	return nil
}

func mustConsumer(t *testing.T, svc orders.Service, inboxRepo inboxRecorder, guard dedupGuard) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	c, err := NewConsumer(svc, inboxRepo, stubTxRunner{}, guard, stubSubscriber{}, metrics.NewConsumerMetrics(nil), logg)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return c
}

func paymentMessage(t *testing.T, payment events.PaymentProcessed) *pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(payment)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{events.AttrMessageID: uuid.NewString()},
	}
}

func TestProcessFinishesOrderOnSuccess(t *testing.T) {
	svc := &stubOrdersService{}
	inboxRepo := &stubInbox{}
	c := mustConsumer(t, svc, inboxRepo, &stubGuard{})

	payment := events.NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(svc.applied) != 1 {
		t.Fatalf("expected one outcome applied, got %d", len(svc.applied))
	}
	if svc.applied[0].Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected SUCCESS outcome, got %s", svc.applied[0].Status)
	}
	if svc.applied[0].OrderID != payment.OrderID {
		t.Fatal("outcome routed to wrong order")
	}
	if len(inboxRepo.recorded) != 1 || inboxRepo.recorded[0].Topic != events.TopicPaymentProcessed {
		t.Fatalf("inbox row missing or wrong topic: %+v", inboxRepo.recorded)
	}
}

func TestProcessCancelsOrderOnFailure(t *testing.T) {
	svc := &stubOrdersService{}
	c := mustConsumer(t, svc, &stubInbox{}, &stubGuard{})

	payment := events.NewPaymentFailed(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"), enums.FailureReasonInsufficientFunds)
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.ack {
		t.Fatal("expected ack")
	}
	if len(svc.applied) != 1 || svc.applied[0].Status != enums.PaymentStatusFailure {
		t.Fatalf("expected FAILURE outcome, got %+v", svc.applied)
	}
	if svc.applied[0].Reason == nil || *svc.applied[0].Reason != string(enums.FailureReasonInsufficientFunds) {
		t.Fatalf("expected reason preserved, got %v", svc.applied[0].Reason)
	}
}

func TestProcessNacksWhenStatusMissing(t *testing.T) {
	svc := &stubOrdersService{}
	guard := &stubGuard{}
	c := mustConsumer(t, svc, &stubInbox{}, guard)

	msg := &pubsub.Message{
		Data:       []byte(`{"orderId":"` + uuid.NewString() + `"}`),
		Attributes: map[string]string{events.AttrMessageID: uuid.NewString()},
	}
	result := c.process(context.Background(), msg)
	if !result.nack {
		t.Fatal("missing paymentStatus must nack for redelivery")
	}
	if len(svc.applied) != 0 {
		t.Fatal("no effect may be applied without a status")
	}
	if len(guard.released) != 1 {
		t.Fatal("dedup marker must be released before redelivery")
	}
}

func TestProcessAcksUnrecognizedStatusWithoutEffect(t *testing.T) {
	svc := &stubOrdersService{}
	inboxRepo := &stubInbox{}
	c := mustConsumer(t, svc, inboxRepo, &stubGuard{})

	msg := &pubsub.Message{
		Data:       []byte(`{"orderId":"` + uuid.NewString() + `","paymentStatus":"REFUNDED"}`),
		Attributes: map[string]string{events.AttrMessageID: uuid.NewString()},
	}
	result := c.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("unrecognized status should ack, got %+v", result)
	}
	if len(svc.applied) != 0 {
		t.Fatal("unrecognized status must not change the order")
	}
	if len(inboxRepo.recorded) != 1 {
		t.Fatal("message should still be recorded for dedup")
	}
}

func TestProcessAcksPoisonPayload(t *testing.T) {
	svc := &stubOrdersService{}
	c := mustConsumer(t, svc, &stubInbox{}, &stubGuard{})

	for _, data := range [][]byte{nil, []byte("{{{")} {
		result := c.process(context.Background(), &pubsub.Message{
			Data:       data,
			Attributes: map[string]string{events.AttrMessageID: uuid.NewString()},
		})
		if !result.ack || result.nack {
			t.Fatalf("poison payload should ack, got %+v", result)
		}
	}
	if len(svc.applied) != 0 {
		t.Fatal("poison payload must not reach the service")
	}
}

func TestProcessDuplicateDeliveryDoesNotReapply(t *testing.T) {
	svc := &stubOrdersService{}
	inboxRepo := &stubInbox{err: inbox.ErrDuplicateMessage}
	c := mustConsumer(t, svc, inboxRepo, &stubGuard{})

	payment := events.NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.ack || result.nack {
		t.Fatalf("duplicate should ack, got %+v", result)
	}
	if len(svc.applied) != 0 {
		t.Fatal("duplicate must not reapply the effect")
	}
}

func TestProcessSkipsWhenMarkerAndInboxAgree(t *testing.T) {
	svc := &stubOrdersService{}
	c := mustConsumer(t, svc, &stubInbox{seen: true}, &stubGuard{already: true})

	payment := events.NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.ack {
		t.Fatal("duplicate should ack")
	}
	if len(svc.applied) != 0 {
		t.Fatal("duplicate must not reapply the effect")
	}
}

func TestProcessReappliesWhenMarkerHasNoInboxRow(t *testing.T) {
	// A crash between SETNX and commit leaves a Redis marker with no inbox
	// row. The redelivered outcome must still move the order.
	svc := &stubOrdersService{}
	inboxRepo := &stubInbox{seen: false}
	c := mustConsumer(t, svc, inboxRepo, &stubGuard{already: true})

	payment := events.NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.ack || result.nack {
		t.Fatalf("expected ack after reprocessing, got %+v", result)
	}
	if len(svc.applied) != 1 {
		t.Fatalf("expected outcome applied despite stale marker, got %d", len(svc.applied))
	}
	if len(inboxRepo.recorded) != 1 {
		t.Fatalf("expected inbox row written on reprocess, got %d", len(inboxRepo.recorded))
	}
}

func TestProcessNacksOnTransientFailure(t *testing.T) {
	svc := &stubOrdersService{err: errors.New("connection reset")}
	guard := &stubGuard{}
	c := mustConsumer(t, svc, &stubInbox{}, guard)

	payment := events.NewPaymentSucceeded(uuid.New(), uuid.New(), decimal.RequireFromString("10.00"))
	result := c.process(context.Background(), paymentMessage(t, payment))
	if !result.nack {
		t.Fatal("transient failure should nack")
	}
	if len(guard.released) != 1 {
		t.Fatal("dedup marker must be released on failure")
	}
}
