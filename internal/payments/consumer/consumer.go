package consumer

import (
	"context"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/payments"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/events"
	"github.com/angelmondragon/ordersync-backend/pkg/inbox"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
)

const consumerName = "payments-worker"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inboxRecorder interface {
	Record(tx *gorm.DB, row *models.InboxMessage) error
	Seen(messageID string) (bool, error)
}

type dedupGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error)
	Release(ctx context.Context, consumer, messageID string) error
}

type subscriber interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer applies order.created events: it debits the buyer's account and
// queues the payment outcome, exactly once per message id.
type Consumer struct {
	svc     payments.Service
	inbox   inboxRecorder
	tx      txRunner
	guard   dedupGuard
	sub     subscriber
	metrics *metrics.ConsumerMetrics
	logg    *logger.Logger
}

// NewConsumer builds the order.created consumer.
func NewConsumer(svc payments.Service, inboxRepo inboxRecorder, tx txRunner, guard dedupGuard, sub subscriber, m *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if inboxRepo == nil {
		return nil, fmt.Errorf("inbox repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if guard == nil {
		return nil, fmt.Errorf("dedup guard required")
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		svc:     svc,
		inbox:   inboxRepo,
		tx:      tx,
		guard:   guard,
		sub:     sub,
		metrics: m,
		logg:    logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	started := time.Now()
	defer func() {
		c.metrics.ObserveHandle(consumerName, time.Since(started))
	}()

	messageID := deriveMessageID(c.logg, ctx, msg)
	logCtx := c.logg.WithMessageID(ctx, messageID)

	already, err := c.guard.CheckAndMarkProcessed(ctx, consumerName, messageID)
	if err != nil {
		// Redis down must not stop consumption; the inbox still dedups.
		c.logg.Error(logCtx, "dedup fast-path unavailable", err)
	} else if already {
		// The marker is set before the transaction commits, so a crash in
		// between strands it without an inbox row. Only the inbox row proves
		// the effect landed; without it the message is processed again.
		seen, seenErr := c.inbox.Seen(messageID)
		switch {
		case seenErr != nil:
			c.logg.Error(logCtx, "inbox lookup failed, reprocessing", seenErr)
		case seen:
			c.logg.Info(logCtx, "message already processed")
			c.metrics.IncDuplicate(consumerName)
			return processResult{ack: true}
		default:
			c.logg.Warn(logCtx, "dedup marker without inbox row, reprocessing")
		}
	}

	if len(msg.Data) == 0 {
		c.logg.Warn(logCtx, "empty order.created payload, dropping")
		c.metrics.IncPoison(consumerName)
		return processResult{ack: true}
	}

	order, err := events.DecodeOrderCreated(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "undecodable order.created payload, dropping", err)
		c.metrics.IncPoison(consumerName)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithAggregateID(logCtx, order.ID.String())

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.inbox.Record(tx, &models.InboxMessage{
			MessageID: messageID,
			Topic:     events.TopicOrderCreated,
			Payload:   msg.Data,
		}); err != nil {
			return err
		}
		return c.svc.ProcessOrderPayment(logCtx, tx, *order)
	})
	if err != nil {
		if err == inbox.ErrDuplicateMessage {
			c.logg.Info(logCtx, "message already in inbox")
			c.metrics.IncDuplicate(consumerName)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "order payment processing failed, requesting redelivery", err)
		if relErr := c.guard.Release(ctx, consumerName, messageID); relErr != nil {
			c.logg.Error(logCtx, "failed to release dedup marker", relErr)
		}
		c.metrics.IncRedelivery(consumerName)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "order.created processed")
	c.metrics.IncProcessed(consumerName)
	return processResult{ack: true}
}

// deriveMessageID resolves the dedup identity of a delivery: the message_id
// attribute stamped by the relay, else the broker's message ID, else a fresh
// UUID. A generated id cannot match earlier deliveries of the same message,
// so dedup is lost for it; the warning makes that visible.
func deriveMessageID(logg *logger.Logger, ctx context.Context, msg *pubsub.Message) string {
	if id := strings.TrimSpace(msg.Attributes[events.AttrMessageID]); id != "" {
		return id
	}
	if msg.ID != "" {
		return msg.ID
	}
	generated := uuid.New().String()
	logg.Warn(logg.WithMessageID(ctx, generated), "message carries no id, generated one; duplicates undetectable")
	return generated
}
