package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/events"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
	"github.com/angelmondragon/ordersync-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 100
	defaultPollMs         = 5000
	defaultPublishTimeout = 15 * time.Second
	maxErrorBackoff       = 30 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
	CountUnpublished() (int64, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (outbox.EventDescriptor, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	Metrics          *metrics.RelayMetrics
	PublisherFactory publisherFactory
}

// Service drains the outbox table into Pub/Sub. A row is marked processed
// only after the broker acknowledges the publish; any failure leaves the row
// unprocessed and it is retried on every poll until it goes through.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	metrics          *metrics.RelayMetrics
	publisherFactory publisherFactory
	batchSize        int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return newGCPPublisher(pub)
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		metrics:          params.Metrics,
		publisherFactory: factory,
		batchSize:        batch,
		pollInterval:     time.Duration(pollMs) * time.Millisecond,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox relay context canceled")
			return ctx.Err()
		default:
		}

		progressed, err := s.processBatch(ctx)
		if err != nil {
			// Database trouble, not a publish failure. Back off so a down
			// database is not hammered at poll speed.
			s.logg.Error(ctx, "outbox relay batch error", err)
			backoff = nextBackoff(backoff, interval, maxErrorBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		// Keep draining only while rows actually go out. A batch of rows
		// that all fail must wait out the poll interval like an empty one,
		// or a stuck row spins the loop at full speed.
		if progressed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch publishes one batch of unprocessed rows oldest-first. Publish
// failures are recorded on the row and swallowed: the row stays unprocessed
// and comes back on the next poll. Only repository errors abort the batch.
// The returned bool reports whether any row was marked published.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	rows, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return false, err
	}
	s.reportBacklog(ctx)
	if len(rows) == 0 {
		return false, nil
	}

	published := 0
	for _, event := range rows {
		desc, err := s.registry.Resolve(event)
		if err != nil {
			// A row outside the contract cannot be routed. Record the
			// failure and keep going; it will be retried (and logged)
			// until an operator fixes the row or the config.
			var nonRoutable outbox.NonRoutableError
			if errors.As(err, &nonRoutable) {
				s.logg.Warn(s.logg.WithField(s.eventCtx(ctx, event, ""), "error", err.Error()), "outbox event is not routable")
			} else {
				s.logg.Error(s.eventCtx(ctx, event, ""), "outbox event resolution failed", err)
			}
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return published > 0, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
			continue
		}

		start := time.Now()
		publishErr := s.publish(ctx, event, desc.Topic)
		s.metrics.ObservePublish(desc.Topic, time.Since(start))
		if publishErr != nil {
			s.metrics.IncFailure(desc.Topic)
			logCtx := s.logg.WithField(s.eventCtx(ctx, event, desc.Topic), "error", publishErr.Error())
			s.logg.Warn(logCtx, "outbox publish failed, will retry")
			if markErr := s.repo.MarkFailed(event.ID, publishErr); markErr != nil {
				return published > 0, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
			continue
		}

		if markErr := s.repo.MarkPublished(event.ID); markErr != nil {
			// The publish went out but the flag did not flip; the next poll
			// republishes and consumer-side dedup absorbs the duplicate.
			return published > 0, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		published++
		s.metrics.IncPublished(desc.Topic)
		s.logg.Info(s.eventCtx(ctx, event, desc.Topic), "outbox event published")
	}
	return published > 0, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, topic string) error {
	pub := s.publisherFactory(topic)
	if pub == nil {
		return fmt.Errorf("publisher not configured for topic %s", topic)
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		// Ordering key keeps events for one aggregate in publish order on
		// subscriptions that enable ordering.
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			events.AttrMessageID: event.ID.String(),
			"event_type":         string(event.EventType),
			"aggregate_type":     string(event.AggregateType),
			"aggregate_id":       event.AggregateID.String(),
			"occurred_on":        event.OccurredOn.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil for topic %s", topic)
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) eventCtx(ctx context.Context, event models.OutboxEvent, topic string) context.Context {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) reportBacklog(ctx context.Context) {
	count, err := s.repo.CountUnpublished()
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
		return
	}
	s.metrics.SetBacklog(count)
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
