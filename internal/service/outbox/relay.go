package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 3
	defaultRetryDelay   = 50 * time.Millisecond
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comptoirs_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "comptoirs_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "comptoirs_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// Relay перекладывает события заказов из transactional outbox в брокер.
// Бизнес-операция только ставит событие в очередь; доставка — забота relay.
type Relay struct {
	repo       domain.OutboxRepository
	publisher  domain.OutboxPublisher
	deadLetter domain.OutboxPublisher
	logger     *log.Entry

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	retryDelay   time.Duration
}

// Option настраивает Relay.
type Option func(*Relay)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithDeadLetter задаёт publisher для событий, которые не удалось доставить.
func WithDeadLetter(publisher domain.OutboxPublisher) Option {
	return func(r *Relay) { r.deadLetter = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) { r.pollInterval = interval }
}

// WithBatchSize задаёт размер батча за один опрос.
func WithBatchSize(size int) Option {
	return func(r *Relay) { r.batchSize = size }
}

// WithRetryPolicy задаёт число попыток публикации и базовую задержку
// экспоненциального backoff между ними.
func WithRetryPolicy(attempts int, baseDelay time.Duration) Option {
	return func(r *Relay) {
		r.maxAttempts = attempts
		r.retryDelay = baseDelay
	}
}

// NewRelay создаёт relay поверх outbox-хранилища и publisher'а.
func NewRelay(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Relay {
	r := &Relay{
		repo:         repo,
		publisher:    publisher,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryDelay,
	}
	for _, option := range options {
		option(r)
	}

	if r.logger == nil {
		r.logger = log.WithField("component", "outbox-relay")
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.retryDelay < 0 {
		r.retryDelay = 0
	}
	return r
}

// Run опрашивает outbox с заданным интервалом до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	if r.repo == nil || r.publisher == nil {
		r.logger.Warn("outbox relay is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		}
	}
}

// Drain обрабатывает один батч pending-событий и возвращает число
// успешно опубликованных.
func (r *Relay) Drain(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	r.observeBacklog()

	batch, err := r.repo.PullPending(r.batchSize)
	if err != nil {
		r.logger.WithError(err).Warn("failed to pull pending outbox events")
		return 0
	}

	sent := 0
	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		if r.relayOne(ctx, event) {
			sent++
		}
	}

	if len(batch) > 0 {
		r.observeBacklog()
	}
	return sent
}

// relayOne доставляет одно событие, при исчерпании попыток уводит его в DLQ.
func (r *Relay) relayOne(ctx context.Context, event domain.OutboxMessage) bool {
	err := r.deliver(ctx, event)
	if err == nil {
		if markErr := r.repo.MarkSent(event.ID); markErr != nil {
			r.logger.WithError(markErr).WithField("outbox_id", event.ID).Warn("failed to mark outbox event as sent")
		}
		return true
	}

	r.logger.WithError(err).WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	}).Error("outbox publish failed after retries")
	publishAttempts.WithLabelValues("failed").Inc()

	r.divert(event, err)
	if markErr := r.repo.MarkFailed(event.ID); markErr != nil {
		r.logger.WithError(markErr).WithField("outbox_id", event.ID).Warn("failed to mark outbox event as failed")
	}
	return false
}

func (r *Relay) deliver(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	delay := r.retryDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if lastErr = r.publisher.Publish(event); lastErr == nil {
			publishAttempts.WithLabelValues("sent").Inc()
			return nil
		}
		publishAttempts.WithLabelValues("retry_error").Inc()

		if attempt == r.maxAttempts || delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// divert отправляет недоставленное событие в dead letter очередь вместе
// с причиной отказа.
func (r *Relay) divert(event domain.OutboxMessage, cause error) {
	if r.deadLetter == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"outbox_id":    event.ID,
		"order_number": event.AggregateID,
		"event_type":   event.EventType,
		"payload":      json.RawMessage(event.Payload),
		"error":        cause.Error(),
		"diverted_at":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		r.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to build dead letter payload")
		publishAttempts.WithLabelValues("dlq_failed").Inc()
		return
	}

	dead := event
	dead.Payload = payload
	if err := r.deadLetter.Publish(dead); err != nil {
		r.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to publish dead letter")
		publishAttempts.WithLabelValues("dlq_failed").Inc()
	}
}

func (r *Relay) observeBacklog() {
	stats, err := r.repo.Stats()
	if err != nil {
		r.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}
	if age := time.Since(stats.OldestPendingAt).Seconds(); age > 0 {
		oldestPendingAge.Set(age)
	} else {
		oldestPendingAge.Set(0)
	}
}
