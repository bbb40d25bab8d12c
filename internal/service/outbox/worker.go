package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
)

// Результаты доставки для метрики foodorder_outbox_messages_total.
const (
	resultSent       = "sent"
	resultRetried    = "retried"
	resultHeld       = "held"
	resultDeadLetter = "dead_letter"
	resultDLQFailed  = "dlq_failed"
)

var (
	outboxMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodorder_outbox_messages_total",
		Help: "Outbox deliveries grouped by destination topic and result.",
	}, []string{"topic", "result"})
	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodorder_outbox_backlog",
		Help: "Saga events waiting in the outbox.",
	})
	outboxBacklogAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodorder_outbox_backlog_age_seconds",
		Help: "Age of the oldest saga event waiting in the outbox.",
	})
)

// DeadLetter — тело сообщения в DLQ для события, которое не удалось доставить.
// cmd/dlq-reprocess читает его и переотправляет Payload в Topic.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Topic         string          `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки. Сообщение уходит
// с пустым Topic, поэтому publisher должен сам знать топик DLQ.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

// WithPollInterval задаёт период опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) { w.pollInterval = interval }
}

// WithBatchSize ограничивает число событий за цикл.
func WithBatchSize(size int) Option {
	return func(w *Worker) { w.batchSize = size }
}

// WithMaxAttempts задаёт число попыток доставки одного события.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) { w.maxAttempts = attempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) { w.retryBaseDelay = delay }
}

// Worker доставляет события саги из outbox в брокер в порядке постановки.
// Событие, не ушедшее после всех попыток, помечается failed и копируется в DLQ,
// а более поздние события того же заказа ждут следующего цикла.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	now       func() time.Time

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		now:            time.Now,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	return w
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce выполняет один цикл: забирает пачку pending-событий и доставляет их.
func (w *Worker) ProcessOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer w.observeBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	// Удержание действует до конца цикла: упавшее событие уходит в DLQ, следующие идут в следующем цикле.
	blocked := make(map[string]bool)
	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		if msg.AggregateID != "" && blocked[msg.AggregateID] {
			outboxMessages.WithLabelValues(msg.Topic, resultHeld).Inc()
			continue
		}

		if err := w.deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			blocked[msg.AggregateID] = true
			w.deadLetter(ctx, msg, err)
			continue
		}
		if err := w.repo.MarkSent(ctx, msg.ID); err != nil {
			w.logger.WithError(err).WithField("outbox_id", msg.ID).Warn("failed to mark outbox as sent")
		}
	}
}

// deliver публикует событие, повторяя попытки с экспоненциальной паузой.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			outboxMessages.WithLabelValues(msg.Topic, resultRetried).Inc()
			if err := sleepCtx(ctx, w.retryBackoff(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = w.publisher.Publish(ctx, msg)
		if lastErr == nil {
			outboxMessages.WithLabelValues(msg.Topic, resultSent).Inc()
			return nil
		}
	}
	return fmt.Errorf("publish %s to %q failed after %d attempts: %w", msg.EventType, msg.Topic, w.maxAttempts, lastErr)
}

// deadLetter снимает событие с доставки: копирует его в DLQ и помечает failed.
func (w *Worker) deadLetter(ctx context.Context, msg domain.OutboxMessage, cause error) {
	entry := w.logger.WithError(cause).WithFields(log.Fields{
		"outbox_id":    msg.ID,
		"aggregate_id": msg.AggregateID,
		"event_type":   msg.EventType,
		"topic":        msg.Topic,
	})
	entry.Error("outbox event moved to dead letter")
	outboxMessages.WithLabelValues(msg.Topic, resultDeadLetter).Inc()

	if err := w.publishDeadLetter(ctx, msg, cause); err != nil {
		entry.WithError(err).Warn("failed to publish to DLQ")
		outboxMessages.WithLabelValues(msg.Topic, resultDLQFailed).Inc()
	}
	if err := w.repo.MarkFailed(ctx, msg.ID); err != nil {
		entry.WithError(err).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publishDeadLetter(ctx context.Context, msg domain.OutboxMessage, cause error) error {
	if w.dlq == nil {
		return nil
	}

	body, err := json.Marshal(DeadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Topic:         msg.Topic,
		Payload:       json.RawMessage(msg.Payload),
		PublishError:  cause.Error(),
		FailedAt:      w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	err = w.dlq.Publish(ctx, domain.OutboxMessage{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       body,
	})
	if err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Debug("failed to collect outbox backlog stats")
		return
	}

	outboxBacklog.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		outboxBacklogAge.Set(0)
		return
	}
	outboxBacklogAge.Set(max(0, w.now().Sub(stats.OldestPendingAt).Seconds()))
}

// retryBackoff возвращает паузу перед попыткой attempt+1: base, 2*base, 4*base... не больше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
