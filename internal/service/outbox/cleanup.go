package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultRetention        = 24 * time.Hour
)

var (
	outboxCleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodorder_outbox_cleanup_runs_total",
		Help: "Total number of outbox cleanup runs grouped by result.",
	}, []string{"result"})
	outboxCleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodorder_outbox_cleanup_deleted_total",
		Help: "Total number of published outbox records removed after retention.",
	})
)

// Purger удаляет опубликованные записи outbox старше before, не больше limit за вызов.
type Purger interface {
	DeleteSentBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// CleanupConfig задаёт расписание очистки.
type CleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// Cleaner периодически удаляет отправленные события, чтобы таблица outbox не росла бесконечно.
// Pending и failed записи не трогаются.
type Cleaner struct {
	repo   Purger
	cfg    CleanupConfig
	logger *log.Entry
	now    func() time.Time
}

// NewCleaner создаёт воркер очистки outbox.
func NewCleaner(repo Purger, cfg CleanupConfig, logger *log.Entry) *Cleaner {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultCleanupInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultCleanupBatchSize
	}
	if logger == nil {
		logger = log.WithField("component", "outbox-cleaner")
	}
	return &Cleaner{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// Run чистит outbox сразу и затем по таймеру до отмены ctx.
func (c *Cleaner) Run(ctx context.Context) {
	if c.repo == nil {
		c.logger.Warn("outbox cleaner is disabled: repo is nil")
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	deleted, err := c.Purge(ctx, c.now().UTC().Add(-c.cfg.Retention))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		outboxCleanupRuns.WithLabelValues("error").Inc()
		c.logger.WithError(err).Warn("outbox cleanup run failed")
		return
	}

	outboxCleanupRuns.WithLabelValues("ok").Inc()
	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("outbox cleanup completed")
	}
}

// Purge удаляет отправленные записи старше before порциями BatchSize.
func (c *Cleaner) Purge(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := c.repo.DeleteSentBefore(ctx, before, c.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		outboxCleanupDeleted.Add(float64(deleted))

		if deleted < c.cfg.BatchSize {
			return total, nil
		}
	}
}
