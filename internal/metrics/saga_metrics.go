package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты обработки ответа участника саги.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// SagaMetrics содержит метрики саги заказа.
type SagaMetrics struct {
	sagaStarted      prometheus.Counter
	sagaApproved     prometheus.Counter
	sagaCancelled    prometheus.Counter
	sagaCompensating prometheus.Counter
	sagaFailed       prometheus.Counter

	// responses считает ответы по участнику (payment, approval) и результату.
	responses *prometheus.CounterVec

	sagaDuration prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	activeSagas prometheus.Gauge
}

// NewSagaMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewSagaMetrics() *SagaMetrics {
	return NewSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSagaMetricsWithRegisterer регистрирует метрики в заданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		sagaStarted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_saga_started_total",
			Help: "Total number of order sagas started",
		})),
		sagaApproved: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_saga_approved_total",
			Help: "Total number of orders approved by restaurants",
		})),
		sagaCancelled: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_saga_cancelled_total",
			Help: "Total number of orders cancelled",
		})),
		sagaCompensating: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_saga_compensations_total",
			Help: "Total number of payment compensations started",
		})),
		sagaFailed: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_saga_failed_total",
			Help: "Total number of saga steps that failed with an error",
		})),
		responses: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodorder_saga_responses_total",
			Help: "Participant responses grouped by participant and outcome",
		}, []string{"participant", "outcome"})),
		sagaDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodorder_saga_duration_seconds",
			Help:    "Time from order creation to a terminal status",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		})),
		stepDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodorder_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		outboxEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_outbox_events_total",
			Help: "Total number of events enqueued to the outbox",
		})),
		activeSagas: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foodorder_active_sagas",
			Help: "Number of orders that have not reached a terminal status",
		})),
	}
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
		}
		return existing
	}
	panic(fmt.Sprintf("register collector: %v", err))
}

// RecordSagaStarted фиксирует создание заказа.
func (m *SagaMetrics) RecordSagaStarted() {
	m.sagaStarted.Inc()
	m.activeSagas.Inc()
}

// RecordSagaApproved фиксирует успешное завершение саги.
func (m *SagaMetrics) RecordSagaApproved(duration time.Duration) {
	m.sagaApproved.Inc()
	m.finish(duration)
}

// RecordSagaCancelled фиксирует отмену заказа.
func (m *SagaMetrics) RecordSagaCancelled(duration time.Duration) {
	m.sagaCancelled.Inc()
	m.finish(duration)
}

// RecordCompensationStarted фиксирует запрос на возврат оплаты.
func (m *SagaMetrics) RecordCompensationStarted() {
	m.sagaCompensating.Inc()
}

// RecordSagaFailed фиксирует ошибку шага саги.
func (m *SagaMetrics) RecordSagaFailed() {
	m.sagaFailed.Inc()
}

// RecordResponse учитывает ответ участника саги.
func (m *SagaMetrics) RecordResponse(participant, outcome string) {
	m.responses.WithLabelValues(participant, outcome).Inc()
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *SagaMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SagaMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SagaMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

func (m *SagaMetrics) finish(duration time.Duration) {
	m.activeSagas.Dec()
	if duration > 0 {
		m.sagaDuration.Observe(duration.Seconds())
	}
}
