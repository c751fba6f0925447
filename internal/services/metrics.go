package services

import "sync/atomic"

// Metrics counts saga outcomes and event publishing failures.
type Metrics struct {
	sagasStarted         atomic.Int64
	sagasCompleted       atomic.Int64
	sagasCompensated     atomic.Int64
	sagasTimedOut        atomic.Int64
	compensationFailures atomic.Int64
	deadLetters          atomic.Int64
	foreignSagaEvents    atomic.Int64
	publishFailures      atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

type MetricsSnapshot struct {
	SagasStarted         int64 `json:"sagas_started"`
	SagasCompleted       int64 `json:"sagas_completed"`
	SagasCompensated     int64 `json:"sagas_compensated"`
	SagasTimedOut        int64 `json:"sagas_timed_out"`
	CompensationFailures int64 `json:"compensation_failures"`
	DeadLetters          int64 `json:"dead_letters"`
	ForeignSagaEvents    int64 `json:"foreign_saga_events"`
	PublishFailures      int64 `json:"publish_failures"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SagasStarted:         m.sagasStarted.Load(),
		SagasCompleted:       m.sagasCompleted.Load(),
		SagasCompensated:     m.sagasCompensated.Load(),
		SagasTimedOut:        m.sagasTimedOut.Load(),
		CompensationFailures: m.compensationFailures.Load(),
		DeadLetters:          m.deadLetters.Load(),
		ForeignSagaEvents:    m.foreignSagaEvents.Load(),
		PublishFailures:      m.publishFailures.Load(),
	}
}
