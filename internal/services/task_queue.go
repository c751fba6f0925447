package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/pkg/logger"
)

const (
	TaskTypePublishEvent = "event:publish"
	eventQueueName       = "events"
)

// PublishTask is the asynq payload for one outbound event.
type PublishTask struct {
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event"` // encoded envelope
}

// TaskQueue is the outbound side of the event channel. Coordinators publish
// through it; it either hands events to the bus right away or parks them in
// Redis for the worker.
type TaskQueue interface {
	events.Publisher
	// IsAsync returns true if events are delivered by the background worker
	IsAsync() bool
	Close() error
}

// NewTaskQueue picks the async queue when Redis is enabled and reachable,
// otherwise publishes synchronously to bus with retries.
func NewTaskQueue(cfg *config.Config, bus events.Publisher) TaskQueue {
	direct := events.NewRetryPublisher(bus, cfg.Saga.RetryAttempts, cfg.Saga.RetryInterval)

	if !cfg.Redis.Enabled {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue(direct)
	}

	queue, err := NewAsyncQueue(&cfg.Redis, cfg.Saga.RetryAttempts)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue(direct)
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
	return queue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client   *asynq.Client
	maxRetry int
}

func NewAsyncQueue(cfg *config.RedisConfig, maxRetry int) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Verify the connection before committing to async mode.
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client, maxRetry: maxRetry}, nil
}

// Publish enqueues ev for the worker. A nil error means the event is stored
// in Redis, not that it reached the bus.
func (q *AsyncQueue) Publish(ctx context.Context, topic string, ev events.Event) error {
	data, err := events.Encode(ev)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(PublishTask{Topic: topic, Event: data})
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypePublishEvent, payload),
		asynq.Queue(eventQueueName),
		asynq.MaxRetry(q.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", ev.EventType(), err)
	}

	logger.Debugf("[AsyncQueue] Event enqueued: id=%s, topic=%s, type=%s", info.ID, topic, ev.EventType())
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue by publishing in the caller's goroutine.
type SyncQueue struct {
	publisher events.Publisher
}

func NewSyncQueue(publisher events.Publisher) *SyncQueue {
	return &SyncQueue{publisher: publisher}
}

func (q *SyncQueue) Publish(ctx context.Context, topic string, ev events.Event) error {
	if q.publisher == nil {
		logger.Warnf("[SyncQueue] Warning: no publisher set, %s dropped", ev.EventType())
		return nil
	}
	return q.publisher.Publish(ctx, topic, ev)
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close is a no-op for sync queue
func (q *SyncQueue) Close() error {
	return nil
}

// publishLogged publishes ev after a committed mutation. Failures are logged
// and counted; the mutation stays.
func publishLogged(ctx context.Context, publisher events.Publisher, metrics *Metrics, topic string, ev events.Event) {
	// The request may already be gone; the event still has to go out.
	ctx = context.WithoutCancel(ctx)
	if err := publisher.Publish(ctx, topic, ev); err != nil {
		metrics.publishFailures.Add(1)
		logger.Error().Err(err).
			Str("topic", topic).
			Str("type", string(ev.EventType())).
			Msg("[Events] publish failed")
	}
}
