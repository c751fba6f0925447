package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/pkg/logger"
)

// Worker drains the async queue and hands each event to the bus.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	publisher events.Publisher
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, publisher events.Publisher) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			// One worker keeps events of the queue in enqueue order.
			Concurrency: 1,
			Queues: map[string]int{
				eventQueueName: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		publisher: publisher,
	}
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypePublishEvent, w.handlePublishTask)

	// Start instead of Run: shutdown is driven by the caller, not by signals.
	logger.Infof("[Worker] Starting event publish worker...")
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.running = true
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handlePublishTask(ctx context.Context, t *asynq.Task) error {
	var task PublishTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	ev, err := events.Decode(task.Event)
	if err != nil {
		// Retrying cannot fix a payload this build does not understand.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	logger.Debugf("[Worker] Publishing %s to %s", ev.EventType(), task.Topic)
	return w.publisher.Publish(ctx, task.Topic, ev)
}
