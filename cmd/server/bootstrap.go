package main

import (
	"context"
	"fmt"

	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/handlers"
	"github.com/mni-microservices/project-service/internal/middleware"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/internal/services"
	"github.com/mni-microservices/project-service/internal/utils"
	"github.com/mni-microservices/project-service/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	bus         events.Bus
	taskQueue   services.TaskQueue
	worker      *services.Worker
	sweeper     *services.SagaSweeper
	limiter     *middleware.RateLimiter
	stopReceive context.CancelFunc

	projectHandler *handlers.ProjectHandler
	memberHandler  *handlers.MemberHandler
	sagaHandler    *handlers.SagaHandler
	sseHandler     *handlers.SSEHandler
	healthHandler  *handlers.HealthHandler
	metricsHandler *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, event bus,
// services and background loops.
func bootstrap(cfg *config.Config) (*appServices, error) {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	bus, err := openBus(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := wire(cfg, models.GetDB(), bus)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return svc, nil
}

// openBus connects to Redis Streams when Redis is enabled and keeps events in
// process otherwise.
func openBus(cfg *config.Config) (events.Bus, error) {
	if !cfg.Redis.Enabled {
		logger.Info().Msg("Event bus: in-memory (Redis disabled)")
		return events.NewMemoryBus(), nil
	}
	bus, err := events.DialRedisStreamBus(context.Background(), &cfg.Redis, &cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Event bus: Redis Streams")
	return bus, nil
}

// wire builds services and handlers on top of db and bus and starts the
// background consumers.
func wire(cfg *config.Config, db *gorm.DB, bus events.Bus) (*appServices, error) {
	repos := repository.New(db)
	metrics := services.NewMetrics()

	// Outgoing events go through the task queue: asynq when Redis is reachable,
	// direct publishing with retries otherwise.
	taskQueue := services.NewTaskQueue(cfg, bus)

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, events.NewRetryPublisher(bus, cfg.Saga.RetryAttempts, cfg.Saga.RetryInterval))
		if worker != nil {
			if err := worker.Start(); err != nil {
				taskQueue.Close()
				return nil, fmt.Errorf("failed to start worker: %w", err)
			}
		}
	}

	permissions := services.NewPermissionService(repos.Projects, repos.Members)
	members := services.NewMemberService(repos.Members, repos.Users, permissions, taskQueue, cfg.Events.DomainTopic, metrics)
	hub := services.NewSagaEventHub()
	saga := services.NewSagaService(services.NewSagaRegistry(), repos.Projects, taskQueue, &cfg.Events, &cfg.Saga, metrics).
		WithProgressHub(hub)
	if _, shared := bus.(*events.RedisStreamBus); shared {
		// Each instance reads the saga stream through its own group.
		saga.WithSharedSagaTopic()
	}
	projects := services.NewProjectService(repos.Projects, members, permissions, saga, taskQueue, &cfg.Events, metrics)
	users := services.NewUserReplicaService(repos.Users)

	receiveCtx, stopReceive := context.WithCancel(context.Background())
	if err := services.NewReceiver(bus, saga, users, &cfg.Events).Start(receiveCtx); err != nil {
		stopReceive()
		if worker != nil {
			worker.Stop()
		}
		taskQueue.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	sweeper := services.NewSagaSweeper(saga, cfg.Saga.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		logger.Warn().Err(err).Msg("Saga sweeper disabled")
		sweeper = nil
	}

	return &appServices{
		bus:            bus,
		taskQueue:      taskQueue,
		worker:         worker,
		sweeper:        sweeper,
		stopReceive:    stopReceive,
		projectHandler: handlers.NewProjectHandler(projects),
		memberHandler:  handlers.NewMemberHandler(members),
		sagaHandler:    handlers.NewSagaHandler(saga),
		sseHandler:     handlers.NewSSEHandler(hub),
		healthHandler:  handlers.NewHealthHandler(db, taskQueue, saga, hub),
		metricsHandler: handlers.NewMetricsHandler(db, taskQueue, saga, metrics),
	}, nil
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	s.stopReceive()
	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.worker != nil {
		s.worker.Stop()
	}
	if err := s.taskQueue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if err := s.bus.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close event bus")
	}
	logger.Info().Msg("All background services stopped")
}
