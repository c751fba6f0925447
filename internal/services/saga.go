package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/rs/zerolog"
)

type SagaState string

const (
	SagaStateStarted      SagaState = "STARTED"
	SagaStateCompleted    SagaState = "COMPLETED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateCompensated  SagaState = "COMPENSATED"
)

// ProjectDeletedSaga tracks one project deletion until the issue service has
// removed the project's issues. It keeps the deleted rows so they can be
// restored.
type ProjectDeletedSaga struct {
	Project        models.Project  `json:"project"`
	Members        []models.Member `json:"members"`
	IssuesDeleted  bool            `json:"issues_deleted"`
	ProjectDeleted bool            `json:"project_deleted"`
	MembersDeleted bool            `json:"members_deleted"`
	State          SagaState       `json:"state"`
	StartedAt      time.Time       `json:"started_at"`
	Deadline       time.Time       `json:"deadline"`
}

func (s *ProjectDeletedSaga) IsComplete() bool {
	return s.IssuesDeleted && s.ProjectDeleted && s.MembersDeleted
}

func (s *ProjectDeletedSaga) clone() ProjectDeletedSaga {
	c := *s
	c.Members = append([]models.Member(nil), s.Members...)
	return c
}

// SagaService runs the project deletion saga: it announces the deletion,
// waits for the issue service and either finishes or restores the project.
type SagaService struct {
	registry        *SagaRegistry
	projects        repository.ProjectRepository
	publisher       events.Publisher
	sagaTopic       string
	deadLetterTopic string
	timeout         time.Duration
	metrics         *Metrics
	progress        *SagaEventHub
	sharedTopic     bool
	log             zerolog.Logger
	now             func() time.Time
}

func NewSagaService(
	registry *SagaRegistry,
	projects repository.ProjectRepository,
	publisher events.Publisher,
	eventsCfg *config.EventsConfig,
	sagaCfg *config.SagaConfig,
	metrics *Metrics,
) *SagaService {
	return &SagaService{
		registry:        registry,
		projects:        projects,
		publisher:       publisher,
		sagaTopic:       eventsCfg.SagaTopic,
		deadLetterTopic: eventsCfg.DeadLetterTopic,
		timeout:         sagaCfg.Timeout,
		metrics:         metrics,
		log:             logger.Component("saga"),
		now:             time.Now,
	}
}

// WithProgressHub makes the service report state changes to hub.
func (s *SagaService) WithProgressHub(hub *SagaEventHub) *SagaService {
	s.progress = hub
	return s
}

// WithSharedSagaTopic tells the service that every instance sees every saga
// event. An event without a local saga then most likely belongs to another
// instance and is counted as foreign instead of dead-lettered.
func (s *SagaService) WithSharedSagaTopic() *SagaService {
	s.sharedTopic = true
	return s
}

func (s *SagaService) report(project models.Project, state SagaState, reason string) {
	if s.progress == nil {
		return
	}
	s.progress.Publish(SagaProgress{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		State:       state,
		Reason:      reason,
		At:          s.now(),
	})
}

// Start registers a saga for a project whose rows were just deleted and
// announces it. It returns false if a saga for the project is already running.
// If the announcement cannot be published the project is restored at once and
// the error is returned.
func (s *SagaService) Start(ctx context.Context, project models.Project, members []models.Member) (bool, error) {
	now := s.now()
	saga := &ProjectDeletedSaga{
		Project:        project,
		Members:        members,
		ProjectDeleted: true,
		MembersDeleted: true,
		State:          SagaStateStarted,
		StartedAt:      now,
		Deadline:       now.Add(s.timeout),
	}
	if !s.registry.Register(saga) {
		s.log.Warn().Str("project_id", project.ID.String()).Msg("saga already running, ignoring start")
		return false, nil
	}
	s.metrics.sagasStarted.Add(1)
	s.report(project, SagaStateStarted, "")

	err := s.publisher.Publish(ctx, s.sagaTopic, events.SagaEvent{
		ReferenceType:  events.SagaReferenceProject,
		ReferenceValue: project.ID,
		Status:         events.SagaBegin,
		Success:        true,
	})
	if err != nil {
		s.metrics.publishFailures.Add(1)
		s.log.Error().Err(err).Str("project_id", project.ID.String()).Msg("could not announce deletion, compensating")
		if taken, ok := s.registry.Take(project.ID); ok {
			s.compensate(context.WithoutCancel(ctx), taken, "begin not published")
		}
		return true, fmt.Errorf("publish saga begin: %w", err)
	}

	s.log.Info().
		Str("project_id", project.ID.String()).
		Int("members", len(members)).
		Time("deadline", saga.Deadline).
		Msg("saga started")
	return true, nil
}

// Receive applies a saga event from the bus. Events for other reference types,
// the statuses this service emits itself and events for unknown sagas are
// ignored.
func (s *SagaService) Receive(ctx context.Context, ev events.SagaEvent) {
	if ev.ReferenceType != events.SagaReferenceProject {
		return
	}

	log := s.log.With().
		Str("project_id", ev.ReferenceValue.String()).
		Str("status", string(ev.Status)).
		Bool("success", ev.Success).
		Logger()

	switch ev.Status {
	case events.SagaBegin, events.SagaComplete:
		return
	case events.SagaIssuesDeleted:
	default:
		log.Warn().Msg("unknown saga status")
		return
	}

	if !ev.Success {
		saga, ok := s.registry.Take(ev.ReferenceValue)
		if !ok {
			s.deadLetter(ctx, ev)
			return
		}
		log.Info().Msg("issue service failed, compensating")
		s.compensate(ctx, saga, "issue deletion failed")
		return
	}

	taken, state, found := s.registry.MarkIssuesDeleted(ev.ReferenceValue)
	switch {
	case !found:
		s.deadLetter(ctx, ev)
	case taken != nil:
		s.finish(ctx, taken)
	default:
		log.Debug().Str("state", string(state)).Msg("saga not finished yet")
	}
}

// Sweep compensates every saga past its deadline and returns how many it took.
func (s *SagaService) Sweep(ctx context.Context) int {
	expired := s.registry.TakeExpired(s.now())
	for _, saga := range expired {
		if saga.State == SagaStateStarted {
			s.metrics.sagasTimedOut.Add(1)
			s.log.Warn().Str("project_id", saga.Project.ID.String()).Msg("saga timed out")
		}
		s.compensate(ctx, saga, "timed out")
	}
	return len(expired)
}

// List returns the sagas still in flight.
func (s *SagaService) List() []ProjectDeletedSaga {
	return s.registry.List()
}

func (s *SagaService) InFlight() int {
	return s.registry.Len()
}

func (s *SagaService) finish(ctx context.Context, saga *ProjectDeletedSaga) {
	saga.State = SagaStateCompleted
	s.metrics.sagasCompleted.Add(1)
	s.log.Info().Str("project_id", saga.Project.ID.String()).Msg("saga completed")
	s.report(saga.Project, saga.State, "")
	s.publishComplete(ctx, saga, true)
}

// compensate restores the deleted rows. The caller must have taken saga out
// of the registry. If the restore fails the saga is put back with an expired
// deadline so the next sweep retries it.
func (s *SagaService) compensate(ctx context.Context, saga *ProjectDeletedSaga, reason string) {
	saga.State = SagaStateCompensating

	if err := s.projects.Restore(ctx, &saga.Project, saga.Members); err != nil {
		s.metrics.compensationFailures.Add(1)
		s.log.Error().Err(err).
			Str("project_id", saga.Project.ID.String()).
			Str("reason", reason).
			Msg("compensation failed, will retry")
		saga.Deadline = s.now()
		s.report(saga.Project, saga.State, reason)
		if !s.registry.Register(saga) {
			s.metrics.compensationFailures.Add(1)
			s.log.Error().
				Str("project_id", saga.Project.ID.String()).
				Int("members", len(saga.Members)).
				Msg("could not park saga for retry, snapshot dropped")
		}
		return
	}

	saga.State = SagaStateCompensated
	s.metrics.sagasCompensated.Add(1)
	s.log.Info().
		Str("project_id", saga.Project.ID.String()).
		Int("members", len(saga.Members)).
		Str("reason", reason).
		Msg("saga compensated, project restored")
	s.report(saga.Project, saga.State, reason)
	s.publishComplete(ctx, saga, false)
}

func (s *SagaService) publishComplete(ctx context.Context, saga *ProjectDeletedSaga, success bool) {
	publishLogged(ctx, s.publisher, s.metrics, s.sagaTopic, events.SagaEvent{
		ReferenceType:  events.SagaReferenceProject,
		ReferenceValue: saga.Project.ID,
		Status:         events.SagaComplete,
		Success:        success,
	})
}

func (s *SagaService) deadLetter(ctx context.Context, ev events.SagaEvent) {
	if s.sharedTopic {
		s.metrics.foreignSagaEvents.Add(1)
		s.log.Debug().
			Str("project_id", ev.ReferenceValue.String()).
			Str("status", string(ev.Status)).
			Msg("no local saga for event")
		return
	}
	s.metrics.deadLetters.Add(1)
	s.log.Debug().
		Str("project_id", ev.ReferenceValue.String()).
		Str("status", string(ev.Status)).
		Msg("no saga for event")

	if s.deadLetterTopic == "" {
		return
	}
	if err := s.publisher.Publish(ctx, s.deadLetterTopic, ev); err != nil {
		s.log.Warn().Err(err).Msg("could not forward to dead letter topic")
	}
}
