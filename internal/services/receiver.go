package services

import (
	"context"
	"fmt"

	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/rs/zerolog"
)

// Receiver dispatches events from the data and saga topics to the services
// that act on them.
type Receiver struct {
	subscriber events.Subscriber
	saga       *SagaService
	users      *UserReplicaService
	dataTopic  string
	sagaTopic  string
	log        zerolog.Logger
}

func NewReceiver(subscriber events.Subscriber, saga *SagaService, users *UserReplicaService, topics *config.EventsConfig) *Receiver {
	return &Receiver{
		subscriber: subscriber,
		saga:       saga,
		users:      users,
		dataTopic:  topics.DataTopic,
		sagaTopic:  topics.SagaTopic,
		log:        logger.Component("receiver"),
	}
}

// Start subscribes to both topics. Delivery stops when ctx is cancelled.
func (r *Receiver) Start(ctx context.Context) error {
	if err := r.subscriber.Subscribe(ctx, r.dataTopic, r.HandleDataEvent); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.dataTopic, err)
	}
	if err := r.subscriber.Subscribe(ctx, r.sagaTopic, r.HandleSagaEvent); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.sagaTopic, err)
	}
	r.log.Info().Str("data_topic", r.dataTopic).Str("saga_topic", r.sagaTopic).Msg("receiver started")
	return nil
}

func (r *Receiver) HandleDataEvent(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.DataEvent:
		r.log.Debug().Str("entity", string(e.Entity)).Str("code", string(e.Code)).Str("id", e.ID.String()).Msg("data event")
		return r.users.Apply(ctx, e)
	case events.SagaEvent:
		r.saga.Receive(ctx, e)
	case events.DomainEventChangedString, events.DomainEventChangedStringUUID:
		// Domain events of other services carry nothing this service needs.
		r.log.Debug().Str("type", string(ev.EventType())).Msg("ignoring domain event")
	default:
		r.log.Error().Str("type", string(ev.EventType())).Msg("unknown event on data topic")
	}
	return nil
}

func (r *Receiver) HandleSagaEvent(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.SagaEvent)
	if !ok {
		r.log.Error().Str("type", string(ev.EventType())).Msg("unknown event on saga topic")
		return nil
	}
	r.log.Debug().
		Str("reference", string(e.ReferenceType)+"/"+e.ReferenceValue.String()).
		Str("status", string(e.Status)).
		Bool("success", e.Success).
		Msg("saga event")
	r.saga.Receive(ctx, e)
	return nil
}
