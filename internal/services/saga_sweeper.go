package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 30 * time.Second

// SagaSweeper periodically compensates sagas whose deadline has passed.
type SagaSweeper struct {
	saga     *SagaService
	schedule string
	cron     *cron.Cron
}

func NewSagaSweeper(saga *SagaService, schedule string) *SagaSweeper {
	return &SagaSweeper{
		saga:     saga,
		schedule: schedule,
		cron:     cron.New(),
	}
}

func (s *SagaSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	logger.Infof("[SagaSweeper] Started with schedule: %s", s.schedule)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *SagaSweeper) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("[SagaSweeper] Stopped")
}

func (s *SagaSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if n := s.saga.Sweep(ctx); n > 0 {
		logger.Infof("[SagaSweeper] Compensated %d expired saga(s)", n)
	}
}
