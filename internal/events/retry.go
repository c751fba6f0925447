package events

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mni-microservices/project-service/pkg/logger"
)

// RetryPublisher retries failed publishes with exponential backoff.
type RetryPublisher struct {
	next     Publisher
	attempts uint64
	initial  time.Duration
}

// NewRetryPublisher makes at most attempts additional tries after the first
// failure, starting at initial and doubling.
func NewRetryPublisher(next Publisher, attempts int, initial time.Duration) *RetryPublisher {
	if attempts < 0 {
		attempts = 0
	}
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	return &RetryPublisher{next: next, attempts: uint64(attempts), initial: initial}
}

func (p *RetryPublisher) Publish(ctx context.Context, topic string, ev Event) error {
	try := 0
	op := func() error {
		try++
		err := p.next.Publish(ctx, topic, ev)
		if errors.Is(err, ErrBusClosed) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Warn().Err(err).
				Str("topic", topic).
				Str("type", string(ev.EventType())).
				Int("attempt", try).
				Msg("[Events] publish failed")
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.initial
	policy.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, p.attempts), ctx))
}
