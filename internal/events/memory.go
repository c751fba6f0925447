package events

import (
	"context"
	"errors"
	"sync"

	"github.com/mni-microservices/project-service/pkg/logger"
)

// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// memorySubscription queues encoded events without bound. A handler may
// publish onto its own topic, so enqueueing must never wait for the loop.
type memorySubscription struct {
	topic string
	mu    sync.Mutex
	queue [][]byte
	wake  chan struct{}
}

func (s *memorySubscription) push(data []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.queue
	s.queue = nil
	return batch
}

func (s *memorySubscription) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// MemoryBus is an in-process Bus used when Redis is disabled and in tests.
// Events go through the same envelope encoding as on the wire.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySubscription]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[*memorySubscription]struct{}),
		done: make(chan struct{}),
	}
}

// Publish queues the encoded event on every subscription of topic. It never
// waits for a subscriber, so handlers can publish to the topic they consume.
func (b *MemoryBus) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	for sub := range b.subs {
		if sub.topic == topic {
			sub.push(data)
		}
	}
	b.mu.RUnlock()
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	sub := &memorySubscription{
		topic: topic,
		wake:  make(chan struct{}, 1),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer b.unsubscribe(sub)
		log := logger.Component("memory-bus")

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case <-sub.wake:
			}
			for _, data := range sub.drain() {
				if ctx.Err() != nil || b.isClosed() {
					return
				}
				ev, err := Decode(data)
				if err != nil {
					log.Error().Err(err).Str("topic", topic).Msg("dropping undecodable event")
					continue
				}
				if err := h(ctx, ev); err != nil {
					log.Error().Err(err).Str("topic", topic).Str("type", string(ev.EventType())).Msg("handler failed")
				}
			}
		}
	}()
	return nil
}

func (b *MemoryBus) unsubscribe(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}

func (b *MemoryBus) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Pending returns the number of events queued on topic that no handler has
// picked up yet.
func (b *MemoryBus) Pending(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for sub := range b.subs {
		if sub.topic == topic {
			n += sub.pending()
		}
	}
	return n
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for sub := range b.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}

// Close stops every subscription loop and waits for in-flight handlers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
