package events

import "context"

// Handler processes one delivered event. A returned error leaves the message
// unacknowledged on buses that support redelivery.
type Handler func(ctx context.Context, ev Event) error

type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

type Subscriber interface {
	// Subscribe starts delivering events of topic to h in a background
	// goroutine until ctx is cancelled or the bus is closed. Events of one
	// subscription are handled one at a time, in order.
	Subscribe(ctx context.Context, topic string, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}
