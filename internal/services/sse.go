package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SagaProgress is a saga state change pushed to admin dashboards.
type SagaProgress struct {
	ProjectID   uuid.UUID `json:"project_id"`
	ProjectName string    `json:"project_name"`
	State       SagaState `json:"state"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// SagaEventHub fans saga progress out to connected SSE clients.
type SagaEventHub struct {
	clients map[string]chan SagaProgress
	mu      sync.RWMutex
}

func NewSagaEventHub() *SagaEventHub {
	return &SagaEventHub{
		clients: make(map[string]chan SagaProgress),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SagaEventHub) Subscribe(clientID string) <-chan SagaProgress {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan SagaProgress, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SagaEventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Clients with a full
// buffer miss the event.
func (h *SagaEventHub) Publish(event SagaProgress) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *SagaEventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
