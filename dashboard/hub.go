package dashboard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"elegentdefi/observability"
)

// Message is one item on the event stream.
type Message struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// ErrTooManyClients is returned by Subscribe when the hub is full.
var ErrTooManyClients = errors.New("dashboard: too many stream clients")

const clientBuffer = 32

// Hub fans platform events out to websocket clients. Slow clients lose
// messages rather than stall the publisher.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]chan Message
	maxClients int
	now        func() time.Time
	closed     bool
}

// NewHub returns a hub. maxClients <= 0 means unlimited.
func NewHub(maxClients int) *Hub {
	return &Hub{
		clients:    make(map[string]chan Message),
		maxClients: maxClients,
		now:        time.Now,
	}
}

// Publish has the signature of state.Handlers.Any so the watcher can feed
// the hub directly.
func (h *Hub) Publish(event string, payload any) {
	msg := Message{Event: event, Payload: payload, At: h.now().UTC()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			observability.Events().RecordDropped(event, "slow_client")
		}
	}
}

// Subscribe registers a client. cancel closes the channel.
func (h *Hub) Subscribe() (id string, messages <-chan Message, cancel func(), err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "", nil, nil, errors.New("dashboard: hub closed")
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return "", nil, nil, ErrTooManyClients
	}
	id = uuid.NewString()
	ch := make(chan Message, clientBuffer)
	h.clients[id] = ch
	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			if current, ok := h.clients[id]; ok && current == ch {
				delete(h.clients, id)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return id, ch, cancel, nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}
