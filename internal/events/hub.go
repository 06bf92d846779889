// Package events fans status/progress/result/complete events out to every
// subscriber of the engine's single in-flight run.
//
// Follows the client-registry-plus-broadcast-channel shape of
// github.com/georgi-georgiev/testmesh's api/internal/api/websocket/hub.go,
// generalized from per-execution-ID rooms down to one run-scoped broadcast,
// since the engine runs at most one test at a time.
package events

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Type discriminates the four event kinds pushed to subscribers.
type Type string

const (
	TestStatus   Type = "test-status"
	TestProgress Type = "test-progress"
	TestResult   Type = "test-result"
	TestComplete Type = "test-complete"
)

// Event is one message pushed to every subscriber, in emission order.
type Event struct {
	Type Type        `json:"type"`
	Data interface{} `json:"data"`
}

// Marshal renders e as JSON, the wire shape sent over internal/api/websocket.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// subscriberQueueDepth bounds the per-subscriber backlog before the slowest
// subscriber is dropped rather than stalling the broadcaster.
const subscriberQueueDepth = 256

// Hub broadcasts events to every currently-registered subscriber. Safe for
// concurrent use; Publish is the only write path callers outside this
// package use.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	logger      *zap.Logger
}

// NewHub builds an empty Hub. A nil logger disables logging.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe func the caller must invoke when it stops reading.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberQueueDepth)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	once := sync.Once{}
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish sends e to every current subscriber. A subscriber whose queue is
// full is dropped rather than allowed to stall the others — total status
// ordering is preserved for subscribers that keep up; a dropped subscriber
// simply misses events until it resubscribes.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.logger.Warn("event subscriber queue full, dropping subscriber", zap.String("type", string(e.Type)))
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

// SubscriberCount reports the number of currently registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
