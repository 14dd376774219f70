package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/observability"
)

// Hub tracks local subscriptions per topic and signals them.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	log    zerolog.Logger
}

// Subscription receives a coalesced signal whenever one of its topics fires.
type Subscription struct {
	hub    *Hub
	topics []string
	signal chan struct{}
	once   sync.Once
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		log:    logger.With().Str("component", "realtime_hub").Logger(),
	}
}

// Subscribe registers interest in the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topics: append([]string(nil), topics...),
		signal: make(chan struct{}, 1),
	}

	h.mu.Lock()
	for _, topic := range sub.topics {
		if _, ok := h.topics[topic]; !ok {
			h.topics[topic] = make(map[*Subscription]struct{})
		}
		h.topics[topic][sub] = struct{}{}
	}
	h.mu.Unlock()

	observability.LiveSubscriptions().Inc()
	return sub
}

// Notify signals every subscription of the given topics and returns how many were signalled.
// A subscription with a pending signal is not signalled twice.
func (h *Hub) Notify(topics ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	signalled := 0
	for _, topic := range topics {
		for sub := range h.topics[topic] {
			select {
			case sub.signal <- struct{}{}:
				signalled++
			default:
			}
		}
	}
	return signalled
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range sub.topics {
		subscribers, ok := h.topics[topic]
		if !ok {
			continue
		}
		delete(subscribers, sub)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

// C returns the signal channel.
func (s *Subscription) C() <-chan struct{} {
	return s.signal
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		observability.LiveSubscriptions().Dec()
	})
}
