package pubsub

import (
	"sort"
	"sync"
)

// Handler is the callback signature for topic notifications.
//
// Parameters:
//   - topic: The topic the payload was delivered on
//   - payload: The raw payload string from the snapshot
type Handler func(topic, payload string)

// Registry maps topics to a single notification handler.
//
// A later Subscribe on the same topic replaces the earlier handler.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Handlers are called without holding the registry lock.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Subscribe inserts or replaces the handler for a topic.
// A nil handler is ignored.
func (r *Registry) Subscribe(topic string, handler Handler) {
	if handler == nil {
		return
	}
	r.mu.Lock()
	r.handlers[topic] = handler
	r.mu.Unlock()
}

// Unsubscribe removes the handler for a topic. Absent topics are a no-op.
func (r *Registry) Unsubscribe(topic string) {
	r.mu.Lock()
	delete(r.handlers, topic)
	r.mu.Unlock()
}

// Notify invokes the handler registered for topic, if any.
//
// Returns:
//   - bool: true if a handler was invoked, false if the topic has no subscriber
func (r *Registry) Notify(topic, payload string) bool {
	r.mu.RLock()
	handler, ok := r.handlers[topic]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	handler(topic, payload)
	return true
}

// Clear removes all subscriptions.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.handlers = make(map[string]Handler)
	r.mu.Unlock()
}

// Len returns the number of subscribed topics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Has reports whether a handler is registered for the exact topic.
func (r *Registry) Has(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[topic]
	return ok
}

// Topics returns the subscribed topics in sorted order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	r.mu.RUnlock()
	sort.Strings(topics)
	return topics
}
