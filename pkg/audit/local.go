package audit

import (
	"context"
	"sync"
)

// Callback is invoked for each (topic, event) pair a LocalPublisher routes
// an event to.
type Callback func(topic string, event RequestAuditEvent)

// LocalPublisher is an in-memory Publisher used when no Kafka brokers are
// configured, so the engine runs without a Kafka cluster. It applies the
// same topic routing as KafkaPublisher but calls registered callbacks
// directly instead of producing to a broker.
type LocalPublisher struct {
	router *topicRouter

	mu        sync.Mutex
	closed    bool
	callbacks []Callback
	events    []RequestAuditEvent
}

var _ Publisher = (*LocalPublisher)(nil)

// NewLocalPublisher returns a LocalPublisher routing with topics.
func NewLocalPublisher(topics Topics) *LocalPublisher {
	return &LocalPublisher{router: newTopicRouter(topics)}
}

// OnPublish registers a callback invoked for every routed event, in
// registration order.
func (p *LocalPublisher) OnPublish(cb Callback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// Publish routes event and invokes every registered callback; it also
// retains the event for Events().
func (p *LocalPublisher) Publish(_ context.Context, event RequestAuditEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.events = append(p.events, event)
	for _, topic := range p.router.route(event) {
		for _, cb := range p.callbacks {
			cb(topic, event)
		}
	}
}

// Events returns a snapshot of every event published so far.
func (p *LocalPublisher) Events() []RequestAuditEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RequestAuditEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close marks the publisher closed; subsequent Publish calls are no-ops.
func (p *LocalPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
