// Package bus provides the in-process message bus the emulator and its
// collaborators communicate over: named endpoints for point-to-point
// commands and topics for published events.
//
// Dispatch is strictly synchronous and single-goroutine: every handler runs
// to completion on the caller's goroutine, so events emitted while handling
// one input are observed in the order produced. Serialization of external
// inputs is the Queue's job; the bus itself takes no locks.
package bus

import (
	"strings"

	"github.com/yanun0323/logs"
)

// Handler consumes a message sent to an endpoint or published on a topic.
type Handler func(msg any)

type subscription struct {
	pattern string
	handler Handler
}

// Bus routes messages between registered endpoints and topic subscribers.
type Bus struct {
	endpoints map[string]Handler
	subs      []subscription
	sent      uint64
	published uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{endpoints: make(map[string]Handler)}
}

// Register binds a handler to a named endpoint, replacing any previous one.
func (b *Bus) Register(endpoint string, h Handler) {
	b.endpoints[endpoint] = h
}

// Deregister removes an endpoint binding.
func (b *Bus) Deregister(endpoint string) {
	delete(b.endpoints, endpoint)
}

// IsRegistered reports whether an endpoint has a handler.
func (b *Bus) IsRegistered(endpoint string) bool {
	_, ok := b.endpoints[endpoint]
	return ok
}

// Send delivers a message to one endpoint. Unknown endpoints are logged and
// dropped; a lost command is a wiring error, not a crash.
func (b *Bus) Send(endpoint string, msg any) {
	h, ok := b.endpoints[endpoint]
	if !ok {
		logs.Errorf("bus: no endpoint registered for %q, dropping %T", endpoint, msg)
		return
	}
	b.sent++
	h(msg)
}

// Subscribe binds a handler to a topic pattern. A pattern ending in ".*"
// matches every topic sharing the prefix; anything else matches exactly.
// Handlers fire in subscription order.
func (b *Bus) Subscribe(pattern string, h Handler) {
	b.subs = append(b.subs, subscription{pattern: pattern, handler: h})
}

// Unsubscribe removes every handler bound to the exact pattern.
func (b *Bus) Unsubscribe(pattern string) {
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.pattern != pattern {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// HasSubscriber reports whether any subscription matches the topic.
func (b *Bus) HasSubscriber(topic string) bool {
	for _, s := range b.subs {
		if matches(s.pattern, topic) {
			return true
		}
	}
	return false
}

// Publish delivers a message to every subscriber whose pattern matches.
func (b *Bus) Publish(topic string, msg any) {
	b.published++
	for _, s := range b.subs {
		if matches(s.pattern, topic) {
			s.handler(msg)
		}
	}
}

// SentCount returns the number of endpoint sends since construction.
func (b *Bus) SentCount() uint64 { return b.sent }

// PublishedCount returns the number of publishes since construction.
func (b *Bus) PublishedCount() uint64 { return b.published }

func matches(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return pattern == topic
}
