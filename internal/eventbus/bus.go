// Package eventbus is an in-process, typed publish/subscribe mechanism scoped to a
// document id and field. Publishing is synchronous: every subscriber has run by the
// time Publish returns.
package eventbus

import (
	"sync"
)

// Topic addresses events for one field of one document.
type Topic struct {
	DocID string
	Field string
}

func (t Topic) String() string {
	return t.DocID + ":" + t.Field
}

// Bus fans values of type T out to the subscribers of a topic.
type Bus[T any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[Topic]map[uint64]func(T)
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[Topic]map[uint64]func(T))}
}

// Subscribe registers fn for topic. The returned func removes it and is safe to call twice.
func (b *Bus[T]) Subscribe(topic Topic, fn func(T)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]func(T))
	}
	b.subs[topic][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers v to every current subscriber of topic on the caller's goroutine.
// Handlers are copied out under the lock so a handler may itself subscribe or publish.
func (b *Bus[T]) Publish(topic Topic, v T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus[T]) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
