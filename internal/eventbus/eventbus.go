// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package eventbus is a typed, in-process publish/subscribe bus for state
// transitions (pty.created, mcp.status, etc.). It never carries payload
// streams. Delivery is single-threaded and publish-ordered per subscriber;
// there is no durable delivery and no backpressure handling — a slow
// subscriber is that subscriber's problem, not the bus's.
package eventbus

import (
	"sync"
)

// Kind is the event's wire name, e.g. "pty.created".
type Kind string

// Event is anything publishable. Concrete event types (e.g. PTYCreated,
// MCPStatusChanged) implement this by returning their own Kind constant.
type Event interface {
	Kind() Kind
}

// Handler receives one event of the Kind it was registered for.
type Handler func(Event)

// Bus is a typed publish/subscribe bus. Zero value is not usable; use New.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]subscription
	seq  uint64
}

type subscription struct {
	id      uint64
	handler Handler
}

// New returns a ready-to-use Bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Subscribe registers h to receive every event of kind k, in the order
// Publish is called. The returned function deregisters h; it is safe to
// call more than once.
func (b *Bus) Subscribe(k Kind, h Handler) Unsubscribe {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[k] = append(b.subs[k], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[k]
			for i, s := range list {
				if s.id == id {
					b.subs[k] = append(list[:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber registered for ev.Kind(), in
// registration order. Handlers run synchronously on the publisher's
// goroutine; a handler must not call Publish for the same kind it is
// handling (the caller's contract — re-entrant same-kind publish is
// undefined).
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[ev.Kind()]))
	for i, s := range b.subs[ev.Kind()] {
		handlers[i] = s.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
