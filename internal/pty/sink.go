// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import "sync"

// ChanSink adapts a buffered channel to the Sink interface: Deliver is a
// non-blocking send, so a subscriber that can't keep up simply misses
// chunks rather than stalling the session's read loop.
type ChanSink struct {
	ch     chan []byte
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

// NewChanSink returns a ChanSink backed by a channel of the given buffer
// depth. Receive from C() to read delivered chunks.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan []byte, buffer)}
}

// C returns the channel chunks are delivered on.
func (s *ChanSink) C() <-chan []byte { return s.ch }

func (s *ChanSink) Deliver(data []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.ch <- data:
		return true
	default:
		return false
	}
}

func (s *ChanSink) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}
