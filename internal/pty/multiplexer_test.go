// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/codeassist-core/internal/eventbus"
)

// fakeSink is a Sink test double that can be switched between accepting and
// rejecting deliveries, recording everything it accepted.
type fakeSink struct {
	accept   bool
	received [][]byte
	closed   bool
}

func (f *fakeSink) Deliver(data []byte) bool {
	if !f.accept {
		return false
	}
	cp := append([]byte(nil), data...)
	f.received = append(f.received, cp)
	return true
}

func (f *fakeSink) Close() { f.closed = true }

func newBareSession() *session {
	return &session{
		id:          "s1",
		shellKind:   shellPOSIX,
		info:        Info{ID: "s1", Status: StatusRunning},
		subscribers: make(map[Sink]struct{}),
	}
}

func TestDeliverOrBufferBuffersWhenNoSubscriberReceives(t *testing.T) {
	sess := newBareSession()
	sess.deliverOrBuffer([]byte("hello"))
	assert.Equal(t, []byte("hello"), sess.buffer)
}

func TestDeliverOrBufferSkipsBufferWhenAnySubscriberReceives(t *testing.T) {
	sess := newBareSession()
	sink := &fakeSink{accept: true}
	sess.subscribers[sink] = struct{}{}

	sess.deliverOrBuffer([]byte("hello"))

	assert.Empty(t, sess.buffer)
	assert.Equal(t, [][]byte{[]byte("hello")}, sink.received)
}

func TestDeliverOrBufferDropsFailedSink(t *testing.T) {
	sess := newBareSession()
	sink := &fakeSink{accept: false}
	sess.subscribers[sink] = struct{}{}

	sess.deliverOrBuffer([]byte("hello"))

	assert.Len(t, sess.subscribers, 0)
	assert.Equal(t, []byte("hello"), sess.buffer)
}

func TestDeliverOrBufferTruncatesToBufferLimit(t *testing.T) {
	sess := newBareSession()
	sess.buffer = bytes.Repeat([]byte{'a'}, BufferLimit-1)

	sess.deliverOrBuffer([]byte("bb"))

	require.Len(t, sess.buffer, BufferLimit)
	assert.Equal(t, byte('a'), sess.buffer[0])
	assert.Equal(t, []byte("bb"), sess.buffer[BufferLimit-2:])
}

func TestDeliverOrBufferOverflowingSingleWriteKeepsTrailingBytes(t *testing.T) {
	sess := newBareSession()
	big := bytes.Repeat([]byte{'x'}, BufferLimit)
	big = append(big, []byte("TAIL")...)

	sess.deliverOrBuffer(big)

	require.Len(t, sess.buffer, BufferLimit)
	assert.Equal(t, []byte("TAIL"), sess.buffer[BufferLimit-4:])
}

func TestDeliverOrBufferAlwaysCallsListeners(t *testing.T) {
	sess := newBareSession()
	var seen []byte
	sess.listeners = append(sess.listeners, func(data []byte) { seen = append(seen, data...) })
	sink := &fakeSink{accept: true}
	sess.subscribers[sink] = struct{}{}

	sess.deliverOrBuffer([]byte("hi"))

	assert.Equal(t, []byte("hi"), seen)
}

func newTestMultiplexer(t *testing.T) (*Multiplexer, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	return NewMultiplexer(bus), bus
}

func TestConnectFlushesBacklogThenRegistersSubscriber(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	sess := newBareSession()
	m.sessions[sess.id] = sess
	sess.buffer = []byte("backlog")

	sink := &fakeSink{accept: true}
	require.NoError(t, m.Connect(sess.id, sink, ConnectOptions{}))

	assert.Equal(t, [][]byte{[]byte("backlog")}, sink.received)
	assert.Empty(t, sess.buffer)
	_, subscribed := sess.subscribers[sink]
	assert.True(t, subscribed)
}

func TestConnectRestoresBufferOnDeliveryFailure(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	sess := newBareSession()
	m.sessions[sess.id] = sess
	sess.buffer = []byte("backlog")

	sink := &fakeSink{accept: false}
	err := m.Connect(sess.id, sink, ConnectOptions{})

	require.Error(t, err)
	assert.Equal(t, []byte("backlog"), sess.buffer)
	_, subscribed := sess.subscribers[sink]
	assert.False(t, subscribed)
}

func TestConnectChunksBacklogAtFlushLimit(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	sess := newBareSession()
	m.sessions[sess.id] = sess
	sess.buffer = bytes.Repeat([]byte{'z'}, FlushChunkLimit+10)

	sink := &fakeSink{accept: true}
	require.NoError(t, m.Connect(sess.id, sink, ConnectOptions{}))

	require.Len(t, sink.received, 2)
	assert.Len(t, sink.received[0], FlushChunkLimit)
	assert.Len(t, sink.received[1], 10)
}

func TestConnectOnUnknownSessionReturnsNotFound(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	err := m.Connect("nope", &fakeSink{accept: true}, ConnectOptions{})
	require.Error(t, err)
}

func TestConnectPinsCwdOnceAndPublishesUpdated(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	m, bus := newTestMultiplexer(t)
	info, err := m.Create(CreateInput{Command: "cat"})
	require.NoError(t, err)
	defer m.Remove(info.ID)

	var updates []eventbus.PTYInfo
	bus.Subscribe(eventbus.KindPTYUpdated, func(ev eventbus.Event) {
		updates = append(updates, ev.(eventbus.PTYUpdated).Info)
	})

	require.NoError(t, m.Connect(info.ID, &fakeSink{accept: true}, ConnectOptions{Directory: "/tmp/work"}))
	require.NoError(t, m.Connect(info.ID, &fakeSink{accept: true}, ConnectOptions{Directory: "/tmp/other"}))

	require.Len(t, updates, 1)
	assert.Equal(t, "/tmp/work", updates[0].Cwd)
	assert.True(t, updates[0].CwdPinned)
}

func TestWriteAndResizeOnUnknownIDAreSilentNoOps(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	assert.NoError(t, m.Write("nope", []byte("x")))
	assert.NoError(t, m.Resize("nope", 80, 24))
}

func TestRemoveOnUnknownIDIsSilentNoOp(t *testing.T) {
	m, _ := newTestMultiplexer(t)
	assert.NoError(t, m.Remove("nope"))
}

func TestCreateConnectWriteAndRemoveEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	m, bus := newTestMultiplexer(t)

	var deleted []string
	bus.Subscribe(eventbus.KindPTYDeleted, func(ev eventbus.Event) {
		deleted = append(deleted, ev.(eventbus.PTYDeleted).ID)
	})

	info, err := m.Create(CreateInput{Command: "cat"})
	require.NoError(t, err)
	require.Equal(t, StatusRunning, info.Status)

	sink := NewChanSink(16)
	require.NoError(t, m.Connect(info.ID, sink, ConnectOptions{}))

	require.NoError(t, m.Write(info.ID, []byte("ping\n")))

	select {
	case chunk := <-sink.C():
		assert.Contains(t, string(chunk), "ping")
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for echoed output")
	}

	require.NoError(t, m.Remove(info.ID))
	require.Eventually(t, func() bool {
		return len(deleted) == 1 && deleted[0] == info.ID
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := m.Get(info.ID)
	assert.False(t, ok)
}

func TestCreatePublishesCreatedEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	m, bus := newTestMultiplexer(t)

	var created []eventbus.PTYInfo
	bus.Subscribe(eventbus.KindPTYCreated, func(ev eventbus.Event) {
		created = append(created, ev.(eventbus.PTYCreated).Info)
	})

	info, err := m.Create(CreateInput{Command: "cat", Title: "my shell"})
	require.NoError(t, err)
	defer m.Remove(info.ID)

	require.Len(t, created, 1)
	assert.Equal(t, "my shell", created[0].Title)
	assert.Equal(t, info.ID, created[0].ID)
}
