// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/acme/codeassist-core/internal/errs"
	"github.com/acme/codeassist-core/internal/eventbus"
)

// CreateInput describes a session to spawn.
type CreateInput struct {
	Command string
	Args    []string
	Cwd     string
	Env     map[string]string
	Title   string
}

// ConnectOptions configures a late-joining subscriber.
type ConnectOptions struct {
	// Directory, if set, pins the session's working directory on first
	// connect by injecting a shell-appropriate cd command.
	Directory string
}

// Multiplexer owns every live PTY session and fans their output out to
// subscribers and listeners, buffering what nobody is around to receive.
type Multiplexer struct {
	bus *eventbus.Bus

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewMultiplexer builds an empty multiplexer publishing lifecycle events on
// bus. bus may be nil, in which case events are simply not published.
func NewMultiplexer(bus *eventbus.Bus) *Multiplexer {
	return &Multiplexer{bus: bus, sessions: make(map[string]*session)}
}

func (m *Multiplexer) publish(evt eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(evt)
	}
}

func (m *Multiplexer) get(id string) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func toEventInfo(info Info) eventbus.PTYInfo {
	return eventbus.PTYInfo{
		ID:        info.ID,
		Title:     info.Title,
		Command:   info.Command,
		Args:      info.Args,
		Cwd:       info.Cwd,
		Status:    string(info.Status),
		Pid:       info.Pid,
		CwdPinned: info.CwdPinned,
	}
}

func defaultTitle(input CreateInput) string {
	if input.Command != "" {
		return input.Command
	}
	return DefaultShell()
}

// Create spawns a new PTY child and registers it for multiplexing.
func (m *Multiplexer) Create(input CreateInput) (Info, error) {
	id := uuid.NewString()
	p, err := New(id, Options{
		Command: input.Command,
		Args:    input.Args,
		Cwd:     input.Cwd,
		Env:     input.Env,
	})
	if err != nil {
		return Info{}, err
	}

	title := input.Title
	if title == "" {
		title = defaultTitle(input)
	}

	sess := &session{
		id:        id,
		pty:       p,
		shellKind: detectShellKind(input.Command),
		info: Info{
			ID:      id,
			Title:   title,
			Command: input.Command,
			Args:    input.Args,
			Cwd:     input.Cwd,
			Status:  StatusRunning,
			Pid:     p.Pid(),
		},
		subscribers: make(map[Sink]struct{}),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	go m.readLoop(sess)
	go m.waitExit(sess)

	info := sess.snapshotInfo()
	m.publish(eventbus.PTYCreated{Info: toEventInfo(info)})
	return info, nil
}

// readLoop pumps child output into the session's deliver-or-buffer pipeline
// until the child's PTY file is closed or the process exits.
func (m *Multiplexer) readLoop(sess *session) {
	buf := make([]byte, 32*1024)
	for {
		n, err := sess.pty.Read(buf)
		if n > 0 {
			chunk := stripTerminalQueries(append([]byte(nil), buf[:n]...))
			if len(chunk) > 0 {
				sess.deliverOrBuffer(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// waitExit transitions a session to StatusExited once its child exits,
// reaping subscribers and listeners per the exited-session invariant, then
// removes it from the live set and publishes pty.exited.
func (m *Multiplexer) waitExit(sess *session) {
	<-sess.pty.Done()
	code := sess.pty.ExitCode()

	sess.mu.Lock()
	sess.info.Status = StatusExited
	subs := sess.subscribers
	sess.subscribers = nil
	sess.listeners = nil
	sess.mu.Unlock()
	for sink := range subs {
		sink.Close()
	}

	m.mu.Lock()
	_, stillTracked := m.sessions[sess.id]
	delete(m.sessions, sess.id)
	m.mu.Unlock()

	if stillTracked {
		m.publish(eventbus.PTYExited{ID: sess.id, ExitCode: code})
	}
}

// Connect attaches sink as a late-joining subscriber of id. If
// opts.Directory is set and the session's cwd isn't already pinned, it pins
// it and injects a shell-appropriate cd into the child's stdin first. The
// session's buffered backlog is then flushed to sink in FlushChunkLimit
// chunks; if any chunk fails to deliver, the unflushed remainder is restored
// to the buffer (so a later subscriber can still replay it) and sink is not
// registered.
func (m *Multiplexer) Connect(id string, sink Sink, opts ConnectOptions) error {
	sess := m.get(id)
	if sess == nil {
		return &errs.PTYNotFound{ID: id}
	}

	sess.mu.Lock()
	var cwdChanged bool
	if opts.Directory != "" && !sess.info.CwdPinned {
		sess.info.CwdPinned = true
		sess.info.Cwd = opts.Directory
		sess.pty.WriteSilent([]byte(cdCommand(sess.shellKind, opts.Directory)))
		cwdChanged = true
	}

	backlog := sess.buffer
	sess.buffer = nil

	remaining := backlog
	for len(remaining) > 0 {
		n := len(remaining)
		if n > FlushChunkLimit {
			n = FlushChunkLimit
		}
		chunk := remaining[:n]
		if !sink.Deliver(chunk) {
			sess.buffer = append(append([]byte(nil), remaining...), sess.buffer...)
			sess.mu.Unlock()
			return fmt.Errorf("pty: subscriber rejected backlog flush for session %s", id)
		}
		remaining = remaining[n:]
	}
	sess.subscribers[sink] = struct{}{}
	info := sess.info
	sess.mu.Unlock()

	if cwdChanged {
		m.publish(eventbus.PTYUpdated{Info: toEventInfo(info)})
	}
	return nil
}

// AddListener registers a programmatic output callback on id. Unlike a
// Sink, a listener never affects buffering and is never dropped.
func (m *Multiplexer) AddListener(id string, l Listener) {
	sess := m.get(id)
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.listeners = append(sess.listeners, l)
	sess.mu.Unlock()
}

// Write sends data to id's child stdin. Idempotent: an unknown id is a
// silent no-op, not an error.
func (m *Multiplexer) Write(id string, data []byte) error {
	sess := m.get(id)
	if sess == nil {
		return nil
	}
	_, err := sess.pty.Write(data)
	return err
}

// Resize changes id's window size. Idempotent: an unknown id is a silent
// no-op.
func (m *Multiplexer) Resize(id string, cols, rows uint16) error {
	sess := m.get(id)
	if sess == nil {
		return nil
	}
	return sess.pty.Resize(cols, rows)
}

// Remove kills id's child, closes every subscriber, deletes the session,
// and publishes pty.deleted. Idempotent: an unknown id is a silent no-op.
func (m *Multiplexer) Remove(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	sess.pty.Close()

	sess.mu.Lock()
	subs := sess.subscribers
	sess.subscribers = nil
	sess.listeners = nil
	sess.mu.Unlock()
	for sink := range subs {
		sink.Close()
	}

	m.publish(eventbus.PTYDeleted{ID: id})
	return nil
}

// List returns a snapshot of every live session's info.
func (m *Multiplexer) List() []Info {
	m.mu.RLock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshotInfo())
	}
	return out
}

// Get returns id's info snapshot, or false if no such live session exists.
func (m *Multiplexer) Get(id string) (Info, bool) {
	sess := m.get(id)
	if sess == nil {
		return Info{}, false
	}
	return sess.snapshotInfo(), true
}
