// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Status is the lifecycle stage of a multiplexed PTY session.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// BufferLimit bounds a session's unsubscribed-output buffer; once
// exceeded, the buffer is truncated to its trailing BufferLimit bytes.
const BufferLimit = 2 * 1024 * 1024

// FlushChunkLimit bounds each write when a late-joining subscriber's
// backlog is flushed.
const FlushChunkLimit = 64 * 1024

// Info is the externally visible snapshot of a session, published on
// lifecycle events. It deliberately excludes the live buffer and
// subscriber/listener sets.
type Info struct {
	ID        string
	Title     string
	Command   string
	Args      []string
	Cwd       string
	Status    Status
	Pid       int
	CwdPinned bool
}

// Sink is a late-joining or programmatic subscriber of a session's output.
type Sink interface {
	// Deliver attempts to hand data to the subscriber without blocking
	// indefinitely. It returns false if the subscriber could not accept
	// the chunk — a closed or backed-up sink — in which case the caller
	// treats the chunk as undelivered.
	Deliver(data []byte) bool
	// Close notifies the subscriber it will receive no further data.
	Close()
}

// Listener is a programmatic output callback, distinct from a Sink: it
// never affects the buffer-only-when-unsubscribed decision and is never
// dropped for backpressure (call sites are expected to be non-blocking,
// e.g. a log line or a metrics counter).
type Listener func(data []byte)

// shellKind discriminates which cd-equivalent command connect() must
// inject to pin a session's working directory.
type shellKind string

const (
	shellPOSIX      shellKind = "posix"
	shellCmd        shellKind = "cmd"
	shellPowerShell shellKind = "powershell"
)

func detectShellKind(command string) shellKind {
	base := strings.ToLower(filepath.Base(command))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	switch base {
	case "cmd":
		return shellCmd
	case "powershell", "pwsh":
		return shellPowerShell
	default:
		return shellPOSIX
	}
}

// cdCommand renders the shell-appropriate command to change directory
// without it echoing as a typed command (paired with PTY.WriteSilent).
func cdCommand(kind shellKind, dir string) string {
	switch kind {
	case shellCmd:
		return fmt.Sprintf("cd /d \"%s\"\r\n", dir)
	case shellPowerShell:
		return fmt.Sprintf("Set-Location -LiteralPath '%s'\r\n", strings.ReplaceAll(dir, "'", "''"))
	default:
		return fmt.Sprintf("cd -- '%s'\n", strings.ReplaceAll(dir, "'", `'\''`))
	}
}

// session is one multiplexed PTY's live state: its child process, the
// info snapshot, the unsubscribed-output buffer, and the subscriber /
// listener sets.
type session struct {
	id        string
	pty       *PTY
	shellKind shellKind

	mu          sync.Mutex
	info        Info
	buffer      []byte
	subscribers map[Sink]struct{}
	listeners   []Listener
}

// deliverOrBuffer implements the C6 output-handler contract: deliver to
// every sink; if none received it, append to the buffer (truncating to
// BufferLimit). Listeners always receive the chunk regardless of the
// buffering decision.
func (s *session) deliverOrBuffer(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		l(data)
	}

	delivered := false
	for sink := range s.subscribers {
		if sink.Deliver(data) {
			delivered = true
		} else {
			delete(s.subscribers, sink)
		}
	}
	if delivered {
		return
	}

	s.buffer = append(s.buffer, data...)
	if len(s.buffer) > BufferLimit {
		s.buffer = s.buffer[len(s.buffer)-BufferLimit:]
	}
}

func (s *session) snapshotInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}
