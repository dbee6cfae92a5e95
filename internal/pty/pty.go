// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// Signal is a process signal that can be delivered to a PTY child.
type Signal int

const (
	SIGINT  Signal = Signal(syscall.SIGINT)
	SIGTERM Signal = Signal(syscall.SIGTERM)
	SIGKILL Signal = Signal(syscall.SIGKILL)
	SIGSTOP Signal = Signal(syscall.SIGSTOP)
	SIGCONT Signal = Signal(syscall.SIGCONT)
)

// PTY wraps a single spawned pseudo-terminal child process.
type PTY struct {
	ID   string
	file *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	closed bool

	doneOnce sync.Once
	doneChan chan struct{}
}

// sensitiveEnvVars are never forwarded to a spawned PTY child: a tool-calling
// model can read its own environment, so credentials stay with the parent.
var sensitiveEnvVars = map[string]bool{
	"MCP_AUTH_STORE_KEY":   true,
	"CREDENTIAL_STORE_KEY": true,
}

func filterSensitiveEnv(environ []string) []string {
	filtered := make([]string, 0, len(environ))
	for _, env := range environ {
		key := env
		if idx := strings.Index(env, "="); idx != -1 {
			key = env[:idx]
		}
		if !sensitiveEnvVars[key] {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// Options configures a new PTY child.
type Options struct {
	Command string
	Args    []string
	Cwd     string
	Env     map[string]string
	Cols    uint16
	Rows    uint16
}

// New spawns a PTY child per opts. When Command is empty, DefaultShell() runs
// with a login flag so POSIX shells source profile files.
func New(id string, opts Options) (*PTY, error) {
	command := opts.Command
	args := opts.Args
	if command == "" {
		command = DefaultShell()
		if runtime.GOOS != "windows" {
			args = append([]string{"-l"}, args...)
		}
	}

	cmd := exec.Command(command, args...)
	env := append(filterSensitiveEnv(os.Environ()), "TERM=xterm-256color")
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}

	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("pty: start %q: %w", command, err)
	}
	return &PTY{ID: id, file: ptmx, cmd: cmd}, nil
}

// Read reads raw child output.
func (p *PTY) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	file := p.file
	p.mu.Unlock()
	return file.Read(buf)
}

// Write sends input to the child.
func (p *PTY) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	file := p.file
	p.mu.Unlock()
	return file.Write(data)
}

// WriteSilent writes with local echo suppressed where the platform supports it
// (used to inject a `cd` on connect without it appearing as a typed command).
func (p *PTY) WriteSilent(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	file := p.file
	p.mu.Unlock()
	return writeSilentPlatform(file, data)
}

// Resize changes the PTY window size.
func (p *PTY) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}
	return pty.Setsize(p.file, &pty.Winsize{Cols: cols, Rows: rows})
}

// Signal delivers sig to the child process.
func (p *PTY) Signal(sig Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}
	if p.cmd.Process == nil {
		return os.ErrProcessDone
	}
	return p.cmd.Process.Signal(syscall.Signal(sig))
}

// Pid returns the child's process ID, or 0 if it never started.
func (p *PTY) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Cwd returns the child's current working directory, or "" if it cannot be
// determined on this platform or the process has exited.
func (p *PTY) Cwd() string {
	pid := p.Pid()
	if pid == 0 {
		return ""
	}
	return processCwd(pid)
}

// Close kills the child and releases the PTY file descriptor. Idempotent.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return p.file.Close()
}

// Done returns a channel closed once the child process has exited. Safe to
// call from multiple goroutines; only one waiter goroutine is ever spawned.
func (p *PTY) Done() <-chan struct{} {
	p.doneOnce.Do(func() {
		p.doneChan = make(chan struct{})
		go func() {
			if p.cmd != nil {
				p.cmd.Wait()
			}
			close(p.doneChan)
		}()
	})
	return p.doneChan
}

// ExitCode returns the child's exit code after Done() has closed; -1 before then.
func (p *PTY) ExitCode() int {
	if p.cmd == nil || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
