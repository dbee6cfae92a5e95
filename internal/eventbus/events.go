// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package eventbus

// PTY lifecycle event kinds, published by the multiplexer (C6).
const (
	KindPTYCreated Kind = "pty.created"
	KindPTYUpdated Kind = "pty.updated"
	KindPTYExited  Kind = "pty.exited"
	KindPTYDeleted Kind = "pty.deleted"
)

// PTYInfo is the subset of PTY session state published on lifecycle events;
// it deliberately excludes the live buffer and subscriber set.
type PTYInfo struct {
	ID        string
	Title     string
	Command   string
	Args      []string
	Cwd       string
	Status    string
	Pid       int
	CwdPinned bool
}

type PTYCreated struct{ Info PTYInfo }

func (PTYCreated) Kind() Kind { return KindPTYCreated }

type PTYUpdated struct{ Info PTYInfo }

func (PTYUpdated) Kind() Kind { return KindPTYUpdated }

type PTYExited struct {
	ID       string
	ExitCode int
}

func (PTYExited) Kind() Kind { return KindPTYExited }

type PTYDeleted struct{ ID string }

func (PTYDeleted) Kind() Kind { return KindPTYDeleted }

// MCP status event, published by the connection manager (C3).
const KindMCPStatus Kind = "mcp.status"

type MCPStatusChanged struct {
	Name   string
	Status string
}

func (MCPStatusChanged) Kind() Kind { return KindMCPStatus }
