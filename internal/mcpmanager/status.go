// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package mcpmanager maintains one connection per configured MCP server
// (local stdio-spawned or remote HTTP), tracks its status, and exposes a
// unified tool catalog to the chat orchestrator. OAuth-protected remote
// servers are driven through an oauthflow.Provider, with tokens and
// client-registration state persisted via a credstore.Store.
package mcpmanager

import "fmt"

// StatusKind is the tagged discriminator of a connection's status.
type StatusKind string

const (
	StatusConnected               StatusKind = "connected"
	StatusDisabled                StatusKind = "disabled"
	StatusNeedsAuth               StatusKind = "needs_auth"
	StatusNeedsClientRegistration StatusKind = "needs_client_registration"
	StatusFailed                  StatusKind = "failed"
)

// Status is one connection's current state, carrying the error for the
// two kinds that wrap one.
type Status struct {
	Kind StatusKind
	Err  error
}

func (s Status) String() string {
	if s.Err == nil {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%v)", s.Kind, s.Err)
}

func connected() Status { return Status{Kind: StatusConnected} }
func disabled() Status  { return Status{Kind: StatusDisabled} }
func needsAuth() Status { return Status{Kind: StatusNeedsAuth} }
func needsClientRegistration(err error) Status {
	return Status{Kind: StatusNeedsClientRegistration, Err: err}
}
func failed(err error) Status { return Status{Kind: StatusFailed, Err: err} }
