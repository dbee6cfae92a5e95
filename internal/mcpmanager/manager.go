// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package mcpmanager

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/credstore"
	"github.com/acme/codeassist-core/internal/errs"
	"github.com/acme/codeassist-core/internal/eventbus"
)

// ToolDescriptor is one catalog entry exposed to the chat orchestrator:
// the qualified name it must call, and the MCP server + bare tool name it
// resolves to.
type ToolDescriptor struct {
	QualifiedName string
	MCPName       string
	ToolName      string
	Description   string
	InputSchema   any
}

// Manager owns one connection per configured MCP entry and the merged
// tool catalog derived from all connected servers.
type Manager struct {
	store *credstore.Store
	bus   *eventbus.Bus

	mu          sync.RWMutex
	connections map[string]*connection
}

// New returns a Manager over cfg.MCPs, with OAuth state persisted through
// store. Connections are not established until Start is called.
func New(cfg config.Config, store *credstore.Store, bus *eventbus.Bus) *Manager {
	m := &Manager{store: store, bus: bus, connections: make(map[string]*connection)}
	for name, entry := range cfg.MCPs {
		m.connections[name] = newConnection(name, entry, store)
	}
	return m
}

// Start attempts to connect every enabled entry concurrently. A server
// that needs auth or otherwise fails to connect does not block the
// others — each connection's outcome is recorded as its Status.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup
	m.mu.RLock()
	conns := make([]*connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			c.connect(ctx)
			m.publishStatus(c.name, c.getStatus())
		}(c)
	}
	wg.Wait()
}

func (m *Manager) publishStatus(name string, s Status) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.MCPStatusChanged{Name: name, Status: string(s.Kind)})
}

// Status returns the current status of every configured MCP entry.
func (m *Manager) Status() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.connections))
	for name, c := range m.connections {
		out[name] = c.getStatus()
	}
	return out
}

// Authenticate drives the OAuth 2.1 flow for name interactively and
// reconnects on success, returning the final status.
func (m *Manager) Authenticate(ctx context.Context, name string, onRedirect func(authURL string)) (Status, error) {
	m.mu.RLock()
	c, ok := m.connections[name]
	m.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("mcpmanager: unknown server %q", name)
	}
	if c.oauth == nil {
		return Status{}, fmt.Errorf("mcpmanager: %q has no OAuth configuration", name)
	}

	if err := c.oauth.Authenticate(ctx, onRedirect); err != nil {
		c.setStatus(failed(err))
		m.publishStatus(name, c.getStatus())
		return c.getStatus(), err
	}

	c.connect(ctx)
	m.publishStatus(name, c.getStatus())
	return c.getStatus(), nil
}

// RemoveAuth purges the stored tokens and client-registration info for
// name; the next connection attempt falls back to config-provided
// credentials or unauthenticated access.
func (m *Manager) RemoveAuth(name string) error {
	if err := m.store.Remove(name); err != nil {
		return fmt.Errorf("mcpmanager: remove auth for %q: %w", name, err)
	}
	m.mu.RLock()
	c, ok := m.connections[name]
	m.mu.RUnlock()
	if ok {
		c.close()
		c.setStatus(needsAuth())
		m.publishStatus(name, c.getStatus())
	}
	return nil
}

// HasStoredTokens reports whether name has a persisted access token.
func (m *Manager) HasStoredTokens(name string) bool {
	rec, ok := m.store.Get(name)
	return ok && rec.Tokens != nil && rec.Tokens.AccessToken != ""
}

// Tools returns the merged tool catalog across every connected server,
// keyed by "mcpName_toolName" to avoid silent collisions when two
// servers expose a bare tool of the same name.
func (m *Manager) Tools() []ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ToolDescriptor
	for name, c := range m.connections {
		c.mu.Lock()
		for toolName, t := range c.tools {
			out = append(out, ToolDescriptor{
				QualifiedName: name + "_" + toolName,
				MCPName:       name,
				ToolName:      toolName,
				Description:   t.Description,
				InputSchema:   t.InputSchema,
			})
		}
		c.mu.Unlock()
	}
	return out
}

// ToolCall invokes toolName on mcpName's live session and returns the
// concatenated text content of the result. Transport failures surface as
// *errs.MCPTransport; a connection with no live session (disabled,
// needs_auth, failed) surfaces as *errs.MCPAuthRequired when OAuth is the
// likely cause, or *errs.MCPTransport otherwise.
//
// OAuth re-auth is attempted lazily, on the request that hits it: a 401
// observed on the call is met with one oauthflow.Provider.Refresh and one
// retry on the same live session. A second consecutive 401 (refresh failed,
// or the retry itself came back unauthorized) escalates the connection to
// needs_auth and returns *errs.MCPAuthRequired instead of retrying forever.
func (m *Manager) ToolCall(ctx context.Context, mcpName, toolName string, args map[string]any) (string, error) {
	m.mu.RLock()
	c, ok := m.connections[mcpName]
	m.mu.RUnlock()
	if !ok {
		return "", &errs.MCPTransport{Name: mcpName, Cause: fmt.Errorf("unknown server")}
	}

	c.mu.Lock()
	session := c.session
	status := c.status
	c.mu.Unlock()

	if session == nil {
		if status.Kind == StatusNeedsAuth || status.Kind == StatusNeedsClientRegistration {
			return "", &errs.MCPAuthRequired{Name: mcpName}
		}
		return "", &errs.MCPTransport{Name: mcpName, Cause: fmt.Errorf("not connected: %s", status)}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil && c.oauth != nil && c.saw401() {
		if tok, rerr := c.oauth.Refresh(ctx); rerr == nil {
			c.setBearerToken(tok.AccessToken)
			result, err = session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
		}
	}
	if err != nil {
		if c.oauth != nil && c.saw401() {
			c.setStatus(needsAuth())
			m.publishStatus(mcpName, c.getStatus())
			return "", &errs.MCPAuthRequired{Name: mcpName}
		}
		c.setStatus(failed(err))
		m.publishStatus(mcpName, c.getStatus())
		return "", &errs.MCPTransport{Name: mcpName, Cause: err}
	}

	var b strings.Builder
	for _, part := range result.Content {
		if tc, ok := part.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	if result.IsError {
		return b.String(), &errs.MCPTransport{Name: mcpName, Cause: fmt.Errorf("tool reported an error")}
	}
	return b.String(), nil
}

// Close shuts down every live session.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.connections {
		c.close()
	}
}
