// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package mcpmanager

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/credstore"
	"github.com/acme/codeassist-core/internal/oauthflow"
)

const protocolImplementationName = "codeassist-core"

// connection is one configured MCP server's live (or last-attempted)
// session, plus its cached tool catalog.
type connection struct {
	name  string
	entry config.MCPEntry
	oauth *oauthflow.Provider // nil for local entries or OAuth-less remotes
	store *credstore.Store

	mu      sync.Mutex
	status  Status
	session *mcp.ClientSession
	tools   map[string]*mcp.Tool // bare tool name -> descriptor

	// rt is the remote session's status-capturing round-tripper, kept so
	// ToolCall can both detect a mid-session 401 and, after a successful
	// oauth.Refresh, swap in the new bearer token for subsequent requests
	// on the same live session. Set for every remote entry; nil for local
	// entries.
	rt *statusCapturingTransport

	// transportOverride lets tests substitute an in-memory transport
	// (mcp.NewInMemoryTransports) for the real stdio/HTTP dial, bypassing
	// buildTransport entirely.
	transportOverride mcp.Transport
}

func newConnection(name string, entry config.MCPEntry, store *credstore.Store) *connection {
	c := &connection{name: name, entry: entry, store: store, status: disabled()}
	if entry.Kind == config.MCPKindRemote && entry.OAuth != nil {
		cfg := oauthflow.Config{
			MCPName:   name,
			ServerURL: entry.URL,
		}
		if entry.OAuth.ClientID != "" {
			cfg.ClientID = entry.OAuth.ClientID
			cfg.ClientSecret = entry.OAuth.ClientSecret
		}
		if entry.OAuth.Scope != "" {
			cfg.Scopes = []string{entry.OAuth.Scope}
		}
		c.oauth = oauthflow.New(cfg, store)
	}
	return c
}

func (c *connection) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *connection) getStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// statusCapturingTransport wraps http.RoundTripper to remember the last
// response status code observed, the signal connect() uses to
// distinguish "server requires OAuth" (401) from an ordinary transport
// failure. Grounded on the header-injecting round-tripper idiom used for
// remote MCP clients in the pack.
type statusCapturingTransport struct {
	base       http.RoundTripper
	token      atomic.Value // string
	lastStatus atomic.Int32
}

func (t *statusCapturingTransport) setBearerToken(tok string) { t.token.Store(tok) }

func (t *statusCapturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	if tok, _ := t.token.Load().(string); tok != "" {
		cloned.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := t.base.RoundTrip(cloned)
	if err == nil {
		t.lastStatus.Store(int32(resp.StatusCode))
	}
	return resp, err
}

// connect attempts to (re)establish the session, enumerate tools, and
// cache them. It never returns an error for an expected "needs auth"
// outcome — that's recorded as a status instead, per the "don't block
// startup of other entries" policy.
func (c *connection) connect(ctx context.Context) {
	if !c.entry.Enabled {
		c.setStatus(disabled())
		return
	}

	var (
		transport mcp.Transport
		rt        *statusCapturingTransport
		err       error
	)
	if c.transportOverride != nil {
		transport = c.transportOverride
	} else {
		transport, rt, err = c.buildTransport(ctx)
		if err != nil {
			c.setStatus(failed(err))
			return
		}
	}
	c.mu.Lock()
	c.rt = rt
	c.mu.Unlock()

	client := mcp.NewClient(&mcp.Implementation{Name: protocolImplementationName, Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		if rt != nil && rt.lastStatus.Load() == http.StatusUnauthorized {
			if c.oauth == nil {
				c.setStatus(needsClientRegistration(fmt.Errorf("server requires OAuth but none is configured: %w", err)))
				return
			}
			c.setStatus(needsAuth())
			return
		}
		c.setStatus(failed(err))
		return
	}

	toolsResult, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		c.setStatus(failed(err))
		return
	}

	tools := make(map[string]*mcp.Tool, len(toolsResult.Tools))
	for i := range toolsResult.Tools {
		t := toolsResult.Tools[i]
		tools[t.Name] = t
	}

	c.mu.Lock()
	c.session = session
	c.tools = tools
	c.status = connected()
	c.mu.Unlock()
}

// saw401 reports whether the connection's remote transport observed a 401
// on its most recent round trip. Local entries have no rt and never report
// a 401.
func (c *connection) saw401() bool {
	c.mu.Lock()
	rt := c.rt
	c.mu.Unlock()
	return rt != nil && rt.lastStatus.Load() == http.StatusUnauthorized
}

// setBearerToken swaps the Authorization bearer token the connection's
// transport attaches to outgoing requests, used after a successful
// oauthflow.Provider.Refresh so a retried ToolCall picks up the new access
// token without tearing down and re-dialing the session.
func (c *connection) setBearerToken(tok string) {
	c.mu.Lock()
	rt := c.rt
	c.mu.Unlock()
	if rt != nil {
		rt.setBearerToken(tok)
	}
}

func (c *connection) buildTransport(ctx context.Context) (mcp.Transport, *statusCapturingTransport, error) {
	switch c.entry.Kind {
	case config.MCPKindLocal:
		if len(c.entry.Command) == 0 {
			return nil, nil, fmt.Errorf("mcp %q: local entry has no command", c.name)
		}
		cmd := exec.CommandContext(ctx, c.entry.Command[0], c.entry.Command[1:]...)
		env := os.Environ()
		for k, v := range c.entry.Environment {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
		return &mcp.CommandTransport{Command: cmd}, nil, nil

	case config.MCPKindRemote:
		rt := &statusCapturingTransport{base: http.DefaultTransport}
		if c.oauth != nil {
			if tok, ok := c.storedAccessToken(); ok {
				rt.setBearerToken(tok)
			}
		}
		httpClient := &http.Client{Transport: rt}
		return &mcp.StreamableClientTransport{Endpoint: c.entry.URL, HTTPClient: httpClient}, rt, nil

	default:
		return nil, nil, fmt.Errorf("mcp %q: unknown entry kind %q", c.name, c.entry.Kind)
	}
}

func (c *connection) storedAccessToken() (string, bool) {
	rec, ok := c.store.Get(c.name)
	if !ok || rec.Tokens == nil || rec.Tokens.AccessToken == "" {
		return "", false
	}
	return rec.Tokens.AccessToken, true
}

// close shuts down the live session, if any. Idempotent.
func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
}
