// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package oauthflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/codeassist-core/internal/credstore"
)

// fakeAuthServer wires up protected-resource metadata, authorization-server
// metadata, dynamic client registration, the authorization endpoint
// (auto-approves and redirects with a code), and the token endpoint.
type fakeAuthServer struct {
	mcp   *httptest.Server
	as    *httptest.Server
	mux   *http.ServeMux
	code  string
	state string
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	f := &fakeAuthServer{code: "auth-code-123"}
	mux := http.NewServeMux()
	f.mux = mux

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AuthServerMetadata{
			Issuer:                f.as.URL,
			AuthorizationEndpoint: f.as.URL + "/authorize",
			TokenEndpoint:         f.as.URL + "/token",
			RegistrationEndpoint:  f.as.URL + "/register",
		})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dcrResponse{ClientID: "dynamic-client-id"})
	})
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.state = q.Get("state")
		redirect := q.Get("redirect_uri")
		u, _ := url.Parse(redirect)
		vals := u.Query()
		vals.Set("code", f.code)
		vals.Set("state", f.state)
		u.RawQuery = vals.Encode()
		// Simulate the browser hitting the loopback callback.
		go func() {
			http.Get(u.String())
		}()
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") == "refresh_token" {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "refreshed-access-token",
				"refresh_token": "refreshed-refresh-token",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
			return
		}
		if r.Form.Get("code") != f.code {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token-xyz",
			"refresh_token": "refresh-token-xyz",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	f.as = httptest.NewServer(mux)

	mcpMux := http.NewServeMux()
	mcpMux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProtectedResourceMetadata{
			Resource:             f.as.URL,
			AuthorizationServers: []string{f.as.URL},
		})
	})
	mcpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.mcp = httptest.NewServer(mcpMux)

	t.Cleanup(func() {
		f.as.Close()
		f.mcp.Close()
	})
	return f
}

func TestAuthenticateFullFlowPersistsTokens(t *testing.T) {
	f := newFakeAuthServer(t)

	store, err := credstore.Open(filepath.Join(t.TempDir(), "mcp-auth.json"))
	require.NoError(t, err)

	p := New(Config{
		MCPName:         "serverA",
		ServerURL:       f.mcp.URL,
		LoopbackTimeout: 3 * time.Second,
	}, store)

	var redirected string
	err = p.Authenticate(context.Background(), func(authURL string) {
		redirected = authURL
		// Simulate the user's browser visiting the authorization URL.
		if resp, gerr := http.Get(authURL); gerr == nil {
			resp.Body.Close()
		}
	})
	require.NoError(t, err)
	assert.Contains(t, redirected, f.as.URL+"/authorize")
	assert.Equal(t, StateAuthenticated, p.State())

	rec, ok := store.Get("serverA")
	require.True(t, ok)
	require.NotNil(t, rec.Tokens)
	assert.Equal(t, "access-token-xyz", rec.Tokens.AccessToken)
	assert.Equal(t, "refresh-token-xyz", rec.Tokens.RefreshToken)
	assert.Empty(t, rec.CodeVerifier, "verifier must be cleared after success")
	require.NotNil(t, rec.ClientInfo)
	assert.Equal(t, "dynamic-client-id", rec.ClientInfo.ClientID)
}

func TestRefreshUpdatesStoredTokens(t *testing.T) {
	f := newFakeAuthServer(t)
	store, err := credstore.Open(filepath.Join(t.TempDir(), "mcp-auth.json"))
	require.NoError(t, err)

	require.NoError(t, store.Set("serverA", credstore.Record{
		Tokens:     &credstore.Tokens{AccessToken: "old", RefreshToken: "old-refresh", ExpiresAt: 1},
		ClientInfo: &credstore.ClientInfo{ClientID: "dynamic-client-id"},
	}))

	p := New(Config{MCPName: "serverA", ServerURL: f.mcp.URL}, store)
	tokens, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-token", tokens.AccessToken)

	rec, ok := store.Get("serverA")
	require.True(t, ok)
	assert.Equal(t, "refreshed-access-token", rec.Tokens.AccessToken)
}

func TestRefreshWithNoStoredTokenNeedsAuth(t *testing.T) {
	store, err := credstore.Open(filepath.Join(t.TempDir(), "mcp-auth.json"))
	require.NoError(t, err)

	p := New(Config{MCPName: "serverA", ServerURL: "http://127.0.0.1:1"}, store)
	_, err = p.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNeedsAuth))
}
