// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package oauthflow drives the OAuth 2.1 + PKCE dance required by a single
// remote MCP server connection: discovery, dynamic client registration,
// authorization-code exchange, and lazy refresh-on-401. Token and
// client-registration state is persisted through a credstore.Store; this
// package holds no durable state of its own beyond the in-flight PKCE
// verifier and the current State.
package oauthflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/acme/codeassist-core/internal/credstore"
)

// State is a step of the per-authenticate-call state machine described in
// the OAuth Provider component design.
type State string

const (
	StateIdle          State = "idle"
	StatePendingAuth    State = "pending_auth"
	StateAwaitingCode   State = "awaiting_code"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

// FailReason is why a flow transitioned to StateFailed.
type FailReason string

const (
	ReasonRegistrationRequired FailReason = "registration_required"
	ReasonUserDenied           FailReason = "user_denied"
	ReasonExchangeFailed       FailReason = "exchange_failed"
	ReasonNetworkError         FailReason = "network_error"
)

// Config identifies one MCP server's OAuth client. Provider is keyed by
// exactly this triple per the component design: (mcpName, serverURL,
// {clientId?, clientSecret?, scope?}).
type Config struct {
	MCPName      string
	ServerURL    string
	ClientID     string // pre-configured; empty triggers dynamic registration
	ClientSecret string
	Scopes       []string

	// ClientName is sent during dynamic client registration.
	ClientName string

	// RedirectHost is the loopback host:port the callback listener binds.
	// Empty selects host 127.0.0.1 and an OS-assigned ephemeral port.
	RedirectHost string

	// LoopbackTimeout bounds how long the callback listener waits for the
	// browser redirect before the flow fails. Zero uses the default (5m),
	// matching the cancellation policy for OAuth loopback listeners.
	LoopbackTimeout time.Duration

	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) loopbackTimeout() time.Duration {
	if c.LoopbackTimeout > 0 {
		return c.LoopbackTimeout
	}
	return 5 * time.Minute
}

// OnRedirect is invoked with the authorization URL the user must visit;
// the caller (an external collaborator — the TUI or IDE plugin) is
// responsible for surfacing it, e.g. by opening a browser.
type OnRedirect func(authURL string)

// Provider drives one MCP server's OAuth 2.1 + PKCE lifecycle.
type Provider struct {
	cfg   Config
	store *credstore.Store

	mu    sync.Mutex
	state State
}

// New returns a Provider for cfg, backed by store for token and
// client-registration persistence.
func New(cfg Config, store *credstore.Store) *Provider {
	return &Provider{cfg: cfg, store: store, state: StateIdle}
}

// State returns the provider's current step in the authenticate state
// machine.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Provider) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Authenticate runs the full idle → pending_auth → awaiting_code →
// authenticated flow, invoking onRedirect once the authorization URL is
// known. It blocks until the user completes the browser flow (or the
// loopback listener's timeout expires) and returns the resulting error,
// if any; nil means StateAuthenticated was reached and tokens were
// persisted.
func (p *Provider) Authenticate(ctx context.Context, onRedirect OnRedirect) error {
	p.setState(StatePendingAuth)

	asMeta, clientID, clientSecret, redirectURI, listener, err := p.prepare(ctx)
	if err != nil {
		p.setState(StateFailed)
		return err
	}
	defer listener.Close()

	verifier, err := newVerifier()
	if err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}
	state, err := newState()
	if err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}

	// The verifier lives in the credential store only between
	// pending_auth and authenticated/failed; it is always cleared below.
	rec, _ := p.store.Get(p.cfg.MCPName)
	rec.CodeVerifier = verifier
	if err := p.store.Set(p.cfg.MCPName, rec); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       p.cfg.Scopes,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  asMeta.AuthorizationEndpoint,
			TokenURL: asMeta.TokenEndpoint,
		},
	}
	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challengeS256(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("resource", p.cfg.ServerURL), // RFC 8707
	)

	p.setState(StateAwaitingCode)
	code, err := p.awaitCallback(ctx, listener, state, authURL, onRedirect)
	if err != nil {
		p.setState(StateFailed)
		p.clearVerifier()
		if errors.Is(err, errUserDenied) {
			return fmt.Errorf("%s: %w", ReasonUserDenied, err)
		}
		return fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}

	token, err := oauthCfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
		oauth2.SetAuthURLParam("resource", p.cfg.ServerURL),
	)
	p.clearVerifier()
	if err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("%s: %w", ReasonExchangeFailed, err)
	}

	if err := p.persistToken(token, clientID, clientSecret); err != nil {
		p.setState(StateFailed)
		return fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}

	p.setState(StateAuthenticated)
	return nil
}

// prepare discovers metadata from the server's well-known
// protected-resource path (no WWW-Authenticate header is consulted),
// resolves (or dynamically registers) a client, and binds the loopback
// listener so its port is known before the authorization URL is built.
func (p *Provider) prepare(ctx context.Context) (asMeta *AuthServerMetadata, clientID, clientSecret, redirectURI string, listener net.Listener, err error) {
	host := p.cfg.RedirectHost
	if host == "" {
		host = "127.0.0.1:0"
	}
	listener, err = net.Listen("tcp", host)
	if err != nil {
		return nil, "", "", "", nil, fmt.Errorf("bind loopback listener: %w", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	redirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", addr.Port)

	metaURL := resourceMetadataURL(p.cfg.ServerURL, "")
	_, asm, derr := discoverMetadata(ctx, p.cfg.httpClient(), metaURL)
	if derr != nil {
		listener.Close()
		return nil, "", "", "", nil, fmt.Errorf("%s: %w", ReasonRegistrationRequired, derr)
	}

	clientName := p.cfg.ClientName
	if clientName == "" {
		clientName = "codeassist-core"
	}
	cid, csecret, rerr := registerClient(ctx, p.cfg.httpClient(), asm, p.cfg.ClientID, clientName, redirectURI)
	if rerr != nil {
		listener.Close()
		return nil, "", "", "", nil, fmt.Errorf("%s: %w", ReasonRegistrationRequired, rerr)
	}
	if p.cfg.ClientSecret != "" {
		csecret = p.cfg.ClientSecret
	}
	return asm, cid, csecret, redirectURI, listener, nil
}

var errUserDenied = errors.New("user denied authorization")

// awaitCallback serves exactly one HTTP request on listener: the OAuth
// redirect. It responds with a static success page and shuts down,
// matching the single-request loopback listener design.
func (p *Provider) awaitCallback(ctx context.Context, listener net.Listener, expectedState, authURL string, onRedirect OnRedirect) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			fmt.Fprintln(w, "Authentication failed — you may close this tab.")
			errCh <- fmt.Errorf("oauth error: %s: %s", e, q.Get("error_description"))
			return
		}
		if q.Get("state") != expectedState {
			fmt.Fprintln(w, "State mismatch — you may close this tab.")
			errCh <- errors.New("state mismatch")
			return
		}
		code := q.Get("code")
		if code == "" {
			fmt.Fprintln(w, "Missing code — you may close this tab.")
			errCh <- errors.New("callback missing code")
			return
		}
		fmt.Fprintln(w, "Authenticated! You may close this tab.")
		codeCh <- code
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Shutdown(context.Background())

	if onRedirect != nil {
		onRedirect(authURL)
	}

	timeout := time.NewTimer(p.cfg.loopbackTimeout())
	defer timeout.Stop()

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-timeout.C:
		return "", fmt.Errorf("loopback listener timed out after %s", p.cfg.loopbackTimeout())
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Provider) clearVerifier() {
	rec, ok := p.store.Get(p.cfg.MCPName)
	if !ok {
		return
	}
	rec.CodeVerifier = ""
	_ = p.store.Set(p.cfg.MCPName, rec)
}

func (p *Provider) persistToken(token *oauth2.Token, clientID, clientSecret string) error {
	rec, _ := p.store.Get(p.cfg.MCPName)
	rec.Tokens = &credstore.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		rec.Tokens.ExpiresAt = token.Expiry.Unix()
	}
	if clientID != "" {
		rec.ClientInfo = &credstore.ClientInfo{ClientID: clientID, ClientSecret: clientSecret}
	}
	rec.CodeVerifier = ""
	return p.store.Set(p.cfg.MCPName, rec)
}
