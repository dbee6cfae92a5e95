// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package oauthflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/acme/codeassist-core/internal/credstore"
)

// ErrNeedsAuth is returned by Refresh when the stored refresh token is
// rejected (invalid_grant) and the caller must fall back to a full
// Authenticate flow — the "second consecutive 401 after refresh escalates
// to needs_auth" rule from the component design.
var ErrNeedsAuth = errors.New("oauthflow: refresh rejected, needs_auth")

// Refresh attempts to use the stored refresh token to obtain a fresh
// access token, persisting the result. Call this the first time a request
// receives a 401; if it also fails, the caller should transition the MCP
// connection's status to needs_auth rather than retrying again.
func (p *Provider) Refresh(ctx context.Context) (*credstore.Tokens, error) {
	rec, ok := p.store.Get(p.cfg.MCPName)
	if !ok || rec.Tokens == nil || rec.Tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no stored refresh token", ErrNeedsAuth)
	}

	// Refresh needs only endpoint discovery: no callback listener and no
	// client registration.
	_, asMeta, err := discoverMetadata(ctx, p.cfg.httpClient(), resourceMetadataURL(p.cfg.ServerURL, ""))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}

	clientID, clientSecret := p.cfg.ClientID, p.cfg.ClientSecret
	if rec.ClientInfo != nil && rec.ClientInfo.ClientID != "" {
		clientID = rec.ClientInfo.ClientID
		clientSecret = rec.ClientInfo.ClientSecret
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  asMeta.AuthorizationEndpoint,
			TokenURL: asMeta.TokenEndpoint,
		},
	}
	src := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.Tokens.RefreshToken})
	token, err := src.Token()
	if err != nil {
		// invalid_grant and friends surface here as an opaque transport
		// error from x/oauth2; any refresh failure escalates to needs_auth
		// per the component design's "second consecutive 401" rule.
		return nil, fmt.Errorf("%w: %v", ErrNeedsAuth, err)
	}

	rec.Tokens = &credstore.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if rec.Tokens.RefreshToken == "" {
		// Some servers omit refresh_token on a refresh response, meaning
		// "unchanged" — keep the old one rather than losing it.
		if old, ok := p.store.Get(p.cfg.MCPName); ok && old.Tokens != nil {
			rec.Tokens.RefreshToken = old.Tokens.RefreshToken
		}
	}
	if !token.Expiry.IsZero() {
		rec.Tokens.ExpiresAt = token.Expiry.Unix()
	}
	if err := p.store.Set(p.cfg.MCPName, rec); err != nil {
		return nil, fmt.Errorf("%s: %w", ReasonNetworkError, err)
	}
	p.setState(StateAuthenticated)
	return rec.Tokens, nil
}
