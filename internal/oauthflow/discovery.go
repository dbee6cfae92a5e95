// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package oauthflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ProtectedResourceMetadata is RFC 9728's
// /.well-known/oauth-protected-resource document shape.
type ProtectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	ScopesSupported      []string `json:"scopes_supported"`
}

// AuthServerMetadata is RFC 8414's
// /.well-known/oauth-authorization-server document shape.
type AuthServerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	RegistrationEndpoint  string `json:"registration_endpoint"`
}

// dcrRequest is the RFC 7591 dynamic client registration request body.
type dcrRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

type dcrResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// resourceMetadataURL parses the resource_metadata="<url>" parameter out of
// a WWW-Authenticate header, falling back to the server's own
// well-known path per RFC 9728.
func resourceMetadataURL(serverURL, wwwAuthenticate string) string {
	for _, part := range strings.Split(wwwAuthenticate, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, `resource_metadata="`) {
			u := strings.TrimPrefix(part, `resource_metadata="`)
			return strings.TrimSuffix(u, `"`)
		}
	}
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/.well-known/oauth-protected-resource"
}

// discoverMetadata fetches the protected-resource metadata at
// resourceMetaURL, then the authorization-server metadata for its first
// listed issuer, per RFC 9728 + RFC 8414.
func discoverMetadata(ctx context.Context, client *http.Client, resourceMetaURL string) (*ProtectedResourceMetadata, *AuthServerMetadata, error) {
	var prm ProtectedResourceMetadata
	if err := getJSON(ctx, client, resourceMetaURL, &prm); err != nil {
		return nil, nil, fmt.Errorf("resource metadata: %w", err)
	}
	if len(prm.AuthorizationServers) == 0 {
		return nil, nil, errors.New("resource metadata has no authorization_servers")
	}

	issuer := prm.AuthorizationServers[0]
	parsed, err := url.Parse(issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("parse issuer %q: %w", issuer, err)
	}

	wellKnown := parsed.Scheme + "://" + parsed.Host + "/.well-known/oauth-authorization-server"
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		wellKnown += "/" + path
	}

	var asMeta AuthServerMetadata
	if err := getJSON(ctx, client, wellKnown, &asMeta); err != nil {
		return nil, nil, fmt.Errorf("RFC8414 discovery: %w", err)
	}
	if asMeta.AuthorizationEndpoint == "" || asMeta.TokenEndpoint == "" {
		return nil, nil, errors.New("auth server metadata missing required endpoints")
	}
	return &prm, &asMeta, nil
}

// registerClient returns a (clientID, clientSecret) pair: the configured
// one, if set, otherwise the result of dynamic client registration
// (RFC 7591) against asMeta's registration endpoint.
func registerClient(ctx context.Context, client *http.Client, asMeta *AuthServerMetadata, clientID, clientName, redirectURI string) (string, string, error) {
	if clientID != "" {
		return clientID, "", nil
	}
	if asMeta.RegistrationEndpoint == "" {
		return "", "", errors.New("registration_required: auth server has no registration_endpoint and no clientId is configured")
	}

	reqBody := dcrRequest{
		ClientName:              clientName,
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, asMeta.RegistrationEndpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("dynamic client registration: status %d", resp.StatusCode)
	}

	var dcr dcrResponse
	if err := json.NewDecoder(resp.Body).Decode(&dcr); err != nil {
		return "", "", err
	}
	if dcr.ClientID == "" {
		return "", "", errors.New("dynamic client registration response missing client_id")
	}
	return dcr.ClientID, dcr.ClientSecret, nil
}
