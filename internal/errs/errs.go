// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package errs defines the stable, client-surfaced error kinds of the core.
package errs

import "fmt"

// ConfigInvalid marks a malformed user configuration. Fatal at startup;
// recoverable only by the user editing their config.
type ConfigInvalid struct {
	Reason string
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("config invalid: %s", e.Reason)
}

// ProviderInitError marks a backend driver that failed to construct. The
// offending provider is dropped; other providers continue registry build.
type ProviderInitError struct {
	ProviderID string
	Cause      error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("provider %q init failed: %v", e.ProviderID, e.Cause)
}

func (e *ProviderInitError) Unwrap() error { return e.Cause }

// ModelNotFound is recoverable and returned to the caller with up to three
// fuzzy-matched suggestions.
type ModelNotFound struct {
	ProviderID  string
	ModelID     string
	Suggestions []string
}

func (e *ModelNotFound) Error() string {
	return fmt.Sprintf("model not found: %s/%s (suggestions: %v)", e.ProviderID, e.ModelID, e.Suggestions)
}

// UpstreamHTTP is a provider HTTP error. Retryable iff Status >= 500 or
// Status == 429; the retry policy itself is the caller's responsibility.
type UpstreamHTTP struct {
	Status int
	Body   string
}

func (e *UpstreamHTTP) Error() string {
	return fmt.Sprintf("upstream http %d: %s", e.Status, e.Body)
}

// Retryable reports whether the caller may retry this upstream error.
func (e *UpstreamHTTP) Retryable() bool {
	return e.Status >= 500 || e.Status == 429
}

// UpstreamCancelled indicates an external cancellation signal fired mid-request.
// Never retryable.
type UpstreamCancelled struct {
	Cause error
}

func (e *UpstreamCancelled) Error() string {
	return fmt.Sprintf("upstream cancelled: %v", e.Cause)
}

func (e *UpstreamCancelled) Unwrap() error { return e.Cause }

// MCPAuthRequired is surfaced to the client with an instruction to run the
// auth command for the named server.
type MCPAuthRequired struct {
	Name string
}

func (e *MCPAuthRequired) Error() string {
	return fmt.Sprintf("mcp server %q requires authentication", e.Name)
}

// MCPTransport marks a connection or tool-call error; the connection is
// marked failed and retried on next invocation.
type MCPTransport struct {
	Name  string
	Cause error
}

func (e *MCPTransport) Error() string {
	return fmt.Sprintf("mcp transport error (%s): %v", e.Name, e.Cause)
}

func (e *MCPTransport) Unwrap() error { return e.Cause }

// PTYNotFound marks a reference to a removed or unknown PTY session.
// Idempotent operations (remove, write, resize) must not raise this; they
// are silent no-ops instead.
type PTYNotFound struct {
	ID string
}

func (e *PTYNotFound) Error() string {
	return fmt.Sprintf("pty session not found: %s", e.ID)
}

// OAuthStage names the stage of an OAuth flow that failed.
type OAuthStage string

const (
	OAuthStageDiscovery    OAuthStage = "discovery"
	OAuthStageRegistration OAuthStage = "registration"
	OAuthStageRedirect     OAuthStage = "redirect"
	OAuthStageExchange     OAuthStage = "exchange"
	OAuthStageRefresh      OAuthStage = "refresh"
)

// OAuthFailed marks a failure at a specific stage of the OAuth lifecycle.
type OAuthFailed struct {
	Stage OAuthStage
	Cause error
}

func (e *OAuthFailed) Error() string {
	return fmt.Sprintf("oauth failed at %s: %v", e.Stage, e.Cause)
}

func (e *OAuthFailed) Unwrap() error { return e.Cause }
