// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package config defines the validated configuration record the core
// consumes. Parsing a config file into this shape, and command-line
// argument handling, are external collaborators; this package only
// defines the record and does not read any file itself.
package config

// SelectedModel pins a provider/model pair for a named role (the default
// "large" model or the lighter-weight "small" model).
type SelectedModel struct {
	Provider        string
	Model           string
	ReasoningEffort string
	MaxTokens       int64
	Think           bool
}

// ModelOverride is a user-declared custom model or capability override for
// an existing bundled model; arbitrary fields pass through via Options.
type ModelOverride struct {
	ModelID     string
	APIID       string
	Family      string
	Disabled    bool
	Options     map[string]any
	Headers     map[string]string
}

// ProviderConfig is a user-declared provider entry, overlaying (or adding
// to) the bundled database.
type ProviderConfig struct {
	ID      string
	Name    string
	BaseURL string
	Type    string // empty defaults to "openai-compatible"
	APIKey  string
	Disable bool

	ExtraHeaders map[string]string
	ExtraBody    map[string]any

	Models []ModelOverride

	// ToolCallMode selects "native" (default) or "prompt" for the
	// prompt-engineered tool-calling shim.
	ToolCallMode string
}

// MCPKind discriminates the MCP entry tagged union.
type MCPKind string

const (
	MCPKindLocal  MCPKind = "local"
	MCPKindRemote MCPKind = "remote"
)

// MCPOAuth is the remote-MCP oauth declaration: nil/omitted means no
// OAuth, an empty non-nil value means "discover everything", and a
// populated value pre-configures the client.
type MCPOAuth struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// MCPEntry is one configured MCP server: a tagged union over local
// (stdio-spawned) and remote (HTTP) transports.
type MCPEntry struct {
	Kind    MCPKind
	Enabled bool

	// Local fields.
	Command     []string
	Environment map[string]string

	// Remote fields.
	URL   string
	OAuth *MCPOAuth
}

// Config is the full validated configuration record supplied to the core.
type Config struct {
	Providers []ProviderConfig
	MCPs      map[string]MCPEntry

	// Model, SmallModel pin explicit "<providerID>/<modelID>" selections;
	// empty strings defer to the registry's default/small-model policy.
	Model      string
	SmallModel string

	DisabledProviders []string
	EnabledProviders  []string // if non-empty, an allow-set

	// Blacklist/Whitelist are per-provider model ID filters, applied
	// after merge per the component design's invariant ordering.
	Blacklist map[string][]string
	Whitelist map[string][]string

	ExperimentalModels bool // when true, alpha models are not pruned

	DataDirectory string
}
