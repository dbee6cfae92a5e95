// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package registry builds and queries the catalog of providers × models:
// the bundled database, user config, environment credentials, stored API
// keys, plugin/custom loaders, config overrides, and filters, merged in
// the load-bearing order described by the component design.
package registry

// Modality is an input/output content type a model can consume or produce.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityPDF   Modality = "pdf"
)

// Capabilities is a record of booleans plus modality sets.
type Capabilities struct {
	Input  map[Modality]bool
	Output map[Modality]bool

	ToolCall  bool
	Reasoning bool

	// InterleavedReasoning is either a bool (supported/not) or a tagged
	// field name identifying which request field enables it; represented
	// as `any` per spec's "boolean or tagged field name" data model.
	InterleavedReasoning any
}

// Cost carries per-million-token rates; CacheRead/CacheWrite are optional
// cache-aware pricing tiers, and Over200K is an optional override applied
// above a 200K-token context window.
type Cost struct {
	Input      float64
	Output     float64
	CacheRead  *float64
	CacheWrite *float64
	Over200K   *Cost
}

// Limits bounds context and output size.
type Limits struct {
	Context int
	Output  int
}

// ModelStatus is the lifecycle stage of a model entry.
type ModelStatus string

const (
	StatusAlpha      ModelStatus = "alpha"
	StatusBeta       ModelStatus = "beta"
	StatusActive     ModelStatus = "active"
	StatusDeprecated ModelStatus = "deprecated"
)

// Variant is a named parameter overlay applied to a base model (e.g.
// reasoning-enabled, extended-context), surfaced as a distinct
// selectable entry.
type Variant struct {
	Name     string
	Options  map[string]any
	Disabled bool
}

// Model is the full model descriptor.
type Model struct {
	ProviderID  string
	ModelID     string
	APIID       string
	UpstreamURL string
	Family      string

	Capabilities Capabilities
	Cost         Cost
	Limits       Limits
	Status       ModelStatus

	Options     map[string]any
	Headers     map[string]string
	ReleaseDate string
	Variants    []Variant
}

// normalizeAPIID fills APIID from ModelID when unset, per the invariant
// that apiID is always non-empty.
func (m *Model) normalizeAPIID() {
	if m.APIID == "" {
		m.APIID = m.ModelID
	}
}

// ProviderSource records the last-winning origin of a provider's
// credentials, for diagnostics.
type ProviderSource string

const (
	SourceEnv    ProviderSource = "env"
	SourceConfig ProviderSource = "config"
	SourceCustom ProviderSource = "custom"
	SourceAPI    ProviderSource = "api"
)

// Provider is the full provider descriptor.
type Provider struct {
	ID           string
	Name         string
	Source       ProviderSource
	EnvVarNames  []string
	APIKey       string
	Options      map[string]any
	Models       map[string]*Model
}
