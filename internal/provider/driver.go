// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"fmt"

	"github.com/acme/codeassist-core/internal/llmtypes"
	"github.com/acme/codeassist-core/internal/provider/drivers/anthropic"
	"github.com/acme/codeassist-core/internal/provider/drivers/bedrock"
	"github.com/acme/codeassist-core/internal/provider/drivers/ollama"
	openaidriver "github.com/acme/codeassist-core/internal/provider/drivers/openai"
	"github.com/acme/codeassist-core/internal/registry"
)

// BackendKind is the closed set of wire protocols a driver can speak.
// Backends are dispatched by an exhaustive switch, never an open plugin
// registry, so adding a new one always means touching this file.
type BackendKind string

const (
	KindAnthropic    BackendKind = "anthropic"
	KindOpenAI       BackendKind = "openai"
	KindOpenAICompat BackendKind = "openai-compatible"
	KindBedrock      BackendKind = "bedrock"
	KindOllama       BackendKind = "ollama"
)

// bundledBackendKind maps well-known provider IDs (those in the bundled
// catalog plus the ollama and owiseman discovery providers) directly to a
// backend kind; the catalog itself carries no kind field (it is keyed by
// provider ID), so this mapping is the one place that knowledge lives.
var bundledBackendKind = map[string]BackendKind{
	"anthropic": KindAnthropic,
	"openai":    KindOpenAI,
	"bedrock":   KindBedrock,
	"ollama":    KindOllama,
	"owiseman":  KindOpenAICompat,
}

// ResolveBackendKind decides which wire protocol a provider speaks. Known
// bundled provider IDs resolve directly; any other provider ID (a
// user-declared custom provider) falls back to its declared
// registry.OptionBackendType, defaulting to the openai-compatible catch-all
// when that option was never set — matching config.ProviderConfig.Type's
// documented default.
func ResolveBackendKind(p *registry.Provider) BackendKind {
	if kind, ok := bundledBackendKind[p.ID]; ok {
		return kind
	}
	if raw, ok := p.Options[registry.OptionBackendType]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return BackendKind(s)
		}
	}
	return KindOpenAICompat
}

// New constructs the concrete LanguageModel for (p, m), wrapping it in the
// prompt-engineered tool-calling shim when the provider is pinned to
// prompt-mode tool calling or the model has no native tool support.
func New(p *registry.Provider, m *registry.Model) (llmtypes.LanguageModel, error) {
	kind := ResolveBackendKind(p)

	var inner llmtypes.LanguageModel
	var err error
	switch kind {
	case KindAnthropic:
		inner, err = anthropic.New(anthropic.Config{
			APIKey:     p.APIKey,
			ProviderID: p.ID,
			ModelID:    modelAPIID(m),
			BaseURLOpt: stringOption(p.Options, registry.OptionBaseURL),
		})
	case KindOpenAI:
		inner, err = openaidriver.New(openaidriver.Config{
			APIKey:     p.APIKey,
			ProviderID: p.ID,
			ModelID:    modelAPIID(m),
			BaseURL:    stringOption(p.Options, registry.OptionBaseURL),
		})
	case KindOpenAICompat:
		inner, err = openaidriver.New(openaidriver.Config{
			APIKey:     p.APIKey,
			ProviderID: p.ID,
			ModelID:    modelAPIID(m),
			BaseURL:    stringOption(p.Options, registry.OptionBaseURL),
			Compat:     true,
		})
	case KindBedrock:
		region := stringOption(p.Options, "region")
		inner, err = bedrock.New(bedrock.Config{
			ProviderID: p.ID,
			ModelID:    PrefixBedrockModelID(modelAPIID(m), region),
			Region:     region,
		})
	case KindOllama:
		baseURL := stringOption(p.Options, registry.OptionBaseURL)
		if baseURL == "" {
			baseURL = OllamaBaseURL()
		}
		inner, err = ollama.New(ollama.Config{
			ProviderID: p.ID,
			ModelID:    modelAPIID(m),
			BaseURL:    baseURL,
		})
	default:
		panic(fmt.Sprintf("provider: unhandled backend kind %q", kind))
	}
	if err != nil {
		return nil, err
	}

	if needsShim(p, m) {
		return WrapShim(inner), nil
	}
	return inner, nil
}

// needsShim reports whether tool calls for (p, m) must be routed through
// the prompt-engineered shim rather than the backend's native tool-call
// API: either the provider explicitly pins prompt mode, or the model's
// catalog entry declares it has no native tool support at all.
func needsShim(p *registry.Provider, m *registry.Model) bool {
	if raw, ok := p.Options[registry.OptionToolCallMode]; ok {
		if s, _ := raw.(string); s == "prompt" {
			return true
		}
	}
	return !m.Capabilities.ToolCall
}

func modelAPIID(m *registry.Model) string {
	if m.APIID != "" {
		return m.APIID
	}
	return m.ModelID
}

func stringOption(options map[string]any, key string) string {
	if options == nil {
		return ""
	}
	if raw, ok := options[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}
