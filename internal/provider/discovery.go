// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/registry"
)

const ollamaDiscoveryTimeout = 2500 * time.Millisecond

// OllamaBaseURL resolves the configured Ollama endpoint per the
// environment variables consulted list, defaulting to the standard local
// port.
func OllamaBaseURL() string {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		return v
	}
	return "http://127.0.0.1:11434"
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaDiscoveryLoader is a registry.CustomLoader: it issues GET
// {baseURL}/api/tags and synthesizes a model descriptor (cloned from an
// existing Ollama entry as a template, or sensible defaults) for every
// name not already present. On failure with an empty model list, a
// single fallback entry is synthesized so callers can still address the
// endpoint.
func OllamaDiscoveryLoader(baseURL string) registry.CustomLoader {
	return func(ctx context.Context, p *registry.Provider, cfg config.Config) error {
		ctx, cancel := context.WithTimeout(ctx, ollamaDiscoveryTimeout)
		defer cancel()

		template := firstModel(p)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
		if err != nil {
			return fallbackIfEmpty(p, template)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fallbackIfEmpty(p, template)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fallbackIfEmpty(p, template)
		}

		var tags ollamaTagsResponse
		if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
			return fallbackIfEmpty(p, template)
		}

		for _, t := range tags.Models {
			if _, exists := p.Models[t.Name]; exists {
				continue
			}
			p.Models[t.Name] = cloneTemplate(template, p.ID, t.Name)
		}
		return fallbackIfEmpty(p, template)
	}
}

func firstModel(p *registry.Provider) *registry.Model {
	for _, m := range p.Models {
		return m
	}
	return nil
}

// cloneTemplate builds a new model descriptor from template (if any) or
// sensible defaults: 16 KiB context, 4 KiB output, text-only modalities,
// tool-call disabled unless prompt-mode is selected elsewhere.
func cloneTemplate(template *registry.Model, providerID, modelID string) *registry.Model {
	m := &registry.Model{
		ProviderID: providerID,
		ModelID:    modelID,
		Status:     registry.StatusActive,
		Limits:     registry.Limits{Context: 16 * 1024, Output: 4 * 1024},
		Capabilities: registry.Capabilities{
			Input:  map[registry.Modality]bool{registry.ModalityText: true},
			Output: map[registry.Modality]bool{registry.ModalityText: true},
		},
	}
	if template != nil {
		m.Family = template.Family
		m.Limits = template.Limits
		m.Capabilities = template.Capabilities
	}
	m.ModelID = modelID
	m.APIID = modelID
	return m
}

func fallbackIfEmpty(p *registry.Provider, template *registry.Model) error {
	if len(p.Models) > 0 {
		return nil
	}
	p.Models["llama3.1:8b-instruct"] = cloneTemplate(template, p.ID, "llama3.1:8b-instruct")
	return nil
}

// OwisemanBaseURL resolves the configured Owiseman endpoint.
func OwisemanBaseURL() string {
	if v := os.Getenv("OWISEMAN_BASE_URL"); v != "" {
		return v
	}
	return "https://api.owiseman.ai"
}

type owisemanModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// OwisemanDiscoveryLoader issues GET /v1/models with both Authorization:
// Bearer and api-key headers (Owiseman requires both), keyed by OpenAI-
// style data[].id.
func OwisemanDiscoveryLoader(baseURL string) registry.CustomLoader {
	return func(ctx context.Context, p *registry.Provider, cfg config.Config) error {
		if p.APIKey == "" {
			return nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/models", nil)
		if err != nil {
			return nil
		}
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
		req.Header.Set("api-key", p.APIKey)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil
		}

		var out owisemanModelsResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil
		}
		template := firstModel(p)
		for _, d := range out.Data {
			if _, exists := p.Models[d.ID]; exists {
				continue
			}
			p.Models[d.ID] = cloneTemplate(template, p.ID, d.ID)
		}
		return nil
	}
}

// OwisemanURLRewrite rewrites /chat/completions to /v1/chat/completions,
// the URL shape Owiseman expects.
func OwisemanURLRewrite(path string) string {
	if strings.HasSuffix(path, "/chat/completions") && !strings.Contains(path, "/v1/") {
		return strings.Replace(path, "/chat/completions", "/v1/chat/completions", 1)
	}
	return path
}
