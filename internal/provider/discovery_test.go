// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/registry"
)

// TestOllamaDiscoveryLoaderPopulatesAbsentProvider proves end-to-end
// Scenario 1 (Ollama autoload): the bundled catalog carries no "ollama"
// entry at all, so the provider only exists in the built registry because
// OllamaDiscoveryLoader ran and registry.applyCustomLoaders seeded it.
func TestOllamaDiscoveryLoaderPopulatesAbsentProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:8b-instruct"},{"name":"qwen2.5-coder:14b"}]}`))
	}))
	defer srv.Close()

	r, err := registry.Build(context.Background(), config.Config{}, registry.BuildOptions{
		CustomLoaders: map[string]registry.CustomLoader{
			"ollama": OllamaDiscoveryLoader(srv.URL),
		},
	})
	require.NoError(t, err)

	p, ok := r.Providers["ollama"]
	require.True(t, ok, "ollama must appear in the registry purely from the discovery loader running")
	assert.Contains(t, p.Models, "llama3.1:8b-instruct")
	assert.Contains(t, p.Models, "qwen2.5-coder:14b")
}

// TestOllamaDiscoveryLoaderFallsBackWhenUnreachable covers the
// endpoint-down path: no HTTP server is listening, so the loader must still
// leave a single addressable fallback model rather than an empty provider
// (which registry.Build would otherwise prune).
func TestOllamaDiscoveryLoaderFallsBackWhenUnreachable(t *testing.T) {
	r, err := registry.Build(context.Background(), config.Config{}, registry.BuildOptions{
		CustomLoaders: map[string]registry.CustomLoader{
			"ollama": OllamaDiscoveryLoader("http://127.0.0.1:1"), // nothing listens here
		},
	})
	require.NoError(t, err)

	p, ok := r.Providers["ollama"]
	require.True(t, ok)
	assert.Contains(t, p.Models, "llama3.1:8b-instruct")
}

// TestOwisemanDiscoveryLoaderRequiresAPIKey covers the credential-gating
// branch: with no API key ever set on the provider, the loader must decline
// to populate any models, so the provider is pruned as zero-model.
func TestOwisemanDiscoveryLoaderRequiresAPIKey(t *testing.T) {
	r, err := registry.Build(context.Background(), config.Config{}, registry.BuildOptions{
		CustomLoaders: map[string]registry.CustomLoader{
			"owiseman": OwisemanDiscoveryLoader("https://example.invalid"),
		},
	})
	require.NoError(t, err)

	assert.NotContains(t, r.Providers, "owiseman")
}

// TestOwisemanDiscoveryLoaderPopulatesWithAPIKey proves the credentialed
// path: a config-declared API key reaches the provider before stage 6 runs, so the
// loader's GET /v1/models populates the (otherwise bundled-absent) provider.
func TestOwisemanDiscoveryLoaderPopulatesWithAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-owi-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"owi-large"}]}`))
	}))
	defer srv.Close()

	cfg := config.Config{
		Providers: []config.ProviderConfig{{ID: "owiseman", APIKey: "sk-owi-test"}},
	}
	r, err := registry.Build(context.Background(), cfg, registry.BuildOptions{
		CustomLoaders: map[string]registry.CustomLoader{
			"owiseman": OwisemanDiscoveryLoader(srv.URL),
		},
	})
	require.NoError(t, err)

	p, ok := r.Providers["owiseman"]
	require.True(t, ok)
	assert.Contains(t, p.Models, "owi-large")
}
