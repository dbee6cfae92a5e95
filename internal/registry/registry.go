// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package registry

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/acme/codeassist-core/internal/config"
	"github.com/acme/codeassist-core/internal/errs"
)

// Well-known Provider.Options keys populated from config.ProviderConfig,
// read back by internal/provider's driver dispatch.
const (
	OptionBaseURL      = "baseURL"
	OptionBackendType  = "backendType" // defaults to "openai-compatible" when unset
	OptionToolCallMode = "toolCallMode"
	OptionExtraBody    = "extraBody"
)

// Registry is the immutable, built catalog of providers × models. Callers
// obtain one via Build; rebuilding with identical inputs yields a
// structurally equal Registry (merge idempotence).
type Registry struct {
	Providers map[string]*Provider
}

// CustomLoader may mutate the model list for its provider (e.g. Ollama's
// /api/tags discovery) before config overrides and filters run. It
// receives the provider as built so far (stage 1-5 merged) and the full
// config for context; it mutates p.Models in place.
type CustomLoader func(ctx context.Context, p *Provider, cfg config.Config) error

// PluginLoader inspects whether credentials exist for its named provider
// and, if so, returns provider options to deep-merge in.
type PluginLoader struct {
	ProviderID string
	Load       func() (map[string]any, error)
}

// BuildOptions supplies the merge stages external to config: credentials
// from an auth CLI, plugin loaders, and per-provider custom loaders.
type BuildOptions struct {
	StoredAPIKeys map[string]string       // providerID -> api key, stage 4
	Plugins       []PluginLoader          // stage 5
	CustomLoaders map[string]CustomLoader // providerID -> loader, stage 6
}

// Build runs the full ordered merge described by the component design:
// bundled database, config-declared providers/models, environment
// credentials, stored API keys, plugin-supplied options, custom loaders,
// config overrides (second pass), then filters.
func Build(ctx context.Context, cfg config.Config, opts BuildOptions) (*Registry, error) {
	providers, err := loadBundled()
	if err != nil {
		return nil, err
	}

	applyConfigDeclared(providers, cfg)
	applyEnvCredentials(providers, cfg)
	applyStoredAPIKeys(providers, opts.StoredAPIKeys)
	if err := applyPlugins(providers, opts.Plugins); err != nil {
		return nil, err
	}
	applyCustomLoaders(ctx, providers, cfg, opts.CustomLoaders)
	applyConfigDeclared(providers, cfg) // second pass per stage 7
	applyFilters(providers, cfg)

	// A provider with no credential survives only when a custom loader
	// populated it.
	for id, p := range providers {
		if _, loaded := opts.CustomLoaders[id]; p.APIKey == "" && !loaded {
			delete(providers, id)
		}
	}

	return &Registry{Providers: providers}, nil
}

// stage 2 + 7: config-declared providers/models, capability overrides.
func applyConfigDeclared(providers map[string]*Provider, cfg config.Config) {
	for _, pc := range cfg.Providers {
		p, ok := providers[pc.ID]
		if !ok {
			p = &Provider{
				ID:      pc.ID,
				Name:    pc.Name,
				Options: map[string]any{},
				Models:  make(map[string]*Model),
			}
			providers[pc.ID] = p
		}
		if pc.Name != "" {
			p.Name = pc.Name
		}
		if pc.APIKey != "" {
			p.APIKey = pc.APIKey
			p.Source = SourceConfig
		}
		if p.Options == nil {
			p.Options = map[string]any{}
		}
		if pc.BaseURL != "" {
			p.Options[OptionBaseURL] = pc.BaseURL
		}
		if pc.Type != "" {
			p.Options[OptionBackendType] = pc.Type
		}
		if pc.ToolCallMode != "" {
			p.Options[OptionToolCallMode] = pc.ToolCallMode
		}
		if len(pc.ExtraBody) > 0 {
			p.Options[OptionExtraBody] = pc.ExtraBody
		}
		for k, v := range pc.ExtraHeaders {
			p.Options["header:"+k] = v
		}
		for _, mo := range pc.Models {
			m, ok := p.Models[mo.ModelID]
			if !ok {
				m = &Model{ProviderID: pc.ID, ModelID: mo.ModelID}
				p.Models[mo.ModelID] = m
			}
			if mo.APIID != "" {
				m.APIID = mo.APIID
			}
			if mo.Family != "" {
				m.Family = mo.Family
			}
			if mo.Options != nil {
				if m.Options == nil {
					m.Options = map[string]any{}
				}
				for k, v := range mo.Options {
					m.Options[k] = v
				}
			}
			if mo.Headers != nil {
				if m.Headers == nil {
					m.Headers = map[string]string{}
				}
				for k, v := range mo.Headers {
					m.Headers[k] = v
				}
			}
			if mo.Disabled {
				m.Variants = append(m.Variants, Variant{Name: mo.ModelID, Disabled: true})
			}
			m.normalizeAPIID()
		}
	}
}

// stage 3: the first present environment variable sets source=env.
func applyEnvCredentials(providers map[string]*Provider, cfg config.Config) {
	for _, p := range providers {
		if p.Source == SourceConfig && p.APIKey != "" {
			continue // config already won for this provider
		}
		for _, envVar := range p.EnvVarNames {
			if v := os.Getenv(envVar); v != "" {
				p.APIKey = v
				p.Source = SourceEnv
				break
			}
		}
	}
}

// stage 4: stored API keys from an auth CLI mark source=api.
func applyStoredAPIKeys(providers map[string]*Provider, stored map[string]string) {
	for id, key := range stored {
		if key == "" {
			continue
		}
		p, ok := providers[id]
		if !ok {
			continue
		}
		p.APIKey = key
		p.Source = SourceAPI
	}
}

// stage 5: plugin-supplied options are deep-merged when credentials exist.
func applyPlugins(providers map[string]*Provider, plugins []PluginLoader) error {
	for _, pl := range plugins {
		p, ok := providers[pl.ProviderID]
		if !ok || p.APIKey == "" {
			continue
		}
		opts, err := pl.Load()
		if err != nil {
			return &errs.ProviderInitError{ProviderID: pl.ProviderID, Cause: err}
		}
		if p.Options == nil {
			p.Options = map[string]any{}
		}
		for k, v := range opts {
			p.Options[k] = v
		}
	}
	return nil
}

// stage 6: custom per-provider loaders, e.g. Ollama /api/tags discovery. A
// loader whose ID has no bundled or config-declared entry yet gets a
// freshly seeded provider to populate, mirroring applyConfigDeclared's own
// seed-if-absent behavior — this is how an autoload provider like Ollama or
// Owiseman, entirely absent from bundled.json, enters the registry at all.
// A loader that leaves its provider with zero models (declined autoload,
// unreachable endpoint) is pruned here rather than left as an empty stub;
// applyFilters later drops any provider whose models were all filtered out.
func applyCustomLoaders(ctx context.Context, providers map[string]*Provider, cfg config.Config, loaders map[string]CustomLoader) {
	for id, loader := range loaders {
		p, ok := providers[id]
		if !ok {
			p = &Provider{
				ID:      id,
				Options: map[string]any{},
				Models:  make(map[string]*Model),
			}
			providers[id] = p
		}
		_ = loader(ctx, p, cfg)
		if len(p.Models) == 0 {
			delete(providers, id)
		}
	}
}

// stage 8: disabled-set, enabled allow-set, blacklist/whitelist,
// alpha/deprecated pruning, disabled-variant pruning, drop zero-model
// providers.
func applyFilters(providers map[string]*Provider, cfg config.Config) {
	disabled := toSet(cfg.DisabledProviders)
	enabled := toSet(cfg.EnabledProviders)

	for id, p := range providers {
		if disabled[id] {
			delete(providers, id)
			continue
		}
		if len(enabled) > 0 && !enabled[id] {
			delete(providers, id)
			continue
		}

		black := toSet(cfg.Blacklist[id])
		white := toSet(cfg.Whitelist[id])

		for modelID, m := range p.Models {
			if black[modelID] {
				delete(p.Models, modelID)
				continue
			}
			if len(white) > 0 && !white[modelID] {
				delete(p.Models, modelID)
				continue
			}
			if m.Status == StatusDeprecated {
				delete(p.Models, modelID)
				continue
			}
			if m.Status == StatusAlpha && !cfg.ExperimentalModels {
				delete(p.Models, modelID)
				continue
			}
			m.Variants = pruneDisabledVariants(m.Variants)
		}

		if len(p.Models) == 0 {
			delete(providers, id)
		}
	}
}

func pruneDisabledVariants(variants []Variant) []Variant {
	out := variants[:0]
	for _, v := range variants {
		if !v.Disabled {
			out = append(out, v)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// Get resolves (providerID, modelID), returning errs.ModelNotFound with up
// to three fuzzy-matched suggestions when absent.
func (r *Registry) Get(providerID, modelID string) (*Model, error) {
	p, ok := r.Providers[providerID]
	if !ok {
		return nil, &errs.ModelNotFound{ProviderID: providerID, ModelID: modelID, Suggestions: r.suggest(providerID + "/" + modelID)}
	}
	m, ok := p.Models[modelID]
	if !ok {
		return nil, &errs.ModelNotFound{ProviderID: providerID, ModelID: modelID, Suggestions: r.suggest(providerID + "/" + modelID)}
	}
	return m, nil
}

// suggest returns up to 3 fuzzy-matched "providerID/modelID" strings for
// query, using a bounded score threshold; below-threshold matches are
// dropped, which can yield an empty slice.
func (r *Registry) suggest(query string) []string {
	const maxSuggestions = 3
	const minScore = 1 // sahilm/fuzzy scores are unbounded; anything <= 0 is a non-match

	var candidates []string
	for pid, p := range r.Providers {
		for mid := range p.Models {
			candidates = append(candidates, pid+"/"+mid)
		}
	}
	sort.Strings(candidates) // stable ordering before fuzzy ranks ties

	matches := fuzzy.Find(query, candidates)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	var out []string
	for _, m := range matches {
		if m.Score < minScore {
			continue
		}
		out = append(out, candidates[m.Index])
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// defaultModelPriority biases default-model selection toward the newest
// flagship families when the config doesn't pin a model.
var defaultModelPriority = []string{"gpt-5", "claude-sonnet-4-5", "gemini-3-pro"}

// DefaultModel implements the default-model policy: an explicit
// "<providerID>/<modelID>" pin wins; otherwise the first provider (in
// config order) with surviving models is chosen and its models are
// sorted by the priority list.
func (r *Registry) DefaultModel(cfg config.Config) (*Model, error) {
	if cfg.Model != "" {
		pid, mid, ok := strings.Cut(cfg.Model, "/")
		if !ok {
			return nil, &errs.ModelNotFound{ProviderID: cfg.Model, ModelID: "", Suggestions: r.suggest(cfg.Model)}
		}
		return r.Get(pid, mid)
	}

	for _, pc := range cfg.Providers {
		p, ok := r.Providers[pc.ID]
		if !ok || len(p.Models) == 0 {
			continue
		}
		return r.bestByPriority(p), nil
	}
	// No config-declared provider order (or none survived) — fall back
	// to any provider with surviving models, preferring priority matches.
	for _, p := range r.Providers {
		if len(p.Models) > 0 {
			return r.bestByPriority(p), nil
		}
	}
	return nil, &errs.ModelNotFound{ProviderID: "", ModelID: "", Suggestions: nil}
}

func (r *Registry) bestByPriority(p *Provider) *Model {
	for _, fam := range defaultModelPriority {
		if m, ok := p.Models[fam]; ok {
			return m
		}
	}
	var ids []string
	for id := range p.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return p.Models[ids[0]]
}

// smallModelCandidates is the ordered name-contains search list.
var smallModelCandidates = []string{"claude-haiku-4-5", "3-5-haiku", "gemini-3-flash", "gemini-2.5-flash", "gpt-5-nano"}

// SmallModel implements the small-model policy, including the
// provider-specific overrides for "opencode" (restricted to gpt-5-nano)
// and "github-copilot*" (prefers gpt-5-mini then haiku).
func (r *Registry) SmallModel(cfg config.Config) (*Model, error) {
	if cfg.SmallModel != "" {
		pid, mid, ok := strings.Cut(cfg.SmallModel, "/")
		if !ok {
			return nil, &errs.ModelNotFound{ProviderID: cfg.SmallModel, Suggestions: r.suggest(cfg.SmallModel)}
		}
		return r.Get(pid, mid)
	}

	for _, pc := range cfg.Providers {
		p, ok := r.Providers[pc.ID]
		if !ok {
			continue
		}
		if m := r.smallModelForProvider(p); m != nil {
			return m, nil
		}
	}
	for _, p := range r.Providers {
		if m := r.smallModelForProvider(p); m != nil {
			return m, nil
		}
	}
	return nil, &errs.ModelNotFound{Suggestions: nil}
}

func (r *Registry) smallModelForProvider(p *Provider) *Model {
	switch {
	case p.ID == "opencode":
		if m, ok := p.Models["gpt-5-nano"]; ok {
			return m
		}
		return nil
	case strings.HasPrefix(p.ID, "github-copilot"):
		for _, want := range []string{"gpt-5-mini", "claude-haiku-4-5", "3-5-haiku"} {
			if m, ok := p.Models[want]; ok {
				return m
			}
		}
		return nil
	}
	for _, want := range smallModelCandidates {
		for modelID, m := range p.Models {
			if strings.Contains(modelID, want) {
				return m
			}
		}
	}
	return nil
}
