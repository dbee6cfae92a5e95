// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed data/bundled.json
var bundledCatalogJSON []byte

type bundledModel struct {
	Family    string   `json:"family"`
	Status    string   `json:"status"`
	ToolCall  bool     `json:"toolCall"`
	Reasoning bool     `json:"reasoning"`
	Input     []string `json:"input"`
	Output    []string `json:"output"`
	Cost      struct {
		Input  float64 `json:"input"`
		Output float64 `json:"output"`
	} `json:"cost"`
	Limits struct {
		Context int `json:"context"`
		Output  int `json:"output"`
	} `json:"limits"`
}

type bundledProvider struct {
	Name        string                  `json:"name"`
	EnvVarNames []string                `json:"envVarNames"`
	Models      map[string]bundledModel `json:"models"`
}

// loadBundled parses the embedded static catalog into Provider values.
// This is the Go analogue of the source's npm-bundled JSON database
// (stage 1 of the registry merge).
func loadBundled() (map[string]*Provider, error) {
	var raw map[string]bundledProvider
	if err := json.Unmarshal(bundledCatalogJSON, &raw); err != nil {
		return nil, fmt.Errorf("registry: parse bundled catalog: %w", err)
	}

	providers := make(map[string]*Provider, len(raw))
	for id, bp := range raw {
		p := &Provider{
			ID:          id,
			Name:        bp.Name,
			EnvVarNames: bp.EnvVarNames,
			Options:     map[string]any{},
			Models:      make(map[string]*Model, len(bp.Models)),
		}
		for modelID, bm := range bp.Models {
			m := &Model{
				ProviderID: id,
				ModelID:    modelID,
				Family:     bm.Family,
				Status:     ModelStatus(bm.Status),
				Capabilities: Capabilities{
					Input:    modalitySet(bm.Input),
					Output:   modalitySet(bm.Output),
					ToolCall: bm.ToolCall,
					Reasoning: bm.Reasoning,
				},
				Cost: Cost{
					Input:  bm.Cost.Input,
					Output: bm.Cost.Output,
				},
				Limits: Limits{
					Context: bm.Limits.Context,
					Output:  bm.Limits.Output,
				},
			}
			m.normalizeAPIID()
			p.Models[modelID] = m
		}
		providers[id] = p
	}
	return providers, nil
}

func modalitySet(names []string) map[Modality]bool {
	out := make(map[Modality]bool, len(names))
	for _, n := range names {
		out[Modality(n)] = true
	}
	return out
}
