// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"encoding/json"
	"sort"
	"sync"
)

// Cache memoizes streaming language-model handles by (providerID,
// modelID, options). Readers are common; construction is single-flight
// per key so two concurrent callers for the same handle don't race the
// (possibly expensive) backend driver construction.
type Cache struct {
	mu    sync.Mutex
	byKey map[string]LanguageModel
}

// NewCache returns a ready-to-use Cache.
func NewCache() *Cache {
	return &Cache{byKey: make(map[string]LanguageModel)}
}

// GetOrCreate returns the cached handle for key, constructing it via create
// if absent. Concurrent calls for the same key block on the same
// construction rather than racing two constructions.
func (c *Cache) GetOrCreate(key string, create func() (LanguageModel, error)) (LanguageModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.byKey[key]; ok {
		return m, nil
	}
	m, err := create()
	if err != nil {
		return nil, err
	}
	c.byKey[key] = m
	return m, nil
}

// CacheKey derives a stable hash-ready key from (npm-equivalent backend
// name, options): sorted keys, no optional fields present as null. This
// mirrors the source's canonical-ordered serialization requirement for
// the SDK memoization cache.
func CacheKey(backend, providerID, modelID string, options map[string]any) string {
	canonical := canonicalizeOptions(options)
	b, _ := json.Marshal(canonical)
	return backend + "/" + providerID + "/" + modelID + "#" + string(b)
}

// canonicalizeOptions returns options as a slice of (key, value) pairs
// sorted by key, dropping nil values entirely so that an explicit null
// and an absent key hash identically.
func canonicalizeOptions(options map[string]any) []kv {
	keys := make([]string, 0, len(options))
	for k, v := range options {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kv, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv{Key: k, Value: options[k]})
	}
	return out
}

type kv struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
