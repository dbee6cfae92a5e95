// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package credstore is the durable per-MCP-server record of OAuth tokens
// and dynamic-registration client info. The whole store is one JSON
// document at a well-known path; writes are atomic (write-to-temp +
// rename) and serialized per process.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Tokens is the OAuth token set for one MCP server.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"` // unix seconds, 0 = unknown
}

// ClientInfo is the dynamic-registration (RFC 7591) client record.
type ClientInfo struct {
	ClientID              string `json:"clientId"`
	ClientSecret          string `json:"clientSecret,omitempty"`
	ClientSecretExpiresAt int64  `json:"clientSecretExpiresAt,omitempty"`
}

// Record is one MCP server's stored auth state. All fields are optional;
// CodeVerifier lives on a record only between authorization-URL emission
// and token exchange and is cleared on both success and failure.
type Record struct {
	Tokens       *Tokens     `json:"tokens,omitempty"`
	ClientInfo   *ClientInfo `json:"clientInfo,omitempty"`
	CodeVerifier string      `json:"codeVerifier,omitempty"`
}

// Store is a JSON-document-backed key-value map of server name to Record.
// Writes are serialized; reads may race with a write but always observe
// some committed version (never a torn file, due to rename-based commit).
type Store struct {
	path string

	mu   sync.Mutex // serializes writes and read-modify-write sequences
	data map[string]json.RawMessage
}

// Open loads (or lazily creates) the store at path. Missing files are
// treated as an empty store; unknown top-level keys are preserved across
// rewrites since they're kept as raw JSON until explicitly overwritten.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]json.RawMessage)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("credstore: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("credstore: parse %s: %w", path, err)
	}
	return s, nil
}

// Get returns the record for name and whether it exists. Missing fields
// within a stored record are tolerated: a record with only Tokens set, or
// only ClientInfo set, is valid.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[name]
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// All returns every stored record, keyed by server name.
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record, len(s.data))
	for name, raw := range s.data {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err == nil {
			out[name] = rec
		}
	}
	return out
}

// Set stores rec for name and commits the document to disk atomically.
func (s *Store) Set(name string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("credstore: marshal record for %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = raw
	return s.commitLocked()
}

// Remove deletes the record for name, if any, and commits the document.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[name]; !ok {
		return nil
	}
	delete(s.data, name)
	return s.commitLocked()
}

// commitLocked serializes the full document and atomically replaces the
// file on disk via write-to-temp + rename, so a crash mid-write never
// leaves a torn or truncated file for a concurrent reader to observe.
func (s *Store) commitLocked() error {
	out, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credstore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".mcp-auth-*.json.tmp")
	if err != nil {
		return fmt.Errorf("credstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("credstore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("credstore: rename into place: %w", err)
	}
	return nil
}
