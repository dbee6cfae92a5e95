// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package credstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-auth.json")
	s, err := Open(path)
	require.NoError(t, err)

	rec := Record{Tokens: &Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 1730000000}}
	require.NoError(t, s.Set("serverA", rec))

	got, ok := s.Get("serverA")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	// Reopening from disk must observe the committed write.
	reopened, err := Open(path)
	require.NoError(t, err)
	got2, ok := reopened.Get("serverA")
	require.True(t, ok)
	assert.Equal(t, rec, got2)
}

func TestSetThenRemoveClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-auth.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("serverA", Record{Tokens: &Tokens{AccessToken: "at"}}))
	require.NoError(t, s.Remove("serverA"))

	_, ok := s.Get("serverA")
	assert.False(t, ok)
}

func TestRemoveOneServerLeavesOthersUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-auth.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("serverA", Record{Tokens: &Tokens{AccessToken: "at"}}))
	require.NoError(t, s.Set("serverB", Record{
		Tokens:     &Tokens{AccessToken: "bt"},
		ClientInfo: &ClientInfo{ClientID: "cid"},
	}))

	require.NoError(t, s.Remove("serverA"))

	all := s.All()
	assert.Len(t, all, 1)
	assert.Contains(t, all, "serverB")

	reopened, err := Open(path)
	require.NoError(t, err)
	all2 := reopened.All()
	assert.Len(t, all2, 1)
	assert.Contains(t, all2, "serverB")
}

func TestGetMissingReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-auth.json")
	s, err := Open(path)
	require.NoError(t, err)

	_, ok := s.Get("nonexistent")
	assert.False(t, ok)
}

func TestOpenNonexistentFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, s.All())
}

func TestRecordToleratesMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-auth.json")
	s, err := Open(path)
	require.NoError(t, err)

	// Client-info-only record, no tokens.
	require.NoError(t, s.Set("serverC", Record{ClientInfo: &ClientInfo{ClientID: "cid"}}))
	got, ok := s.Get("serverC")
	require.True(t, ok)
	assert.Nil(t, got.Tokens)
	assert.Equal(t, "cid", got.ClientInfo.ClientID)
}
