// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEchoesWrittenInput(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	p, err := New("t1", Options{Command: "cat"})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Write([]byte("hello\n"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "hello")
}

func TestCloseIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	p, err := New("t2", Options{Command: "cat"})
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestDoneClosesOnExit(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a real PTY child")
	}
	p, err := New("t3", Options{Command: "true"})
	require.NoError(t, err)
	defer p.Close()

	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for child exit")
	}
	assert.Equal(t, 0, p.ExitCode())
}

func TestFilterSensitiveEnvDropsCredentialKeys(t *testing.T) {
	in := []string{"PATH=/bin", "MCP_AUTH_STORE_KEY=secret", "CREDENTIAL_STORE_KEY=secret2", "HOME=/root"}
	out := filterSensitiveEnv(in)
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root"}, out)
}

func TestPidIsZeroBeforeStart(t *testing.T) {
	p := &PTY{ID: "unstarted"}
	assert.Equal(t, 0, p.Pid())
	assert.Equal(t, "", p.Cwd())
}
