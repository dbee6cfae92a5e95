// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package oauthflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPKCEVerifierChallengeRoundTrips(t *testing.T) {
	verifier, err := newVerifier()
	require.NoError(t, err)
	assert.NotEmpty(t, verifier)

	challenge := challengeS256(verifier)
	assert.NotEmpty(t, challenge)

	// Recomputing the challenge from the same verifier must match —
	// this is the round-trip law the PKCE exchange server-side check
	// relies on.
	assert.Equal(t, challenge, challengeS256(verifier))

	// A different verifier must not produce the same challenge.
	other, err := newVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, other)
	assert.NotEqual(t, challenge, challengeS256(other))
}

func TestNewStateIsRandom(t *testing.T) {
	a, err := newState()
	require.NoError(t, err)
	b, err := newState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
