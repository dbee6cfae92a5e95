// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

func TestNewConstructsDriverWithoutNetworkCall(t *testing.T) {
	d, err := New(Config{APIKey: "test-key", ProviderID: "anthropic", ModelID: "claude-3-5-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", d.ProviderID())
	assert.Equal(t, "claude-3-5-sonnet", d.ModelID())
	assert.True(t, d.SupportsTools())
}

func TestConvertStopReasonMapsEveryKnownReason(t *testing.T) {
	cases := map[sdk.StopReason]llmtypes.FinishReason{
		sdk.StopReasonEndTurn:      llmtypes.FinishStop,
		sdk.StopReasonStopSequence: llmtypes.FinishStop,
		sdk.StopReasonToolUse:      llmtypes.FinishToolCalls,
		sdk.StopReasonMaxTokens:    llmtypes.FinishLength,
	}
	for reason, want := range cases {
		assert.Equal(t, want, convertStopReason(reason))
	}
}

func TestMaxTokensDefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, int64(4096), maxTokens(llmtypes.GenerateOptions{}))
	assert.Equal(t, int64(200), maxTokens(llmtypes.GenerateOptions{Options: map[string]any{"maxTokens": 200}}))
}
