// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

func TestNewConstructsDriverWithoutNetworkCall(t *testing.T) {
	d, err := New(Config{APIKey: "test-key", ProviderID: "openai", ModelID: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", d.ProviderID())
	assert.True(t, d.SupportsStructuredOutput())
}

func TestCompatDriverReportsNoStructuredOutputOrImages(t *testing.T) {
	d, err := New(Config{APIKey: "k", ProviderID: "custom", ModelID: "m", BaseURL: "http://localhost:8000/v1", Compat: true})
	require.NoError(t, err)
	assert.False(t, d.SupportsStructuredOutput())
	assert.False(t, d.SupportsImageInput())
	assert.True(t, d.SupportsTools())
}

func TestConvertFinishReasonMapsEveryKnownReason(t *testing.T) {
	cases := map[string]llmtypes.FinishReason{
		"stop":           llmtypes.FinishStop,
		"tool_calls":     llmtypes.FinishToolCalls,
		"length":         llmtypes.FinishLength,
		"content_filter": llmtypes.FinishContentFilter,
		"unexpected":     llmtypes.FinishUnknown,
	}
	for reason, want := range cases {
		assert.Equal(t, want, convertFinishReason(reason))
	}
}
