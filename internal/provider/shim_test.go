// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShimRoundTripProducesMatchingToolCall(t *testing.T) {
	formatted := ShimFormat([]shimToolCall{NewToolCall("ide.hover", map[string]any{})})

	parts, err := ShimParse(formatted)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, ContentToolCall, parts[0].Kind)
	assert.Equal(t, "ide.hover", parts[0].ToolName)
	assert.NotEmpty(t, parts[0].ToolCallID)
}

func TestShimParseFinalText(t *testing.T) {
	parts, err := ShimParse(`{"opencode":{"final":"hello there"}}`)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, ContentText, parts[0].Kind)
	assert.Equal(t, "hello there", parts[0].Text)
}

func TestShimParseToleratesAltKeyNames(t *testing.T) {
	parts, err := ShimParse(`{"opencode":{"toolCalls":[{"name":"a.b","arguments":{"x":1}}]}}`)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "a.b", parts[0].ToolName)

	parts2, err := ShimParse(`{"opencode":{"toolcalls":[{"name":"c.d","arguments":{}}]}}`)
	require.NoError(t, err)
	require.Len(t, parts2, 1)
	assert.Equal(t, "c.d", parts2[0].ToolName)
}

func TestShimParseFallsBackToContentAndText(t *testing.T) {
	parts, err := ShimParse(`{"content":"from content field"}`)
	require.NoError(t, err)
	assert.Equal(t, "from content field", parts[0].Text)

	parts2, err := ShimParse(`{"text":"from text field"}`)
	require.NoError(t, err)
	assert.Equal(t, "from text field", parts2[0].Text)
}

func TestShimParseUsesFirstOfMultipleTopLevelObjects(t *testing.T) {
	raw := `{"opencode":{"final":"first"}} {"opencode":{"final":"second"}}`
	parts, err := ShimParse(raw)
	require.NoError(t, err)
	assert.Equal(t, "first", parts[0].Text)
}

func TestExtractBalancedJSONHandlesNestedBracesAndStrings(t *testing.T) {
	raw := `noise before {"a": {"b": "c}", "d": 1}} noise after`
	got := ExtractBalancedJSON(raw)
	assert.Equal(t, `{"a": {"b": "c}", "d": 1}}`, got)
}

func TestExtractBalancedJSONNoObjectReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractBalancedJSON("no json here"))
}

func TestEachSynthesizedToolCallGetsAFreshUUID(t *testing.T) {
	formatted := ShimFormat([]shimToolCall{
		NewToolCall("a", nil),
		NewToolCall("b", nil),
	})
	parts, err := ShimParse(formatted)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.NotEqual(t, parts[0].ToolCallID, parts[1].ToolCallID)
}
