// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInner is a minimal llmtypes.LanguageModel double whose DoGenerate
// just echoes back a canned raw text response, so shimModel's parsing
// behavior can be tested without a real backend.
type fakeInner struct {
	rawText      string
	lastOpts     GenerateOptions
	streamEvents []StreamPart
}

func (f *fakeInner) ProviderID() string             { return "fake" }
func (f *fakeInner) ModelID() string                { return "fake-model" }
func (f *fakeInner) SupportsTools() bool            { return false }
func (f *fakeInner) SupportsStructuredOutput() bool { return false }
func (f *fakeInner) SupportsImageInput() bool       { return false }

func (f *fakeInner) DoGenerate(ctx context.Context, opts GenerateOptions) (*GenerateResult, error) {
	f.lastOpts = opts
	return &GenerateResult{Content: []ContentPart{{Kind: ContentText, Text: f.rawText}}}, nil
}

func (f *fakeInner) DoStream(ctx context.Context, opts GenerateOptions) (*StreamResult, error) {
	f.lastOpts = opts
	ch := make(chan StreamPart, len(f.streamEvents))
	for _, e := range f.streamEvents {
		ch <- e
	}
	close(ch)
	return &StreamResult{Stream: ch}, nil
}

func TestShimModelDoGenerateParsesToolCallFromRawText(t *testing.T) {
	formatted := ShimFormat([]shimToolCall{NewToolCall("ide.hover", map[string]any{"x": 1})})
	inner := &fakeInner{rawText: formatted}
	m := WrapShim(inner)

	result, err := m.DoGenerate(context.Background(), GenerateOptions{
		Tools: []ToolDefinition{{Name: "ide.hover"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, ContentToolCall, result.Content[0].Kind)
	assert.Equal(t, "ide.hover", result.Content[0].ToolName)
	assert.Equal(t, FinishToolCalls, result.FinishReason)
}

func TestShimModelDoGenerateInjectsSystemPromptAndStripsTools(t *testing.T) {
	inner := &fakeInner{rawText: `{"content":"hi"}`}
	m := WrapShim(inner)

	_, err := m.DoGenerate(context.Background(), GenerateOptions{
		Messages: []Message{{Role: "user", Content: "hello"}},
		Tools:    []ToolDefinition{{Name: "ide.hover"}},
	})
	require.NoError(t, err)

	assert.Nil(t, inner.lastOpts.Tools)
	require.Len(t, inner.lastOpts.Messages, 2)
	assert.Equal(t, "system", inner.lastOpts.Messages[0].Role)
	assert.Equal(t, "user", inner.lastOpts.Messages[1].Role)
	assert.Equal(t, true, inner.lastOpts.Options[JSONModeOptionKey])
}

func TestShimModelDoGeneratePassesThroughWhenNoToolsRequested(t *testing.T) {
	inner := &fakeInner{rawText: "plain text, not JSON at all"}
	m := WrapShim(inner)

	result, err := m.DoGenerate(context.Background(), GenerateOptions{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "plain text, not JSON at all", result.Content[0].Text)
}

func TestShimModelDoGenerateFallsBackToRawTextOnParseFailure(t *testing.T) {
	inner := &fakeInner{rawText: "not json at all"}
	m := WrapShim(inner)

	result, err := m.DoGenerate(context.Background(), GenerateOptions{
		Tools: []ToolDefinition{{Name: "ide.hover"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, ContentText, result.Content[0].Kind)
	assert.Equal(t, "not json at all", result.Content[0].Text)
	require.Len(t, result.Warnings, 1)
}

func TestShimModelDoStreamBuffersThenParsesOnceAtFinish(t *testing.T) {
	formatted := ShimFormat([]shimToolCall{NewToolCall("ide.hover", nil)})
	inner := &fakeInner{streamEvents: []StreamPart{
		{Kind: StreamTextDelta, Delta: formatted[:len(formatted)/2]},
		{Kind: StreamTextDelta, Delta: formatted[len(formatted)/2:]},
		{Kind: StreamFinish, FinishReason: FinishStop},
	}}
	m := WrapShim(inner)

	result, err := m.DoStream(context.Background(), GenerateOptions{
		Tools: []ToolDefinition{{Name: "ide.hover"}},
	})
	require.NoError(t, err)

	var parts []StreamPart
	for p := range result.Stream {
		parts = append(parts, p)
	}
	require.NotEmpty(t, parts)

	var sawToolCall, sawTextDelta bool
	for _, p := range parts {
		switch p.Kind {
		case StreamToolCall:
			sawToolCall = true
			assert.Equal(t, "ide.hover", p.ToolName)
		case StreamTextDelta:
			sawTextDelta = true
		}
	}
	assert.True(t, sawToolCall)
	assert.False(t, sawTextDelta, "no text deltas should be forwarded mid-stream for a tool-call response")
	require.NotEmpty(t, parts)
	assert.Equal(t, StreamStart, parts[0].Kind, "a shimmed stream must open with stream-start like every other driver")
	assert.Equal(t, StreamFinish, parts[len(parts)-1].Kind)
}
