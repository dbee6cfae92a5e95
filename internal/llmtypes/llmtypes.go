// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package llmtypes is the shared request/response vocabulary every backend
// driver speaks. It is split out from package provider so that
// internal/provider/drivers/* can implement LanguageModel without importing
// the dispatcher package that in turn imports them.
package llmtypes

import "context"

// ContentKind tags one element of a generation result's content sequence.
type ContentKind string

const (
	ContentText      ContentKind = "text"
	ContentToolCall  ContentKind = "tool-call"
	ContentReasoning ContentKind = "reasoning"
)

// ContentPart is one element of DoGenerate's content[] result.
type ContentPart struct {
	Kind ContentKind

	Text string // ContentText, ContentReasoning

	// ContentToolCall fields.
	ToolCallID string
	ToolName   string
	Input      string // raw JSON arguments
}

// FinishReason is why generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishError         FinishReason = "error"
	FinishUnknown       FinishReason = "unknown"
)

// Usage carries optional token accounting; a nil pointer field means
// "not reported by this backend".
type Usage struct {
	InputTokens  *int
	OutputTokens *int
	TotalTokens  *int
}

// Warning is a non-fatal note attached to a generation result (e.g. "this
// backend does not support structured output, falling back").
type Warning struct {
	Kind    string
	Message string
}

// GenerateResult is DoGenerate's return value.
type GenerateResult struct {
	Content      []ContentPart
	FinishReason FinishReason
	Usage        Usage
	Request      any
	Response     any
	Warnings     []Warning
}

// StreamPartKind tags one element of a DoStream StreamPart union.
// Consumers should default to ignoring unknown tags for forward
// compatibility.
type StreamPartKind string

const (
	StreamStart     StreamPartKind = "stream-start"
	StreamTextStart StreamPartKind = "text-start"
	StreamTextDelta StreamPartKind = "text-delta"
	StreamTextEnd   StreamPartKind = "text-end"
	StreamToolCall  StreamPartKind = "tool-call"
	StreamFinish    StreamPartKind = "finish"
	StreamError     StreamPartKind = "error"
	StreamRaw       StreamPartKind = "raw"
)

// StreamPart is one element of the incremental output stream produced by
// a language-model call.
type StreamPart struct {
	Kind StreamPartKind

	TextID string // StreamTextStart/Delta/End correlation id
	Delta  string // StreamTextDelta

	ToolCallID string // StreamToolCall
	ToolName   string
	Input      string

	FinishReason FinishReason // StreamFinish
	Usage        Usage        // StreamFinish

	Err error // StreamError

	Raw any // StreamRaw, backend-specific passthrough
}

// StreamResult is DoStream's return value.
type StreamResult struct {
	Stream   <-chan StreamPart
	Request  any
	Response any
}

// Message is one turn of the prompt passed to a language model. Content
// shape is deliberately minimal; richer multi-part messages are an
// external collaborator's concern (the chat orchestrator).
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string
}

// ToolDefinition describes one callable tool available to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// GenerateOptions is the per-request input to DoGenerate/DoStream.
type GenerateOptions struct {
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice string // "auto" | "none" | "required" | a specific tool name

	Headers map[string]string
	Options map[string]any

	// TimeoutMS composes with Context's own deadline/cancellation via
	// an any-of-signals merge (see WithTimeout in package provider).
	TimeoutMS int
}

// LanguageModel is the uniform streaming interface every backend driver
// implements.
type LanguageModel interface {
	ProviderID() string
	ModelID() string

	SupportsTools() bool
	SupportsStructuredOutput() bool
	SupportsImageInput() bool

	DoGenerate(ctx context.Context, opts GenerateOptions) (*GenerateResult, error)
	DoStream(ctx context.Context, opts GenerateOptions) (*StreamResult, error)
}
