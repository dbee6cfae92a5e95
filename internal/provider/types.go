// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package provider lazily constructs a concrete streaming language-model
// handle for a (providerID, modelID) pair and implements the
// prompt-engineered tool-calling shim for backends without native tool
// support.
package provider

import "github.com/acme/codeassist-core/internal/llmtypes"

// The request/response vocabulary lives in internal/llmtypes so that
// internal/provider/drivers/* can implement LanguageModel without a import
// cycle back through this package's driver dispatch (driver.go). Aliased
// here so existing call sites keep writing provider.GenerateOptions etc.
type (
	ContentKind     = llmtypes.ContentKind
	ContentPart     = llmtypes.ContentPart
	FinishReason    = llmtypes.FinishReason
	Usage           = llmtypes.Usage
	Warning         = llmtypes.Warning
	GenerateResult  = llmtypes.GenerateResult
	StreamPartKind  = llmtypes.StreamPartKind
	StreamPart      = llmtypes.StreamPart
	StreamResult    = llmtypes.StreamResult
	Message         = llmtypes.Message
	ToolDefinition  = llmtypes.ToolDefinition
	GenerateOptions = llmtypes.GenerateOptions
	LanguageModel   = llmtypes.LanguageModel
)

const (
	ContentText      = llmtypes.ContentText
	ContentToolCall  = llmtypes.ContentToolCall
	ContentReasoning = llmtypes.ContentReasoning

	FinishStop          = llmtypes.FinishStop
	FinishToolCalls     = llmtypes.FinishToolCalls
	FinishLength        = llmtypes.FinishLength
	FinishContentFilter = llmtypes.FinishContentFilter
	FinishError         = llmtypes.FinishError
	FinishUnknown       = llmtypes.FinishUnknown

	StreamStart     = llmtypes.StreamStart
	StreamTextStart = llmtypes.StreamTextStart
	StreamTextDelta = llmtypes.StreamTextDelta
	StreamTextEnd   = llmtypes.StreamTextEnd
	StreamToolCall  = llmtypes.StreamToolCall
	StreamFinish    = llmtypes.StreamFinish
	StreamError     = llmtypes.StreamError
	StreamRaw       = llmtypes.StreamRaw
)
