// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import (
	"context"
	"strings"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

// JSONModeOptionKey is the GenerateOptions.Options flag a driver checks to
// decide whether to request a JSON-only response, set by the shim so the
// backend's own JSON-mode (when it has one) additionally constrains output.
const JSONModeOptionKey = "jsonMode"

// shimModel wraps a backend with no native tool support so it can still
// participate in tool loops, per the prompt-engineered tool-calling shim.
// It never calls inner.DoGenerate/DoStream with opts.Tools populated —
// tools are described in an injected system message instead, and the raw
// response text is parsed back into tool-call/text parts.
type shimModel struct {
	inner llmtypes.LanguageModel
}

// WrapShim wraps inner so it can participate in tool loops via the
// prompt-engineered shim. The wrapper is cheap and call-scoped: each
// DoGenerate/DoStream call passes requests through unmodified when the
// caller didn't request tool use, so wrapping a model that happens not to
// need the shim on a given call costs nothing.
func WrapShim(inner llmtypes.LanguageModel) llmtypes.LanguageModel {
	return &shimModel{inner: inner}
}

func (m *shimModel) ProviderID() string             { return m.inner.ProviderID() }
func (m *shimModel) ModelID() string                { return m.inner.ModelID() }
func (m *shimModel) SupportsTools() bool            { return true } // the shim supplies tool support
func (m *shimModel) SupportsStructuredOutput() bool { return m.inner.SupportsStructuredOutput() }
func (m *shimModel) SupportsImageInput() bool       { return m.inner.SupportsImageInput() }

// shimOptions rewrites opts: tool definitions move into an injected system
// message, and the backend is asked for JSON-only output.
func shimOptions(opts GenerateOptions) GenerateOptions {
	if len(opts.Tools) == 0 {
		return opts
	}
	out := opts
	out.Messages = make([]Message, 0, len(opts.Messages)+1)
	out.Messages = append(out.Messages, Message{Role: "system", Content: ShimSystemPrompt(opts.Tools, opts.ToolChoice)})
	out.Messages = append(out.Messages, opts.Messages...)
	out.Tools = nil
	out.ToolChoice = ""
	if out.Options == nil {
		out.Options = map[string]any{}
	} else {
		cloned := make(map[string]any, len(out.Options)+1)
		for k, v := range out.Options {
			cloned[k] = v
		}
		out.Options = cloned
	}
	out.Options[JSONModeOptionKey] = true
	return out
}

func (m *shimModel) DoGenerate(ctx context.Context, opts GenerateOptions) (*GenerateResult, error) {
	result, err := m.inner.DoGenerate(ctx, shimOptions(opts))
	if err != nil {
		return nil, err
	}
	if len(opts.Tools) == 0 {
		return result, nil
	}

	raw := rawText(result.Content)
	parts, err := ShimParse(raw)
	if err != nil {
		return &GenerateResult{
			Content:      []ContentPart{{Kind: ContentText, Text: raw}},
			FinishReason: FinishStop,
			Usage:        result.Usage,
			Request:      result.Request,
			Response:     result.Response,
			Warnings:     append(result.Warnings, Warning{Kind: "shim-parse-failed", Message: err.Error()}),
		}, nil
	}

	finish := FinishStop
	for _, p := range parts {
		if p.Kind == ContentToolCall {
			finish = FinishToolCalls
			break
		}
	}
	return &GenerateResult{
		Content:      parts,
		FinishReason: finish,
		Usage:        result.Usage,
		Request:      result.Request,
		Response:     result.Response,
		Warnings:     result.Warnings,
	}, nil
}

// DoStream implements the streaming-accumulate-then-parse-once rule: text
// deltas are buffered (never forwarded) and parsed exactly once, at
// stream-finish, into tool-call or text parts. A StreamStart always opens
// the synthesized sequence, matching every other driver's DoStream and the
// documented stream-start/tool-call/finish shape of a shimmed tool-call
// response.
func (m *shimModel) DoStream(ctx context.Context, opts GenerateOptions) (*StreamResult, error) {
	inner, err := m.inner.DoStream(ctx, shimOptions(opts))
	if err != nil {
		return nil, err
	}
	if len(opts.Tools) == 0 {
		return inner, nil
	}

	out := make(chan StreamPart)
	go func() {
		defer close(out)
		out <- StreamPart{Kind: StreamStart}

		var buf strings.Builder
		var finishUsage Usage
		for part := range inner.Stream {
			switch part.Kind {
			case StreamTextDelta:
				buf.WriteString(part.Delta)
			case StreamFinish:
				finishUsage = part.Usage
			case StreamError:
				out <- part
				return
			default:
				// stream-start/text-start/text-end/raw: swallowed, the shim
				// only ever emits a single synthesized result below.
			}
		}

		parts, parseErr := ShimParse(buf.String())
		if parseErr != nil {
			out <- StreamPart{Kind: StreamTextStart, TextID: "shim"}
			out <- StreamPart{Kind: StreamTextDelta, TextID: "shim", Delta: buf.String()}
			out <- StreamPart{Kind: StreamTextEnd, TextID: "shim"}
			out <- StreamPart{Kind: StreamFinish, FinishReason: FinishStop, Usage: finishUsage}
			return
		}

		finish := FinishStop
		for _, p := range parts {
			switch p.Kind {
			case ContentToolCall:
				finish = FinishToolCalls
				out <- StreamPart{Kind: StreamToolCall, ToolCallID: p.ToolCallID, ToolName: p.ToolName, Input: p.Input}
			case ContentText:
				out <- StreamPart{Kind: StreamTextStart, TextID: "shim"}
				out <- StreamPart{Kind: StreamTextDelta, TextID: "shim", Delta: p.Text}
				out <- StreamPart{Kind: StreamTextEnd, TextID: "shim"}
			}
		}
		out <- StreamPart{Kind: StreamFinish, FinishReason: finish, Usage: finishUsage}
	}()

	return &StreamResult{Stream: out, Request: inner.Request, Response: inner.Response}, nil
}

func rawText(parts []ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Kind == ContentText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
