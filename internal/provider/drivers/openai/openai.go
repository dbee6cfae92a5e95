// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package openai implements llmtypes.LanguageModel against the OpenAI
// Chat Completions API, and doubles as the openai-compatible catch-all
// driver for any custom provider that speaks the same wire format behind
// a different base URL (vLLM, LM Studio, OpenRouter, and similar).
package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

// Config is the construction-time input for a Driver.
type Config struct {
	APIKey     string
	ProviderID string
	ModelID    string
	BaseURL    string

	// Compat marks this instance as an openai-compatible custom backend
	// rather than api.openai.com itself; it only affects capability
	// reporting (structured output is not assumed for unknown backends).
	Compat bool
}

// Driver implements llmtypes.LanguageModel against a sdk.Client.
type Driver struct {
	client     sdk.Client
	providerID string
	modelID    string
	compat     bool
}

// New constructs a Driver from cfg.
func New(cfg Config) (*Driver, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Driver{
		client:     sdk.NewClient(opts...),
		providerID: cfg.ProviderID,
		modelID:    cfg.ModelID,
		compat:     cfg.Compat,
	}, nil
}

func (d *Driver) ProviderID() string             { return d.providerID }
func (d *Driver) ModelID() string                { return d.modelID }
func (d *Driver) SupportsTools() bool            { return true }
func (d *Driver) SupportsStructuredOutput() bool { return !d.compat }
func (d *Driver) SupportsImageInput() bool       { return !d.compat }

func (d *Driver) buildParams(opts llmtypes.GenerateOptions) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(d.modelID),
	}

	for _, msg := range opts.Messages {
		switch msg.Role {
		case "system":
			params.Messages = append(params.Messages, sdk.SystemMessage(msg.Content))
		case "assistant":
			params.Messages = append(params.Messages, sdk.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, sdk.UserMessage(msg.Content))
		}
	}

	if jsonMode, _ := opts.Options["jsonMode"].(bool); jsonMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	for _, t := range opts.Tools {
		params.Tools = append(params.Tools, sdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	switch opts.ToolChoice {
	case "required":
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("required")}
	case "none":
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("none")}
	case "", "auto":
	default:
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &sdk.ChatCompletionNamedToolChoiceParam{
				Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{Name: opts.ToolChoice},
			},
		}
	}

	if body, ok := opts.Options["extraBody"].(map[string]any); ok {
		for k, v := range body {
			params.SetExtraFields(map[string]any{k: v})
		}
	}

	return params
}

// DoGenerate implements llmtypes.LanguageModel.
func (d *Driver) DoGenerate(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.GenerateResult, error) {
	params := d.buildParams(opts)
	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: generate: %w", err)
	}
	return convertCompletion(resp), nil
}

func convertCompletion(resp *sdk.ChatCompletion) *llmtypes.GenerateResult {
	var content []llmtypes.ContentPart
	var choice sdk.ChatCompletionChoice
	if len(resp.Choices) > 0 {
		choice = resp.Choices[0]
	}
	if choice.Message.Content != "" {
		content = append(content, llmtypes.ContentPart{Kind: llmtypes.ContentText, Text: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		content = append(content, llmtypes.ContentPart{
			Kind:       llmtypes.ContentToolCall,
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			Input:      call.Function.Arguments,
		})
	}

	in := int(resp.Usage.PromptTokens)
	out := int(resp.Usage.CompletionTokens)
	total := int(resp.Usage.TotalTokens)
	return &llmtypes.GenerateResult{
		Content:      content,
		FinishReason: convertFinishReason(string(choice.FinishReason)),
		Usage:        llmtypes.Usage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total},
		Response:     resp,
	}
}

func convertFinishReason(reason string) llmtypes.FinishReason {
	switch reason {
	case "stop":
		return llmtypes.FinishStop
	case "tool_calls":
		return llmtypes.FinishToolCalls
	case "length":
		return llmtypes.FinishLength
	case "content_filter":
		return llmtypes.FinishContentFilter
	default:
		return llmtypes.FinishUnknown
	}
}

// DoStream implements llmtypes.LanguageModel using the SDK's chunk
// accumulator to assemble tool-call argument fragments before emitting a
// single StreamToolCall per completed call.
func (d *Driver) DoStream(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.StreamResult, error) {
	params := d.buildParams(opts)
	stream := d.client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan llmtypes.StreamPart)
	go func() {
		defer close(out)
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamStart}

		var acc sdk.ChatCompletionAccumulator
		textStarted := false
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					if !textStarted {
						out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextStart, TextID: "0"}
						textStarted = true
					}
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextDelta, TextID: "0", Delta: delta}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
			return
		}
		if textStarted {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextEnd, TextID: "0"}
		}

		result := convertCompletion(&acc.ChatCompletion)
		for _, p := range result.Content {
			if p.Kind == llmtypes.ContentToolCall {
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamToolCall, ToolCallID: p.ToolCallID, ToolName: p.ToolName, Input: p.Input}
			}
		}
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamFinish, FinishReason: result.FinishReason, Usage: result.Usage}
	}()

	return &llmtypes.StreamResult{Stream: out}, nil
}
