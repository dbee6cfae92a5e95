// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package anthropic implements llmtypes.LanguageModel against Anthropic's
// Messages API via the official SDK client.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

// Config is the construction-time input for a Driver.
type Config struct {
	APIKey     string
	ProviderID string
	ModelID    string

	// BaseURLOpt overrides the default Anthropic endpoint, used for
	// Anthropic-compatible gateways declared as custom providers.
	BaseURLOpt string
}

// Driver implements llmtypes.LanguageModel against a sdk.Client.
type Driver struct {
	client     sdk.Client
	providerID string
	modelID    string
}

// New constructs a Driver from cfg.
func New(cfg Config) (*Driver, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURLOpt != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURLOpt))
	}
	return &Driver{
		client:     sdk.NewClient(opts...),
		providerID: cfg.ProviderID,
		modelID:    cfg.ModelID,
	}, nil
}

func (d *Driver) ProviderID() string             { return d.providerID }
func (d *Driver) ModelID() string                { return d.modelID }
func (d *Driver) SupportsTools() bool            { return true }
func (d *Driver) SupportsStructuredOutput() bool { return false }
func (d *Driver) SupportsImageInput() bool       { return true }

func (d *Driver) buildParams(opts llmtypes.GenerateOptions) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(d.modelID),
		MaxTokens: maxTokens(opts),
	}

	for _, msg := range opts.Messages {
		switch msg.Role {
		case "system":
			params.System = append(params.System, sdk.TextBlockParam{Text: msg.Content})
		case "assistant":
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}

	if jsonMode, _ := opts.Options["jsonMode"].(bool); jsonMode {
		params.System = append(params.System, sdk.TextBlockParam{
			Text: "Respond with a single JSON value and nothing else.",
		})
	}

	for _, t := range opts.Tools {
		params.Tools = append(params.Tools, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: toInputSchema(t.Parameters),
			},
		})
	}
	switch opts.ToolChoice {
	case "required":
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case "none":
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfNone: &sdk.ToolChoiceNoneParam{}}
	case "", "auto":
	default:
		params.ToolChoice = sdk.ToolChoiceUnionParam{
			OfTool: &sdk.ToolChoiceToolParam{Name: opts.ToolChoice},
		}
	}

	return params
}

func toInputSchema(parameters map[string]any) sdk.ToolInputSchemaParam {
	schema := sdk.ToolInputSchemaParam{Type: "object"}
	if props, ok := parameters["properties"]; ok {
		schema.Properties = props
	}
	if required, ok := parameters["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func maxTokens(opts llmtypes.GenerateOptions) int64 {
	if v, ok := opts.Options["maxTokens"].(int); ok && v > 0 {
		return int64(v)
	}
	return 4096
}

// DoGenerate implements llmtypes.LanguageModel.
func (d *Driver) DoGenerate(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.GenerateResult, error) {
	params := d.buildParams(opts)
	msg, err := d.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: generate: %w", err)
	}
	return convertMessage(msg), nil
}

func convertMessage(msg *sdk.Message) *llmtypes.GenerateResult {
	var content []llmtypes.ContentPart
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			content = append(content, llmtypes.ContentPart{Kind: llmtypes.ContentText, Text: variant.Text})
		case sdk.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			content = append(content, llmtypes.ContentPart{
				Kind:       llmtypes.ContentToolCall,
				ToolCallID: variant.ID,
				ToolName:   variant.Name,
				Input:      string(input),
			})
		case sdk.ThinkingBlock:
			content = append(content, llmtypes.ContentPart{Kind: llmtypes.ContentReasoning, Text: variant.Thinking})
		}
	}

	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return &llmtypes.GenerateResult{
		Content:      content,
		FinishReason: convertStopReason(msg.StopReason),
		Usage:        llmtypes.Usage{InputTokens: &in, OutputTokens: &out},
		Request:      nil,
		Response:     msg,
	}
}

func convertStopReason(reason sdk.StopReason) llmtypes.FinishReason {
	switch reason {
	case sdk.StopReasonEndTurn, sdk.StopReasonStopSequence:
		return llmtypes.FinishStop
	case sdk.StopReasonToolUse:
		return llmtypes.FinishToolCalls
	case sdk.StopReasonMaxTokens:
		return llmtypes.FinishLength
	default:
		return llmtypes.FinishUnknown
	}
}

// DoStream implements llmtypes.LanguageModel, translating SDK stream
// events into the uniform StreamPart union as they arrive.
func (d *Driver) DoStream(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.StreamResult, error) {
	params := d.buildParams(opts)
	sdkStream := d.client.Messages.NewStreaming(ctx, params)

	out := make(chan llmtypes.StreamPart)
	go func() {
		defer close(out)
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamStart}

		acc := sdk.Message{}
		for sdkStream.Next() {
			event := sdkStream.Current()
			if err := acc.Accumulate(event); err != nil {
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
				return
			}

			switch variant := event.AsAny().(type) {
			case sdk.ContentBlockStartEvent:
				if _, ok := variant.ContentBlock.AsAny().(sdk.TextBlock); ok {
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextStart, TextID: blockID(variant.Index)}
				}
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := variant.Delta.AsAny().(sdk.TextDelta); ok {
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextDelta, TextID: blockID(variant.Index), Delta: delta.Text}
				}
			case sdk.ContentBlockStopEvent:
				if _, ok := acc.Content[variant.Index].AsAny().(sdk.TextBlock); ok {
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextEnd, TextID: blockID(variant.Index)}
				}
			}
		}
		if err := sdkStream.Err(); err != nil {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
			return
		}

		result := convertMessage(&acc)
		for _, p := range result.Content {
			if p.Kind == llmtypes.ContentToolCall {
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamToolCall, ToolCallID: p.ToolCallID, ToolName: p.ToolName, Input: p.Input}
			}
		}
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamFinish, FinishReason: result.FinishReason, Usage: result.Usage}
	}()

	return &llmtypes.StreamResult{Stream: out}, nil
}

func blockID(index int64) string {
	return fmt.Sprintf("block-%d", index)
}
