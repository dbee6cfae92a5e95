// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package bedrock implements llmtypes.LanguageModel against AWS Bedrock's
// Converse API, which exposes a single wire format across every model
// family Bedrock hosts (Anthropic, Amazon's own Titan/Nova, and more).
package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

// Config is the construction-time input for a Driver.
type Config struct {
	ProviderID string
	ModelID    string

	// Region, when empty, falls through to the AWS SDK's standard
	// credential-chain region resolution (env, shared config, IMDS).
	Region string
}

// Driver implements llmtypes.LanguageModel against a bedrockruntime.Client.
type Driver struct {
	client     *bedrockruntime.Client
	providerID string
	modelID    string
}

// New constructs a Driver from cfg, resolving AWS credentials through the
// standard SDK chain.
func New(cfg Config) (*Driver, error) {
	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}
	return &Driver{
		client:     bedrockruntime.NewFromConfig(awsCfg),
		providerID: cfg.ProviderID,
		modelID:    cfg.ModelID,
	}, nil
}

func (d *Driver) ProviderID() string             { return d.providerID }
func (d *Driver) ModelID() string                { return d.modelID }
func (d *Driver) SupportsTools() bool            { return true }
func (d *Driver) SupportsStructuredOutput() bool { return false }
func (d *Driver) SupportsImageInput() bool       { return true }

func (d *Driver) buildInput(opts llmtypes.GenerateOptions) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: &d.modelID,
	}

	for _, msg := range opts.Messages {
		block := types.ContentBlockMemberText{Value: msg.Content}
		switch msg.Role {
		case "system":
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case "assistant":
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&block},
			})
		default:
			input.Messages = append(input.Messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&block},
			})
		}
	}

	if len(opts.Tools) > 0 {
		toolConfig := &types.ToolConfiguration{}
		for _, t := range opts.Tools {
			toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{
				Value: types.ToolSpecification{
					Name:        &t.Name,
					Description: &t.Description,
					InputSchema: &types.ToolInputSchemaMemberJson{Value: toDocument(t.Parameters)},
				},
			})
		}
		switch opts.ToolChoice {
		case "required":
			toolConfig.ToolChoice = &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}
		case "", "auto":
			toolConfig.ToolChoice = &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}
		default:
			toolConfig.ToolChoice = &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: &opts.ToolChoice},
			}
		}
		input.ToolConfig = toolConfig
	}

	return input
}

// toDocument adapts a JSON-Schema-shaped map into the smithy document
// Bedrock's tool-spec input schema expects.
func toDocument(parameters map[string]any) document.Interface {
	return document.NewLazyDocument(parameters)
}

// DoGenerate implements llmtypes.LanguageModel via a single blocking
// Converse call.
func (d *Driver) DoGenerate(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.GenerateResult, error) {
	input := d.buildInput(opts)
	resp, err := d.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse: %w", err)
	}
	return convertOutput(resp), nil
}

func convertOutput(resp *bedrockruntime.ConverseOutput) *llmtypes.GenerateResult {
	var content []llmtypes.ContentPart
	if msgOutput, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			switch variant := block.(type) {
			case *types.ContentBlockMemberText:
				content = append(content, llmtypes.ContentPart{Kind: llmtypes.ContentText, Text: variant.Value})
			case *types.ContentBlockMemberToolUse:
				var input []byte
				if variant.Value.Input != nil {
					input, _ = variant.Value.Input.MarshalSmithyDocument()
				}
				content = append(content, llmtypes.ContentPart{
					Kind:       llmtypes.ContentToolCall,
					ToolCallID: derefStr(variant.Value.ToolUseId),
					ToolName:   derefStr(variant.Value.Name),
					Input:      string(input),
				})
			}
		}
	}

	var in, out int
	if resp.Usage != nil {
		in = int(derefI32(resp.Usage.InputTokens))
		out = int(derefI32(resp.Usage.OutputTokens))
	}
	return &llmtypes.GenerateResult{
		Content:      content,
		FinishReason: convertStopReason(resp.StopReason),
		Usage:        llmtypes.Usage{InputTokens: &in, OutputTokens: &out},
		Response:     resp,
	}
}

func convertStopReason(reason types.StopReason) llmtypes.FinishReason {
	switch reason {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return llmtypes.FinishStop
	case types.StopReasonToolUse:
		return llmtypes.FinishToolCalls
	case types.StopReasonMaxTokens:
		return llmtypes.FinishLength
	case types.StopReasonContentFiltered:
		return llmtypes.FinishContentFilter
	default:
		return llmtypes.FinishUnknown
	}
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefI32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

// DoStream implements llmtypes.LanguageModel via ConverseStream, the
// Bedrock analogue of Converse that emits incremental content-block
// events over an event-stream reader.
func (d *Driver) DoStream(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.StreamResult, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:    d.buildInput(opts).ModelId,
		Messages:   d.buildInput(opts).Messages,
		System:     d.buildInput(opts).System,
		ToolConfig: d.buildInput(opts).ToolConfig,
	}
	resp, err := d.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse stream: %w", err)
	}

	out := make(chan llmtypes.StreamPart)
	go func() {
		defer close(out)
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamStart}

		stream := resp.GetStream()
		defer stream.Close()

		var finish llmtypes.FinishReason = llmtypes.FinishStop
		var usage llmtypes.Usage
		toolName := map[int32]string{}
		toolID := map[int32]string{}
		toolInput := map[int32]string{}

		for event := range stream.Events() {
			switch variant := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if start, ok := variant.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					toolName[variant.Value.ContentBlockIndex] = derefStr(start.Value.Name)
					toolID[variant.Value.ContentBlockIndex] = derefStr(start.Value.ToolUseId)
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := variant.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					id := fmt.Sprintf("block-%d", variant.Value.ContentBlockIndex)
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextDelta, TextID: id, Delta: delta.Value}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						toolInput[variant.Value.ContentBlockIndex] += *delta.Value.Input
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if name, ok := toolName[variant.Value.ContentBlockIndex]; ok {
					out <- llmtypes.StreamPart{
						Kind:       llmtypes.StreamToolCall,
						ToolCallID: toolID[variant.Value.ContentBlockIndex],
						ToolName:   name,
						Input:      toolInput[variant.Value.ContentBlockIndex],
					}
					finish = llmtypes.FinishToolCalls
				}
			case *types.ConverseStreamOutputMemberMetadata:
				if variant.Value.Usage != nil {
					in := int(derefI32(variant.Value.Usage.InputTokens))
					o := int(derefI32(variant.Value.Usage.OutputTokens))
					usage = llmtypes.Usage{InputTokens: &in, OutputTokens: &o}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
			return
		}
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamFinish, FinishReason: finish, Usage: usage}
	}()

	return &llmtypes.StreamResult{Stream: out}, nil
}
