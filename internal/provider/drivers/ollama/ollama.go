// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package ollama implements llmtypes.LanguageModel against a local Ollama
// daemon's bespoke /api/chat protocol directly over net/http: no SDK in
// the ecosystem wraps this wire format, unlike the other backends.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/acme/codeassist-core/internal/llmtypes"
)

// Config is the construction-time input for a Driver.
type Config struct {
	ProviderID string
	ModelID    string
	BaseURL    string
}

// Driver implements llmtypes.LanguageModel against an Ollama daemon.
type Driver struct {
	httpClient *http.Client
	baseURL    string
	providerID string
	modelID    string
}

// New constructs a Driver from cfg.
func New(cfg Config) (*Driver, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama: base URL is required")
	}
	return &Driver{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    cfg.BaseURL,
		providerID: cfg.ProviderID,
		modelID:    cfg.ModelID,
	}, nil
}

func (d *Driver) ProviderID() string             { return d.providerID }
func (d *Driver) ModelID() string                { return d.modelID }
func (d *Driver) SupportsTools() bool            { return true }
func (d *Driver) SupportsStructuredOutput() bool { return true }
func (d *Driver) SupportsImageInput() bool       { return false }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatToolFunc `json:"function"`
}

type chatToolFunc struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string      `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool        `json:"stream"`
	Format   string      `json:"format,omitempty"`
	Tools    []chatTool  `json:"tools,omitempty"`
}

type chatResponse struct {
	Message struct {
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		ToolCalls []chatToolCall `json:"tool_calls"`
	} `json:"message"`
	Done           bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

func (d *Driver) buildRequest(opts llmtypes.GenerateOptions, stream bool) chatRequest {
	req := chatRequest{Model: d.modelID, Stream: stream}
	for _, msg := range opts.Messages {
		req.Messages = append(req.Messages, chatMessage{Role: msg.Role, Content: msg.Content})
	}
	if jsonMode, _ := opts.Options["jsonMode"].(bool); jsonMode {
		req.Format = "json"
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, chatTool{
			Type: "function",
			Function: chatToolFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func (d *Driver) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("ollama: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	return resp, nil
}

// DoGenerate implements llmtypes.LanguageModel via a single non-streaming
// POST /api/chat call.
func (d *Driver) DoGenerate(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.GenerateResult, error) {
	resp, err := d.post(ctx, d.buildRequest(opts, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama: decoding response: %w", err)
	}
	return convertChatResponse(body), nil
}

func convertChatResponse(body chatResponse) *llmtypes.GenerateResult {
	var content []llmtypes.ContentPart
	if body.Message.Content != "" {
		content = append(content, llmtypes.ContentPart{Kind: llmtypes.ContentText, Text: body.Message.Content})
	}
	finish := llmtypes.FinishStop
	for i, call := range body.Message.ToolCalls {
		input, _ := json.Marshal(call.Function.Arguments)
		content = append(content, llmtypes.ContentPart{
			Kind:       llmtypes.ContentToolCall,
			ToolCallID: fmt.Sprintf("call-%d", i),
			ToolName:   call.Function.Name,
			Input:      string(input),
		})
		finish = llmtypes.FinishToolCalls
	}
	in, out := body.PromptEvalCount, body.EvalCount
	return &llmtypes.GenerateResult{
		Content:      content,
		FinishReason: finish,
		Usage:        llmtypes.Usage{InputTokens: &in, OutputTokens: &out},
		Response:     body,
	}
}

// DoStream implements llmtypes.LanguageModel against Ollama's newline-
// delimited JSON streaming format: each line is a complete chatResponse
// fragment, with Done=true on the final line carrying token counts.
func (d *Driver) DoStream(ctx context.Context, opts llmtypes.GenerateOptions) (*llmtypes.StreamResult, error) {
	resp, err := d.post(ctx, d.buildRequest(opts, true))
	if err != nil {
		return nil, err
	}

	out := make(chan llmtypes.StreamPart)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamStart}

		textStarted := false
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var final chatResponse
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
				return
			}
			if chunk.Message.Content != "" {
				if !textStarted {
					out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextStart, TextID: "0"}
					textStarted = true
				}
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextDelta, TextID: "0", Delta: chunk.Message.Content}
			}
			if chunk.Done {
				final = chunk
			}
		}
		if err := scanner.Err(); err != nil {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamError, Err: err}
			return
		}
		if textStarted {
			out <- llmtypes.StreamPart{Kind: llmtypes.StreamTextEnd, TextID: "0"}
		}

		result := convertChatResponse(final)
		for _, p := range result.Content {
			if p.Kind == llmtypes.ContentToolCall {
				out <- llmtypes.StreamPart{Kind: llmtypes.StreamToolCall, ToolCallID: p.ToolCallID, ToolName: p.ToolName, Input: p.Input}
			}
		}
		out <- llmtypes.StreamPart{Kind: llmtypes.StreamFinish, FinishReason: result.FinishReason, Usage: result.Usage}
	}()

	return &llmtypes.StreamResult{Stream: out}, nil
}
