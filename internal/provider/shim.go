// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// The prompt-engineered tool-calling shim lets a backend with no native
// tool support (e.g. Ollama) participate in tool loops: the model is
// instructed to emit exactly one JSON object naming tool calls or a
// final answer, the request asks for JSON-mode output, and the response
// is parsed back into ordinary tool-call/text parts.
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ShimSystemPrompt builds the system-message instruction text prepended
// to the conversation when prompt-mode tool calling is active.
func ShimSystemPrompt(tools []ToolDefinition, toolChoice string) string {
	var b strings.Builder
	b.WriteString("You must respond with exactly one JSON object of one of these two shapes:\n")
	b.WriteString(`{"opencode":{"tool_calls":[{"name":"<tool>","arguments":{...}}, ...]}}` + "\n")
	b.WriteString(`{"opencode":{"final":"<text>"}}` + "\n")
	b.WriteString("Do not emit any other text outside this JSON object.\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		params, _ := json.Marshal(t.Parameters)
		fmt.Fprintf(&b, "- %s: %s params=%s\n", t.Name, t.Description, string(params))
	}
	fmt.Fprintf(&b, "\ntool_choice: %s\n", toolChoice)
	return b.String()
}

// shimToolCall is one entry of the opencode.tool_calls array.
type shimToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type shimEnvelope struct {
	Opencode *shimPayload `json:"opencode,omitempty"`
	// Top-level fallbacks, tolerated per the lenient-extraction design note.
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

type shimPayload struct {
	ToolCalls     []shimToolCall `json:"tool_calls,omitempty"`
	ToolCallsAlt  []shimToolCall `json:"toolCalls,omitempty"`
	ToolCallsAlt2 []shimToolCall `json:"toolcalls,omitempty"`
	Final         string         `json:"final,omitempty"`
}

// ExtractBalancedJSON returns the first outermost balanced {...}
// substring of s, or "" if none is found. Per the design notes, multiple
// top-level JSON objects are not disambiguated; the first is used.
func ExtractBalancedJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "" // unbalanced — no closing brace found
}

// ShimParse parses a backend's raw response text for the shim's two
// tolerated shapes, synthesizing a fresh UUID per tool call and falling
// back to content/text for the final-text shape.
func ShimParse(raw string) ([]ContentPart, error) {
	blob := ExtractBalancedJSON(raw)
	if blob == "" {
		return nil, fmt.Errorf("shim: no balanced JSON object found in response")
	}

	var env shimEnvelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return nil, fmt.Errorf("shim: parse JSON: %w", err)
	}

	if env.Opencode != nil {
		calls := env.Opencode.ToolCalls
		if len(calls) == 0 {
			calls = env.Opencode.ToolCallsAlt
		}
		if len(calls) == 0 {
			calls = env.Opencode.ToolCallsAlt2
		}
		if len(calls) > 0 {
			parts := make([]ContentPart, 0, len(calls))
			for _, c := range calls {
				args, _ := json.Marshal(c.Arguments)
				id := uuid.NewString()
				parts = append(parts, ContentPart{
					Kind:       ContentToolCall,
					ToolCallID: id,
					ToolName:   c.Name,
					Input:      string(args),
				})
			}
			return parts, nil
		}
		if env.Opencode.Final != "" {
			return []ContentPart{{Kind: ContentText, Text: env.Opencode.Final}}, nil
		}
	}

	if env.Content != "" {
		return []ContentPart{{Kind: ContentText, Text: env.Content}}, nil
	}
	if env.Text != "" {
		return []ContentPart{{Kind: ContentText, Text: env.Text}}, nil
	}
	return nil, fmt.Errorf("shim: JSON object matched none of the tolerated shapes")
}
