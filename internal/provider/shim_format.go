// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package provider

import "encoding/json"

// ShimFormat renders the canonical tool_calls envelope for a set of
// (name, arguments) pairs. It exists primarily to exercise the
// format → parse round-trip: a stub backend that "echoes" this text
// back verbatim must parse to a matching ContentToolCall part.
func ShimFormat(calls []shimToolCall) string {
	env := shimEnvelope{Opencode: &shimPayload{ToolCalls: calls}}
	b, _ := json.Marshal(env)
	return string(b)
}

// NewToolCall is a small constructor so callers outside this package
// don't need the unexported shimToolCall type spelled out by hand.
func NewToolCall(name string, arguments map[string]any) shimToolCall {
	return shimToolCall{Name: name, Arguments: arguments}
}
