// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides a backend-neutral gateway to tool-calling chat
// models. Two wire dialects are supported: the Anthropic Messages API
// and OpenAI-compatible chat completions. Callers work entirely in the
// neutral Message/ToolCall/Response types; dialect translation is the
// backend's problem.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Message roles in the neutral conversation format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of conversation in backend-neutral form.
//
// An assistant turn that requested tools carries ToolCalls alongside
// any Content. A tool turn carries the result of exactly one call,
// identified by ToolCallID so backends that pair results by ID can
// reconstruct the exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// ToolCall is a model's request to invoke one tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ArgsMap decodes the call arguments into a generic map. A nil or
// empty argument payload decodes to an empty map, not an error.
func (tc ToolCall) ArgsMap() (map[string]any, error) {
	if len(tc.Args) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(tc.Args, &m); err != nil {
		return nil, fmt.Errorf("decoding args for tool %s: %w", tc.Name, err)
	}
	return m, nil
}

// ToolSchema describes one callable tool to the model. InputSchema is
// a JSON Schema object; both dialects accept it structurally.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Usage reports token consumption for one call, when the backend
// provides it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the normalized result of one model call. Text and
// ToolCalls may both be populated; an empty ToolCalls slice means the
// model produced a final answer.
type Response struct {
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Model      string     `json:"model"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      Usage      `json:"usage"`
}

// WantsTools reports whether the model asked for tool executions.
func (r *Response) WantsTools() bool { return len(r.ToolCalls) > 0 }

// StreamFunc receives incremental text as the model produces it. It is
// called from the transport goroutine; implementations must be fast or
// buffer internally.
type StreamFunc func(delta string)

// Client is the contract every model backend implements.
//
// Call blocks until the model finishes a turn. Stream delivers text
// deltas through fn as they arrive and still returns the complete
// normalized response; tool calls are only reported on the returned
// Response, never through fn.
type Client interface {
	Model() string
	Call(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error)
	Stream(ctx context.Context, messages []Message, tools []ToolSchema, fn StreamFunc) (*Response, error)
}

// ErrorKind classifies provider failures so callers can decide between
// surfacing, retrying, and re-authenticating.
type ErrorKind string

const (
	ErrAuth              ErrorKind = "auth"
	ErrRateLimit         ErrorKind = "rate_limit"
	ErrTransport         ErrorKind = "transport"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// ProviderError is a typed failure from a model backend.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf extracts the error kind from err, or "" when err is not a
// ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// kindForStatus maps an HTTP status to the failure taxonomy.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429:
		return ErrRateLimit
	default:
		return ErrTransport
	}
}

// splitSystem lifts system-role messages out of the turn list, since
// both dialects carry the system prompt outside the message array.
// Multiple system messages concatenate in order.
func splitSystem(messages []Message) (system string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
