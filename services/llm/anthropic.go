// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"

	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultMaxTokens      = 4096
)

// --- Wire types (Anthropic Messages API) ---

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a union: exactly one of the type-specific field
// groups is populated, selected by Type.
type anthropicBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Model      string           `json:"model"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *anthropicError `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

// AnthropicClient speaks the Anthropic Messages API over raw REST.
// The API key lives in a memguard enclave and is only decrypted for
// the duration of each request.
type AnthropicClient struct {
	httpClient HTTPClient
	apiKey     *memguard.Enclave
	model      string
	maxTokens  int
}

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewAnthropicClient reads ANTHROPIC_API_KEY (falling back to the
// container secret file) and ANTHROPIC_MODEL. hc may be nil for a
// default 120s client; streaming turns can run long.
func NewAnthropicClient(hc HTTPClient) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/anthropic_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read Anthropic API Key from container secrets")
		}
	}
	if apiKey == "" {
		return nil, &ProviderError{Kind: ErrAuth, Provider: "anthropic", Message: "ANTHROPIC_API_KEY is missing"}
	}

	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = defaultAnthropicModel
		slog.Info("ANTHROPIC_MODEL not set, defaulting to", "model", model)
	}

	if hc == nil {
		hc = &http.Client{Timeout: 120 * time.Second}
	}

	return &AnthropicClient{
		httpClient: hc,
		apiKey:     memguard.NewEnclave([]byte(apiKey)),
		model:      model,
		maxTokens:  defaultMaxTokens,
	}, nil
}

func (a *AnthropicClient) Model() string { return a.model }

// Call implements Client.
func (a *AnthropicClient) Call(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	resp, err := a.send(ctx, messages, tools, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Kind: ErrTransport, Provider: "anthropic", Message: "reading response body", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, a.statusError(resp.StatusCode, bodyBytes)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic", Message: "parsing response JSON", Err: err}
	}
	if apiResp.Error != nil {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic",
			Message: fmt.Sprintf("%s: %s", apiResp.Error.Type, apiResp.Error.Message)}
	}
	if len(apiResp.Content) == 0 {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic", Message: "empty content array"}
	}

	return a.normalize(apiResp), nil
}

// Stream implements Client. Text deltas flow through fn as SSE events
// arrive; tool_use inputs accumulate across input_json_delta events and
// surface only on the returned Response.
func (a *AnthropicClient) Stream(ctx context.Context, messages []Message, tools []ToolSchema, fn StreamFunc) (*Response, error) {
	resp, err := a.send(ctx, messages, tools, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, a.statusError(resp.StatusCode, bodyBytes)
	}

	out := &Response{Model: a.model}
	var textBuf strings.Builder

	// Per-index accumulation state for tool_use blocks.
	type toolAccum struct {
		id   string
		name string
		json strings.Builder
	}
	accums := map[int]*toolAccum{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var ev struct {
			Type  string `json:"type"`
			Index int    `json:"index"`
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
				StopReason  string `json:"stop_reason"`
			} `json:"delta"`
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
			Usage struct {
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
			Error *anthropicError `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue // Keep-alives and unknown events are skippable.
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock.Type == "tool_use" {
				accums[ev.Index] = &toolAccum{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			}
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				textBuf.WriteString(ev.Delta.Text)
				if fn != nil {
					fn(ev.Delta.Text)
				}
			case "input_json_delta":
				if acc := accums[ev.Index]; acc != nil {
					acc.json.WriteString(ev.Delta.PartialJSON)
				}
			}
		case "content_block_stop":
			if acc := accums[ev.Index]; acc != nil {
				args := acc.json.String()
				if args == "" {
					args = "{}"
				}
				out.ToolCalls = append(out.ToolCalls, ToolCall{
					ID:   acc.id,
					Name: acc.name,
					Args: json.RawMessage(args),
				})
				delete(accums, ev.Index)
			}
		case "message_delta":
			if ev.Delta.StopReason != "" {
				out.StopReason = ev.Delta.StopReason
			}
			if ev.Usage.OutputTokens > 0 {
				out.Usage.OutputTokens = ev.Usage.OutputTokens
			}
		case "error":
			if ev.Error != nil {
				return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic",
					Message: fmt.Sprintf("%s: %s", ev.Error.Type, ev.Error.Message)}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ProviderError{Kind: ErrTransport, Provider: "anthropic", Message: "reading event stream", Err: err}
	}

	out.Text = textBuf.String()
	return out, nil
}

// send builds and fires one Messages API request.
func (a *AnthropicClient) send(ctx context.Context, messages []Message, tools []ToolSchema, stream bool) (*http.Response, error) {
	systemPrompt, rest := splitSystem(messages)

	apiMessages, err := toAnthropicMessages(rest)
	if err != nil {
		return nil, err
	}

	var systemBlocks []systemBlock
	if systemPrompt != "" {
		block := systemBlock{Type: "text", Text: systemPrompt}
		if len(systemPrompt) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	reqPayload := anthropicRequest{
		Model:     a.model,
		Messages:  apiMessages,
		System:    systemBlocks,
		MaxTokens: a.maxTokens,
		Stream:    stream,
	}
	for _, t := range tools {
		reqPayload.Tools = append(reqPayload.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic", Message: "marshaling request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, &ProviderError{Kind: ErrTransport, Provider: "anthropic", Message: "creating request", Err: err}
	}

	keyBuf, err := a.apiKey.Open()
	if err != nil {
		return nil, &ProviderError{Kind: ErrAuth, Provider: "anthropic", Message: "opening key enclave", Err: err}
	}
	// keyBuf.String() is zero-copy into the locked pages; the buffer
	// must outlive the request that carries the header.
	defer keyBuf.Destroy()
	req.Header.Set("x-api-key", keyBuf.String())
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Sending REST request to Anthropic", "model", a.model, "stream", stream, "tool_count", len(tools))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: ErrTransport, Provider: "anthropic", Message: "HTTP request failed", Err: err}
	}
	return resp, nil
}

// toAnthropicMessages converts neutral turns into the block-structured
// wire form. Tool results become tool_result blocks on a user turn;
// consecutive tool turns merge into one user message as the API requires.
func toAnthropicMessages(messages []Message) ([]anthropicMessage, error) {
	var out []anthropicMessage
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: m.Content}},
			})
		case RoleAssistant:
			var blocks []anthropicBlock
			if m.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Args
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				blocks = []anthropicBlock{{Type: "text", Text: ""}}
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		case RoleTool:
			block := anthropicBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
			}
			if n := len(out); n > 0 && out[n-1].Role == "user" && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
			} else {
				out = append(out, anthropicMessage{Role: "user", Content: []anthropicBlock{block}})
			}
		default:
			return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "anthropic",
				Message: fmt.Sprintf("unsupported message role %q", m.Role)}
		}
	}
	return out, nil
}

func (a *AnthropicClient) normalize(apiResp anthropicResponse) *Response {
	out := &Response{
		Model:      apiResp.Model,
		StopReason: apiResp.StopReason,
		Usage: Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}
	if out.Model == "" {
		out.Model = a.model
	}

	var textBuf strings.Builder
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			textBuf.WriteString(block.Text)
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   block.ID,
				Name: block.Name,
				Args: input,
			})
		}
	}
	out.Text = textBuf.String()
	return out
}

func (a *AnthropicClient) statusError(status int, body []byte) error {
	msg := string(body)
	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err == nil && apiResp.Error != nil {
		msg = apiResp.Error.Message
	}
	return &ProviderError{Kind: kindForStatus(status), Provider: "anthropic", Status: status, Message: msg}
}
