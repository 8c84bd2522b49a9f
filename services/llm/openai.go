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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient speaks OpenAI-compatible chat completions, including
// self-hosted gateways via OPENAI_BASE_URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient reads OPENAI_API_KEY (falling back to the container
// secret file), OPENAI_MODEL and OPENAI_BASE_URL.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read the OpenAI API Key from container secrets")
		}
	}
	if apiKey == "" {
		return nil, &ProviderError{Kind: ErrAuth, Provider: "openai", Message: "OPENAI_API_KEY is missing"}
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultOpenAIModel
		slog.Warn("OPENAI_MODEL not set, defaulting to", "model", model)
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
		slog.Info("Using custom OpenAI-compatible endpoint", "base_url", baseURL)
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (o *OpenAIClient) Model() string { return o.model }

// Call implements Client.
func (o *OpenAIClient) Call(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	req := o.buildRequest(messages, tools, false)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, o.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Provider: "openai", Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	out := &Response{
		Text:       choice.Message.Content,
		Model:      resp.Model,
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(args),
		})
	}
	return out, nil
}

// Stream implements Client. Tool-call fragments are stitched together
// by stream index; text deltas flow through fn.
func (o *OpenAIClient) Stream(ctx context.Context, messages []Message, tools []ToolSchema, fn StreamFunc) (*Response, error) {
	req := o.buildRequest(messages, tools, true)

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, o.wrapError(err)
	}
	defer stream.Close()

	out := &Response{Model: o.model}
	var textBuf strings.Builder

	type toolAccum struct {
		id   string
		name string
		args strings.Builder
	}
	accums := map[int]*toolAccum{}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, o.wrapError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			textBuf.WriteString(choice.Delta.Content)
			if fn != nil {
				fn(choice.Delta.Content)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc := accums[idx]
			if acc == nil {
				acc = &toolAccum{}
				accums[idx] = acc
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			acc.args.WriteString(tc.Function.Arguments)
		}
		if choice.FinishReason != "" {
			out.StopReason = string(choice.FinishReason)
		}
	}

	for idx := 0; idx < len(accums); idx++ {
		acc := accums[idx]
		if acc == nil {
			continue
		}
		args := acc.args.String()
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   acc.id,
			Name: acc.name,
			Args: json.RawMessage(args),
		})
	}

	out.Text = textBuf.String()
	return out, nil
}

func (o *OpenAIClient) buildRequest(messages []Message, tools []ToolSchema, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  o.model,
		Stream: stream,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		case RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				args := string(tc.Args)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			req.Messages = append(req.Messages, msg)
		default:
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:    m.Role,
				Content: m.Content,
			})
		}
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return req
}

// wrapError translates go-openai errors into the failure taxonomy.
func (o *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Kind:     kindForStatus(apiErr.HTTPStatusCode),
			Provider: "openai",
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return &ProviderError{Kind: ErrTransport, Provider: "openai", Message: fmt.Sprintf("API call failed: %v", err), Err: err}
}
