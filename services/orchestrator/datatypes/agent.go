// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the request and response shapes of the
// orchestrator HTTP API. Every inbound type validates itself via
// go-playground/validator tags before a handler acts on it.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChatRequest starts or continues one agent conversation turn.
//
// SessionID is optional; an empty value makes the server mint a new
// session and return its ID in the response. Reusing a SessionID
// continues that session's memory.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Message   string `json:"message" validate:"required,min=1,max=8000"`
}

// Validate checks field constraints and returns a caller-readable error.
func (r *ChatRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid chat request: %w", err)
	}
	return nil
}

// ChatResponse carries the final answer of one blocking turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	ToolCalls int    `json:"tool_calls"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// StreamEvent is one SSE frame on the streaming endpoint. Type mirrors
// the agent loop's event taxonomy: text, tool_start, tool_done, done,
// plus "error" for turn failures.
type StreamEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Tool      string `json:"tool,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// MarketSearchRequest is the query-string form of /v1/markets/search.
type MarketSearchRequest struct {
	Query string `form:"q" validate:"required,min=1,max=500"`
	Limit int    `form:"limit" validate:"gte=0,lte=200"`
}

// Validate checks field constraints.
func (r *MarketSearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid market search: %w", err)
	}
	return nil
}

// ArbitrageRequest is the query-string form of /v1/markets/arbitrage.
type ArbitrageRequest struct {
	Query     string  `form:"q" validate:"required,min=1,max=500"`
	MinSpread float64 `form:"min_spread" validate:"gte=0,lt=1"`
}

// Validate checks field constraints.
func (r *ArbitrageRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid arbitrage scan: %w", err)
	}
	return nil
}

// ErrorResponse is the uniform error body for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness and the configured platforms.
type HealthResponse struct {
	Status    string   `json:"status"`
	Platforms []string `json:"platforms"`
	Model     string   `json:"model"`
	Sessions  int      `json:"sessions"`
}
