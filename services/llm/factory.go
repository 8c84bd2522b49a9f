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
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewClient builds the backend named by provider: "anthropic" or
// "openai" (which also covers OpenAI-compatible gateways via
// OPENAI_BASE_URL).
func NewClient(provider string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "anthropic", "claude":
		return NewAnthropicClient(nil)
	case "openai", "":
		return NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want anthropic or openai)", provider)
	}
}

// NewClientFromEnv selects the backend from LLM_PROVIDER. When unset,
// whichever provider has an API key configured wins, Anthropic first.
func NewClientFromEnv() (Client, error) {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		return NewClient(provider)
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		slog.Info("LLM_PROVIDER not set, using Anthropic (key present)")
		return NewAnthropicClient(nil)
	}
	slog.Info("LLM_PROVIDER not set, using OpenAI")
	return NewOpenAIClient()
}
