// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the research loop: model call, tool execution,
// repeat until the model produces a final answer or the per-turn tool
// budget runs out.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianOracle/services/llm"
)

// DefaultToolBudget caps tool calls within one conversation turn.
const DefaultToolBudget = 10

// DefaultSystemPrompt is the stock research-analyst persona.
const DefaultSystemPrompt = `You are Oracle, a prediction-market research analyst.

You have tools to search markets across Polymarket, Manifold, Metaculus
and PredictIt, inspect individual markets, scan for cross-platform
arbitrage, manage a paper-trading portfolio, and post findings to X.

Ground every claim in tool results. Quote probabilities as percentages
and always name the platform a number came from. When platforms
disagree on the same event, say so explicitly; that disagreement is
usually the most interesting finding. Be concise and concrete.`

// EventType tags progress events on the streaming path.
type EventType string

const (
	// EventText is a fragment of the final answer.
	EventText EventType = "text"
	// EventToolStart fires before a tool executes.
	EventToolStart EventType = "tool_start"
	// EventToolDone fires after a tool returns.
	EventToolDone EventType = "tool_done"
	// EventDone closes the turn; Text carries the full answer.
	EventDone EventType = "done"
)

// Event is one progress notification from ChatStream.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
	Tool string    `json:"tool,omitempty"`
}

// EventFunc consumes streaming events. Ceasing to consume (cancelling
// ctx) is the only cancellation signal a caller needs.
type EventFunc func(Event)

// Config tunes one Agent.
type Config struct {
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// ToolBudget caps tool calls per turn; non-positive means default.
	ToolBudget int
}

// Agent ties a model, a tool router, and a session memory into the
// per-turn loop. One Agent owns its Memory exclusively; turns are
// processed one at a time.
type Agent struct {
	client       llm.Client
	router       *Router
	memory       *Memory
	systemPrompt string
	toolBudget   int
}

// New builds an agent. A nil memory gets a fresh one with default caps.
func New(client llm.Client, router *Router, memory *Memory, cfg Config) *Agent {
	if memory == nil {
		memory = NewMemory()
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	budget := cfg.ToolBudget
	if budget <= 0 {
		budget = DefaultToolBudget
	}
	return &Agent{
		client:       client,
		router:       router,
		memory:       memory,
		systemPrompt: prompt,
		toolBudget:   budget,
	}
}

// Memory exposes the session memory for inspection and Clear.
func (a *Agent) Memory() *Memory { return a.memory }

// Tools lists the registered tool names, sorted.
func (a *Agent) Tools() []string { return a.router.Names() }

// Chat runs one blocking conversation turn and returns the final
// answer. Model failures propagate; tool failures do not (they are fed
// back to the model as negative results).
func (a *Agent) Chat(ctx context.Context, userText string) (string, error) {
	answer, _, err := a.runTurn(ctx, userText, nil)
	return answer, err
}

// ChatWithUsage is Chat plus the number of tool calls the turn consumed.
func (a *Agent) ChatWithUsage(ctx context.Context, userText string) (string, int, error) {
	return a.runTurn(ctx, userText, nil)
}

// ChatStream runs one turn, emitting tool progress events between
// rounds and the final answer as incremental text events. The decision
// logic is identical to Chat: tool rounds use blocking calls, and
// streaming begins only for the final answer, once the model has
// stopped requesting tools.
func (a *Agent) ChatStream(ctx context.Context, userText string, onEvent EventFunc) (string, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	answer, _, err := a.runTurn(ctx, userText, onEvent)
	return answer, err
}

// runTurn drives the state machine. onEvent == nil selects the
// blocking variant.
func (a *Agent) runTurn(ctx context.Context, userText string, onEvent EventFunc) (string, int, error) {
	ctx, span := agentTracer.Start(ctx, "Agent.turn")
	defer span.End()

	userMsg := llm.Message{Role: llm.RoleUser, Content: userText}

	// The in-flight transcript: persona, rolling history, new message.
	msgs := make([]llm.Message, 0, a.memory.Len()+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	msgs = append(msgs, a.memory.History()...)
	msgs = append(msgs, userMsg)

	schemas := a.router.Schemas()
	used := 0
	start := time.Now()

	var finalText string
	for {
		resp, err := a.client.Call(ctx, msgs, schemas)
		if err != nil {
			return "", used, fmt.Errorf("model call: %w", err)
		}

		if !resp.WantsTools() {
			finalText = resp.Text
			if onEvent != nil {
				// The model has committed to answering; re-issue the
				// turn as a stream so the caller sees fragments.
				finalText, err = a.streamFinal(ctx, msgs, onEvent)
				if err != nil {
					return "", used, err
				}
			}
			break
		}

		// Append the assistant turn, then exactly one result per call,
		// in the model's call order.
		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if onEvent != nil {
				onEvent(Event{Type: EventToolStart, Tool: call.Name})
			}
			result := a.router.Dispatch(ctx, call)
			msgs = append(msgs, result)
			used++
			if onEvent != nil {
				onEvent(Event{Type: EventToolDone, Tool: call.Name})
			}
		}

		// Budget is counted per call but enforced between rounds: a
		// round that started always answers every call it carried.
		if used >= a.toolBudget {
			slog.Info("Tool budget exhausted, forcing final answer", "used", used, "budget", a.toolBudget)
			finalText, err = a.forcedFinal(ctx, msgs, onEvent)
			if err != nil {
				return "", used, err
			}
			break
		}
	}

	span.SetAttributes(
		attribute.Int("tool_calls", used),
		attribute.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	slog.Debug("Turn complete", "tool_calls", used, "elapsed", time.Since(start), "answer_bytes", len(finalText))

	// The session keeps the user message and the final answer; the
	// intermediate tool transcript stays turn-local.
	a.memory.Append(userMsg, llm.Message{Role: llm.RoleAssistant, Content: finalText})

	if onEvent != nil {
		onEvent(Event{Type: EventDone, Text: finalText})
	}
	return finalText, used, nil
}

// forcedFinal obtains a best-effort answer with tool schemas omitted,
// so the model cannot request further calls.
func (a *Agent) forcedFinal(ctx context.Context, msgs []llm.Message, onEvent EventFunc) (string, error) {
	if onEvent != nil {
		return a.streamFinal(ctx, msgs, onEvent)
	}
	resp, err := a.client.Call(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("forced final call: %w", err)
	}
	return resp.Text, nil
}

// streamFinal issues the no-tool streaming call and forwards fragments.
func (a *Agent) streamFinal(ctx context.Context, msgs []llm.Message, onEvent EventFunc) (string, error) {
	resp, err := a.client.Stream(ctx, msgs, nil, func(delta string) {
		onEvent(Event{Type: EventText, Text: delta})
	})
	if err != nil {
		return "", fmt.Errorf("streaming final answer: %w", err)
	}
	return resp.Text, nil
}
