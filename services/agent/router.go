// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianOracle/services/llm"
)

var agentTracer = otel.Tracer("oracle.agent")

// HandlerFunc executes one tool call. The returned string is handed to
// the model verbatim; returning an error reports the failure to the
// model as an error result instead of aborting the turn.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool couples a schema the model sees with the handler that serves it.
type Tool struct {
	Schema  llm.ToolSchema
	Handler HandlerFunc
}

type registration struct {
	group   string
	schema  llm.ToolSchema
	handler HandlerFunc
}

// Router holds the flat tool namespace, assembled from named handler
// groups (market, social, trading). Groups exist for registration and
// logging; dispatch sees only tool names.
type Router struct {
	handlers map[string]registration
	order    []string
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: map[string]registration{}}
}

// RegisterGroup adds a group of tools. A tool name that is already
// registered in any group is a construction error: the namespace is
// flat and collisions would silently shadow a handler.
func (r *Router) RegisterGroup(group string, tools []Tool) error {
	for _, t := range tools {
		name := t.Schema.Name
		if name == "" {
			return fmt.Errorf("agent: tool in group %q has no name", group)
		}
		if existing, dup := r.handlers[name]; dup {
			return fmt.Errorf("agent: tool %q in group %q collides with group %q", name, group, existing.group)
		}
		if t.Handler == nil {
			return fmt.Errorf("agent: tool %q has no handler", name)
		}
		r.handlers[name] = registration{group: group, schema: t.Schema, handler: t.Handler}
		r.order = append(r.order, name)
	}
	slog.Info("Registered tool group", "group", group, "tool_count", len(tools))
	return nil
}

// Schemas returns every registered tool schema in registration order,
// ready to hand to the model.
func (r *Router) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name].schema)
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Router) Names() []string {
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// Dispatch executes one tool call and always produces a paired tool
// message for the model. Unknown tools and handler failures come back
// as error-text results rather than Go errors, so one bad call never
// aborts an agent turn.
func (r *Router) Dispatch(ctx context.Context, call llm.ToolCall) llm.Message {
	ctx, span := agentTracer.Start(ctx, "Router.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("tool", call.Name))

	result := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}

	reg, ok := r.handlers[call.Name]
	if !ok {
		slog.Warn("Model requested unknown tool", "tool", call.Name)
		result.Content = errorResult(fmt.Sprintf("unknown tool %q; available tools: %v", call.Name, r.Names()))
		return result
	}

	args, err := call.ArgsMap()
	if err != nil {
		result.Content = errorResult(fmt.Sprintf("invalid arguments: %v", err))
		return result
	}

	start := time.Now()
	out, err := reg.handler(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("Tool execution failed", "tool", call.Name, "group", reg.group, "elapsed", elapsed, "error", err)
		result.Content = errorResult(err.Error())
		return result
	}

	slog.Debug("Tool executed", "tool", call.Name, "group", reg.group, "elapsed", elapsed, "result_bytes", len(out))
	result.Content = out
	return result
}

// errorResult renders a failure as a JSON object the model can read
// and recover from.
func errorResult(msg string) string {
	b, _ := json.Marshal(map[string]any{"success": false, "error": msg})
	return string(b)
}
