// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP endpoints of the agent API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/agent"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
)

// HandleAgentChat runs one blocking conversation turn.
//
// POST /v1/agent/chat
func HandleAgentChat(mgr *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observability.ObserveRequest("chat", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "malformed JSON body"})
			return
		}
		if err := req.Validate(); err != nil {
			observability.ObserveRequest("chat", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		sessionID, a, err := mgr.Acquire(req.SessionID)
		if err != nil {
			observability.ObserveRequest("chat", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "session setup failed"})
			return
		}

		start := time.Now()
		answer, toolCalls, err := a.ChatWithUsage(c.Request.Context(), req.Message)
		elapsed := time.Since(start)
		observability.ObserveRequest("chat", err)
		observability.ObserveTurn("chat", elapsed.Seconds())
		if m := observability.DefaultMetrics; m != nil {
			m.ToolCallsTotal.WithLabelValues("chat").Add(float64(toolCalls))
			m.SessionsActive.Set(float64(mgr.Len()))
		}
		if err != nil {
			slog.Error("Agent turn failed", "session_id", sessionID, "error", err)
			c.JSON(statusForTurnError(err), datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			SessionID: sessionID,
			Answer:    answer,
			ToolCalls: toolCalls,
			ElapsedMS: elapsed.Milliseconds(),
		})
	}
}

// HandleAgentStream runs one turn, relaying agent events as SSE.
//
// POST /v1/agent/stream
func HandleAgentStream(mgr *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			observability.ObserveRequest("stream", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "malformed JSON body"})
			return
		}
		if err := req.Validate(); err != nil {
			observability.ObserveRequest("stream", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		sessionID, a, err := mgr.Acquire(req.SessionID)
		if err != nil {
			observability.ObserveRequest("stream", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "session setup failed"})
			return
		}

		setSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			observability.ObserveRequest("stream", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.ActiveStreams.Inc()
			defer m.ActiveStreams.Dec()
		}

		// The session ID rides on the first frame so new sessions can
		// be continued by the client.
		_ = writer.WriteEvent(datatypes.StreamEvent{Type: "session", SessionID: sessionID})

		start := time.Now()
		_, err = a.ChatStream(c.Request.Context(), req.Message, func(e agent.Event) {
			_ = writer.WriteEvent(datatypes.StreamEvent{
				Type: string(e.Type),
				Text: e.Text,
				Tool: e.Tool,
			})
		})
		observability.ObserveRequest("stream", err)
		observability.ObserveTurn("stream", time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				if m := observability.DefaultMetrics; m != nil {
					m.ClientDisconnectsTotal.Inc()
				}
				slog.Info("Client disconnected mid-stream", "session_id", sessionID)
				return
			}
			slog.Error("Streaming turn failed", "session_id", sessionID, "error", err)
			_ = writer.WriteError(err.Error())
		}
	}
}

// HandleClearSession wipes one session's memory.
//
// POST /v1/sessions/:sessionId/clear
func HandleClearSession(mgr *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if !mgr.Clear(id) {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id, "cleared": true})
	}
}

// HandleDeleteSession drops one session entirely.
//
// DELETE /v1/sessions/:sessionId
func HandleDeleteSession(mgr *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		if !mgr.Delete(id) {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "unknown session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"session_id": id, "deleted": true})
	}
}

// statusForTurnError maps turn failures onto HTTP statuses. Context
// cancellation means the client went away; everything else is upstream.
func statusForTurnError(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}
	return http.StatusBadGateway
}
