// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianOracle/services/orchestrator/datatypes"
)

// SSEWriter serializes stream events onto an HTTP response in SSE wire
// format (event: <type>\ndata: <json>\n\n) and flushes after each one.
// Safe for concurrent use.
type SSEWriter interface {
	WriteEvent(event datatypes.StreamEvent) error
	WriteError(message string) error
}

type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter wraps w. Returns an error when the underlying writer
// cannot flush, since SSE without flushing just buffers forever.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UnixMilli()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteError(message string) error {
	return s.WriteEvent(datatypes.StreamEvent{Type: "error", Text: message})
}

// setSSEHeaders prepares the response for server-sent events.
func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
