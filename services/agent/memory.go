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
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
)

const (
	// DefaultHistoryCap bounds the rolling conversation window.
	DefaultHistoryCap = 50
	// DefaultMarketContextCap bounds the per-session market cache.
	DefaultMarketContextCap = 20
)

// marketEntry pairs a cached snapshot with its last access time for
// least-recently-accessed eviction.
type marketEntry struct {
	snapshot     markets.Snapshot
	lastAccessed time.Time
}

// Memory is the per-session conversation state: a bounded rolling
// message history plus a bounded cache of markets the session has
// touched. Everything lives in process memory only; dropping the
// Memory drops the session.
//
// All methods are safe for concurrent use.
type Memory struct {
	mu sync.Mutex

	history    []llm.Message
	historyCap int

	marketCtx    map[string]*marketEntry
	marketCtxCap int
}

// NewMemory builds a Memory with the default caps.
func NewMemory() *Memory {
	return NewMemoryWithCaps(DefaultHistoryCap, DefaultMarketContextCap)
}

// NewMemoryWithCaps builds a Memory with explicit caps; non-positive
// values fall back to the defaults.
func NewMemoryWithCaps(historyCap, marketCtxCap int) *Memory {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if marketCtxCap <= 0 {
		marketCtxCap = DefaultMarketContextCap
	}
	return &Memory{
		historyCap:   historyCap,
		marketCtx:    make(map[string]*marketEntry, marketCtxCap),
		marketCtxCap: marketCtxCap,
	}
}

// Append adds messages to the rolling history, evicting from the front
// once the cap is exceeded. Eviction is silent; the newest messages
// always survive.
func (m *Memory) Append(msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, msgs...)
	if over := len(m.history) - m.historyCap; over > 0 {
		m.history = append([]llm.Message(nil), m.history[over:]...)
	}
}

// History returns a copy of the current window, oldest first.
func (m *Memory) History() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Message(nil), m.history...)
}

// Len reports the number of messages currently held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// RememberMarket caches a snapshot under its market ID. When the cache
// is full and the ID is new, the least-recently-accessed entry is
// evicted first.
func (m *Memory) RememberMarket(snap markets.Snapshot) {
	if snap.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.marketCtx[snap.ID]; ok {
		existing.snapshot = snap
		existing.lastAccessed = time.Now()
		return
	}

	if len(m.marketCtx) >= m.marketCtxCap {
		m.evictOldestLocked()
	}
	m.marketCtx[snap.ID] = &marketEntry{snapshot: snap, lastAccessed: time.Now()}
}

// evictOldestLocked removes the entry with the oldest lastAccessed.
// Caller holds mu.
func (m *Memory) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range m.marketCtx {
		if oldestID == "" || e.lastAccessed.Before(oldestAt) {
			oldestID = id
			oldestAt = e.lastAccessed
		}
	}
	if oldestID != "" {
		slog.Debug("Evicting market from session context", "market_id", oldestID)
		delete(m.marketCtx, oldestID)
	}
}

// LookupMarket returns a cached snapshot and refreshes its access time.
func (m *Memory) LookupMarket(marketID string) (markets.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.marketCtx[marketID]
	if !ok {
		return markets.Snapshot{}, false
	}
	e.lastAccessed = time.Now()
	return e.snapshot, true
}

// Markets returns the cached snapshots in no particular order.
func (m *Memory) Markets() []markets.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]markets.Snapshot, 0, len(m.marketCtx))
	for _, e := range m.marketCtx {
		out = append(out, e.snapshot)
	}
	return out
}

// MarketCount reports the number of cached markets.
func (m *Memory) MarketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marketCtx)
}

// Clear drops the history and the market context together, under one
// lock acquisition, so no observer can see one cleared and not the other.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.marketCtx = make(map[string]*marketEntry, m.marketCtxCap)
}
