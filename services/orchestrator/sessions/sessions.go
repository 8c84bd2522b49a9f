// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions maps session IDs to per-session agents. Each agent
// owns its own conversation memory; the tool backends (market
// aggregator, trading engine, X client) are shared across sessions.
// Idle sessions are reaped by a background sweeper.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianOracle/services/agent"
	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/social"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

// DefaultIdleTTL is how long a session may sit unused before the
// sweeper reclaims it.
const DefaultIdleTTL = 2 * time.Hour

// DefaultSweepInterval is how often the sweeper runs.
const DefaultSweepInterval = 15 * time.Minute

// Deps are the shared backends every session's tool groups bind to.
type Deps struct {
	Client     llm.Client
	Aggregator *markets.Aggregator
	Matcher    *markets.Matcher
	Engine     *trading.Engine
	XClient    *social.XClient
	AgentCfg   agent.Config
}

type entry struct {
	agent      *agent.Agent
	lastActive time.Time
}

// Manager owns the session table and the idle sweeper.
type Manager struct {
	deps          Deps
	idleTTL       time.Duration
	sweepInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*entry

	stop chan struct{}
	once sync.Once
}

// NewManager builds a manager. Non-positive durations take defaults.
func NewManager(deps Deps, idleTTL, sweepInterval time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Manager{
		deps:          deps,
		idleTTL:       idleTTL,
		sweepInterval: sweepInterval,
		sessions:      make(map[string]*entry),
		stop:          make(chan struct{}),
	}
}

// Acquire returns the agent for sessionID, creating the session when
// the ID is empty or unknown. The returned ID identifies the session
// the agent belongs to (freshly minted for empty input).
func (m *Manager) Acquire(sessionID string) (string, *agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		if e, ok := m.sessions[sessionID]; ok {
			e.lastActive = time.Now()
			return sessionID, e.agent, nil
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	a, err := m.newAgent()
	if err != nil {
		return "", nil, err
	}
	m.sessions[sessionID] = &entry{agent: a, lastActive: time.Now()}
	slog.Info("Created session", "session_id", sessionID, "total", len(m.sessions))
	return sessionID, a, nil
}

// newAgent wires a fresh agent: its own memory, its own router bound
// to that memory, shared backends underneath.
func (m *Manager) newAgent() (*agent.Agent, error) {
	mem := agent.NewMemory()
	router := agent.NewRouter()

	if m.deps.Aggregator != nil {
		if err := router.RegisterGroup("market", agent.MarketTools(m.deps.Aggregator, m.deps.Matcher, mem)); err != nil {
			return nil, fmt.Errorf("registering market tools: %w", err)
		}
	}
	if m.deps.XClient != nil {
		if err := router.RegisterGroup("social", agent.SocialTools(m.deps.XClient)); err != nil {
			return nil, fmt.Errorf("registering social tools: %w", err)
		}
	}
	if m.deps.Engine != nil {
		if err := router.RegisterGroup("trading", agent.TradingTools(m.deps.Engine)); err != nil {
			return nil, fmt.Errorf("registering trading tools: %w", err)
		}
	}

	return agent.New(m.deps.Client, router, mem, m.deps.AgentCfg), nil
}

// Clear wipes a session's memory. Reports whether the session existed.
func (m *Manager) Clear(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	e.agent.Memory().Clear()
	e.lastActive = time.Now()
	return true
}

// Delete removes a session entirely.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartSweeper launches the idle-session reaper. It stops when ctx is
// cancelled or Close is called.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.sweep(time.Now()); n > 0 {
					slog.Info("Reaped idle sessions", "count", n, "remaining", m.Len())
				}
			}
		}
	}()
}

// sweep drops sessions idle past the TTL and returns how many went.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastActive) > m.idleTTL {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper. Idempotent.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}
