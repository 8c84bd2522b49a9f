// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the session table and idle sweeper.

package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianOracle/services/llm"
)

type nullModel struct{}

func (nullModel) Model() string { return "null" }

func (nullModel) Call(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	return &llm.Response{Text: "ok"}, nil
}

func (nullModel) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, fn llm.StreamFunc) (*llm.Response, error) {
	return &llm.Response{Text: "ok"}, nil
}

func TestAcquire_MintsAndReuses(t *testing.T) {
	m := NewManager(Deps{Client: nullModel{}}, 0, 0)

	id, a, err := m.Acquire("")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if id == "" || a == nil {
		t.Fatal("empty session not minted")
	}

	id2, a2, err := m.Acquire(id)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if id2 != id || a2 != a {
		t.Error("existing session not reused")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestAcquire_UnknownIDCreatesUnderThatID(t *testing.T) {
	m := NewManager(Deps{Client: nullModel{}}, 0, 0)

	id, _, err := m.Acquire("client-chosen")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if id != "client-chosen" {
		t.Errorf("id = %q", id)
	}
}

func TestSweep_ReapsIdleSessions(t *testing.T) {
	m := NewManager(Deps{Client: nullModel{}}, 30*time.Minute, time.Minute)

	if _, _, err := m.Acquire("stale"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, _, err := m.Acquire("fresh"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.mu.Lock()
	m.sessions["stale"].lastActive = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	if n := m.sweep(time.Now()); n != 1 {
		t.Fatalf("sweep reaped %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d", m.Len())
	}
	if _, ok := m.sessions["fresh"]; !ok {
		t.Error("fresh session reaped")
	}
}

func TestClearAndDelete(t *testing.T) {
	m := NewManager(Deps{Client: nullModel{}}, 0, 0)
	if _, _, err := m.Acquire("s1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if !m.Clear("s1") {
		t.Error("clear on live session reported false")
	}
	if m.Clear("nope") {
		t.Error("clear on unknown session reported true")
	}
	if !m.Delete("s1") {
		t.Error("delete on live session reported false")
	}
	if m.Delete("s1") {
		t.Error("double delete reported true")
	}
}
