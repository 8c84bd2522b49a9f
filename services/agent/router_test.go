// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the tool registry and dispatch.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOracle/services/llm"
)

func echoTool(name string) Tool {
	return Tool{
		Schema: llm.ToolSchema{Name: name, Description: "echo", InputSchema: objSchema(map[string]any{})},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "echo:" + name, nil
		},
	}
}

func TestRegisterGroup_RejectsCollisionsAcrossGroups(t *testing.T) {
	r := NewRouter()
	if err := r.RegisterGroup("market", []Tool{echoTool("search")}); err != nil {
		t.Fatalf("first group: %v", err)
	}
	err := r.RegisterGroup("social", []Tool{echoTool("search")})
	if err == nil {
		t.Fatal("cross-group name collision accepted")
	}
	if !strings.Contains(err.Error(), "market") {
		t.Errorf("collision error should name the owning group: %v", err)
	}
}

func TestDispatch_UnknownToolIsNegativeResult(t *testing.T) {
	r := NewRouter()
	_ = r.RegisterGroup("market", []Tool{echoTool("search")})

	msg := r.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "launch_rocket"})
	if msg.Role != llm.RoleTool || msg.ToolCallID != "c1" {
		t.Fatalf("result not paired: %+v", msg)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if payload["success"] != false {
		t.Errorf("unknown tool should be success=false: %v", payload)
	}
	if !strings.Contains(payload["error"].(string), "launch_rocket") {
		t.Errorf("error should name the tool: %v", payload["error"])
	}
}

func TestDispatch_HandlerErrorIsNegativeResult(t *testing.T) {
	r := NewRouter()
	_ = r.RegisterGroup("market", []Tool{{
		Schema: llm.ToolSchema{Name: "flaky", Description: "d", InputSchema: objSchema(map[string]any{})},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("upstream exploded")
		},
	}})

	msg := r.Dispatch(context.Background(), llm.ToolCall{ID: "c2", Name: "flaky"})
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if payload["success"] != false || !strings.Contains(payload["error"].(string), "upstream exploded") {
		t.Errorf("payload = %v", payload)
	}
}

func TestDispatch_MalformedArgsIsNegativeResult(t *testing.T) {
	r := NewRouter()
	_ = r.RegisterGroup("market", []Tool{echoTool("search")})

	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c3", Name: "search", Args: json.RawMessage(`[not json`),
	})
	if !strings.Contains(msg.Content, "invalid arguments") {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestDispatch_PassesArguments(t *testing.T) {
	var got map[string]any
	r := NewRouter()
	_ = r.RegisterGroup("market", []Tool{{
		Schema: llm.ToolSchema{Name: "cap", Description: "d", InputSchema: objSchema(map[string]any{})},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			got = args
			return "ok", nil
		},
	}})

	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c4", Name: "cap", Args: json.RawMessage(`{"query": "fed", "limit": 5}`),
	})
	if msg.Content != "ok" {
		t.Fatalf("content = %q", msg.Content)
	}
	if got["query"] != "fed" || got["limit"] != float64(5) {
		t.Errorf("args = %v", got)
	}
}

func TestSchemas_PreservesRegistrationOrder(t *testing.T) {
	r := NewRouter()
	_ = r.RegisterGroup("market", []Tool{echoTool("b_tool"), echoTool("a_tool")})
	_ = r.RegisterGroup("trading", []Tool{echoTool("c_tool")})

	schemas := r.Schemas()
	want := []string{"b_tool", "a_tool", "c_tool"}
	for i, w := range want {
		if schemas[i].Name != w {
			t.Errorf("schemas[%d] = %s, want %s", i, schemas[i].Name, w)
		}
	}
}
