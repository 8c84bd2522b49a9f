// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the research loop using a scripted fake model.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOracle/services/llm"
)

// scriptedModel pops one canned response per Call/Stream and records
// the transcript and tool schemas each invocation received.
type scriptedModel struct {
	responses []*llm.Response
	err       error

	transcripts [][]llm.Message
	toolLists   [][]llm.ToolSchema
	streamed    []bool
}

func (m *scriptedModel) Model() string { return "scripted" }

func (m *scriptedModel) next(messages []llm.Message, tools []llm.ToolSchema, streamed bool) (*llm.Response, error) {
	cp := make([]llm.Message, len(messages))
	copy(cp, messages)
	m.transcripts = append(m.transcripts, cp)
	m.toolLists = append(m.toolLists, tools)
	m.streamed = append(m.streamed, streamed)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *scriptedModel) Call(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	return m.next(messages, tools, false)
}

func (m *scriptedModel) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, fn llm.StreamFunc) (*llm.Response, error) {
	resp, err := m.next(messages, tools, true)
	if err != nil {
		return nil, err
	}
	// Deliver the text in two fragments like a real backend would.
	if fn != nil && resp.Text != "" {
		half := len(resp.Text) / 2
		fn(resp.Text[:half])
		fn(resp.Text[half:])
	}
	return resp, nil
}

func toolCall(id, name string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Args: json.RawMessage(`{}`)}
}

func countingRouter(t *testing.T, calls *int) *Router {
	t.Helper()
	r := NewRouter()
	err := r.RegisterGroup("market", []Tool{
		{
			Schema: llm.ToolSchema{Name: "probe", Description: "d", InputSchema: objSchema(map[string]any{})},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				*calls++
				return `{"success":true}`, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestChat_NoTools(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{Text: "The fed holds.", StopReason: "end_turn"},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{})

	answer, err := a.Chat(context.Background(), "What will the Fed do?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "The fed holds." {
		t.Errorf("answer = %q", answer)
	}
	if executed != 0 {
		t.Errorf("executed %d tools, want 0", executed)
	}
	if len(model.transcripts) != 1 {
		t.Fatalf("model invoked %d times", len(model.transcripts))
	}
	// The first call must offer the registered tools and open with the
	// persona.
	if len(model.toolLists[0]) != 1 || model.toolLists[0][0].Name != "probe" {
		t.Errorf("tools offered = %+v", model.toolLists[0])
	}
	if model.transcripts[0][0].Role != llm.RoleSystem {
		t.Errorf("transcript must start with system, got %s", model.transcripts[0][0].Role)
	}
}

func TestChat_ToolRoundThenAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{Text: "Let me check.", ToolCalls: []llm.ToolCall{toolCall("c1", "probe")}},
		{Text: "Markets say 62%."},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{})

	answer, err := a.Chat(context.Background(), "check the market")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "Markets say 62%." {
		t.Errorf("answer = %q", answer)
	}
	if executed != 1 {
		t.Errorf("executed = %d", executed)
	}

	// Pairing: the second call's transcript must carry the assistant
	// turn with the call followed immediately by its result.
	second := model.transcripts[1]
	n := len(second)
	asst, result := second[n-2], second[n-1]
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].ID != "c1" {
		t.Fatalf("assistant turn = %+v", asst)
	}
	if result.Role != llm.RoleTool || result.ToolCallID != "c1" {
		t.Errorf("result turn = %+v", result)
	}
}

func TestChat_BudgetEnforcedBetweenRounds(t *testing.T) {
	// Budget 1 but the single round requests two calls: both must run,
	// then the final answer is forced with no tools offered.
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "probe"), toolCall("c2", "probe")}},
		{Text: "Best effort answer."},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{ToolBudget: 1})

	answer, err := a.Chat(context.Background(), "dig deep")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if executed != 2 {
		t.Errorf("executed = %d, want both calls of the round", executed)
	}
	if answer != "Best effort answer." {
		t.Errorf("answer = %q", answer)
	}
	if len(model.toolLists) != 2 {
		t.Fatalf("model invoked %d times", len(model.toolLists))
	}
	if model.toolLists[1] != nil {
		t.Errorf("forced final offered tools: %+v", model.toolLists[1])
	}
	// Both results must precede the forced call, paired by ID.
	final := model.transcripts[1]
	n := len(final)
	if final[n-2].ToolCallID != "c1" || final[n-1].ToolCallID != "c2" {
		t.Errorf("result order: %+v %+v", final[n-2], final[n-1])
	}
}

func TestChat_MemoryGetsUserAndFinalOnly(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "probe")}},
		{Text: "Done."},
	}}
	var executed int
	mem := NewMemory()
	a := New(model, countingRouter(t, &executed), mem, Config{})

	if _, err := a.Chat(context.Background(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	hist := mem.History()
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	if hist[0].Role != llm.RoleUser || hist[0].Content != "hi" {
		t.Errorf("hist[0] = %+v", hist[0])
	}
	if hist[1].Role != llm.RoleAssistant || hist[1].Content != "Done." {
		t.Errorf("hist[1] = %+v", hist[1])
	}
	for _, m := range hist {
		if m.Role == llm.RoleTool || len(m.ToolCalls) > 0 {
			t.Errorf("tool transcript leaked into memory: %+v", m)
		}
	}
}

func TestChat_ModelErrorPropagates(t *testing.T) {
	model := &scriptedModel{err: errors.New("upstream 500")}
	var executed int
	mem := NewMemory()
	a := New(model, countingRouter(t, &executed), mem, Config{})

	_, err := a.Chat(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "upstream 500") {
		t.Fatalf("err = %v", err)
	}
	if mem.Len() != 0 {
		t.Errorf("failed turn must not touch memory, len = %d", mem.Len())
	}
}

func TestChat_UnknownToolKeepsLoopAlive(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "no_such_tool")}},
		{Text: "Never mind."},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{})

	answer, err := a.Chat(context.Background(), "try something odd")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "Never mind." {
		t.Errorf("answer = %q", answer)
	}
	// The model saw a negative result for the unknown tool.
	second := model.transcripts[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || !strings.Contains(last.Content, `"success":false`) {
		t.Errorf("unknown tool result = %+v", last)
	}
}

func TestChatStream_EventSequence(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "probe")}},
		{Text: "done-check"}, // blocking round that decides no more tools
		{Text: "Streamed answer."},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{})

	var events []Event
	answer, err := a.ChatStream(context.Background(), "go", func(e Event) {
		events = append(events, e)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if answer != "Streamed answer." {
		t.Errorf("answer = %q", answer)
	}

	var types []EventType
	var text strings.Builder
	for _, e := range events {
		types = append(types, e.Type)
		if e.Type == EventText {
			text.WriteString(e.Text)
		}
	}
	want := []EventType{EventToolStart, EventToolDone, EventText, EventText, EventDone}
	if len(types) != len(want) {
		t.Fatalf("events = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
	if text.String() != "Streamed answer." {
		t.Errorf("fragments joined = %q", text.String())
	}
	if events[len(events)-1].Text != "Streamed answer." {
		t.Errorf("done event text = %q", events[len(events)-1].Text)
	}

	// Tool rounds stay blocking; only the final re-issue streams, with
	// no tools offered.
	if model.streamed[0] || model.streamed[1] || !model.streamed[2] {
		t.Errorf("streamed flags = %v", model.streamed)
	}
	if model.toolLists[2] != nil {
		t.Errorf("streamed final offered tools: %+v", model.toolLists[2])
	}
}

func TestChat_HistoryFeedsNextTurn(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{Text: "First answer."},
		{Text: "Second answer."},
	}}
	var executed int
	a := New(model, countingRouter(t, &executed), NewMemory(), Config{})

	ctx := context.Background()
	if _, err := a.Chat(ctx, "first"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if _, err := a.Chat(ctx, "second"); err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	second := model.transcripts[1]
	// system, first user, first answer, second user.
	if len(second) != 4 {
		t.Fatalf("transcript len = %d: %+v", len(second), second)
	}
	if second[1].Content != "first" || second[2].Content != "First answer." || second[3].Content != "second" {
		t.Errorf("transcript = %+v", second)
	}
}
