// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the agent chat endpoints.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
)

// cannedModel answers every call with a fixed text and no tools.
type cannedModel struct {
	answer string
	calls  int
}

func (m *cannedModel) Model() string { return "canned" }

func (m *cannedModel) Call(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	m.calls++
	return &llm.Response{Text: m.answer}, nil
}

func (m *cannedModel) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, fn llm.StreamFunc) (*llm.Response, error) {
	m.calls++
	if fn != nil {
		fn(m.answer)
	}
	return &llm.Response{Text: m.answer}, nil
}

type staticPlatform struct{ snaps []markets.Snapshot }

func (s *staticPlatform) Platform() markets.Platform { return markets.PlatformManifold }
func (s *staticPlatform) Get(ctx context.Context, id string) (markets.Snapshot, error) {
	return markets.Snapshot{}, markets.ErrMarketNotFound
}
func (s *staticPlatform) Search(ctx context.Context, q string, limit int) ([]markets.Snapshot, error) {
	return s.snaps, nil
}
func (s *staticPlatform) Trending(ctx context.Context, limit int) ([]markets.Snapshot, error) {
	return s.snaps, nil
}

func testManager(t *testing.T, model llm.Client) *sessions.Manager {
	t.Helper()
	agg, err := markets.NewAggregator(&staticPlatform{})
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	return sessions.NewManager(sessions.Deps{
		Client:     model,
		Aggregator: agg,
		Matcher:    markets.NewMatcher(0, 0),
	}, 0, 0)
}

func chatRouter(mgr *sessions.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/agent/chat", HandleAgentChat(mgr))
	r.POST("/v1/agent/stream", HandleAgentStream(mgr))
	r.POST("/v1/sessions/:sessionId/clear", HandleClearSession(mgr))
	r.DELETE("/v1/sessions/:sessionId", HandleDeleteSession(mgr))
	return r
}

func TestHandleAgentChat_MintsSessionAndAnswers(t *testing.T) {
	mgr := testManager(t, &cannedModel{answer: "Rates hold."})
	router := chatRouter(mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/agent/chat", strings.NewReader(`{"message":"what about rates?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp datatypes.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if resp.Answer != "Rates hold." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("session ID not minted")
	}
	if mgr.Len() != 1 {
		t.Errorf("sessions = %d", mgr.Len())
	}
}

func TestHandleAgentChat_ReusesSession(t *testing.T) {
	mgr := testManager(t, &cannedModel{answer: "ok"})
	router := chatRouter(mgr)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/v1/agent/chat",
		strings.NewReader(`{"message":"one"}`)))
	var resp datatypes.ChatResponse
	_ = json.Unmarshal(first.Body.Bytes(), &resp)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("POST", "/v1/agent/chat",
		strings.NewReader(`{"session_id":"`+resp.SessionID+`","message":"two"}`)))

	if second.Code != http.StatusOK {
		t.Fatalf("status = %d", second.Code)
	}
	if mgr.Len() != 1 {
		t.Errorf("session reuse created a new session, total = %d", mgr.Len())
	}
}

func TestHandleAgentChat_RejectsEmptyMessage(t *testing.T) {
	router := chatRouter(testManager(t, &cannedModel{answer: "ok"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/agent/chat",
		strings.NewReader(`{"message":""}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleAgentChat_RejectsMalformedJSON(t *testing.T) {
	router := chatRouter(testManager(t, &cannedModel{answer: "ok"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/agent/chat",
		strings.NewReader(`{not json`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleAgentStream_EmitsSSEFrames(t *testing.T) {
	router := chatRouter(testManager(t, &cannedModel{answer: "Streamed."}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/agent/stream",
		strings.NewReader(`{"message":"go"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{"event: session", "event: text", "event: done", "Streamed."} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
}

func TestHandleClearSession_UnknownIs404(t *testing.T) {
	router := chatRouter(testManager(t, &cannedModel{answer: "ok"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/v1/sessions/nope/clear", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleDeleteSession_RemovesSession(t *testing.T) {
	mgr := testManager(t, &cannedModel{answer: "ok"})
	router := chatRouter(mgr)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("POST", "/v1/agent/chat",
		strings.NewReader(`{"message":"one"}`)))
	var resp datatypes.ChatResponse
	_ = json.Unmarshal(first.Body.Bytes(), &resp)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/v1/sessions/"+resp.SessionID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if mgr.Len() != 0 {
		t.Errorf("sessions = %d after delete", mgr.Len())
	}
}
