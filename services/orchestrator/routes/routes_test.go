// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the route table.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
)

type idleModel struct{}

func (idleModel) Model() string { return "idle" }

func (idleModel) Call(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	return &llm.Response{Text: "ok"}, nil
}

func (idleModel) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, fn llm.StreamFunc) (*llm.Response, error) {
	return &llm.Response{Text: "ok"}, nil
}

type emptyPlatform struct{}

func (emptyPlatform) Platform() markets.Platform { return markets.PlatformManifold }
func (emptyPlatform) Get(ctx context.Context, id string) (markets.Snapshot, error) {
	return markets.Snapshot{}, markets.ErrMarketNotFound
}
func (emptyPlatform) Search(ctx context.Context, q string, limit int) ([]markets.Snapshot, error) {
	return nil, nil
}
func (emptyPlatform) Trending(ctx context.Context, limit int) ([]markets.Snapshot, error) {
	return nil, nil
}

func testRouter(t *testing.T, authToken string) *gin.Engine {
	t.Helper()
	agg, err := markets.NewAggregator(emptyPlatform{})
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	mgr := sessions.NewManager(sessions.Deps{Client: idleModel{}, Aggregator: agg}, 0, 0)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, Deps{
		Sessions:   mgr,
		Aggregator: agg,
		Matcher:    markets.NewMatcher(0, 0),
		Client:     idleModel{},
		AuthToken:  authToken,
	})
	return router
}

func TestSetupRoutes_HealthAndMetricsAreOpen(t *testing.T) {
	router := testRouter(t, "sekrit")

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestSetupRoutes_V1IsGuarded(t *testing.T) {
	router := testRouter(t, "sekrit")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/search?q=x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/markets/search?q=x", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("authorized status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSetupRoutes_MarketGetByID(t *testing.T) {
	router := testRouter(t, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/manifold-xyz", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}
