// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the market endpoints.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/markets"
)

func yesPrice(p float64) *float64 { return &p }

func marketRouter(t *testing.T, snaps ...markets.Snapshot) *gin.Engine {
	t.Helper()
	agg, err := markets.NewAggregator(&staticPlatform{snaps: snaps})
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/markets/search", HandleMarketSearch(agg, nil))
	r.GET("/v1/markets/trending", HandleMarketTrending(agg, nil))
	r.GET("/v1/markets/arbitrage", HandleArbitrageScan(agg, markets.NewMatcher(0, 0)))
	r.GET("/v1/markets/:marketId", HandleMarketGet(agg, nil))
	return r
}

func TestHandleMarketSearch_ReturnsSnapshots(t *testing.T) {
	router := marketRouter(t, markets.Snapshot{
		ID:          "manifold-abc",
		Platform:    markets.PlatformManifold,
		Title:       "Will it rain?",
		Probability: yesPrice(0.31),
		Active:      true,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/search?q=rain", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var payload struct {
		Count   int                `json:"count"`
		Markets []markets.Snapshot `json:"markets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body: %v", err)
	}
	if payload.Count != 1 || payload.Markets[0].ID != "manifold-abc" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHandleMarketSearch_RequiresQuery(t *testing.T) {
	router := marketRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/search", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleMarketGet_UnknownIs404(t *testing.T) {
	router := marketRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/manifold-missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleArbitrageScan_EmptyResultIsOK(t *testing.T) {
	router := marketRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/arbitrage?q=election&min_spread=0.1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body: %v", err)
	}
	if payload.Count != 0 {
		t.Errorf("count = %d", payload.Count)
	}
}

func TestHandleMarketTrending_GroupsByPlatform(t *testing.T) {
	router := marketRouter(t, markets.Snapshot{
		ID:       "manifold-t1",
		Platform: markets.PlatformManifold,
		Title:    "Trending thing",
		Active:   true,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/markets/trending?limit=3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload map[string][]markets.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(payload["manifold"]) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}
