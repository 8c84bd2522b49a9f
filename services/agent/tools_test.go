// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the built-in tool groups wired to stub backends.

package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/social"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

type fixedPlatform struct {
	platform markets.Platform
	snaps    []markets.Snapshot
}

func (f *fixedPlatform) Platform() markets.Platform { return f.platform }

func (f *fixedPlatform) Get(ctx context.Context, nativeID string) (markets.Snapshot, error) {
	for _, s := range f.snaps {
		if s.ID == f.platform.MarketID(nativeID) {
			return s, nil
		}
	}
	return markets.Snapshot{}, markets.ErrMarketNotFound
}

func (f *fixedPlatform) Search(ctx context.Context, query string, limit int) ([]markets.Snapshot, error) {
	return f.snaps, nil
}

func (f *fixedPlatform) Trending(ctx context.Context, limit int) ([]markets.Snapshot, error) {
	return f.snaps, nil
}

func probability(p float64) *float64 { return &p }

func marketToolRouter(t *testing.T, mem *Memory) *Router {
	t.Helper()
	client := &fixedPlatform{
		platform: markets.PlatformManifold,
		snaps: []markets.Snapshot{{
			ID:          "manifold-abc",
			Platform:    markets.PlatformManifold,
			Title:       "Will the Fed cut rates in March?",
			Probability: probability(0.62),
			Active:      true,
		}},
	}
	agg, err := markets.NewAggregator(client)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	r := NewRouter()
	if err := r.RegisterGroup("market", MarketTools(agg, markets.NewMatcher(0, 0), mem)); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestMarketTools_SearchRemembersResults(t *testing.T) {
	mem := NewMemory()
	r := marketToolRouter(t, mem)

	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c1", Name: "search_markets", Args: json.RawMessage(`{"query":"fed"}`),
	})

	var payload struct {
		Count   int                `json:"count"`
		Markets []markets.Snapshot `json:"markets"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("result: %v (%s)", err, msg.Content)
	}
	if payload.Count != 1 || payload.Markets[0].ID != "manifold-abc" {
		t.Fatalf("payload = %+v", payload)
	}

	if _, ok := mem.LookupMarket("manifold-abc"); !ok {
		t.Error("search result not remembered in session context")
	}
}

func TestMarketTools_MissingQueryIsNegativeResult(t *testing.T) {
	r := marketToolRouter(t, NewMemory())
	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c2", Name: "search_markets", Args: json.RawMessage(`{}`),
	})
	if !strings.Contains(msg.Content, `"success":false`) {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestSocialTools_UnconfiguredIsSoftFailure(t *testing.T) {
	t.Setenv("X_ACCESS_TOKEN", "")
	t.Setenv("X_USERNAME", "")
	x := social.NewXClientFromEnv(nil)

	r := NewRouter()
	if err := r.RegisterGroup("social", SocialTools(x)); err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c3", Name: "post_tweet", Args: json.RawMessage(`{"text":"hello"}`),
	})

	var res struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &res); err != nil {
		t.Fatalf("result: %v (%s)", err, msg.Content)
	}
	if res.Success {
		t.Error("unconfigured client reported success")
	}
	if !strings.Contains(res.Error, "not configured") {
		t.Errorf("error = %q, want a not-configured message", res.Error)
	}
}

func TestTradingTools_RiskLimits(t *testing.T) {
	engine, err := trading.NewEngine(nil, trading.DefaultRiskLimits(), nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	r := NewRouter()
	if err := r.RegisterGroup("trading", TradingTools(engine)); err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := r.Dispatch(context.Background(), llm.ToolCall{
		ID: "c4", Name: "get_risk_limits", Args: json.RawMessage(`{}`),
	})
	var limits trading.RiskLimits
	if err := json.Unmarshal([]byte(msg.Content), &limits); err != nil {
		t.Fatalf("result: %v (%s)", err, msg.Content)
	}
	if limits.MaxPositionSize != 1000 || limits.StartingBalance != 10000 {
		t.Errorf("limits = %+v", limits)
	}
}
