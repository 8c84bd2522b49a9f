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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/social"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

// --- Schema helpers ---

func objSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// --- Argument helpers ---

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argFloat(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

func argInt(args map[string]any, key string, fallback int) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return fallback
}

func jsonResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool result: %w", err)
	}
	return string(b), nil
}

// --- Market tools ---

// MarketTools builds the market research group. Fetched snapshots are
// remembered in the session memory so later turns can refer back to
// them without refetching.
func MarketTools(agg *markets.Aggregator, matcher *markets.Matcher, mem *Memory) []Tool {
	remember := func(snaps ...markets.Snapshot) {
		if mem == nil {
			return
		}
		for _, s := range snaps {
			mem.RememberMarket(s)
		}
	}

	return []Tool{
		{
			Schema: llm.ToolSchema{
				Name:        "search_markets",
				Description: "Search all prediction market platforms (Polymarket, Manifold, Metaculus, PredictIt) for markets matching a query. Results from all platforms are interleaved.",
				InputSchema: objSchema(map[string]any{
					"query": strProp("Search terms, e.g. 'fed rate cut march'"),
					"limit": intProp("Maximum total results (default 15)"),
				}, "query"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				query := argString(args, "query")
				if query == "" {
					return "", fmt.Errorf("query is required")
				}
				snaps := agg.SearchAllFlat(ctx, query, argInt(args, "limit", 15))
				remember(snaps...)
				return jsonResult(map[string]any{"count": len(snaps), "markets": snaps})
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_market",
				Description: "Fetch one market by its prefixed ID (pm-, manifold-, metaculus-, predictit-). Unprefixed IDs are probed across all platforms.",
				InputSchema: objSchema(map[string]any{
					"market_id": strProp("Prefixed market ID, e.g. 'manifold-abc123'"),
				}, "market_id"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				id := argString(args, "market_id")
				if id == "" {
					return "", fmt.Errorf("market_id is required")
				}
				snap, err := agg.Get(ctx, id)
				if err != nil {
					return "", err
				}
				remember(snap)
				return jsonResult(snap)
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_trending_markets",
				Description: "Fetch the currently most active markets from every platform.",
				InputSchema: objSchema(map[string]any{
					"limit": intProp("Results per platform (default 5)"),
				}),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				byPlatform := agg.TrendingAll(ctx, argInt(args, "limit", 5))
				for _, snaps := range byPlatform {
					remember(snaps...)
				}
				return jsonResult(byPlatform)
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "find_arbitrage",
				Description: "Scan all platforms for cross-platform price discrepancies on similar markets. Returns opportunities sorted by spread.",
				InputSchema: objSchema(map[string]any{
					"query":      strProp("Topic to scan, e.g. 'presidential election'"),
					"min_spread": numProp("Minimum probability spread to report (default 0.05)"),
				}, "query"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				query := argString(args, "query")
				if query == "" {
					return "", fmt.Errorf("query is required")
				}
				m := matcher
				if spread := argFloat(args, "min_spread", 0); spread > 0 {
					m = markets.NewMatcher(0, spread)
				}
				opps := m.Scan(ctx, agg, query, 20)
				return jsonResult(map[string]any{"count": len(opps), "opportunities": opps})
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_price_history",
				Description: "Fetch recent price history for a market, where the platform supports it (currently Manifold).",
				InputSchema: objSchema(map[string]any{
					"market_id": strProp("Prefixed market ID"),
					"days":      intProp("Window in days (default 7)"),
				}, "market_id"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				id := argString(args, "market_id")
				if id == "" {
					return "", fmt.Errorf("market_id is required")
				}
				days := argInt(args, "days", 7)
				points, err := agg.History(ctx, id, time.Duration(days)*24*time.Hour)
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]any{"market_id": id, "days": days, "points": points})
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_order_book",
				Description: "Fetch order book depth for a market, where the platform supports it (currently Polymarket).",
				InputSchema: objSchema(map[string]any{
					"market_id": strProp("Prefixed market ID"),
				}, "market_id"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				id := argString(args, "market_id")
				if id == "" {
					return "", fmt.Errorf("market_id is required")
				}
				book, err := agg.OrderBook(ctx, id)
				if err != nil {
					return "", err
				}
				return jsonResult(book)
			},
		},
	}
}

// --- Social tools ---

// SocialTools builds the X posting group. An unconfigured client still
// registers; every call then yields a negative tool result naming the
// missing credential, never a panic or aborted turn.
func SocialTools(x *social.XClient) []Tool {
	// Unconfigured posting surfaces through the router's standard
	// error-result shape.
	guard := func(h HandlerFunc) HandlerFunc {
		return func(ctx context.Context, args map[string]any) (string, error) {
			if !x.Configured() {
				return "", fmt.Errorf("not configured: X posting requires X_ACCESS_TOKEN")
			}
			return h(ctx, args)
		}
	}

	return []Tool{
		{
			Schema: llm.ToolSchema{
				Name:        "post_tweet",
				Description: "Post a single tweet (max 280 characters).",
				InputSchema: objSchema(map[string]any{
					"text": strProp("Tweet text"),
				}, "text"),
			},
			Handler: guard(func(ctx context.Context, args map[string]any) (string, error) {
				res, err := x.Post(ctx, argString(args, "text"))
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			}),
		},
		{
			Schema: llm.ToolSchema{
				Name:        "post_thread",
				Description: "Post a thread. Long text is split into numbered tweet-sized chunks automatically.",
				InputSchema: objSchema(map[string]any{
					"text": strProp("Full thread text; paragraphs become tweet boundaries"),
				}, "text"),
			},
			Handler: guard(func(ctx context.Context, args map[string]any) (string, error) {
				chunks := social.SplitThread(argString(args, "text"))
				res, err := x.PostThread(ctx, chunks)
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			}),
		},
		{
			Schema: llm.ToolSchema{
				Name:        "reply_to_tweet",
				Description: "Reply to an existing tweet.",
				InputSchema: objSchema(map[string]any{
					"tweet_id": strProp("ID of the tweet to reply to"),
					"text":     strProp("Reply text"),
				}, "tweet_id", "text"),
			},
			Handler: guard(func(ctx context.Context, args map[string]any) (string, error) {
				res, err := x.Reply(ctx, argString(args, "tweet_id"), argString(args, "text"))
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			}),
		},
		{
			Schema: llm.ToolSchema{
				Name:        "quote_tweet",
				Description: "Quote an existing tweet with commentary.",
				InputSchema: objSchema(map[string]any{
					"tweet_id": strProp("ID of the tweet to quote"),
					"text":     strProp("Commentary text"),
				}, "tweet_id", "text"),
			},
			Handler: guard(func(ctx context.Context, args map[string]any) (string, error) {
				res, err := x.Quote(ctx, argString(args, "tweet_id"), argString(args, "text"))
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			}),
		},
	}
}

// --- Trading tools ---

// TradingTools builds the paper-trading group.
func TradingTools(engine *trading.Engine) []Tool {
	return []Tool{
		{
			Schema: llm.ToolSchema{
				Name:        "get_portfolio",
				Description: "Show the paper-trading portfolio: balance, open positions marked to market, realized and unrealized P&L.",
				InputSchema: objSchema(map[string]any{}),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return jsonResult(engine.Portfolio(ctx))
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "open_position",
				Description: "Open a simulated position on a market at the current price. Subject to risk limits.",
				InputSchema: objSchema(map[string]any{
					"market_id": strProp("Prefixed market ID"),
					"side":      strProp("'yes' or 'no'"),
					"amount":    numProp("Dollars to commit"),
				}, "market_id", "side", "amount"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				pos, err := engine.Buy(ctx,
					argString(args, "market_id"),
					argString(args, "side"),
					argFloat(args, "amount", 0))
				if err != nil {
					return "", err
				}
				return jsonResult(pos)
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "close_position",
				Description: "Close an open paper position at the current price and realize the P&L.",
				InputSchema: objSchema(map[string]any{
					"position_id": strProp("ID returned when the position was opened"),
				}, "position_id"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				pos, err := engine.Close(ctx, argString(args, "position_id"))
				if err != nil {
					return "", err
				}
				return jsonResult(pos)
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "execute_arbitrage",
				Description: "Open both legs of a cross-platform arbitrage: YES on the cheaper market, NO on the richer one. Both legs are risk-checked before either opens.",
				InputSchema: objSchema(map[string]any{
					"buy_market_id":  strProp("Cheaper market (YES leg)"),
					"sell_market_id": strProp("Richer market (NO leg)"),
					"amount":         numProp("Dollars per leg"),
				}, "buy_market_id", "sell_market_id", "amount"),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				exec, err := engine.ExecuteArbitrage(ctx,
					argString(args, "buy_market_id"),
					argString(args, "sell_market_id"),
					argFloat(args, "amount", 0))
				if err != nil {
					return "", err
				}
				return jsonResult(exec)
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_risk_limits",
				Description: "Show the active pre-trade risk limits.",
				InputSchema: objSchema(map[string]any{}),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return jsonResult(engine.Limits())
			},
		},
	}
}
