// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package markets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var aggTracer = otel.Tracer("oracle.markets")

// Aggregator fans queries out to every configured platform client and
// assembles normalized results.
//
// Failure isolation is the core contract: one slow or broken platform
// must never fail or delay the others. Fan-out methods absorb each
// platform's error into an empty result slice for that platform, log it,
// and return whatever the rest produced.
type Aggregator struct {
	clients []Client
	byPlat  map[Platform]Client
}

// NewAggregator builds an aggregator over the given clients. Client
// order fixes the fallback probing order of Get and the interleaving
// order of SearchAllFlat. Duplicate platforms are a construction error.
func NewAggregator(clients ...Client) (*Aggregator, error) {
	if len(clients) == 0 {
		return nil, errors.New("markets: aggregator needs at least one client")
	}
	byPlat := make(map[Platform]Client, len(clients))
	for _, c := range clients {
		if _, dup := byPlat[c.Platform()]; dup {
			return nil, fmt.Errorf("markets: duplicate client for platform %s", c.Platform())
		}
		byPlat[c.Platform()] = c
	}
	return &Aggregator{clients: clients, byPlat: byPlat}, nil
}

// DefaultAggregator wires the four public platform clients with a shared
// HTTP client (nil means a 30s-timeout default per client).
func DefaultAggregator(hc HTTPClient) *Aggregator {
	agg, _ := NewAggregator(
		NewPolymarketClient("", hc),
		NewManifoldClient("", hc),
		NewMetaculusClient("", hc),
		NewPredictItClient(hc),
	)
	return agg
}

// Platforms returns the configured platforms in client order.
func (a *Aggregator) Platforms() []Platform {
	out := make([]Platform, len(a.clients))
	for i, c := range a.clients {
		out[i] = c.Platform()
	}
	return out
}

// Client returns the configured client for a platform, or nil.
func (a *Aggregator) Client(p Platform) Client { return a.byPlat[p] }

// SearchAll queries every platform concurrently and returns a map of
// per-platform results. A platform that errors contributes an empty
// slice; the error is logged, never returned. The map is only assembled
// after every platform call has settled.
func (a *Aggregator) SearchAll(ctx context.Context, query string, perPlatformLimit int) map[Platform][]Snapshot {
	return a.fanOut(ctx, "search_all", func(ctx context.Context, c Client) ([]Snapshot, error) {
		return c.Search(ctx, query, perPlatformLimit)
	})
}

// TrendingAll fetches trending markets from every platform concurrently,
// with the same isolation semantics as SearchAll.
func (a *Aggregator) TrendingAll(ctx context.Context, perPlatformLimit int) map[Platform][]Snapshot {
	return a.fanOut(ctx, "trending_all", func(ctx context.Context, c Client) ([]Snapshot, error) {
		return c.Trending(ctx, perPlatformLimit)
	})
}

// fanOut runs one goroutine per configured client and joins them all
// before returning. Panics inside a platform call are recovered and
// treated like any other per-platform failure.
func (a *Aggregator) fanOut(ctx context.Context, op string, call func(context.Context, Client) ([]Snapshot, error)) map[Platform][]Snapshot {
	ctx, span := aggTracer.Start(ctx, "Aggregator."+op)
	defer span.End()
	span.SetAttributes(attribute.Int("platform_count", len(a.clients)))

	results := make(map[Platform][]Snapshot, len(a.clients))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range a.clients {
		g.Go(func() error {
			snaps, err := func() (out []Snapshot, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("panic in %s client: %v", c.Platform(), r)
					}
				}()
				return call(ctx, c)
			}()
			if err != nil {
				slog.Warn("platform call failed, returning empty result for source",
					"op", op, "platform", c.Platform(), "error", err)
				snaps = []Snapshot{}
			}
			if snaps == nil {
				snaps = []Snapshot{}
			}
			mu.Lock()
			results[c.Platform()] = snaps
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait is purely a join point.
	_ = g.Wait()
	return results
}

// SearchAllFlat searches every platform and interleaves the results
// round-robin (index 0 from each platform, then index 1, ...) so no
// single platform dominates the head of the combined list. The result
// is capped at limit.
func (a *Aggregator) SearchAllFlat(ctx context.Context, query string, limit int) []Snapshot {
	if limit <= 0 {
		limit = 50
	}
	perPlatform := limit / len(a.clients)
	if perPlatform < 10 {
		perPlatform = 10
	}

	byPlatform := a.SearchAll(ctx, query, perPlatform)
	return interleave(a.Platforms(), byPlatform, limit)
}

// interleave merges per-platform slices round-robin in the given
// platform order, stopping at limit.
func interleave(order []Platform, byPlatform map[Platform][]Snapshot, limit int) []Snapshot {
	maxLen := 0
	for _, snaps := range byPlatform {
		if len(snaps) > maxLen {
			maxLen = len(snaps)
		}
	}

	out := make([]Snapshot, 0, limit)
	for i := 0; i < maxLen; i++ {
		for _, p := range order {
			snaps := byPlatform[p]
			if i < len(snaps) {
				out = append(out, snaps[i])
				if len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

// Get resolves a single market by its prefixed ID. A recognized prefix
// routes to exactly that platform's client. Unrecognized prefixes fall
// back to probing every configured client in construction order and
// returning the first hit. Returns ErrMarketNotFound when no client
// knows the market.
func (a *Aggregator) Get(ctx context.Context, marketID string) (Snapshot, error) {
	ctx, span := aggTracer.Start(ctx, "Aggregator.get")
	defer span.End()

	platform, nativeID, ok := SplitMarketID(marketID)
	if ok {
		client := a.byPlat[platform]
		if client == nil {
			return Snapshot{}, fmt.Errorf("market %s: platform %s not configured: %w", marketID, platform, ErrMarketNotFound)
		}
		snap, err := client.Get(ctx, nativeID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("market %s: %w", marketID, err)
		}
		return snap, nil
	}

	// Unknown prefix: probe every platform in fixed order.
	slog.Debug("market ID prefix not recognized, probing all platforms", "market_id", marketID)
	for _, c := range a.clients {
		snap, err := c.Get(ctx, marketID)
		if err == nil {
			return snap, nil
		}
	}
	return Snapshot{}, fmt.Errorf("market %s: %w", marketID, ErrMarketNotFound)
}

// History fetches price history for a market when the owning platform
// supports it.
func (a *Aggregator) History(ctx context.Context, marketID string, window time.Duration) ([]PricePoint, error) {
	platform, nativeID, ok := SplitMarketID(marketID)
	if !ok {
		return nil, fmt.Errorf("market %s: %w", marketID, ErrMarketNotFound)
	}
	client := a.byPlat[platform]
	if client == nil {
		return nil, fmt.Errorf("market %s: platform %s not configured: %w", marketID, platform, ErrMarketNotFound)
	}
	hp, ok := client.(HistoryProvider)
	if !ok {
		return nil, fmt.Errorf("platform %s does not expose price history", platform)
	}
	return hp.History(ctx, nativeID, window)
}

// OrderBook fetches order-book depth for a market when the owning
// platform supports it.
func (a *Aggregator) OrderBook(ctx context.Context, marketID string) (OrderBook, error) {
	platform, nativeID, ok := SplitMarketID(marketID)
	if !ok {
		return OrderBook{}, fmt.Errorf("market %s: %w", marketID, ErrMarketNotFound)
	}
	client := a.byPlat[platform]
	if client == nil {
		return OrderBook{}, fmt.Errorf("market %s: platform %s not configured: %w", marketID, platform, ErrMarketNotFound)
	}
	ob, ok := client.(OrderBookProvider)
	if !ok {
		return OrderBook{}, fmt.Errorf("platform %s does not expose an order book", platform)
	}
	return ob.OrderBook(ctx, nativeID)
}
