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
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const manifoldBaseURL = "https://api.manifold.markets/v0"

// manifoldMarket mirrors the fields we consume from the Manifold API.
// Docs: https://docs.manifold.markets/api
type manifoldMarket struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	TextDescription string   `json:"textDescription"`
	URL             string   `json:"url"`
	CreatorUsername string   `json:"creatorUsername"`
	Slug            string   `json:"slug"`
	Probability     *float64 `json:"probability"`
	Volume          float64  `json:"volume"`
	Volume24Hours   float64  `json:"volume24Hours"`
	TotalLiquidity  float64  `json:"totalLiquidity"`
	CloseTime       int64    `json:"closeTime"` // unix millis
	IsResolved      bool     `json:"isResolved"`
}

type manifoldBet struct {
	CreatedTime int64    `json:"createdTime"` // unix millis
	ProbAfter   *float64 `json:"probAfter"`
}

// ManifoldClient reads the Manifold Markets public API.
type ManifoldClient struct {
	rest restClient
}

// NewManifoldClient builds a client. The API key is optional; all
// endpoints used here are public.
func NewManifoldClient(apiKey string, hc HTTPClient) *ManifoldClient {
	return &ManifoldClient{rest: newRESTClient(manifoldBaseURL, apiKey, hc)}
}

func (c *ManifoldClient) Platform() Platform { return PlatformManifold }

func (c *ManifoldClient) Get(ctx context.Context, nativeID string) (Snapshot, error) {
	var m manifoldMarket
	if err := c.rest.getJSON(ctx, "/market/"+url.PathEscape(nativeID), nil, &m); err != nil {
		return Snapshot{}, fmt.Errorf("manifold get %s: %w", nativeID, err)
	}
	return c.normalize(m), nil
}

func (c *ManifoldClient) Search(ctx context.Context, query string, limit int) ([]Snapshot, error) {
	q := url.Values{
		"term":   {query},
		"limit":  {strconv.Itoa(clampLimit(limit, 1000))},
		"sort":   {"score"},
		"filter": {"open"},
	}
	var raw []manifoldMarket
	if err := c.rest.getJSON(ctx, "/search-markets", q, &raw); err != nil {
		return nil, fmt.Errorf("manifold search %q: %w", query, err)
	}
	return c.normalizeAll(raw), nil
}

func (c *ManifoldClient) Trending(ctx context.Context, limit int) ([]Snapshot, error) {
	q := url.Values{
		"term":   {""},
		"limit":  {strconv.Itoa(clampLimit(limit, 1000))},
		"sort":   {"score"},
		"filter": {"open"},
	}
	var raw []manifoldMarket
	if err := c.rest.getJSON(ctx, "/search-markets", q, &raw); err != nil {
		return nil, fmt.Errorf("manifold trending: %w", err)
	}
	return c.normalizeAll(raw), nil
}

// History reconstructs a price series from the market's bet feed.
func (c *ManifoldClient) History(ctx context.Context, nativeID string, window time.Duration) ([]PricePoint, error) {
	q := url.Values{
		"contractId": {nativeID},
		"limit":      {"1000"},
	}
	var bets []manifoldBet
	if err := c.rest.getJSON(ctx, "/bets", q, &bets); err != nil {
		return nil, fmt.Errorf("manifold history %s: %w", nativeID, err)
	}

	cutoff := time.Now().Add(-window)
	var points []PricePoint
	// The bet feed is newest-first; walk backwards so points come out ordered.
	for i := len(bets) - 1; i >= 0; i-- {
		b := bets[i]
		if b.ProbAfter == nil {
			continue
		}
		ts := time.UnixMilli(b.CreatedTime)
		if ts.Before(cutoff) {
			continue
		}
		points = append(points, PricePoint{Timestamp: ts, YesPrice: *b.ProbAfter})
	}
	return points, nil
}

func (c *ManifoldClient) normalizeAll(raw []manifoldMarket) []Snapshot {
	out := make([]Snapshot, 0, len(raw))
	for _, m := range raw {
		out = append(out, c.normalize(m))
	}
	return out
}

func (c *ManifoldClient) normalize(m manifoldMarket) Snapshot {
	var closeTime *time.Time
	if m.CloseTime > 0 {
		t := time.UnixMilli(m.CloseTime)
		closeTime = &t
	}

	s := Snapshot{
		ID:          PlatformManifold.MarketID(m.ID),
		Platform:    PlatformManifold,
		Title:       m.Question,
		Description: m.TextDescription,
		URL:         m.URL,
		Probability: m.Probability,
		Volume:      m.Volume,
		Volume24h:   m.Volume24Hours,
		Liquidity:   m.TotalLiquidity,
		CloseTime:   closeTime,
		Resolved:    m.IsResolved,
	}
	if s.URL == "" {
		s.URL = fmt.Sprintf("https://manifold.markets/%s/%s", m.CreatorUsername, m.Slug)
	}
	if m.Probability != nil {
		s.YesPrice = m.Probability
		s.NoPrice = floatPtr(1 - *m.Probability)
	}
	s.Active = activeFrom(s.Resolved, s.CloseTime)
	return s
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return 20
	}
	if limit > max {
		return max
	}
	return limit
}
