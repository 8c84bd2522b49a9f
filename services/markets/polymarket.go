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
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	polymarketGammaURL = "https://gamma-api.polymarket.com"
	polymarketClobURL  = "https://clob.polymarket.com"
)

// polymarketMarket mirrors the Gamma API market shape. Prices arrive as
// a JSON-encoded string of a string array ("[\"0.62\", \"0.38\"]"), so
// they are decoded in a second pass.
type polymarketMarket struct {
	ID             string   `json:"id"`
	ConditionID    string   `json:"conditionId"`
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	Slug           string   `json:"slug"`
	OutcomePrices  string   `json:"outcomePrices"`
	LastTradePrice *float64 `json:"lastTradePrice"`
	Volume         string   `json:"volume"`
	Volume24hr     float64  `json:"volume24hr"`
	Liquidity      string   `json:"liquidity"`
	EndDateISO     string   `json:"endDateIso"`
	Closed         bool     `json:"closed"`
	Active         bool     `json:"active"`
	ClobTokenIDs   string   `json:"clobTokenIds"`
}

type polymarketBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type polymarketBook struct {
	Bids []polymarketBookLevel `json:"bids"`
	Asks []polymarketBookLevel `json:"asks"`
}

// PolymarketClient reads Polymarket's Gamma metadata API, plus the CLOB
// API for order books.
type PolymarketClient struct {
	gamma restClient
	clob  restClient
}

func NewPolymarketClient(apiKey string, hc HTTPClient) *PolymarketClient {
	return &PolymarketClient{
		gamma: newRESTClient(polymarketGammaURL, apiKey, hc),
		clob:  newRESTClient(polymarketClobURL, apiKey, hc),
	}
}

func (c *PolymarketClient) Platform() Platform { return PlatformPolymarket }

func (c *PolymarketClient) Get(ctx context.Context, nativeID string) (Snapshot, error) {
	var m polymarketMarket
	if err := c.gamma.getJSON(ctx, "/markets/"+url.PathEscape(nativeID), nil, &m); err != nil {
		return Snapshot{}, fmt.Errorf("polymarket get %s: %w", nativeID, err)
	}
	return c.normalize(m), nil
}

// Search fetches active markets from the Gamma API and filters by
// title/description locally; Gamma has no free-text search endpoint.
func (c *PolymarketClient) Search(ctx context.Context, query string, limit int) ([]Snapshot, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(clampLimit(limit, 100) * 5)},
		"active": {"true"},
		"closed": {"false"},
	}
	var raw []polymarketMarket
	if err := c.gamma.getJSON(ctx, "/markets", q, &raw); err != nil {
		return nil, fmt.Errorf("polymarket search %q: %w", query, err)
	}

	limit = clampLimit(limit, 100)
	needle := strings.ToLower(query)
	var out []Snapshot
	for _, m := range raw {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(m.Question), needle) ||
			strings.Contains(strings.ToLower(m.Description), needle) {
			out = append(out, c.normalize(m))
		}
	}
	return out, nil
}

func (c *PolymarketClient) Trending(ctx context.Context, limit int) ([]Snapshot, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(clampLimit(limit, 100))},
		"active": {"true"},
		"closed": {"false"},
		"order":  {"volume24hr"},
		"ascending": {"false"},
	}
	var raw []polymarketMarket
	if err := c.gamma.getJSON(ctx, "/markets", q, &raw); err != nil {
		return nil, fmt.Errorf("polymarket trending: %w", err)
	}
	out := make([]Snapshot, 0, len(raw))
	for _, m := range raw {
		out = append(out, c.normalize(m))
	}
	return out, nil
}

// OrderBook reads CLOB depth for the market's first outcome token.
func (c *PolymarketClient) OrderBook(ctx context.Context, nativeID string) (OrderBook, error) {
	var m polymarketMarket
	if err := c.gamma.getJSON(ctx, "/markets/"+url.PathEscape(nativeID), nil, &m); err != nil {
		return OrderBook{}, fmt.Errorf("polymarket orderbook %s: %w", nativeID, err)
	}

	tokenIDs := decodeStringArray(m.ClobTokenIDs)
	if len(tokenIDs) == 0 {
		return OrderBook{}, fmt.Errorf("polymarket orderbook %s: no CLOB tokens: %w", nativeID, ErrMarketNotFound)
	}

	var book polymarketBook
	q := url.Values{"token_id": {tokenIDs[0]}}
	if err := c.clob.getJSON(ctx, "/book", q, &book); err != nil {
		return OrderBook{}, fmt.Errorf("polymarket orderbook %s: %w", nativeID, err)
	}

	out := OrderBook{
		MarketID: PlatformPolymarket.MarketID(nativeID),
		Platform: PlatformPolymarket,
	}
	for _, lvl := range book.Bids {
		out.Bids = append(out.Bids, toOrderLevel(lvl))
	}
	for _, lvl := range book.Asks {
		out.Asks = append(out.Asks, toOrderLevel(lvl))
	}
	return out, nil
}

func toOrderLevel(lvl polymarketBookLevel) OrderLevel {
	price, _ := strconv.ParseFloat(lvl.Price, 64)
	size, _ := strconv.ParseFloat(lvl.Size, 64)
	return OrderLevel{Price: price, Size: size}
}

func (c *PolymarketClient) normalize(m polymarketMarket) Snapshot {
	var closeTime *time.Time
	if m.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
			closeTime = &t
		} else if t, err := time.Parse("2006-01-02", m.EndDateISO); err == nil {
			closeTime = &t
		}
	}

	nativeID := m.ConditionID
	if nativeID == "" {
		nativeID = m.ID
	}

	s := Snapshot{
		ID:          PlatformPolymarket.MarketID(nativeID),
		Platform:    PlatformPolymarket,
		Title:       m.Question,
		Description: m.Description,
		Volume:      parseLooseFloat(m.Volume),
		Volume24h:   m.Volume24hr,
		Liquidity:   parseLooseFloat(m.Liquidity),
		CloseTime:   closeTime,
		Resolved:    m.Closed,
	}
	if m.Slug != "" {
		s.URL = "https://polymarket.com/event/" + m.Slug
	}

	if prices := decodeStringArray(m.OutcomePrices); len(prices) >= 2 {
		if yes, err := strconv.ParseFloat(prices[0], 64); err == nil {
			s.Probability = floatPtr(yes)
			s.YesPrice = floatPtr(yes)
		}
		if no, err := strconv.ParseFloat(prices[1], 64); err == nil {
			s.NoPrice = floatPtr(no)
		}
	}
	if s.Probability == nil && m.LastTradePrice != nil {
		s.Probability = m.LastTradePrice
		s.YesPrice = m.LastTradePrice
		s.NoPrice = floatPtr(1 - *m.LastTradePrice)
	}

	s.Active = activeFrom(s.Resolved, s.CloseTime) && m.Active
	return s
}

// decodeStringArray decodes Gamma's doubly encoded arrays, e.g.
// "[\"0.62\", \"0.38\"]" -> ["0.62", "0.38"]. Returns nil on any shape
// mismatch; callers treat that as "no data".
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func parseLooseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
