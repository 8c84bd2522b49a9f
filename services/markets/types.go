// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package markets aggregates prediction-market data from several
// independent platforms behind one normalized Snapshot type.
//
// Every market ID handed out by this package carries a platform token
// prefix ("pm-", "manifold-", "metaculus-", "predictit-") so that direct
// lookups can be routed back to the owning platform client.
package markets

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies a prediction-market data source.
type Platform string

const (
	PlatformPolymarket Platform = "polymarket"
	PlatformManifold   Platform = "manifold"
	PlatformMetaculus  Platform = "metaculus"
	PlatformPredictIt  Platform = "predictit"
)

// idPrefix returns the fixed market-ID token for the platform,
// without the trailing dash.
func (p Platform) idPrefix() string {
	if p == PlatformPolymarket {
		return "pm"
	}
	return string(p)
}

// MarketID builds the externally visible market ID for a native platform ID.
func (p Platform) MarketID(nativeID string) string {
	return p.idPrefix() + "-" + nativeID
}

// allPlatforms is the fixed probing order used when a market-ID prefix
// is not recognized. The order is deterministic, not meaningful.
var allPlatforms = []Platform{
	PlatformPolymarket,
	PlatformManifold,
	PlatformMetaculus,
	PlatformPredictIt,
}

// SplitMarketID splits "<token>-<native>" into the owning platform and
// the native ID. ok is false when the token is not a known platform.
func SplitMarketID(marketID string) (Platform, string, bool) {
	for _, p := range allPlatforms {
		prefix := p.idPrefix() + "-"
		if strings.HasPrefix(marketID, prefix) {
			return p, strings.TrimPrefix(marketID, prefix), true
		}
	}
	return "", marketID, false
}

// Snapshot is the normalized, source-tagged view of one market.
// It is an immutable value object; nothing in this package retains
// or mutates a Snapshot after returning it.
type Snapshot struct {
	ID          string   `json:"id"`
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`

	// Probability is the YES probability in [0,1], nil when the platform
	// has no current price for the market.
	Probability *float64 `json:"probability,omitempty"`
	YesPrice    *float64 `json:"yes_price,omitempty"`
	NoPrice     *float64 `json:"no_price,omitempty"`

	Volume    float64 `json:"volume"`
	Volume24h float64 `json:"volume_24h"`
	Liquidity float64 `json:"liquidity,omitempty"`

	CloseTime *time.Time `json:"close_time,omitempty"`
	Resolved  bool       `json:"resolved"`
	Active    bool       `json:"active"`
}

// FormattedProbability renders the probability as a percentage string,
// or "N/A" when absent.
func (s Snapshot) FormattedProbability() string {
	if s.Probability == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *s.Probability*100)
}

// PricePoint is one sample of a market's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	YesPrice  float64   `json:"yes_price"`
}

// OrderLevel is one side level of an order book.
type OrderLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds bid/ask depth for a market, on platforms that expose it.
type OrderBook struct {
	MarketID string       `json:"market_id"`
	Platform Platform     `json:"platform"`
	Bids     []OrderLevel `json:"bids"`
	Asks     []OrderLevel `json:"asks"`
}

// activeFrom derives the Active flag the same way for every platform:
// a market is active while it is unresolved and its close time, when
// known, has not passed.
func activeFrom(resolved bool, closeTime *time.Time) bool {
	if resolved {
		return false
	}
	if closeTime != nil && time.Now().After(*closeTime) {
		return false
	}
	return true
}

// floatPtr is a small helper for optional prices.
func floatPtr(v float64) *float64 { return &v }
