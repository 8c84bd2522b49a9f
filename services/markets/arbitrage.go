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
	"sort"
	"strings"
)

// DefaultMinSimilarity is the title-overlap floor for treating two
// markets as the same underlying event.
const DefaultMinSimilarity = 0.5

// DefaultMinSpread is the minimum cross-platform probability spread
// worth reporting, in probability points.
const DefaultMinSpread = 0.05

// stopWords are dropped before title comparison. Prediction-market
// titles are dominated by question scaffolding ("will", "by", "the")
// that carries no signal about the underlying event.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {},
	"by": {}, "do": {}, "does": {}, "for": {}, "in": {},
	"is": {}, "it": {}, "market": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "this": {}, "to": {}, "what": {}, "when": {},
	"which": {}, "who": {}, "will": {}, "with": {},
}

// Opportunity is a pair of markets on different platforms that appear
// to price the same event differently.
type Opportunity struct {
	BuyMarket  Snapshot `json:"buy_market"`
	SellMarket Snapshot `json:"sell_market"`
	Spread     float64  `json:"spread"`
	Similarity float64  `json:"similarity"`
}

// Matcher finds cross-platform arbitrage candidates by fuzzy title
// matching. It is stateless and safe for concurrent use.
type Matcher struct {
	minSimilarity float64
	minSpread     float64
}

// NewMatcher builds a matcher. Non-positive thresholds fall back to the
// package defaults.
func NewMatcher(minSimilarity, minSpread float64) *Matcher {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if minSpread <= 0 {
		minSpread = DefaultMinSpread
	}
	return &Matcher{minSimilarity: minSimilarity, minSpread: minSpread}
}

// FindOpportunities compares every market against every market on a
// different platform and returns pairs whose titles overlap at least
// minSimilarity and whose probabilities differ by at least minSpread.
// Each pair is reported once regardless of comparison order, with the
// cheaper market as the buy side. Results are sorted by spread,
// largest first.
func (m *Matcher) FindOpportunities(byPlatform map[Platform][]Snapshot) []Opportunity {
	type entry struct {
		snap  Snapshot
		words map[string]struct{}
		prob  float64
	}

	var entries []entry
	for _, snaps := range byPlatform {
		for _, s := range snaps {
			// Only live markets can be traded against.
			if s.Probability == nil || !s.Active {
				continue
			}
			words := titleWords(s.Title)
			if len(words) == 0 {
				continue
			}
			entries = append(entries, entry{snap: s, words: words, prob: *s.Probability})
		}
	}

	seen := make(map[string]struct{})
	var out []Opportunity
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if a.snap.Platform == b.snap.Platform {
				continue
			}

			key := pairKey(a.snap.ID, b.snap.ID)
			if _, dup := seen[key]; dup {
				continue
			}

			sim := similarity(a.words, b.words)
			if sim < m.minSimilarity {
				continue
			}

			spread := a.prob - b.prob
			if spread < 0 {
				spread = -spread
				a, b = b, a
			}
			if spread < m.minSpread {
				continue
			}
			seen[key] = struct{}{}

			// a now holds the richer price; buy where it is cheap.
			out = append(out, Opportunity{
				BuyMarket:  b.snap,
				SellMarket: a.snap,
				Spread:     spread,
				Similarity: sim,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Spread > out[j].Spread })
	return out
}

// Scan searches every platform for the query and matches the combined
// results. Fan-out failures on individual platforms reduce the
// candidate pool but never fail the scan.
func (m *Matcher) Scan(ctx context.Context, agg *Aggregator, query string, perPlatformLimit int) []Opportunity {
	return m.FindOpportunities(agg.SearchAll(ctx, query, perPlatformLimit))
}

// similarity is overlap-over-smaller-set: |A ∩ B| / min(|A|, |B|).
// It rewards one title being a subset of a wordier phrasing of the
// same question, which plain Jaccard would penalize.
func similarity(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}
	overlap := 0
	for w := range small {
		if _, ok := large[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(small))
}

// titleWords lowercases, strips punctuation, and drops stop words.
func titleWords(title string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, title)

	words := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// pairKey is order-independent so (A,B) and (B,A) dedup to one entry.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
