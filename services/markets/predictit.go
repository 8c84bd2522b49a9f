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
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	predictItBaseURL  = "https://www.predictit.org/api"
	predictItCacheTTL = time.Minute
)

// PredictIt serves its entire catalog from one endpoint and has no
// server-side search, so the client caches the full dump briefly and
// filters locally.
type predictItContract struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	URL            string   `json:"url"`
	DateEnd        string   `json:"dateEnd"`
	LastTradePrice *float64 `json:"lastTradePrice"`
	BestBuyYesCost *float64 `json:"bestBuyYesCost"`
	BestBuyNoCost  *float64 `json:"bestBuyNoCost"`
}

type predictItMarket struct {
	ShortName string              `json:"shortName"`
	URL       string              `json:"url"`
	Contracts []predictItContract `json:"contracts"`
}

type predictItCatalog struct {
	Markets []predictItMarket `json:"markets"`
}

// PredictItClient reads the PredictIt market-data API.
type PredictItClient struct {
	rest restClient

	mu        sync.Mutex
	catalog   *predictItCatalog
	fetchedAt time.Time
}

func NewPredictItClient(hc HTTPClient) *PredictItClient {
	return &PredictItClient{rest: newRESTClient(predictItBaseURL, "", hc)}
}

func (c *PredictItClient) Platform() Platform { return PlatformPredictIt }

func (c *PredictItClient) Get(ctx context.Context, nativeID string) (Snapshot, error) {
	contractID, err := strconv.ParseInt(nativeID, 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("predictit: invalid contract id %q: %w", nativeID, ErrMarketNotFound)
	}

	catalog, err := c.fetchCatalog(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, m := range catalog.Markets {
		for _, contract := range m.Contracts {
			if contract.ID == contractID {
				return c.normalize(contract, m), nil
			}
		}
	}
	return Snapshot{}, fmt.Errorf("predictit contract %s: %w", nativeID, ErrMarketNotFound)
}

func (c *PredictItClient) Search(ctx context.Context, query string, limit int) ([]Snapshot, error) {
	catalog, err := c.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit, 100)
	needle := strings.ToLower(query)
	var out []Snapshot
	for _, m := range catalog.Markets {
		for _, contract := range m.Contracts {
			if len(out) >= limit {
				return out, nil
			}
			haystack := strings.ToLower(contract.Name + " " + m.ShortName)
			if strings.Contains(haystack, needle) {
				out = append(out, c.normalize(contract, m))
			}
		}
	}
	return out, nil
}

func (c *PredictItClient) Trending(ctx context.Context, limit int) ([]Snapshot, error) {
	catalog, err := c.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var all []Snapshot
	for _, m := range catalog.Markets {
		for _, contract := range m.Contracts {
			s := c.normalize(contract, m)
			if s.Active {
				all = append(all, s)
			}
		}
	}
	// No volume data from PredictIt; most-contested prices front the list.
	sort.SliceStable(all, func(i, j int) bool {
		return contestedness(all[i]) < contestedness(all[j])
	})

	limit = clampLimit(limit, 100)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// contestedness is the distance of the YES price from 0.5; lower means
// a more actively disputed contract.
func contestedness(s Snapshot) float64 {
	if s.Probability == nil {
		return 1
	}
	d := *s.Probability - 0.5
	if d < 0 {
		d = -d
	}
	return d
}

func (c *PredictItClient) fetchCatalog(ctx context.Context) (*predictItCatalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && time.Since(c.fetchedAt) < predictItCacheTTL {
		return c.catalog, nil
	}

	var catalog predictItCatalog
	if err := c.rest.getJSON(ctx, "/marketdata/all/", nil, &catalog); err != nil {
		return nil, fmt.Errorf("predictit catalog: %w", err)
	}
	c.catalog = &catalog
	c.fetchedAt = time.Now()
	return c.catalog, nil
}

func (c *PredictItClient) normalize(contract predictItContract, market predictItMarket) Snapshot {
	var closeTime *time.Time
	if contract.DateEnd != "" && contract.DateEnd != "N/A" {
		if t, err := time.Parse(time.RFC3339, contract.DateEnd); err == nil {
			closeTime = &t
		}
	}

	var yes *float64
	switch {
	case contract.LastTradePrice != nil:
		yes = contract.LastTradePrice
	case contract.BestBuyYesCost != nil:
		yes = contract.BestBuyYesCost
	}

	s := Snapshot{
		ID:          PlatformPredictIt.MarketID(strconv.FormatInt(contract.ID, 10)),
		Platform:    PlatformPredictIt,
		Title:       contract.Name,
		Description: market.ShortName,
		URL:         firstNonEmpty(contract.URL, market.URL),
		Probability: yes,
		CloseTime:   closeTime,
		Resolved:    contract.Status == "Closed",
	}
	if yes != nil {
		s.YesPrice = yes
		if contract.BestBuyNoCost != nil {
			s.NoPrice = contract.BestBuyNoCost
		} else {
			s.NoPrice = floatPtr(1 - *yes)
		}
	}
	s.Active = activeFrom(s.Resolved, s.CloseTime)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
