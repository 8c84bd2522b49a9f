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
	"time"
)

const metaculusBaseURL = "https://www.metaculus.com/api2"

// metaculusQuestion mirrors the fields we consume from the Metaculus API.
// Metaculus has no tradeable volume; the prediction count serves as an
// activity proxy, matching how the rest of the system ranks markets.
type metaculusQuestion struct {
	ID                  int64           `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	URL                 string          `json:"url"`
	CloseTime           string          `json:"close_time"`
	Resolution          *float64        `json:"resolution"`
	NumberOfPredictions float64         `json:"number_of_predictions"`
	CommunityPrediction json.RawMessage `json:"community_prediction"`
}

type metaculusPage struct {
	Results []metaculusQuestion `json:"results"`
}

// MetaculusClient reads the Metaculus forecasting API.
type MetaculusClient struct {
	rest restClient
}

func NewMetaculusClient(apiKey string, hc HTTPClient) *MetaculusClient {
	return &MetaculusClient{rest: newRESTClient(metaculusBaseURL, apiKey, hc)}
}

func (c *MetaculusClient) Platform() Platform { return PlatformMetaculus }

func (c *MetaculusClient) Get(ctx context.Context, nativeID string) (Snapshot, error) {
	var q metaculusQuestion
	if err := c.rest.getJSON(ctx, "/questions/"+url.PathEscape(nativeID)+"/", nil, &q); err != nil {
		return Snapshot{}, fmt.Errorf("metaculus get %s: %w", nativeID, err)
	}
	return c.normalize(q), nil
}

func (c *MetaculusClient) Search(ctx context.Context, query string, limit int) ([]Snapshot, error) {
	q := url.Values{
		"search":   {query},
		"limit":    {strconv.Itoa(clampLimit(limit, 100))},
		"status":   {"open"},
		"order_by": {"-activity"},
	}
	var page metaculusPage
	if err := c.rest.getJSON(ctx, "/questions/", q, &page); err != nil {
		return nil, fmt.Errorf("metaculus search %q: %w", query, err)
	}
	return c.normalizePage(page, limit), nil
}

func (c *MetaculusClient) Trending(ctx context.Context, limit int) ([]Snapshot, error) {
	q := url.Values{
		"limit":    {strconv.Itoa(clampLimit(limit, 100))},
		"status":   {"open"},
		"order_by": {"-activity"},
		"type":     {"forecast"},
	}
	var page metaculusPage
	if err := c.rest.getJSON(ctx, "/questions/", q, &page); err != nil {
		return nil, fmt.Errorf("metaculus trending: %w", err)
	}
	return c.normalizePage(page, limit), nil
}

func (c *MetaculusClient) normalizePage(page metaculusPage, limit int) []Snapshot {
	limit = clampLimit(limit, 100)
	out := make([]Snapshot, 0, len(page.Results))
	for _, q := range page.Results {
		if len(out) >= limit {
			break
		}
		out = append(out, c.normalize(q))
	}
	return out
}

func (c *MetaculusClient) normalize(q metaculusQuestion) Snapshot {
	var closeTime *time.Time
	if q.CloseTime != "" {
		if t, err := time.Parse(time.RFC3339, q.CloseTime); err == nil {
			closeTime = &t
		}
	}

	nativeID := strconv.FormatInt(q.ID, 10)
	s := Snapshot{
		ID:          PlatformMetaculus.MarketID(nativeID),
		Platform:    PlatformMetaculus,
		Title:       q.Title,
		Description: q.Description,
		URL:         q.URL,
		Probability: parseCommunityPrediction(q.CommunityPrediction),
		Volume:      q.NumberOfPredictions,
		CloseTime:   closeTime,
		Resolved:    q.Resolution != nil,
	}
	if s.URL == "" {
		s.URL = fmt.Sprintf("https://www.metaculus.com/questions/%s/", nativeID)
	}
	if s.Probability != nil {
		s.YesPrice = s.Probability
		s.NoPrice = floatPtr(1 - *s.Probability)
	}
	s.Active = activeFrom(s.Resolved, s.CloseTime)
	return s
}

// parseCommunityPrediction extracts the community median from the two
// shapes Metaculus serves: a bare number, or {"full": {"q2": 0.6}}.
func parseCommunityPrediction(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var direct float64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return &direct
	}

	var nested struct {
		Full struct {
			Q2 *float64 `json:"q2"`
		} `json:"full"`
		Q2 *float64 `json:"q2"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	if nested.Full.Q2 != nil {
		return nested.Full.Q2
	}
	return nested.Q2
}
