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
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrMarketNotFound is returned by Get when no platform knows the market.
var ErrMarketNotFound = errors.New("market not found")

// Client is the contract every platform data source implements.
// Each method is independently fallible; the aggregator isolates
// failures per source.
type Client interface {
	Platform() Platform
	Get(ctx context.Context, nativeID string) (Snapshot, error)
	Search(ctx context.Context, query string, limit int) ([]Snapshot, error)
	Trending(ctx context.Context, limit int) ([]Snapshot, error)
}

// HistoryProvider is implemented by clients that can serve price history.
type HistoryProvider interface {
	History(ctx context.Context, nativeID string, window time.Duration) ([]PricePoint, error)
}

// OrderBookProvider is implemented by clients that expose order-book depth.
type OrderBookProvider interface {
	OrderBook(ctx context.Context, nativeID string) (OrderBook, error)
}

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// restClient is the shared HTTP plumbing for the platform clients:
// one base URL, an optional bearer token, JSON decoding, and bounded
// response reads.
type restClient struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

const maxResponseBytes = 8 << 20 // 8MB cap on any platform response

func newRESTClient(baseURL, apiKey string, hc HTTPClient) restClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return restClient{baseURL: baseURL, apiKey: apiKey, httpClient: hc}
}

// getJSON performs a GET against baseURL+path and decodes the JSON body
// into out. Non-2xx statuses are returned as errors carrying the status code.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrMarketNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
