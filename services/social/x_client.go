// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package social posts agent output to X. The client is deliberately
// soft-failing: an unconfigured or rate-limited client reports the
// problem in the result value so the agent can tell the user, instead
// of erroring out of a research turn.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	xAPIBaseURL = "https://api.twitter.com/2"

	// maxTweetLen is the post length ceiling for standard accounts.
	maxTweetLen = 280

	// defaultDailyPostBudget matches the free API tier write quota.
	defaultDailyPostBudget = 17
)

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PostResult reports the outcome of one posting attempt. Posted=false
// with a Reason is the normal shape for "not configured", budget
// exhaustion, and upstream rejections.
type PostResult struct {
	Posted  bool   `json:"posted"`
	TweetID string `json:"tweet_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ThreadResult reports a multi-tweet thread post. Tweets posted before
// a mid-thread failure are still reported.
type ThreadResult struct {
	Posted   bool     `json:"posted"`
	TweetIDs []string `json:"tweet_ids,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// XClient posts to the X v2 API under a daily write budget.
type XClient struct {
	httpClient  HTTPClient
	accessToken string
	username    string
	limiter     *rate.Limiter
}

// NewXClientFromEnv reads X_ACCESS_TOKEN and X_USERNAME. A missing
// token yields an unconfigured client, not an error; every post on it
// reports "not configured".
func NewXClientFromEnv(hc HTTPClient) *XClient {
	token := os.Getenv("X_ACCESS_TOKEN")
	if token == "" {
		secretPath := "/run/secrets/x_access_token"
		if content, err := os.ReadFile(secretPath); err == nil {
			token = strings.TrimSpace(string(content))
			slog.Info("Read X access token from container secrets")
		}
	}
	if token == "" {
		slog.Info("X posting not configured (X_ACCESS_TOKEN missing)")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &XClient{
		httpClient:  hc,
		accessToken: token,
		username:    os.Getenv("X_USERNAME"),
		// Spread the daily write quota evenly across the day, with a
		// small burst for threads.
		limiter: rate.NewLimiter(rate.Every(24*time.Hour/defaultDailyPostBudget), 5),
	}
}

// Configured reports whether posting can work at all.
func (c *XClient) Configured() bool { return c.accessToken != "" }

// Post publishes a single tweet.
func (c *XClient) Post(ctx context.Context, text string) (PostResult, error) {
	return c.post(ctx, text, nil)
}

// Reply publishes a reply to an existing tweet.
func (c *XClient) Reply(ctx context.Context, inReplyToID, text string) (PostResult, error) {
	if inReplyToID == "" {
		return PostResult{Reason: "reply target tweet ID is required"}, nil
	}
	return c.post(ctx, text, map[string]any{
		"reply": map[string]any{"in_reply_to_tweet_id": inReplyToID},
	})
}

// Quote publishes a quote tweet around an existing tweet.
func (c *XClient) Quote(ctx context.Context, quotedID, text string) (PostResult, error) {
	if quotedID == "" {
		return PostResult{Reason: "quoted tweet ID is required"}, nil
	}
	return c.post(ctx, text, map[string]any{"quote_tweet_id": quotedID})
}

// PostThread publishes texts as a reply chain. The first failure stops
// the chain; earlier tweets stay up and are reported.
func (c *XClient) PostThread(ctx context.Context, texts []string) (ThreadResult, error) {
	if len(texts) == 0 {
		return ThreadResult{Reason: "thread has no tweets"}, nil
	}

	var ids []string
	prevID := ""
	for i, text := range texts {
		var res PostResult
		var err error
		if prevID == "" {
			res, err = c.Post(ctx, text)
		} else {
			res, err = c.Reply(ctx, prevID, text)
		}
		if err != nil {
			return ThreadResult{Posted: len(ids) > 0, TweetIDs: ids, Reason: err.Error()}, err
		}
		if !res.Posted {
			reason := res.Reason
			if len(ids) > 0 {
				reason = fmt.Sprintf("thread stopped at tweet %d/%d: %s", i+1, len(texts), reason)
			}
			return ThreadResult{Posted: len(ids) > 0, TweetIDs: ids, Reason: reason}, nil
		}
		ids = append(ids, res.TweetID)
		prevID = res.TweetID
	}
	return ThreadResult{Posted: true, TweetIDs: ids}, nil
}

func (c *XClient) post(ctx context.Context, text string, extra map[string]any) (PostResult, error) {
	if !c.Configured() {
		return PostResult{Reason: "X posting is not configured; set X_ACCESS_TOKEN to enable it"}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return PostResult{Reason: "tweet text is empty"}, nil
	}
	if len([]rune(text)) > maxTweetLen {
		return PostResult{Reason: fmt.Sprintf("tweet is %d characters, limit is %d", len([]rune(text)), maxTweetLen)}, nil
	}
	if !c.limiter.Allow() {
		slog.Warn("Daily X posting budget exhausted")
		return PostResult{Reason: "daily posting budget exhausted; try again later"}, nil
	}

	payload := map[string]any{"text": text}
	for k, v := range extra {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PostResult{}, fmt.Errorf("marshaling tweet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", xAPIBaseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return PostResult{}, fmt.Errorf("building tweet request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PostResult{}, fmt.Errorf("posting to X: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("X API rejected post", "status", resp.StatusCode, "body", string(respBody))
		return PostResult{Reason: fmt.Sprintf("X API returned status %d", resp.StatusCode)}, nil
	}

	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil || decoded.Data.ID == "" {
		return PostResult{Reason: "X API response missing tweet ID"}, nil
	}

	out := PostResult{Posted: true, TweetID: decoded.Data.ID}
	if c.username != "" {
		out.URL = fmt.Sprintf("https://x.com/%s/status/%s", c.username, decoded.Data.ID)
	}
	slog.Info("Posted to X", "tweet_id", decoded.Data.ID)
	return out, nil
}
