// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the X posting client.

package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianOracle/services/markets"
)

type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newConfiguredClient(t *testing.T, mock *MockHTTPClient) *XClient {
	t.Helper()
	t.Setenv("X_ACCESS_TOKEN", "tok")
	t.Setenv("X_USERNAME", "oracle")
	return NewXClientFromEnv(mock)
}

func TestPost_NotConfiguredIsSoftFailure(t *testing.T) {
	t.Setenv("X_ACCESS_TOKEN", "")
	client := NewXClientFromEnv(&MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		t.Error("unconfigured client must not hit the network")
		return nil, nil
	}})

	res, err := client.Post(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unconfigured post returned error: %v", err)
	}
	if res.Posted {
		t.Error("unconfigured post reported success")
	}
	if !strings.Contains(res.Reason, "not configured") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestPost_Success(t *testing.T) {
	mock := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(req.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["text"] != "Fed cut odds rising" {
			t.Errorf("text = %v", payload["text"])
		}
		return jsonResponse(201, `{"data": {"id": "12345"}}`), nil
	}}

	res, err := newConfiguredClient(t, mock).Post(context.Background(), "Fed cut odds rising")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !res.Posted || res.TweetID != "12345" {
		t.Errorf("result = %+v", res)
	}
	if res.URL != "https://x.com/oracle/status/12345" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestPost_OverlongTweetRejectedLocally(t *testing.T) {
	client := newConfiguredClient(t, &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		t.Error("overlong tweet must not hit the network")
		return nil, nil
	}})

	res, err := client.Post(context.Background(), strings.Repeat("x", maxTweetLen+1))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if res.Posted {
		t.Error("overlong tweet reported success")
	}
}

func TestPost_UpstreamRejectionIsSoftFailure(t *testing.T) {
	mock := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(403, `{"detail": "forbidden"}`), nil
	}}

	res, err := newConfiguredClient(t, mock).Post(context.Background(), "hi")
	if err != nil {
		t.Fatalf("rejection should be soft: %v", err)
	}
	if res.Posted || !strings.Contains(res.Reason, "403") {
		t.Errorf("result = %+v", res)
	}
}

func TestReply_RequiresTarget(t *testing.T) {
	client := newConfiguredClient(t, &MockHTTPClient{})
	res, err := client.Reply(context.Background(), "", "text")
	if err != nil || res.Posted {
		t.Fatalf("result = %+v err = %v", res, err)
	}
}

func TestPostThread_ChainsReplies(t *testing.T) {
	var posts []map[string]any
	mock := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		posts = append(posts, payload)
		return jsonResponse(201, fmt.Sprintf(`{"data": {"id": "id-%d"}}`, len(posts))), nil
	}}

	res, err := newConfiguredClient(t, mock).PostThread(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("PostThread: %v", err)
	}
	if !res.Posted || len(res.TweetIDs) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if _, hasReply := posts[0]["reply"]; hasReply {
		t.Error("first tweet must not be a reply")
	}
	reply, ok := posts[1]["reply"].(map[string]any)
	if !ok || reply["in_reply_to_tweet_id"] != "id-1" {
		t.Errorf("second tweet reply target = %v", posts[1]["reply"])
	}
}

func TestSplitThread_NumbersChunks(t *testing.T) {
	long := strings.Repeat("market analysis word ", 40)
	chunks := SplitThread(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > maxTweetLen {
			t.Errorf("chunk %d is %d runes", i, len([]rune(c)))
		}
		want := fmt.Sprintf("(%d/%d)", i+1, len(chunks))
		if !strings.HasSuffix(c, want) {
			t.Errorf("chunk %d missing position marker %s: %q", i, want, c)
		}
	}
}

func TestFormatMarketPost_FitsTweet(t *testing.T) {
	p := 0.62
	s := markets.Snapshot{
		Title:       strings.Repeat("Very long question ", 30),
		Probability: &p,
		Volume:      15000,
		URL:         "https://example.com/m",
	}
	post := FormatMarketPost(s)
	if len([]rune(post)) > maxTweetLen {
		t.Errorf("post is %d runes", len([]rune(post)))
	}
	if !strings.Contains(post, "62.0%") {
		t.Errorf("post missing probability: %q", post)
	}
}
