// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for request validation.

package datatypes

import (
	"strings"
	"testing"
)

func TestChatRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  ChatRequest
		ok   bool
	}{
		{"minimal", ChatRequest{Message: "hi"}, true},
		{"with session", ChatRequest{SessionID: "abc", Message: "hi"}, true},
		{"empty message", ChatRequest{}, false},
		{"overlong message", ChatRequest{Message: strings.Repeat("x", 8001)}, false},
		{"overlong session id", ChatRequest{SessionID: strings.Repeat("s", 129), Message: "hi"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestMarketSearchRequestValidate(t *testing.T) {
	if err := (&MarketSearchRequest{Query: "fed", Limit: 10}).Validate(); err != nil {
		t.Errorf("valid search rejected: %v", err)
	}
	if err := (&MarketSearchRequest{}).Validate(); err == nil {
		t.Error("empty query accepted")
	}
	if err := (&MarketSearchRequest{Query: "fed", Limit: 500}).Validate(); err == nil {
		t.Error("oversized limit accepted")
	}
}

func TestArbitrageRequestValidate(t *testing.T) {
	if err := (&ArbitrageRequest{Query: "election", MinSpread: 0.1}).Validate(); err != nil {
		t.Errorf("valid scan rejected: %v", err)
	}
	if err := (&ArbitrageRequest{Query: "election", MinSpread: 1.5}).Validate(); err == nil {
		t.Error("spread >= 1 accepted")
	}
}
