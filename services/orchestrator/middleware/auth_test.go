// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the bearer-token middleware.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/ping", BearerAuth(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return r
}

func TestBearerAuth_EmptyTokenAdmitsAll(t *testing.T) {
	router := authRouter("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestBearerAuth_RejectsMissingAndWrongTokens(t *testing.T) {
	router := authRouter("sekrit")

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic sekrit"},
		{"wrong token", "Bearer nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/v1/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d", w.Code)
			}
		})
	}
}

func TestBearerAuth_AcceptsCorrectToken(t *testing.T) {
	router := authRouter("sekrit")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
