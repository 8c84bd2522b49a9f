// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

// recordSnapshots persists fetched snapshots to the optional history
// sink off the request path. Failures are logged, never surfaced.
func recordSnapshots(rec *markets.Recorder, snaps ...markets.Snapshot) {
	if rec == nil || len(snaps) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rec.Record(ctx, snaps...); err != nil {
			slog.Warn("Recording market snapshots failed", "count", len(snaps), "error", err)
		}
	}()
}

// HandleMarketSearch searches every configured platform.
//
// GET /v1/markets/search?q=<query>&limit=<n>
func HandleMarketSearch(agg *markets.Aggregator, rec *markets.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.MarketSearchRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			observability.ObserveRequest("markets_search", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "malformed query"})
			return
		}
		if err := req.Validate(); err != nil {
			observability.ObserveRequest("markets_search", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		snaps := agg.SearchAllFlat(c.Request.Context(), req.Query, req.Limit)
		recordSnapshots(rec, snaps...)
		observability.ObserveRequest("markets_search", nil)
		c.JSON(http.StatusOK, gin.H{"count": len(snaps), "markets": snaps})
	}
}

// HandleMarketTrending returns the most active markets per platform.
//
// GET /v1/markets/trending?limit=<n>
func HandleMarketTrending(agg *markets.Aggregator, rec *markets.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 5
		var q struct {
			Limit int `form:"limit"`
		}
		if err := c.ShouldBindQuery(&q); err == nil && q.Limit > 0 {
			limit = q.Limit
		}
		byPlatform := agg.TrendingAll(c.Request.Context(), limit)
		for _, snaps := range byPlatform {
			recordSnapshots(rec, snaps...)
		}
		observability.ObserveRequest("markets_trending", nil)
		c.JSON(http.StatusOK, byPlatform)
	}
}

// HandleMarketGet fetches one market by prefixed ID.
//
// GET /v1/markets/:marketId
func HandleMarketGet(agg *markets.Aggregator, rec *markets.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := agg.Get(c.Request.Context(), c.Param("marketId"))
		observability.ObserveRequest("markets_get", err)
		if err != nil {
			if errors.Is(err, markets.ErrMarketNotFound) {
				c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Error: "market not found"})
				return
			}
			c.JSON(http.StatusBadGateway, datatypes.ErrorResponse{Error: err.Error()})
			return
		}
		recordSnapshots(rec, snap)
		c.JSON(http.StatusOK, snap)
	}
}

// HandleArbitrageScan scans all platforms for cross-platform spreads.
//
// GET /v1/markets/arbitrage?q=<query>&min_spread=<f>
func HandleArbitrageScan(agg *markets.Aggregator, matcher *markets.Matcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ArbitrageRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			observability.ObserveRequest("arbitrage", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "malformed query"})
			return
		}
		if err := req.Validate(); err != nil {
			observability.ObserveRequest("arbitrage", err)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		m := matcher
		if req.MinSpread > 0 {
			m = markets.NewMatcher(0, req.MinSpread)
		}
		opps := m.Scan(c.Request.Context(), agg, req.Query, 20)
		observability.ObserveRequest("arbitrage", nil)
		c.JSON(http.StatusOK, gin.H{"count": len(opps), "opportunities": opps})
	}
}

// HandlePortfolio reports the paper-trading portfolio.
//
// GET /v1/portfolio
func HandlePortfolio(engine *trading.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		observability.ObserveRequest("portfolio", nil)
		c.JSON(http.StatusOK, engine.Portfolio(c.Request.Context()))
	}
}
