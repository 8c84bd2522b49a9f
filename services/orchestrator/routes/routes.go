// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/middleware"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

// Deps are the wired backends the routes need.
type Deps struct {
	Sessions   *sessions.Manager
	Aggregator *markets.Aggregator
	Matcher    *markets.Matcher
	Engine     *trading.Engine
	Client     llm.Client
	Recorder   *markets.Recorder
	AuthToken  string
}

// SetupRoutes registers every endpoint of the agent API.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Aggregator, deps.Client, deps.Sessions))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", middleware.BearerAuth(deps.AuthToken))
	{
		agentGroup := v1.Group("/agent")
		{
			agentGroup.POST("/chat", handlers.HandleAgentChat(deps.Sessions))
			agentGroup.POST("/stream", handlers.HandleAgentStream(deps.Sessions))
		}

		marketGroup := v1.Group("/markets")
		{
			marketGroup.GET("/search", handlers.HandleMarketSearch(deps.Aggregator, deps.Recorder))
			marketGroup.GET("/trending", handlers.HandleMarketTrending(deps.Aggregator, deps.Recorder))
			marketGroup.GET("/arbitrage", handlers.HandleArbitrageScan(deps.Aggregator, deps.Matcher))
			marketGroup.GET("/:marketId", handlers.HandleMarketGet(deps.Aggregator, deps.Recorder))
		}

		v1.GET("/portfolio", handlers.HandlePortfolio(deps.Engine))

		sessionGroup := v1.Group("/sessions")
		{
			sessionGroup.POST("/:sessionId/clear", handlers.HandleClearSession(deps.Sessions))
			sessionGroup.DELETE("/:sessionId", handlers.HandleDeleteSession(deps.Sessions))
		}
	}
}
