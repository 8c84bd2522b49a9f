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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
)

// HealthCheck reports liveness plus the wired platforms and model.
//
// GET /health
func HealthCheck(agg *markets.Aggregator, client llm.Client, mgr *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		platforms := make([]string, 0, 4)
		if agg != nil {
			for _, p := range agg.Platforms() {
				platforms = append(platforms, string(p))
			}
		}
		model := ""
		if client != nil {
			model = client.Model()
		}
		nsessions := 0
		if mgr != nil {
			nsessions = mgr.Len()
		}
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:    "ok",
			Platforms: platforms,
			Model:     model,
			Sessions:  nsessions,
		})
	}
}
