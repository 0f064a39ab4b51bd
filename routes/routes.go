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

	"github.com/AleutianAI/huddle/handlers"
	"github.com/AleutianAI/huddle/hub"
)

// SetupRoutes wires the transport surface: the hub WebSocket, the read-only
// REST API, health, and metrics.
func SetupRoutes(router *gin.Engine, h *hub.Hub) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/hub/ws", handlers.HandleHubWebSocket(h))
	}

	api := router.Group("/api")
	{
		api.GET("/users", handlers.ListUsers(h))
		api.GET("/history", handlers.GetHistory(h))
		api.GET("/summary", handlers.GetSessionSummary(h))
	}
}
