// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/faas-core/internal/ratelimit"
)

// NewRouter builds the Gin engine: health check, Prometheus scrape
// endpoint, rate-limit middleware, and the §6 routing surface's three
// verbs (invoke, info, approve-tool-call).
func NewRouter(server *Server, limiter *ratelimit.Client) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		jsonResponse(c, gin.H{"status": "ok", "service": "faas-core"}, 200)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	functions := router.Group("/functions")
	functions.Use(RateLimit(limiter))
	functions.POST("/:fid/invoke", server.handleInvoke)
	functions.GET("/:fid/info", server.handleInfo)
	functions.POST("/:fid/approve-tool-call", server.handleApproveToolCall)

	return router
}
