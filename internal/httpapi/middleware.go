// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	pmetrics "github.com/AleutianAI/faas-core/internal/metrics"
	"github.com/AleutianAI/faas-core/internal/ratelimit"
)

// RateLimit builds Gin middleware enforcing the ip and function
// categories via client, emitting the exact §4.4/§6 429 response on
// rejection.
func RateLimit(client *ratelimit.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ratelimit.ClientIP(c.Request.Header)
		route := ResolveRoute(c.Request.URL.Path, c.GetHeader("X-Function-Id"))

		keys := map[ratelimit.Category]string{"ip": ip}
		order := []ratelimit.Category{"ip"}
		if route.FunctionID != "" {
			keys["function"] = route.FunctionID
			order = append(order, "function")
		}

		result := client.CheckAndIncrementAll(order, keys)
		for cat, r := range result.Results {
			pmetrics.RateLimitDecisions.WithLabelValues(string(cat), strconv.FormatBool(r.Allowed)).Inc()
		}

		if !result.Allowed {
			blocked := result.Results[result.BlockingCategory]
			retryAfter := int64(math.Ceil(float64(blocked.ResetAt-time.Now().UnixMilli()) / 1000))
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Content-Type", "application/json")
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(blocked.ResetAt, 10))
			c.AbortWithStatusJSON(429, gin.H{
				"error":      "Too Many Requests",
				"message":    fmt.Sprintf("rate limit exceeded for category %q", result.BlockingCategory),
				"retryAfter": retryAfter,
				"resetAt":    blocked.ResetAt,
			})
			return
		}

		c.Next()
	}
}
