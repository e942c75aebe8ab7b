// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import "github.com/gin-gonic/gin"

// jsonResponse writes data as JSON with the given status, defaulting to
// 200, per §6's JSON helpers.
func jsonResponse(c *gin.Context, data any, status int) {
	if status == 0 {
		status = 200
	}
	c.JSON(status, data)
}

// errorResponse writes {error: msg} as JSON with the given status,
// defaulting to 500.
func errorResponse(c *gin.Context, msg string, status int) {
	if status == 0 {
		status = 500
	}
	c.JSON(status, gin.H{"error": msg})
}
