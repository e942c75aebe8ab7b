// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package httpapi wires C1–C9 onto a Gin HTTP surface: routing per
// spec §6, rate-limit middleware, and the invoke/info endpoints.
package httpapi

import "strings"

// Route is the resolved (function id, action) pair for one request, per
// §6's routing surface.
type Route struct {
	FunctionID string
	Action     string // "invoke", "info", or "" (unmatched subpath)
}

// ResolveRoute implements §6's path/header routing rules as a pure
// function so it can be tested without a live server. Query parameters
// are ignored — callers pass only the path.
func ResolveRoute(path, functionIDHeader string) Route {
	trimmed := strings.Trim(path, "/")
	segments := strings.Split(trimmed, "/")

	if len(segments) < 2 || segments[0] != "functions" || segments[1] == "" {
		if functionIDHeader != "" {
			return Route{FunctionID: functionIDHeader}
		}
		return Route{}
	}

	fid := segments[1]
	if len(segments) == 2 {
		return Route{FunctionID: fid}
	}

	action := strings.ToLower(segments[2])
	if len(segments) == 3 && (action == "invoke" || action == "info") {
		return Route{FunctionID: fid, Action: action}
	}

	return Route{FunctionID: fid}
}
