package httpapi

import "testing"

func TestResolveRoutePathInvoke(t *testing.T) {
	r := ResolveRoute("/functions/my-fn/invoke", "")
	if r.FunctionID != "my-fn" || r.Action != "invoke" {
		t.Errorf("got %+v", r)
	}
}

func TestResolveRoutePathInfoCaseInsensitive(t *testing.T) {
	r := ResolveRoute("/functions/my-fn/INFO", "")
	if r.FunctionID != "my-fn" || r.Action != "info" {
		t.Errorf("got %+v", r)
	}
}

func TestResolveRoutePathBare(t *testing.T) {
	r := ResolveRoute("/functions/my-fn", "")
	if r.FunctionID != "my-fn" || r.Action != "" {
		t.Errorf("got %+v", r)
	}
}

func TestResolveRouteUnknownSubpathYieldsNullAction(t *testing.T) {
	r := ResolveRoute("/functions/my-fn/delete", "")
	if r.FunctionID != "my-fn" || r.Action != "" {
		t.Errorf("expected null action for unrecognized subpath, got %+v", r)
	}
}

func TestResolveRouteHeaderFallbackWhenPathLacksID(t *testing.T) {
	r := ResolveRoute("/health", "my-fn")
	if r.FunctionID != "my-fn" {
		t.Errorf("expected header fallback, got %+v", r)
	}
}

func TestResolveRoutePathWinsOverHeader(t *testing.T) {
	r := ResolveRoute("/functions/path-fn/invoke", "header-fn")
	if r.FunctionID != "path-fn" || r.Action != "invoke" {
		t.Errorf("expected path to win, got %+v", r)
	}
}

func TestResolveRouteQueryParamsIgnored(t *testing.T) {
	// ResolveRoute takes only the path; callers must strip the query
	// string before calling (net/url already separates Path from
	// RawQuery), so a path with no literal "?" exercises the same code.
	r := ResolveRoute("/functions/my-fn/invoke", "")
	if r.FunctionID != "my-fn" || r.Action != "invoke" {
		t.Errorf("got %+v", r)
	}
}

func TestResolveRouteNoFunctionIDAnywhere(t *testing.T) {
	r := ResolveRoute("/health", "")
	if r.FunctionID != "" {
		t.Errorf("expected empty function id, got %+v", r)
	}
}
