package app

import (
	"net/http"
	"strings"
	"testing"

	"github.com/zep-us/callbridge/internal/handler/http/calls"
)

// TestCORS_PreflightRequest_Returns204 verifies preflights for call control headers succeed
func TestCORS_PreflightRequest_Returns204(t *testing.T) {
	a := newTestApp(t, testConfig("http://localhost:9000"))

	rec := a.serve(http.MethodOptions, "/v1/calls/items", "", map[string]string{
		"Origin":                         "https://app.example.com",
		"Access-Control-Request-Method":  http.MethodDelete,
		"Access-Control-Request-Headers": calls.HeaderTag,
	})

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), calls.HeaderTag) {
		t.Errorf("expected %s in allowed headers, got %q", calls.HeaderTag, rec.Header().Get("Access-Control-Allow-Headers"))
	}
}

// TestCORS_PreflightBypassesReadiness verifies preflights are answered while draining
func TestCORS_PreflightBypassesReadiness(t *testing.T) {
	a := newTestApp(t, testConfig("http://localhost:9000"))
	a.readiness.Store(false)

	rec := a.serve(http.MethodOptions, "/v1/calls/items", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight during drain, got %d", rec.Code)
	}
}

// TestCORS_UnknownOrigin_NotAllowed verifies origins outside allowed_origins get no allow header
func TestCORS_UnknownOrigin_NotAllowed(t *testing.T) {
	a := newTestApp(t, testConfig("http://localhost:9000"))

	rec := a.serve(http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://evil.example.com"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for unknown origin, got %q", got)
	}
}

// TestBodyLimit_LargeRequest_Returns413 verifies bodies over max_request_size_mb are rejected before a call is built
func TestBodyLimit_LargeRequest_Returns413(t *testing.T) {
	a := newTestApp(t, testConfig("http://localhost:9000"))

	body := strings.Repeat("x", 2*1024*1024)
	rec := a.serve(http.MethodPost, "/v1/calls/upload", body, map[string]string{"Content-Type": "application/octet-stream"})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for 2MB body, got %d", rec.Code)
	}
	if a.registry.Len() != 0 {
		t.Errorf("expected no registered calls, got %d", a.registry.Len())
	}
}
