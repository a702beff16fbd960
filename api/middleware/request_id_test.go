package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDPropagatesOrMints(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}

	for _, bad := range []string{"", "has space", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if bad != "" {
			req.Header.Set(requestIDHeader, bad)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		got := resp.Header().Get(requestIDHeader)
		if got == "" || got == bad {
			t.Fatalf("expected a minted id for %q, got %q", bad, got)
		}
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
