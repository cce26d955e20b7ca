package devserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/modconsole/internal/config"
	"github.com/wesm/modconsole/internal/listing"
)

// testLogger returns a logger for tests that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.DevServerConfig) *Server {
	t.Helper()
	srv := NewServer(cfg, fixtureStore(t), testLogger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})

	w := serve(srv, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("health status = %q, want 'ok'", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{APIKey: "secret-key"})

	tests := []struct {
		name       string
		header     http.Header
		wantStatus int
	}{
		{"no key", nil, http.StatusUnauthorized},
		{"wrong key", http.Header{"X-Api-Key": {"nope"}}, http.StatusUnauthorized},
		{"x-api-key", http.Header{"X-Api-Key": {"secret-key"}}, http.StatusOK},
		{"bearer", http.Header{"Authorization": {"Bearer secret-key"}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(srv, "GET", "/api/v1/ads", "", tt.header)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	// Health stays open.
	if w := serve(srv, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /health with auth configured = %d", w.Code)
	}
}

func TestListAdsEndpoint(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"bracket status", "status%5B%5D=pending", []int64{1, 3}},
		{"bare repeated status", "status=pending&status=rejected", []int64{1, 3, 4}},
		{"category and sort", "categoryId=2&sortBy=price&sortOrder=asc", []int64{3, 2}},
		{"limit", "limit=2&page=2", []int64{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(srv, "GET", "/api/v1/ads?"+tt.query, "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp ListResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			got := make([]int64, len(resp.Ads))
			for i, a := range resp.Ads {
				got[i] = a.ID
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetAdEndpoint(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})

	w := serve(srv, "GET", "/api/v1/ads/2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var ad AdResponse
	if err := json.NewDecoder(w.Body).Decode(&ad); err != nil {
		t.Fatal(err)
	}
	if ad.ID != 2 || ad.Title != "New bicycle" || ad.Category != "Transport" {
		t.Errorf("ad = %+v", ad)
	}

	if w := serve(srv, "GET", "/api/v1/ads/99", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing ad status = %d, want 404", w.Code)
	}
	if w := serve(srv, "GET", "/api/v1/ads/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestDecisionEndpoints(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"approve pending", "/api/v1/ads/1/approve", "", http.StatusOK},
		{"approve again", "/api/v1/ads/1/approve", "", http.StatusConflict},
		{"reject without reason", "/api/v1/ads/3/reject", `{"comment":"x"}`, http.StatusBadRequest},
		{"reject without body", "/api/v1/ads/3/reject", "", http.StatusBadRequest},
		{"reject", "/api/v1/ads/3/reject", `{"reason":"Suspected fraud"}`, http.StatusOK},
		{"request changes", "/api/v1/ads/4/request-changes", `{"reason":"Photo problems","comment":"blurry"}`, http.StatusOK},
		{"unknown record", "/api/v1/ads/77/approve", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(srv, "POST", tt.path, tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	w := serve(srv, "GET", "/api/v1/ads/4", "", nil)
	var ad AdResponse
	if err := json.NewDecoder(w.Body).Decode(&ad); err != nil {
		t.Fatal(err)
	}
	if ad.Status != listing.StatusDraft || len(ad.ModerationHistory) != 1 {
		t.Fatalf("ad 4 = %+v", ad)
	}
	h := ad.ModerationHistory[0]
	if h.Reason == nil || *h.Reason != "Photo problems" || h.Comment != "blurry" {
		t.Errorf("history entry = %+v", h)
	}
}

func TestApprovalHistoryHasNullReason(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})
	serve(srv, "POST", "/api/v1/ads/1/approve", "", nil)

	w := serve(srv, "GET", "/api/v1/ads/1", "", nil)
	if !strings.Contains(w.Body.String(), `"reason":null`) {
		t.Errorf("approval history should carry a null reason: %s", w.Body.String())
	}
}

func TestStatsSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})
	serve(srv, "POST", "/api/v1/ads/1/approve", "", nil)

	w := serve(srv, "GET", "/api/v1/stats/summary?period=today", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats listing.StatsSummary
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalReviewedToday != 1 || stats.ApprovedPercentage != 100 {
		t.Errorf("stats = %+v", stats)
	}

	if w := serve(srv, "GET", "/api/v1/stats/summary?period=year", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad period status = %d, want 400", w.Code)
	}
}

func TestCORSFromConfig(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{CORSOrigins: []string{"http://localhost:5173"}})

	w := serve(srv, "GET", "/health", "", http.Header{"Origin": {"http://localhost:5173"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allowed origin header = %q", got)
	}

	w = serve(srv, "GET", "/health", "", http.Header{"Origin": {"http://evil.com"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin header = %q", got)
	}

	w = serve(srv, "OPTIONS", "/api/v1/ads", "", http.Header{"Origin": {"http://localhost:5173"}})
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" || w.Header().Get("Access-Control-Max-Age") == "" {
		t.Errorf("preflight headers missing: %v", w.Header())
	}
}

func TestCORSDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{})

	w := serve(srv, "GET", "/health", "", http.Header{"Origin": {"http://localhost:5173"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header when no origins configured, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 2)
	defer rl.Close()

	if !rl.Allow("127.0.0.1") || !rl.Allow("127.0.0.1") {
		t.Error("burst requests should be allowed")
	}
	if rl.Allow("127.0.0.1") {
		t.Error("third request should be rate limited")
	}
	if !rl.Allow("192.168.1.1") {
		t.Error("different client should be allowed")
	}
}

func TestRateLimiterCloseConcurrent(t *testing.T) {
	rl := NewRateLimiter(10, 10)

	const n = 50
	start := make(chan struct{})
	done := make(chan struct{}, n)
	for range n {
		go func() {
			<-start
			rl.Close()
			done <- struct{}{}
		}()
	}
	close(start)
	for range n {
		<-done
	}
}

func TestRateLimitMiddlewareFromConfig(t *testing.T) {
	srv := newTestServer(t, config.DevServerConfig{RateLimit: 0.5})

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Error("missing Retry-After header on rate limited response")
		}
	}
	// burst = max(int(0.5*2), 1) = 1
	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("status codes (-want +got):\n%s", diff)
	}
}

func TestStartRefusesInsecureBind(t *testing.T) {
	srv := NewServer(config.DevServerConfig{BindAddr: "0.0.0.0", Port: 0}, fixtureStore(t), testLogger())
	if err := srv.Start(); err == nil {
		t.Fatal("Start() on 0.0.0.0 without key should fail")
	}
}
