package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
)

func TestNew_RejectsHTTPWithoutAllowInsecure(t *testing.T) {
	_, err := New(Config{URL: "http://moderation.internal:8080", APIKey: "key"})
	if err == nil {
		t.Fatal("New() should reject http:// without AllowInsecure")
	}
}

func TestNew_AllowsLoopbackHTTP(t *testing.T) {
	if _, err := New(Config{URL: "http://127.0.0.1:8080"}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}

func TestNew_AllowsHTTPWithAllowInsecure(t *testing.T) {
	c, err := New(Config{URL: "http://moderation.internal:8080", AllowInsecure: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c == nil {
		t.Fatal("New() returned nil client")
	}
}

func TestNew_RejectsEmptyURL(t *testing.T) {
	if _, err := New(Config{APIKey: "key"}); err == nil {
		t.Fatal("New() should reject empty URL")
	}
}

func TestNew_RejectsInvalidScheme(t *testing.T) {
	_, err := New(Config{URL: "ftp://moderation.internal"})
	if err == nil {
		t.Fatal("New() should reject ftp:// scheme")
	}
	if !strings.Contains(err.Error(), "http or https") {
		t.Errorf("error = %q, want mention of http or https", err.Error())
	}
}

func TestNew_TrimsTrailingSlashAndDefaultsTimeout(t *testing.T) {
	c, err := New(Config{URL: "https://moderation.example.com/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.baseURL != "https://moderation.example.com" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

// newTestClient creates a Client pointing at the given httptest server.
func newTestClient(srv *httptest.Server, apiKey string) *Client {
	c, _ := New(Config{URL: srv.URL, APIKey: apiKey, AllowInsecure: true})
	c.httpClient = srv.Client()
	return c
}

func TestDoRequest_SetsHeaders(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-Key"); got != "secret-key" {
			t.Errorf("X-API-Key = %q, want %q", got, "secret-key")
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, "secret-key").doRequest(context.Background(), "GET", "/test", nil, nil)
	if err != nil {
		t.Fatalf("doRequest error = %v", err)
	}
	resp.Body.Close()
}

func TestHandleErrorResponse_MapsStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		text   string
	}{
		{404, `{"error":"not_found","message":"Ad 42 not found"}`, listing.ErrNotFound, "Ad 42 not found"},
		{409, `{"error":"conflict"}`, listing.ErrServerRejected, "conflict"},
		{400, "bad reason", listing.ErrServerRejected, "bad reason"},
		{500, "internal server error", listing.ErrTransport, "internal server error"},
		{503, "", listing.ErrTransport, "503"},
	}
	for _, tt := range tests {
		resp := &http.Response{StatusCode: tt.status, Body: io.NopCloser(strings.NewReader(tt.body))}
		err := handleErrorResponse(resp)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		if !strings.Contains(err.Error(), tt.text) {
			t.Errorf("status %d: error %q should contain %q", tt.status, err.Error(), tt.text)
		}
	}
}

const adJSONFixture = `{
	"id": 12,
	"title": "Road bike",
	"description": "Lightly used",
	"price": 45000,
	"category": "Transport",
	"categoryId": 2,
	"status": "pending",
	"priority": "urgent",
	"createdAt": "2025-04-01T10:00:00Z",
	"updatedAt": "2025-04-02T10:00:00Z",
	"images": ["https://img.example/12-1.jpg", "https://img.example/12-2.jpg"],
	"seller": {"id": 3, "name": "Ivan", "rating": "4.8", "totalAds": 17, "registeredAt": "2021-06-01T00:00:00Z"},
	"characteristics": {"Frame": "aluminium", "Wheels": "28", "Color": "red"},
	"moderationHistory": [
		{"id": 2, "moderatorId": 1, "moderatorName": "Anna", "action": "requestChanges", "reason": "Photo problems", "timestamp": "2025-04-03T09:00:00Z"},
		{"id": 1, "moderatorId": 1, "moderatorName": "Anna", "action": "rejected", "reason": null, "comment": "dup", "timestamp": "2025-04-02T09:00:00Z"}
	]
}`

func TestListRecords_SendsParamsAndDecodes(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ads" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if diff := cmp.Diff([]string{"pending", "rejected"}, q["status"]); diff != "" {
			t.Errorf("status params (-want +got):\n%s", diff)
		}
		if q.Get("page") != "2" || q.Get("limit") != "10" || q.Get("search") != "bike" {
			t.Errorf("query = %v", q)
		}
		if q.Has("priority") {
			t.Error("priority must not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ads":[` + adJSONFixture + `],"pagination":{"currentPage":2,"totalPages":3,"totalItems":25,"itemsPerPage":10}}`))
	}))
	defer srv.Close()

	crit := filter.Decode("status[]=pending&status[]=rejected&priority[]=urgent&search=bike&page=2")
	page, err := newTestClient(srv, "").ListRecords(context.Background(), crit)
	if err != nil {
		t.Fatalf("ListRecords error = %v", err)
	}

	want := listing.Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10}
	if diff := cmp.Diff(want, page.Pagination); diff != "" {
		t.Errorf("pagination mismatch (-want +got):\n%s", diff)
	}
	if len(page.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(page.Records))
	}
	r := page.Records[0]
	if r.ID != 12 || r.Thumbnail != "https://img.example/12-1.jpg" || r.Priority != listing.PriorityUrgent {
		t.Errorf("summary = %+v", r)
	}
	if !r.CreatedAt.Equal(time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", r.CreatedAt)
	}
}

func TestGetRecord_DecodesDetail(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ads/12" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(adJSONFixture))
	}))
	defer srv.Close()

	d, err := newTestClient(srv, "").GetRecord(context.Background(), 12)
	if err != nil {
		t.Fatalf("GetRecord error = %v", err)
	}

	labels := make([]string, len(d.Characteristics))
	for i, c := range d.Characteristics {
		labels[i] = c.Label
	}
	if diff := cmp.Diff([]string{"Frame", "Wheels", "Color"}, labels); diff != "" {
		t.Errorf("characteristic order (-want +got):\n%s", diff)
	}
	if d.Seller.TotalListings != 17 || d.Seller.Name != "Ivan" {
		t.Errorf("seller = %+v", d.Seller)
	}
	if len(d.ModerationHistory) != 2 || d.ModerationHistory[0].ID != 1 {
		t.Fatalf("history not sorted oldest first: %+v", d.ModerationHistory)
	}
	if d.ModerationHistory[0].Reason != "" || d.ModerationHistory[1].Reason != "Photo problems" {
		t.Errorf("history reasons = %q, %q", d.ModerationHistory[0].Reason, d.ModerationHistory[1].Reason)
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"Ad not found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, "").GetRecord(context.Background(), 999)
	if !errors.Is(err, listing.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDecisions_PostBodies(t *testing.T) {
	type got struct {
		path string
		body map[string]string
	}
	var calls []got
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		calls = append(calls, got{r.URL.Path, body})
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, "")
	ctx := context.Background()
	if err := c.Approve(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := c.Reject(ctx, 2, listing.Reject("Suspected fraud", "")); err != nil {
		t.Fatal(err)
	}
	if err := c.RequestChanges(ctx, 3, listing.RequestChanges("Photo problems", "add photos")); err != nil {
		t.Fatal(err)
	}

	want := []got{
		{"/api/v1/ads/1/approve", nil},
		{"/api/v1/ads/2/reject", map[string]string{"reason": "Suspected fraud"}},
		{"/api/v1/ads/3/request-changes", map[string]string{"reason": "Photo problems", "comment": "add photos"}},
	}
	if diff := cmp.Diff(want, calls, cmp.AllowUnexported(got{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDecision_ServerRefusal(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid_transition","message":"Ad already approved"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv, "").Approve(context.Background(), 5)
	if !errors.Is(err, listing.ErrServerRejected) {
		t.Errorf("err = %v, want ErrServerRejected", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	c := newTestClient(srv, "")
	srv.Close()

	_, err := c.ListRecords(context.Background(), listing.DefaultCriteria())
	if !errors.Is(err, listing.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(srv, "")
	c.httpClient.Timeout = 20 * time.Millisecond

	_, err := c.GetRecord(context.Background(), 1)
	if !errors.Is(err, listing.ErrTransport) || !IsTimeout(err) {
		t.Errorf("err = %v, want transport timeout", err)
	}
}

func TestStatsSummary(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/stats/summary" || r.URL.Query().Get("period") != "week" {
			t.Errorf("request = %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"totalReviewed":120,"totalReviewedToday":8,"approvedPercentage":61.5,"averageReviewTime":95}`))
	}))
	defer srv.Close()

	s, err := newTestClient(srv, "").StatsSummary(context.Background(), listing.PeriodWeek)
	if err != nil {
		t.Fatal(err)
	}
	want := &listing.StatsSummary{TotalReviewed: 120, TotalReviewedToday: 8, ApprovedPercentage: 61.5, AverageReviewTime: 95}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimiterPacesRequests(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, AllowInsecure: true, RequestsPerSecond: 1})
	if err != nil {
		t.Fatal(err)
	}
	c.httpClient = srv.Client()

	if _, err := c.StatsSummary(context.Background(), listing.PeriodToday); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.StatsSummary(ctx, listing.PeriodToday)
	if !errors.Is(err, listing.ErrTransport) {
		t.Errorf("second request inside the pacing window err = %v, want ErrTransport", err)
	}
}
