// Package remote provides an HTTP client for the moderation backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/wesm/modconsole/internal/filter"
	"github.com/wesm/modconsole/internal/listing"
)

// DefaultTimeout is the per-request timeout when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// apiPrefix is the path prefix of every backend route.
const apiPrefix = "/api/v1"

// Client implements listing.Backend over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Compile-time check that Client implements listing.Backend.
var _ listing.Backend = (*Client)(nil)

// Config holds configuration for creating a client.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	// Enforce HTTPS unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("HTTPS required for remote backends\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://moderation.example.com\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("backend URL must include a host (e.g., https://moderation.example.com)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// doRequest performs an authenticated HTTP request. Failures to reach the
// backend are reported as listing.ErrTransport.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", listing.ErrTransport, eris.Wrap(err, "wait for request slot"))
		}
	}

	reqURL := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", listing.ErrTransport, eris.Wrapf(err, "%s %s", method, path))
	}
	c.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode)
	return resp, nil
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleErrorResponse reads an error response and maps its status onto the
// error taxonomy: 404 is not found, other 4xx are refusals, and everything
// else is a transport failure.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	detail := strings.TrimSpace(string(body))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Message != "":
			detail = apiErr.Message
		case apiErr.Error != "":
			detail = apiErr.Error
		}
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = listing.ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = listing.ErrServerRejected
	default:
		kind = listing.ErrTransport
	}
	return fmt.Errorf("%w: API error (%d): %s", kind, resp.StatusCode, detail)
}

func decodeBody(resp *http.Response, v any, what string) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", listing.ErrTransport, eris.Wrapf(err, "decode %s response", what))
	}
	return nil
}

// ListRecords fetches one listing page.
func (c *Client) ListRecords(ctx context.Context, crit listing.Criteria) (*listing.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/ads", filter.ToParams(crit), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var lr listResponse
	if err := decodeBody(resp, &lr, "listing"); err != nil {
		return nil, err
	}

	page := &listing.Page{
		Records:    make([]listing.RecordSummary, len(lr.Ads)),
		Pagination: lr.Pagination,
	}
	for i, a := range lr.Ads {
		page.Records[i] = a.summary()
	}
	return page, nil
}

// GetRecord fetches a single record by ID.
func (c *Client) GetRecord(ctx context.Context, id int64) (*listing.RecordDetail, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/ads/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("record %d: %w", id, handleErrorResponse(resp))
	}

	var ad adJSON
	if err := decodeBody(resp, &ad, "record"); err != nil {
		return nil, err
	}
	return ad.detail(), nil
}

// Approve approves a record.
func (c *Client) Approve(ctx context.Context, id int64) error {
	return c.post(ctx, id, "approve", nil)
}

// Reject rejects a record with the decision's reason and comment.
func (c *Client) Reject(ctx context.Context, id int64, d listing.Decision) error {
	return c.post(ctx, id, "reject", decisionBody(d))
}

// RequestChanges returns a record to its author with the decision's reason
// and comment.
func (c *Client) RequestChanges(ctx context.Context, id int64, d listing.Decision) error {
	return c.post(ctx, id, "request-changes", decisionBody(d))
}

func (c *Client) post(ctx context.Context, id int64, action string, body any) error {
	path := "/ads/" + strconv.FormatInt(id, 10) + "/" + action
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s record %d: %w", action, id, handleErrorResponse(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatsSummary fetches the moderation report for period.
func (c *Client) StatsSummary(ctx context.Context, period listing.StatsPeriod) (*listing.StatsSummary, error) {
	query := url.Values{}
	if period != "" {
		query.Set("period", string(period))
	}
	resp, err := c.doRequest(ctx, http.MethodGet, "/stats/summary", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var stats listing.StatsSummary
	if err := decodeBody(resp, &stats, "stats"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
