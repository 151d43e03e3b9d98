package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// Compile-time interface conformance checks.
var (
	_ core.RunClient  = (*Client)(nil)
	_ core.UserClient = (*Client)(nil)
)

// Client talks to the remote test-management API. The coordination layer
// only ever sees the core.RunClient surface; everything about the wire
// format stays in here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries bounds retries of retryable responses.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runResponse struct {
	ID          int64 `json:"id"`
	IsCompleted bool  `json:"is_completed"`
}

// GetRunStatus looks up a run. A 404 is a valid answer, not an error.
func (c *Client) GetRunStatus(ctx context.Context, runID int64) (core.RunStatus, error) {
	var resp runResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v2/runs/%d", runID), nil, &resp)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return core.RunStatus{Exists: false}, nil
		}
		return core.RunStatus{}, err
	}
	return core.RunStatus{Exists: true, Completed: resp.IsCompleted}, nil
}

// CreateRun creates a run restricted to the given case ids.
func (c *Client) CreateRun(ctx context.Context, projectID int64, name string, caseIDs []int64) (int64, error) {
	body := map[string]interface{}{
		"name":        name,
		"include_all": false,
		"case_ids":    caseIDs,
	}
	var resp runResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v2/projects/%d/runs", projectID), body, &resp)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpdateRunMembership replaces the run's case id set.
func (c *Client) UpdateRunMembership(ctx context.Context, runID int64, caseIDs []int64) error {
	body := map[string]interface{}{
		"include_all": false,
		"case_ids":    caseIDs,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v2/runs/%d/cases", runID), body, nil)
}

// SubmitResults posts results against the run.
func (c *Client) SubmitResults(ctx context.Context, runID int64, results []core.Result) error {
	type wireResult struct {
		CaseID  int64  `json:"case_id"`
		Status  int    `json:"status_id"`
		Comment string `json:"comment,omitempty"`
		Elapsed string `json:"elapsed,omitempty"`
		Defects string `json:"defects,omitempty"`
	}
	wire := make([]wireResult, 0, len(results))
	for _, r := range results {
		w := wireResult{
			CaseID:  r.CaseID,
			Status:  int(r.Status),
			Comment: r.Comment,
			Defects: strings.Join(r.Defects, ","),
		}
		if r.Elapsed > 0 {
			w.Elapsed = formatElapsed(r.Elapsed)
		}
		wire = append(wire, w)
	}
	body := map[string]interface{}{"results": wire}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v2/runs/%d/results", runID), body, nil)
}

// GetUserByEmail resolves a user by email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var user core.User
	path := "/api/v2/users?email=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// do issues one request with bounded retry on retryable failures.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			c.logger.Debug("retrying request", "method", method, "path", path, "attempt", attempt)
		}

		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !core.IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.ErrNetwork(fmt.Sprintf("%s %s failed", method, path)).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return core.ErrRemote(core.CodeRemoteStatus,
				fmt.Sprintf("%s %s: undecodable response", method, path)).WithCause(err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrNotFound("remote resource", path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &core.DomainError{
			Category:  core.ErrCatRemote,
			Code:      core.CodeRemoteStatus,
			Message:   fmt.Sprintf("%s %s: status %d", method, path, resp.StatusCode),
			Retryable: true,
		}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.ErrRemote(core.CodeRemoteStatus,
			fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}
}

// formatElapsed renders a duration the way the remote API expects, e.g.
// "1m 30s".
func formatElapsed(d time.Duration) string {
	secs := int64(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
