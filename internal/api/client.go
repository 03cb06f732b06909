package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/perception-eval/internal/httputil"
	"github.com/banshee-data/perception-eval/internal/storage/sqlite"
)

// Client reads runs from a remote server started with `perception-eval serve`.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient targets baseURL (e.g. "http://localhost:8080"). A nil client
// uses http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// ListRuns returns the newest runs first, optionally for one scenario.
func (c *Client) ListRuns(ctx context.Context, scenario string, limit int) ([]*sqlite.Run, error) {
	q := url.Values{}
	if scenario != "" {
		q.Set("scenario", scenario)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var runs []*sqlite.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs", q, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns a run with its mode scores.
func (c *Client) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	var d RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(runID), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteRun removes a run and everything stored with it.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(runID), nil, nil)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
