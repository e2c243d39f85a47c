package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/httputil"
)

// DefaultPollInterval is how often WaitRun polls a running analysis.
const DefaultPollInterval = 250 * time.Millisecond

// Client talks to a lane server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient creates a client for the server at baseURL. A nil c uses
// httputil.NewStandardClient(nil).
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	return httputil.DecodeJSON(resp, out)
}

// Submit starts an analysis of video, a path relative to one of the
// server's media directories, and returns the run ID.
func (c *Client) Submit(ctx context.Context, video string, req analysis.Request) (string, error) {
	var out submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/analyses", submitRequest{Video: video, Request: req}, &out); err != nil {
		return "", fmt.Errorf("submit %s: %w", video, err)
	}
	return out.RunID, nil
}

// ListRuns returns the most recent runs, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*db.AnalysisRun, error) {
	path := "/api/analyses"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var runs []*db.AnalysisRun
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Run returns a run with its points.
func (c *Client) Run(ctx context.Context, runID string) (*RunDetail, error) {
	var out RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/analyses/"+url.PathEscape(runID), nil, &out); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &out, nil
}

// WaitRun polls until the run leaves the running state or ctx is done.
func (c *Client) WaitRun(ctx context.Context, runID string, every time.Duration) (*RunDetail, error) {
	if every <= 0 {
		every = DefaultPollInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		detail, err := c.Run(ctx, runID)
		if err != nil {
			return nil, err
		}
		if !detail.Running && detail.Run.Status != db.RunStatusRunning {
			return detail, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DeleteRun cancels the run if it is still executing and deletes it.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/analyses/"+url.PathEscape(runID), nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", runID, err)
	}
	return nil
}

// Chart copies the rendered report of a completed run to w. format is
// "html" or "png".
func (c *Client) Chart(ctx context.Context, runID, format string, w io.Writer) error {
	path := "/api/analyses/" + url.PathEscape(runID) + "/chart?format=" + url.QueryEscape(format)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		err := httputil.DecodeJSON(resp, nil)
		if err == nil {
			err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("chart %s: %w", runID, err)
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// Config returns the server's effective tuning.
func (c *Client) Config(ctx context.Context) (*config.TuningConfig, error) {
	var cfg config.TuningConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
