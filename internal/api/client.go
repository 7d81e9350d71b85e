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

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/httputil"
	"github.com/banshee-data/glyph.codec/internal/jobs"
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client talks to a running glyph server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at base, e.g.
// "http://localhost:8080". A nil c uses http.DefaultClient.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// Submit uploads a model for compression.
func (c *Client) Submit(ctx context.Context, sub jobs.Submission) (*SubmitResponse, error) {
	q := url.Values{"model": {sub.ModelName}}
	if sub.Resolution > 0 {
		q.Set("resolution", strconv.Itoa(sub.Resolution))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/compress?"+q.Encode(), bytes.NewReader(sub.Body))
	if err != nil {
		return nil, err
	}
	if sub.Format == jobs.FormatASC {
		req.Header.Set("Content-Type", "text/plain")
	} else {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	var out SubmitResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job fetches a job and its recorded stages.
func (c *Client) Job(ctx context.Context, id string) (*JobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var out JobResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Artifact fetches the artifact of a completed job.
func (c *Client) Artifact(ctx context.Context, id string) (*artifact.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/api/jobs/"+url.PathEscape(id)+"/artifact", nil)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	return artifact.Unmarshal(raw)
}

// Wait polls a job every interval until it completes or fails.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (*JobResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case db.StatusComplete, db.StatusFailed:
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return &Error{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
