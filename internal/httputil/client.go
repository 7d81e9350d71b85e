package httputil

import (
	"net/http"
	"net/http/httptest"
)

// HTTPClient is the part of *http.Client the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewStandardClient returns c, or http.DefaultClient when c is nil.
func NewStandardClient(c *http.Client) HTTPClient {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

// HandlerClient serves requests in process through Handler. Every request
// is recorded so tests can inspect what was sent.
type HandlerClient struct {
	Handler  http.Handler
	Requests []*http.Request
}

// NewHandlerClient wraps h.
func NewHandlerClient(h http.Handler) *HandlerClient {
	return &HandlerClient{Handler: h}
}

// Do implements HTTPClient.
func (c *HandlerClient) Do(req *http.Request) (*http.Response, error) {
	c.Requests = append(c.Requests, req)
	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// RequestCount returns the number of requests served.
func (c *HandlerClient) RequestCount() int {
	return len(c.Requests)
}
