// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is an outbound HTTP request.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Body        []byte
}

// Response is what a Transport returns.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport performs outbound requests.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTP is a Transport over net/http.
type HTTP struct {
	Timeout   time.Duration
	UserAgent string
	MaxBody   int64
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) { h.Timeout = timeout }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) { h.UserAgent = ua }
}

// WithMaxBody limits how many response bytes are read.
func WithMaxBody(n int64) HTTPOption {
	return func(h *HTTP) { h.MaxBody = n }
}

// NewHTTP creates an HTTP transport.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		Timeout:   30 * time.Second,
		UserAgent: "ikin/1",
		MaxBody:   10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do sends req and reads the whole response body.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}
	if h.UserAgent != "" {
		hreq.Header.Set("User-Agent", h.UserAgent)
	}

	client := &http.Client{Timeout: h.Timeout}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.MaxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL, err)
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// Mock is a Transport for tests. It records requests and answers with
// Response or Handler.
type Mock struct {
	Response Response
	Handler  func(req *Request) Response
	Requests []Request
}

// NewMock creates a mock transport with a fixed response.
func NewMock(status int, contentType, body string) *Mock {
	return &Mock{Response: Response{Status: status, ContentType: contentType, Body: []byte(body)}}
}

// NewMockHandler creates a mock transport with a custom handler.
func NewMockHandler(handler func(req *Request) Response) *Mock {
	return &Mock{Handler: handler}
}

// Do records req and returns the mock response.
func (m *Mock) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.Requests = append(m.Requests, *req)
	if m.Handler != nil {
		r := m.Handler(req)
		return &r, nil
	}
	r := m.Response
	return &r, nil
}
