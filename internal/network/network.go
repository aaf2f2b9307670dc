// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package network implements the outbound HTTP commands and form capture.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/eval"
	"github.com/Uwikunda17/kinyarwandalibrary/internal/value"
)

// Command names handled by Family.
const (
	Form     = "fata"
	Get      = "zana"
	GetJSON  = "zana_json"
	Post     = "subiza"
	PostJSON = "subiza_json"
)

var (
	// ErrNoForms is returned by fata when no form source is configured.
	ErrNoForms = errors.New("fata requires a form source")
	// ErrStatus is returned by the JSON commands on a non-2xx response.
	ErrStatus = errors.New("unexpected response status")
)

// FormData is the captured content of a form, field name to value. It is
// posted url-encoded.
type FormData map[string]string

// Forms locates forms by selector.
type Forms interface {
	Form(sel string) (map[string]string, error)
}

// Family is the network command family.
type Family struct {
	transport Transport
	forms     Forms
	log       *slog.Logger
}

// Option configures a Family.
type Option func(*Family)

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(f *Family) { f.transport = t }
}

// WithForms sets the source fata reads from.
func WithForms(forms Forms) Option {
	return func(f *Family) { f.forms = forms }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Family) { f.log = l }
}

// New creates the network family.
func New(opts ...Option) *Family {
	f := &Family{
		transport: NewHTTP(),
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Dispatch implements eval.Family.
func (f *Family) Dispatch(ctx context.Context, req *eval.Request) (eval.Outcome, error) {
	var (
		v   any
		err error
	)
	switch req.Name {
	case Form:
		v, err = f.form(ctx, req)
	case Get:
		v, err = f.get(ctx, req, false)
	case GetJSON:
		v, err = f.get(ctx, req, true)
	case Post:
		v, err = f.post(ctx, req, false)
	case PostJSON:
		v, err = f.post(ctx, req, true)
	default:
		return eval.NotHandled, nil
	}
	if err != nil {
		return eval.NotHandled, err
	}
	return eval.Handled(v), nil
}

func (f *Family) form(ctx context.Context, req *eval.Request) (any, error) {
	if f.forms == nil {
		return nil, ErrNoForms
	}
	sel, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	fields, err := f.forms.Form(sel)
	if err != nil {
		return nil, err
	}
	return FormData(fields), nil
}

func (f *Family) get(ctx context.Context, req *eval.Request, parse bool) (any, error) {
	u, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	return f.send(ctx, &Request{Method: "GET", URL: u}, parse)
}

func (f *Family) post(ctx context.Context, req *eval.Request, parse bool) (any, error) {
	u, err := req.Text(ctx, 0)
	if err != nil {
		return nil, err
	}
	payload, err := req.Arg(ctx, 1)
	if err != nil {
		return nil, err
	}
	out := &Request{Method: "POST", URL: u}
	if form, ok := payload.(FormData); ok {
		out.ContentType = "application/x-www-form-urlencoded"
		out.Body = []byte(encodeForm(form))
	} else {
		out.ContentType = "application/json"
		if out.Body, err = json.Marshal(value.Plain(payload)); err != nil {
			return nil, err
		}
	}
	return f.send(ctx, out, parse)
}

func (f *Family) send(ctx context.Context, req *Request, parse bool) (any, error) {
	resp, err := f.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	f.log.Info("request", "method", req.Method, "url", req.URL, "status", resp.Status, "bytes", len(resp.Body))

	if !parse {
		return responseValue(resp), nil
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d from %s: %s", ErrStatus, resp.Status, req.URL, resp.Body)
	}
	return decodeBody(resp)
}

// responseValue exposes a response to scripts as r.status, r.ok, r.text and
// r.contentType.
func responseValue(resp *Response) map[string]any {
	return map[string]any{
		"status":      float64(resp.Status),
		"ok":          resp.OK(),
		"text":        string(resp.Body),
		"contentType": resp.ContentType,
	}
}

// decodeBody parses a JSON body. Bodies that are not JSON are returned as
// text unless the server declared them JSON.
func decodeBody(resp *Response) (any, error) {
	var v any
	err := json.Unmarshal(resp.Body, &v)
	if err == nil {
		return v, nil
	}
	if strings.Contains(resp.ContentType, "application/json") {
		return nil, fmt.Errorf("decoding JSON response: %w", err)
	}
	return string(resp.Body), nil
}

func encodeForm(form FormData) string {
	vals := url.Values{}
	for k, v := range form {
		vals.Set(k, v)
	}
	return vals.Encode()
}
