// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package server exposes script execution over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Uwikunda17/kinyarwandalibrary/pkg/kinyarwanda"
)

// Server handles /health and /run.
type Server struct {
	runner  *kinyarwanda.Runner
	root    string
	log     *slog.Logger
	maxBody int64
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRoot sets the directory `file` requests are resolved in. Default ".".
func WithRoot(dir string) Option {
	return func(s *Server) { s.root = dir }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMaxBody limits request bodies.
func WithMaxBody(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithRunTimeout bounds each run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server running scripts with runner.
func New(runner *kinyarwanda.Runner, opts ...Option) *Server {
	s := &Server{
		runner:  runner,
		root:    ".",
		log:     slog.New(slog.DiscardHandler),
		maxBody: 1 << 20,
		timeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunRequest is the body of POST /run. Exactly one of Code and File is set.
type RunRequest struct {
	Code      string         `json:"code"`
	File      string         `json:"file"`
	Variables map[string]any `json:"variables"`
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /run", s.handleRun)
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.log.Info("listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ikin server is running")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request: %w", err))
		return
	}
	if (req.Code == "") == (req.File == "") {
		s.writeError(w, http.StatusBadRequest, errors.New("exactly one of code and file is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	runner := s.runner
	if len(req.Variables) > 0 {
		runner = runner.WithOptions(kinyarwanda.WithVariables(req.Variables))
	}

	var (
		res *kinyarwanda.Result
		err error
	)
	if req.File != "" {
		path, perr := s.resolve(req.File)
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, perr)
			return
		}
		res, err = runner.RunFile(ctx, path)
	} else {
		res, err = runner.Run(ctx, req.Code)
	}

	switch {
	case errors.Is(err, kinyarwanda.ErrExtension):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, fs.ErrNotExist):
		s.writeError(w, http.StatusNotFound, fmt.Errorf("script not found: %s", req.File))
	case err != nil:
		s.log.Warn("run failed", "err", err)
		s.writeError(w, http.StatusUnprocessableEntity, err)
	default:
		s.writeJSON(w, http.StatusOK, res)
	}
}

// resolve maps a request file onto the server root. Paths leaving the root
// are rejected.
func (s *Server) resolve(file string) (string, error) {
	clean := filepath.FromSlash(file)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("file must be a relative path inside the server root: %s", file)
	}
	return filepath.Join(s.root, clean), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Microsecond).String(),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "status", status, "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": strings.TrimSpace(err.Error())})
}
