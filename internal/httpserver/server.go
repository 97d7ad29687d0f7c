// Sharpspring Lead Sync - Go client for the Sharpspring REST API
// Copyright 2026 Roderik Muit (rmuit)
// SPDX-License-Identifier: MIT
// https://github.com/rmuit/sharpspring-restapi

// Package httpserver exposes the daemon's operational endpoints:
// /healthz for liveness probes and /metrics for Prometheus scraping.
// There is no business API; all lead traffic goes out, not in.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmuit/sharpspring-restapi-sub000/internal/logging"
)

// Server serves the operational HTTP endpoint as a supervised service.
type Server struct {
	addr   string
	router chi.Router
}

// NewServer builds the server for addr.
func NewServer(addr string) *Server {
	s := &Server{addr: addr}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Serve implements suture.Service: it blocks until the listener fails or
// the context is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("component", "httpserver").Str("addr", s.addr).Msg("operational endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

// String identifies the service in supervisor logs.
func (s *Server) String() string { return "http-server" }
