// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address, e.g. ":8080". Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// ShutdownTimeout bounds how long in-flight requests may run after
	// the context is cancelled. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// RequestTimeout bounds reading a request and writing its
	// response. On-demand generation can take most of the generation
	// timeout, so this defaults to 60 seconds.
	RequestTimeout time.Duration

	// Logger is required.
	Logger *slog.Logger
}

// HTTPServer serves HTTP until its context is cancelled.
type HTTPServer struct {
	config HTTPServerConfig
	ready  chan struct{}
	addr   net.Addr
}

// NewHTTPServer validates config and returns a server. It panics on a
// missing required field, which is a programming error.
func NewHTTPServer(config HTTPServerConfig) *HTTPServer {
	switch {
	case config.Address == "":
		panic("service.HTTPServer: Address is required")
	case config.Handler == nil:
		panic("service.HTTPServer: Handler is required")
	case config.Logger == nil:
		panic("service.HTTPServer: Logger is required")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	return &HTTPServer{config: config, ready: make(chan struct{})}
}

// Ready is closed once the listener is bound.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound address. Valid after Ready is closed; useful with
// port 0.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve binds the listener and serves until ctx is cancelled, then
// stops accepting connections and waits up to ShutdownTimeout for
// active requests.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.config.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.config.RequestTimeout,
		WriteTimeout:      s.config.RequestTimeout,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(s.config.Logger.Handler(), slog.LevelWarn),
	}

	s.config.Logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveDone <- err
	}()

	select {
	case err := <-serveDone:
		return err
	case <-ctx.Done():
	}

	s.config.Logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.config.Logger.Info("http server stopped")
	return nil
}
