/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


// Package lifecycle runs long-lived servers until their context ends.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

// ErrListen wraps failures to bind the listen address.
var ErrListen = errors.New("failed to listen")

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// ServerOptions configures RunHTTPServer.
type ServerOptions struct {
	Addr            string
	Handler         http.Handler
	Logger          logger.Logger
	ShutdownTimeout time.Duration

	// OnListen is called with the bound address before serving starts.
	OnListen func(net.Addr)
}

// RunHTTPServer binds opts.Addr, serves until ctx is canceled and then shuts
// the server down gracefully within opts.ShutdownTimeout. It returns an
// error wrapping ErrListen when the address cannot be bound, nil after a
// graceful shutdown, and the serve error otherwise.
func RunHTTPServer(ctx context.Context, opts ServerOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	lis, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("%w on %s: %w", ErrListen, opts.Addr, err)
	}

	srv := &http.Server{
		Handler:           opts.Handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	if opts.OnListen != nil {
		opts.OnListen(lis.Addr())
	}

	log.Info().Str("addr", lis.Addr().String()).Msg("HTTP server listening")

	errCh := make(chan error, 1)

	go func() {
		if serveErr := srv.Serve(lis); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}

		close(errCh)
	}()

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}

		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", timeout).Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()

		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}
