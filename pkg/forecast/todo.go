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


package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=mock_todo.go -package=forecast github.com/carverauto/telemetryapp/pkg/forecast TodoFetcher

const (
	// DefaultTodoURL is the sample upstream called on every forecast.
	DefaultTodoURL = "https://jsonplaceholder.typicode.com/todos/1"

	// DefaultTodoTimeout bounds a single upstream call.
	DefaultTodoTimeout = 5 * time.Second

	maxTodoBodyBytes = 64 << 10
)

// ErrUnexpectedStatus is returned for non-2xx upstream responses.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// TodoFetcher retrieves the upstream todo document.
type TodoFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// TodoClientOptions configures NewTodoClient. Nil providers fall back to the
// otel globals.
type TodoClientOptions struct {
	URL            string
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Propagator     propagation.TextMapPropagator
	Base           http.RoundTripper
}

// TodoClient calls the todo endpoint through an instrumented transport so
// every call gets a client span and propagates the trace context.
type TodoClient struct {
	url    string
	client *http.Client
}

var _ TodoFetcher = (*TodoClient)(nil)

// NewTodoClient builds a TodoClient.
func NewTodoClient(opts TodoClientOptions) *TodoClient {
	if opts.URL == "" {
		opts.URL = DefaultTodoURL
	}

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTodoTimeout
	}

	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}

	if opts.Propagator != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(opts.Propagator))
	}

	return &TodoClient{
		url: opts.URL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(base, otelOpts...),
			Timeout:   opts.Timeout,
		},
	}
}

// Fetch returns the response body of a GET on the configured URL.
func (c *TodoClient) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to build todo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("todo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTodoBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read todo response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return string(body), nil
}
