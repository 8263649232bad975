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

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

const (
	MetricRequestCount    = "http.server.request.count"
	MetricRequestDuration = "http.server.request.duration"
)

// requestDurationBuckets are the HTTP semantic convention boundaries, in seconds.
var requestDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
}

// Metrics creates counters and histograms on first use and caches them by name.
type Metrics struct {
	meter  metric.Meter
	logger logger.Logger

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics returns a Metrics for scope. A nil provider records nothing.
func NewMetrics(provider metric.MeterProvider, scope string, log logger.Logger) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	m := &Metrics{
		meter:      provider.Meter(scope),
		logger:     log,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	var err error

	m.requestCount, err = m.meter.Int64Counter(MetricRequestCount,
		metric.WithDescription("Number of HTTP server requests."),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", MetricRequestCount, err)
	}

	m.requestDuration, err = m.meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of HTTP server requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestDurationBuckets...))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", MetricRequestDuration, err)
	}

	return m, nil
}

// Meter exposes the underlying meter for observable instruments.
func (m *Metrics) Meter() metric.Meter {
	return m.meter
}

// Increment adds value to the counter called name.
func (m *Metrics) Increment(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	counter, err := m.counter(name)
	if err != nil {
		m.logger.Warn().Err(err).Str("metric", name).Msg("Failed to create counter")

		return
	}

	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Record adds value to the histogram called name.
func (m *Metrics) Record(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	histogram, err := m.histogram(name)
	if err != nil {
		m.logger.Warn().Err(err).Str("metric", name).Msg("Failed to create histogram")

		return
	}

	histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordRequest counts one handled request and records its latency.
func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		semconv.HTTPRoute(route),
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPResponseStatusCode(status),
	)

	m.requestCount.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) counter(name string) (metric.Int64Counter, error) {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()

	if ok {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok = m.counters[name]; ok {
		return c, nil
	}

	c, err := m.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}

	m.counters[name] = c

	return c, nil
}

func (m *Metrics) histogram(name string) (metric.Float64Histogram, error) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()

	if ok {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok = m.histograms[name]; ok {
		return h, nil
	}

	h, err := m.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}

	m.histograms[name] = h

	return h, nil
}
