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

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// The SDK processors and readers call these exporters from their own
// goroutines. Each one copies what the SDK may reuse and hands the batch to
// the Client without any network I/O.

type spanExporter struct {
	client *Client
}

var _ sdktrace.SpanExporter = (*spanExporter)(nil)

func (e *spanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if len(spans) == 0 {
		return nil
	}

	// The batch span processor reuses its slice after ExportSpans returns.
	batch := &Batch{Spans: append([]sdktrace.ReadOnlySpan(nil), spans...)}
	e.client.Send(SignalSpans, batch)

	return nil
}

func (*spanExporter) Shutdown(context.Context) error {
	return nil
}

type metricExporter struct {
	client *Client
}

var _ sdkmetric.Exporter = (*metricExporter)(nil)

func (*metricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DeltaTemporalitySelector(k)
}

func (*metricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *metricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	if countDataPoints(rm) == 0 {
		return nil
	}

	// The periodic reader reuses rm for the next collection.
	e.client.Send(SignalMetrics, &Batch{Metrics: copyResourceMetrics(rm)})

	return nil
}

func (*metricExporter) ForceFlush(context.Context) error {
	return nil
}

func (*metricExporter) Shutdown(context.Context) error {
	return nil
}

type logExporter struct {
	client *Client
}

var _ sdklog.Exporter = (*logExporter)(nil)

func (e *logExporter) Export(_ context.Context, records []sdklog.Record) error {
	if len(records) == 0 {
		return nil
	}

	cloned := make([]sdklog.Record, len(records))
	for i := range records {
		cloned[i] = records[i].Clone()
	}

	e.client.Send(SignalLogs, &Batch{Logs: cloned})

	return nil
}

func (*logExporter) ForceFlush(context.Context) error {
	return nil
}

func (*logExporter) Shutdown(context.Context) error {
	return nil
}
