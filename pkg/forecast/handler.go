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
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/telemetryapp/pkg/logger"
	"github.com/carverauto/telemetryapp/pkg/telemetry"
)

const (
	// MetricForecastsServed counts forecast records returned to clients.
	MetricForecastsServed = "forecast.records.served"

	spanTodoFetch = "todo.fetch"
)

// Handler serves GET /weatherforecast.
type Handler struct {
	generator *Generator
	todos     TodoFetcher
	tracer    *telemetry.Tracer
	metrics   *telemetry.Metrics
	logger    logger.Logger
}

// NewHandler wires the forecast handler. todos may be nil to skip the
// upstream lookup; a nil tracer produces no-op spans.
func NewHandler(
	generator *Generator, todos TodoFetcher, tracer *telemetry.Tracer, metrics *telemetry.Metrics, log logger.Logger,
) *Handler {
	if generator == nil {
		generator = NewGenerator(nil, nil)
	}

	if tracer == nil {
		tracer = telemetry.NewTracer(nil, "", log)
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Handler{
		generator: generator,
		todos:     todos,
		tracer:    tracer,
		metrics:   metrics,
		logger:    log,
	}
}

// GetWeatherForecast returns DefaultDays forecast records. A failed upstream
// lookup is logged and recorded on its span but never fails the response.
func (h *Handler) GetWeatherForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	forecasts := h.generator.Generate(DefaultDays)

	h.logger.Emit(ctx, zerolog.InfoLevel, "GetWeatherForecast called", nil)

	if h.todos != nil {
		if err := h.lookupTodo(ctx); err != nil {
			h.logger.Warn().Ctx(ctx).Err(err).Msg("Todo lookup failed")
		}
	}

	if h.metrics != nil {
		h.metrics.Increment(ctx, MetricForecastsServed, int64(len(forecasts)))
	}

	writeJSON(w, http.StatusOK, forecasts)
}

func (h *Handler) lookupTodo(ctx context.Context) error {
	return h.tracer.Run(ctx, spanTodoFetch, func(ctx context.Context, span *telemetry.SpanHandle) error {
		resp, err := h.todos.Fetch(ctx)
		if err != nil {
			return err
		}

		span.SetAttributes(attribute.Int("todo.response.bytes", len(resp)))

		h.logger.Emit(ctx, zerolog.InfoLevel, "GetWeatherForecast called {resp}", map[string]interface{}{
			"resp": resp,
		})

		return nil
	}, trace.WithSpanKind(trace.SpanKindInternal))
}

// Health answers liveness probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
