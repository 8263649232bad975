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


// Package http provides the server middleware shared by HTTP handlers.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/telemetryapp/pkg/common"
	"github.com/carverauto/telemetryapp/pkg/logger"
	"github.com/carverauto/telemetryapp/pkg/telemetry"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"

	attrRequestID  = "request.id"
	unmatchedRoute = "unmatched"
)

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one,
// echoes it on the response and stores it in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

// TelemetryOptions configures TelemetryMiddleware.
type TelemetryOptions struct {
	Tracer     *telemetry.Tracer
	Metrics    *telemetry.Metrics
	Logger     logger.Logger
	Propagator propagation.TextMapPropagator

	// Router resolves route templates when the middleware wraps the router
	// from the outside.
	Router *mux.Router
}

// Instrument wraps the whole router in the request-id and telemetry
// middleware. Unlike router.Use, this also covers requests that match no
// route (404, 405 and path-cleaning redirects).
func Instrument(router *mux.Router, opts TelemetryOptions) http.Handler {
	opts.Router = router

	return RequestIDMiddleware(TelemetryMiddleware(opts)(router))
}

// TelemetryMiddleware wraps every request in exactly one server span, records
// the request count and duration, and logs the completed request. A panic in
// the handler is answered with 500 and recorded on the span instead of
// tearing down the connection.
func TelemetryMiddleware(opts TelemetryOptions) mux.MiddlewareFunc {
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewTracer(nil, "", nil)
	}

	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger()
	}

	if opts.Propagator == nil {
		opts.Propagator = propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeTemplate(r, opts.Router)
			ctx := opts.Propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			rec := &statusRecorder{status: http.StatusOK}
			ww := httpsnoop.Wrap(w, rec.hooks())

			spanOpts := []trace.SpanStartOption{
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRoute(route),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			}

			_ = opts.Tracer.Run(ctx, r.Method+" "+route, func(ctx context.Context, span *telemetry.SpanHandle) (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("%w: %v", telemetry.ErrPanic, p)

						if !rec.wroteHeader {
							http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
						}
					}

					complete(ctx, opts, span, r, route, rec.status, time.Since(start), err)
				}()

				next.ServeHTTP(ww, r.WithContext(ctx))

				return nil
			}, spanOpts...)
		})
	}
}

func complete(
	ctx context.Context, opts TelemetryOptions, span *telemetry.SpanHandle,
	r *http.Request, route string, status int, elapsed time.Duration, err error,
) {
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))

	if status >= http.StatusInternalServerError && err == nil {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	requestID, hasRequestID := common.GetRequestID(r.Context())
	if hasRequestID {
		span.SetAttributes(attribute.String(attrRequestID, requestID))
	}

	if opts.Metrics != nil {
		opts.Metrics.RecordRequest(ctx, route, r.Method, status, elapsed)
	}

	event := opts.Logger.Info()
	if err != nil || status >= http.StatusInternalServerError {
		event = opts.Logger.Error().Err(err)
	}

	if hasRequestID {
		event = event.Str(attrRequestID, requestID)
	}

	event.Ctx(ctx).
		Str("method", r.Method).
		Str("route", route).
		Int("status", status).
		Dur("duration", elapsed).
		Msg("request completed")
}

// routeTemplate returns the mux path template so that span names and metric
// attributes stay low-cardinality.
func routeTemplate(r *http.Request, router *mux.Router) string {
	route := mux.CurrentRoute(r)

	if route == nil && router != nil {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.MatchErr == nil {
			route = match.Route
		}
	}

	if route == nil {
		return unmatchedRoute
	}

	tpl, err := route.GetPathTemplate()
	if err != nil {
		return unmatchedRoute
	}

	return tpl
}

type statusRecorder struct {
	status      int
	wroteHeader bool
}

func (s *statusRecorder) hooks() httpsnoop.Hooks {
	return httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				if !s.wroteHeader {
					s.status = code
					s.wroteHeader = true
				}

				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				s.wroteHeader = true

				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				s.wroteHeader = true

				return next(src)
			}
		},
	}
}
