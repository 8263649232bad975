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
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/atomic"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

const (
	attrErrorType    = "error.type"
	attrErrorMessage = "error.message"
)

// SpanState is the lifecycle position of a SpanHandle.
type SpanState int32

const (
	SpanUnstarted SpanState = iota
	SpanActive
	SpanEnded
)

func (s SpanState) String() string {
	switch s {
	case SpanUnstarted:
		return "unstarted"
	case SpanActive:
		return "active"
	case SpanEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Tracer opens spans through handles that enforce a single End.
type Tracer struct {
	tracer      trace.Tracer
	logger      logger.Logger
	usageErrors atomic.Int64
}

// NewTracer returns a Tracer for scope. A nil provider yields no-op spans.
func NewTracer(provider trace.TracerProvider, scope string, log logger.Logger) *Tracer {
	if provider == nil {
		provider = noop.NewTracerProvider()
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Tracer{
		tracer: provider.Tracer(scope),
		logger: log,
	}
}

// Begin starts a span as a child of any span in ctx and returns the handle
// in the active state.
func (t *Tracer) Begin(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, *SpanHandle) {
	start := time.Now()

	opts = append(opts, trace.WithTimestamp(start))
	ctx, span := t.tracer.Start(ctx, name, opts...)

	h := &SpanHandle{
		span:   span,
		name:   name,
		start:  start,
		tracer: t,
	}
	h.state.Store(int32(SpanActive))

	return ctx, h
}

// Run executes fn inside a span. A returned error or a panic marks the span
// as failed, and the span is ended before the error returns or the panic
// continues.
func (t *Tracer) Run(
	ctx context.Context, name string, fn func(context.Context, *SpanHandle) error, opts ...trace.SpanStartOption,
) (err error) {
	ctx, h := t.Begin(ctx, name, opts...)

	defer func() {
		if r := recover(); r != nil {
			h.RecordError(fmt.Errorf("%w: %v", ErrPanic, r))
			h.endIfActive()

			panic(r)
		}

		if err != nil {
			h.RecordError(err)
		}

		h.endIfActive()
	}()

	return fn(ctx, h)
}

// UsageErrors returns how many API misuses were reported.
func (t *Tracer) UsageErrors() int64 {
	return t.usageErrors.Load()
}

func (t *Tracer) reportUsage(err *UsageError, spanName string) {
	t.usageErrors.Inc()
	t.logger.Warn().Err(err).Str("span", spanName).Msg("Span API misuse")
}

// SpanHandle is the only way to mutate a span. It is safe for concurrent use.
type SpanHandle struct {
	span   trace.Span
	name   string
	start  time.Time
	state  atomic.Int32
	tracer *Tracer
}

func (h *SpanHandle) State() SpanState {
	return SpanState(h.state.Load())
}

func (h *SpanHandle) Name() string {
	return h.name
}

func (h *SpanHandle) SpanContext() trace.SpanContext {
	return h.span.SpanContext()
}

// SetAttributes is ignored once the span has ended.
func (h *SpanHandle) SetAttributes(attrs ...attribute.KeyValue) {
	if h.State() != SpanActive {
		return
	}

	h.span.SetAttributes(attrs...)
}

func (h *SpanHandle) SetStatus(code codes.Code, description string) {
	if h.State() != SpanActive {
		return
	}

	h.span.SetStatus(code, description)
}

// RecordError marks the span as failed and records err as an event and as
// error.type and error.message attributes.
func (h *SpanHandle) RecordError(err error) {
	if err == nil || h.State() != SpanActive {
		return
	}

	h.span.RecordError(err)
	h.span.SetAttributes(
		attribute.String(attrErrorType, errorType(err)),
		attribute.String(attrErrorMessage, err.Error()),
	)
	h.span.SetStatus(codes.Error, err.Error())
}

// End seals the span. The end time is never earlier than the start time.
// Ending twice returns a *UsageError wrapping ErrSpanAlreadyEnded and does
// not export the span again.
func (h *SpanHandle) End(opts ...trace.SpanEndOption) error {
	if !h.state.CompareAndSwap(int32(SpanActive), int32(SpanEnded)) {
		err := &UsageError{Op: "span.End", Err: ErrSpanAlreadyEnded}
		h.tracer.reportUsage(err, h.name)

		return err
	}

	h.finish(opts...)

	return nil
}

func (h *SpanHandle) endIfActive() {
	if h.state.CompareAndSwap(int32(SpanActive), int32(SpanEnded)) {
		h.finish()
	}
}

func (h *SpanHandle) finish(opts ...trace.SpanEndOption) {
	end := time.Now()
	if end.Before(h.start) {
		end = h.start
	}

	h.span.End(append(opts, trace.WithTimestamp(end))...)
}

func errorType(err error) string {
	if errors.Is(err, ErrPanic) {
		return "panic"
	}

	t := reflect.TypeOf(err)
	if t == nil {
		return "unknown"
	}

	return t.String()
}
