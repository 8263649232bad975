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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

var errHandlerFailed = errors.New("handler failed")

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return NewTracer(provider, "test", logger.NewTestLogger()), recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

func TestSpanHandleEndTwiceIsUsageError(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.Begin(context.Background(), "op")
	assert.Equal(t, SpanActive, span.State())

	require.NoError(t, span.End())
	assert.Equal(t, SpanEnded, span.State())

	err := span.End()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSpanAlreadyEnded)

	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Equal(t, "span.End", usage.Op)

	assert.Len(t, recorder.Ended(), 1, "a span is exported exactly once")
	assert.Equal(t, int64(1), tracer.UsageErrors())
}

func TestSpanHandleConcurrentEnd(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.Begin(context.Background(), "op")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if span.End() != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 15, failures)
	assert.Len(t, recorder.Ended(), 1)
}

func TestSpanEndNeverPrecedesStart(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	for i := 0; i < 200; i++ {
		_, span := tracer.Begin(context.Background(), "fast")
		require.NoError(t, span.End())
	}

	for _, s := range recorder.Ended() {
		assert.False(t, s.EndTime().Before(s.StartTime()), "span %s ends before it starts", s.Name())
	}
}

func TestChildSpanReferencesParent(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx, parent := tracer.Begin(context.Background(), "parent")
	_, child := tracer.Begin(ctx, "child")

	require.NoError(t, child.End())
	require.NoError(t, parent.End())

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "child", ended[0].Name())
	assert.Equal(t, parent.SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), ended[0].SpanContext().TraceID())
	assert.False(t, ended[1].Parent().IsValid(), "parent is a root span")
}

func TestRunRecordsReturnedError(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	err := tracer.Run(context.Background(), "failing", func(_ context.Context, span *SpanHandle) error {
		span.SetAttributes(attribute.String("step", "one"))

		return errHandlerFailed
	})
	require.ErrorIs(t, err, errHandlerFailed)

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	s := ended[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, errHandlerFailed.Error(), s.Status().Description)

	msg, ok := attrValue(s.Attributes(), attrErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "handler failed", msg.AsString())

	step, ok := attrValue(s.Attributes(), "step")
	require.True(t, ok)
	assert.Equal(t, "one", step.AsString())
}

func TestRunEndsSpanOnPanic(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = tracer.Run(context.Background(), "panicking", func(context.Context, *SpanHandle) error {
			panic("boom")
		})
	})

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	typ, ok := attrValue(ended[0].Attributes(), attrErrorType)
	require.True(t, ok)
	assert.Equal(t, "panic", typ.AsString())
}

func TestRunSuccessLeavesStatusUnset(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	require.NoError(t, tracer.Run(context.Background(), "ok", func(context.Context, *SpanHandle) error {
		return nil
	}))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestRunToleratesEarlyEnd(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	require.NoError(t, tracer.Run(context.Background(), "early", func(_ context.Context, span *SpanHandle) error {
		return span.End()
	}))

	assert.Len(t, recorder.Ended(), 1)
	assert.Equal(t, int64(0), tracer.UsageErrors())
}

func TestMutationsAfterEndAreIgnored(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.Begin(context.Background(), "sealed")
	require.NoError(t, span.End())

	span.SetAttributes(attribute.String("late", "value"))
	span.RecordError(errHandlerFailed)

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	_, ok := attrValue(ended[0].Attributes(), "late")
	assert.False(t, ok)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestNoopTracer(t *testing.T) {
	tracer := NewTracer(nil, "noop", nil)

	ctx, span := tracer.Begin(context.Background(), "noop")
	require.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	require.NoError(t, span.End())
	require.ErrorIs(t, span.End(), ErrSpanAlreadyEnded)
}
