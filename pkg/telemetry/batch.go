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
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SignalKind identifies the kind of signals a Batch carries.
type SignalKind int

const (
	SignalSpans SignalKind = iota
	SignalMetrics
	SignalLogs
)

func (k SignalKind) String() string {
	switch k {
	case SignalSpans:
		return "spans"
	case SignalMetrics:
		return "metrics"
	case SignalLogs:
		return "logs"
	default:
		return "unknown"
	}
}

// Batch is an ordered group of signals of one kind. Once handed to the
// Client it is owned by it until exported or dropped.
type Batch struct {
	Kind       SignalKind
	Spans      []sdktrace.ReadOnlySpan
	Metrics    *metricdata.ResourceMetrics
	Logs       []sdklog.Record
	EnqueuedAt time.Time
	Attempts   int
}

// matchesKind reports whether only the payload selected by Kind is set.
func (b *Batch) matchesKind() bool {
	switch b.Kind {
	case SignalSpans:
		return b.Metrics == nil && len(b.Logs) == 0
	case SignalMetrics:
		return len(b.Spans) == 0 && len(b.Logs) == 0
	case SignalLogs:
		return len(b.Spans) == 0 && b.Metrics == nil
	default:
		return false
	}
}

// Len returns the number of signals in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}

	switch b.Kind {
	case SignalSpans:
		return len(b.Spans)
	case SignalLogs:
		return len(b.Logs)
	case SignalMetrics:
		return countDataPoints(b.Metrics)
	default:
		return 0
	}
}

// Outcome reports what Send did with a batch.
type Outcome int

const (
	// OutcomeQueued means the batch was accepted.
	OutcomeQueued Outcome = iota
	// OutcomeQueuedDroppedOldest means the batch was accepted and the
	// oldest queued batch was discarded to make room.
	OutcomeQueuedDroppedOldest
	// OutcomeRejectedClosed means the client is shut down.
	OutcomeRejectedClosed
	// OutcomeRejectedEmpty means the batch carried no signals.
	OutcomeRejectedEmpty
	// OutcomeRejectedMismatch means the batch payload is not of the kind it
	// was sent as.
	OutcomeRejectedMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQueued:
		return "queued"
	case OutcomeQueuedDroppedOldest:
		return "queued_dropped_oldest"
	case OutcomeRejectedClosed:
		return "rejected_closed"
	case OutcomeRejectedEmpty:
		return "rejected_empty"
	case OutcomeRejectedMismatch:
		return "rejected_mismatch"
	default:
		return "unknown"
	}
}
