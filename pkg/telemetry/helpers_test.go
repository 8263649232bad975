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
	"bytes"
	"context"
	"sync"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// fakeTransport records delivered batches. When block is set, Send waits for
// it to close or for ctx to end.
type fakeTransport struct {
	mu        sync.Mutex
	batches   []*Batch
	err       error
	block     chan struct{}
	started   chan struct{}
	shutdowns int

	// inFlight counts Send calls that have not returned yet; its value at the
	// last Shutdown is kept in inFlightAtShutdown.
	inFlight           int
	inFlightAtShutdown int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{started: make(chan struct{}, 64)}
}

func (f *fakeTransport) Send(ctx context.Context, b *Batch) error {
	f.mu.Lock()
	f.inFlight++
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.batches = append(f.batches, b)

	return nil
}

func (f *fakeTransport) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shutdowns++
	f.inFlightAtShutdown = f.inFlight

	return nil
}

func (f *fakeTransport) delivered() []*Batch {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*Batch(nil), f.batches...)
}

func (f *fakeTransport) deliveredKind(kind SignalKind) []*Batch {
	var out []*Batch

	for _, b := range f.delivered() {
		if b.Kind == kind {
			out = append(out, b)
		}
	}

	return out
}

// logBatch returns a batch of n empty log records.
func logBatch(n int) *Batch {
	return &Batch{Kind: SignalLogs, Logs: make([]sdklog.Record, n)}
}

// syncBuffer is a bytes.Buffer safe for the flusher goroutine to write to.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
