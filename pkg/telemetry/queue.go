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

import "sync"

// batchQueue is a bounded FIFO ring. When full, push evicts the oldest
// entry. Any number of goroutines may push; the Client's flusher is the only
// reader.
type batchQueue struct {
	mu     sync.Mutex
	buf    []*Batch
	head   int
	count  int
	closed bool

	// ready has capacity one and is signaled after each successful push.
	ready chan struct{}
}

func newBatchQueue(limit int) *batchQueue {
	if limit <= 0 {
		limit = 1
	}

	return &batchQueue{
		buf:   make([]*Batch, limit),
		ready: make(chan struct{}, 1),
	}
}

// push appends b. It returns the evicted batch, if any, and false when the
// queue is closed.
func (q *batchQueue) push(b *Batch) (*Batch, bool) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil, false
	}

	var evicted *Batch

	if q.count == len(q.buf) {
		evicted = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}

	q.buf[(q.head+q.count)%len(q.buf)] = b
	q.count++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return evicted, true
}

func (q *batchQueue) pop() (*Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil, false
	}

	b := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	return b, true
}

func (q *batchQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

func (q *batchQueue) capacity() int {
	return len(q.buf)
}

// close rejects further pushes. Queued batches remain poppable.
func (q *batchQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain removes and returns everything still queued.
func (q *batchQueue) drain() []*Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Batch, 0, q.count)

	for q.count > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}

	return out
}
