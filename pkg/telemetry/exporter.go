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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

// flusherStopGrace bounds the wait for the flusher after its context is
// canceled.
const flusherStopGrace = time.Second

// ClientConfig tunes the exporter Client.
type ClientConfig struct {
	MaxQueuedBatches     int
	ExportTimeout        time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	FailureLogInterval   time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.MaxQueuedBatches <= 0 {
		c.MaxQueuedBatches = defaultMaxQueuedBatches
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaultExportTimeout
	}

	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = defaultRetryInitialInterval
	}

	if c.RetryMaxInterval < c.RetryInitialInterval {
		c.RetryMaxInterval = c.RetryInitialInterval
	}

	if c.FailureLogInterval <= 0 {
		c.FailureLogInterval = defaultFailureLogInterval
	}

	return c
}

// Stats is a point-in-time snapshot of the Client counters.
type Stats struct {
	Enqueued        int64 `json:"enqueued"`
	Exported        int64 `json:"exported"`
	DroppedOverflow int64 `json:"dropped_overflow"`
	DroppedFailed   int64 `json:"dropped_failed"`
	DroppedShutdown int64 `json:"dropped_shutdown"`
	Retries         int64 `json:"retries"`
	Failures        int64 `json:"failures"`
	QueueDepth      int   `json:"queue_depth"`
	QueueCapacity   int   `json:"queue_capacity"`
}

type clientStats struct {
	enqueued        atomic.Int64
	exported        atomic.Int64
	droppedOverflow atomic.Int64
	droppedFailed   atomic.Int64
	droppedShutdown atomic.Int64
	retries         atomic.Int64
	failures        atomic.Int64
}

// Client buffers batches in a bounded queue and ships them to the collector
// from a single background goroutine. Delivery is at-most-once: a batch is
// retried with capped exponential backoff and dropped once retries run out.
type Client struct {
	cfg       ClientConfig
	transport Transport
	logger    logger.Logger
	queue     *batchQueue
	stats     clientStats

	failureLog rate.Sometimes
	unlogged   atomic.Int64

	runCtx    context.Context
	cancelRun context.CancelFunc
	closing   chan struct{}
	done      chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewClient starts a Client that delivers batches through transport.
func NewClient(transport Transport, cfg ClientConfig, log logger.Logger) *Client {
	cfg = cfg.withDefaults()

	if log == nil {
		log = logger.NewTestLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:        cfg,
		transport:  transport,
		logger:     log,
		queue:      newBatchQueue(cfg.MaxQueuedBatches),
		failureLog: rate.Sometimes{Interval: cfg.FailureLogInterval},
		runCtx:     ctx,
		cancelRun:  cancel,
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.run()

	return c
}

// Send enqueues batch without blocking. It never reports transport errors;
// the Outcome only says whether the batch was accepted.
func (c *Client) Send(kind SignalKind, batch *Batch) Outcome {
	if batch == nil {
		return OutcomeRejectedEmpty
	}

	batch.Kind = kind

	if !batch.matchesKind() {
		c.logFailure(fmt.Errorf("%w: sent as %s", errKindMismatch, kind), "Telemetry batch rejected")

		return OutcomeRejectedMismatch
	}

	if batch.Len() == 0 {
		return OutcomeRejectedEmpty
	}

	if batch.EnqueuedAt.IsZero() {
		batch.EnqueuedAt = time.Now()
	}

	evicted, ok := c.queue.push(batch)
	if !ok {
		c.stats.droppedShutdown.Inc()

		return OutcomeRejectedClosed
	}

	c.stats.enqueued.Inc()

	if evicted != nil {
		c.stats.droppedOverflow.Inc()
		c.logFailure(fmt.Errorf("%w: %s batch of %d", errQueueOverflow, evicted.Kind, evicted.Len()),
			"Telemetry queue full, dropped oldest batch")

		return OutcomeQueuedDroppedOldest
	}

	return OutcomeQueued
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() Stats {
	return Stats{
		Enqueued:        c.stats.enqueued.Load(),
		Exported:        c.stats.exported.Load(),
		DroppedOverflow: c.stats.droppedOverflow.Load(),
		DroppedFailed:   c.stats.droppedFailed.Load(),
		DroppedShutdown: c.stats.droppedShutdown.Load(),
		Retries:         c.stats.retries.Load(),
		Failures:        c.stats.failures.Load(),
		QueueDepth:      c.queue.len(),
		QueueCapacity:   c.queue.capacity(),
	}
}

func (c *Client) run() {
	defer close(c.done)

	for {
		if b, ok := c.queue.pop(); ok {
			c.export(b)

			continue
		}

		select {
		case <-c.queue.ready:
		case <-c.runCtx.Done():
			return
		case <-c.closing:
			if c.queue.len() == 0 {
				return
			}
		}
	}
}

func (c *Client) export(b *Batch) {
	ctx := c.runCtx
	if ctx.Err() != nil {
		c.stats.droppedShutdown.Inc()

		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitialInterval
	bo.MaxInterval = c.cfg.RetryMaxInterval

	operation := func() (struct{}, error) {
		b.Attempts++

		if b.Attempts > 1 {
			c.stats.retries.Inc()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ExportTimeout)
		defer cancel()

		if err := c.transport.Send(attemptCtx, b); err != nil {
			c.stats.failures.Inc()

			return struct{}{}, &ExportTransportError{Kind: b.Kind, Attempt: b.Attempts, Err: err}
		}

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logFailure(err, "Telemetry export failed, retrying in "+next.String())
		}),
	)

	switch {
	case err == nil:
		c.stats.exported.Inc()
	case ctx.Err() != nil:
		c.stats.droppedShutdown.Inc()
	default:
		c.stats.droppedFailed.Inc()
		c.logFailure(err, "Telemetry export failed, batch dropped")
	}
}

// logFailure writes at most one warning per FailureLogInterval and reports
// how many failures were folded into it.
func (c *Client) logFailure(err error, msg string) {
	c.unlogged.Inc()

	c.failureLog.Do(func() {
		c.logger.Warn().
			Err(err).
			Int64("failures", c.unlogged.Swap(0)).
			Int("queue_depth", c.queue.len()).
			Msg(msg)
	})
}

// Shutdown stops intake and drains the queue until ctx is done. Whatever is
// left at the deadline is dropped and counted, and the in-flight attempt is
// canceled. The transport is shut down last. Safe to call more than once.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdown(ctx)
	})

	return c.shutdownErr
}

func (c *Client) shutdown(ctx context.Context) error {
	c.queue.close()
	close(c.closing)

	var errs []error

	select {
	case <-c.done:
	case <-ctx.Done():
		c.cancelRun()

		remaining := c.queue.drain()
		c.stats.droppedShutdown.Add(int64(len(remaining)))

		c.logger.Warn().
			Int("dropped", len(remaining)).
			Msg("Telemetry shutdown deadline reached, dropping queued batches")

		errs = append(errs, fmt.Errorf("drain export queue: %w", ctx.Err()))
	}

	c.cancelRun()

	// Let the canceled in-flight attempt return before closing the transport.
	select {
	case <-c.done:
	case <-time.After(flusherStopGrace):
		c.logger.Warn().Dur("grace", flusherStopGrace).Msg("Telemetry flusher did not stop in time")
	}

	if err := c.transport.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown transport: %w", err))
	}

	return errors.Join(errs...)
}
