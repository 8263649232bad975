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
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricGoroutines      = "process.runtime.go.goroutines"
	MetricHeapAlloc       = "process.runtime.go.mem.heap_alloc"
	MetricGCCount         = "process.runtime.go.gc.count"
	MetricProcessMemory   = "process.memory.usage"
	MetricProcessCPUTime  = "process.cpu.time"
	MetricExporterQueue   = "telemetry.exporter.queue.depth"
	MetricExporterBatches = "telemetry.exporter.batches"
	MetricExporterRetries = "telemetry.exporter.retries"
)

// registerRuntimeMetrics observes Go runtime statistics and, when the
// process can be inspected, its resident memory and CPU time.
func registerRuntimeMetrics(meter metric.Meter) (metric.Registration, error) {
	goroutines, err := meter.Int64ObservableGauge(MetricGoroutines,
		metric.WithDescription("Number of live goroutines."),
		metric.WithUnit("{goroutine}"))
	if err != nil {
		return nil, err
	}

	heapAlloc, err := meter.Int64ObservableGauge(MetricHeapAlloc,
		metric.WithDescription("Bytes of allocated heap objects."),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64ObservableCounter(MetricGCCount,
		metric.WithDescription("Completed garbage collection cycles."),
		metric.WithUnit("{gc}"))
	if err != nil {
		return nil, err
	}

	rss, err := meter.Int64ObservableGauge(MetricProcessMemory,
		metric.WithDescription("Resident set size of the process."),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	cpuTime, err := meter.Float64ObservableCounter(MetricProcessCPUTime,
		metric.WithDescription("CPU seconds consumed by the process."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	// A nil proc only disables the process-level instruments.
	proc, procErr := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32

	var (
		userAttrs   = metric.WithAttributes(attribute.String("cpu.mode", "user"))
		systemAttrs = metric.WithAttributes(attribute.String("cpu.mode", "system"))
	)

	callback := func(ctx context.Context, o metric.Observer) error {
		var ms runtime.MemStats

		runtime.ReadMemStats(&ms)

		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heapAlloc, int64(ms.HeapAlloc)) //nolint:gosec // heap size fits in int64
		o.ObserveInt64(gcCount, int64(ms.NumGC))

		if procErr != nil {
			return nil
		}

		var errs []error

		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
			o.ObserveInt64(rss, int64(mem.RSS)) //nolint:gosec // rss fits in int64
		} else {
			errs = append(errs, fmt.Errorf("read process memory: %w", err))
		}

		if times, err := proc.TimesWithContext(ctx); err == nil {
			o.ObserveFloat64(cpuTime, times.User, userAttrs)
			o.ObserveFloat64(cpuTime, times.System, systemAttrs)
		} else {
			errs = append(errs, fmt.Errorf("read process cpu times: %w", err))
		}

		return errors.Join(errs...)
	}

	return meter.RegisterCallback(callback, goroutines, heapAlloc, gcCount, rss, cpuTime)
}

// registerExporterMetrics reports the Client counters as observable
// instruments so that queue health is exported alongside everything else.
func registerExporterMetrics(meter metric.Meter, client *Client) (metric.Registration, error) {
	depth, err := meter.Int64ObservableGauge(MetricExporterQueue,
		metric.WithDescription("Batches waiting in the export queue."),
		metric.WithUnit("{batch}"))
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64ObservableCounter(MetricExporterBatches,
		metric.WithDescription("Batches handled by the exporter, by outcome."),
		metric.WithUnit("{batch}"))
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64ObservableCounter(MetricExporterRetries,
		metric.WithDescription("Export attempts beyond the first."),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}

	outcome := func(name string) metric.ObserveOption {
		return metric.WithAttributes(attribute.String("outcome", name))
	}

	var (
		exported        = outcome("exported")
		droppedOverflow = outcome("dropped_overflow")
		droppedFailed   = outcome("dropped_failed")
		droppedShutdown = outcome("dropped_shutdown")
	)

	callback := func(_ context.Context, o metric.Observer) error {
		stats := client.Stats()

		o.ObserveInt64(depth, int64(stats.QueueDepth))
		o.ObserveInt64(batches, stats.Exported, exported)
		o.ObserveInt64(batches, stats.DroppedOverflow, droppedOverflow)
		o.ObserveInt64(batches, stats.DroppedFailed, droppedFailed)
		o.ObserveInt64(batches, stats.DroppedShutdown, droppedShutdown)
		o.ObserveInt64(retries, stats.Retries)

		return nil
	}

	return meter.RegisterCallback(callback, depth, batches, retries)
}
