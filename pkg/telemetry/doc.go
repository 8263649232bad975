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

// Package telemetry wires the process-wide telemetry pipeline.
//
// A Coordinator is created once at startup with Init. It owns the exporter
// Client, a bounded in-memory batch queue drained by a single background
// flusher, and the OpenTelemetry trace, metric and log providers whose
// exporters hand finished batches to that Client. Emission never blocks on
// network I/O and never returns transport errors to request handling code.
//
//	tel, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.ShutdownWithTimeout(10 * time.Second)
//
//	err = tel.Tracer().Run(ctx, "work", func(ctx context.Context, span *telemetry.SpanHandle) error {
//	    tel.Logger().Info().Ctx(ctx).Msg("working")
//	    tel.Metrics().Increment(ctx, "work.done", 1)
//	    return nil
//	})
package telemetry
