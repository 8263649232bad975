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
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

const instrumentationScope = "github.com/carverauto/telemetryapp"

// Option customizes Init.
type Option func(*options)

type options struct {
	transport     Transport
	logConfig     *logger.Config
	logWriter     io.Writer
	installGlobal bool
}

// WithTransport replaces the OTLP transport, typically with a test fake.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithLogConfig sets the console sink configuration.
func WithLogConfig(cfg *logger.Config) Option {
	return func(o *options) {
		o.logConfig = cfg
	}
}

// WithLogWriter redirects the console sink.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithoutGlobals leaves the otel global providers and propagator untouched.
func WithoutGlobals() Option {
	return func(o *options) {
		o.installGlobal = false
	}
}

// Coordinator owns the process-wide telemetry pipeline.
type Coordinator struct {
	cfg      Config
	identity *Identity
	client   *Client

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	propagator     propagation.TextMapPropagator

	logger  *logger.ZeroLogger
	tracer  *Tracer
	metrics *Metrics

	registrations []metric.Registration

	shutdownOnce sync.Once
	shutdownErr  error
}

// Init validates cfg and starts the pipeline. It fails only on invalid
// configuration; an unreachable collector is not an error.
func Init(ctx context.Context, cfg Config, opts ...Option) (*Coordinator, error) {
	o := options{installGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	identity, err := NewIdentity(cfg.ServiceName, cfg.ServiceVersion, cfg.resourceExtras())
	if err != nil {
		return nil, err
	}

	logCfg := o.logConfig
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	var logOpts []logger.Option
	if o.logWriter != nil {
		logOpts = append(logOpts, logger.WithWriter(o.logWriter))
	}

	// Pipeline diagnostics go to the console only so that export failures
	// never feed back into the export queue.
	diagFields := identity.Fields()
	diagFields[logger.ComponentKey] = "telemetry"

	diagnostics, err := logger.NewLogger(logCfg, append(logOpts, logger.WithStaticFields(diagFields))...)
	if err != nil {
		return nil, &ConfigurationError{Field: "logging", Err: err}
	}

	transport := o.transport
	if transport == nil {
		transport, err = NewOTLPTransport(ctx, &cfg)
		if err != nil {
			return nil, err
		}
	}

	client := NewClient(transport, cfg.clientConfig(), diagnostics)

	c := &Coordinator{
		cfg:      cfg,
		identity: identity,
		client:   client,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	res := identity.Resource()
	interval := time.Duration(cfg.ExportInterval)
	timeout := time.Duration(cfg.ExportTimeout)

	c.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(&spanExporter{client: client},
			sdktrace.WithBatchTimeout(interval),
			sdktrace.WithExportTimeout(timeout)),
	)

	c.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(&metricExporter{client: client},
			sdkmetric.WithInterval(interval),
			sdkmetric.WithTimeout(timeout))),
	)

	c.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(&logExporter{client: client},
			sdklog.WithExportInterval(interval),
			sdklog.WithExportTimeout(timeout))),
	)

	c.logger, err = logger.NewLogger(logCfg, append(logOpts,
		logger.WithLoggerProvider(c.loggerProvider, instrumentationScope),
		logger.WithStaticFields(identity.Fields()))...)
	if err != nil {
		_ = c.shutdownProviders(ctx)

		return nil, &ConfigurationError{Field: "logging", Err: err}
	}

	c.tracer = NewTracer(c.tracerProvider, instrumentationScope, diagnostics)

	c.metrics, err = NewMetrics(c.meterProvider, instrumentationScope, diagnostics)
	if err != nil {
		_ = c.shutdownProviders(ctx)

		return nil, err
	}

	if err := c.registerObservers(); err != nil {
		_ = c.shutdownProviders(ctx)

		return nil, err
	}

	if o.installGlobal {
		c.installGlobals(diagnostics)
	}

	diagnostics.Info().
		Str("endpoint", cfg.CollectorEndpoint).
		Str("protocol", string(cfg.Protocol)).
		Dur("export_interval", interval).
		Msg("Telemetry initialized")

	return c, nil
}

func (c *Coordinator) registerObservers() error {
	meter := c.meterProvider.Meter(instrumentationScope)

	reg, err := registerExporterMetrics(meter, c.client)
	if err != nil {
		return fmt.Errorf("failed to register exporter metrics: %w", err)
	}

	c.registrations = append(c.registrations, reg)

	if !c.cfg.RuntimeMetrics {
		return nil
	}

	reg, err = registerRuntimeMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	c.registrations = append(c.registrations, reg)

	return nil
}

func (c *Coordinator) installGlobals(diag logger.Logger) {
	otel.SetTracerProvider(c.tracerProvider)
	otel.SetMeterProvider(c.meterProvider)
	global.SetLoggerProvider(c.loggerProvider)
	otel.SetTextMapPropagator(c.propagator)

	sdkErrors := &rate.Sometimes{Interval: time.Duration(c.cfg.FailureLogInterval)}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		sdkErrors.Do(func() {
			diag.Warn().Err(err).Msg("OpenTelemetry SDK error")
		})
	}))
}

func (c *Coordinator) Identity() *Identity {
	return c.identity
}

// Logger is the application logger; records go to the console and to the
// collector.
func (c *Coordinator) Logger() logger.Logger {
	return c.logger
}

func (c *Coordinator) Tracer() *Tracer {
	return c.tracer
}

func (c *Coordinator) Metrics() *Metrics {
	return c.metrics
}

func (c *Coordinator) Exporter() *Client {
	return c.client
}

func (c *Coordinator) TracerProvider() trace.TracerProvider {
	return c.tracerProvider
}

func (c *Coordinator) MeterProvider() metric.MeterProvider {
	return c.meterProvider
}

// Propagator is the W3C trace-context and baggage propagator, available even
// when globals were not installed.
func (c *Coordinator) Propagator() propagation.TextMapPropagator {
	return c.propagator
}

func (c *Coordinator) Config() Config {
	return c.cfg
}

// ForceFlush pushes everything buffered in the SDK into the export queue.
// It does not wait for network delivery.
func (c *Coordinator) ForceFlush(ctx context.Context) error {
	return errors.Join(
		c.tracerProvider.ForceFlush(ctx),
		c.meterProvider.ForceFlush(ctx),
		c.loggerProvider.ForceFlush(ctx),
	)
}

// Shutdown flushes the providers into the export queue and then drains it
// until ctx is done. Only the first call does any work.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.shutdownProviders(ctx)
	})

	return c.shutdownErr
}

// ShutdownWithTimeout is Shutdown bounded by timeout, or by the configured
// shutdown_timeout when timeout is not positive.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Duration(c.cfg.ShutdownTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return c.Shutdown(ctx)
}

func (c *Coordinator) shutdownProviders(ctx context.Context) error {
	var errs []error

	for _, reg := range c.registrations {
		if err := reg.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.tracerProvider != nil {
		if err := c.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}

	if c.meterProvider != nil {
		if err := c.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}

	if c.loggerProvider != nil {
		if err := c.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider: %w", err))
		}
	}

	if err := c.client.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("exporter: %w", err))
	}

	return errors.Join(errs...)
}
