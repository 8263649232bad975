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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

//go:generate mockgen -destination=mock_transport.go -package=telemetry github.com/carverauto/telemetryapp/pkg/telemetry Transport

// Transport delivers one batch to the collector. Implementations must honor
// ctx cancellation; retries are the Client's job.
type Transport interface {
	Send(ctx context.Context, batch *Batch) error
	Shutdown(ctx context.Context) error
}

// otlpTransport ships batches with the stock OTLP exporters, one per signal.
type otlpTransport struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	logs    sdklog.Exporter
}

// NewOTLPTransport builds gRPC or HTTP OTLP exporters for cfg. Connections
// are established lazily, so an unreachable collector is not an error here.
func NewOTLPTransport(ctx context.Context, cfg *Config) (Transport, error) {
	target, err := cfg.target()
	if err != nil {
		return nil, &ConfigurationError{Field: "collector_endpoint", Err: err}
	}

	var tlsConfig *tls.Config

	if !target.insecure {
		tlsConfig, err = buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, &ConfigurationError{Field: "tls", Err: err}
		}
	}

	timeout := time.Duration(cfg.ExportTimeout)

	var t otlpTransport

	switch cfg.Protocol {
	case ProtocolHTTP:
		t, err = newHTTPExporters(ctx, target, tlsConfig, cfg.Headers, timeout)
	case ProtocolGRPC, "":
		t, err = newGRPCExporters(ctx, target, tlsConfig, cfg.Headers, timeout)
	default:
		return nil, &ConfigurationError{Field: "protocol", Err: ErrInvalidProtocol}
	}

	if err != nil {
		return nil, err
	}

	return &t, nil
}

func newGRPCExporters(
	ctx context.Context, target collectorTarget, tlsConfig *tls.Config, headers map[string]string, timeout time.Duration,
) (otlpTransport, error) {
	traceOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(target.hostPort),
		otlptracegrpc.WithTimeout(timeout),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{Enabled: false}),
	}
	metricOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(target.hostPort),
		otlpmetricgrpc.WithTimeout(timeout),
		otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{Enabled: false}),
	}
	logOpts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(target.hostPort),
		otlploggrpc.WithTimeout(timeout),
		otlploggrpc.WithRetry(otlploggrpc.RetryConfig{Enabled: false}),
	}

	if target.insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	} else {
		creds := credentials.NewTLS(tlsConfig)
		traceOpts = append(traceOpts, otlptracegrpc.WithTLSCredentials(creds))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTLSCredentials(creds))
		logOpts = append(logOpts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(headers) > 0 {
		traceOpts = append(traceOpts, otlptracegrpc.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithHeaders(headers))
		logOpts = append(logOpts, otlploggrpc.WithHeaders(headers))
	}

	return buildExporters(ctx,
		func(ctx context.Context) (sdktrace.SpanExporter, error) { return otlptracegrpc.New(ctx, traceOpts...) },
		func(ctx context.Context) (sdkmetric.Exporter, error) { return otlpmetricgrpc.New(ctx, metricOpts...) },
		func(ctx context.Context) (sdklog.Exporter, error) { return otlploggrpc.New(ctx, logOpts...) },
	)
}

func newHTTPExporters(
	ctx context.Context, target collectorTarget, tlsConfig *tls.Config, headers map[string]string, timeout time.Duration,
) (otlpTransport, error) {
	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(target.hostPort),
		otlptracehttp.WithTimeout(timeout),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	}
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(target.hostPort),
		otlpmetrichttp.WithTimeout(timeout),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
	}
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(target.hostPort),
		otlploghttp.WithTimeout(timeout),
		otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}),
	}

	if target.insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	} else {
		traceOpts = append(traceOpts, otlptracehttp.WithTLSClientConfig(tlsConfig))
		metricOpts = append(metricOpts, otlpmetrichttp.WithTLSClientConfig(tlsConfig))
		logOpts = append(logOpts, otlploghttp.WithTLSClientConfig(tlsConfig))
	}

	if len(headers) > 0 {
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(headers))
		metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(headers))
		logOpts = append(logOpts, otlploghttp.WithHeaders(headers))
	}

	return buildExporters(ctx,
		func(ctx context.Context) (sdktrace.SpanExporter, error) { return otlptracehttp.New(ctx, traceOpts...) },
		func(ctx context.Context) (sdkmetric.Exporter, error) { return otlpmetrichttp.New(ctx, metricOpts...) },
		func(ctx context.Context) (sdklog.Exporter, error) { return otlploghttp.New(ctx, logOpts...) },
	)
}

// buildExporters creates the span, metric and log exporters in that order.
// When one fails, the exporters already created are shut down.
func buildExporters(
	ctx context.Context,
	newSpans func(context.Context) (sdktrace.SpanExporter, error),
	newMetrics func(context.Context) (sdkmetric.Exporter, error),
	newLogs func(context.Context) (sdklog.Exporter, error),
) (otlpTransport, error) {
	spans, err := newSpans(ctx)
	if err != nil {
		return otlpTransport{}, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metrics, err := newMetrics(ctx)
	if err != nil {
		return otlpTransport{}, errors.Join(
			fmt.Errorf("failed to create metric exporter: %w", err),
			spans.Shutdown(ctx),
		)
	}

	logs, err := newLogs(ctx)
	if err != nil {
		return otlpTransport{}, errors.Join(
			fmt.Errorf("failed to create log exporter: %w", err),
			spans.Shutdown(ctx),
			metrics.Shutdown(ctx),
		)
	}

	return otlpTransport{spans: spans, metrics: metrics, logs: logs}, nil
}

func (t *otlpTransport) Send(ctx context.Context, batch *Batch) error {
	switch batch.Kind {
	case SignalSpans:
		return t.spans.ExportSpans(ctx, batch.Spans)
	case SignalMetrics:
		return t.metrics.Export(ctx, batch.Metrics)
	case SignalLogs:
		return t.logs.Export(ctx, batch.Logs)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownSignal, batch.Kind)
	}
}

func (t *otlpTransport) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.spans.Shutdown(ctx),
		t.metrics.Shutdown(ctx),
		t.logs.Shutdown(ctx),
	)
}

// buildTLSConfig returns the system roots when tlsCfg is nil. A CA file
// replaces the roots; a cert/key pair enables mutual TLS.
func buildTLSConfig(tlsCfg *TLSConfig) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12}

	if tlsCfg == nil {
		return out, nil
	}

	out.ServerName = tlsCfg.ServerName

	if tlsCfg.CAFile != "" {
		caCert, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, ErrCAParsingFailed
		}

		out.RootCAs = caPool
	}

	if tlsCfg.CertFile != "" || tlsCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		out.Certificates = []tls.Certificate{cert}
	}

	return out, nil
}
