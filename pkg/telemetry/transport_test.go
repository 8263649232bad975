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
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

func TestNewOTLPTransportProtocols(t *testing.T) {
	for _, proto := range []Protocol{ProtocolGRPC, ProtocolHTTP} {
		t.Run(string(proto), func(t *testing.T) {
			cfg := testConfig("svc-A")
			cfg.Protocol = proto
			cfg.CollectorEndpoint = "http://127.0.0.1:4317"

			tr, err := NewOTLPTransport(context.Background(), &cfg)
			require.NoError(t, err)
			require.NoError(t, tr.Shutdown(context.Background()))
		})
	}
}

func TestNewOTLPTransportConfigurationErrors(t *testing.T) {
	badCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
		target error
	}{
		{
			name:   "unknown protocol",
			mutate: func(c *Config) { c.Protocol = "udp" },
			field:  "protocol",
			target: ErrInvalidProtocol,
		},
		{
			name: "unparseable CA",
			mutate: func(c *Config) {
				c.CollectorEndpoint = "https://collector:4317"
				c.TLS = &TLSConfig{CAFile: badCA}
			},
			field:  "tls",
			target: ErrCAParsingFailed,
		},
		{
			name: "missing client key",
			mutate: func(c *Config) {
				c.CollectorEndpoint = "https://collector:4317"
				c.TLS = &TLSConfig{CertFile: filepath.Join(t.TempDir(), "absent.pem")}
			},
			field:  "tls",
			target: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("svc-A")
			tt.mutate(&cfg)

			_, err := NewOTLPTransport(context.Background(), &cfg)
			require.ErrorIs(t, err, tt.target)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

var errExporterBuild = errors.New("exporter build failed")

// The stub exporters only count Shutdown calls.
type stubSpanExporter struct {
	sdktrace.SpanExporter
	calls int
}

func (s *stubSpanExporter) Shutdown(context.Context) error {
	s.calls++

	return nil
}

type stubMetricExporter struct {
	sdkmetric.Exporter
	calls int
}

func (s *stubMetricExporter) Shutdown(context.Context) error {
	s.calls++

	return nil
}

type stubLogExporter struct {
	sdklog.Exporter
	calls int
}

func (s *stubLogExporter) Shutdown(context.Context) error {
	s.calls++

	return nil
}

func TestBuildExportersShutsDownPartialSet(t *testing.T) {
	failing := func(context.Context) (sdklog.Exporter, error) { return nil, errExporterBuild }

	t.Run("metric exporter fails", func(t *testing.T) {
		spans := &stubSpanExporter{}

		_, err := buildExporters(context.Background(),
			func(context.Context) (sdktrace.SpanExporter, error) { return spans, nil },
			func(context.Context) (sdkmetric.Exporter, error) { return nil, errExporterBuild },
			failing,
		)

		require.ErrorIs(t, err, errExporterBuild)
		assert.Equal(t, 1, spans.calls)
	})

	t.Run("log exporter fails", func(t *testing.T) {
		spans, metrics := &stubSpanExporter{}, &stubMetricExporter{}

		_, err := buildExporters(context.Background(),
			func(context.Context) (sdktrace.SpanExporter, error) { return spans, nil },
			func(context.Context) (sdkmetric.Exporter, error) { return metrics, nil },
			failing,
		)

		require.ErrorIs(t, err, errExporterBuild)
		assert.Equal(t, 1, spans.calls)
		assert.Equal(t, 1, metrics.calls)
	})

	t.Run("all exporters built", func(t *testing.T) {
		spans, metrics, logs := &stubSpanExporter{}, &stubMetricExporter{}, &stubLogExporter{}

		tr, err := buildExporters(context.Background(),
			func(context.Context) (sdktrace.SpanExporter, error) { return spans, nil },
			func(context.Context) (sdkmetric.Exporter, error) { return metrics, nil },
			func(context.Context) (sdklog.Exporter, error) { return logs, nil },
		)

		require.NoError(t, err)
		assert.Zero(t, spans.calls+metrics.calls+logs.calls)
		require.NoError(t, tr.Shutdown(context.Background()))
		assert.Equal(t, 3, spans.calls+metrics.calls+logs.calls)
	})
}

func TestOTLPTransportRejectsUnknownSignal(t *testing.T) {
	cfg := testConfig("svc-A")

	tr, err := NewOTLPTransport(context.Background(), &cfg)
	require.NoError(t, err)

	defer func() { _ = tr.Shutdown(context.Background()) }()

	err = tr.Send(context.Background(), &Batch{Kind: SignalKind(42)})
	require.ErrorIs(t, err, ErrUnknownSignal)
}

func TestExportOverMutualTLS(t *testing.T) {
	pki := generateTestPKI(t)
	collector := startFakeCollector(t, grpc.Creds(credentials.NewTLS(pki.serverTLSConfig(t))))

	_, port, err := net.SplitHostPort(collector.addr)
	require.NoError(t, err)

	cfg := testConfig("svc-A")
	cfg.CollectorEndpoint = "https://localhost:" + port
	cfg.TLS = &TLSConfig{
		CAFile:   pki.CAFile,
		CertFile: pki.ClientCertFile,
		KeyFile:  pki.ClientKeyFile,
	}

	tel, err := Init(context.Background(), cfg,
		WithoutGlobals(),
		WithLogWriter(&syncBuffer{}),
		WithLogConfig(&logger.Config{Level: "info"}))
	require.NoError(t, err)

	require.NoError(t, tel.Tracer().Run(context.Background(), "secure", func(context.Context, *SpanHandle) error {
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, tel.Shutdown(ctx))

	spans := collector.received(SignalSpans)
	require.NotEmpty(t, spans)
	assert.Equal(t, "svc-A", stringAttr(spans[0].GetAttributes(), "service.name"))
}

func TestExportWithoutClientCertificateIsDropped(t *testing.T) {
	pki := generateTestPKI(t)
	collector := startFakeCollector(t, grpc.Creds(credentials.NewTLS(pki.serverTLSConfig(t))))

	_, port, err := net.SplitHostPort(collector.addr)
	require.NoError(t, err)

	cfg := testConfig("svc-A")
	cfg.CollectorEndpoint = "https://localhost:" + port
	cfg.MaxRetries = 0
	cfg.TLS = &TLSConfig{CAFile: pki.CAFile}

	tel, err := Init(context.Background(), cfg,
		WithoutGlobals(),
		WithLogWriter(&syncBuffer{}),
		WithLogConfig(&logger.Config{Level: "info"}))
	require.NoError(t, err)

	require.NoError(t, tel.Tracer().Run(context.Background(), "rejected", func(context.Context, *SpanHandle) error {
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = tel.Shutdown(ctx)

	assert.Empty(t, collector.received(SignalSpans))
	assert.Positive(t, tel.Exporter().Stats().DroppedFailed)
}
