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
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"

	"github.com/carverauto/telemetryapp/pkg/config"
	"github.com/carverauto/telemetryapp/pkg/logger"
)

// fakeCollector is an in-process OTLP/gRPC collector that records the
// resources of every request it receives.
type fakeCollector struct {
	mu        sync.Mutex
	resources map[SignalKind][]*resourcepb.Resource

	addr   string
	server *grpc.Server
}

func startFakeCollector(t *testing.T, opts ...grpc.ServerOption) *fakeCollector {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	c := &fakeCollector{
		resources: make(map[SignalKind][]*resourcepb.Resource),
		addr:      lis.Addr().String(),
		server:    grpc.NewServer(opts...),
	}

	collectortrace.RegisterTraceServiceServer(c.server, traceService{c: c})
	collectormetrics.RegisterMetricsServiceServer(c.server, metricsService{c: c})
	collectorlogs.RegisterLogsServiceServer(c.server, logsService{c: c})

	go func() { _ = c.server.Serve(lis) }()

	t.Cleanup(c.server.Stop)

	return c
}

func (c *fakeCollector) record(kind SignalKind, res *resourcepb.Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resources[kind] = append(c.resources[kind], res)
}

func (c *fakeCollector) received(kind SignalKind) []*resourcepb.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*resourcepb.Resource(nil), c.resources[kind]...)
}

type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	c *fakeCollector
}

func (s traceService) Export(
	_ context.Context, req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	for _, rs := range req.GetResourceSpans() {
		s.c.record(SignalSpans, rs.GetResource())
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}

type metricsService struct {
	collectormetrics.UnimplementedMetricsServiceServer
	c *fakeCollector
}

func (s metricsService) Export(
	_ context.Context, req *collectormetrics.ExportMetricsServiceRequest,
) (*collectormetrics.ExportMetricsServiceResponse, error) {
	for _, rm := range req.GetResourceMetrics() {
		s.c.record(SignalMetrics, rm.GetResource())
	}

	return &collectormetrics.ExportMetricsServiceResponse{}, nil
}

type logsService struct {
	collectorlogs.UnimplementedLogsServiceServer
	c *fakeCollector
}

func (s logsService) Export(
	_ context.Context, req *collectorlogs.ExportLogsServiceRequest,
) (*collectorlogs.ExportLogsServiceResponse, error) {
	for _, rl := range req.GetResourceLogs() {
		s.c.record(SignalLogs, rl.GetResource())
	}

	return &collectorlogs.ExportLogsServiceResponse{}, nil
}

func stringAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}

	return ""
}

func TestEndToEndExportOverGRPC(t *testing.T) {
	collector := startFakeCollector(t)

	cfg := testConfig("svc-A")
	cfg.CollectorEndpoint = "http://" + collector.addr
	cfg.Environment = "test"

	tel, err := Init(context.Background(), cfg,
		WithoutGlobals(),
		WithLogWriter(&syncBuffer{}),
		WithLogConfig(&logger.Config{Level: "info"}))
	require.NoError(t, err)

	err = tel.Tracer().Run(context.Background(), "GET /weatherforecast", func(ctx context.Context, _ *SpanHandle) error {
		tel.Logger().Info().Ctx(ctx).Msg("GetWeatherForecast called")
		tel.Metrics().RecordRequest(ctx, "/weatherforecast", "GET", 200, 10*time.Millisecond)

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, tel.Shutdown(ctx))

	for _, kind := range []SignalKind{SignalSpans, SignalMetrics, SignalLogs} {
		resources := collector.received(kind)
		require.NotEmpty(t, resources, "collector received no %s", kind)

		for _, res := range resources {
			assert.Equal(t, "svc-A", stringAttr(res.GetAttributes(), "service.name"), kind.String())
			assert.Equal(t, "test", stringAttr(res.GetAttributes(), attrDeploymentEnvironment), kind.String())
		}
	}

	assert.Equal(t, int64(0), tel.Exporter().Stats().DroppedFailed)
}

func TestRefusedCollectorDoesNotBlockEmission(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	cfg := testConfig("svc-A")
	cfg.CollectorEndpoint = "http://" + addr
	cfg.ExportTimeout = config.Duration(500 * time.Millisecond)
	cfg.MaxRetries = 1

	tel, err := Init(context.Background(), cfg, WithoutGlobals(), WithLogWriter(&syncBuffer{}))
	require.NoError(t, err, "an unreachable collector is not a startup error")

	start := time.Now()

	for i := 0; i < 50; i++ {
		require.NoError(t, tel.Tracer().Run(context.Background(), "op", func(ctx context.Context, _ *SpanHandle) error {
			tel.Logger().Info().Ctx(ctx).Msg("still serving")

			return nil
		}))
	}

	assert.Less(t, time.Since(start), time.Second)

	shutdownStart := time.Now()
	_ = tel.ShutdownWithTimeout(time.Second)
	assert.Less(t, time.Since(shutdownStart), 3*time.Second)
}
