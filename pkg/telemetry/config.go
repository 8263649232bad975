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
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/carverauto/telemetryapp/pkg/config"
)

// Protocol selects the OTLP wire transport.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http"
)

const (
	defaultServiceName          = "telemetryapp"
	defaultCollectorEndpoint    = "http://localhost:4317"
	defaultExportInterval       = 15 * time.Second
	defaultExportTimeout        = 10 * time.Second
	defaultMaxRetries           = 5
	defaultMaxQueuedBatches     = 256
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 30 * time.Second
	defaultFailureLogInterval   = 30 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
)

// TLSConfig points at PEM files for a TLS (optionally mutual TLS) collector.
type TLSConfig struct {
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name"`
}

// Config describes the telemetry pipeline.
type Config struct {
	ServiceName          string            `json:"service_name"`
	ServiceVersion       string            `json:"service_version"`
	Environment          string            `json:"environment"`
	ResourceAttributes   map[string]string `json:"resource_attributes"`
	CollectorEndpoint    string            `json:"collector_endpoint"`
	Protocol             Protocol          `json:"protocol"`
	Insecure             bool              `json:"insecure"`
	Headers              map[string]string `json:"headers" sensitive:"true"`
	TLS                  *TLSConfig        `json:"tls,omitempty"`
	ExportInterval       config.Duration   `json:"export_interval"`
	ExportTimeout        config.Duration   `json:"export_timeout"`
	MaxRetries           int               `json:"max_retries"`
	MaxQueuedBatches     int               `json:"max_queued_batches"`
	RetryInitialInterval config.Duration   `json:"retry_initial_interval"`
	RetryMaxInterval     config.Duration   `json:"retry_max_interval"`
	FailureLogInterval   config.Duration   `json:"failure_log_interval"`
	ShutdownTimeout      config.Duration   `json:"shutdown_timeout"`
	RuntimeMetrics       bool              `json:"runtime_metrics"`
}

// DefaultConfig returns the defaults, honoring the standard OTEL_SERVICE_NAME,
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_PROTOCOL and
// OTEL_EXPORTER_OTLP_HEADERS variables.
func DefaultConfig() Config {
	cfg := Config{
		ServiceName:          getEnvOrDefault("OTEL_SERVICE_NAME", defaultServiceName),
		CollectorEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", defaultCollectorEndpoint),
		Protocol:             protocolFromEnv(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")),
		ExportInterval:       config.Duration(defaultExportInterval),
		ExportTimeout:        config.Duration(defaultExportTimeout),
		MaxRetries:           defaultMaxRetries,
		MaxQueuedBatches:     defaultMaxQueuedBatches,
		RetryInitialInterval: config.Duration(defaultRetryInitialInterval),
		RetryMaxInterval:     config.Duration(defaultRetryMaxInterval),
		FailureLogInterval:   config.Duration(defaultFailureLogInterval),
		ShutdownTimeout:      config.Duration(defaultShutdownTimeout),
		RuntimeMetrics:       true,
	}

	if headers := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); headers != "" {
		cfg.Headers = parseHeaderList(headers)
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func protocolFromEnv(value string) Protocol {
	switch strings.ToLower(value) {
	case "http", "http/protobuf", "http/json":
		return ProtocolHTTP
	default:
		return ProtocolGRPC
	}
}

// parseHeaderList parses the "k1=v1,k2=v2" form; values may be URL-encoded.
func parseHeaderList(value string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if decoded, err := url.QueryUnescape(strings.TrimSpace(v)); err == nil {
			v = decoded
		}

		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return headers
}

// Validate reports the first invalid field as a *ConfigurationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return &ConfigurationError{Field: "service_name", Err: ErrEmptyServiceName}
	}

	if _, err := c.target(); err != nil {
		return &ConfigurationError{Field: "collector_endpoint", Err: err}
	}

	switch c.Protocol {
	case ProtocolGRPC, ProtocolHTTP:
	default:
		return &ConfigurationError{Field: "protocol", Err: ErrInvalidProtocol}
	}

	durations := []struct {
		field string
		value config.Duration
	}{
		{"export_interval", c.ExportInterval},
		{"export_timeout", c.ExportTimeout},
		{"retry_initial_interval", c.RetryInitialInterval},
		{"retry_max_interval", c.RetryMaxInterval},
		{"failure_log_interval", c.FailureLogInterval},
		{"shutdown_timeout", c.ShutdownTimeout},
	}

	for _, d := range durations {
		if d.value <= 0 {
			return &ConfigurationError{Field: d.field, Err: ErrInvalidInterval}
		}
	}

	if c.MaxRetries < 0 {
		return &ConfigurationError{Field: "max_retries", Err: ErrInvalidRetryCount}
	}

	if c.MaxQueuedBatches <= 0 {
		return &ConfigurationError{Field: "max_queued_batches", Err: ErrInvalidQueueSize}
	}

	return nil
}

// collectorTarget is the parsed collector endpoint.
type collectorTarget struct {
	hostPort string
	insecure bool
}

// target parses CollectorEndpoint. Scheme-less endpoints ("host:port") use the
// Insecure flag; http:// is always plaintext and https:// always TLS.
func (c *Config) target() (collectorTarget, error) {
	endpoint := strings.TrimSpace(c.CollectorEndpoint)
	if endpoint == "" {
		return collectorTarget{}, ErrInvalidEndpoint
	}

	insecure := c.Insecure

	if !strings.Contains(endpoint, "://") {
		endpoint = "//" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return collectorTarget{}, ErrInvalidEndpoint
	}

	switch u.Scheme {
	case "http":
		insecure = true
	case "https":
		insecure = false
	case "":
	default:
		return collectorTarget{}, ErrInvalidEndpoint
	}

	if u.Host == "" {
		return collectorTarget{}, ErrInvalidEndpoint
	}

	return collectorTarget{hostPort: u.Host, insecure: insecure}, nil
}

// resourceExtras returns the non-identity resource attributes.
func (c *Config) resourceExtras() map[string]string {
	extras := make(map[string]string, len(c.ResourceAttributes)+2)

	for k, v := range c.ResourceAttributes {
		extras[k] = v
	}

	if c.Environment != "" {
		extras[attrDeploymentEnvironment] = c.Environment
	}

	if host, err := os.Hostname(); err == nil && host != "" {
		if _, ok := extras[attrHostName]; !ok {
			extras[attrHostName] = host
		}
	}

	return extras
}

func (c *Config) clientConfig() ClientConfig {
	return ClientConfig{
		MaxQueuedBatches:     c.MaxQueuedBatches,
		ExportTimeout:        time.Duration(c.ExportTimeout),
		MaxRetries:           c.MaxRetries,
		RetryInitialInterval: time.Duration(c.RetryInitialInterval),
		RetryMaxInterval:     time.Duration(c.RetryMaxInterval),
		FailureLogInterval:   time.Duration(c.FailureLogInterval),
	}
}
