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
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/carverauto/telemetryapp/pkg/version"
)

const (
	attrDeploymentEnvironment = "deployment.environment"
	attrHostName              = "host.name"
)

// Identity is the immutable service identity attached to every signal.
type Identity struct {
	resource       *resource.Resource
	serviceName    string
	serviceVersion string
}

// NewIdentity builds the identity from the service name, version and extra
// attributes. It has no side effects. An empty version falls back to the
// build version; extras cannot override service.name or service.version.
func NewIdentity(serviceName, serviceVersion string, extra map[string]string) (*Identity, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return nil, &ConfigurationError{Field: "service_name", Err: ErrEmptyServiceName}
	}

	if serviceVersion == "" {
		serviceVersion = version.GetVersion()
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if k == string(semconv.ServiceNameKey) || k == string(semconv.ServiceVersionKey) || k == "" {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys)+2)
	attrs = append(attrs,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, extra[k]))
	}

	return &Identity{
		resource:       resource.NewWithAttributes(semconv.SchemaURL, attrs...),
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
	}, nil
}

func (i *Identity) Resource() *resource.Resource {
	return i.resource
}

func (i *Identity) ServiceName() string {
	return i.serviceName
}

func (i *Identity) ServiceVersion() string {
	return i.serviceVersion
}

// Attributes returns the identity as a sorted attribute list.
func (i *Identity) Attributes() []attribute.KeyValue {
	return i.resource.Attributes()
}

// Fields returns the identity keys used on console log lines.
func (i *Identity) Fields() map[string]string {
	return map[string]string{
		string(semconv.ServiceNameKey):    i.serviceName,
		string(semconv.ServiceVersionKey): i.serviceVersion,
	}
}
