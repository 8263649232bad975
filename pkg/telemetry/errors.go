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
	"errors"
	"fmt"
)

// Static errors for err113 compliance
var (
	ErrEmptyServiceName  = errors.New("service name is required")
	ErrInvalidEndpoint   = errors.New("invalid collector endpoint")
	ErrInvalidProtocol   = errors.New("invalid export protocol")
	ErrInvalidInterval   = errors.New("interval must be positive")
	ErrInvalidQueueSize  = errors.New("max queued batches must be positive")
	ErrInvalidRetryCount = errors.New("max retries must not be negative")
	ErrSpanAlreadyEnded  = errors.New("span already ended")
	ErrClientClosed      = errors.New("exporter client is shut down")
	ErrUnknownSignal     = errors.New("unknown signal kind")
	ErrPanic             = errors.New("panic")
	ErrCAParsingFailed   = errors.New("failed to parse CA certificate")

	errQueueOverflow = errors.New("export queue overflow")
	errKindMismatch  = errors.New("batch payload does not match its signal kind")
)

// ConfigurationError is fatal: the process must not start with it.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ExportTransportError wraps a failed delivery attempt. It is retried and
// eventually dropped inside the Client; it never reaches emitting code.
type ExportTransportError struct {
	Kind    SignalKind
	Attempt int
	Err     error
}

func (e *ExportTransportError) Error() string {
	return fmt.Sprintf("export %s attempt %d: %v", e.Kind, e.Attempt, e.Err)
}

func (e *ExportTransportError) Unwrap() error {
	return e.Err
}

// UsageError reports API misuse such as ending a span twice. It is logged
// and counted but never crashes the process.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}
