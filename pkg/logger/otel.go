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

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultScope              = "telemetryapp"
	maxAttributeValueLength   = 4096
	maxStructuredPreviewCount = 5
	maxPreviewElementLength   = 64
	truncatedKeysAttribute    = "otel.truncated_keys"
)

// OTelWriter re-reads zerolog JSON lines and emits them as OTel log records.
// It never fails a write: records that cannot be decoded are skipped so the
// console sink keeps working regardless of the export path.
type OTelWriter struct {
	provider log.LoggerProvider
	scope    string
	excluded map[string]struct{}
	loggers  map[string]log.Logger
	mu       sync.Mutex
}

// NewOTelWriter returns a writer emitting through provider. Keys listed in
// excluded are dropped from record attributes (they already live on the resource).
func NewOTelWriter(provider log.LoggerProvider, scope string, excluded ...string) *OTelWriter {
	if scope == "" {
		scope = defaultScope
	}

	ex := make(map[string]struct{}, len(excluded))
	for _, k := range excluded {
		ex[k] = struct{}{}
	}

	return &OTelWriter{
		provider: provider,
		scope:    scope,
		excluded: ex,
		loggers:  make(map[string]log.Logger),
	}
}

func (w *OTelWriter) Write(p []byte) (n int, err error) {
	if w.provider == nil {
		return len(p), nil
	}

	logEntry := make(map[string]interface{})

	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	if err := dec.Decode(&logEntry); err != nil {
		return len(p), nil
	}

	record := log.Record{}
	record.SetObservedTimestamp(time.Now())

	if timestamp, ok := logEntry["time"].(string); ok {
		if parsedTime, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			record.SetTimestamp(parsedTime)
			delete(logEntry, "time")
		}
	}

	if levelStr, ok := logEntry["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTel(levelStr))
		record.SetSeverityText(levelStr)
		delete(logEntry, "level")
	}

	if message, ok := logEntry["message"].(string); ok {
		record.SetBody(log.StringValue(message))
		delete(logEntry, "message")
	}

	ctx := context.Background()
	if sc, ok := spanContextFromEntry(logEntry); ok {
		ctx = trace.ContextWithSpanContext(ctx, sc)
	}

	componentName := w.scope
	if component, ok := logEntry[ComponentKey].(string); ok && component != "" {
		componentName = component

		delete(logEntry, ComponentKey)
	}

	for key := range w.excluded {
		delete(logEntry, key)
	}

	logger := w.loggerFor(componentName)

	attrs, truncatedKeys := sanitizeLogEntry(logEntry)
	record.AddAttributes(attrs...)

	if len(truncatedKeys) > 0 {
		record.AddAttributes(log.String(truncatedKeysAttribute, strings.Join(truncatedKeys, ",")))
	}

	logger.Emit(ctx, record)

	return len(p), nil
}

func (w *OTelWriter) loggerFor(name string) log.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger, found := w.loggers[name]
	if !found {
		logger = w.provider.Logger(name)
		w.loggers[name] = logger
	}

	return logger
}

func spanContextFrom(ctx context.Context) trace.SpanContext {
	return trace.SpanContextFromContext(ctx)
}

// spanContextFromEntry rebuilds the span context stamped by traceHook and
// removes the id fields, since the SDK records them natively.
func spanContextFromEntry(logEntry map[string]interface{}) (trace.SpanContext, bool) {
	traceHex, _ := logEntry[TraceIDKey].(string)
	spanHex, _ := logEntry[SpanIDKey].(string)

	if traceHex == "" || spanHex == "" {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanID, err := trace.SpanIDFromHex(spanHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	// Missing or malformed flags leave the record unsampled.
	var flags trace.TraceFlags

	if flagsHex, ok := logEntry[TraceFlagsKey].(string); ok {
		if parsed, err := strconv.ParseUint(flagsHex, 16, 8); err == nil {
			flags = trace.TraceFlags(parsed)
		}
	}

	delete(logEntry, TraceIDKey)
	delete(logEntry, SpanIDKey)
	delete(logEntry, TraceFlagsKey)

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func sanitizeLogEntry(logEntry map[string]interface{}) ([]log.KeyValue, []string) {
	keys := make([]string, 0, len(logEntry))
	for key := range logEntry {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	attrs := make([]log.KeyValue, 0, len(logEntry))
	truncated := make([]string, 0, len(logEntry))

	for _, key := range keys {
		value, wasTruncated := attributeValue(logEntry[key])
		attrs = append(attrs, log.KeyValue{Key: key, Value: value})

		if wasTruncated {
			truncated = append(truncated, key)
		}
	}

	return attrs, truncated
}

func attributeValue(value interface{}) (log.Value, bool) {
	switch v := value.(type) {
	case bool:
		return log.BoolValue(v), false
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return log.Int64Value(i), false
		}

		if f, err := v.Float64(); err == nil {
			return log.Float64Value(f), false
		}

		return log.StringValue(v.String()), false
	default:
		formatted, wasTruncated := formatAttributeValue(value)
		return log.StringValue(formatted), wasTruncated
	}
}

func formatAttributeValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "null", false
	case string:
		return truncateString(v, maxAttributeValueLength)
	case bool:
		return fmt.Sprintf("%t", v), false
	case json.Number:
		return v.String(), false
	case []interface{}:
		return summarizeSlice(v)
	case map[string]interface{}:
		return summarizeMap(v)
	default:
		if marshaled, err := json.Marshal(value); err == nil {
			return truncateString(string(marshaled), maxAttributeValueLength)
		}

		return truncateString(fmt.Sprintf("%v", value), maxAttributeValueLength)
	}
}

func summarizeSlice(items []interface{}) (string, bool) {
	length := len(items)
	if length == 0 {
		return "[]", false
	}

	if length <= maxStructuredPreviewCount {
		if payload, err := json.Marshal(items); err == nil {
			return truncateString(string(payload), maxAttributeValueLength)
		}
	}

	previews := make([]string, 0, maxStructuredPreviewCount)
	for i := 0; i < maxStructuredPreviewCount && i < length; i++ {
		previews = append(previews, previewString(items[i]))
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	builder.WriteString(strings.Join(previews, ", "))
	builder.WriteString(", ...] (total=")
	builder.WriteString(fmt.Sprintf("%d", length))
	builder.WriteString(", truncated)")

	result, _ := truncateString(builder.String(), maxAttributeValueLength)

	return result, true
}

func summarizeMap(values map[string]interface{}) (string, bool) {
	totalKeys := len(values)
	if totalKeys == 0 {
		return "{}", false
	}

	if totalKeys <= maxStructuredPreviewCount {
		if payload, err := json.Marshal(values); err == nil {
			return truncateString(string(payload), maxAttributeValueLength)
		}
	}

	keys := make([]string, 0, totalKeys)
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	builder := strings.Builder{}
	builder.WriteString("{keys=")
	builder.WriteString(fmt.Sprintf("%d", totalKeys))
	builder.WriteString(", sample=[")
	builder.WriteString(strings.Join(keys[:maxStructuredPreviewCount], ", "))
	builder.WriteString(", ...], truncated}")

	result, _ := truncateString(builder.String(), maxAttributeValueLength)

	return result, true
}

func previewString(value interface{}) string {
	switch v := value.(type) {
	case string:
		truncated, _ := truncateString(v, maxPreviewElementLength)
		return fmt.Sprintf("%q", truncated)
	case map[string]interface{}:
		return fmt.Sprintf("map(len=%d)", len(v))
	case []interface{}:
		return fmt.Sprintf("slice(len=%d)", len(v))
	default:
		truncated, _ := truncateString(fmt.Sprintf("%v", v), maxPreviewElementLength)
		return truncated
	}
}

func truncateString(value string, limit int) (string, bool) {
	if len(value) <= limit {
		return value, false
	}

	suffix := "..."
	if limit <= len(suffix) {
		suffix = ""
	}

	truncated := value[:limit-len(suffix)]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + suffix, true
}

func mapZerologLevelToOTel(level string) log.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "info":
		return log.SeverityInfo
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal", "panic":
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

// MultiWriter fans a record out to every writer. Unlike io.MultiWriter a
// failing writer does not stop the remaining ones; the first error is returned.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(p []byte) (int, error) {
	var firstErr error

	for _, w := range mw.writers {
		n, err := w.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return len(p), firstErr
}
