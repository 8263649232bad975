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

// Package logger provides JSON structured logging using zerolog.
//
// Every record is written synchronously to a local console sink. When an
// OTel LoggerProvider is attached the same record is also handed to the
// OTel log pipeline, carrying the trace and span ids of the active span.
package logger

import (
	"context"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

const (
	TraceIDKey         = "trace_id"
	SpanIDKey          = "span_id"
	TraceFlagsKey      = "trace_flags"
	MessageTemplateKey = "message_template"
	ComponentKey       = "component"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Option customizes a logger built by NewLogger.
type Option func(*options)

type options struct {
	writer         io.Writer
	loggerProvider otellog.LoggerProvider
	scope          string
	fields         map[string]string
}

// WithWriter replaces the console sink, mostly useful in tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLoggerProvider forwards every record to the given OTel provider.
func WithLoggerProvider(provider otellog.LoggerProvider, scope string) Option {
	return func(o *options) {
		o.loggerProvider = provider
		o.scope = scope
	}
}

// WithStaticFields adds fields to every console record. They are treated as
// resource attributes and are not duplicated on exported OTel records.
func WithStaticFields(fields map[string]string) Option {
	return func(o *options) {
		if o.fields == nil {
			o.fields = make(map[string]string, len(fields))
		}

		for k, v := range fields {
			o.fields[k] = v
		}
	}
}

// ZeroLogger implements Logger on top of zerolog without global state.
type ZeroLogger struct {
	logger zerolog.Logger
}

var _ Logger = (*ZeroLogger)(nil)

// NewLogger creates a logger from config. A nil config uses DefaultConfig.
func NewLogger(config *Config, opts ...Option) (*ZeroLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	timeFormat := time.RFC3339Nano
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	output := o.writer
	if output == nil {
		output = os.Stdout
		if config.Output == "stderr" {
			output = os.Stderr
		}
	}

	if config.Format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	if o.loggerProvider != nil {
		excluded := make([]string, 0, len(o.fields))
		for k := range o.fields {
			excluded = append(excluded, k)
		}

		otelWriter := NewOTelWriter(o.loggerProvider, o.scope, excluded...)
		output = NewMultiWriter(output, otelWriter)
	}

	zctx := zerolog.New(output).
		Level(level).
		Hook(traceHook{}).
		With().
		Timestamp()

	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		zctx = zctx.Str(k, o.fields[k])
	}

	return &ZeroLogger{logger: zctx.Logger()}, nil
}

// traceHook stamps the ids of the span carried by the event context.
type traceHook struct{}

func (traceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	sc := spanContextFrom(ctx)
	if !sc.IsValid() {
		return
	}

	e.Str(TraceIDKey, sc.TraceID().String()).
		Str(SpanIDKey, sc.SpanID().String()).
		Str(TraceFlagsKey, sc.TraceFlags().String())
}

func (l *ZeroLogger) Trace() *zerolog.Event {
	return l.logger.Trace()
}

func (l *ZeroLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *ZeroLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ZeroLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *ZeroLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ZeroLogger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

func (l *ZeroLogger) Panic() *zerolog.Event {
	return l.logger.Panic()
}

func (l *ZeroLogger) With() zerolog.Context {
	return l.logger.With()
}

func (l *ZeroLogger) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str(ComponentKey, component).Logger()
}

func (l *ZeroLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

// Emit never terminates the process, even for fatal or panic levels.
func (l *ZeroLogger) Emit(ctx context.Context, level zerolog.Level, template string, fields map[string]interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.logger.WithLevel(level).
		Ctx(ctx).
		Fields(fields).
		Str(MessageTemplateKey, template).
		Msg(RenderTemplate(template, fields))
}

// Zerolog exposes the underlying logger for libraries that want one.
func (l *ZeroLogger) Zerolog() zerolog.Logger {
	return l.logger
}

func (l *ZeroLogger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *ZeroLogger) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}
