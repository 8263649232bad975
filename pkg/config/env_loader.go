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

package config

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

//nolint:gochecknoglobals // reflect type lookups are immutable
var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// EnvConfigLoader loads configuration from environment variables.
// It supports nested struct fields using underscore separation.
// For example: TELEMETRYAPP_LOGGING_LEVEL maps to config.Logging.Level
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string // Optional prefix for all env vars (e.g., "TELEMETRYAPP_")
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	return &EnvConfigLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements ConfigLoader by reading from environment variables.
// Fields without a matching variable keep their current value, so Load can
// be used as an overlay on top of a file-loaded config.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if e.logger != nil {
		e.logger.Debug().Msg("Loading configuration from environment variables")
	}

	// A complete JSON config in one variable wins over individual fields
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %sCONFIG_JSON: %w", e.prefix, err)
		}

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	return e.loadStruct(v, e.prefix)
}

// loadStruct recursively loads a struct from environment variables.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")

		// Embedded structs share the parent's prefix, mirroring encoding/json.
		if fieldType.Anonymous && jsonTag == "" && field.Kind() == reflect.Struct {
			if err := e.loadStruct(field, prefix); err != nil {
				return err
			}

			continue
		}

		if !field.CanSet() {
			continue
		}

		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envName := e.buildEnvName(prefix, fieldName)

		if err := e.setFieldValue(field, envName); err != nil {
			return err
		}
	}

	return nil
}

// buildEnvName constructs the environment variable name from prefix and field name.
func (*EnvConfigLoader) buildEnvName(prefix, fieldName string) string {
	envName := strings.ToUpper(fieldName)
	envName = strings.ReplaceAll(envName, ".", "_")

	return prefix + envName
}

// setFieldValue sets a struct field value from an environment variable.
func (e *EnvConfigLoader) setFieldValue(field reflect.Value, envName string) error {
	if isNestedStruct(field) {
		return e.handleNestedStruct(field, envName)
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok || envValue == "" {
		return nil
	}

	if err := e.setFieldByKind(field, envName, envValue); err != nil {
		return err
	}

	if e.logger != nil {
		e.logger.Debug().
			Str("env", envName).
			Str("value", "[set]").
			Msg("Loaded value from environment variable")
	}

	return nil
}

func isNestedStruct(field reflect.Value) bool {
	if field.Addr().Type().Implements(textUnmarshalerType) {
		return false
	}

	return field.Kind() == reflect.Struct ||
		(field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct)
}

// handleNestedStruct loads nested structs. Nil struct pointers are only
// allocated when at least one variable targets them.
func (e *EnvConfigLoader) handleNestedStruct(field reflect.Value, envName string) error {
	prefix := envName + "_"

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			if !hasEnvWithPrefix(prefix) {
				return nil
			}

			field.Set(reflect.New(field.Type().Elem()))
		}

		return e.loadStruct(field.Elem(), prefix)
	}

	return e.loadStruct(field, prefix)
}

func hasEnvWithPrefix(prefix string) bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}

	return false
}

// setFieldByKind sets field value based on its reflect.Kind.
func (*EnvConfigLoader) setFieldByKind(field reflect.Value, envName, envValue string) error {
	if tu, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		if err := tu.UnmarshalText([]byte(envValue)); err != nil {
			return fmt.Errorf("invalid value for %s: %w", envName, err)
		}

		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)

	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", envName, err)
		}

		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(envValue)
			if err != nil {
				return fmt.Errorf("invalid duration value for %s: %w", envName, err)
			}

			field.SetInt(int64(d))

			return nil
		}

		i, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", envName, err)
		}

		field.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value for %s: %w", envName, err)
		}

		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(envValue, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", envName, err)
		}

		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			values := strings.Split(envValue, ",")
			slice := reflect.MakeSlice(field.Type(), len(values), len(values))

			for i, v := range values {
				slice.Index(i).SetString(strings.TrimSpace(v))
			}

			field.Set(slice)

			return nil
		}

		fallthrough

	default:
		return setJSONField(field, envName, envValue)
	}

	return nil
}

// setJSONField handles maps and other composite types. Maps also accept the
// OTEL-style "k1=v1,k2=v2" form.
func setJSONField(field reflect.Value, envName, envValue string) error {
	if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String &&
		field.Type().Elem().Kind() == reflect.String && !strings.HasPrefix(strings.TrimSpace(envValue), "{") {
		m := reflect.MakeMap(field.Type())

		for _, pair := range strings.Split(envValue, ",") {
			if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
				key := reflect.ValueOf(strings.TrimSpace(kv[0])).Convert(field.Type().Key())
				val := reflect.ValueOf(strings.TrimSpace(kv[1])).Convert(field.Type().Elem())
				m.SetMapIndex(key, val)
			}
		}

		field.Set(m)

		return nil
	}

	if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
		return fmt.Errorf("unsupported value for %s (%s): %w", envName, field.Kind(), err)
	}

	return nil
}
