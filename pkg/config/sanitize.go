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
	"errors"
	"reflect"
	"strings"
)

var errSanitizeNotStruct = errors.New("input must be a struct or pointer to struct")

// Sanitize converts a configuration struct into a map keyed by JSON field
// names, omitting every field tagged `sensitive:"true"`. The result is safe
// to log.
func Sanitize(cfg interface{}) (map[string]interface{}, error) {
	if cfg == nil {
		return map[string]interface{}{}, nil
	}

	rv := reflect.ValueOf(cfg)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return map[string]interface{}{}, nil
		}

		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, errSanitizeNotStruct
	}

	result, _ := sanitizeValue(rv).(map[string]interface{})

	return result, nil
}

func sanitizeValue(rv reflect.Value) interface{} {
	if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return sanitizeStruct(rv)
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i))
		}

		return out
	case reflect.Map:
		out := make(map[string]interface{}, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			if iter.Key().Kind() == reflect.String {
				out[iter.Key().String()] = sanitizeValue(iter.Value())
			}
		}

		return out
	default:
		if !rv.CanInterface() {
			return nil
		}

		return rv.Interface()
	}
}

func sanitizeStruct(rv reflect.Value) map[string]interface{} {
	rt := rv.Type()
	out := make(map[string]interface{}, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.Tag.Get("sensitive") == "true" {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		if field.Anonymous && jsonTag == "" && rv.Field(i).Kind() == reflect.Struct {
			for k, v := range sanitizeStruct(rv.Field(i)) {
				out[k] = v
			}

			continue
		}

		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tagName, _, _ := strings.Cut(jsonTag, ","); tagName != "" {
			name = tagName
		}

		out[name] = sanitizeValue(rv.Field(i))
	}

	return out
}
