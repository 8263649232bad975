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
	"fmt"
	"strings"
)

// RenderTemplate substitutes {name} placeholders with values from fields.
// Unknown placeholders are left untouched and "{{" / "}}" render as literal braces.
func RenderTemplate(template string, fields map[string]interface{}) string {
	if !strings.ContainsAny(template, "{}") {
		return template
	}

	var b strings.Builder

	b.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]

		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				return b.String()
			}

			name := template[i+1 : i+1+end]
			if value, ok := fields[name]; ok {
				b.WriteString(fmt.Sprint(value))
			} else {
				b.WriteString(template[i : i+2+end])
			}

			i += end + 1
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
