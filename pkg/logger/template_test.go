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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	fields := map[string]interface{}{
		"resp":  "{\"id\":1}",
		"count": 5,
	}

	tests := []struct {
		template string
		want     string
	}{
		{"plain message", "plain message"},
		{"GetWeatherForecast called {resp}", "GetWeatherForecast called {\"id\":1}"},
		{"{count} items", "5 items"},
		{"missing {other}", "missing {other}"},
		{"escaped {{braces}}", "escaped {braces}"},
		{"unterminated {resp", "unterminated {resp"},
		{"{count}/{count}", "5/5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RenderTemplate(tt.template, fields), tt.template)
	}
}
