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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Duration
		wantErr bool
	}{
		{name: "string", input: `"1m30s"`, want: Duration(90 * time.Second)},
		{name: "nanoseconds", input: `1000000`, want: Duration(time.Millisecond)},
		{name: "bad string", input: `"fast"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.ErrorIs(t, err, errInvalidDuration)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDurationMarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Interval Duration `json:"interval"`
	}{Interval: Duration(15 * time.Second)})
	require.NoError(t, err)

	assert.JSONEq(t, `{"interval":"15s"}`, string(data))
	assert.Equal(t, "15s", Duration(15*time.Second).String())
}
