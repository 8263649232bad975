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


// Package server assembles the forecast HTTP service on top of the
// telemetry pipeline.
package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/carverauto/telemetryapp/pkg/config"
	"github.com/carverauto/telemetryapp/pkg/forecast"
	"github.com/carverauto/telemetryapp/pkg/logger"
	"github.com/carverauto/telemetryapp/pkg/telemetry"
)

const defaultListenAddr = ":8080"

var (
	ErrEmptyListenAddr = errors.New("listen address is required")
	ErrInvalidTodoURL  = errors.New("todo url must be an absolute http or https url")
)

// Config is the service configuration. Telemetry settings sit at the top
// level of the JSON document alongside the server settings.
type Config struct {
	telemetry.Config

	ListenAddr  string          `json:"listen_addr"`
	TodoURL     string          `json:"todo_url"`
	TodoTimeout config.Duration `json:"todo_timeout"`
	Logging     *logger.Config  `json:"logging"`
}

// DefaultConfig returns a config that validates as-is.
func DefaultConfig() *Config {
	return &Config{
		Config:      telemetry.DefaultConfig(),
		ListenAddr:  defaultListenAddr,
		TodoURL:     forecast.DefaultTodoURL,
		TodoTimeout: config.Duration(forecast.DefaultTodoTimeout),
		Logging:     logger.DefaultConfig(),
	}
}

// Validate checks the server settings and then the telemetry settings.
// Failures are *telemetry.ConfigurationError values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return &telemetry.ConfigurationError{Field: "listen_addr", Err: ErrEmptyListenAddr}
	}

	if c.TodoURL != "" {
		u, err := url.Parse(c.TodoURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &telemetry.ConfigurationError{
				Field: "todo_url",
				Err:   fmt.Errorf("%w: %q", ErrInvalidTodoURL, c.TodoURL),
			}
		}
	}

	if c.TodoTimeout < 0 {
		return &telemetry.ConfigurationError{Field: "todo_timeout", Err: telemetry.ErrInvalidInterval}
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	return c.Config.Validate()
}

func (c *Config) todoTimeout() time.Duration {
	return time.Duration(c.TodoTimeout)
}

func (c *Config) shutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeout)
}
