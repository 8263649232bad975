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

// Package config loads service configuration from a JSON file overlaid with
// environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/carverauto/telemetryapp/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix is prepended to every environment variable name.
	DefaultEnvPrefix = "TELEMETRYAPP_"
)

// ConfigLoader fills dst from a source identified by path.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that can check themselves.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	fileLoader ConfigLoader
	envLoader  ConfigLoader
	logger     logger.Logger
}

// NewConfig initializes a Config with a JSON file loader and an env overlay.
// If log is nil, a warn-level stderr logger is used.
func NewConfig(log logger.Logger, envPrefix string) *Config {
	if log == nil {
		log = createBasicLogger()
	}

	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &Config{
		fileLoader: &FileConfigLoader{logger: log},
		envLoader:  NewEnvConfigLoader(log, envPrefix),
		logger:     log,
	}
}

// NewConfigWithDefaults returns a loader using DefaultEnvPrefix.
func NewConfigWithDefaults() *Config {
	return NewConfig(nil, DefaultEnvPrefix)
}

func createBasicLogger() logger.Logger {
	l, err := logger.NewLogger(&logger.Config{Level: "warn", Output: "stderr"})
	if err != nil {
		return logger.NewTestLogger()
	}

	return l
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads cfg from path (a missing file is not an error),
// overlays environment variables and validates the result.
// CONFIG_SOURCE=env skips the file entirely.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	source := strings.ToLower(os.Getenv("CONFIG_SOURCE"))

	switch source {
	case configSourceFile, "":
		if err := c.loadFile(ctx, path, cfg); err != nil {
			return err
		}
	case configSourceEnv:
	default:
		return fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}

	if err := c.envLoader.Load(ctx, path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

func (c *Config) loadFile(ctx context.Context, path string, cfg interface{}) error {
	if path == "" {
		return nil
	}

	err := c.fileLoader.Load(ctx, path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug().Str("path", path).Msg("Config file not found, using defaults and environment")

		return nil
	}

	return err
}
