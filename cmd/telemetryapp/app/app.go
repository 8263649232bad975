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


// Package app wires configuration, telemetry and the HTTP server into the
// telemetryapp process.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/telemetryapp/pkg/config"
	"github.com/carverauto/telemetryapp/pkg/server"
	"github.com/carverauto/telemetryapp/pkg/telemetry"
	"github.com/carverauto/telemetryapp/pkg/version"
)

// Options configures Run.
type Options struct {
	ConfigPath string
}

// Run loads the configuration, starts telemetry and serves until ctx is
// canceled or SIGINT/SIGTERM arrives. It returns an error only for startup
// failures: invalid configuration or an unusable listen address. Telemetry
// is flushed before Run returns.
func Run(ctx context.Context, opts Options) error {
	cfg := server.DefaultConfig()

	if err := config.NewConfig(nil, config.DefaultEnvPrefix).LoadAndValidate(ctx, opts.ConfigPath, cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, err := telemetry.Init(ctx, cfg.Config, telemetry.WithLogConfig(cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	log := coord.Logger()

	safeCfg, err := config.Sanitize(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to sanitize configuration for logging")
	}

	log.Info().
		Str("version", version.GetFullVersion()).
		Interface("config", safeCfg).
		Msg("Starting telemetryapp")

	runErr := server.New(cfg, coord).Run(ctx)
	if runErr != nil {
		log.Error().Err(runErr).Msg("HTTP server stopped")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	if err := coord.ShutdownWithTimeout(time.Duration(cfg.ShutdownTimeout)); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown incomplete")
	}

	return runErr
}
