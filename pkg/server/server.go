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


package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/telemetryapp/pkg/forecast"
	srHttp "github.com/carverauto/telemetryapp/pkg/http"
	"github.com/carverauto/telemetryapp/pkg/lifecycle"
	"github.com/carverauto/telemetryapp/pkg/telemetry"
)

// Server is the forecast HTTP service.
type Server struct {
	cfg    *Config
	coord  *telemetry.Coordinator
	router http.Handler
}

// New builds the routes and the instrumented upstream client from an
// initialized telemetry Coordinator.
func New(cfg *Config, coord *telemetry.Coordinator) *Server {
	todos := forecast.NewTodoClient(forecast.TodoClientOptions{
		URL:            cfg.TodoURL,
		Timeout:        cfg.todoTimeout(),
		TracerProvider: coord.TracerProvider(),
		MeterProvider:  coord.MeterProvider(),
		Propagator:     coord.Propagator(),
	})

	handler := forecast.NewHandler(nil, todos, coord.Tracer(), coord.Metrics(), coord.Logger())

	return &Server{
		cfg:   cfg,
		coord: coord,
		router: NewRouter(handler, srHttp.TelemetryOptions{
			Tracer:     coord.Tracer(),
			Metrics:    coord.Metrics(),
			Logger:     coord.Logger(),
			Propagator: coord.Propagator(),
		}),
	}
}

// NewRouter registers the service routes and wraps the router in the
// request-id and telemetry middleware, so unmatched requests get a span too.
func NewRouter(h *forecast.Handler, mw srHttp.TelemetryOptions) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/weatherforecast", h.GetWeatherForecast).
		Methods(http.MethodGet).
		Name("GetWeatherForecast")
	router.HandleFunc("/healthz", forecast.Health).
		Methods(http.MethodGet).
		Name("Health")

	return srHttp.Instrument(router, mw)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled. Telemetry shutdown is left to the caller
// so that spans from draining requests are still exported.
func (s *Server) Run(ctx context.Context) error {
	return lifecycle.RunHTTPServer(ctx, lifecycle.ServerOptions{
		Addr:            s.cfg.ListenAddr,
		Handler:         s.router,
		Logger:          s.coord.Logger(),
		ShutdownTimeout: s.cfg.shutdownTimeout(),
	})
}
