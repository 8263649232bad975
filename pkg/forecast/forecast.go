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


// Package forecast serves the sample weather forecast endpoint.
package forecast

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// DefaultDays is the number of forecast records returned per request.
	DefaultDays = 5

	dateLayout      = "2006-01-02"
	minTemperatureC = -20
	maxTemperatureC = 55 // exclusive
)

//nolint:gochecknoglobals // fixed vocabulary
var summaries = []string{
	"Freezing", "Bracing", "Chilly", "Cool", "Mild",
	"Warm", "Balmy", "Hot", "Sweltering", "Scorching",
}

// Forecast is one day of the forecast.
type Forecast struct {
	Date         string `json:"date"`
	TemperatureC int    `json:"temperatureC"`
	TemperatureF int    `json:"temperatureF"`
	Summary      string `json:"summary"`
}

// Summaries returns the vocabulary forecasts draw their summary from.
func Summaries() []string {
	out := make([]string, len(summaries))
	copy(out, summaries)

	return out
}

// TemperatureF converts Celsius using the truncating 0.5556 divisor.
func TemperatureF(celsius int) int {
	return 32 + int(float64(celsius)/0.5556)
}

// Generator produces random forecasts starting tomorrow.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator returns a Generator. A nil source uses a randomly seeded one
// and a nil clock uses time.Now.
func NewGenerator(src rand.Source, now func() time.Time) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	if now == nil {
		now = time.Now
	}

	return &Generator{rnd: rand.New(src), now: now}
}

// Generate returns days records dated today+1 through today+days.
func (g *Generator) Generate(days int) []Forecast {
	if days <= 0 {
		return []Forecast{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	today := g.now()
	out := make([]Forecast, 0, days)

	for i := 1; i <= days; i++ {
		c := minTemperatureC + g.rnd.IntN(maxTemperatureC-minTemperatureC)

		out = append(out, Forecast{
			Date:         today.AddDate(0, 0, i).Format(dateLayout),
			TemperatureC: c,
			TemperatureF: TemperatureF(c),
			Summary:      summaries[g.rnd.IntN(len(summaries))],
		})
	}

	return out
}
