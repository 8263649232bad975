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


// Command healthcheck polls the service /healthz endpoint until it answers
// 200 or the attempts run out. It exits 0 when healthy and 1 otherwise,
// which makes it usable as a container HEALTHCHECK.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	var (
		url      = flag.String("url", "http://127.0.0.1:8080/healthz", "health endpoint to probe")
		attempts = flag.Uint("attempts", 30, "number of attempts before failing (0 for infinite)")
		interval = flag.Duration("interval", 2*time.Second, "delay between attempts")
		timeout  = flag.Duration("timeout", 2*time.Second, "per-attempt request timeout")
		quiet    = flag.Bool("quiet", false, "suppress progress logs")
	)

	flag.Parse()

	p := prober{url: *url, attempts: *attempts, interval: *interval, timeout: *timeout}
	if !*quiet {
		p.progress = os.Stderr
	}

	if err := p.wait(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)

		os.Exit(1)
	}
}
