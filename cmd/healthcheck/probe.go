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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errUnhealthy = errors.New("unhealthy status")

type prober struct {
	url      string
	attempts uint
	interval time.Duration
	timeout  time.Duration
	progress io.Writer
	client   *http.Client
}

func (p *prober) wait(ctx context.Context) error {
	client := p.client
	if client == nil {
		client = &http.Client{Timeout: p.timeout}
	}

	attempt := 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++

		if p.progress != nil {
			_, _ = fmt.Fprintf(p.progress, "healthcheck: probing %s (attempt %d)\n", p.url, attempt)
		}

		return struct{}{}, p.probe(ctx, client)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.interval)),
		backoff.WithMaxTries(p.attempts),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return fmt.Errorf("%s not healthy after %d attempts: %w", p.url, attempt, err)
	}

	return nil
}

func (p *prober) probe(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnhealthy, resp.StatusCode)
	}

	return nil
}
