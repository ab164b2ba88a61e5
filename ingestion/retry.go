// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// DefaultMaxRetryDelay caps the wait between two provider calls.
const DefaultMaxRetryDelay = 30 * time.Second

// Backoff describes how provider calls are retried. The wait doubles after
// every failed attempt, starting at Delay and never exceeding MaxDelay.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// wait returns the pause that follows failed attempt n, counting from 1.
func (b Backoff) wait(n int) time.Duration {
	limit := b.MaxDelay
	if limit <= 0 {
		limit = DefaultMaxRetryDelay
	}
	d := b.Delay
	for i := 1; i < n && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// Do calls op until it succeeds, ctx ends or every attempt has failed.
// The last error of op is returned unwrapped.
func (b Backoff) Do(ctx context.Context, logger *slog.Logger, op func() error) error {
	if b.Attempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for n := 1; n <= b.Attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = op(); err == nil {
			if n > 1 {
				logger.Debug("provider call recovered", "attempt", n)
			}
			return nil
		}
		if n == b.Attempts {
			break
		}
		pause := b.wait(n)
		logger.Debug("provider call failed", "attempt", n, "of", b.Attempts, "retry_in", pause, "err", err)
		if sleepErr := sleep(ctx, pause); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// RetryWithBackoff runs op under a Backoff of maxAttempts tries starting at baseDelay.
func RetryWithBackoff(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	return Backoff{Attempts: maxAttempts, Delay: baseDelay}.Do(ctx, nil, op)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
