/*
 * Copyright 2025 SREDiag Authors
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

package shm

import (
	"context"
	"errors"
	"runtime"

	"github.com/cenkalti/backoff/v4"
)

var errNotYet = errors.New("condition not met")

// condition reports whether a wait is over. A non-nil error aborts the wait.
type condition func() (bool, error)

// waitFor blocks until cond holds. It spins for SpinIterations checks and
// then polls with exponential backoff between PollInterval and
// MaxPollInterval. Only ctx bounds the total wait.
func (c *Config) waitFor(ctx context.Context, cond condition) error {
	for i := 0; i < c.SpinIterations; i++ {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i&63 == 63 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		runtime.Gosched()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.PollInterval
	b.MaxInterval = c.MaxPollInterval
	b.MaxElapsedTime = 0
	return backoff.Retry(func() error {
		done, err := cond()
		switch {
		case err != nil:
			return backoff.Permanent(err)
		case done:
			return nil
		default:
			return errNotYet
		}
	}, backoff.WithContext(b, ctx))
}

// waitForReady blocks until the host has called MarkReady on r, or ctx ends.
// Observing the flag makes every header and payload write the host issued
// before MarkReady visible to this process.
func (c *Config) waitForReady(ctx context.Context, r *Region) error {
	return c.waitFor(ctx, r.readyState)
}
