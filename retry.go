// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package rcs380

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior. The chipset and device never retry
// on their own; callers that want retries wrap operations in Retry or
// RetryWithConfig.
type RetryConfig struct {
	// OnRetry, when set, is called before each retry with the attempt that
	// just failed (starting at 1) and its error
	OnRetry func(attempt int, err error)
	// MaxAttempts is the maximum number of attempts (0 = no retry)
	MaxAttempts int
	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
	// BackoffMultiplier scales the delay after every retry
	BackoffMultiplier float64
	// Jitter adds up to this fraction of the delay at random
	Jitter float64
	// RetryTimeout bounds all attempts together
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       DefaultRetryAttempts,
		InitialBackoff:    DefaultRetryInitialBackoff,
		MaxBackoff:        DefaultRetryMaxBackoff,
		BackoffMultiplier: DefaultRetryBackoffMultiplier,
		Jitter:            DefaultRetryJitter,
		RetryTimeout:      DefaultRetryTimeout,
	}
}

// Validate reports configuration values that cannot produce a schedule
func (c *RetryConfig) Validate() error {
	var errs []error
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must not be negative, got %d", c.MaxAttempts))
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		errs = append(errs, errors.New("backoff must not be negative"))
	}
	if c.MaxBackoff > 0 && c.InitialBackoff > c.MaxBackoff {
		errs = append(errs, fmt.Errorf("initial backoff %v exceeds max backoff %v", c.InitialBackoff, c.MaxBackoff))
	}
	if c.BackoffMultiplier != 0 && c.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("backoff multiplier must be at least 1, got %v", c.BackoffMultiplier))
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		errs = append(errs, fmt.Errorf("jitter must be within [0, 1], got %v", c.Jitter))
	}
	if c.RetryTimeout < 0 {
		errs = append(errs, errors.New("retry timeout must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, errors.Join(errs...))
	}
	return nil
}

// backoff returns the delay before the retry following attempt n (0-based),
// without jitter
func (c *RetryConfig) backoff(n int) time.Duration {
	d := c.InitialBackoff
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	for range n {
		d = time.Duration(float64(d) * mult)
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// jittered adds up to Jitter times d at random
func (c *RetryConfig) jittered(d time.Duration) time.Duration {
	if c.Jitter <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*c.Jitter*float64(d))
}

// RetryError is returned when every attempt failed with a retryable error.
// It unwraps to the last error.
type RetryError struct {
	Err      error
	Attempts int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// RetryWithConfig executes fn with retry logic. Only errors for which
// IsRetryable is true are retried. A nil config uses DefaultRetryConfig.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	_, err := Retry(ctx, config, func(context.Context) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Retry runs fn until it succeeds, fails with an error that is not
// retryable, runs out of attempts or ctx is done. fn receives the retry
// context, which carries RetryTimeout.
//
//	fw, err := rcs380.Retry(ctx, nil, func(ctx context.Context) (rcs380.Version, error) {
//	    return device.GetFirmwareVersion(ctx)
//	})
func Retry[T any](ctx context.Context, config *RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return fn(ctx)
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var zero T
	var lastErr error
	for attempt := range config.MaxAttempts {
		if ctx.Err() != nil {
			break
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == config.MaxAttempts-1 {
			return zero, &RetryError{Err: lastErr, Attempts: attempt + 1}
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}
		Debugf("retrying after attempt %d: %v", attempt+1, err)
		if !sleepContext(ctx, config.jittered(config.backoff(attempt))) {
			break
		}
	}

	if lastErr != nil {
		return zero, lastErr
	}
	return zero, fmt.Errorf("retry context cancelled: %w", ctx.Err())
}

// sleepContext waits for d and reports false if ctx ended first
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
