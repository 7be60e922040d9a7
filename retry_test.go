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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRetryFatal = errors.New("fatal")

// fastRetry returns a schedule short enough for unit tests
func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config  *RetryConfig
		name    string
		wantErr bool
	}{
		{name: "Default", config: DefaultRetryConfig()},
		{name: "Zero", config: &RetryConfig{}},
		{name: "Negative_Attempts", config: &RetryConfig{MaxAttempts: -1}, wantErr: true},
		{name: "Negative_Backoff", config: &RetryConfig{InitialBackoff: -time.Second}, wantErr: true},
		{
			name:    "Initial_Above_Max",
			config:  &RetryConfig{InitialBackoff: time.Second, MaxBackoff: time.Millisecond},
			wantErr: true,
		},
		{name: "Shrinking_Multiplier", config: &RetryConfig{BackoffMultiplier: 0.5}, wantErr: true},
		{name: "Jitter_Out_Of_Range", config: &RetryConfig{Jitter: 1.5}, wantErr: true},
		{name: "Negative_Timeout", config: &RetryConfig{RetryTimeout: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		config *RetryConfig
		name   string
		want   []time.Duration
	}{
		{
			name: "Exponential_Capped",
			config: &RetryConfig{
				InitialBackoff:    10 * time.Millisecond,
				MaxBackoff:        50 * time.Millisecond,
				BackoffMultiplier: 2,
			},
			want: []time.Duration{10, 20, 40, 50, 50},
		},
		{
			name: "Fractional_Multiplier",
			config: &RetryConfig{
				InitialBackoff:    200 * time.Millisecond,
				MaxBackoff:        time.Second,
				BackoffMultiplier: 1.5,
			},
			want: []time.Duration{200, 300, 450, 675, 1000},
		},
		{
			name: "Constant_Without_Multiplier",
			config: &RetryConfig{
				InitialBackoff: 20 * time.Millisecond,
				MaxBackoff:     20 * time.Millisecond,
			},
			want: []time.Duration{20, 20, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for i, ms := range tt.want {
				assert.Equal(t, ms*time.Millisecond, tt.config.backoff(i), "attempt %d", i)
			}
		})
	}
}

func TestRetryConfig_Jittered(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	cfg := &RetryConfig{Jitter: 0.5}
	for range 200 {
		d := cfg.jittered(base)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}

	assert.Equal(t, base, (&RetryConfig{}).jittered(base))
}

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		errs      []error
		wantErr   error
		name      string
		wantCalls int
		exhausted bool
	}{
		{
			name:      "Immediate_Success",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "Success_After_Missing_ACK",
			errs:      []error{ErrNoACK, nil},
			wantCalls: 2,
		},
		{
			name:      "Success_After_CRC_Error",
			errs:      []error{CommCRCError, CommCRCError, nil},
			wantCalls: 3,
		},
		{
			name:      "Non_Retryable_Stops",
			errs:      []error{errRetryFatal, nil},
			wantErr:   errRetryFatal,
			wantCalls: 1,
		},
		{
			name:      "Status_Error_Not_Retried",
			errs:      []error{StatusRFCAError, nil},
			wantErr:   StatusRFCAError,
			wantCalls: 1,
		},
		{
			name:      "Exhausted",
			errs:      []error{CommReceiveTimeoutError, CommReceiveTimeoutError, CommReceiveTimeoutError},
			wantErr:   CommReceiveTimeoutError,
			wantCalls: 3,
			exhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), fastRetry(3), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)

			var re *RetryError
			assert.Equal(t, tt.exhausted, errors.As(err, &re))
			if tt.exhausted {
				assert.Equal(t, 3, re.Attempts)
				assert.True(t, IsRetryable(err))
			}
		})
	}
}

func TestRetryWithConfig_NoAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), &RetryConfig{}, func() error {
		calls++
		return ErrNoACK
	})
	require.ErrorIs(t, err, ErrNoACK)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsValue(t *testing.T) {
	t.Parallel()

	var retried []int
	cfg := fastRetry(4)
	cfg.OnRetry = func(attempt int, err error) {
		assert.ErrorIs(t, err, ErrNoACK)
		retried = append(retried, attempt)
	}

	calls := 0
	v, err := Retry(context.Background(), cfg, func(context.Context) (Version, error) {
		calls++
		if calls < 3 {
			return Version{}, ErrNoACK
		}
		return Version{Major: 1, Minor: 0x11}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1.11", v.String())
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_ContextCancellation(t *testing.T) {
	t.Parallel()

	t.Run("Cancelled_Before_Start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := RetryWithConfig(ctx, fastRetry(3), func() error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})

	t.Run("Cancelled_During_Backoff", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cfg := &RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- RetryWithConfig(ctx, cfg, func() error {
				calls++
				return ErrNoACK
			})
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrNoACK)
			assert.Equal(t, 1, calls)
		case <-time.After(time.Second):
			t.Fatal("retry did not stop after cancellation")
		}
	})

	t.Run("Retry_Timeout", func(t *testing.T) {
		t.Parallel()

		cfg := &RetryConfig{
			MaxAttempts:    100,
			InitialBackoff: 5 * time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			RetryTimeout:   30 * time.Millisecond,
		}
		start := time.Now()
		err := RetryWithConfig(context.Background(), cfg, func() error {
			return CommCRCError
		})
		require.ErrorIs(t, err, CommCRCError)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func BenchmarkRetryConfig_Backoff(b *testing.B) {
	cfg := DefaultRetryConfig()
	for i := 0; i < b.N; i++ {
		cfg.jittered(cfg.backoff(i % 8))
	}
}
