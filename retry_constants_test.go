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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRetryConstants_DefaultValues verifies the caller-side retry defaults
// are within reasonable bounds for a USB reader.
func TestRetryConstants_DefaultValues(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, DefaultRetryAttempts, 1)
	assert.LessOrEqual(t, DefaultRetryAttempts, 10)

	assert.Greater(t, DefaultRetryMaxBackoff, DefaultRetryInitialBackoff,
		"DefaultRetryMaxBackoff should be greater than initial backoff")

	assert.GreaterOrEqual(t, DefaultRetryBackoffMultiplier, 1.5)
	assert.LessOrEqual(t, DefaultRetryBackoffMultiplier, 3.0)

	assert.GreaterOrEqual(t, DefaultRetryJitter, 0.0)
	assert.LessOrEqual(t, DefaultRetryJitter, 0.5)

	minExpectedTimeout := time.Duration(DefaultRetryAttempts) * DefaultRetryInitialBackoff
	assert.Greater(t, DefaultRetryTimeout, minExpectedTimeout,
		"DefaultRetryTimeout should allow for multiple attempts")
}

// TestRetryConstants_ScanValues verifies the scanner retries a probe at
// least once without stretching the poll interval.
func TestRetryConstants_ScanValues(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, ScanRetryAttempts, 2)
	assert.LessOrEqual(t, ScanRetryAttempts, 5)
	assert.Less(t, ScanRetryBackoff, 100*time.Millisecond)
}

func TestDefaultRetryConfig_UsesConstants(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()
	assert.Equal(t, DefaultRetryAttempts, cfg.MaxAttempts)
	assert.Equal(t, DefaultRetryInitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, DefaultRetryMaxBackoff, cfg.MaxBackoff)
	assert.InDelta(t, DefaultRetryBackoffMultiplier, cfg.BackoffMultiplier, 0.0001)
	assert.Equal(t, DefaultRetryTimeout, cfg.RetryTimeout)
}
