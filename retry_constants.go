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

import "time"

// Default retry constants for caller-side retries of a single operation.
const (
	// DefaultRetryAttempts is the number of attempts, including the first.
	DefaultRetryAttempts = 3
	// DefaultRetryInitialBackoff is the delay before the first retry.
	DefaultRetryInitialBackoff = 10 * time.Millisecond
	// DefaultRetryMaxBackoff caps the delay between attempts.
	DefaultRetryMaxBackoff = 1 * time.Second
	// DefaultRetryBackoffMultiplier is the exponential backoff multiplier.
	DefaultRetryBackoffMultiplier = 2.0
	// DefaultRetryJitter is the random jitter factor (0.0-1.0) to prevent thundering herd.
	DefaultRetryJitter = 0.1
	// DefaultRetryTimeout is the overall timeout for all attempts.
	DefaultRetryTimeout = 5 * time.Second
)

// Scan retry constants are used by the polling scanner for one probe.
const (
	// ScanRetryAttempts is the number of attempts for one probe.
	ScanRetryAttempts = 2
	// ScanRetryBackoff is the delay between probe attempts.
	ScanRetryBackoff = 20 * time.Millisecond
)
