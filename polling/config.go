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

package polling

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs380"
)

// FeliCaPolling is a FeliCa polling request for any system code with
// system code reporting and a single time slot.
var FeliCaPolling = []byte{0x06, 0x00, 0xFF, 0xFF, 0x01, 0x00}

// Config configures a Scanner
type Config struct {
	// Retry bounds the attempts made for one scan step. Errors that
	// rcs380.IsNoTarget recognises are never retried.
	Retry *rcs380.RetryConfig
	// Interval is the pause between two scan steps
	Interval time.Duration
	// RFTimeout is the chipset-side wait for a target reply used by raw
	// probes
	RFTimeout time.Duration
	// Bitrate is the RF bitrate used by raw probes
	Bitrate rcs380.Bitrate
}

// DefaultConfig returns a FeliCa-oriented scan configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:  250 * time.Millisecond,
		RFTimeout: 11 * time.Millisecond,
		Bitrate:   rcs380.Bitrate212F,
		Retry: &rcs380.RetryConfig{
			MaxAttempts:       rcs380.ScanRetryAttempts,
			InitialBackoff:    rcs380.ScanRetryBackoff,
			MaxBackoff:        rcs380.ScanRetryBackoff,
			BackoffMultiplier: 1,
		},
	}
}

// Validate checks the configuration for values the scanner cannot use
func (c *Config) Validate() error {
	switch {
	case c.Interval < 0:
		return fmt.Errorf("%w: negative scan interval", rcs380.ErrInvalidParameter)
	case c.RFTimeout < 0:
		return fmt.Errorf("%w: negative RF timeout", rcs380.ErrInvalidParameter)
	case !c.Bitrate.Valid():
		return fmt.Errorf("%w: bitrate %d", rcs380.ErrInvalidParameter, int(c.Bitrate))
	case c.Retry != nil:
		return c.Retry.Validate()
	}
	return nil
}
