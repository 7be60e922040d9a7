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

// Package polling scans the RF field of an RC-S380 as a lazy, cancellable
// sequence of results.
package polling

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

// ErrScanInProgress is returned when Scan is iterated while another
// iteration of the same scanner is running.
var ErrScanInProgress = errors.New("scan already in progress")

// Probe performs one scan step and returns the target's reply. An empty
// field is reported with an error for which rcs380.IsNoTarget is true.
type Probe func(ctx context.Context) ([]byte, error)

// TypeAProbe senses type A targets and returns their ATQA
func TypeAProbe(device *rcs380.Device) Probe {
	return func(ctx context.Context) ([]byte, error) {
		sens, err := device.SenseTypeA(ctx)
		if err != nil {
			return nil, err
		}
		return sens.ATQA, nil
	}
}

// RawProbe sends data over the air at bitrate and returns the reply. The
// reader is configured with the default protocol settings before the first
// exchange and again after any failed one.
func RawProbe(device *rcs380.Device, bitrate rcs380.Bitrate, data []byte, timeout time.Duration) Probe {
	var mu syncutil.Mutex
	configured := false

	return func(ctx context.Context) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()

		if !configured {
			if err := device.InSetRF(ctx, bitrate, bitrate); err != nil {
				return nil, err
			}
			settings := rcs380.NewProtocolSettings(device.Config().ProtocolDefaults)
			if err := device.InSetProtocol(ctx, settings); err != nil {
				return nil, err
			}
			configured = true
		}

		resp, err := device.InCommRF(ctx, data, timeout)
		if err != nil && !rcs380.IsNoTarget(err) {
			configured = false
		}
		return resp, err
	}
}

// Result is one step of a scan
type Result struct {
	Time time.Time
	// Response is the target's reply; nil when the field was empty
	Response []byte
	// Seq numbers the steps of one Scan sequence from 1
	Seq int
	// Present reports whether a target answered
	Present bool
	// Changed is set when a target arrived, left, or was replaced by one
	// answering differently since the previous step
	Changed bool
}

// Scanner repeats a probe until stopped. One Scanner runs at most one
// sequence at a time; after a sequence ends Scan may be called again.
type Scanner struct {
	probe  Probe
	config *Config
	cancel context.CancelFunc
	mu     syncutil.Mutex
}

// NewScanner creates a scanner around probe. A nil config uses
// DefaultConfig.
func NewScanner(probe Probe, config *Config) (*Scanner, error) {
	if probe == nil {
		return nil, errors.New("probe not provided")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{probe: probe, config: config}, nil
}

// Scan returns the sequence of scan steps. Errors that survive the retry
// policy are yielded alongside an empty Result; the sequence continues
// unless the error is fatal (rcs380.IsFatal). The sequence ends when the
// consumer stops iterating, ctx is done, or Stop is called.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if !s.begin(cancel) {
			yield(Result{}, ErrScanInProgress)
			return
		}
		defer s.end()

		var last Result
		for seq := 1; ; seq++ {
			res, err := s.step(ctx)
			if ctx.Err() != nil {
				return
			}
			res.Seq = seq
			res.Time = time.Now()

			if err != nil {
				rcs380.Debugf("scan %d failed: %v", seq, err)
				if !yield(res, err) || rcs380.IsFatal(err) {
					return
				}
			} else {
				res.Changed = res.Present != last.Present || !bytes.Equal(res.Response, last.Response)
				last = res
				if !yield(res, nil) {
					return
				}
			}

			if !sleep(ctx, s.config.Interval) {
				return
			}
		}
	}
}

// Stop ends the running sequence, if any
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Running reports whether a sequence is being iterated
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scanner) begin(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	s.cancel = cancel
	return true
}

func (s *Scanner) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil
}

func (s *Scanner) step(ctx context.Context) (Result, error) {
	return rcs380.Retry(ctx, s.config.Retry, func(ctx context.Context) (Result, error) {
		resp, err := s.probe(ctx)
		switch {
		case err == nil:
			return Result{Present: true, Response: resp}, nil
		case rcs380.IsNoTarget(err):
			return Result{}, nil
		default:
			return Result{}, err
		}
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
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
