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

// Package detection finds attached RC-S380 readers.
//
// Detectors for individual buses register themselves from init; callers
// import them for their side effect and call DetectAll.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only checks device descriptors without any communication
	Passive Mode = iota
	// Safe mode opens the reader and asks for its firmware version
	Safe
	// Full mode also reads the PD data version
	Full
)

// String returns the mode name used in flags and config files
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Passive, Safe, Full} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown detection mode %q", s)
}

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low: the descriptor matched but the reader could not be opened
	Low Confidence = iota
	// Medium: the descriptor matched a known reader
	Medium
	// High: the reader answered a firmware query
	High
)

// String returns the lower-case confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected reader
type DeviceInfo struct {
	// Metadata holds "vidpid" and, after probing, "firmware" and "pddata"
	Metadata map[string]string
	// Transport type, e.g. "usb"
	Transport string
	// Path is the transport port name, e.g. "usb:001:004"
	Path string
	// Name is the product name
	Name string
	// Bus and Address locate a USB reader
	Bus        int
	Address    int
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["054C:06C3"])
	Blocklist []string
	// Port names to ignore (e.g., ["usb:001:004"])
	IgnorePaths []string
	// Which transports to check (empty = all)
	Transports []string
	CacheTTL   time.Duration
	// Timeout bounds the whole detection run
	Timeout     time.Duration
	Mode        Mode
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector finds readers on one transport
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

var (
	// ErrNoDevicesFound indicates no readers were detected
	ErrNoDevicesFound = errors.New("no RC-S380 devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrNoDetectors indicates no detector handles the requested transports
	ErrNoDetectors = errors.New("no detectors available for specified transports")
)

var (
	registry   []Detector
	registryMu syncutil.RWMutex
)

// RegisterDetector adds a detector to the registry. A detector for a
// transport that is already registered replaces the old one.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, existing := range registry {
		if existing.Transport() == d.Transport() {
			registry[i] = d
			return
		}
	}
	registry = append(registry, d)
}

func detectorsFor(transports []string) []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Detector
	for _, d := range registry {
		if len(transports) == 0 || contains(transports, d.Transport()) {
			out = append(out, d)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every registered detector matching opts.Transports in
// parallel. Devices are returned if any detector found one, even when
// others failed.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := detectorsFor(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func(d Detector) {
			results <- runDetector(ctx, d, opts)
		}(d)
	}

	var devices []DeviceInfo
	var errs []error
	for range detectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			devices = append(devices, res.devices...)
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	switch {
	case len(devices) > 0:
		return devices, nil
	case len(errs) > 0:
		return nil, errors.Join(errs...)
	default:
		return nil, ErrNoDevicesFound
	}
}

func runDetector(ctx context.Context, d Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, ok := getCached(d.Transport(), opts.CacheTTL); ok {
			// cached results were filtered with the options of the run that
			// stored them
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: fmt.Errorf("%s detection: %w", d.Transport(), err)}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(d.Transport(), devices)
		} else {
			clearCacheForTransport(d.Transport())
		}
	}
	return detectionResult{devices: devices}
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}
