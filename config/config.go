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

// Package config loads the YAML configuration of the rcs380 command-line
// tool and turns it into the option types of the library packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/detection"
	"github.com/ZaparooProject/go-rcs380/polling"
	"github.com/ZaparooProject/go-rcs380/transport/usb"
	"github.com/google/gousb"
	"gopkg.in/yaml.v3"
)

// Probe names accepted in scan.probe
const (
	ProbeFeliCa = "felica"
	ProbeTypeA  = "typea"
)

// Config is the root of the configuration file
type Config struct {
	SessionLogDir string          `yaml:"session_log_dir,omitempty"`
	USB           USBConfig       `yaml:"usb"`
	Scan          ScanConfig      `yaml:"scan"`
	Detection     DetectionConfig `yaml:"detection"`
	Timeout       time.Duration   `yaml:"timeout"`
	TraceSize     int             `yaml:"trace_size"`
	Debug         bool            `yaml:"debug"`
}

// USBConfig selects the reader and its endpoints
type USBConfig struct {
	VendorID    uint16        `yaml:"vendor_id"`
	ProductID   uint16        `yaml:"product_id"`
	Bus         int           `yaml:"bus,omitempty"`
	Address     int           `yaml:"address,omitempty"`
	Config      int           `yaml:"configuration"`
	Interface   int           `yaml:"interface"`
	OutEndpoint int           `yaml:"out_endpoint"`
	InEndpoint  int           `yaml:"in_endpoint"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ScanConfig configures the scan command
type ScanConfig struct {
	// Protocol holds InSetProtocol overrides applied on top of the
	// defaults, keyed by option name (e.g. add_crc)
	Protocol  map[string]uint8 `yaml:"protocol,omitempty"`
	Probe     string           `yaml:"probe"`
	Bitrate   string           `yaml:"bitrate"`
	Interval  time.Duration    `yaml:"interval"`
	RFTimeout time.Duration    `yaml:"rf_timeout"`
	Attempts  int              `yaml:"attempts"`
}

// DetectionConfig configures the list command
type DetectionConfig struct {
	Mode        string   `yaml:"mode"`
	Blocklist   []string `yaml:"blocklist,omitempty"`
	IgnorePaths []string `yaml:"ignore_paths,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	usbDefaults := usb.DefaultConfig()
	scanDefaults := polling.DefaultConfig()
	return &Config{
		Timeout:   rcs380.DefaultDeviceConfig().Timeout,
		TraceSize: rcs380.DefaultDeviceConfig().TraceSize,
		USB: USBConfig{
			VendorID:    uint16(usbDefaults.VendorID),
			ProductID:   uint16(usbDefaults.ProductID),
			Config:      usbDefaults.Config,
			Interface:   usbDefaults.Interface,
			OutEndpoint: usbDefaults.OutEndpoint,
			InEndpoint:  usbDefaults.InEndpoint,
			ReadTimeout: usbDefaults.ReadTimeout,
		},
		Scan: ScanConfig{
			Probe:     ProbeFeliCa,
			Bitrate:   scanDefaults.Bitrate.String(),
			Interval:  scanDefaults.Interval,
			RFTimeout: scanDefaults.RFTimeout,
			Attempts:  scanDefaults.Retry.MaxAttempts,
		},
		Detection: DetectionConfig{
			Mode: detection.DefaultOptions().Mode.String(),
		},
	}
}

// Load reads a configuration file. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every invalid value
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.TraceSize < 0 {
		errs = append(errs, errors.New("trace_size must not be negative"))
	}
	if err := c.USBConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("usb: %w", err))
	}
	if _, err := c.ScanConfig(); err != nil {
		errs = append(errs, fmt.Errorf("scan: %w", err))
	}
	if c.Scan.Probe != ProbeFeliCa && c.Scan.Probe != ProbeTypeA {
		errs = append(errs, fmt.Errorf("scan: unknown probe %q", c.Scan.Probe))
	}
	if _, err := c.ProtocolDefaults(); err != nil {
		errs = append(errs, fmt.Errorf("scan: %w", err))
	}
	if _, err := detection.ParseMode(c.Detection.Mode); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	return errors.Join(errs...)
}

// USBConfig returns the transport configuration
func (c *Config) USBConfig() usb.Config {
	cfg := usb.DefaultConfig()
	cfg.VendorID = gousb.ID(c.USB.VendorID)
	cfg.ProductID = gousb.ID(c.USB.ProductID)
	cfg.Bus = c.USB.Bus
	cfg.Address = c.USB.Address
	cfg.Config = c.USB.Config
	cfg.Interface = c.USB.Interface
	cfg.OutEndpoint = c.USB.OutEndpoint
	cfg.InEndpoint = c.USB.InEndpoint
	cfg.ReadTimeout = c.USB.ReadTimeout
	return cfg
}

// ScanConfig returns the scanner configuration
func (c *Config) ScanConfig() (*polling.Config, error) {
	bitrate, err := rcs380.ParseBitrate(c.Scan.Bitrate)
	if err != nil {
		return nil, err
	}
	if c.Scan.Attempts < 1 {
		return nil, fmt.Errorf("%w: attempts must be at least 1", rcs380.ErrInvalidParameter)
	}

	cfg := polling.DefaultConfig()
	cfg.Bitrate = bitrate
	cfg.Interval = c.Scan.Interval
	cfg.RFTimeout = c.Scan.RFTimeout
	cfg.Retry.MaxAttempts = c.Scan.Attempts
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProtocolDefaults returns the InSetProtocol payload loaded before RF
// exchanges: the library defaults followed by the scan.protocol overrides
// in option index order.
func (c *Config) ProtocolDefaults() ([]byte, error) {
	type override struct {
		opt   rcs380.ProtocolOption
		value byte
	}
	overrides := make([]override, 0, len(c.Scan.Protocol))
	for name, value := range c.Scan.Protocol {
		opt, err := rcs380.ParseProtocolOption(name)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, override{opt: opt, value: value})
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].opt < overrides[j].opt })

	settings := rcs380.NewProtocolSettings(rcs380.DefaultProtocolSettings)
	for _, o := range overrides {
		settings.Set(o.opt, o.value)
	}
	return settings.Bytes(), nil
}

// DetectionOptions returns the options of the list command
func (c *Config) DetectionOptions() (detection.Options, error) {
	opts := detection.DefaultOptions()
	mode, err := detection.ParseMode(c.Detection.Mode)
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	opts.Blocklist = append(opts.Blocklist, c.Detection.Blocklist...)
	opts.IgnorePaths = append([]string(nil), c.Detection.IgnorePaths...)
	return opts, nil
}

// DeviceOptions returns the rcs380.Device options for this configuration
func (c *Config) DeviceOptions() ([]rcs380.Option, error) {
	defaults, err := c.ProtocolDefaults()
	if err != nil {
		return nil, err
	}
	return []rcs380.Option{
		rcs380.WithOpener(usb.Opener(c.USBConfig())),
		rcs380.WithTimeout(c.Timeout),
		rcs380.WithTraceSize(c.TraceSize),
		rcs380.WithProtocolDefaults(defaults),
	}, nil
}
