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

// Package usb provides the RC-S380 transport over libusb bulk endpoints.
package usb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
	"github.com/google/gousb"
)

// Sony RC-S380 identifiers
const (
	VendorSony    gousb.ID = 0x054C
	ProductRCS380 gousb.ID = 0x06C1
	// ProductRCS380P is the RC-S380/P variant
	ProductRCS380P gousb.ID = 0x06C3
)

// ProductName returns the model name of a Sony reader product id, or ""
// for products this package does not drive.
func ProductName(product gousb.ID) string {
	switch product {
	case ProductRCS380:
		return "RC-S380"
	case ProductRCS380P:
		return "RC-S380/P"
	default:
		return ""
	}
}

// Config selects the reader and the endpoints used for bulk transfers
type Config struct {
	// VendorID and ProductID identify the reader
	VendorID  gousb.ID
	ProductID gousb.ID
	// Bus and Address pick one reader when several are attached; zero
	// values match any
	Bus     int
	Address int
	// Config, Interface and AltSetting select the USB interface to claim
	Config     int
	Interface  int
	AltSetting int
	// OutEndpoint and InEndpoint are endpoint numbers without the
	// direction bit
	OutEndpoint int
	InEndpoint  int
	// MaxReceiveSize is the length of each bulk read
	MaxReceiveSize int
	// ReadTimeout bounds a read whose context has no deadline; zero waits
	// for the context
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration for a single RC-S380
func DefaultConfig() Config {
	return Config{
		VendorID:       VendorSony,
		ProductID:      ProductRCS380,
		Config:         1,
		Interface:      0,
		OutEndpoint:    2,
		InEndpoint:     1,
		MaxReceiveSize: rcs380.MaxReceiveSize,
		ReadTimeout:    time.Second,
	}
}

// Validate checks the configuration for values libusb would reject
func (c Config) Validate() error {
	switch {
	case c.VendorID == 0 || c.ProductID == 0:
		return fmt.Errorf("%w: vendor and product id are required", rcs380.ErrInvalidParameter)
	case c.OutEndpoint <= 0 || c.OutEndpoint > 15 || c.InEndpoint <= 0 || c.InEndpoint > 15:
		return fmt.Errorf("%w: endpoint numbers must be 1-15", rcs380.ErrInvalidParameter)
	case c.MaxReceiveSize <= 0:
		return fmt.Errorf("%w: max receive size %d", rcs380.ErrInvalidParameter, c.MaxReceiveSize)
	case c.ReadTimeout < 0:
		return fmt.Errorf("%w: negative read timeout", rcs380.ErrInvalidParameter)
	case c.Bus < 0 || c.Address < 0:
		return fmt.Errorf("%w: negative bus or address", rcs380.ErrInvalidParameter)
	}
	return nil
}

func (c Config) matches(desc *gousb.DeviceDesc) bool {
	if desc.Vendor != c.VendorID || desc.Product != c.ProductID {
		return false
	}
	if c.Bus != 0 && desc.Bus != c.Bus {
		return false
	}
	return c.Address == 0 || desc.Address == c.Address
}

type bulkWriter interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

type bulkReader interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

// Transport implements rcs380.Transport over a claimed USB interface
type Transport struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	out    bulkWriter
	in     bulkReader
	port   string
	config Config
	mu     syncutil.Mutex
	closed bool
}

// Open finds the reader described by config, claims its interface and
// opens both bulk endpoints
func Open(ctx context.Context, config Config) (*Transport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usbCtx := gousb.NewContext()
	t := &Transport{usbCtx: usbCtx, config: config}

	dev, err := openDevice(usbCtx, config)
	if err != nil {
		_ = t.release()
		return nil, err
	}
	t.dev = dev
	t.port = portName(dev.Desc)

	if err := t.claim(); err != nil {
		_ = t.release()
		return nil, err
	}

	rcs380.Debugf("USB: opened %s at %s", config.ProductID, t.port)
	return t, nil
}

// Opener returns an rcs380.Opener that opens a reader with config
func Opener(config Config) rcs380.Opener {
	return func(ctx context.Context) (rcs380.Transport, error) {
		return Open(ctx, config)
	}
}

func openDevice(usbCtx *gousb.Context, config Config) (*gousb.Device, error) {
	devs, err := usbCtx.OpenDevices(config.matches)
	if len(devs) == 0 {
		if err != nil {
			return nil, mapOpenError(err)
		}
		return nil, fmt.Errorf("%w: %s:%s", rcs380.ErrDeviceNotFound, config.VendorID, config.ProductID)
	}

	// the first match wins; release the rest
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}
	return devs[0], nil
}

func (t *Transport) claim() error {
	if err := t.dev.SetAutoDetach(true); err != nil {
		rcs380.Debugf("USB: auto detach unavailable: %v", err)
	}

	cfg, err := t.dev.Config(t.config.Config)
	if err != nil {
		return fmt.Errorf("failed to select configuration %d: %w", t.config.Config, mapOpenError(err))
	}
	t.cfg = cfg

	intf, err := cfg.Interface(t.config.Interface, t.config.AltSetting)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", t.config.Interface, mapOpenError(err))
	}
	t.intf = intf

	out, err := intf.OutEndpoint(t.config.OutEndpoint)
	if err != nil {
		return fmt.Errorf("failed to open OUT endpoint %d: %w", t.config.OutEndpoint, err)
	}
	in, err := intf.InEndpoint(t.config.InEndpoint)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint %d: %w", t.config.InEndpoint, err)
	}
	t.out, t.in = out, in
	return nil
}

// Write sends data in one bulk OUT transfer. An empty buffer is a no-op.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.out == nil {
		return rcs380.NewTransportClosedError("write", t.port)
	}

	n, err := t.out.WriteContext(ctx, data)
	if err != nil {
		return mapTransferError(ctx, "write", t.port, err)
	}
	if n != len(data) {
		return rcs380.NewTransportError("write", t.port,
			fmt.Errorf("%w: short write %d of %d bytes", rcs380.ErrTransportWrite, n, len(data)),
			rcs380.ErrorTypeTransient)
	}
	return nil
}

// Read performs one bulk IN transfer of up to MaxReceiveSize bytes. A
// transfer that completes empty is an error.
func (t *Transport) Read(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.in == nil {
		return nil, rcs380.NewTransportClosedError("read", t.port)
	}

	if _, ok := ctx.Deadline(); !ok && t.config.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ReadTimeout)
		defer cancel()
	}

	buf := make([]byte, t.config.MaxReceiveSize)
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil && n == 0 {
		return nil, mapTransferError(ctx, "read", t.port, err)
	}
	if n == 0 {
		return nil, rcs380.NewNoDataError("read", t.port)
	}
	return buf[:n], nil
}

// Close releases the interface, configuration, device and libusb context.
// Calling Close again is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.release()
}

func (t *Transport) release() error {
	var errs []error
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		if err := t.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release configuration: %w", err))
		}
		t.cfg = nil
	}
	if t.dev != nil {
		if err := t.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close device: %w", err))
		}
		t.dev = nil
	}
	if t.usbCtx != nil {
		if err := t.usbCtx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close libusb context: %w", err))
		}
		t.usbCtx = nil
	}
	t.out, t.in = nil, nil
	return errors.Join(errs...)
}

// IsConnected returns true until Close is called
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.in != nil && t.out != nil
}

// Type implements rcs380.Transport
func (*Transport) Type() rcs380.TransportType {
	return rcs380.TransportUSB
}

// PortName identifies the reader as usb:BUS:ADDRESS
func (t *Transport) PortName() string {
	return t.port
}

// FormatPort renders the port name of the device at bus and address,
// e.g. "usb:001:004".
func FormatPort(bus, address int) string {
	return fmt.Sprintf("usb:%03d:%03d", bus, address)
}

func portName(desc *gousb.DeviceDesc) string {
	if desc == nil {
		return ""
	}
	return FormatPort(desc.Bus, desc.Address)
}

var _ rcs380.Transport = (*Transport)(nil)
