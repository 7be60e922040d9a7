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
	"time"

	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

// ISO/IEC 14443-3 type A constants used by the sense probe
const (
	sensReq            = 0x26 // SENS_REQ (REQA), 7-bit short frame
	senseTimeout       = 30 * time.Millisecond
	shortFrameBits     = 7
	typeAGuardTime     = 6
	atqaAnticollBitmap = 0x1F
)

// DeviceState is the connection state of a Device
type DeviceState int

const (
	// StateDisconnected means no transport or chipset is held
	StateDisconnected DeviceState = iota
	// StateConnected means a transport is open and the chipset initialised
	StateConnected
)

func (s DeviceState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Opener opens the transport to a physical reader
type Opener func(ctx context.Context) (Transport, error)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// ProtocolDefaults is the raw InSetProtocol payload loaded before sensing
	ProtocolDefaults []byte
	// Timeout bounds each operation whose context carries no deadline
	Timeout time.Duration
	// TraceSize is the number of wire entries attached to errors
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ProtocolDefaults: append([]byte(nil), DefaultProtocolSettings...),
		Timeout:          1 * time.Second,
		TraceSize:        DefaultTraceSize,
	}
}

type connection struct {
	transport Transport
	chipset   *Chipset
}

// Device represents an RC-S380 reader. It is either disconnected, holding
// nothing, or connected, exclusively owning one Transport and the Chipset
// driving it. Device is safe for concurrent use; commands are serialised by
// the chipset.
type Device struct {
	opener Opener
	config *DeviceConfig
	conn   *connection
	mu     syncutil.RWMutex
}

// New creates a disconnected device
func New(opts ...Option) (*Device, error) {
	device := &Device{
		config: DefaultDeviceConfig(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// Config returns the device configuration
func (d *Device) Config() *DeviceConfig {
	return d.config
}

// State returns the connection state
func (d *Device) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return StateDisconnected
	}
	return StateConnected
}

// IsConnected returns true while a transport is held
func (d *Device) IsConnected() bool {
	return d.State() == StateConnected
}

// Connect opens the transport, resets the reader and switches it to raw
// command mode. On failure the device stays disconnected.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return ErrAlreadyConnected
	}
	if d.opener == nil {
		return errors.New("transport opener not provided")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	transport, err := d.opener(ctx)
	if err != nil {
		return fmt.Errorf("failed to open transport: %w", err)
	}

	chipset := NewChipset(transport, d.config.TraceSize)
	if err := chipset.Init(ctx); err != nil {
		_ = transport.Close()
		return fmt.Errorf("failed to initialize reader: %w", err)
	}

	d.conn = &connection{transport: transport, chipset: chipset}
	Debugf("Connected to reader over %s", transport.Type())
	return nil
}

// Disconnect turns the RF field off, releases the chipset and closes the
// transport. Disconnecting a disconnected device is a no-op.
func (d *Device) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return nil
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var errs []error
	if err := conn.chipset.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := conn.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}
	return errors.Join(errs...)
}

// Chipset returns the chipset driver of a connected device
func (d *Device) Chipset() (*Chipset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil, ErrNotConnected
	}
	return d.conn.chipset, nil
}

// Transport returns the transport of a connected device, or nil
func (d *Device) Transport() Transport {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.transport
}

// withTimeout applies the configured timeout to contexts without a deadline
func (d *Device) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.config.Timeout)
}

// GetFirmwareVersion returns the reader firmware version
func (d *Device) GetFirmwareVersion(ctx context.Context) (Version, error) {
	chipset, err := d.Chipset()
	if err != nil {
		return Version{}, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.GetFirmwareVersion(ctx)
}

// GetPDDataVersion returns the package data format version
func (d *Device) GetPDDataVersion(ctx context.Context) (Version, error) {
	chipset, err := d.Chipset()
	if err != nil {
		return Version{}, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.GetPDDataVersion(ctx)
}

// InSetRF selects the initiator bit rate; see Chipset.InSetRF
func (d *Device) InSetRF(ctx context.Context, send, recv Bitrate) error {
	chipset, err := d.Chipset()
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.InSetRF(ctx, send, recv)
}

// InSetProtocol loads protocol settings; see Chipset.InSetProtocol
func (d *Device) InSetProtocol(ctx context.Context, settings *ProtocolSettings) error {
	chipset, err := d.Chipset()
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.InSetProtocol(ctx, settings)
}

// InCommRF exchanges one RF frame; see Chipset.InCommRF. The RF timeout
// bounds the wait, not the device timeout.
func (d *Device) InCommRF(ctx context.Context, data []byte, timeout time.Duration) ([]byte, error) {
	chipset, err := d.Chipset()
	if err != nil {
		return nil, err
	}
	return chipset.InCommRF(ctx, data, timeout)
}

// SwitchRF turns the RF field on or off
func (d *Device) SwitchRF(ctx context.Context, state RFState) error {
	chipset, err := d.Chipset()
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.SwitchRF(ctx, state)
}

// SetCommandType selects the command set the reader accepts
func (d *Device) SetCommandType(ctx context.Context, kind CommandType) error {
	chipset, err := d.Chipset()
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return chipset.SetCommandType(ctx, kind)
}

// SensResponse is a type A target's answer to SENS_REQ
type SensResponse struct {
	ATQA     []byte
	Type1Tag bool
}

// SenseTypeA configures the reader for 106 kbps type A and sends SENS_REQ.
// It returns ErrNoTargetDetected when nothing answers. Anti-collision and
// selection are not performed.
func (d *Device) SenseTypeA(ctx context.Context) (*SensResponse, error) {
	chipset, err := d.Chipset()
	if err != nil {
		return nil, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := chipset.InSetRF(ctx, Bitrate106A, 0); err != nil {
		return nil, err
	}
	if err := chipset.InSetProtocol(ctx, NewProtocolSettings(d.config.ProtocolDefaults)); err != nil {
		return nil, err
	}
	sense := NewProtocolSettings(nil).
		Set(OptInitialGuardTime, typeAGuardTime).
		Set(OptAddCRC, 0).
		Set(OptCheckCRC, 0).
		Set(OptCheckParity, 1).
		Set(OptLastByteBitCount, shortFrameBits)
	if err := chipset.InSetProtocol(ctx, sense); err != nil {
		return nil, err
	}

	resp, err := chipset.InCommRF(ctx, []byte{sensReq}, senseTimeout)
	if err != nil {
		if IsNoTarget(err) {
			return nil, fmt.Errorf("%w: %w", ErrNoTargetDetected, err)
		}
		return nil, err
	}
	if len(resp) != 2 {
		return nil, fmt.Errorf("%w: ATQA of %d bytes", ErrNoTargetDetected, len(resp))
	}

	sens := &SensResponse{
		ATQA:     resp,
		Type1Tag: resp[0]&atqaAnticollBitmap == 0,
	}
	Debugf("SENS_RES % X (type 1: %v)", sens.ATQA, sens.Type1Tag)
	return sens, nil
}
