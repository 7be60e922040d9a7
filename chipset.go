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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs380/internal/frame"
	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

const (
	// maxWireTimeout is the largest InCommRF timeout, in 0.1ms units
	maxWireTimeout = 0xFFFF
	// inCommRFMargin is added to the RF timeout to bound the host-side wait
	inCommRFMargin = 500 * time.Millisecond
	// abortTimeout bounds the ACK written after a failed exchange
	abortTimeout = 100 * time.Millisecond
	// DefaultTraceSize is the number of wire entries kept per exchange
	DefaultTraceSize = 16
)

// Chipset drives the RC-S380 command/response protocol over a Transport.
// Every command is a strict write, read ACK, read response sequence; the
// chipset holds a mutex for the whole sequence, so concurrent callers are
// serialised rather than interleaved.
type Chipset struct {
	transport Transport
	trace     *TraceBuffer
	mu        syncutil.Mutex
}

// NewChipset creates a chipset driver over transport. traceSize bounds the
// wire trace attached to errors; zero selects DefaultTraceSize.
func NewChipset(transport Transport, traceSize int) *Chipset {
	if traceSize <= 0 {
		traceSize = DefaultTraceSize
	}
	return &Chipset{
		transport: transport,
		trace:     NewTraceBuffer(string(transport.Type()), transportPort(transport), traceSize),
	}
}

// Init cancels whatever the reader was doing by writing a bare ACK and then
// switches it to raw command mode.
func (c *Chipset) Init(ctx context.Context) error {
	if err := c.writeAck(ctx); err != nil {
		return fmt.Errorf("failed to reset reader: %w", err)
	}
	if err := c.SetCommandType(ctx, CommandTypeRaw); err != nil {
		return fmt.Errorf("failed to set command type: %w", err)
	}
	return nil
}

// Close turns the RF field off, writes a bare ACK and releases the
// transport. Calling Close again is a no-op. The transport itself is not
// closed; its owner does that.
func (c *Chipset) Close(ctx context.Context) error {
	if c.Closed() {
		return nil
	}

	var errs []error
	if err := c.SwitchRF(ctx, RFOff); err != nil {
		errs = append(errs, fmt.Errorf("failed to switch RF off: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return errors.Join(errs...)
	}
	if err := c.transport.Write(ctx, frame.AckFrame); err != nil {
		errs = append(errs, fmt.Errorf("failed to write closing ACK: %w", err))
	}
	c.transport = nil
	return errors.Join(errs...)
}

// Closed reports whether Close has released the transport
func (c *Chipset) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == nil
}

func (c *Chipset) writeAck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return NewTransportClosedError("ack", "")
	}
	return c.transport.Write(ctx, frame.AckFrame)
}

// SendCommand sends cmd with payload and returns the response payload with
// the two-byte response header stripped.
func (c *Chipset) SendCommand(ctx context.Context, cmd Command, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport == nil {
		return nil, NewTransportClosedError(cmd.String(), "")
	}

	Debugf("%s %s", cmd, formatHexBytes(payload))
	c.trace.Clear()

	resp, written, err := c.exchange(ctx, cmd, payload)
	if err != nil {
		if written {
			c.abort(ctx, cmd)
		}
		return nil, c.trace.WrapError(err)
	}
	return resp, nil
}

func (c *Chipset) exchange(ctx context.Context, cmd Command, payload []byte) (resp []byte, written bool, err error) {
	body := make([]byte, 0, 2+len(payload))
	body = append(body, frame.HostToChipset, byte(cmd))
	body = append(body, payload...)

	req, err := frame.Encode(body)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w: %w", cmd, ErrInvalidParameter, err)
	}

	c.trace.RecordTX(req, cmd.String())
	if err := c.transport.Write(ctx, req); err != nil {
		return nil, false, err
	}

	ack, err := c.readFrame(ctx, "ACK")
	if err != nil {
		return nil, true, err
	}
	if !ack.IsAck() {
		return nil, true, &ProtocolError{Command: cmd, Err: ErrNoACK, Received: ack.String()}
	}

	rsp, err := c.readFrame(ctx, "response")
	if err != nil {
		return nil, true, err
	}
	if !rsp.IsData() || len(rsp.Payload) < 2 ||
		rsp.Payload[0] != frame.ChipsetToHost || rsp.Payload[1] != cmd.Response() {
		return nil, true, &ProtocolError{Command: cmd, Err: ErrResponseMismatch, Received: rsp.String()}
	}

	return rsp.Payload[2:], true, nil
}

func (c *Chipset) readFrame(ctx context.Context, note string) (frame.Frame, error) {
	buf, err := c.transport.Read(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTransportTimeout) {
			c.trace.RecordTimeout(note)
		}
		return frame.Frame{}, err
	}
	c.trace.RecordRX(buf, note)

	f, err := frame.Classify(buf)
	if err != nil {
		return frame.Frame{}, &FramingError{Op: "read " + note, Err: err, Data: buf}
	}
	return f, nil
}

// abort writes a bare ACK so the reader drops a command whose exchange
// failed half way. It runs even when ctx is already done.
func (c *Chipset) abort(ctx context.Context, cmd Command) {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	c.trace.RecordTX(frame.AckFrame, "abort")
	if err := c.transport.Write(abortCtx, frame.AckFrame); err != nil {
		Debugf("abort after failed %s: %v", cmd, err)
	}
}

func checkStatus(cmd Command, resp []byte) error {
	if len(resp) == 0 {
		return &ProtocolError{Command: cmd, Err: ErrInvalidResponse, Received: "empty response"}
	}
	if resp[0] != 0 {
		return fmt.Errorf("%s: %w", cmd, StatusError(resp[0]))
	}
	return nil
}

// InSetRF selects the initiator bit rate and modulation. The send side is
// taken from send and the receive side from recv; a zero recv uses send.
func (c *Chipset) InSetRF(ctx context.Context, send, recv Bitrate) error {
	if recv == 0 {
		recv = send
	}
	payload, err := rfPayload(send, recv)
	if err != nil {
		return err
	}

	resp, err := c.SendCommand(ctx, CmdInSetRF, payload)
	if err != nil {
		return err
	}
	return checkStatus(CmdInSetRF, resp)
}

// InSetProtocol loads protocol settings. A nil settings sends an empty list.
func (c *Chipset) InSetProtocol(ctx context.Context, settings *ProtocolSettings) error {
	if settings == nil {
		settings = NewProtocolSettings(nil)
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	resp, err := c.SendCommand(ctx, CmdInSetProtocol, settings.Bytes())
	if err != nil {
		return err
	}
	return checkStatus(CmdInSetProtocol, resp)
}

// wireTimeout converts d to the 0.1ms units InCommRF expects. Partial
// milliseconds round up; the result saturates at 0xFFFF.
func wireTimeout(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond > 0 {
		ms++
	}
	if units := ms * 10; units < maxWireTimeout {
		return uint16(units)
	}
	return maxWireTimeout
}

// InCommRF sends data over the RF field and returns what the target sent
// back. timeout is passed to the chipset; the host additionally gives up
// once timeout plus a fixed margin has passed. A non-zero error mask in the
// response is returned as a CommunicationError.
func (c *Chipset) InCommRF(ctx context.Context, data []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout+inCommRFMargin)
		defer cancel()
	}

	payload := make([]byte, 0, 2+len(data))
	payload = binary.LittleEndian.AppendUint16(payload, wireTimeout(timeout))
	payload = append(payload, data...)

	resp, err := c.SendCommand(ctx, CmdInCommRF, payload)
	if err != nil {
		return nil, err
	}
	if len(resp) < 4 {
		return nil, &ProtocolError{
			Command:  CmdInCommRF,
			Err:      ErrInvalidResponse,
			Received: fmt.Sprintf("%d status bytes", len(resp)),
		}
	}
	if status := CommunicationErrorFromStatus(resp[:4]); status != CommNoError {
		return nil, fmt.Errorf("%s: %w", CmdInCommRF, status)
	}
	if len(resp) <= 5 {
		return []byte{}, nil
	}
	return resp[5:], nil
}

// SwitchRF turns the RF field on or off
func (c *Chipset) SwitchRF(ctx context.Context, state RFState) error {
	resp, err := c.SendCommand(ctx, CmdSwitchRF, []byte{byte(state)})
	if err != nil {
		return err
	}
	return checkStatus(CmdSwitchRF, resp)
}

// GetFirmwareVersion queries the firmware version. At most one option byte
// may be given.
func (c *Chipset) GetFirmwareVersion(ctx context.Context, option ...byte) (Version, error) {
	if len(option) > 1 {
		return Version{}, fmt.Errorf("%w: %d firmware version options", ErrInvalidParameter, len(option))
	}

	resp, err := c.SendCommand(ctx, CmdGetFirmwareVersion, option)
	if err != nil {
		return Version{}, err
	}
	v, err := parseVersion(CmdGetFirmwareVersion, resp)
	if err != nil {
		return Version{}, err
	}
	Debugf("Firmware version %s", v)
	return v, nil
}

// GetPDDataVersion queries the package data format version
func (c *Chipset) GetPDDataVersion(ctx context.Context) (Version, error) {
	resp, err := c.SendCommand(ctx, CmdGetPDDataVersion, nil)
	if err != nil {
		return Version{}, err
	}
	v, err := parseVersion(CmdGetPDDataVersion, resp)
	if err != nil {
		return Version{}, err
	}
	Debugf("Package data format %s", v)
	return v, nil
}

// SetCommandType selects the command set the reader accepts
func (c *Chipset) SetCommandType(ctx context.Context, kind CommandType) error {
	resp, err := c.SendCommand(ctx, CmdSetCommandType, []byte{byte(kind)})
	if err != nil {
		return err
	}
	return checkStatus(CmdSetCommandType, resp)
}
