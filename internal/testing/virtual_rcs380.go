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

package testing

import (
	"bytes"
	"context"
	"errors"

	"github.com/ZaparooProject/go-rcs380/internal/frame"
	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

// Errors returned by the virtual reader
var (
	ErrNoPendingData = errors.New("virtual reader: no pending data")
	ErrClosed        = errors.New("virtual reader: closed")
)

// Status bytes the virtual reader answers with
const (
	statusSuccess        byte = 0x00
	statusParameterError byte = 0x01
)

// TargetFunc answers a frame sent over the air. Returning nil means no
// target replied.
type TargetFunc func(data []byte) []byte

// TypeATarget returns a target that answers SENS_REQ/ALL_REQ with atqa
func TypeATarget(atqa [2]byte) TargetFunc {
	return func(data []byte) []byte {
		if len(data) == 1 && (data[0] == 0x26 || data[0] == 0x52) {
			return []byte{atqa[0], atqa[1]}
		}
		return nil
	}
}

// EchoTarget returns a target that answers every frame with reply
func EchoTarget(reply ...byte) TargetFunc {
	return func([]byte) []byte {
		return append([]byte(nil), reply...)
	}
}

// CommandLogEntry records one command received by the virtual reader
type CommandLogEntry struct {
	Args []byte
	Cmd  byte
}

// RFState captures the settings applied through InSetRF, InSetProtocol and
// SwitchRF
type RFState struct {
	RF          []byte
	Protocol    map[byte]byte
	CommandType byte
	FieldOn     bool
}

type faults struct {
	status    *byte
	commMask  uint32
	noAck     bool
	badOpcode bool
	badSum    bool
	silent    bool
}

// VirtualRCS380 simulates an RC-S380 at the frame level. Each command
// frame written to it queues an ACK followed by the response frame; a bare
// ACK from the host discards anything still queued.
type VirtualRCS380 struct {
	target   TargetFunc
	state    RFState
	pending  [][]byte
	log      []CommandLogEntry
	acks     int
	fault    faults
	mu       syncutil.Mutex
	firmware [2]byte
	pdData   [2]byte
	closed   bool
}

// NewVirtualRCS380 creates a virtual reader reporting firmware 1.11 with
// no target in the field
func NewVirtualRCS380() *VirtualRCS380 {
	return &VirtualRCS380{
		firmware: [2]byte{0x11, 0x01},
		pdData:   [2]byte{0x00, 0x01},
		state:    RFState{Protocol: make(map[byte]byte)},
	}
}

// Write accepts one frame from the host
func (v *VirtualRCS380) Write(_ context.Context, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	if len(data) == 0 {
		return nil
	}
	if bytes.Equal(data, frame.AckFrame) {
		v.acks++
		v.pending = nil
		return nil
	}

	f, err := frame.Classify(data)
	if err != nil || !f.IsData() || len(f.Payload) < 2 || f.Payload[0] != frame.HostToChipset {
		v.pending = append(v.pending, BuildErrorFrame())
		return nil
	}

	cmd, args := f.Payload[1], append([]byte(nil), f.Payload[2:]...)
	v.log = append(v.log, CommandLogEntry{Cmd: cmd, Args: args})
	v.respond(cmd, args)
	return nil
}

// Read returns the next queued frame
func (v *VirtualRCS380) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrClosed
	}
	if len(v.pending) == 0 {
		return nil, ErrNoPendingData
	}
	next := v.pending[0]
	v.pending = v.pending[1:]
	return next, nil
}

// Close marks the reader as closed
func (v *VirtualRCS380) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.pending = nil
	return nil
}

// IsConnected reports whether Close has not been called
func (v *VirtualRCS380) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

// SetTarget places a target in the field; nil removes it
func (v *VirtualRCS380) SetTarget(target TargetFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.target = target
}

// SetFirmwareVersion sets the version reported by GetFirmwareVersion
func (v *VirtualRCS380) SetFirmwareVersion(major, minor byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [2]byte{minor, major}
}

// InjectNoAck makes the next command answer with an error frame
func (v *VirtualRCS380) InjectNoAck() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.noAck = true
}

// InjectWrongOpcode makes the next response carry an unexpected opcode
func (v *VirtualRCS380) InjectWrongOpcode() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.badOpcode = true
}

// InjectChecksumError corrupts the data checksum of the next response
func (v *VirtualRCS380) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.badSum = true
}

// InjectStatus overrides the status byte of the next single-status response
func (v *VirtualRCS380) InjectStatus(status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.status = &status
}

// InjectCommError makes the next InCommRF report mask
func (v *VirtualRCS380) InjectCommError(mask uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.commMask = mask
}

// InjectSilence makes the next command produce an ACK and no response
func (v *VirtualRCS380) InjectSilence() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fault.silent = true
}

// CommandLog returns the commands received so far
func (v *VirtualRCS380) CommandLog() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.log...)
}

// HasCommand reports whether cmd was received
func (v *VirtualRCS380) HasCommand(cmd byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range v.log {
		if e.Cmd == cmd {
			return true
		}
	}
	return false
}

// AckCount returns how many bare ACK frames the host wrote
func (v *VirtualRCS380) AckCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.acks
}

// PendingFrames returns the number of frames waiting to be read
func (v *VirtualRCS380) PendingFrames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// State returns a copy of the RF state
func (v *VirtualRCS380) State() RFState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.state
	st.RF = append([]byte(nil), v.state.RF...)
	st.Protocol = make(map[byte]byte, len(v.state.Protocol))
	for k, val := range v.state.Protocol {
		st.Protocol[k] = val
	}
	return st
}

func (v *VirtualRCS380) respond(cmd byte, args []byte) {
	f := v.fault
	v.fault = faults{}
	if cmd != CmdInCommRF {
		v.fault.commMask, f.commMask = f.commMask, 0
	}

	if f.noAck {
		v.pending = append(v.pending, BuildErrorFrame())
		return
	}
	v.pending = append(v.pending, BuildAck())
	if f.silent {
		return
	}

	payload := v.handle(cmd, args, f)
	if f.status != nil && len(payload) == 1 {
		payload = []byte{*f.status}
	}

	respCmd := cmd
	if f.badOpcode {
		respCmd = cmd + 2
	}
	resp := BuildResponse(respCmd, payload...)
	if f.badSum {
		resp[len(resp)-2] ^= 0xFF
	}
	v.pending = append(v.pending, resp)
}

func (v *VirtualRCS380) handle(cmd byte, args []byte, f faults) []byte {
	switch cmd {
	case CmdInSetRF:
		if len(args) != 4 {
			return []byte{statusParameterError}
		}
		v.state.RF = args
		return []byte{statusSuccess}
	case CmdInSetProtocol:
		if len(args)%2 != 0 {
			return []byte{statusParameterError}
		}
		for i := 0; i < len(args); i += 2 {
			v.state.Protocol[args[i]] = args[i+1]
		}
		return []byte{statusSuccess}
	case CmdInCommRF:
		return v.commRF(args, f.commMask)
	case CmdSwitchRF:
		if len(args) != 1 {
			return []byte{statusParameterError}
		}
		v.state.FieldOn = args[0] != 0
		return []byte{statusSuccess}
	case CmdGetFirmwareVersion:
		return v.firmware[:]
	case CmdGetPDDataVersion:
		return v.pdData[:]
	case CmdSetCommandType:
		if len(args) != 1 {
			return []byte{statusParameterError}
		}
		v.state.CommandType = args[0]
		return []byte{statusSuccess}
	default:
		return []byte{statusSuccess}
	}
}

func (v *VirtualRCS380) commRF(args []byte, mask uint32) []byte {
	status := func(m uint32, data ...byte) []byte {
		out := []byte{byte(m), byte(m >> 8), byte(m >> 16), byte(m >> 24), 0x00}
		return append(out, data...)
	}
	if mask != 0 {
		return status(mask)
	}
	if len(args) < 2 {
		return []byte{statusParameterError}
	}
	data := args[2:]
	if v.target == nil {
		return status(CommReceiveTimeout)
	}
	reply := v.target(data)
	if reply == nil {
		return status(CommReceiveTimeout)
	}
	return status(0, reply...)
}
