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

// Package testing provides wire-level test doubles for the RC-S380: frame
// builders for scripted reads and a virtual reader that answers commands.
package testing

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-rcs380/internal/frame"
)

// Command opcodes understood by the virtual reader. These mirror the
// rcs380 package constants to avoid an import cycle.
const (
	CmdInSetRF            byte = 0x00
	CmdInSetProtocol      byte = 0x02
	CmdInCommRF           byte = 0x04
	CmdSwitchRF           byte = 0x06
	CmdGetFirmwareVersion byte = 0x20
	CmdGetPDDataVersion   byte = 0x22
	CmdSetCommandType     byte = 0x2A
)

// CommReceiveTimeout is the InCommRF error mask for "no answer"
const CommReceiveTimeout uint32 = 0x00000080

// BuildAck returns a copy of the ACK frame
func BuildAck() []byte {
	return append([]byte(nil), frame.AckFrame...)
}

// BuildErrorFrame returns a copy of the error frame
func BuildErrorFrame() []byte {
	return append([]byte(nil), frame.ErrorFrame...)
}

// BuildResponse encodes a response frame for cmd: D7, cmd+1, payload...
func BuildResponse(cmd byte, payload ...byte) []byte {
	body := make([]byte, 0, 2+len(payload))
	body = append(body, frame.ChipsetToHost, cmd+1)
	body = append(body, payload...)
	encoded, err := frame.Encode(body)
	if err != nil {
		panic(err)
	}
	return encoded
}

// BuildStatusResponse encodes a one-byte status response
func BuildStatusResponse(cmd, status byte) []byte {
	return BuildResponse(cmd, status)
}

// BuildCommRFResponse encodes an InCommRF response with the given error
// mask, a zero RF status byte and the received data
func BuildCommRFResponse(errMask uint32, data ...byte) []byte {
	payload := make([]byte, 0, 5+len(data))
	payload = binary.LittleEndian.AppendUint32(payload, errMask)
	payload = append(payload, 0x00)
	payload = append(payload, data...)
	return BuildResponse(CmdInCommRF, payload...)
}

// BuildFirmwareVersionResponse encodes a GetFirmwareVersion response for
// major.minor; the reader sends the minor byte first
func BuildFirmwareVersionResponse(major, minor byte) []byte {
	return BuildResponse(CmdGetFirmwareVersion, minor, major)
}

// BuildRequest encodes a host request frame: D6, cmd, payload...
func BuildRequest(cmd byte, payload ...byte) []byte {
	body := make([]byte, 0, 2+len(payload))
	body = append(body, frame.HostToChipset, cmd)
	body = append(body, payload...)
	encoded, err := frame.Encode(body)
	if err != nil {
		panic(err)
	}
	return encoded
}
