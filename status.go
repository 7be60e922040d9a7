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
	"encoding/binary"
	"fmt"
)

// StatusError is the one-byte status returned by parameter-style commands
// (InSetRF, InSetProtocol, SwitchRF, SetCommandType). Zero is success.
type StatusError byte

// Status codes, in firmware order
const (
	StatusSuccess StatusError = iota
	StatusParameterError
	StatusPBError
	StatusRFCAError
	StatusTemperatureError
	StatusPWDError
	StatusReceiveError
	StatusCommandTypeError
)

var statusNames = [...]string{
	StatusSuccess:          "SUCCESS",
	StatusParameterError:   "PARAMETER_ERROR",
	StatusPBError:          "PB_ERROR",
	StatusRFCAError:        "RFCA_ERROR",
	StatusTemperatureError: "TEMPERATURE_ERROR",
	StatusPWDError:         "PWD_ERROR",
	StatusReceiveError:     "RECEIVE_ERROR",
	StatusCommandTypeError: "COMMANDTYPE_ERROR",
}

// StatusErrorFromCode wraps a raw status byte
func StatusErrorFromCode(code byte) StatusError {
	return StatusError(code)
}

// String renders the status name, or an unknown-code fallback
func (e StatusError) String() string {
	if int(e) < len(statusNames) {
		return statusNames[e]
	}
	return fmt.Sprintf("UNKNOWN STATUS ERROR 0x%02x", byte(e))
}

func (e StatusError) Error() string {
	return "status error: " + e.String()
}

// CommunicationError is the 32-bit error bitmask returned by InCommRF.
// Several flags may be set at once.
type CommunicationError uint32

// Communication error flags
const (
	CommNoError              CommunicationError = 0x00000000
	CommProtocolError        CommunicationError = 0x00000001
	CommParityError          CommunicationError = 0x00000002
	CommCRCError             CommunicationError = 0x00000004
	CommCollisionError       CommunicationError = 0x00000008
	CommOverflowError        CommunicationError = 0x00000010
	CommTemperatureError     CommunicationError = 0x00000040
	CommReceiveTimeoutError  CommunicationError = 0x00000080
	CommCrypto1Error         CommunicationError = 0x00000100
	CommRFCAError            CommunicationError = 0x00000200
	CommRFOffError           CommunicationError = 0x00000400
	CommTransmitTimeoutError CommunicationError = 0x00000800
	CommReceiveLengthError   CommunicationError = 0x80000000
)

// communicationNames is ordered by flag value
var communicationNames = []struct {
	name string
	flag CommunicationError
}{
	{"NO_ERROR", CommNoError},
	{"PROTOCOL_ERROR", CommProtocolError},
	{"PARITY_ERROR", CommParityError},
	{"CRC_ERROR", CommCRCError},
	{"COLLISION_ERROR", CommCollisionError},
	{"OVERFLOW_ERROR", CommOverflowError},
	{"TEMPERATURE_ERROR", CommTemperatureError},
	{"RECEIVE_TIMEOUT_ERROR", CommReceiveTimeoutError},
	{"CRYPTO1_ERROR", CommCrypto1Error},
	{"RFCA_ERROR", CommRFCAError},
	{"RF_OFF_ERROR", CommRFOffError},
	{"TRANSMIT_TIMEOUT_ERROR", CommTransmitTimeoutError},
	{"RECEIVE_LENGTH_ERROR", CommReceiveLengthError},
}

// CommunicationErrorFromStatus decodes the 4 little-endian status bytes that
// lead an InCommRF response. Shorter input is zero-extended.
func CommunicationErrorFromStatus(status []byte) CommunicationError {
	var buf [4]byte
	copy(buf[:], status)
	return CommunicationError(binary.LittleEndian.Uint32(buf[:]))
}

// ParseCommunicationError looks up a flag by its name, e.g. "CRC_ERROR"
func ParseCommunicationError(name string) (CommunicationError, bool) {
	for _, entry := range communicationNames {
		if entry.name == name {
			return entry.flag, true
		}
	}
	return 0, false
}

// Matches reports whether the condition is present. A flag matches when its
// bit is set; CommNoError only matches a zero value.
func (e CommunicationError) Matches(cond CommunicationError) bool {
	return e&cond != 0 || e == cond
}

// MatchesName is Matches for a flag given by name. Unknown names never match.
func (e CommunicationError) MatchesName(name string) bool {
	flag, ok := ParseCommunicationError(name)
	return ok && e.Matches(flag)
}

// Flags splits the mask into its named flags
func (e CommunicationError) Flags() []CommunicationError {
	var flags []CommunicationError
	for _, entry := range communicationNames[1:] {
		if e&entry.flag != 0 {
			flags = append(flags, entry.flag)
		}
	}
	return flags
}

// String renders the flag name for a single known value, otherwise the hex mask
func (e CommunicationError) String() string {
	for _, entry := range communicationNames {
		if entry.flag == e {
			return entry.name
		}
	}
	return fmt.Sprintf("0x%08x", uint32(e))
}

func (e CommunicationError) Error() string {
	return "communication error: " + e.String()
}
