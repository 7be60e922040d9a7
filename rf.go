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
	"fmt"
	"strings"
)

// Bitrate selects the initiator bit rate and modulation used by InSetRF.
// The zero value is unset.
type Bitrate int

// Bitrate and modulation combinations
const (
	Bitrate212F Bitrate = iota + 1
	Bitrate424F
	Bitrate106A
	Bitrate212A
	Bitrate424A
	Bitrate106B
	Bitrate212B
	Bitrate424B
)

// rfSettings maps each bitrate to [send_tech, send_rate, recv_tech, recv_rate]
var rfSettings = [...]struct {
	name   string
	params [4]byte
}{
	Bitrate212F: {"212F", [4]byte{1, 1, 15, 1}},
	Bitrate424F: {"424F", [4]byte{1, 2, 15, 2}},
	Bitrate106A: {"106A", [4]byte{2, 3, 15, 3}},
	Bitrate212A: {"212A", [4]byte{4, 4, 15, 4}},
	Bitrate424A: {"424A", [4]byte{5, 5, 15, 5}},
	Bitrate106B: {"106B", [4]byte{3, 7, 15, 7}},
	Bitrate212B: {"212B", [4]byte{3, 8, 15, 8}},
	Bitrate424B: {"424B", [4]byte{3, 9, 15, 9}},
}

// Valid reports whether b is one of the defined combinations
func (b Bitrate) Valid() bool {
	return b >= Bitrate212F && b <= Bitrate424B
}

func (b Bitrate) String() string {
	if !b.Valid() {
		return fmt.Sprintf("Bitrate(%d)", int(b))
	}
	return rfSettings[b].name
}

// Params returns the four chipset parameter bytes for b
func (b Bitrate) Params() ([4]byte, error) {
	if !b.Valid() {
		return [4]byte{}, fmt.Errorf("%w: bitrate %d", ErrInvalidParameter, int(b))
	}
	return rfSettings[b].params, nil
}

// ParseBitrate accepts names such as "106A" or "212f"
func ParseBitrate(name string) (Bitrate, error) {
	upper := strings.ToUpper(name)
	for b := Bitrate212F; b <= Bitrate424B; b++ {
		if rfSettings[b].name == upper {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown bitrate %q", ErrInvalidParameter, name)
}

// rfPayload builds the InSetRF payload from the send side of send and the
// receive side of recv
func rfPayload(send, recv Bitrate) ([]byte, error) {
	sendParams, err := send.Params()
	if err != nil {
		return nil, err
	}
	recvParams, err := recv.Params()
	if err != nil {
		return nil, err
	}
	return []byte{sendParams[0], sendParams[1], recvParams[2], recvParams[3]}, nil
}

// ProtocolOption is an InSetProtocol setting, addressed on the wire by its index
type ProtocolOption byte

// Protocol options, in index order
const (
	OptInitialGuardTime ProtocolOption = iota
	OptAddCRC
	OptCheckCRC
	OptMultiCard
	OptAddParity
	OptCheckParity
	OptBitwiseAnticoll
	OptLastByteBitCount
	OptMifareCrypto
	OptAddSOF
	OptCheckSOF
	OptAddEOF
	OptCheckEOF
	OptRFU
	OptDeafTime
	OptContinuousReceiveMode
	OptMinLenForCRM
	OptType1TagRRDD
	OptRFCA
	OptGuardTime
	numProtocolOptions
)

var protocolOptionNames = [numProtocolOptions]string{
	"initial_guard_time",
	"add_crc",
	"check_crc",
	"multi_card",
	"add_parity",
	"check_parity",
	"bitwise_anticoll",
	"last_byte_bit_count",
	"mifare_crypto",
	"add_sof",
	"check_sof",
	"add_eof",
	"check_eof",
	"rfu",
	"deaf_time",
	"continuous_receive_mode",
	"min_len_for_crm",
	"type_1_tag_rrdd",
	"rfca",
	"guard_time",
}

// Valid reports whether o is a defined option
func (o ProtocolOption) Valid() bool {
	return o < numProtocolOptions
}

func (o ProtocolOption) String() string {
	if !o.Valid() {
		return fmt.Sprintf("ProtocolOption(%d)", byte(o))
	}
	return protocolOptionNames[o]
}

// ParseProtocolOption looks up an option by name, e.g. "add_crc"
func ParseProtocolOption(name string) (ProtocolOption, error) {
	for i, n := range protocolOptionNames {
		if n == name {
			return ProtocolOption(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown protocol option %q", ErrInvalidParameter, name)
}

// DefaultProtocolSettings is the full set of (index, value) pairs loaded
// before RF communication.
var DefaultProtocolSettings = []byte{
	0x00, 0x18, 0x01, 0x01, 0x02, 0x01, 0x03, 0x00, 0x04, 0x00, 0x05, 0x00,
	0x06, 0x00, 0x07, 0x08, 0x08, 0x00, 0x09, 0x00, 0x0a, 0x00, 0x0b, 0x00,
	0x0c, 0x00, 0x0e, 0x04, 0x0f, 0x00, 0x10, 0x00, 0x11, 0x00, 0x12, 0x00,
	0x13, 0x06,
}

// ProtocolSettings builds an InSetProtocol payload: an optional raw prefix
// followed by (index, value) overrides in the order they were set.
type ProtocolSettings struct {
	raw       []byte
	overrides []byte
}

// NewProtocolSettings starts from raw (index, value) pairs, which may be nil
func NewProtocolSettings(raw []byte) *ProtocolSettings {
	return &ProtocolSettings{raw: append([]byte(nil), raw...)}
}

// Set appends an override
func (p *ProtocolSettings) Set(opt ProtocolOption, value byte) *ProtocolSettings {
	p.overrides = append(p.overrides, byte(opt), value)
	return p
}

// SetNamed appends an override given by option name
func (p *ProtocolSettings) SetNamed(name string, value byte) error {
	opt, err := ParseProtocolOption(name)
	if err != nil {
		return err
	}
	p.Set(opt, value)
	return nil
}

// Bytes returns the wire payload
func (p *ProtocolSettings) Bytes() []byte {
	out := make([]byte, 0, len(p.raw)+len(p.overrides))
	out = append(out, p.raw...)
	return append(out, p.overrides...)
}

// Validate checks that the payload is made of (index, value) pairs with
// known indices
func (p *ProtocolSettings) Validate() error {
	payload := p.Bytes()
	if len(payload)%2 != 0 {
		return fmt.Errorf("%w: protocol settings have odd length %d", ErrInvalidParameter, len(payload))
	}
	for i := 0; i < len(payload); i += 2 {
		if !ProtocolOption(payload[i]).Valid() {
			return fmt.Errorf("%w: protocol option index %d", ErrInvalidParameter, payload[i])
		}
	}
	return nil
}
