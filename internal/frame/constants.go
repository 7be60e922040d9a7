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

package frame

// Command envelope bytes. Requests carry HostToChipset followed by the
// opcode, responses carry ChipsetToHost followed by opcode+1.
const (
	HostToChipset = 0xD6 // Commands from host to RC-S380
	ChipsetToHost = 0xD7 // Responses from RC-S380 to host
)

// Frame markers and control bytes
const (
	Preamble    = 0x00 // Frame preamble byte
	StartCode1  = 0x00 // Start code byte 1
	StartCode2  = 0xFF // Start code byte 2
	Extended1   = 0xFF // Extended frame marker byte 1
	Extended2   = 0xFF // Extended frame marker byte 2
	Postamble   = 0x00 // Frame postamble byte
	HeaderSize  = 8    // preamble(3) + marker(2) + length(2) + LCS
	TrailerSize = 2    // DCS + postamble
)

// Frame size limits
const (
	// MaxPayloadLength is the largest payload that fits the 2-byte length field.
	MaxPayloadLength = 0xFFFF
	// MinDataFrameLength is the size of a data frame with an empty payload.
	MinDataFrameLength = HeaderSize + TrailerSize
)

// ACK and error frames have fixed encodings
var (
	AckFrame   = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	ErrorFrame = []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF}

	startSequence  = []byte{Preamble, StartCode1, StartCode2}
	extendedMarker = []byte{Extended1, Extended2}
)
