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

// Package frame implements the RC-S380 wire framing: building extended data
// frames around command payloads and classifying received buffers into ACK,
// error and data frames.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing errors
var (
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownFrame     = errors.New("unrecognized frame")
	ErrPayloadTooLarge  = errors.New("payload exceeds frame length field")
)

// Kind identifies which of the three frame shapes a buffer holds
type Kind int

const (
	// KindAck is the fixed 6-byte acknowledgement frame
	KindAck Kind = iota + 1
	// KindError is the fixed 5-byte error frame
	KindError
	// KindData is an extended frame carrying a payload
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Frame is a classified wire frame. Payload is only set for KindData.
type Frame struct {
	Payload []byte
	Kind    Kind
}

// IsAck reports whether f is an ACK frame
func (f Frame) IsAck() bool { return f.Kind == KindAck }

// IsData reports whether f is a data frame
func (f Frame) IsData() bool { return f.Kind == KindData }

func (f Frame) String() string {
	if f.Kind == KindData {
		return fmt.Sprintf("data(% X)", f.Payload)
	}
	return f.Kind.String()
}

// Encode wraps payload in an extended data frame:
//
//	00 00 FF | FF FF | LEN_LO LEN_HI | LCS | payload... | DCS | 00
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	buf := make([]byte, 0, MinDataFrameLength+len(payload))
	buf = append(buf, startSequence...)
	buf = append(buf, extendedMarker...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, Complement(buf[5:7]))
	buf = append(buf, payload...)
	buf = append(buf, Complement(payload), Postamble)
	return buf, nil
}

// Classify identifies the frame held in buf. Both the length checksum and
// the data checksum of data frames are verified; a buffer that does not
// start with the preamble, is truncated, or fails a checksum is rejected.
// Bytes following the postamble are ignored.
func Classify(buf []byte) (Frame, error) {
	if len(buf) < len(startSequence) || !bytes.Equal(buf[:len(startSequence)], startSequence) {
		return Frame{}, fmt.Errorf("%w: missing preamble in % X", ErrFrameCorrupted, buf)
	}

	switch {
	case bytes.Equal(buf, AckFrame):
		return Frame{Kind: KindAck}, nil
	case bytes.Equal(buf, ErrorFrame):
		return Frame{Kind: KindError}, nil
	case len(buf) >= 5 && bytes.Equal(buf[3:5], extendedMarker):
		return decodeData(buf)
	default:
		return Frame{}, fmt.Errorf("%w: % X", ErrUnknownFrame, buf)
	}
}

func decodeData(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: header truncated at %d bytes", ErrFrameCorrupted, len(buf))
	}

	// LEN_LO + LEN_HI + LCS must be zero
	if !ValidateChecksum(buf, 5, HeaderSize) {
		return Frame{}, fmt.Errorf("%w: length checksum 0x%02X", ErrChecksumMismatch, buf[7])
	}

	length := int(binary.LittleEndian.Uint16(buf[5:7]))
	end := HeaderSize + length
	if len(buf) < end+TrailerSize {
		return Frame{}, fmt.Errorf("%w: expected %d payload bytes, got %d",
			ErrFrameCorrupted, length, max(len(buf)-HeaderSize-TrailerSize, 0))
	}

	// payload + DCS must be zero
	if !ValidateChecksum(buf, HeaderSize, end+1) {
		return Frame{}, fmt.Errorf("%w: data checksum 0x%02X", ErrChecksumMismatch, buf[end])
	}
	if buf[end+1] != Postamble {
		return Frame{}, fmt.Errorf("%w: postamble 0x%02X", ErrFrameCorrupted, buf[end+1])
	}

	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:end])
	return Frame{Kind: KindData, Payload: payload}, nil
}
