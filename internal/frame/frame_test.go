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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{
			name:    "empty payload",
			payload: nil,
			want:    []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:    "GetFirmwareVersion request",
			payload: []byte{0xD6, 0x20},
			want:    []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD6, 0x20, 0x0A, 0x00},
		},
		{
			name:    "SetCommandType request",
			payload: []byte{0xD6, 0x2A, 0x01},
			want:    []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x03, 0x00, 0xFD, 0xD6, 0x2A, 0x01, 0xFF, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Encode(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_ChecksumInvariants(t *testing.T) {
	t.Parallel()
	payloads := [][]byte{
		{},
		{0x00},
		{0xFF, 0xFF, 0xFF},
		bytes.Repeat([]byte{0xAB}, 255),
		bytes.Repeat([]byte{0x01}, 300),
	}

	for _, payload := range payloads {
		encoded, err := Encode(payload)
		require.NoError(t, err)

		lo, hi, lcs := encoded[5], encoded[6], encoded[7]
		assert.Equal(t, byte(0), lo+hi+lcs, "length checksum for %d bytes", len(payload))

		dcs := encoded[len(encoded)-2]
		assert.Equal(t, byte(0), CalculateChecksum(payload)+dcs, "data checksum for %d bytes", len(payload))
		assert.Equal(t, byte(Postamble), encoded[len(encoded)-1])
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	t.Parallel()
	_, err := Encode(make([]byte, MaxPayloadLength+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		buf     []byte
		wantErr error
		want    Frame
	}{
		{
			name: "ack",
			buf:  []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00},
			want: Frame{Kind: KindAck},
		},
		{
			name: "error",
			buf:  []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF},
			want: Frame{Kind: KindError},
		},
		{
			name: "data",
			buf:  []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD7, 0x21, 0x08, 0x00},
			want: Frame{Kind: KindData, Payload: []byte{0xD7, 0x21}},
		},
		{
			name: "data with trailing bytes",
			buf:  []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD7, 0x21, 0x08, 0x00, 0x00, 0x00},
			want: Frame{Kind: KindData, Payload: []byte{0xD7, 0x21}},
		},
		{
			name: "empty data frame",
			buf:  []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: Frame{Kind: KindData, Payload: []byte{}},
		},
		{
			name:    "empty buffer",
			buf:     nil,
			wantErr: ErrFrameCorrupted,
		},
		{
			name:    "missing preamble",
			buf:     []byte{0x01, 0x00, 0xFF, 0x00, 0xFF, 0x00},
			wantErr: ErrFrameCorrupted,
		},
		{
			name:    "ack with padding",
			buf:     []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00},
			wantErr: ErrUnknownFrame,
		},
		{
			name:    "normal frame marker",
			buf:     []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD7, 0x21, 0x08, 0x00},
			wantErr: ErrUnknownFrame,
		},
		{
			name:    "bad length checksum",
			buf:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFF, 0xD7, 0x21, 0x08, 0x00},
			wantErr: ErrChecksumMismatch,
		},
		{
			name:    "bad data checksum",
			buf:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD7, 0x21, 0x09, 0x00},
			wantErr: ErrChecksumMismatch,
		},
		{
			name:    "truncated header",
			buf:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02},
			wantErr: ErrFrameCorrupted,
		},
		{
			name:    "truncated payload",
			buf:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x04, 0x00, 0xFC, 0xD7, 0x21},
			wantErr: ErrFrameCorrupted,
		},
		{
			name:    "bad postamble",
			buf:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD7, 0x21, 0x08, 0x55},
			wantErr: ErrFrameCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Classify(tt.buf)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_RoundTrip(t *testing.T) {
	t.Parallel()
	payloads := [][]byte{
		{0xD6, 0x20},
		{0xD6, 0x04, 0x2C, 0x01, 0x26},
		bytes.Repeat([]byte{0x5A}, 280),
	}

	for _, payload := range payloads {
		encoded, err := Encode(payload)
		require.NoError(t, err)

		got, err := Classify(encoded)
		require.NoError(t, err)
		assert.True(t, got.IsData())
		assert.Equal(t, payload, got.Payload)
	}
}

func TestClassify_PayloadIsCopied(t *testing.T) {
	t.Parallel()
	buf := []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x02, 0x00, 0xFE, 0xD7, 0x21, 0x08, 0x00}
	got, err := Classify(buf)
	require.NoError(t, err)

	buf[8] = 0x00
	assert.Equal(t, []byte{0xD7, 0x21}, got.Payload)
}

func TestFrameString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ack", Frame{Kind: KindAck}.String())
	assert.Equal(t, "error", Frame{Kind: KindError}.String())
	assert.Equal(t, "data(D7 21)", Frame{Kind: KindData, Payload: []byte{0xD7, 0x21}}.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
