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

package capture

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/internal/frame"
	testutil "github.com/ZaparooProject/go-rcs380/internal/testing"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urb struct {
	data     []byte
	event    byte
	xfer     byte
	endpoint byte
	address  byte
	bus      uint16
}

const (
	xferControl = 2
	xferBulk    = 3
	epOut       = 0x02
	epIn        = 0x81
)

// usbmonPacket builds a 48-byte usbmon header followed by the data
func usbmonPacket(u urb) []byte {
	hdr := make([]byte, 48)
	binary.LittleEndian.PutUint64(hdr[0:8], 0xFFFF88800000)
	hdr[8] = u.event
	hdr[9] = u.xfer
	hdr[10] = u.endpoint
	hdr[11] = u.address
	binary.LittleEndian.PutUint16(hdr[12:14], u.bus)
	hdr[14] = '-'
	if len(u.data) == 0 {
		hdr[15] = '<'
	}
	binary.LittleEndian.PutUint32(hdr[32:36], uint32(len(u.data)))
	binary.LittleEndian.PutUint32(hdr[36:40], uint32(len(u.data)))
	return append(hdr, u.data...)
}

func writeCapture(t *testing.T, linkType layers.LinkType, packets ...[]byte) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, linkType))

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(p),
			Length:        len(p),
		}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return &buf
}

func submitOut(address byte, data []byte) []byte {
	return usbmonPacket(urb{event: 'S', xfer: xferBulk, endpoint: epOut, address: address, bus: 1, data: data})
}

func completeIn(address byte, data []byte) []byte {
	return usbmonPacket(urb{event: 'C', xfer: xferBulk, endpoint: epIn, address: address, bus: 1, data: data})
}

func TestDecode_FirmwareExchange(t *testing.T) {
	t.Parallel()

	buf := writeCapture(t, linkTypeUSBLinux,
		submitOut(4, testutil.BuildRequest(testutil.CmdGetFirmwareVersion)),
		usbmonPacket(urb{event: 'C', xfer: xferBulk, endpoint: epOut, address: 4, bus: 1}),
		usbmonPacket(urb{event: 'S', xfer: xferBulk, endpoint: epIn, address: 4, bus: 1}),
		completeIn(4, testutil.BuildAck()),
		completeIn(4, testutil.BuildFirmwareVersionResponse(1, 0x11)),
		usbmonPacket(urb{event: 'S', xfer: xferControl, endpoint: 0x00, address: 4, bus: 1, data: []byte{1, 2}}),
	)

	events, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, events, 3)

	req := events[0]
	assert.Equal(t, rcs380.TraceTX, req.Direction)
	assert.Equal(t, "usb:001:004", req.Port)
	assert.Equal(t, "data", req.Kind)
	assert.Equal(t, rcs380.CmdGetFirmwareVersion, req.Command)
	assert.True(t, req.Known)
	assert.False(t, req.Response)
	assert.Empty(t, req.Payload)
	assert.Equal(t, testutil.BuildRequest(testutil.CmdGetFirmwareVersion), req.Raw)

	ack := events[1]
	assert.Equal(t, rcs380.TraceRX, ack.Direction)
	assert.Equal(t, "ack", ack.Kind)
	assert.Equal(t, "ack", ack.Describe())

	resp := events[2]
	assert.True(t, resp.Response)
	assert.Equal(t, rcs380.CmdGetFirmwareVersion, resp.Command)
	assert.Equal(t, []byte{0x11, 0x01}, resp.Payload)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 4_000_000, time.UTC), resp.Time.UTC())
	assert.Contains(t, resp.Describe(), "response 11 01")
}

func TestDecode_InvalidFrames(t *testing.T) {
	t.Parallel()

	badSum := testutil.BuildStatusResponse(testutil.CmdSwitchRF, 0)
	badSum[len(badSum)-2] ^= 0xFF

	buf := writeCapture(t, linkTypeUSBLinux,
		completeIn(4, []byte{0x01, 0x02, 0x03}),
		completeIn(4, badSum),
		completeIn(4, testutil.BuildErrorFrame()),
	)

	events, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.ErrorIs(t, events[0].Err, frame.ErrFrameCorrupted)
	assert.Contains(t, events[0].Describe(), "invalid")
	require.ErrorIs(t, events[1].Err, frame.ErrChecksumMismatch)
	require.NoError(t, events[2].Err)
	assert.Equal(t, "error", events[2].Kind)
}

func TestDecode_WithDevice(t *testing.T) {
	t.Parallel()

	buf := writeCapture(t, layers.LinkTypeLinuxUSB,
		submitOut(4, testutil.BuildRequest(testutil.CmdSwitchRF, 0x00)),
		submitOut(7, testutil.BuildRequest(testutil.CmdGetPDDataVersion)),
	)

	events, err := Decode(buf, WithDevice(1, 7))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, rcs380.CmdGetPDDataVersion, events[0].Command)
}

func TestDecode_UnsupportedLinkType(t *testing.T) {
	t.Parallel()

	buf := writeCapture(t, layers.LinkTypeEthernet)
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrUnsupportedLinkType)
}

func TestDecode_NotAPcap(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("not a capture file at all")))
	require.Error(t, err)
}

func TestEvent_TraceEntry(t *testing.T) {
	t.Parallel()

	e := Event{
		Time:      time.Now(),
		Raw:       testutil.BuildAck(),
		Direction: rcs380.TraceRX,
		Kind:      "ack",
		Port:      "usb:001:004",
	}
	entry := e.TraceEntry()
	assert.Equal(t, rcs380.TraceRX, entry.Direction)
	assert.Equal(t, "ack", entry.Note)
	assert.Equal(t, e.Raw, entry.Data)
	assert.Contains(t, e.String(), "usb:001:004 RX ack")
}

func TestEvent_Describe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  string
		event Event
	}{
		{name: "command", event: Event{Kind: "data", Command: rcs380.CmdSwitchRF, Known: true, Payload: []byte{0x00}}, want: "SwitchRF 00"},
		{name: "response", event: Event{Kind: "data", Command: rcs380.CmdSwitchRF, Known: true, Response: true, Payload: []byte{0x00}}, want: "SwitchRF response 00"},
		{name: "foreign_payload", event: Event{Kind: "data", Payload: []byte{0xAA, 0xBB}}, want: "data AA BB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.event.Describe())
		})
	}
}
