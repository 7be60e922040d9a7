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

// Package capture decodes recorded RC-S380 USB traffic.
//
// Recordings are pcap files of the Linux usbmon interface, as written by
// tcpdump or Wireshark (link types LINUX_USB and LINUX_USB_MMAPPED). Bulk
// transfers are classified into ACK, error and data frames and data frames
// are matched against the chipset command table.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/internal/frame"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// linkTypeUSBLinux is the usbmon link type with the 48-byte header
const linkTypeUSBLinux layers.LinkType = 189

const (
	usbmonEndpointOffset = 10
	usbmonDirectionIn    = 0x80
)

// ErrUnsupportedLinkType is returned for captures that are not usbmon
// recordings
var ErrUnsupportedLinkType = errors.New("capture is not a usbmon recording")

// Event is one classified bulk transfer
type Event struct {
	Time time.Time
	// Err is set when the transfer is not a well-formed frame
	Err error
	// Raw holds the transferred bytes
	Raw []byte
	// Payload is the data frame payload, without the D6/D7 marker
	Payload   []byte
	Direction rcs380.TraceDirection
	Port      string
	// Kind is "ack", "error" or "data"; empty when Err is set
	Kind    string
	Command rcs380.Command
	// Response is set for data frames sent by the chipset
	Response bool
	// Known reports whether Command is in the opcode table
	Known bool
}

// String renders the event on one line
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s %s", e.Time.Format("15:04:05.000000"), e.Port, e.Direction, e.Describe())
}

// Describe summarises what the transfer carried
func (e Event) Describe() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("invalid: %v", e.Err)
	case e.Kind != frame.KindData.String():
		return e.Kind
	case e.Response:
		return fmt.Sprintf("%s response % X", e.Command, e.Payload)
	case e.Known || e.Command != 0:
		return fmt.Sprintf("%s % X", e.Command, e.Payload)
	default:
		return fmt.Sprintf("data % X", e.Payload)
	}
}

// TraceEntry converts the event into the wire trace format used in errors
func (e Event) TraceEntry() rcs380.TraceEntry {
	return rcs380.TraceEntry{Timestamp: e.Time, Direction: e.Direction, Data: e.Raw, Note: e.Describe()}
}

type options struct {
	bus     int
	address int
}

// Option filters decoded events
type Option func(*options)

// WithDevice keeps only transfers of the device at bus and address
func WithDevice(bus, address int) Option {
	return func(o *options) {
		o.bus, o.address = bus, address
	}
}

// Decode reads a usbmon pcap from r and returns its bulk transfers in
// capture order. Submissions of OUT transfers and completions of IN
// transfers carry the data; all other events are skipped.
func Decode(r io.Reader, opts ...Option) ([]Event, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	linkType := reader.LinkType()
	if linkType != linkTypeUSBLinux && linkType != layers.LinkTypeLinuxUSB {
		return nil, fmt.Errorf("%w: link type %s", ErrUnsupportedLinkType, linkType)
	}

	var events []Event
	for {
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("failed to read packet %d: %w", len(events)+1, err)
		}

		event, ok := decodePacket(data, ci)
		if !ok || !o.matches(event) {
			continue
		}
		events = append(events, event)
	}
}

func (o options) matches(e Event) bool {
	if o.bus == 0 && o.address == 0 {
		return true
	}
	return e.Port == fmt.Sprintf("usb:%03d:%03d", o.bus, o.address)
}

func decodePacket(data []byte, ci gopacket.CaptureInfo) (Event, bool) {
	packet := gopacket.NewPacket(data, layers.LayerTypeUSB, gopacket.NoCopy)
	usb, ok := packet.Layer(layers.LayerTypeUSB).(*layers.USB)
	if !ok || len(usb.Contents) <= usbmonEndpointOffset || usb.TransferType != layers.USBTransportTypeBulk {
		return Event{}, false
	}

	in := usb.Contents[usbmonEndpointOffset]&usbmonDirectionIn != 0
	captured := int(usb.UrbDataLength)
	switch {
	case captured == 0 || captured > len(data):
		return Event{}, false
	case in && usb.EventType != layers.USBEventTypeComplete:
		return Event{}, false
	case !in && usb.EventType != layers.USBEventTypeSubmit:
		return Event{}, false
	}

	event := Event{
		Time:      ci.Timestamp,
		Raw:       append([]byte(nil), data[len(data)-captured:]...),
		Port:      fmt.Sprintf("usb:%03d:%03d", usb.BusID, usb.DeviceAddress),
		Direction: rcs380.TraceTX,
	}
	if in {
		event.Direction = rcs380.TraceRX
	}
	classify(&event)
	return event, true
}

func classify(e *Event) {
	f, err := frame.Classify(e.Raw)
	if err != nil {
		e.Err = err
		return
	}
	e.Kind = f.Kind.String()
	if !f.IsData() || len(f.Payload) < 2 {
		e.Payload = f.Payload
		return
	}

	marker, code := f.Payload[0], f.Payload[1]
	e.Payload = f.Payload[2:]
	switch marker {
	case frame.HostToChipset:
		e.Command = rcs380.Command(code)
		_, e.Known = e.Command.Name()
	case frame.ChipsetToHost:
		e.Response = true
		e.Command, e.Known = rcs380.CommandForResponse(code)
	default:
		e.Payload = f.Payload
	}
}
