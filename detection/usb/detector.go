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

// Package usb registers a detector that finds RC-S380 readers on the USB
// bus. Import it for its side effect:
//
//	import _ "github.com/ZaparooProject/go-rcs380/detection/usb"
package usb

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/ZaparooProject/go-rcs380/detection"
	usbtransport "github.com/ZaparooProject/go-rcs380/transport/usb"
	"github.com/google/gousb"
)

const probeTimeout = 2 * time.Second

type (
	listFunc  func(ctx context.Context) ([]*gousb.DeviceDesc, error)
	probeFunc func(ctx context.Context, desc *gousb.DeviceDesc, mode detection.Mode) (map[string]string, error)
)

type detector struct {
	list  listFunc
	probe probeFunc
}

// New creates a USB detector backed by libusb
func New() detection.Detector {
	return &detector{list: listDescriptors, probe: probeReader}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return string(rcs380.TransportUSB)
}

// Detect lists Sony devices, keeps the known reader models and, unless
// the mode is Passive, opens each one and queries its firmware. A reader
// that cannot be opened is still reported, with Low confidence and the
// failure in Metadata["error"].
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	descs, err := d.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, desc := range descs {
		if ctx.Err() != nil {
			break
		}
		info, ok := describe(desc, opts)
		if !ok {
			continue
		}
		if opts.Mode != detection.Passive {
			d.probeInto(ctx, desc, opts.Mode, &info)
		}
		devices = append(devices, info)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func describe(desc *gousb.DeviceDesc, opts *detection.Options) (detection.DeviceInfo, bool) {
	if desc.Vendor != usbtransport.VendorSony {
		return detection.DeviceInfo{}, false
	}
	name := usbtransport.ProductName(desc.Product)
	if name == "" {
		return detection.DeviceInfo{}, false
	}

	vidpid := detection.FormatVIDPID(uint16(desc.Vendor), uint16(desc.Product))
	path := usbtransport.FormatPort(desc.Bus, desc.Address)
	if detection.IsBlocked(vidpid, opts.Blocklist) || detection.IsPathIgnored(path, opts.IgnorePaths) {
		rcs380.Debugf("USB detection: skipping %s at %s", vidpid, path)
		return detection.DeviceInfo{}, false
	}

	return detection.DeviceInfo{
		Transport:  string(rcs380.TransportUSB),
		Path:       path,
		Name:       name,
		Bus:        desc.Bus,
		Address:    desc.Address,
		Confidence: detection.Medium,
		Metadata: map[string]string{
			"vidpid": vidpid,
			"speed":  desc.Speed.String(),
		},
	}, true
}

func (d *detector) probeInto(ctx context.Context, desc *gousb.DeviceDesc, mode detection.Mode,
	info *detection.DeviceInfo,
) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	meta, err := d.probe(ctx, desc, mode)
	if err != nil {
		rcs380.Debugf("USB detection: probe of %s failed: %v", info.Path, err)
		info.Confidence = detection.Low
		info.Metadata["error"] = err.Error()
		return
	}
	for k, v := range meta {
		info.Metadata[k] = v
	}
	info.Confidence = detection.High
}

func listDescriptors(_ context.Context) ([]*gousb.DeviceDesc, error) {
	usbCtx := gousb.NewContext()
	defer func() { _ = usbCtx.Close() }()

	var descs []*gousb.DeviceDesc
	// the callback records every Sony device and opens none of them
	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == usbtransport.VendorSony {
			descs = append(descs, desc)
		}
		return false
	})
	for _, dev := range devs {
		_ = dev.Close()
	}
	if err != nil && len(descs) == 0 {
		return nil, err
	}
	return descs, nil
}

func probeReader(ctx context.Context, desc *gousb.DeviceDesc, mode detection.Mode) (map[string]string, error) {
	cfg := usbtransport.DefaultConfig()
	cfg.ProductID = desc.Product
	cfg.Bus = desc.Bus
	cfg.Address = desc.Address

	device, err := rcs380.New(rcs380.WithOpener(usbtransport.Opener(cfg)))
	if err != nil {
		return nil, err
	}
	return Probe(ctx, device, mode)
}

// Probe connects device, reads its versions and disconnects it again.
// Full mode adds the PD data version to the firmware version.
func Probe(ctx context.Context, device *rcs380.Device, mode detection.Mode) (map[string]string, error) {
	if err := device.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = device.Disconnect(context.WithoutCancel(ctx)) }()

	fw, err := device.GetFirmwareVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("firmware query failed: %w", err)
	}
	meta := map[string]string{"firmware": fw.String()}

	if mode == detection.Full {
		pd, err := device.GetPDDataVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("PD data query failed: %w", err)
		}
		meta["pddata"] = pd.String()
	}
	return meta, nil
}
