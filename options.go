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
	"context"
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithOpener sets how Connect opens the transport
func WithOpener(opener Opener) Option {
	return func(d *Device) error {
		d.opener = opener
		return nil
	}
}

// WithTransport makes Connect use an already open transport
func WithTransport(transport Transport) Option {
	return func(d *Device) error {
		if transport == nil {
			return fmt.Errorf("%w: nil transport", ErrInvalidParameter)
		}
		d.opener = func(context.Context) (Transport, error) {
			return transport, nil
		}
		return nil
	}
}

// WithTimeout sets the default timeout for device operations
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative timeout %v", ErrInvalidParameter, timeout)
		}
		d.config.Timeout = timeout
		return nil
	}
}

// WithProtocolDefaults replaces the InSetProtocol payload loaded before sensing
func WithProtocolDefaults(settings []byte) Option {
	return func(d *Device) error {
		if err := NewProtocolSettings(settings).Validate(); err != nil {
			return err
		}
		d.config.ProtocolDefaults = append([]byte(nil), settings...)
		return nil
	}
}

// WithTraceSize sets how many wire entries are attached to errors
func WithTraceSize(size int) Option {
	return func(d *Device) error {
		d.config.TraceSize = size
		return nil
	}
}
