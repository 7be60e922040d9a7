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

package usb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-rcs380"
	"github.com/google/gousb"
)

// mapOpenError translates libusb errors raised while opening and claiming
// the reader
func mapOpenError(err error) error {
	switch {
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.ErrorNotFound):
		return fmt.Errorf("%w: %w", rcs380.ErrDeviceNotFound, err)
	case errors.Is(err, gousb.ErrorAccess):
		return fmt.Errorf("%w: permission denied, check udev rules: %w", rcs380.ErrDeviceNotFound, err)
	case errors.Is(err, gousb.ErrorBusy):
		return fmt.Errorf("reader is in use by another driver or process: %w", err)
	default:
		return err
	}
}

// mapTransferError translates a failed bulk transfer into an
// rcs380.TransportError. A transfer interrupted by ctx reports the context
// error as well.
func mapTransferError(ctx context.Context, op, port string, err error) error {
	base := rcs380.ErrTransportRead
	if op == "write" {
		base = rcs380.ErrTransportWrite
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, gousb.TransferTimedOut),
		errors.Is(err, gousb.ErrorTimeout):
		cause := fmt.Errorf("%w: %w", rcs380.ErrTransportTimeout, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = fmt.Errorf("%w: %w", rcs380.ErrTransportTimeout, ctxErr)
		}
		return rcs380.NewTransportError(op, port, cause, rcs380.ErrorTypeTimeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return &rcs380.TransportError{Op: op, Port: port, Err: ctx.Err(), Type: rcs380.ErrorTypeTransient}
	case errors.Is(err, gousb.TransferNoDevice), errors.Is(err, gousb.ErrorNoDevice):
		return rcs380.NewTransportError(op, port,
			fmt.Errorf("%w: reader unplugged: %w", rcs380.ErrTransportClosed, err), rcs380.ErrorTypePermanent)
	default:
		return rcs380.NewTransportError(op, port, fmt.Errorf("%w: %w", base, err), rcs380.ErrorTypeTransient)
	}
}
