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

//go:build !prod

package rcs380

import (
	"context"
	"testing"

	testutil "github.com/ZaparooProject/go-rcs380/internal/testing"
	"github.com/stretchr/testify/require"
)

// simulatorTransport adapts the virtual reader to the Transport interface
type simulatorTransport struct {
	*testutil.VirtualRCS380
}

func (simulatorTransport) Type() TransportType {
	return TransportMock
}

// newTestChipset creates a chipset over a fresh mock transport
func newTestChipset(t *testing.T) (*Chipset, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	return NewChipset(mock, 0), mock
}

// newSimulatedDevice creates a connected device backed by a virtual reader.
// The device is disconnected when the test ends.
func newSimulatedDevice(t *testing.T, opts ...Option) (*Device, *testutil.VirtualRCS380) {
	t.Helper()

	sim := testutil.NewVirtualRCS380()
	opts = append([]Option{WithTransport(simulatorTransport{sim})}, opts...)
	device, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, device.Connect(context.Background()))

	t.Cleanup(func() {
		_ = device.Disconnect(context.Background())
	})
	return device, sim
}
