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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTransport struct {
	*MockTransport
}

func (namedTransport) PortName() string {
	return "usb:1:4"
}

func TestMockTransport_ScriptedReads(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx := context.Background()
	mock.QueueRead([]byte{0x01}, []byte{0x02, 0x03})
	assert.Equal(t, 2, mock.PendingReads())

	got, err := mock.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got)

	got, err = mock.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03}, got)

	_, err = mock.Read(ctx)
	require.ErrorIs(t, err, ErrNoData)
	assert.True(t, IsRetryable(err))
}

func TestMockTransport_Writes(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx := context.Background()

	buf := []byte{0xAA, 0xBB}
	require.NoError(t, mock.Write(ctx, buf))
	require.NoError(t, mock.Write(ctx, nil), "empty writes are a no-op")
	buf[0] = 0x00

	writes := mock.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0xAA, 0xBB}, writes[0], "writes are copied")
}

func TestMockTransport_InjectedErrors(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx := context.Background()
	writeErr := errors.New("stall")
	readErr := NewTimeoutError("read", "mock")

	mock.SetWriteError(writeErr)
	mock.SetReadError(readErr)
	require.ErrorIs(t, mock.Write(ctx, []byte{0x01}), writeErr)
	_, err := mock.Read(ctx)
	require.ErrorIs(t, err, ErrTransportTimeout)

	mock.Reset()
	require.NoError(t, mock.Write(ctx, []byte{0x01}))
	assert.Len(t, mock.Writes(), 1)
}

func TestMockTransport_Close(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx := context.Background()
	require.True(t, mock.IsConnected())
	require.NoError(t, mock.Close())
	assert.False(t, mock.IsConnected())

	require.ErrorIs(t, mock.Write(ctx, []byte{0x01}), ErrTransportClosed)
	_, err := mock.Read(ctx)
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, IsFatal(err))
}

func TestMockTransport_ContextTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDelay(200 * time.Millisecond)
	mock.QueueRead([]byte{0x01})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := mock.Read(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 1, mock.PendingReads(), "a timed out read consumes nothing")
}

func TestMockTransport_ContextCancelled(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, mock.Write(ctx, []byte{0x01}), context.Canceled)
	_, err := mock.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransportPort(t *testing.T) {
	t.Parallel()

	assert.Empty(t, transportPort(NewMockTransport()))
	assert.Equal(t, "usb:1:4", transportPort(namedTransport{NewMockTransport()}))
	assert.Equal(t, TransportMock, NewMockTransport().Type())
}

func TestChipset_TraceCarriesPort(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	chipset := NewChipset(namedTransport{mock}, 4)

	_, err := chipset.GetFirmwareVersion(context.Background())
	trace := GetTrace(err)
	require.NotNil(t, trace)
	assert.Equal(t, string(TransportMock), trace.Transport)
	assert.Equal(t, "usb:1:4", trace.Port)
}
