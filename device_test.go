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

	testutil "github.com/ZaparooProject/go-rcs380/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		errMsg  string
		opts    []Option
		wantErr bool
	}{
		{
			name: "Defaults",
		},
		{
			name: "With_Transport",
			opts: []Option{WithTransport(NewMockTransport())},
		},
		{
			name:    "Nil_Transport",
			opts:    []Option{WithTransport(nil)},
			wantErr: true,
			errMsg:  "nil transport",
		},
		{
			name:    "Negative_Timeout",
			opts:    []Option{WithTimeout(-time.Second)},
			wantErr: true,
			errMsg:  "negative timeout",
		},
		{
			name:    "Odd_Protocol_Defaults",
			opts:    []Option{WithProtocolDefaults([]byte{0x00, 0x18, 0x01})},
			wantErr: true,
			errMsg:  "odd length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, device)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateDisconnected, device.State())
			assert.Nil(t, device.Transport())
		})
	}
}

func TestDevice_ConfigOptions(t *testing.T) {
	t.Parallel()

	device, err := New(
		WithTimeout(250*time.Millisecond),
		WithTraceSize(4),
		WithProtocolDefaults([]byte{0x00, 0x18}),
	)
	require.NoError(t, err)

	cfg := device.Config()
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 4, cfg.TraceSize)
	assert.Equal(t, []byte{0x00, 0x18}, cfg.ProtocolDefaults)
	assert.Equal(t, DefaultProtocolSettings, DefaultDeviceConfig().ProtocolDefaults)
}

func TestDevice_ConnectDisconnect(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualRCS380()
	device, err := New(WithTransport(simulatorTransport{sim}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, device.Connect(ctx))
	assert.Equal(t, StateConnected, device.State())
	assert.True(t, device.IsConnected())
	assert.NotNil(t, device.Transport())
	assert.Equal(t, 1, sim.AckCount(), "connect cancels pending work with an ACK")
	assert.Equal(t, byte(CommandTypeRaw), sim.State().CommandType)

	require.ErrorIs(t, device.Connect(ctx), ErrAlreadyConnected)

	require.NoError(t, device.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, device.State())
	assert.False(t, sim.IsConnected(), "disconnect closes the transport")

	// idempotent
	require.NoError(t, device.Disconnect(ctx))

	_, err = device.GetFirmwareVersion(ctx)
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = device.Chipset()
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDevice_Disconnect_SwitchesRFOff(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	ctx := context.Background()

	require.NoError(t, device.SwitchRF(ctx, RFOn))
	assert.True(t, sim.State().FieldOn)

	require.NoError(t, device.Disconnect(ctx))
	assert.True(t, sim.HasCommand(testutil.CmdSwitchRF))
	assert.False(t, sim.State().FieldOn)
	assert.Equal(t, 2, sim.AckCount(), "one ACK on connect, one on close")
}

func TestDevice_Connect_NoOpener(t *testing.T) {
	t.Parallel()

	device, err := New()
	require.NoError(t, err)

	err = device.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opener")
	assert.False(t, device.IsConnected())
}

func TestDevice_Connect_OpenerFails(t *testing.T) {
	t.Parallel()

	device, err := New(WithOpener(func(context.Context) (Transport, error) {
		return nil, ErrDeviceNotFound
	}))
	require.NoError(t, err)

	err = device.Connect(context.Background())
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.True(t, IsFatal(err))
	assert.Equal(t, StateDisconnected, device.State())
}

func TestDevice_Connect_InitFailsClosesTransport(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(testutil.BuildErrorFrame())

	device, err := New(WithTransport(mock))
	require.NoError(t, err)

	err = device.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoACK)
	assert.Contains(t, err.Error(), "failed to initialize reader")
	assert.False(t, mock.IsConnected())
	assert.Equal(t, StateDisconnected, device.State())
}

func TestDevice_Reconnect(t *testing.T) {
	t.Parallel()

	opened := 0
	device, err := New(WithOpener(func(context.Context) (Transport, error) {
		opened++
		return simulatorTransport{testutil.NewVirtualRCS380()}, nil
	}))
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		require.NoError(t, device.Connect(ctx))
		_, err := device.GetFirmwareVersion(ctx)
		require.NoError(t, err)
		require.NoError(t, device.Disconnect(ctx))
	}
	assert.Equal(t, 2, opened)
}

func TestDevice_Versions(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	sim.SetFirmwareVersion(0x02, 0x05)
	ctx := context.Background()

	fw, err := device.GetFirmwareVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.05", fw.String())

	pd, err := device.GetPDDataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.00", pd.String())
}

func TestDevice_RFConfiguration(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	ctx := context.Background()

	require.NoError(t, device.InSetRF(ctx, Bitrate212F, 0))
	require.NoError(t, device.InSetProtocol(ctx, NewProtocolSettings(nil).Set(OptAddCRC, 1)))
	require.NoError(t, device.SetCommandType(ctx, CommandTypeRaw))

	st := sim.State()
	assert.Equal(t, []byte{1, 1, 15, 1}, st.RF)
	assert.Equal(t, byte(1), st.Protocol[byte(OptAddCRC)])
}

func TestDevice_InCommRF(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	ctx := context.Background()

	_, err := device.InCommRF(ctx, []byte{0x00, 0xFF, 0xFF, 0x01, 0x00}, 10*time.Millisecond)
	require.True(t, IsNoTarget(err))

	sim.SetTarget(testutil.EchoTarget(0x12, 0x01, 0x01, 0x02))
	resp, err := device.InCommRF(ctx, []byte{0x00, 0xFF, 0xFF, 0x01, 0x00}, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x01, 0x01, 0x02}, resp)
}

func TestDevice_SenseTypeA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target   testutil.TargetFunc
		wantErr  error
		name     string
		wantATQA []byte
		type1    bool
	}{
		{
			name:     "NTAG",
			target:   testutil.TypeATarget([2]byte{0x44, 0x00}),
			wantATQA: []byte{0x44, 0x00},
		},
		{
			name:     "Type1",
			target:   testutil.TypeATarget([2]byte{0x00, 0x0C}),
			wantATQA: []byte{0x00, 0x0C},
			type1:    true,
		},
		{
			name:    "No_Target",
			wantErr: ErrNoTargetDetected,
		},
		{
			name:    "Bad_ATQA_Length",
			target:  testutil.EchoTarget(0x44),
			wantErr: ErrNoTargetDetected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, sim := newSimulatedDevice(t)
			sim.SetTarget(tt.target)

			sens, err := device.SenseTypeA(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsNoTarget(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantATQA, sens.ATQA)
			assert.Equal(t, tt.type1, sens.Type1Tag)

			st := sim.State()
			assert.Equal(t, []byte{2, 3, 15, 3}, st.RF)
			assert.Equal(t, byte(shortFrameBits), st.Protocol[byte(OptLastByteBitCount)])
			assert.Equal(t, byte(0), st.Protocol[byte(OptAddCRC)])
			assert.Equal(t, byte(typeAGuardTime), st.Protocol[byte(OptInitialGuardTime)])
		})
	}
}

func TestDevice_SenseTypeA_CommandSequence(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	sim.SetTarget(testutil.TypeATarget([2]byte{0x04, 0x00}))

	_, err := device.SenseTypeA(context.Background())
	require.NoError(t, err)

	var cmds []byte
	for _, entry := range sim.CommandLog() {
		cmds = append(cmds, entry.Cmd)
	}
	assert.Equal(t, []byte{
		testutil.CmdSetCommandType,
		testutil.CmdInSetRF,
		testutil.CmdInSetProtocol,
		testutil.CmdInSetProtocol,
		testutil.CmdInCommRF,
	}, cmds)

	log := sim.CommandLog()
	assert.Equal(t, DefaultProtocolSettings, log[2].Args)
	assert.Equal(t, []byte{0x2C, 0x01, sensReq}, log[4].Args)
}

func TestDevice_SenseTypeA_TransportError(t *testing.T) {
	t.Parallel()

	device, sim := newSimulatedDevice(t)
	sim.InjectNoAck()

	_, err := device.SenseTypeA(context.Background())
	require.ErrorIs(t, err, ErrNoACK)
	assert.False(t, IsNoTarget(err))
	assert.False(t, errors.Is(err, ErrNoTargetDetected))
}

func TestDevice_DefaultTimeoutApplied(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.QueueRead(testutil.BuildAck(), testutil.BuildStatusResponse(testutil.CmdSetCommandType, 0x00))

	device, err := New(WithTransport(mock), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, device.Connect(context.Background()))

	mock.SetDelay(200 * time.Millisecond)
	start := time.Now()
	_, err = device.GetFirmwareVersion(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestDeviceState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}
