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
	"sync"
	"time"
)

// MaxReceiveSize is the largest single bulk read the reader produces
const MaxReceiveSize = 290

// Transport moves raw bytes to and from the reader over two unidirectional
// channels. It knows nothing about frames: Write sends one buffer, Read
// returns whatever one transfer delivered.
type Transport interface {
	// Write performs one transfer to the reader. An empty buffer is a no-op.
	Write(ctx context.Context, data []byte) error

	// Read performs one transfer from the reader, up to MaxReceiveSize bytes
	Read(ctx context.Context) ([]byte, error)

	// Close releases the underlying channel
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUSB represents USB bulk transport.
	TransportUSB TransportType = "usb"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// PortNamer is implemented by transports that can identify their port
type PortNamer interface {
	PortName() string
}

func transportPort(t Transport) string {
	if pn, ok := t.(PortNamer); ok {
		return pn.PortName()
	}
	return ""
}

// MockTransport provides a scripted implementation of Transport for testing.
// Reads are served from a queue of prepared buffers; writes are recorded.
type MockTransport struct {
	writeErr  error
	readErr   error
	reads     [][]byte
	writes    [][]byte
	delay     time.Duration
	mu        sync.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

// Write implements Transport interface
func (m *MockTransport) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return NewTransportClosedError("write", "mock")
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return nil
}

// Read implements Transport interface
func (m *MockTransport) Read(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	delay := m.delay
	m.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, NewTransportClosedError("read", "mock")
	}
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.reads) == 0 {
		return nil, NewNoDataError("read", "mock")
	}
	next := m.reads[0]
	m.reads = m.reads[1:]
	return next, nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// QueueRead appends raw buffers to be returned by subsequent reads
func (m *MockTransport) QueueRead(bufs ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, buf := range bufs {
		m.reads = append(m.reads, append([]byte(nil), buf...))
	}
}

// SetWriteError configures an error to be returned by Write
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetReadError configures an error to be returned by Read
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// SetDelay configures a delay before each read to simulate a slow reader
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// Writes returns a copy of everything written so far
func (m *MockTransport) Writes() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// PendingReads returns how many queued reads have not been consumed
func (m *MockTransport) PendingReads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reads)
}

// Reset clears recorded writes and queued reads and reconnects
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.reads = nil
	m.writes = nil
	m.writeErr = nil
	m.readErr = nil
	m.connected = true
	m.mu.Unlock()
}
