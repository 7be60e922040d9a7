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
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-rcs380/internal/frame"
)

// Error categories for better error handling and retry logic
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrNoData           = errors.New("transfer returned no data")

	// Framing errors - potentially retryable
	ErrFrameCorrupted   = frame.ErrFrameCorrupted
	ErrChecksumMismatch = frame.ErrChecksumMismatch
	ErrUnknownFrame     = frame.ErrUnknownFrame

	// Protocol violations
	ErrNoACK            = errors.New("no ACK received")
	ErrResponseMismatch = errors.New("response does not match command")
	ErrInvalidResponse  = errors.New("invalid response format")

	// Device errors - generally not retryable
	ErrDeviceNotFound   = errors.New("device not found")
	ErrNotConnected     = errors.New("device not connected")
	ErrAlreadyConnected = errors.New("device already connected")
	ErrNoTargetDetected = errors.New("no target detected")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FramingError reports received bytes that do not form a valid frame.
type FramingError struct {
	Err  error
	Op   string
	Data []byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a well-formed frame arriving where the command
// exchange expected something else: a missing ACK, or a response whose
// header does not echo the request opcode.
type ProtocolError struct {
	Err      error
	Received string
	Command  Command
}

func (e *ProtocolError) Error() string {
	if e.Received != "" {
		return fmt.Sprintf("%s: %v, got %s", e.Command, e.Err, e.Received)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var ce CommunicationError
	if errors.As(err, &ce) {
		return ce.Matches(CommReceiveTimeoutError) ||
			ce.Matches(CommTransmitTimeoutError) ||
			ce.Matches(CommCRCError) ||
			ce.Matches(CommParityError) ||
			ce.Matches(CommCollisionError)
	}

	var se StatusError
	if errors.As(err, &se) {
		return false
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrNoData),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device/connection is gone
// and scanning should stop entirely. This is distinct from IsRetryable which
// indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrNotConnected),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsNoTarget reports whether err is the receive timeout the chipset raises
// when nothing answered an RF exchange.
func IsNoTarget(err error) bool {
	if errors.Is(err, ErrNoTargetDetected) {
		return true
	}
	var ce CommunicationError
	return errors.As(err, &ce) && ce.Matches(CommReceiveTimeoutError)
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
// These errors occur when the reader is unplugged during a bulk transfer.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}

	return false
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportReadError creates a read error (transient)
func NewTransportReadError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportRead, ErrorTypeTransient)
}

// NewNoDataError creates the error returned when a bulk read completes empty
func NewNoDataError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoData, ErrorTypeTransient)
}

// NewTransportClosedError creates a transport closed error (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, allowing consumer
// applications to access debug information when a command exchange fails.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the reader
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the reader
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumer applications can use errors.As() to extract trace information:
//
//	var te *rcs380.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, hexData, entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", direction, hexData)
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	if len(data) > 32 {
		return fmt.Sprintf("% X ... (%d bytes total)", data[:32], len(data))
	}
	return fmt.Sprintf("% X", data)
}

// TraceBuffer collects trace entries during a command exchange.
// It uses a fixed-size buffer that evicts the oldest entry when full.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records a transmission to the reader
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the reader
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries
func (tb *TraceBuffer) Entries() []TraceEntry {
	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)
	return entriesCopy
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	return &TraceableError{
		Err:       err,
		Trace:     tb.Entries(),
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
