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

package serprog

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories. Framing and session errors are always recovered
// locally (the host sees a NAK); transport errors end the engine's Serve
// loop; bus errors NAK the failing command and leave session state intact.
var (
	// Framing errors - recovered by single-byte resync
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrPayloadTooLarge = errors.New("payload length exceeds advertised buffer")

	// Session precondition errors - command refused, session unchanged
	ErrBusNotSet        = errors.New("bus type has not been set")
	ErrBusUnsupported   = errors.New("requested bus type not supported")
	ErrInvalidParameter = errors.New("invalid command parameter")
	ErrFrequencyTooLow  = errors.New("requested frequency below divisor range")
	ErrFrequencyInvalid = errors.New("requested frequency must be nonzero")

	// Transport errors - fatal to the serve loop
	ErrBufferOverrun  = errors.New("inbound buffer overrun")
	ErrLinkClosed     = errors.New("link is closed")
	ErrTransportRead  = errors.New("transport read failed")
	ErrTransportWrite = errors.New("transport write failed")

	// Bus errors - NAK for the command, retryable by the host
	ErrTransferFailed = errors.New("spi transfer failed")
	ErrOutputDisabled = errors.New("output drivers are disabled")
)

// FramingError reports a protocol-level decode failure. The decoder
// consumes exactly the offending bytes and resumes at opcode alignment,
// so a FramingError maps to one NAK and nothing else.
type FramingError struct {
	Err    error
	Opcode Opcode
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("opcode 0x%02X: %v", byte(e.Opcode), e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// ErrorType represents the category of a transport error.
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps link-level errors with additional context.
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

// NewTransportError creates a transport error with consistent formatting.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTransportReadError creates a read error (transient).
func NewTransportReadError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
}

// NewTransportWriteError creates a write error (transient).
func NewTransportWriteError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
}

// NewOverrunError creates an inbound overrun error (permanent). An overrun
// means the protocol task fell behind the link and framing can no longer be
// trusted, so it is never retried in place.
func NewOverrunError(port string) *TransportError {
	return NewTransportError("fill", port, ErrBufferOverrun, ErrorTypePermanent)
}

// IsFraming returns true if the error is a protocol framing error that the
// engine resolves with a single NAK.
func IsFraming(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrTransferFailed):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the link is gone or framing
// is unrecoverable and the serve loop should stop. This is distinct from
// IsRetryable, which covers a single failed operation.
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
	case errors.Is(err, ErrBufferOverrun),
		errors.Is(err, ErrLinkClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating the serial
// adapter was disconnected during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}
