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

// Package serial opens the host-facing UART link for a serprog engine.
package serial

import (
	"fmt"
	"time"

	serprog "github.com/ZaparooProject/go-serprog"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the reference firmware's link speed. flashrom's
// serprog programmer takes the same value in its dev= parameter.
const DefaultBaudRate = 921600

// Link is an open serial port carrying the serprog byte stream. It
// implements io.ReadWriter for serprog.New plus Close to interrupt a
// blocked engine read.
type Link struct {
	port     serial.Port
	portName string
}

// Option configures Open.
type Option func(*config)

type config struct {
	baudRate int
}

// WithBaudRate overrides the default 921600 baud.
func WithBaudRate(baud int) Option {
	return func(c *config) { c.baudRate = baud }
}

// Open opens portName as an 8N1 serial link. Reads block until data
// arrives; the engine relies on that rather than polling.
func Open(portName string, opts ...Option) (*Link, error) {
	cfg := &config{baudRate: DefaultBaudRate}
	for _, opt := range opts {
		opt(cfg)
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	// NoTimeout keeps Read blocking until at least one byte arrives.
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", portName, err)
	}

	return &Link{port: port, portName: portName}, nil
}

// Read implements io.Reader.
func (l *Link) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err != nil {
		return n, serprog.NewTransportReadError("read", l.portName, err)
	}
	return n, nil
}

// Write implements io.Writer.
func (l *Link) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	if err != nil {
		return n, serprog.NewTransportWriteError("write", l.portName, err)
	}
	return n, nil
}

// Close closes the port, unblocking a pending Read.
func (l *Link) Close() error {
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", l.portName, err)
	}
	return nil
}

// PortName returns the device path the link was opened on.
func (l *Link) PortName() string {
	return l.portName
}

// Drain waits briefly for the OS transmit buffer to flush. Some USB
// serial adapters drop unsent bytes on close.
func (l *Link) Drain() {
	_ = l.port.Drain()
	time.Sleep(5 * time.Millisecond)
}

// Ports lists candidate serial devices on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
