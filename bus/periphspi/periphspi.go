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

// Package periphspi implements serprog.Bus on real hardware through
// periph.io: a spidev port for the flash chip and an optional GPIO driving
// an external power switch for the board under test.
package periphspi

import (
	"fmt"
	"time"

	serprog "github.com/ZaparooProject/go-serprog"
	"github.com/ZaparooProject/go-serprog/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// openPort is swapped out by tests to avoid touching real spidev nodes.
var openPort = func(name string) (spi.PortCloser, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", name, err)
	}
	return port, nil
}

// DefaultSettleDelay is how long the flash gets to power up after the
// output drivers are enabled, matching the reference firmware.
const DefaultSettleDelay = 100 * time.Millisecond

// Config describes the hardware attachment.
type Config struct {
	// Port is the SPI port name or path, e.g. "SPI0.0" or "/dev/spidev0.0".
	Port string
	// PowerPin optionally names a GPIO wired to an external supply
	// switch. It is driven low to power the flash (active-low enable)
	// and high to cut power. Empty means no power control.
	PowerPin string
	// BaseClockHz is the peripheral clock fed to the divisor mapping.
	// Zero selects serprog.DefaultBaseClockHz.
	BaseClockHz uint32
	// SettleDelay overrides DefaultSettleDelay when positive.
	SettleDelay time.Duration
}

// Bus drives a SPI flash through periph.io. It starts with output
// drivers disabled and the target unpowered; the host's S_PIN_STATE
// brings it up. Every Transfer is one chip-select-scoped transaction
// (spidev asserts CS for the duration of Tx).
type Bus struct {
	power       gpio.PinOut
	port        spi.PortCloser
	conn        spi.Conn
	portName    string
	frequencyHz uint32
	baseClockHz uint32
	settle      time.Duration
	mu          syncutil.Mutex
	enabled     bool
}

// New initializes the periph host and prepares a bus over cfg. The SPI
// port itself is opened lazily on output enable, mirroring the reference
// firmware which keeps the pins tri-stated until the host asks.
func New(cfg Config) (*Bus, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("periphspi: no SPI port configured")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	b := &Bus{
		portName:    cfg.Port,
		baseClockHz: cfg.BaseClockHz,
		frequencyHz: serprog.DefaultFrequencyHz,
		settle:      cfg.SettleDelay,
	}
	if b.baseClockHz == 0 {
		b.baseClockHz = serprog.DefaultBaseClockHz
	}
	if b.settle <= 0 {
		b.settle = DefaultSettleDelay
	}

	if cfg.PowerPin != "" {
		pin := gpioreg.ByName(cfg.PowerPin)
		if pin == nil {
			return nil, fmt.Errorf("periphspi: power pin %q not found", cfg.PowerPin)
		}
		// Target stays unpowered until the host enables the drivers.
		if err := pin.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("failed to park power pin %q: %w", cfg.PowerPin, err)
		}
		b.power = pin
	}

	return b, nil
}

// SetFrequency implements serprog.Bus. The achieved frequency never
// exceeds the request; if the drivers are currently enabled the port is
// reconnected at the new clock.
func (b *Bus) SetFrequency(hz uint32) (uint32, error) {
	achieved, err := serprog.ClosestFrequency(b.baseClockHz, hz)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.frequencyHz = achieved
	if b.enabled {
		if err := b.reconnectLocked(); err != nil {
			return 0, err
		}
	}
	return achieved, nil
}

// SetOutputEnabled implements serprog.Bus. Enable powers the target,
// connects the SPI port and waits for the flash to settle; disable
// releases the port first and then cuts power, so the lines never drive
// an unpowered chip.
func (b *Bus) SetOutputEnabled(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if enabled == b.enabled {
		return nil
	}

	if enabled {
		if b.power != nil {
			if err := b.power.Out(gpio.Low); err != nil {
				return fmt.Errorf("failed to enable power pin: %w", err)
			}
		}
		if err := b.reconnectLocked(); err != nil {
			if b.power != nil {
				_ = b.power.Out(gpio.High)
			}
			return err
		}
		b.enabled = true
		time.Sleep(b.settle)
		return nil
	}

	b.disconnectLocked()
	b.enabled = false
	if b.power != nil {
		if err := b.power.Out(gpio.High); err != nil {
			return fmt.Errorf("failed to disable power pin: %w", err)
		}
	}
	return nil
}

// Transfer implements serprog.Bus with a single full-duplex transaction:
// the write bytes go out first, then readLen dummy bytes clock the read
// phase, all under one chip select.
func (b *Bus) Transfer(write []byte, readLen int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.conn == nil {
		return nil, serprog.ErrOutputDisabled
	}

	total := len(write) + readLen
	tx := make([]byte, total)
	rx := make([]byte, total)
	copy(tx, write)

	if err := b.conn.Tx(tx, rx); err != nil {
		return nil, fmt.Errorf("%w: %w", serprog.ErrTransferFailed, err)
	}
	return rx[len(write):], nil
}

// Close releases the port and powers the target down.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.disconnectLocked()
	b.enabled = false
	if b.power != nil {
		if err := b.power.Out(gpio.High); err != nil {
			return fmt.Errorf("failed to park power pin: %w", err)
		}
	}
	return nil
}

// reconnectLocked (re)opens the SPI port at the current frequency. A
// periph port binds its clock at Connect time, so clock changes mean a
// fresh connection.
func (b *Bus) reconnectLocked() error {
	b.disconnectLocked()

	port, err := openPort(b.portName)
	if err != nil {
		return err
	}
	freq := physic.Frequency(b.frequencyHz) * physic.Hertz
	conn, err := port.Connect(freq, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to connect SPI port %s: %w", b.portName, err)
	}
	b.port = port
	b.conn = conn
	return nil
}

func (b *Bus) disconnectLocked() {
	if b.port != nil {
		_ = b.port.Close()
		b.port = nil
		b.conn = nil
	}
}
