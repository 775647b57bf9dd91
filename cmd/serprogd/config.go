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

package main

import (
	"fmt"
	"os"

	serprog "github.com/ZaparooProject/go-serprog"
	linkserial "github.com/ZaparooProject/go-serprog/link/serial"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration. Everything has a usable default;
// a config file and command-line flags only override.
type Config struct {
	Link       LinkConfig       `yaml:"link" json:"link"`
	SPI        SPIConfig        `yaml:"spi" json:"spi"`
	Programmer ProgrammerConfig `yaml:"programmer" json:"programmer"`
}

// LinkConfig selects the host-facing serial port.
type LinkConfig struct {
	Device   string `yaml:"device" json:"device"`       // e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`  // default 921600
}

// SPIConfig selects the flash-facing SPI attachment.
type SPIConfig struct {
	Port        string `yaml:"port" json:"port"`                  // e.g. SPI0.0 or /dev/spidev0.0
	PowerPin    string `yaml:"power_pin" json:"powerPin"`         // optional supply-switch GPIO
	BaseClockHz uint32 `yaml:"base_clock_hz" json:"baseClockHz"`  // divisor mapping input
	SettleMs    int    `yaml:"settle_ms" json:"settleMs"`         // power-on settle delay
	Virtual     bool   `yaml:"virtual" json:"virtual"`            // in-memory flash, no hardware
}

// ProgrammerConfig tunes the protocol-visible identity.
type ProgrammerConfig struct {
	Name       string `yaml:"name" json:"name"`
	BufferSize int    `yaml:"buffer_size" json:"bufferSize"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			BaudRate: linkserial.DefaultBaudRate,
		},
		SPI: SPIConfig{
			Port: "SPI0.0",
		},
		Programmer: ProgrammerConfig{
			Name:       serprog.DefaultProgrammerName,
			BufferSize: serprog.DefaultBufferSize,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine would refuse anyway, with a
// friendlier message.
func (c *Config) Validate() error {
	if c.Link.Device == "" {
		return fmt.Errorf("no serial device configured (set link.device or -device)")
	}
	if c.Link.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Link.BaudRate)
	}
	if c.Programmer.BufferSize <= 0 || c.Programmer.BufferSize > 0xFFFF {
		return fmt.Errorf("buffer size %d does not fit the 16-bit Q_SERBUF field", c.Programmer.BufferSize)
	}
	if !c.SPI.Virtual && c.SPI.Port == "" {
		return fmt.Errorf("no SPI port configured (set spi.port or -spi)")
	}
	return nil
}
