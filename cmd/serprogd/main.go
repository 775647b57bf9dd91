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

// serprogd exposes a SPI flash chip to flashrom-compatible host tools
// over a serial port, speaking the serprog protocol. Point the host at
// the same device, e.g.:
//
//	flashrom -p serprog:dev=/dev/ttyUSB1:921600
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	serprog "github.com/ZaparooProject/go-serprog"
	"github.com/ZaparooProject/go-serprog/bus/periphspi"
	"github.com/ZaparooProject/go-serprog/internal/flashtest"
	linkserial "github.com/ZaparooProject/go-serprog/link/serial"
)

// Package-level flag variables
var (
	flagConfig   string
	flagDevice   string
	flagBaud     int
	flagSPIPort  string
	flagPowerPin string
	flagName     string
	flagVirtual  bool
	flagList     bool
	flagDebug    bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Path to YAML config file")
	flag.StringVar(&flagDevice, "device", "", "Serial device for the host link (e.g. /dev/ttyUSB1)")
	flag.IntVar(&flagBaud, "baud", 0, "Link baud rate (default 921600)")
	flag.StringVar(&flagSPIPort, "spi", "", "SPI port for the flash chip (e.g. SPI0.0)")
	flag.StringVar(&flagPowerPin, "power-pin", "", "GPIO name driving the target's supply switch")
	flag.StringVar(&flagName, "name", "", "Programmer name reported to the host")
	flag.BoolVar(&flagVirtual, "virtual", false, "Serve an in-memory virtual flash instead of hardware")
	flag.BoolVar(&flagList, "list-ports", false, "List candidate serial ports and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}

	// Flags override file values.
	if flagDevice != "" {
		cfg.Link.Device = flagDevice
	}
	if flagBaud > 0 {
		cfg.Link.BaudRate = flagBaud
	}
	if flagSPIPort != "" {
		cfg.SPI.Port = flagSPIPort
	}
	if flagPowerPin != "" {
		cfg.SPI.PowerPin = flagPowerPin
	}
	if flagName != "" {
		cfg.Programmer.Name = flagName
	}
	if flagVirtual {
		cfg.SPI.Virtual = true
	}
	return cfg, cfg.Validate()
}

// newBus builds the SPI executor: real hardware through periph.io, or the
// in-memory flash for exercising host tools without a chip attached.
func newBus(cfg *Config) (serprog.Bus, func() error, error) {
	if cfg.SPI.Virtual {
		return flashtest.New(), func() error { return nil }, nil
	}

	bus, err := periphspi.New(periphspi.Config{
		Port:        cfg.SPI.Port,
		PowerPin:    cfg.SPI.PowerPin,
		BaseClockHz: cfg.SPI.BaseClockHz,
		SettleDelay: time.Duration(cfg.SPI.SettleMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	return bus, bus.Close, nil
}

func run() error {
	if flagDebug {
		serprog.SetDebugEnabled(true)
	}

	if flagList {
		ports, err := linkserial.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	link, err := linkserial.Open(cfg.Link.Device, linkserial.WithBaudRate(cfg.Link.BaudRate))
	if err != nil {
		return err
	}
	defer func() {
		link.Drain()
		_ = link.Close()
	}()

	bus, closeBus, err := newBus(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeBus() }()

	engine, err := serprog.New(link, bus,
		serprog.WithProgrammerName(cfg.Programmer.Name),
		serprog.WithBufferSize(cfg.Programmer.BufferSize),
		serprog.WithPortName(cfg.Link.Device),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closing the link on shutdown is what unblocks the engine's reader.
	go func() {
		<-ctx.Done()
		_ = link.Close()
	}()

	fmt.Printf("serprogd: serving %s at %d baud\n", cfg.Link.Device, cfg.Link.BaudRate)
	return engine.Serve(ctx)
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "serprogd: %v\n", err)
		os.Exit(1)
	}
}
