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

// Package flashtest provides in-memory stand-ins for the hardware side of
// the programmer: a virtual SPI NOR flash implementing serprog.Bus and an
// in-memory duplex link. They let the full engine pipeline run in plain
// unit tests with no serial port or SPI controller.
package flashtest

import (
	"sync"

	serprog "github.com/ZaparooProject/go-serprog"
)

// SPI NOR command set understood by the virtual flash.
const (
	opWriteEnable  = 0x06
	opWriteDisable = 0x04
	opReadStatus   = 0x05
	opPageProgram  = 0x02
	opRead         = 0x03
	opSectorErase  = 0x20
	opChipErase    = 0xC7
	opChipEraseAlt = 0x60
	opReadJEDECID  = 0x9F
)

// Geometry of the simulated part.
const (
	FlashSize  = 1 << 20 // 1 MiB
	PageSize   = 256
	SectorSize = 4096
)

// DefaultJEDECID is the ID returned for RDID: a plausible 8 Mbit part.
var DefaultJEDECID = [3]byte{0xEF, 0x40, 0x14}

// statusWEL is the write-enable-latch bit of the status register.
const statusWEL = 0x02

// VirtualFlash simulates a SPI NOR flash chip behind a serprog.Bus. Every
// Transfer is one chip-select-scoped transaction: the first write byte is
// the flash opcode, reads clock out from wherever the address landed.
//
// The zero value is not usable; construct with New. A fresh chip is fully
// erased (0xFF), output drivers enabled, clocked per the default divisor
// mapping.
type VirtualFlash struct {
	transferErr   error
	mem           []byte
	Transfers     [][]byte
	jedecID       [3]byte
	mu            sync.Mutex
	frequencyHz   uint32
	baseClockHz   uint32
	status        byte
	outputEnabled bool
}

// New creates an erased virtual flash.
func New() *VirtualFlash {
	f := &VirtualFlash{
		mem:           make([]byte, FlashSize),
		jedecID:       DefaultJEDECID,
		baseClockHz:   serprog.DefaultBaseClockHz,
		frequencyHz:   serprog.DefaultFrequencyHz,
		outputEnabled: true,
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	return f
}

// SetJEDECID overrides the RDID response.
func (f *VirtualFlash) SetJEDECID(id [3]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jedecID = id
}

// FailNextTransfer makes the next Transfer return err, simulating a bus
// fault. The failure is one-shot.
func (f *VirtualFlash) FailNextTransfer(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferErr = err
}

// FrequencyHz reports the currently applied SPI clock.
func (f *VirtualFlash) FrequencyHz() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frequencyHz
}

// OutputEnabled reports the simulated output-driver state.
func (f *VirtualFlash) OutputEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputEnabled
}

// ReadMemory copies out a region of the simulated array for assertions.
func (f *VirtualFlash) ReadMemory(addr, n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, n)
	copy(out, f.mem[addr:addr+n])
	return out
}

// SetFrequency implements serprog.Bus using the shared divisor mapping.
func (f *VirtualFlash) SetFrequency(hz uint32) (uint32, error) {
	achieved, err := serprog.ClosestFrequency(f.baseClockHz, hz)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frequencyHz = achieved
	return achieved, nil
}

// SetOutputEnabled implements serprog.Bus.
func (f *VirtualFlash) SetOutputEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputEnabled = enabled
	return nil
}

// Transfer implements serprog.Bus. It records the write bytes for test
// assertions, then interprets them as a SPI NOR transaction.
func (f *VirtualFlash) Transfer(write []byte, readLen int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transferErr != nil {
		err := f.transferErr
		f.transferErr = nil
		return nil, err
	}
	if !f.outputEnabled {
		return nil, serprog.ErrOutputDisabled
	}

	f.Transfers = append(f.Transfers, append([]byte(nil), write...))

	read := make([]byte, readLen)
	if len(write) == 0 {
		// Read phase with no command clocks out whatever the bus floats
		// to; a real MISO line idles high with a pull-up.
		for i := range read {
			read[i] = 0xFF
		}
		return read, nil
	}

	f.execute(write, read)
	return read, nil
}

// execute interprets one CS-scoped transaction against the chip model.
func (f *VirtualFlash) execute(write, read []byte) {
	switch write[0] {
	case opReadJEDECID:
		for i := range read {
			read[i] = f.jedecID[i%len(f.jedecID)]
		}
	case opReadStatus:
		for i := range read {
			read[i] = f.status
		}
	case opWriteEnable:
		f.status |= statusWEL
	case opWriteDisable:
		f.status &^= statusWEL
	case opRead:
		if len(write) < 4 {
			return
		}
		addr := addr24(write[1:4])
		// Bytes written after the address are dummy clocks; the read
		// phase continues from addr.
		addr += len(write) - 4
		for i := range read {
			read[i] = f.mem[(addr+i)%FlashSize]
		}
	case opPageProgram:
		f.pageProgram(write)
	case opSectorErase:
		f.sectorErase(write)
	case opChipErase, opChipEraseAlt:
		f.chipErase()
	default:
		// Unknown flash opcodes read back erased bus.
		for i := range read {
			read[i] = 0xFF
		}
	}
}

func (f *VirtualFlash) pageProgram(write []byte) {
	if f.status&statusWEL == 0 || len(write) < 5 {
		return
	}
	addr := addr24(write[1:4])
	page := addr / PageSize
	for i, b := range write[4:] {
		// Page program wraps within the page and can only clear bits.
		dst := page*PageSize + (addr+i)%PageSize
		f.mem[dst] &= b
	}
	f.status &^= statusWEL
}

func (f *VirtualFlash) sectorErase(write []byte) {
	if f.status&statusWEL == 0 || len(write) < 4 {
		return
	}
	start := (addr24(write[1:4]) / SectorSize) * SectorSize
	for i := start; i < start+SectorSize; i++ {
		f.mem[i] = 0xFF
	}
	f.status &^= statusWEL
}

func (f *VirtualFlash) chipErase() {
	if f.status&statusWEL == 0 {
		return
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	f.status &^= statusWEL
}

// addr24 decodes the big-endian 24-bit address used by SPI NOR commands.
func addr24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
