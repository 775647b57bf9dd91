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

// Response status bytes. Every response frame starts with one of these;
// NAK frames carry no further payload (SYNCNOP's NAK+ACK pair is the one
// exception, mandated by the wire protocol).
const (
	StatusACK byte = 0x06
	StatusNAK byte = 0x15
)

// Opcode identifies a serprog command on the wire.
type Opcode byte

// The full serprog opcode set. Values are fixed by the serprog wire
// specification and must never be renumbered. Opcodes without a handler
// in the dispatch table are answered with a bare NAK.
const (
	CmdNop        Opcode = 0x00 // No operation
	CmdQIface     Opcode = 0x01 // Query interface version
	CmdQCmdMap    Opcode = 0x02 // Query supported commands bitmap
	CmdQPgmName   Opcode = 0x03 // Query programmer name
	CmdQSerBuf    Opcode = 0x04 // Query serial buffer size
	CmdQBusType   Opcode = 0x05 // Query supported bus types
	CmdQChipSize  Opcode = 0x06 // Query supported chip size (2^n format)
	CmdQOpBuf     Opcode = 0x07 // Query operation buffer size
	CmdQWrnMaxLen Opcode = 0x08 // Query write-n maximum length
	CmdRByte      Opcode = 0x09 // Read a single byte
	CmdRNBytes    Opcode = 0x0A // Read n bytes
	CmdOInit      Opcode = 0x0B // Initialize operation buffer
	CmdOWriteB    Opcode = 0x0C // Write opbuf: byte with address
	CmdOWriteN    Opcode = 0x0D // Write opbuf: write-n
	CmdODelay     Opcode = 0x0E // Write opbuf: udelay
	CmdOExec      Opcode = 0x0F // Execute operation buffer
	CmdSyncNop    Opcode = 0x10 // Special no-operation that returns NAK+ACK
	CmdQRdnMaxLen Opcode = 0x11 // Query read-n maximum length
	CmdSBusType   Opcode = 0x12 // Set used bus type
	CmdOSpiOp     Opcode = 0x13 // Perform SPI operation
	CmdSSpiFreq   Opcode = 0x14 // Set SPI clock frequency
	CmdSPinState  Opcode = 0x15 // Enable/disable output drivers
)

// BusType is the wire bitmap of bus kinds. Only SPI is implemented; the
// others exist so Q_BUSTYPE and S_BUSTYPE validation match the protocol's
// encoding exactly.
type BusType byte

const (
	// BusNone means no bus has been negotiated yet.
	BusNone BusType = 0x00
	// BusParallel is the parallel flash bit (unsupported).
	BusParallel BusType = 0x01
	// BusLPC is the LPC bus bit (unsupported).
	BusLPC BusType = 0x02
	// BusFWH is the firmware hub bit (unsupported).
	BusFWH BusType = 0x04
	// BusSPI is the SPI bus bit, the only bus this programmer drives.
	BusSPI BusType = 0x08
)

// InterfaceVersion is the protocol version reported by Q_IFACE.
const InterfaceVersion uint16 = 1

// Fixed response payload sizes mandated by the wire protocol.
const (
	CmdMapLen  = 32 // Q_CMDMAP bitmap covers 256 opcodes
	PgmNameLen = 16 // Q_PGMNAME name is null padded to this length
)

// DefaultProgrammerName is reported by Q_PGMNAME unless overridden.
// Names longer than PgmNameLen are truncated at encode time.
const DefaultProgrammerName = "go-serprog"

// DefaultBufferSize is the per-operation payload budget advertised through
// Q_SERBUF. The host is contractually required to keep every O_SPIOP's
// combined write+read length at or below this value. It also sizes the
// transport rings, so overruns indicate a host violating the contract.
const DefaultBufferSize = 16384

// DefaultFrequencyHz is the SPI clock used until the host issues
// S_SPI_FREQ. Matches the reference hardware bring-up value.
const DefaultFrequencyHz = 1_000_000
