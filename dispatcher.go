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

// Bus is the SPI executor behind the dispatcher. Implementations scope
// chip-select inside Transfer: CS is asserted, the write bytes clocked
// out, readLen dummy bytes clocked for the read phase, and CS deasserted
// before Transfer returns. There is no way to hold CS across calls, which
// is what makes a half-finished transaction impossible by construction.
//
// The dispatcher calls every method from a single goroutine, so
// implementations only need internal locking if they are shared elsewhere.
type Bus interface {
	// Transfer performs one chip-select-scoped transaction and returns
	// exactly readLen bytes sampled during the read phase.
	Transfer(write []byte, readLen int) ([]byte, error)

	// SetFrequency applies the closest generatable SPI clock not
	// exceeding hz and returns the achieved value.
	SetFrequency(hz uint32) (uint32, error)

	// SetOutputEnabled drives or tri-states the SPI output pins
	// (SCK/MOSI/CS) and sequences the external power-control pin. Bus
	// configuration is not disturbed either way.
	SetOutputEnabled(enabled bool) error
}

// handler executes one decoded command against the session and bus.
type handler func(*Dispatcher, Command) Response

// handlers is the dispatch table. Q_CMDMAP is derived from this map's
// keys, so the advertised bitmap and the implemented set cannot drift
// apart.
var handlers = map[Opcode]handler{
	CmdNop:        (*Dispatcher).nop,
	CmdQIface:     (*Dispatcher).queryInterface,
	CmdQCmdMap:    (*Dispatcher).queryCommandMap,
	CmdQPgmName:   (*Dispatcher).queryProgrammerName,
	CmdQSerBuf:    (*Dispatcher).querySerialBuffer,
	CmdQBusType:   (*Dispatcher).queryBusTypes,
	CmdQWrnMaxLen: (*Dispatcher).queryWriteMax,
	CmdQRdnMaxLen: (*Dispatcher).queryReadMax,
	CmdSyncNop:    (*Dispatcher).syncNop,
	CmdSBusType:   (*Dispatcher).setBusType,
	CmdOSpiOp:     (*Dispatcher).spiOperation,
	CmdSSpiFreq:   (*Dispatcher).setFrequency,
	CmdSPinState:  (*Dispatcher).setPinState,
}

// Dispatcher executes decoded commands. It exclusively owns the Session
// and is the only component that mutates it; the Bus is borrowed for the
// duration of each command. One command in flight, one response out, in
// order - the engine's protocol task enforces that by being the only
// caller.
type Dispatcher struct {
	session *Session
	bus     Bus
	name    string
	cmdMap  [CmdMapLen]byte
}

// NewDispatcher creates a dispatcher over session and bus. name is
// reported through Q_PGMNAME, truncated or null-padded to 16 bytes.
func NewDispatcher(session *Session, bus Bus, name string) *Dispatcher {
	if name == "" {
		name = DefaultProgrammerName
	}
	d := &Dispatcher{
		session: session,
		bus:     bus,
		name:    name,
	}
	for op := range handlers {
		d.cmdMap[op/8] |= 1 << (op % 8)
	}
	return d
}

// Supports reports whether the dispatcher implements op. It is the same
// predicate Q_CMDMAP advertises.
func (d *Dispatcher) Supports(op Opcode) bool {
	_, ok := handlers[op]
	return ok
}

// Execute runs one command and returns its response frame. Unsupported
// opcodes get a bare NAK; so do commands whose session preconditions or
// parameters fail. Execute never mutates the session on a NAK path except
// where the command's own semantics already took effect.
func (d *Dispatcher) Execute(cmd Command) Response {
	h, ok := handlers[cmd.Opcode]
	if !ok {
		Debugf("dispatch: unsupported opcode 0x%02X", byte(cmd.Opcode))
		return Nak()
	}
	return h(d, cmd)
}

func (d *Dispatcher) nop(Command) Response {
	return Ack(nil)
}

func (d *Dispatcher) queryInterface(Command) Response {
	return Ack(putLE16(nil, InterfaceVersion))
}

func (d *Dispatcher) queryCommandMap(Command) Response {
	return Ack(d.cmdMap[:])
}

func (d *Dispatcher) queryProgrammerName(Command) Response {
	name := make([]byte, PgmNameLen)
	copy(name, d.name)
	return Ack(name)
}

func (d *Dispatcher) querySerialBuffer(Command) Response {
	return Ack(putLE16(nil, uint16(d.session.BufferSize)))
}

func (d *Dispatcher) queryBusTypes(Command) Response {
	return Ack([]byte{byte(BusSPI)})
}

func (d *Dispatcher) queryWriteMax(Command) Response {
	return Ack(putLE24(nil, d.session.WriteMax()))
}

func (d *Dispatcher) queryReadMax(Command) Response {
	return Ack(putLE24(nil, d.session.ReadMax()))
}

// syncNop answers the resync handshake: a NAK frame immediately followed
// by an ACK frame, on the wire 0x15 0x06.
func (d *Dispatcher) syncNop(Command) Response {
	return Response{Status: StatusNAK, Payload: []byte{StatusACK}}
}

func (d *Dispatcher) setBusType(cmd Command) Response {
	if len(cmd.Payload) != 1 {
		return Nak()
	}
	requested := BusType(cmd.Payload[0])
	if requested != BusSPI {
		Debugf("dispatch: refusing bus type bitmap 0x%02X", byte(requested))
		return Nak()
	}
	d.session.BusType = BusSPI
	return Ack(nil)
}

func (d *Dispatcher) setFrequency(cmd Command) Response {
	if len(cmd.Payload) != 4 {
		return Nak()
	}
	requested := le32(cmd.Payload)
	achieved, err := d.bus.SetFrequency(requested)
	if err != nil {
		Debugf("dispatch: set frequency %d Hz: %v", requested, err)
		return Nak()
	}
	d.session.SPIFrequencyHz = achieved
	return Ack(putLE32(nil, achieved))
}

// setPinState toggles the output drivers without touching bus type or
// frequency, so the board under test can be power-cycled while the
// programmer stays attached.
func (d *Dispatcher) setPinState(cmd Command) Response {
	if len(cmd.Payload) != 1 {
		return Nak()
	}
	enable := cmd.Payload[0] != 0
	if err := d.bus.SetOutputEnabled(enable); err != nil {
		Debugf("dispatch: pin state enable=%v: %v", enable, err)
		return Nak()
	}
	d.session.OutputDriverEnabled = enable
	return Ack(nil)
}

// spiOperation is the hot path: one chip-select-scoped write-then-read
// transaction whose read bytes become the response payload.
func (d *Dispatcher) spiOperation(cmd Command) Response {
	if d.session.BusType != BusSPI {
		Debugf("dispatch: O_SPIOP before bus type set")
		return Nak()
	}
	if err := d.checkOperationSize(cmd); err != nil {
		return Nak()
	}

	Debugf("dispatch: transfer w=%d r=%d [%s]", cmd.WriteLen, cmd.ReadLen, FormatHexBytes(cmd.Payload))
	read, err := d.bus.Transfer(cmd.Payload, int(cmd.ReadLen))
	if err != nil {
		Debugf("dispatch: transfer failed: %v", err)
		return Nak()
	}
	return Ack(read)
}

// checkOperationSize re-validates the decoder's length guarantees at the
// dispatch boundary. The decoder already refuses oversized frames; this
// keeps the dispatcher safe against any other Command producer (tests,
// future transports).
func (d *Dispatcher) checkOperationSize(cmd Command) error {
	if cmd.WriteLen > d.session.WriteMax() || cmd.ReadLen > d.session.ReadMax() {
		return ErrPayloadTooLarge
	}
	if cmd.WriteLen+cmd.ReadLen > uint32(d.session.BufferSize) {
		return ErrPayloadTooLarge
	}
	if uint32(len(cmd.Payload)) != cmd.WriteLen {
		return ErrInvalidParameter
	}
	return nil
}
