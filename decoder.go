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
	"fmt"
	"io"
)

// decoderState tracks where the framing state machine is between reads.
type decoderState int

const (
	awaitingOpcode decoderState = iota
	awaitingFixedHeader
	awaitingVariablePayload
	frameComplete
)

// Decoder assembles complete serprog command frames from a byte stream.
// It consumes from r (typically the inbound transport ring) and produces
// one Command per call to Next.
//
// Framing errors are surfaced as *FramingError with the decoder already
// realigned: an unknown opcode discards exactly that one byte, an
// oversized length field discards only the frame header. Everything else
// in the stream stays put so NOP/SYNCNOP resync keeps working.
type Decoder struct {
	r          io.Reader
	writeMax   uint32
	readMax    uint32
	bufferSize uint32
	state      decoderState
	header     [6]byte
}

// NewDecoder creates a decoder reading from r. bufferSize is the
// advertised Q_SERBUF value: the combined write+read length of a single
// SPI operation may not exceed it, and each direction is individually
// capped at half of it (the Q_WRNMAXLEN / Q_RDNMAXLEN contract).
func NewDecoder(r io.Reader, bufferSize int) *Decoder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Decoder{
		r:          r,
		bufferSize: uint32(bufferSize),
		writeMax:   uint32(bufferSize / 2),
		readMax:    uint32(bufferSize / 2),
	}
}

// Next blocks until a complete command frame has been received and
// returns it. A *FramingError return means one NAK should be emitted and
// decoding can continue; any other error is a transport failure and the
// stream is done.
func (d *Decoder) Next() (Command, error) {
	d.state = awaitingOpcode

	op, err := d.readOpcode()
	if err != nil {
		return Command{}, err
	}

	n, known := headerLen(op)
	if !known {
		// Discard exactly the one opcode byte (already consumed) so the
		// host can realign with a NOP train.
		return Command{}, &FramingError{Opcode: op, Err: ErrUnknownOpcode}
	}

	cmd := Command{Opcode: op}
	if n == 0 {
		d.state = frameComplete
		return cmd, nil
	}

	d.state = awaitingFixedHeader
	if _, err := io.ReadFull(d.r, d.header[:n]); err != nil {
		return Command{}, readErr("header", err)
	}

	if op != CmdOSpiOp {
		cmd.Payload = append([]byte(nil), d.header[:n]...)
		d.state = frameComplete
		return cmd, nil
	}

	cmd.WriteLen = le24(d.header[0:3])
	cmd.ReadLen = le24(d.header[3:6])
	if err := d.checkLengths(cmd.WriteLen, cmd.ReadLen); err != nil {
		// The claimed payload is never awaited: lengths beyond the
		// advertised budget mean the host broke the Q_SERBUF contract
		// and blindly buffering would defeat the bounded-memory design.
		return Command{}, &FramingError{Opcode: op, Err: err}
	}

	if cmd.WriteLen > 0 {
		d.state = awaitingVariablePayload
		cmd.Payload = make([]byte, cmd.WriteLen)
		if _, err := io.ReadFull(d.r, cmd.Payload); err != nil {
			return Command{}, readErr("payload", err)
		}
	}

	d.state = frameComplete
	return cmd, nil
}

func (d *Decoder) readOpcode() (Opcode, error) {
	var b [1]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, readErr("opcode", err)
	}
	return Opcode(b[0]), nil
}

func (d *Decoder) checkLengths(writeLen, readLen uint32) error {
	if writeLen > d.writeMax || readLen > d.readMax {
		return ErrPayloadTooLarge
	}
	if writeLen+readLen > d.bufferSize {
		return ErrPayloadTooLarge
	}
	return nil
}

// readErr passes io.EOF through untouched so callers can tell a cleanly
// ended stream from a failed one. EOF inside a frame is an unexpected cut,
// reported as such.
func readErr(stage string, err error) error {
	if err == io.EOF && stage == "opcode" {
		return io.EOF
	}
	return fmt.Errorf("%s: %w", stage, err)
}
