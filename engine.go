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
	"context"
	"errors"
	"io"

	"github.com/ZaparooProject/go-serprog/internal/ring"
)

// Engine wires the full pipeline over one link: a reader goroutine fills
// the inbound ring and a writer goroutine drains the outbound ring (the
// link I/O task), while the protocol task runs decode, dispatch and encode
// strictly single-threaded. Session and Bus are only ever touched from the
// protocol task, so their mutual exclusion is structural rather than
// enforced with locks.
type Engine struct {
	link       io.ReadWriter
	bus        Bus
	session    *Session
	dispatcher *Dispatcher
	inbound    *ring.Buffer
	outbound   *ring.Buffer
	name       string
	port       string
	bufferSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBufferSize overrides the advertised Q_SERBUF payload budget, which
// also sizes both transport rings.
func WithBufferSize(n int) Option {
	return func(e *Engine) { e.bufferSize = n }
}

// WithProgrammerName overrides the Q_PGMNAME identifier.
func WithProgrammerName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithPortName attaches a port identifier to transport errors for
// diagnostics; it has no protocol-visible effect.
func WithPortName(port string) Option {
	return func(e *Engine) { e.port = port }
}

// New creates an engine serving the serprog protocol on link, executing
// SPI transactions on bus.
func New(link io.ReadWriter, bus Bus, opts ...Option) (*Engine, error) {
	if link == nil {
		return nil, errors.New("serprog: nil link")
	}
	if bus == nil {
		return nil, errors.New("serprog: nil bus")
	}

	e := &Engine{
		link:       link,
		bus:        bus,
		bufferSize: DefaultBufferSize,
		name:       DefaultProgrammerName,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bufferSize <= 0 || e.bufferSize > 0xFFFF {
		return nil, errors.New("serprog: buffer size must fit the 16-bit Q_SERBUF field")
	}

	e.session = NewSession(e.bufferSize)
	e.dispatcher = NewDispatcher(e.session, bus, e.name)
	// Outbound gets headroom for the status byte on top of a maximal
	// O_SPIOP read payload.
	e.inbound = ring.New(e.bufferSize + 64)
	e.outbound = ring.New(e.bufferSize + 64)
	return e, nil
}

// Session exposes the negotiated state, primarily for tests and status
// reporting. Reading it while Serve is running races with the protocol
// task; callers are expected to look only after Serve returns.
func (e *Engine) Session() *Session {
	return e.session
}

// Serve runs the engine until ctx is cancelled, the link reports EOF, or
// a transport fault occurs. An inbound overrun (the protocol task falling
// behind the link) is returned as a *TransportError wrapping
// ErrBufferOverrun - a flow-control failure, distinguishable from a host
// disconnect, and never papered over by dropping bytes.
//
// Serve does not close the link: the caller owns it, and closing it is
// also how a blocked link read is interrupted.
func (e *Engine) Serve(ctx context.Context) error {
	errc := make(chan error, 3)

	go func() { errc <- e.fillLoop() }()
	go func() { errc <- e.drainLoop() }()
	go func() { errc <- e.protocolLoop() }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}

	// Wake every blocked ring operation so the remaining goroutines exit.
	e.inbound.Close()
	e.outbound.Close()

	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fillLoop is the receive half of the link I/O task. It must never stall
// on the protocol task, so it uses TryWrite: a full inbound ring is a
// backpressure failure surfaced as an overrun fault, not a place to wait.
func (e *Engine) fillLoop() error {
	buf := make([]byte, 4096)
	for {
		n, err := e.link.Read(buf)
		if n > 0 {
			if werr := e.inbound.TryWrite(buf[:n]); werr != nil {
				if errors.Is(werr, ring.ErrOverrun) {
					return NewOverrunError(e.port)
				}
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return NewTransportReadError("fill", e.port, err)
		}
	}
}

// drainLoop is the transmit half of the link I/O task.
func (e *Engine) drainLoop() error {
	buf := make([]byte, 4096)
	for {
		n, err := e.outbound.Read(buf)
		if err != nil {
			// Ring closed: protocol task is done.
			return io.EOF
		}
		if _, err := writeFull(e.link, buf[:n]); err != nil {
			return NewTransportWriteError("drain", e.port, err)
		}
	}
}

// protocolLoop runs decode, dispatch, encode for one command at a time.
// Framing errors cost the host one NAK and realignment via NOPs; anything
// else ends the session.
func (e *Engine) protocolLoop() error {
	dec := NewDecoder(e.inbound, e.bufferSize)
	enc := NewEncoder(e.outbound)

	for {
		cmd, err := dec.Next()
		if err != nil {
			if IsFraming(err) {
				Debugf("protocol: %v", err)
				if encErr := enc.Encode(Nak()); encErr != nil {
					return encErr
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ring.ErrClosed) {
				return io.EOF
			}
			return err
		}

		if err := enc.Encode(e.dispatcher.Execute(cmd)); err != nil {
			return err
		}
	}
}

// writeFull writes all of p, looping over short writes. Serial ports are
// allowed to accept fewer bytes than offered.
func writeFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
