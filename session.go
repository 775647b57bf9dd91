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

// Session holds the protocol parameters negotiated with the host. It is
// owned by the dispatcher and only ever touched from the protocol task, so
// it carries no locking. A fresh Session is safe defaults: no bus selected,
// reference clock, output drivers off until the host asks for them.
type Session struct {
	BusType             BusType
	SPIFrequencyHz      uint32
	BufferSize          int
	OutputDriverEnabled bool
}

// NewSession returns a session at power-on defaults. bufferSize is the
// Q_SERBUF constant advertised for the session's lifetime; it never changes
// afterwards (buffer size and clock rate are independent axes).
func NewSession(bufferSize int) *Session {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Session{
		BusType:        BusNone,
		SPIFrequencyHz: DefaultFrequencyHz,
		BufferSize:     bufferSize,
	}
}

// WriteMax is the largest O_SPIOP write length accepted, as advertised
// through Q_WRNMAXLEN.
func (s *Session) WriteMax() uint32 {
	return uint32(s.BufferSize / 2)
}

// ReadMax is the largest O_SPIOP read length accepted, as advertised
// through Q_RDNMAXLEN.
func (s *Session) ReadMax() uint32 {
	return uint32(s.BufferSize / 2)
}
