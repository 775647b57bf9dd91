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

// Response is one frame back to the host: a status byte followed by a
// payload whose length is implied by the command that produced it. NAK
// responses carry no payload, except SYNCNOP's mandated NAK+ACK pair
// which is modeled as a NAK whose payload is the trailing ACK byte.
type Response struct {
	Payload []byte
	Status  byte
}

// Ack builds an ACK response carrying payload (which may be nil).
func Ack(payload []byte) Response {
	return Response{Status: StatusACK, Payload: payload}
}

// Nak builds a bare NAK response.
func Nak() Response {
	return Response{Status: StatusNAK}
}

// Encoder serializes response frames onto the outbound transport. The
// writer is expected to block when the outbound buffer is momentarily
// full; the encoder never drops bytes.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the status byte and payload of resp. A short write is a
// transport failure; responses are not self-delimiting so a partial frame
// would desync the host permanently.
func (e *Encoder) Encode(resp Response) error {
	if _, err := e.w.Write([]byte{resp.Status}); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if len(resp.Payload) == 0 {
		return nil
	}
	if _, err := e.w.Write(resp.Payload); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	return nil
}
