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

// Package serprog implements the device side of the serprog wire protocol,
// turning a serial link into a SPI flash programmer that tools like flashrom
// can drive.
//
// The Engine runs the full pipeline: bytes arrive from the link into a
// bounded inbound buffer, the Decoder assembles them into complete commands,
// the Dispatcher executes each command against the negotiated Session state
// and a Bus (the SPI executor), and the Encoder serializes ACK/NAK responses
// back through a bounded outbound buffer. Hosts may pipeline commands;
// responses are emitted strictly in command order.
//
// Bus implementations live in subpackages: bus/periphspi drives real
// hardware through periph.io, and internal/flashtest provides an in-memory
// SPI NOR flash for tests. link/serial opens the host-facing UART.
package serprog
