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

package flashtest

import (
	"fmt"
	"io"
)

// Link is one end of an in-memory duplex byte stream, standing in for the
// UART between host tool and programmer.
type Link struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// Read implements io.Reader.
func (l *Link) Read(p []byte) (int, error) {
	return l.r.Read(p) //nolint:wrapcheck // transparent pipe end
}

// Write implements io.Writer.
func (l *Link) Write(p []byte) (int, error) {
	return l.w.Write(p) //nolint:wrapcheck // transparent pipe end
}

// Close closes both directions, unblocking any reader or writer.
func (l *Link) Close() error {
	_ = l.w.Close()
	return l.r.Close() //nolint:wrapcheck // transparent pipe end
}

// NewLinkPair returns the two ends of a connected duplex link: hand the
// device end to an Engine and drive the host end from the test.
func NewLinkPair() (host, device *Link) {
	hostRead, deviceWrite := io.Pipe()
	deviceRead, hostWrite := io.Pipe()
	host = &Link{r: hostRead, w: hostWrite}
	device = &Link{r: deviceRead, w: deviceWrite}
	return host, device
}

// Host wraps the host end of a link with the blocking send/expect helpers
// engine tests use to script wire exchanges.
type Host struct {
	link io.ReadWriter
}

// NewHost creates a host driver over the given link end.
func NewHost(link io.ReadWriter) *Host {
	return &Host{link: link}
}

// Send writes raw command bytes to the programmer.
func (h *Host) Send(data ...byte) error {
	if _, err := h.link.Write(data); err != nil {
		return fmt.Errorf("host send: %w", err)
	}
	return nil
}

// Recv reads exactly n response bytes.
func (h *Host) Recv(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(h.link, buf); err != nil {
		return nil, fmt.Errorf("host recv: %w", err)
	}
	return buf, nil
}
