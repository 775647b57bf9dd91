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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp Response
		want []byte
	}{
		{
			name: "Bare_ACK",
			resp: Ack(nil),
			want: []byte{StatusACK},
		},
		{
			name: "ACK_With_Payload",
			resp: Ack([]byte{0x01, 0x00}),
			want: []byte{StatusACK, 0x01, 0x00},
		},
		{
			name: "Bare_NAK",
			resp: Nak(),
			want: []byte{StatusNAK},
		},
		{
			name: "SyncNop_Pair",
			resp: Response{Status: StatusNAK, Payload: []byte{StatusACK}},
			want: []byte{StatusNAK, StatusACK},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			require.NoError(t, enc.Encode(tt.resp))
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestLittleEndianHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x34, 0x12}, putLE16(nil, 0x1234))
	assert.Equal(t, []byte{0x56, 0x34, 0x12}, putLE24(nil, 0x123456))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, putLE32(nil, 0x12345678))
	assert.Equal(t, uint32(0x123456), le24([]byte{0x56, 0x34, 0x12}))
	assert.Equal(t, uint32(0x12345678), le32([]byte{0x78, 0x56, 0x34, 0x12}))

	// putLE24 truncates to the low 24 bits.
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, putLE24(nil, 1<<24))
}

func TestHeaderLen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opcode  Opcode
		wantLen int
		wantOK  bool
	}{
		{name: "NOP", opcode: CmdNop, wantLen: 0, wantOK: true},
		{name: "SyncNop", opcode: CmdSyncNop, wantLen: 0, wantOK: true},
		{name: "Set_Bus_Type", opcode: CmdSBusType, wantLen: 1, wantOK: true},
		{name: "Set_Pin_State", opcode: CmdSPinState, wantLen: 1, wantOK: true},
		{name: "Set_Frequency", opcode: CmdSSpiFreq, wantLen: 4, wantOK: true},
		{name: "SPI_Operation", opcode: CmdOSpiOp, wantLen: 6, wantOK: true},
		{name: "Unimplemented_Query", opcode: CmdQChipSize, wantOK: false},
		{name: "Garbage", opcode: 0xFF, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, ok := headerLen(tt.opcode)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantLen, n)
			}
		})
	}
}

func TestSession_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSession(DefaultBufferSize)
	assert.Equal(t, BusNone, s.BusType)
	assert.Equal(t, uint32(DefaultFrequencyHz), s.SPIFrequencyHz)
	assert.False(t, s.OutputDriverEnabled)
	assert.Equal(t, uint32(DefaultBufferSize/2), s.WriteMax())
	assert.Equal(t, uint32(DefaultBufferSize/2), s.ReadMax())
}
