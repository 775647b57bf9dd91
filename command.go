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

// Command is one complete, length-validated frame from the host. The
// decoder never hands out a Command until its full payload has arrived,
// so dispatch code can treat every field as final.
//
// WriteLen and ReadLen are only meaningful for CmdOSpiOp; Payload carries
// the fixed parameter bytes of set-commands and the write bytes of
// CmdOSpiOp (always exactly WriteLen of them).
type Command struct {
	Payload  []byte
	Opcode   Opcode
	WriteLen uint32
	ReadLen  uint32
}

// headerLen returns the fixed header size that follows an opcode byte and
// whether the opcode is one this programmer recognizes at framing level.
// For CmdOSpiOp the header is the two 3-byte little-endian length fields;
// the variable payload length is derived from them afterwards.
func headerLen(op Opcode) (int, bool) {
	switch op {
	case CmdNop, CmdQIface, CmdQCmdMap, CmdQPgmName, CmdQSerBuf,
		CmdQBusType, CmdQWrnMaxLen, CmdQRdnMaxLen, CmdSyncNop:
		return 0, true
	case CmdSBusType, CmdSPinState:
		return 1, true
	case CmdSSpiFreq:
		return 4, true
	case CmdOSpiOp:
		return 6, true
	default:
		return 0, false
	}
}

// le24 decodes a 3-byte little-endian length field.
func le24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// putLE16 appends v in little-endian order.
func putLE16(dst []byte, v uint16) []byte {
	return append(dst, byte(v), byte(v>>8))
}

// putLE24 appends the low 24 bits of v in little-endian order.
func putLE24(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16))
}

// putLE32 appends v in little-endian order.
func putLE32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// le32 decodes a 4-byte little-endian field.
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
