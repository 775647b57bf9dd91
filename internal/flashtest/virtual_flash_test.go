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
	"errors"
	"testing"

	serprog "github.com/ZaparooProject/go-serprog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cmd(op byte, addr int, data ...byte) []byte {
	out := []byte{op, byte(addr >> 16), byte(addr >> 8), byte(addr)}
	return append(out, data...)
}

func TestVirtualFlash_JEDECID(t *testing.T) {
	t.Parallel()

	f := New()
	read, err := f.Transfer([]byte{opReadJEDECID}, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultJEDECID[:], read)

	f.SetJEDECID([3]byte{0xC2, 0x20, 0x16})
	read, err = f.Transfer([]byte{opReadJEDECID}, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC2, 0x20, 0x16}, read)
}

func TestVirtualFlash_FreshChipIsErased(t *testing.T) {
	t.Parallel()

	f := New()
	read, err := f.Transfer(cmd(opRead, 0x1234), 16)
	require.NoError(t, err)
	for _, b := range read {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestVirtualFlash_ProgramRequiresWriteEnable(t *testing.T) {
	t.Parallel()

	f := New()

	// Program without WEL is silently ignored, like the real part.
	_, err := f.Transfer(cmd(opPageProgram, 0x100, 0x00), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, f.ReadMemory(0x100, 1))

	_, err = f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opPageProgram, 0x100, 0x5A), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5A}, f.ReadMemory(0x100, 1))
}

func TestVirtualFlash_WELClearsAfterProgram(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)

	status, err := f.Transfer([]byte{opReadStatus}, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(statusWEL), status[0]&statusWEL)

	_, err = f.Transfer(cmd(opPageProgram, 0x0, 0xAA), 0)
	require.NoError(t, err)

	status, err = f.Transfer([]byte{opReadStatus}, 1)
	require.NoError(t, err)
	assert.Zero(t, status[0]&statusWEL, "WEL self-clears after a program cycle")
}

func TestVirtualFlash_ProgramOnlyClearsBits(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opPageProgram, 0x200, 0x0F), 0)
	require.NoError(t, err)

	// Second program over the same byte ANDs, it cannot set bits back.
	_, err = f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opPageProgram, 0x200, 0xF3), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, f.ReadMemory(0x200, 1))
}

func TestVirtualFlash_ProgramWrapsWithinPage(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)

	// Start two bytes before the page boundary with four data bytes: the
	// last two wrap to the start of the same page, not the next one.
	_, err = f.Transfer(cmd(opPageProgram, PageSize-2, 0x11, 0x22, 0x33, 0x44), 0)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x11, 0x22}, f.ReadMemory(PageSize-2, 2))
	assert.Equal(t, []byte{0x33, 0x44}, f.ReadMemory(0, 2))
	assert.Equal(t, []byte{0xFF}, f.ReadMemory(PageSize, 1))
}

func TestVirtualFlash_SectorErase(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opPageProgram, SectorSize+8, 0x00, 0x00), 0)
	require.NoError(t, err)

	// Erase addressed anywhere inside the sector wipes the whole sector.
	_, err = f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opSectorErase, SectorSize+100), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, f.ReadMemory(SectorSize+8, 2))
}

func TestVirtualFlash_ChipErase(t *testing.T) {
	t.Parallel()

	for _, op := range []byte{opChipErase, opChipEraseAlt} {
		f := New()
		_, err := f.Transfer([]byte{opWriteEnable}, 0)
		require.NoError(t, err)
		_, err = f.Transfer(cmd(opPageProgram, 0x8000, 0x00), 0)
		require.NoError(t, err)

		_, err = f.Transfer([]byte{opWriteEnable}, 0)
		require.NoError(t, err)
		_, err = f.Transfer([]byte{op}, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF}, f.ReadMemory(0x8000, 1), "opcode 0x%02X", op)
	}
}

func TestVirtualFlash_ReadWithDummyBytes(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer(cmd(opPageProgram, 0x40, 0x01, 0x02, 0x03), 0)
	require.NoError(t, err)

	// One dummy byte after the address shifts the read start by one.
	read, err := f.Transfer(append(cmd(opRead, 0x40), 0x00), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x03}, read)
}

func TestVirtualFlash_FailNextTransferIsOneShot(t *testing.T) {
	t.Parallel()

	f := New()
	fault := errors.New("bus fault")
	f.FailNextTransfer(fault)

	_, err := f.Transfer([]byte{opReadJEDECID}, 3)
	require.ErrorIs(t, err, fault)

	_, err = f.Transfer([]byte{opReadJEDECID}, 3)
	assert.NoError(t, err)
}

func TestVirtualFlash_OutputDisabled(t *testing.T) {
	t.Parallel()

	f := New()
	require.NoError(t, f.SetOutputEnabled(false))
	assert.False(t, f.OutputEnabled())

	_, err := f.Transfer([]byte{opReadJEDECID}, 3)
	assert.ErrorIs(t, err, serprog.ErrOutputDisabled)

	require.NoError(t, f.SetOutputEnabled(true))
	_, err = f.Transfer([]byte{opReadJEDECID}, 3)
	assert.NoError(t, err)
}

func TestVirtualFlash_SetFrequency(t *testing.T) {
	t.Parallel()

	f := New()
	achieved, err := f.SetFrequency(10_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint32(10_000_000), achieved)
	assert.Equal(t, achieved, f.FrequencyHz())

	_, err = f.SetFrequency(0)
	assert.ErrorIs(t, err, serprog.ErrFrequencyInvalid)
}

func TestVirtualFlash_RecordsTransfers(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Transfer([]byte{opWriteEnable}, 0)
	require.NoError(t, err)
	_, err = f.Transfer([]byte{opReadJEDECID}, 3)
	require.NoError(t, err)

	require.Len(t, f.Transfers, 2)
	assert.Equal(t, []byte{opWriteEnable}, f.Transfers[0])
	assert.Equal(t, []byte{opReadJEDECID}, f.Transfers[1])
}
