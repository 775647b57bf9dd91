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

package ring

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_WriteThenRead(t *testing.T) {
	t.Parallel()

	b := New(16)
	n, err := b.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, b.Len())

	out := make([]byte, 8)
	n, err = b.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out[:n])
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_WrapAround(t *testing.T) {
	t.Parallel()

	b := New(8)
	out := make([]byte, 8)

	// Push the indices around the wrap point several times.
	for i := 0; i < 10; i++ {
		data := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3), byte(i + 4)}
		require.NoError(t, b.TryWrite(data))
		n, err := b.Read(out)
		require.NoError(t, err)
		assert.Equal(t, data, out[:n])
	}
}

func TestBuffer_TryWrite_Overrun(t *testing.T) {
	t.Parallel()

	b := New(4)
	require.NoError(t, b.TryWrite([]byte{1, 2, 3}))

	// All or nothing: the failed write must not consume partial space.
	err := b.TryWrite([]byte{4, 5})
	require.ErrorIs(t, err, ErrOverrun)
	assert.Equal(t, 3, b.Len())

	require.NoError(t, b.TryWrite([]byte{4}))
	assert.Equal(t, 4, b.Len())
}

func TestBuffer_WriteBlocksUntilSpace(t *testing.T) {
	t.Parallel()

	b := New(4)
	require.NoError(t, b.TryWrite([]byte{1, 2, 3, 4}))

	done := make(chan error, 1)
	go func() {
		_, err := b.Write([]byte{5, 6})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("write completed against a full buffer")
	case <-time.After(20 * time.Millisecond):
	}

	out := make([]byte, 4)
	n, err := b.Read(out)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after space freed")
	}

	n, err = b.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, out[:n])
}

func TestBuffer_ReadBlocksUntilData(t *testing.T) {
	t.Parallel()

	b := New(4)
	got := make(chan []byte, 1)
	go func() {
		out := make([]byte, 4)
		n, err := b.Read(out)
		if err != nil {
			got <- nil
			return
		}
		got <- out[:n]
	}()

	select {
	case <-got:
		t.Fatal("read completed against an empty buffer")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, b.TryWrite([]byte{9}))
	select {
	case data := <-got:
		assert.Equal(t, []byte{9}, data)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after data arrived")
	}
}

func TestBuffer_CloseDrainsThenEOF(t *testing.T) {
	t.Parallel()

	b := New(8)
	require.NoError(t, b.TryWrite([]byte{1, 2}))
	b.Close()

	out := make([]byte, 8)
	n, err := b.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, out[:n])

	_, err = b.Read(out)
	assert.ErrorIs(t, err, io.EOF)

	err = b.TryWrite([]byte{3})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Write([]byte{3})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuffer_CloseUnblocksReader(t *testing.T) {
	t.Parallel()

	b := New(4)
	done := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("blocked reader was not woken by Close")
	}
}

func TestBuffer_SingleProducerSingleConsumer(t *testing.T) {
	t.Parallel()

	const total = 64 * 1024
	b := New(97) // odd capacity forces frequent wraps

	var want bytes.Buffer
	go func() {
		chunk := make([]byte, 13)
		sent := 0
		for sent < total {
			n := len(chunk)
			if total-sent < n {
				n = total - sent
			}
			for i := 0; i < n; i++ {
				chunk[i] = byte(sent + i)
			}
			if _, err := b.Write(chunk[:n]); err != nil {
				return
			}
			sent += n
		}
		b.Close()
	}()

	for i := 0; i < total; i++ {
		want.WriteByte(byte(i))
	}

	var got bytes.Buffer
	out := make([]byte, 31)
	for {
		n, err := b.Read(out)
		if err != nil {
			break
		}
		got.Write(out[:n])
	}
	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestNew_PanicsOnInvalidCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-1) })
}
