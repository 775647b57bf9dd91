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

// DefaultBaseClockHz is the SPI peripheral input clock of the reference
// board (80 MHz system clock feeding the SPI prescaler).
const DefaultBaseClockHz uint32 = 80_000_000

// minDivisorShift/maxDivisorShift bound the peripheral's power-of-two
// prescaler: achievable clocks are baseHz/2 down to baseHz/256.
const (
	minDivisorShift = 1
	maxDivisorShift = 8
)

// ClosestFrequency maps a requested SPI clock to the closest frequency the
// peripheral can generate without exceeding the request. Exceeding the
// request is never acceptable: the host chose it for the flash chip's
// electrical margins. The mapping is deterministic and monotone in the
// request, which is what makes the achieved value meaningful to the host.
//
// A zero request is invalid per the wire protocol; a request below the
// slowest achievable clock cannot be honored without exceeding it.
func ClosestFrequency(baseHz, requestedHz uint32) (uint32, error) {
	if requestedHz == 0 {
		return 0, ErrFrequencyInvalid
	}
	if baseHz == 0 {
		baseHz = DefaultBaseClockHz
	}

	for shift := minDivisorShift; shift <= maxDivisorShift; shift++ {
		achieved := baseHz >> shift
		if achieved <= requestedHz {
			return achieved, nil
		}
	}
	return 0, ErrFrequencyTooLow
}
