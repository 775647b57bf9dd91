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
	"os"
	"strings"
)

// debugEnabled controls whether debug logging is active.
var debugEnabled = false

func init() {
	if os.Getenv("SERPROG_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf prints debug information to stderr when debug mode is enabled.
// Protocol traffic is hot enough that anything heavier than a gated
// Fprintf would show up at 921600 baud.
func Debugf(format string, args ...any) {
	if !debugEnabled {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "DEBUG: %s\n", fmt.Sprintf(format, args...))
}

// SetDebugEnabled allows programmatic control of debug logging.
// Useful for testing or application-controlled debug modes.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// FormatHexBytes formats a byte slice as space-separated hex values,
// truncating long payloads. Used by debug output and error reporting.
func FormatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	const maxShown = 32
	shown := data
	if len(data) > maxShown {
		shown = data[:maxShown]
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	s := strings.Join(parts, " ")
	if len(data) > maxShown {
		s += fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return s
}
