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

package rcs380

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

var (
	// debugEnabled controls whether debug messages are echoed to debugOutput
	debugEnabled atomic.Bool
	debugOutput  atomic.Pointer[io.Writer]
)

func init() {
	if os.Getenv("RCS380_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf logs a formatted debug message.
// Always writes to the session log file (if initialized) with a timestamp.
// Only echoes to the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	writeDebug(fmt.Sprintf(format, args...))
}

// Debugln logs its arguments like fmt.Sprint
func Debugln(args ...any) {
	writeDebug(fmt.Sprint(args...))
}

func writeDebug(message string) {
	sessionLogMu.Lock()
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	sessionLogMu.Unlock()

	if debugEnabled.Load() {
		_, _ = fmt.Fprintf(consoleOutput(), "DEBUG: %s\n", message)
	}
}

func consoleOutput() io.Writer {
	if w := debugOutput.Load(); w != nil {
		return *w
	}
	return os.Stderr
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether console debug output is on
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetDebugOutput redirects console debug output. A nil writer restores
// standard error.
func SetDebugOutput(w io.Writer) {
	if w == nil {
		debugOutput.Store(nil)
		return
	}
	debugOutput.Store(&w)
}
