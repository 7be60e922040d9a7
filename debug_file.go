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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-rcs380/internal/syncutil"
)

const maxSessionLogSuffix = 100

// Session log state
var (
	sessionLogMu     syncutil.Mutex
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog creates a new session log file in dir (the current
// directory when empty). A log that is already open is closed first.
// Returns the log file path for display to the user.
func InitSessionLog(dir string) (string, error) {
	logFile, filename, err := createSessionFile(dir, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogMu.Lock()
	defer sessionLogMu.Unlock()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile

	writeSessionHeader(logFile)

	return filename, nil
}

// createSessionFile picks rcs380_<timestamp>.log, adding a numeric suffix
// when a log for the same second already exists.
func createSessionFile(dir string, now time.Time) (*os.File, string, error) {
	base := "rcs380_" + now.Format("20060102_150405")
	for i := range maxSessionLogSuffix {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		filename := filepath.Join(dir, name+".log")

		//nolint:gosec // filename is constructed internally, not user input
		f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, filename, nil
	}
	return nil, "", fmt.Errorf("no free log name for %s", base)
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	sessionLogMu.Lock()
	defer sessionLogMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}

	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended ===\n", timestamp)

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	sessionLogMu.Lock()
	defer sessionLogMu.Unlock()
	return sessionLogPath
}

// writeSessionHeader writes metadata about the session to the log file.
func writeSessionHeader(writer io.Writer) {
	_, _ = fmt.Fprint(writer, "=== RC-S380 Debug Session Log ===\n")
	_, _ = fmt.Fprintf(writer, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(writer, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(writer, "Go Version: %s\n", runtime.Version())
	if exe, err := os.Executable(); err == nil {
		_, _ = fmt.Fprintf(writer, "Executable: %s\n", exe)
	}
	_, _ = fmt.Fprintf(writer, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(writer, "=================================\n\n")
}
