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

package detection

import (
	"fmt"
	"strings"
)

// DefaultBlocklist returns the USB devices that are never probed. It is
// empty; callers add vid:pid pairs of devices that misbehave when opened.
func DefaultBlocklist() []string {
	return []string{}
}

// FormatVIDPID renders a vendor and product id the way blocklists are
// written, e.g. "054C:06C1".
func FormatVIDPID(vid, pid uint16) string {
	return fmt.Sprintf("%04X:%04X", vid, pid)
}

// IsBlocked reports whether vidpid is in blocklist. Comparison ignores
// case and surrounding space.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}
	for _, blocked := range blocklist {
		if strings.ToUpper(strings.TrimSpace(blocked)) == vidpid {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether a port name is in ignorePaths. Comparison
// ignores case and surrounding space.
func IsPathIgnored(path string, ignorePaths []string) bool {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	for _, ignored := range ignorePaths {
		ignored = strings.ToLower(strings.TrimSpace(ignored))
		if ignored != "" && ignored == path {
			return true
		}
	}
	return false
}
