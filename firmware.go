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

import "fmt"

// Version is a firmware or package data version as reported by
// GetFirmwareVersion and GetPDDataVersion. The reader sends the minor byte
// first.
type Version struct {
	Raw   []byte
	Major byte
	Minor byte
}

func parseVersion(cmd Command, data []byte) (Version, error) {
	if len(data) < 2 {
		return Version{}, &ProtocolError{
			Command:  cmd,
			Err:      ErrInvalidResponse,
			Received: fmt.Sprintf("%d byte version", len(data)),
		}
	}
	return Version{
		Raw:   append([]byte(nil), data...),
		Major: data[1],
		Minor: data[0],
	}, nil
}

// String renders the version as major.minor in hex, e.g. "1.11"
func (v Version) String() string {
	return fmt.Sprintf("%x.%02x", v.Major, v.Minor)
}
