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

package frame

// CalculateChecksum computes the checksum for a data buffer
// This is a simple sum of all bytes in the provided data
func CalculateChecksum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// Complement returns the byte that makes the sum of data plus itself zero
// modulo 256. Both LCS and DCS are computed this way.
func Complement(data []byte) byte {
	return -CalculateChecksum(data)
}

// ValidateChecksum reports whether data, including its trailing checksum
// byte, sums to zero. Out-of-range bounds are reported as invalid.
func ValidateChecksum(buf []byte, start, end int) bool {
	if start < 0 || end < 0 || start > end || end > len(buf) {
		return false
	}
	return CalculateChecksum(buf[start:end]) == 0
}
