// Copyright 2023 UMH Systems GmbH
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

package internal

import "strings"

var sanitizeReplacer = strings.NewReplacer("\n", "", "\r", "", "\t", " ")

// SanitizeString strips control characters that would break log lines or
// allow log forging when echoing user supplied values.
func SanitizeString(s string) string {
	return sanitizeReplacer.Replace(s)
}

// SanitizeStringArray sanitizes every element in place and returns the slice.
func SanitizeStringArray(arr []string) []string {
	for i := range arr {
		arr[i] = SanitizeString(arr[i])
	}
	return arr
}
