// Copyright 2021 Juan Pablo Tosso
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transformations

import "strings"

// NormalizePath implements `t:normalisePath`/`t:normalizePath`: collapses
// `//`, resolves `/./` and `/../` segments, matching the original
// source's `src/transformation/normalize_path.cc` behavior of operating on
// forward slashes only.
func NormalizePath(data string) string {
	return normalizePathSep(data, '/')
}

// NormalizePathWin additionally folds backslashes to forward slashes
// before normalizing, matching `t:normalisePathWin`.
func NormalizePathWin(data string) string {
	return normalizePathSep(strings.ReplaceAll(data, "\\", "/"), '/')
}

func normalizePathSep(data string, sep byte) string {
	segments := strings.Split(data, string(sep))
	out := make([]string, 0, len(segments))
	leadingSlash := strings.HasPrefix(data, string(sep))
	for _, s := range segments {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	joined := strings.Join(out, string(sep))
	if leadingSlash {
		return string(sep) + joined
	}
	return joined
}
