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

import (
	"strings"
	"unicode"
)

// Trim implements `t:trim`.
func Trim(data string) string { return strings.TrimSpace(data) }

// TrimLeft implements `t:trimLeft`.
func TrimLeft(data string) string { return strings.TrimLeft(data, " \t\r\n\f\v") }

// TrimRight implements `t:trimRight`.
func TrimRight(data string) string { return strings.TrimRight(data, " \t\r\n\f\v") }

// CompressWhitespace implements `t:compressWhitespace`: every run of
// whitespace collapses to a single space.
func CompressWhitespace(data string) string {
	var b strings.Builder
	inWS := false
	for _, r := range data {
		if unicode.IsSpace(r) {
			if !inWS {
				b.WriteByte(' ')
				inWS = true
			}
			continue
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

// RemoveWhitespace implements `t:removeWhitespace`.
func RemoveWhitespace(data string) string {
	var b strings.Builder
	for _, r := range data {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RemoveNulls implements `t:removeNulls`.
func RemoveNulls(data string) string {
	return strings.ReplaceAll(data, "\x00", "")
}

// ReplaceNulls implements `t:replaceNulls`: NUL bytes become spaces rather
// than being dropped, preserving offsets.
func ReplaceNulls(data string) string {
	return strings.ReplaceAll(data, "\x00", " ")
}
