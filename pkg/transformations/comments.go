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

// RemoveComments implements `t:removeComments`: strips `/* ... */` spans
// (an unterminated `/*` drops the rest of the input). `--` and `#`
// comment runs are not stripped.
func RemoveComments(data string) string {
	return replaceComments(data, "")
}

// ReplaceComments implements `t:replaceComments`: same spans, replaced
// with a single space instead of removed, preserving token boundaries.
func ReplaceComments(data string) string {
	return replaceComments(data, " ")
}

func replaceComments(data, with string) string {
	var b strings.Builder
	for i := 0; i < len(data); i++ {
		if i+1 < len(data) && data[i] == '/' && data[i+1] == '*' {
			end := strings.Index(data[i+2:], "*/")
			if end < 0 {
				b.WriteString(with)
				break
			}
			b.WriteString(with)
			i += end + 3
			continue
		}
		b.WriteByte(data[i])
	}
	return b.String()
}

// RemoveCommentsChar implements `t:removeCommentsChar`: strips the
// comment markers `/*`, `*/`, `--` and `#` wherever found, leaving
// everything else (quote characters included) untouched.
func RemoveCommentsChar(data string) string {
	replacer := strings.NewReplacer("/*", "", "*/", "", "--", "", "#", "")
	return replacer.Replace(data)
}
