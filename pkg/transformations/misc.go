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

// CmdLine implements `t:cmdLine`: collapses the shell-quoting noise
// (backslashes, quotes, extra whitespace) attackers use to break up
// command strings before a `@detectSQLi`/custom operator inspects them.
func CmdLine(data string) string {
	replacer := strings.NewReplacer("\\", "", "'", "", "\"", "", "^", "", ",", "", ";", " ")
	s := replacer.Replace(data)
	return CompressWhitespace(strings.TrimSpace(s))
}

// SqlHexDecode implements `t:sqlHexDecode`: decodes MySQL-style `0x...`
// hex string literals into the bytes they encode, leaving non-matching
// input untouched.
func SqlHexDecode(data string) string {
	trimmed := strings.TrimSpace(data)
	if len(trimmed) < 3 || trimmed[0] != '0' || (trimmed[1] != 'x' && trimmed[1] != 'X') {
		return data
	}
	return HexDecode(trimmed[2:])
}

// JsDecode implements `t:jsDecode`: resolves `\xHH` and `\uHHHH`
// JavaScript string escapes.
func JsDecode(data string) string {
	var b strings.Builder
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			switch data[i+1] {
			case 'x':
				if i+3 < len(data) {
					if v, ok := decodeHexByte(data[i+2 : i+4]); ok {
						b.WriteByte(v)
						i += 3
						continue
					}
				}
			case 'u':
				if i+5 < len(data) {
					if v, ok := decodeHexByte(data[i+4 : i+6]); ok {
						b.WriteByte(v)
						i += 5
						continue
					}
				}
			}
		}
		b.WriteByte(data[i])
	}
	return b.String()
}

func decodeHexByte(s string) (byte, bool) {
	var v byte
	for _, c := range []byte(s) {
		var n byte
		switch {
		case c >= '0' && c <= '9':
			n = c - '0'
		case c >= 'a' && c <= 'f':
			n = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			n = c - 'A' + 10
		default:
			return 0, false
		}
		v = v<<4 | n
	}
	return v, true
}

// CssDecode implements `t:cssDecode`: resolves CSS `\HH` escapes.
func CssDecode(data string) string {
	return JsDecode(strings.ReplaceAll(data, "\\", "\\x"))
}

// HtmlEntityDecode implements `t:htmlEntityDecode` for the five XML
// predefined entities (`&lt;`, `&gt;`, `&amp;`, `&quot;`, `&apos;`).
// Numeric character references (`&#65;`, `&#x41;`) and other named HTML
// entities are left as they are.
func HtmlEntityDecode(data string) string {
	replacer := strings.NewReplacer(
		"&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&apos;", "'",
	)
	return replacer.Replace(data)
}

// EscapeSeqDecode implements `t:escapeSeqDecode`: resolves C-style
// backslash escapes (`\n`, `\t`, `\r`, `\xHH`).
func EscapeSeqDecode(data string) string {
	replacer := strings.NewReplacer("\\n", "\n", "\\t", "\t", "\\r", "\r")
	return JsDecode(replacer.Replace(data))
}

// Utf8ToUnicode implements `t:utf8toUnicode`: renders each rune as a
// `\uHHHH`-style escape, used to defeat UTF-8 overlong-encoding evasion
// before a regex operator sees the value.
func Utf8ToUnicode(data string) string {
	var b strings.Builder
	for _, r := range data {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		b.WriteString("\\u")
		b.WriteString(padHex(int(r)))
	}
	return b.String()
}

func padHex(v int) string {
	const digits = "0123456789abcdef"
	buf := [4]byte{}
	for i := 3; i >= 0; i-- {
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}
