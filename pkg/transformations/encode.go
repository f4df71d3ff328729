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
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
)

// UrlEncode implements `t:urlEncode`.
func UrlEncode(data string) string { return url.QueryEscape(data) }

// UrlDecode implements `t:urlDecode`. Invalid escapes pass through
// unchanged rather than erroring, matching the source's tolerant decoder.
func UrlDecode(data string) string {
	if d, err := url.QueryUnescape(data); err == nil {
		return d
	}
	return data
}

// UrlDecodeUni implements `t:urlDecodeUni`: like UrlDecode but also
// decodes the `%u00XX` IIS-style Unicode escapes before falling back to
// standard percent-decoding.
func UrlDecodeUni(data string) string {
	var b strings.Builder
	for i := 0; i < len(data); i++ {
		if data[i] == '%' && i+5 < len(data) && (data[i+1] == 'u' || data[i+1] == 'U') {
			if code, err := hex.DecodeString(data[i+2 : i+6]); err == nil && len(code) == 2 {
				b.WriteRune(rune(int(code[0])<<8 | int(code[1])))
				i += 5
				continue
			}
		}
		b.WriteByte(data[i])
	}
	return UrlDecode(b.String())
}

// HexEncode implements `t:hexEncode`.
func HexEncode(data string) string { return hex.EncodeToString([]byte(data)) }

// HexDecode implements `t:hexDecode`. Invalid hex passes through
// unchanged.
func HexDecode(data string) string {
	b, err := hex.DecodeString(data)
	if err != nil {
		return data
	}
	return string(b)
}

// Base64Encode implements `t:base64Encode`.
func Base64Encode(data string) string { return base64.StdEncoding.EncodeToString([]byte(data)) }

// Base64Decode implements `t:base64Decode`. Invalid input passes through
// unchanged.
func Base64Decode(data string) string {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return data
	}
	return string(b)
}

// Base64DecodeExt implements `t:base64DecodeExt`: a lenient decode that
// tolerates missing padding, used against attacker-supplied payloads that
// omit `=` padding.
func Base64DecodeExt(data string) string {
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return data
	}
	return string(b)
}
