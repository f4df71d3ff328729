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
	"crypto/md5"
	"io"
)

// Md5 returns the raw (non-hex-encoded) MD5 digest of data, matching
// ModSecurity's `t:md5` semantics: the digest bytes feed straight into
// whatever operator runs next, not a printable hex string.
func Md5(data string) string {
	h := md5.New()
	io.WriteString(h, data)
	return string(h.Sum(nil))
}
