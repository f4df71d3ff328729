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

package engine

import "unsafe"

// keyFor builds a transformCacheKey from a string's identity (backing
// pointer + length) rather than its contents, mirroring the source's
// (pointer, length) cache key. This requires every cached input to be
// borrowed from a buffer that outlives the cache entry — the transaction's
// string interner, a rule literal, or host-owned header storage — never a
// freshly-allocated temporary that could be garbage collected and its
// address reused. See Interner.Intern (the Transaction.Interner field).
func keyFor(kind TransformKind, s string) transformCacheKey {
	return transformCacheKey{
		kind: kind,
		ptr:  uintptr(unsafe.Pointer(unsafe.StringData(s))),
		ln:   len(s),
	}
}
