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

package operators

import (
	"strconv"
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// ValidateByteRange implements `@validateByteRange`: arg is a comma list
// of single bytes or `lo-hi` ranges (decimal); the operator matches (i.e.
// flags the value as invalid) if any byte of value falls OUTSIDE every
// listed range, mirroring ModSecurity's "matches on violation" semantics.
func ValidateByteRange(tx *engine.Transaction, value, arg string) (bool, error) {
	type byteRange struct{ lo, hi int }
	var ranges []byteRange
	for _, tok := range strings.Split(arg, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(tok, "-"); ok {
			l, err1 := strconv.Atoi(strings.TrimSpace(lo))
			h, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				continue
			}
			ranges = append(ranges, byteRange{l, h})
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		ranges = append(ranges, byteRange{n, n})
	}
	for i := 0; i < len(value); i++ {
		b := int(value[i])
		inRange := false
		for _, r := range ranges {
			if b >= r.lo && b <= r.hi {
				inRange = true
				break
			}
		}
		if !inRange {
			return true, nil
		}
	}
	return false, nil
}

// ValidateURLEncoding implements `@validateUrlEncoding`: matches (flags
// as invalid) if value contains a `%` not followed by two valid hex
// digits.
func ValidateURLEncoding(tx *engine.Transaction, value, arg string) (bool, error) {
	for i := 0; i < len(value); i++ {
		if value[i] != '%' {
			continue
		}
		if i+2 >= len(value) || !isHexDigit(value[i+1]) || !isHexDigit(value[i+2]) {
			return true, nil
		}
	}
	return false, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
