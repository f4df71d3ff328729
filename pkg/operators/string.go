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
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
	"github.com/jptosso/coraza-waf/pkg/lrucache"
)

// withinCache holds the joined haystack form of every distinct `@within`
// argument seen so far, process-wide (spec §4.6).
var withinCache = lrucache.New[string](1024)

// Streq implements `@streq`: exact string equality.
func Streq(tx *engine.Transaction, value, arg string) (bool, error) {
	if value == arg {
		tx.Captures.StageCapture(0, value)
		return true, nil
	}
	return false, nil
}

// BeginsWith implements `@beginsWith`.
func BeginsWith(tx *engine.Transaction, value, arg string) (bool, error) {
	if strings.HasPrefix(value, arg) {
		tx.Captures.StageCapture(0, arg)
		return true, nil
	}
	return false, nil
}

// EndsWith implements `@endsWith`.
func EndsWith(tx *engine.Transaction, value, arg string) (bool, error) {
	if strings.HasSuffix(value, arg) {
		tx.Captures.StageCapture(0, arg)
		return true, nil
	}
	return false, nil
}

// Contains implements `@contains`: value must contain arg as a substring.
func Contains(tx *engine.Transaction, value, arg string) (bool, error) {
	if strings.Contains(value, arg) {
		tx.Captures.StageCapture(0, arg)
		return true, nil
	}
	return false, nil
}

// ContainsWord implements `@containsWord`: arg must appear in value as a
// whole word, bounded by non-alphanumeric characters or the string edges.
func ContainsWord(tx *engine.Transaction, value, arg string) (bool, error) {
	idx := 0
	for {
		i := strings.Index(value[idx:], arg)
		if i < 0 {
			return false, nil
		}
		start := idx + i
		end := start + len(arg)
		if (start == 0 || !isWordByte(value[start-1])) && (end == len(value) || !isWordByte(value[end])) {
			tx.Captures.StageCapture(0, arg)
			return true, nil
		}
		idx = start + 1
		if idx >= len(value) {
			return false, nil
		}
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Within implements `@within`: the input value (the needle) must be
// found within the haystack arg names. The haystack is arg tokenized on
// whitespace and re-joined, so `hello world` admits `helloworld` but not
// `hello1 world1` — the separators delimit tokens, they are not part of
// the haystack. The joined form is built once per distinct arg string and
// shared across every transaction that evaluates this rule (§4.6's shared
// auxiliary cache).
func Within(tx *engine.Transaction, value, arg string) (bool, error) {
	haystack, err := withinCache.GetOrBuild(arg, func() (string, error) {
		return strings.Join(strings.Fields(arg), ""), nil
	})
	if err != nil {
		return false, err
	}
	if value != "" && strings.Contains(haystack, value) {
		tx.Captures.StageCapture(0, value)
		return true, nil
	}
	return false, nil
}

// UnconditionalMatch implements `@unconditionalMatch`: always matches,
// used by SecAction and rules that exist only to run actions.
func UnconditionalMatch(tx *engine.Transaction, value, arg string) (bool, error) {
	return true, nil
}

// NoMatch implements `@noMatch`: never matches, used to disable a rule
// without removing it.
func NoMatch(tx *engine.Transaction, value, arg string) (bool, error) {
	return false, nil
}
