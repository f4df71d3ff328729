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
	"regexp"
	"sync"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// rxCache memoizes the compiled form of each distinct pattern string, since
// the same `@rx` argument is evaluated once per matching rule invocation
// but only ever needs compiling once for the lifetime of the process.
var (
	rxCacheMu sync.RWMutex
	rxCache   = map[string]*regexp.Regexp{}
)

func compileRx(pattern string) (*regexp.Regexp, error) {
	rxCacheMu.RLock()
	re, ok := rxCache[pattern]
	rxCacheMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rxCacheMu.Lock()
	rxCache[pattern] = re
	rxCacheMu.Unlock()
	return re, nil
}

// Rx implements `@rx`: the pattern is matched against value and, on a
// match, capture groups 0-9 are staged from the submatch slice (group 0
// is the whole match, same slot numbering as tx.0).
func Rx(tx *engine.Transaction, value, arg string) (bool, error) {
	re, err := compileRx(arg)
	if err != nil {
		return false, err
	}
	m := re.FindStringSubmatch(value)
	if m == nil {
		return false, nil
	}
	for i, g := range m {
		if i > 9 {
			break
		}
		tx.Captures.StageCapture(i, g)
	}
	return true, nil
}
