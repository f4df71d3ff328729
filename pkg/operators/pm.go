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
	"github.com/jptosso/coraza-waf/pkg/utils"
)

// pmFileCache holds the parsed phrase list for each distinct
// `@pmFromFile` path, process-wide (spec §4.6): the file is read and
// split into lines once, not once per transaction.
var pmFileCache = lrucache.New[[]string](256)

// Pm implements `@pm`: case-insensitive multi-pattern substring search,
// arg is a space-separated phrase list. The original engine backs this
// with a compiled Aho-Corasick/hyperscan database; a linear scan over the
// (typically small, rule-author-sized) phrase list gets the same
// semantics without a multi-pattern-matching dependency.
func Pm(tx *engine.Transaction, value, arg string) (bool, error) {
	return pmMatch(tx, value, strings.Fields(arg))
}

// PmFromFile implements `@pmFromFile`: arg names a file, one phrase per
// line (blank lines and `#`-prefixed comments skipped), loaded through
// utils.OpenFile so a remote phrase list (https://...) works the same as
// a local one.
func PmFromFile(tx *engine.Transaction, value, arg string) (bool, error) {
	path := strings.TrimSpace(arg)
	phrases, err := pmFileCache.GetOrBuild(path, func() ([]string, error) {
		data, err := utils.OpenFile(path)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			out = append(out, line)
		}
		return out, nil
	})
	if err != nil {
		return false, err
	}
	return pmMatch(tx, value, phrases)
}

func pmMatch(tx *engine.Transaction, value string, phrases []string) (bool, error) {
	lower := strings.ToLower(value)
	for _, p := range phrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			tx.Captures.StageCapture(0, p)
			return true, nil
		}
	}
	return false, nil
}
