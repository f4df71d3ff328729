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

import "strings"

// macroToken is one piece of a parsed macro template: either a literal run
// of text, or a `VAR` / `VAR:subkey` reference to be expanded against
// transaction state at evaluation time.
type macroToken struct {
	literal string
	isVar   bool
	varName string // e.g. "TX", "ARGS_GET"
	subKey  string // e.g. "foo"; "" for whole-collection or scalar vars
}

// Macro is a compile-time parsed template over transaction state
// (spec.md §3 "Macro"). A Macro with a single variable-reference token and
// no surrounding literal is a "single variable reference" form; evaluating
// it yields that variable's full Result list. Otherwise it is the
// "multi-segment" form and evaluation joins each variable reference's
// first element into the surrounding literal text.
type Macro struct {
	raw    string
	tokens []macroToken
}

// ParseMacro compiles a `%{...}`-bearing template string into a Macro.
// Unrecognized `%{...}` forms are kept as literal text, matching the
// source's tolerant macro grammar.
func ParseMacro(s string) *Macro {
	m := &Macro{raw: s}
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "%{")
		if start < 0 {
			m.tokens = append(m.tokens, macroToken{literal: s[i:]})
			break
		}
		start += i
		if start > i {
			m.tokens = append(m.tokens, macroToken{literal: s[i:start]})
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			m.tokens = append(m.tokens, macroToken{literal: s[start:]})
			break
		}
		end += start
		ref := s[start+2 : end]
		varName, subKey := ref, ""
		if dot := strings.Index(ref, "."); dot >= 0 {
			varName, subKey = ref[:dot], ref[dot+1:]
		} else if colon := strings.Index(ref, ":"); colon >= 0 {
			varName, subKey = ref[:colon], ref[colon+1:]
		}
		m.tokens = append(m.tokens, macroToken{isVar: true, varName: varName, subKey: subKey})
		i = end + 1
	}
	return m
}

// IsSingleVar reports whether this macro is exactly one variable reference
// with no surrounding literal text.
func (m *Macro) IsSingleVar() bool {
	return len(m.tokens) == 1 && m.tokens[0].isVar
}

// Expand evaluates the macro against tx, returning the joined string form.
// Scalar consumers (msg, logdata, an operator's macro-expanded RHS) use
// this directly; a "single variable reference" macro used as an operator
// RHS instead calls ExpandList to get the full Result the variable
// produces (so e.g. `@within %{tx.choices}` over a multi-valued TX key can
// match any one of them).
func (m *Macro) Expand(tx *Transaction) string {
	var b strings.Builder
	for _, t := range m.tokens {
		if !t.isVar {
			b.WriteString(t.literal)
			continue
		}
		b.WriteString(tx.resolveMacroVar(t.varName, t.subKey))
	}
	return b.String()
}

// ExpandList evaluates a single-variable-reference macro as a list of
// values (one per matching collection entry), for operators like `@within`
// and `@beginsWith` whose RHS macro may expand to multiple candidates.
func (m *Macro) ExpandList(tx *Transaction) []string {
	if !m.IsSingleVar() {
		return []string{m.Expand(tx)}
	}
	t := m.tokens[0]
	return tx.resolveMacroVarList(t.varName, t.subKey)
}
