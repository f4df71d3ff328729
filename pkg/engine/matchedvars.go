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

// MatchedVar is one entry of the transaction's matched-variables log: the
// substrate for MATCHED_VAR, MATCHED_VAR_NAME, MATCHED_VARS,
// MATCHED_VARS_NAMES, and for the per-rule log line. Once pushed, an
// entry's strings are never mutated (they may be borrowed from the
// interner) — the log is stable until the transaction clears it at the
// start of the next rule.
type MatchedVar struct {
	VariableKind   VariableKind
	SubName        string
	ChainIndex     int
	Original       string
	Transformed    string
	OperatorResult bool
	TransformTrail []TransformKind
}

// FullName renders `KIND:sub-name`, matching the source's `KIND:` prefix
// convention (sub-name may be empty for whole-collection variables).
func (m MatchedVar) FullName() string {
	name := variableDisplayName(m.VariableKind)
	if m.SubName == "" {
		return name
	}
	return name + ":" + m.SubName
}

// MatchedVarsLog is the per-transaction log described in spec.md §3/§4.5.
// It is cleared at RULE_START — accumulating across a chain's links so a
// continuation or the starter's macros read the predecessors' matches —
// and populated by PUSH_MATCHED/PUSH_ALL_MATCHED only for rules whose
// compiled `needs-matched-push` flag is set (see pkg/compiler,
// "MATCHED_VAR minimization").
type MatchedVarsLog struct {
	entries []MatchedVar
}

// Clear empties the log, called at the start of each rule.
func (l *MatchedVarsLog) Clear() { l.entries = l.entries[:0] }

// Push appends one matched element.
func (l *MatchedVarsLog) Push(m MatchedVar) { l.entries = append(l.entries, m) }

// Last returns the most recently pushed entry and whether the log is
// non-empty (backs MATCHED_VAR/MATCHED_VAR_NAME).
func (l *MatchedVarsLog) Last() (MatchedVar, bool) {
	if len(l.entries) == 0 {
		return MatchedVar{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// All returns every pushed entry, in push order (backs MATCHED_VARS/
// MATCHED_VARS_NAMES).
func (l *MatchedVarsLog) All() []MatchedVar { return l.entries }

var variableDisplayNames = map[VariableKind]string{}

func init() {
	for name, kind := range variableNames {
		variableDisplayNames[kind] = name
	}
}

func variableDisplayName(k VariableKind) string {
	if n, ok := variableDisplayNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}
