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

// VariableExpr is the triple (kind, sub-name, addressing-mode) described in
// spec.md §3 "Variable expression". Exceptions lists subkeys excluded by a
// `!VAR:name` clause alongside a `VAR` whole-collection target.
type VariableExpr struct {
	Kind       VariableKind
	SubName    string
	Mode       AddressMode
	Exceptions []string
}

// Transformation is one step of a rule's transformation pipeline.
type Transformation struct {
	Kind TransformKind
}

// Operator is the compiled predicate a rule tests each variable element
// against. Next links the alternatives of an `@opA x|@opB y` cascade: the
// compiler lowers each alternative to its own OPERATOR instruction joined
// by JOM, so a match in any branch short-circuits to the match-handling
// block (spec.md §4.2 "Operator-OR syntax").
type Operator struct {
	Kind       OperatorKind
	Negated    bool   // `!@op ...`
	EmptyMatch bool   // per-operator `emptyMatch` flag
	RawArg     string // literal RHS text, or a macro template before parse
	Macro      *Macro // non-nil if RawArg contains %{...}
	Next       *Operator
}

// RuleAction is one parsed action attached to a rule (spec.md §3 "Action").
// Params holds the action's raw argument string (e.g. `tx.foo=bar` for
// setvar, the ctl sub-directive text for ctl, etc.); interpretation is
// deferred to the VM's ACTION/UNC_ACTION handlers and pkg/compiler for
// actions with compile-time effects (skip, skipAfter, chain linkage).
type RuleAction struct {
	Kind   ActionKind
	Params string
}

// Flags bundles the rule's boolean modifiers.
type Flags struct {
	IgnoreDefaultTransform bool
	NeedsMatchedPush       bool // set by the compiler's reachability pass
	MultiMatch             bool
	Capture                bool
	Log                    bool
	AuditLog               bool
}

// Rule is the compiled-from-SecLang rule IR described in spec.md §3.
//
// Invariants: Id is unique across starter rules; chained rules share the
// starter's Id with increasing ChainIndex; only Phase 1..5 is valid; a
// disruptive action on a chained rule applies only if the whole chain
// matched.
type Rule struct {
	Id    int64
	Phase int

	Severity string
	Tags     []string
	Msg      string
	LogData  string

	Variables       []VariableExpr
	Transformations []Transformation
	Operator        *Operator // nil means a pure action carrier (SecAction)
	Actions         []RuleAction

	Chain      *Rule // next rule in the chain, nil for the last link
	ChainIndex int   // 0 for the starter, 1..N for continuations

	Disruptive DisruptiveKind
	AllowScope AllowScope
	Status     int    // `status:N` / `deny,status:N`
	RedirectTo string // `redirect:URL`

	SkipCount int    // `skip:N`
	SkipAfter string // `skipAfter:MARKER`

	Flags Flags

	msgMacro     *Macro
	logDataMacro *Macro
}

// NewRule returns a zero-valued Rule defaulted to phase 2, matching
// SecDefaultAction's documented default phase.
func NewRule() *Rule {
	return &Rule{Phase: 2}
}

// CompileMacros parses Msg/LogData into Macros once, ahead of the first
// EXPAND_MACRO instruction that will reference them. Safe to call more
// than once.
func (r *Rule) CompileMacros() {
	if r.msgMacro == nil {
		r.msgMacro = ParseMacro(r.Msg)
	}
	if r.logDataMacro == nil {
		r.logDataMacro = ParseMacro(r.LogData)
	}
}

// MsgMacro returns the compiled Msg macro, compiling it on first use.
func (r *Rule) MsgMacro() *Macro {
	r.CompileMacros()
	return r.msgMacro
}

// LogDataMacro returns the compiled LogData macro, compiling it on first
// use.
func (r *Rule) LogDataMacro() *Macro {
	r.CompileMacros()
	return r.logDataMacro
}

// Chains returns the starter followed by every chained continuation, in
// order.
func (r *Rule) Chains() []*Rule {
	out := []*Rule{r}
	for c := r.Chain; c != nil; c = c.Chain {
		out = append(out, c)
	}
	return out
}

// ReferencesMatchedVar reports whether any of this rule's variables,
// actions' literal text, or Msg/LogData templates reference the
// MATCHED_VAR family. Used by the compiler's reachability pass (spec.md
// §4.2 "Chain index and MATCHED_VAR sharing").
func (r *Rule) ReferencesMatchedVar() bool {
	for _, v := range r.Variables {
		switch v.Kind {
		case VarMATCHED_VAR, VarMATCHED_VAR_NAME, VarMATCHED_VARS, VarMATCHED_VARS_NAMES:
			return true
		}
	}
	check := func(s string) bool {
		return strings.Contains(s, "MATCHED_VAR")
	}
	if check(r.Msg) || check(r.LogData) {
		return true
	}
	for _, a := range r.Actions {
		if check(a.Params) {
			return true
		}
	}
	return false
}
