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

// Package vm executes a compiled bytecode.Program against a transaction:
// the register-machine loop pkg/compiler's output was built for.
package vm

import (
	"fmt"

	"github.com/jptosso/coraza-waf/pkg/bytecode"
	"github.com/jptosso/coraza-waf/pkg/engine"
	"github.com/jptosso/coraza-waf/pkg/operators"
	"github.com/jptosso/coraza-waf/pkg/transformations"
)

// Wire installs Execute as waf's Runner, the seam pkg/engine leaves open
// to avoid importing pkg/vm (and, transitively, pkg/operators/
// pkg/transformations) from pkg/engine itself.
func Wire(waf *engine.WAF) {
	waf.Runner = Execute
}

// element is one loaded target's working state through TRANSFORM/OPERATOR:
// orig is the value as loaded, cur is orig rewritten by the transformation
// pipeline applied so far.
type element struct {
	subName string
	orig    string
	cur     string
	trail   []engine.TransformKind
}

// matchHit is one element an OPERATOR instruction found to match, queued
// for PUSH_MATCHED/PUSH_ALL_MATCHED to promote into the transaction's
// matched-variables log.
type matchHit struct {
	varKind engine.VariableKind
	subName string
	orig    string
	cur     string
	trail   []engine.TransformKind
}

// machine holds the scratch state threaded between instructions while one
// rule (possibly a chain of several links) executes. It is not part of
// Transaction because it never needs to survive past one Execute call.
type machine struct {
	tx   *engine.Transaction
	prog *bytecode.Program

	rule *engine.Rule // current starter rule (set at RULE_START)
	link *engine.Rule // current chain link (set at CHAIN_START)

	elems []element // current variable's loaded/transformed targets
	hits  []matchHit

	opMatched   bool // did the last OPERATOR instruction match (the OMF flag)
	linkMatched bool // did this link's targets match at least one element
	chainOK     bool // did every link of the current chain match

	expandedMsg     string
	expandedLogData string
}

// Execute runs program against tx from instruction 0, returning the
// disposition of the first disruptive (or allow) action encountered, or
// the safe disposition if the program runs to completion.
func Execute(program *bytecode.Program, tx *engine.Transaction) (engine.Disposition, error) {
	m := &machine{tx: tx, prog: program}
	instrs := program.Instructions
	ip := 0
	for ip < len(instrs) {
		instr := instrs[ip]
		switch instr.Op {
		case bytecode.RULE_START:
			r, ok := program.Ref(instr.A.Ref).(*engine.Rule)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: RULE_START with non-rule ref at %d", ip)
			}
			m.rule = r
			m.chainOK = true
			tx.CurrentRule = r
			tx.Captures.Clear()
			tx.MatchedLog.Clear()

		case bytecode.JMP_IF_REMOVED:
			r, _ := program.Ref(instr.A.Ref).(*engine.Rule)
			if r != nil && tx.IsRuleRemoved(r.Id) {
				ip = instr.B.Addr
				continue
			}

		case bytecode.CHAIN_START:
			link, ok := program.Ref(instr.A.Ref).(*engine.Rule)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: CHAIN_START with non-rule ref at %d", ip)
			}
			m.link = link
			tx.CurrentRule = link
			m.linkMatched = link.Operator == nil

		case bytecode.LOAD_VAR:
			v, ok := program.Ref(instr.A.Ref).(engine.VariableExpr)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: LOAD_VAR with non-variable ref at %d", ip)
			}
			tx.CurrentVar = &v
			elems := tx.EvalVariableForRule(m.rule.Id, v)
			m.elems = make([]element, len(elems))
			for i, e := range elems {
				s := e.Value.String()
				m.elems[i] = element{subName: e.SubName, orig: s, cur: s}
			}

		case bytecode.TRANSFORM_START:
			for i := range m.elems {
				m.elems[i].trail = m.elems[i].trail[:0]
			}

		case bytecode.TRANSFORM:
			tr, ok := program.Ref(instr.A.Ref).(engine.Transformation)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: TRANSFORM with non-transformation ref at %d", ip)
			}
			applyTransform(tx, m.elems, tr.Kind)

		case bytecode.OPERATOR:
			op, ok := program.Ref(instr.A.Ref).(*engine.Operator)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: OPERATOR with non-operator ref at %d", ip)
			}
			matched, hits, err := evalOperator(tx, m.link, op, m.elems, tx.CurrentVar.Kind)
			if err != nil {
				return engine.Safe(), err
			}
			m.opMatched = matched
			if matched {
				m.linkMatched = true
				m.hits = hits
				if m.link.Flags.Capture {
					tx.Captures.MergeCapture()
				}
			} else {
				m.hits = nil
			}

		case bytecode.JOM:
			if m.opMatched {
				ip = instr.A.Addr
				continue
			}

		case bytecode.PUSH_MATCHED, bytecode.PUSH_ALL_MATCHED:
			for _, h := range m.hits {
				tx.MatchedLog.Push(engine.MatchedVar{
					VariableKind:   h.varKind,
					SubName:        h.subName,
					ChainIndex:     m.link.ChainIndex,
					Original:       h.orig,
					Transformed:    h.cur,
					OperatorResult: true,
					TransformTrail: h.trail,
				})
			}

		case bytecode.JNRM:
			if !m.linkMatched {
				m.chainOK = false
				ip = instr.A.Addr
				continue
			}

		case bytecode.UNC_ACTION:
			act, ok := program.Ref(instr.A.Ref).(engine.RuleAction)
			if !ok {
				return engine.Safe(), fmt.Errorf("vm: UNC_ACTION with non-action ref at %d", ip)
			}
			// Action blocks sit after CHAIN_END: a non-disruptive action
			// on any link fires only when the whole chain matched, the
			// same gate EXIT_IF_DISRUPTIVE applies to the disruptive one.
			if m.chainOK {
				engine.ApplyAction(tx, m.rule, act)
			}

		case bytecode.EXPAND_MACRO:
			link, _ := program.Ref(instr.A.Ref).(*engine.Rule)
			if link != nil && m.chainOK {
				if mm := link.MsgMacro(); mm != nil {
					m.expandedMsg = mm.Expand(tx)
				}
				if lm := link.LogDataMacro(); lm != nil {
					m.expandedLogData = lm.Expand(tx)
				}
			}

		case bytecode.LOG_CALLBACK:
			link, _ := program.Ref(instr.A.Ref).(*engine.Rule)
			if link != nil && m.chainOK {
				tx.RecordMatch(link)
				if tx.LogCallback != nil {
					msgs := []string{}
					if m.expandedMsg != "" {
						msgs = append(msgs, m.expandedMsg)
					} else if link.Msg != "" {
						msgs = append(msgs, link.Msg)
					}
					tx.LogCallback(link, msgs, tx.MatchedLog.All())
				}
			}
			m.expandedMsg, m.expandedLogData = "", ""

		case bytecode.CHAIN_END:
			// m.chainOK already reflects whether every link's JNRM check
			// passed; restore the starter's context for the deferred
			// action blocks that follow.
			tx.CurrentRule = m.rule

		case bytecode.EXIT_IF_DISRUPTIVE:
			r, _ := program.Ref(instr.A.Ref).(*engine.Rule)
			// `pass` is a disposition in name only: it explicitly hands
			// control to the next rule, so it never terminates the program.
			// Under SecRuleEngine DetectionOnly the match was already
			// recorded at LOG_CALLBACK; the disposition is not enforced
			// and the remaining rules keep running.
			if r != nil && m.chainOK && r.Disruptive != engine.DisruptiveNone && r.Disruptive != engine.DisruptivePass &&
				tx.EngineMode() != engine.RuleEngineDetectionOnly {
				d := dispositionFor(r)
				return d, nil
			}

		case bytecode.JRM:
			if m.chainOK {
				ip = instr.A.Addr
				continue
			}

		default:
			return engine.Safe(), fmt.Errorf("vm: unimplemented opcode %s at %d", instr.Op, ip)
		}
		ip++
	}
	return engine.Safe(), nil
}

// applyTransform rewrites every element's current value through kind,
// using the transaction's transform cache (spec.md §4.4) keyed on the
// element's interned current string.
func applyTransform(tx *engine.Transaction, elems []element, kind engine.TransformKind) {
	for i := range elems {
		input := elems[i].cur
		if entry, ok := tx.Transform.Lookup(kind, input); ok {
			elems[i].trail = append(elems[i].trail, kind)
			if !entry.NoChange {
				elems[i].cur = entry.Output
			}
			continue
		}
		out := transformations.Apply(kind, input)
		noChange := out == input
		if !noChange {
			out = tx.Interner.Intern(out)
		}
		tx.Transform.Store(kind, input, out, noChange)
		elems[i].cur = out
		elems[i].trail = append(elems[i].trail, kind)
	}
}

// evalOperator tests op against every element, honoring negation,
// emptyMatch, a macro-expanded RHS (including the multi-candidate list a
// single-variable-reference macro expands to), and MultiMatch (test every
// element instead of stopping at the first match).
func evalOperator(tx *engine.Transaction, link *engine.Rule, op *engine.Operator, elems []element, varKind engine.VariableKind) (bool, []matchHit, error) {
	fn, ok := operators.Lookup(op.Kind)
	if !ok {
		return false, nil, fmt.Errorf("vm: no operator registered for kind %d", op.Kind)
	}
	candidates := []string{op.RawArg}
	if op.Macro != nil {
		if op.Macro.IsSingleVar() {
			candidates = op.Macro.ExpandList(tx)
		} else {
			candidates = []string{op.Macro.Expand(tx)}
		}
	}

	var hits []matchHit
	for _, e := range elems {
		matched, err := matchOneElement(tx, fn, op, e.cur, candidates)
		if err != nil {
			return false, nil, err
		}
		if op.EmptyMatch && e.cur == "" {
			matched = true
		}
		if matched {
			hits = append(hits, matchHit{varKind: varKind, subName: e.subName, orig: e.orig, cur: e.cur, trail: e.trail})
			if !link.Flags.MultiMatch {
				return true, hits, nil
			}
		}
	}
	return len(hits) > 0, hits, nil
}

// matchOneElement tries every macro candidate (ordinarily just one) against
// value, applying the operator's negation after the raw predicate result.
// A predicate error is a runtime soft error: it is absorbed as a non-match
// so no failure crosses the VM boundary (spec.md §7).
func matchOneElement(tx *engine.Transaction, fn operators.Func, op *engine.Operator, value string, candidates []string) (bool, error) {
	raw := false
	for _, c := range candidates {
		m, err := fn(tx, value, c)
		if err != nil {
			continue
		}
		if m {
			raw = true
			break
		}
	}
	if op.Negated {
		return !raw, nil
	}
	return raw, nil
}

// dispositionFor builds the Disposition a matched rule with a disruptive
// action produces, mapping AllowScope to the StopPhase/StopRequest pair
// runPhase uses to decide how far to unwind (spec.md §3 "Disposition").
func dispositionFor(r *engine.Rule) engine.Disposition {
	d := engine.Disposition{Kind: r.Disruptive, Status: r.Status, RedirectTo: r.RedirectTo, RuleID: r.Id}
	if r.Disruptive == engine.DisruptiveAllow {
		d.StopPhase = true
		if r.AllowScope == engine.AllowRequest {
			d.StopRequest = true
		}
		return d
	}
	if r.Disruptive == engine.DisruptivePass {
		return d
	}
	d.StopPhase = true
	d.StopRequest = true
	return d
}
