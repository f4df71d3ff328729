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

// Package compiler lowers a phase's compiled engine.Rule list into a
// bytecode.Program: the linear instruction stream pkg/vm executes.
package compiler

import (
	"github.com/jptosso/coraza-waf/pkg/bytecode"
	"github.com/jptosso/coraza-waf/pkg/engine"
)

// skipPatch records one `skip`/`skipAfter` jump awaiting its target
// address: emitted right after the skipping rule's EXIT_IF_DISRUPTIVE,
// taken only if that rule's whole chain matched (RMF set).
type skipPatch struct {
	addr      int
	toRuleIdx int // index into rules the jump should land on; len(rules) means "program end"
}

// Compile lowers rules (already parsed, with chains linked via
// Rule.Chain) into one Program for phase. defaultAction, if non-nil,
// supplies the SecDefaultAction template: any starter rule whose own
// Disruptive kind is unset inherits defaultAction's disposition fields,
// matching SecDefaultAction's documented role as a fallback, not an
// override. markers resolves `skipAfter:NAME` to the rule index a
// SecMarker with that name was registered at, for this phase.
func Compile(rules []*engine.Rule, defaultAction *engine.Rule, phase int, markers map[string]engine.Marker) (*bytecode.Program, error) {
	prog := &bytecode.Program{Phase: phase}
	ruleStartAddr := make([]int, len(rules))
	var patches []skipPatch

	for i, r := range rules {
		applyDefaultAction(r, defaultAction)
		ruleStartAddr[i] = prog.Len()
		compileRule(prog, r, defaultAction)
		if target, ok := skipTarget(r, i, len(rules), markers, phase); ok {
			addr := prog.Emit(bytecode.Instruction{Op: bytecode.JRM})
			patches = append(patches, skipPatch{addr: addr, toRuleIdx: target})
		}
	}
	programEnd := prog.Len()
	for _, p := range patches {
		target := programEnd
		if p.toRuleIdx < len(ruleStartAddr) {
			target = ruleStartAddr[p.toRuleIdx]
		}
		prog.Patch(p.addr, bytecode.Instruction{Op: bytecode.JRM, A: bytecode.AddrOperand(target)})
	}
	return prog, nil
}

// skipTarget resolves a starter rule's last chain link's skip/skipAfter
// action, if any, to a target rule index within rules.
func skipTarget(r *engine.Rule, selfIdx, total int, markers map[string]engine.Marker, phase int) (int, bool) {
	links := r.Chains()
	last := links[len(links)-1]
	if last.SkipCount > 0 {
		target := selfIdx + 1 + last.SkipCount
		if target > total {
			target = total
		}
		return target, true
	}
	if last.SkipAfter != "" {
		if m, ok := markers[last.SkipAfter]; ok && m.Phase == phase {
			return m.Index, true
		}
		return total, true
	}
	return 0, false
}

func applyDefaultAction(r *engine.Rule, def *engine.Rule) {
	if def == nil || r.Disruptive != engine.DisruptiveNone {
		return
	}
	for _, link := range r.Chains() {
		if link.Disruptive == engine.DisruptiveNone {
			link.Disruptive = def.Disruptive
			link.AllowScope = def.AllowScope
			link.Status = def.Status
			link.RedirectTo = def.RedirectTo
		}
	}
}

// compileRule emits one starter rule and its chained continuations,
// followed by the chain-wide disruptive check. defaultAction, if non-nil,
// supplies the transformation and action lists every link prepends unless
// it set `ignore-default-transform` (spec.md §4.2 step 3, step 5).
func compileRule(prog *bytecode.Program, r *engine.Rule, defaultAction *engine.Rule) {
	markReachability(r)
	ruleRef := prog.AddRef(r)
	prog.Emit(bytecode.Instruction{Op: bytecode.RULE_START, A: bytecode.RefOperand(ruleRef)})
	removedJmp := prog.Emit(bytecode.Instruction{Op: bytecode.JMP_IF_REMOVED, A: bytecode.RefOperand(ruleRef)})

	links := r.Chains()
	// jnrmPatchSites records, for every link including the last, the
	// address of the JNRM instruction that skips straight to CHAIN_END if
	// that link's operator didn't match (aborting the rest of the chain).
	// Emitting one for the last link too costs nothing — falling through
	// on a match lands on CHAIN_END anyway — and it is what lets CHAIN_END
	// tell a fully-matched chain from one that failed on its final link.
	var jnrmPatchSites []int
	for _, link := range links {
		linkRef := prog.AddRef(link)
		prog.Emit(bytecode.Instruction{Op: bytecode.CHAIN_START, A: bytecode.RefOperand(linkRef)})
		compileLinkMatch(prog, link, defaultAction)
		addr := prog.Emit(bytecode.Instruction{Op: bytecode.JNRM})
		jnrmPatchSites = append(jnrmPatchSites, addr)
	}
	chainEnd := prog.Emit(bytecode.Instruction{Op: bytecode.CHAIN_END, A: bytecode.RefOperand(ruleRef)})
	for _, addr := range jnrmPatchSites {
		prog.Patch(addr, bytecode.Instruction{Op: bytecode.JNRM, A: bytecode.AddrOperand(chainEnd)})
	}
	// Every link's action/macro/log block is emitted after CHAIN_END, so
	// a failed chain falls through them with the chain flag cleared and
	// nothing fires: a chained rule's non-disruptive actions, like its
	// disruptive one, take effect only when the whole chain matched.
	for _, link := range links {
		compileLinkActions(prog, link, defaultAction)
	}
	prog.Emit(bytecode.Instruction{Op: bytecode.EXIT_IF_DISRUPTIVE, A: bytecode.RefOperand(ruleRef)})
	prog.Patch(removedJmp, bytecode.Instruction{Op: bytecode.JMP_IF_REMOVED, A: bytecode.RefOperand(ruleRef), B: bytecode.AddrOperand(prog.Len())})
}

// compileLinkMatch emits one chain link's variable/transform/operator
// loop, testing every target independently. A link with no Operator (a
// bare SecAction-style carrier) emits nothing here: the VM treats an
// operator-less link as matched unconditionally.
func compileLinkMatch(prog *bytecode.Program, link *engine.Rule, defaultAction *engine.Rule) {
	if link.Operator != nil {
		for _, v := range link.Variables {
			vRef := prog.AddRef(v)
			prog.Emit(bytecode.Instruction{Op: bytecode.LOAD_VAR, A: bytecode.RefOperand(vRef), D: bytecode.ERegOperand(bytecode.R8)})
			prog.Emit(bytecode.Instruction{Op: bytecode.TRANSFORM_START})
			if defaultAction != nil && !link.Flags.IgnoreDefaultTransform {
				for _, tr := range defaultAction.Transformations {
					trRef := prog.AddRef(tr)
					prog.Emit(bytecode.Instruction{Op: bytecode.TRANSFORM, A: bytecode.RefOperand(trRef)})
				}
			}
			for _, tr := range link.Transformations {
				trRef := prog.AddRef(tr)
				prog.Emit(bytecode.Instruction{Op: bytecode.TRANSFORM, A: bytecode.RefOperand(trRef)})
			}
			opRef := prog.AddRef(link.Operator)
			prog.Emit(bytecode.Instruction{Op: bytecode.OPERATOR, A: bytecode.RefOperand(opRef)})
			// An `@opA x|@opB y` cascade: each alternative is its own
			// OPERATOR instruction, and a match in any branch JOMs past
			// the remaining alternatives to the match-handling block.
			var jomSites []int
			for alt := link.Operator.Next; alt != nil; alt = alt.Next {
				jomSites = append(jomSites, prog.Emit(bytecode.Instruction{Op: bytecode.JOM}))
				altRef := prog.AddRef(alt)
				prog.Emit(bytecode.Instruction{Op: bytecode.OPERATOR, A: bytecode.RefOperand(altRef)})
			}
			cascadeEnd := prog.Len()
			for _, addr := range jomSites {
				prog.Patch(addr, bytecode.Instruction{Op: bytecode.JOM, A: bytecode.AddrOperand(cascadeEnd)})
			}
			if link.Flags.NeedsMatchedPush {
				if link.Flags.MultiMatch {
					prog.Emit(bytecode.Instruction{Op: bytecode.PUSH_ALL_MATCHED})
				} else {
					prog.Emit(bytecode.Instruction{Op: bytecode.PUSH_MATCHED})
				}
			}
		}
	}
}

// compileLinkActions emits one link's action list, macro expansion, and
// log callback. These instructions sit after CHAIN_END and the VM gates
// every one of them on the whole-chain match flag, so a `setvar` on a
// chain starter stays unapplied when a later link fails. Defaults first,
// then rule-local, in declared order (spec.md §9 design notes: the
// compile-time interleaving the spec pins down).
func compileLinkActions(prog *bytecode.Program, link *engine.Rule, defaultAction *engine.Rule) {
	if defaultAction != nil {
		for _, act := range defaultAction.Actions {
			if !isUnconditionalAction(act) {
				continue
			}
			actRef := prog.AddRef(act)
			prog.Emit(bytecode.Instruction{Op: bytecode.UNC_ACTION, A: bytecode.RefOperand(actRef)})
		}
	}
	for _, act := range link.Actions {
		if !isUnconditionalAction(act) {
			continue
		}
		actRef := prog.AddRef(act)
		prog.Emit(bytecode.Instruction{Op: bytecode.UNC_ACTION, A: bytecode.RefOperand(actRef)})
	}
	if link.MsgMacro() != nil || link.LogDataMacro() != nil {
		linkRef := prog.AddRef(link)
		prog.Emit(bytecode.Instruction{Op: bytecode.EXPAND_MACRO, A: bytecode.RefOperand(linkRef)})
	}
	linkRef := prog.AddRef(link)
	prog.Emit(bytecode.Instruction{Op: bytecode.LOG_CALLBACK, A: bytecode.RefOperand(linkRef)})
}

// isUnconditionalAction reports whether act should be emitted as a
// UNC_ACTION at all: every action runs at most once per link, gated by
// the VM on whether the whole chain matched, except skip/skipAfter,
// which never reach this switch as a runtime action — Compile reads
// SkipCount/SkipAfter directly off the rule's last chain link and lowers
// them to a JRM past the skipped rules (see skipTarget).
func isUnconditionalAction(act engine.RuleAction) bool {
	switch act.Kind {
	case engine.ActSkip, engine.ActSkipAfter:
		return false
	default:
		return true
	}
}

// markReachability implements the compiler's MATCHED_VAR reachability
// pass (spec.md §4.2 "Chain index and MATCHED_VAR sharing"): the
// matched-variables log is cleared at every RULE_START and accumulates
// across a chain's links, so a link's matches only need pushing when
// that link's own msg/logdata/actions — or a later link's, which read
// the accumulated log — reference the MATCHED_VAR family, or when
// `capture` requested every match be retained for inspection.
func markReachability(r *engine.Rule) {
	links := r.Chains()
	for i, link := range links {
		needs := link.ReferencesMatchedVar() || link.Flags.Capture
		for _, later := range links[i+1:] {
			if later.ReferencesMatchedVar() {
				needs = true
				break
			}
		}
		link.Flags.NeedsMatchedPush = needs
	}
}
