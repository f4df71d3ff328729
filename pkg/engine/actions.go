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

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ApplyAction runs one action's side effect against tx. It is called by
// the VM's ACTION/UNC_ACTION handlers — ACTION only for the element that
// matched, UNC_ACTION once per rule regardless of which elements matched.
func ApplyAction(tx *Transaction, rule *Rule, act RuleAction) {
	switch act.Kind {
	case ActSetVar:
		applySetVar(tx, act.Params)
	case ActSetEnv:
		applySetEnv(tx, act.Params)
	case ActInitCol:
		applyInitCol(tx, act.Params)
	case ActSetSID, ActSetUID, ActSetRSC:
		// Persistent collection binding: out of core scope (spec.md §1
		// "OUT OF SCOPE: Persistent collections"). Recorded as a no-op tx
		// variable so macros referencing it still resolve to something.
		tx.GetCollection("tx").Set("__session_binding", act.Params)
	case ActCtl:
		applyCtl(tx, rule, act.Params)
	case ActSkip, ActSkipAfter:
		// Purely compile-time: the compiler already emitted the relocated
		// jump: see pkg/compiler "skip handling". Nothing to do at
		// runtime.
	default:
		// Disruptive kinds (ActBlock/Deny/Drop/Pass/Redirect/Allow/Status)
		// are read directly off the Rule by EXIT_IF_DISRUPTIVE; they carry
		// no independent runtime behavior here.
	}
}

// applySetVar implements `setvar:collection.key=value`, including the
// create/increase/decrease grammar, the `!collection.key` removal form,
// and `%{...}` macro expansion on both sides of the assignment.
func applySetVar(tx *Transaction, params string) {
	if strings.HasPrefix(params, "!") {
		col, key := splitCollectionKey(params[1:])
		tx.GetCollection(col).Remove(key)
		return
	}
	target, expr, ok := strings.Cut(params, "=")
	if !ok {
		target, expr = params, "1"
	}
	col, key := splitCollectionKey(expandMacros(tx, target))
	tx.GetCollection(col).SetVar(key, expandMacros(tx, expr))
}

// expandMacros resolves any `%{...}` references in s against tx, preserving
// a leading `+`/`-` so the create/increase/decrease grammar still applies
// to the expanded value.
func expandMacros(tx *Transaction, s string) string {
	if !strings.Contains(s, "%{") {
		return s
	}
	if m := ParseMacro(s); m != nil {
		return m.Expand(tx)
	}
	return s
}

func splitCollectionKey(s string) (collection, key string) {
	collection, key, ok := strings.Cut(s, ".")
	if !ok {
		return "tx", s
	}
	return strings.ToLower(collection), key
}

func applySetEnv(tx *Transaction, params string) {
	name, val, ok := strings.Cut(params, "=")
	if !ok {
		name, val = params, "1"
	}
	tx.GetCollection("env").Set(name, val)
}

func applyInitCol(tx *Transaction, params string) {
	name, _, _ := strings.Cut(params, "=")
	tx.GetCollection(strings.ToLower(name))
}

// applyCtl implements the `ctl:*` family (spec.md §3 "Action", §9 design
// notes on ctl:auditEngine being a parse-time-only no-op).
func applyCtl(tx *Transaction, rule *Rule, params string) {
	name, arg, _ := strings.Cut(params, "=")
	switch strings.ToLower(name) {
	case "auditengine", "auditlogparts":
		// Accepted at parse time, no-op at runtime until the audit-log
		// component grows controllable parts (spec.md §9 open question).
	case "rulesremovebyid", "ruleremovebyid":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err == nil {
			tx.RemoveRuleById(id)
		}
	case "ruleremovebyidrange":
		lo, hi, ok := strings.Cut(arg, "-")
		if ok {
			start, err1 := strconv.ParseInt(lo, 10, 64)
			end, err2 := strconv.ParseInt(hi, 10, 64)
			if err1 == nil && err2 == nil {
				for id := start; id <= end; id++ {
					tx.RemoveRuleById(id)
				}
			}
		}
	case "ruleremovebytag":
		if tx.waf != nil {
			for _, r := range tx.waf.FindRulesByTag(arg) {
				tx.RemoveRuleById(r.Id)
			}
		}
	case "ruleremovetargetbyid":
		id, targets, ok := strings.Cut(arg, ";")
		if !ok {
			return
		}
		ruleID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return
		}
		col, key, _ := strings.Cut(targets, ":")
		tx.RemoveRuleTarget(ruleID, strings.ToLower(col), key)
	case "ruleremovetargetbytag":
		tag, targets, ok := strings.Cut(arg, ";")
		if !ok || tx.waf == nil {
			return
		}
		col, key, _ := strings.Cut(targets, ":")
		for _, r := range tx.waf.FindRulesByTag(tag) {
			tx.RemoveRuleTarget(r.Id, strings.ToLower(col), key)
		}
	case "requestbodyaccess":
		tx.RequestBodyAccess = strings.EqualFold(arg, "on")
	default:
		log.WithFields(log.Fields{"rule_id": rule.Id, "ctl": name}).Debug("unhandled ctl directive")
	}
}
