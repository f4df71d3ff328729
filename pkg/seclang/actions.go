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

package seclang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// metadataActions are accepted, recorded nowhere, action keywords: pure
// ruleset bookkeeping (revision/maturity/accuracy markers) that OWASP
// CRS-class rulesets carry on nearly every rule but spec.md's Rule IR has
// no field for.
var metadataActions = map[string]bool{
	"rev": true, "maturity": true, "ver": true, "accuracy": true,
}

// runtimeActionKinds are the action names pkg/engine.ApplyAction interprets
// at runtime (as opposed to the ones parseActions resolves into Rule
// fields directly).
var runtimeActionKinds = map[string]engine.ActionKind{
	"setvar": engine.ActSetVar, "setenv": engine.ActSetEnv,
	"initcol": engine.ActInitCol, "setsid": engine.ActSetSID,
	"setuid": engine.ActSetUID, "setrsc": engine.ActSetRSC,
	"ctl": engine.ActCtl,
}

// parseActions parses a SecRule/SecAction/SecDefaultAction action-list
// field into r's fields, returning whether this rule requested `chain`
// (the continuation link follows as the next SecRule in source order).
func parseActions(r *engine.Rule, field string) (wantsChain bool, err error) {
	for _, raw := range splitTopLevel(field, ',') {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		name, val, hasVal := strings.Cut(item, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.TrimSpace(val)
		switch name {
		case "id":
			id, perr := strconv.ParseInt(val, 10, 64)
			if perr != nil {
				return false, fmt.Errorf("seclang: bad id %q: %w", val, perr)
			}
			r.Id = id
		case "phase":
			p, perr := parsePhase(val)
			if perr != nil {
				return false, perr
			}
			r.Phase = p
		case "msg":
			r.Msg = unquoteValue(val)
		case "logdata":
			r.LogData = unquoteValue(val)
		case "tag":
			r.Tags = append(r.Tags, unquoteValue(val))
		case "severity":
			r.Severity = unquoteValue(val)
		case "capture":
			r.Flags.Capture = true
		case "multimatch", "allmatch":
			r.Flags.MultiMatch = true
		case "firstmatch":
			r.Flags.MultiMatch = false
		case "emptymatch":
			for op := r.Operator; op != nil; op = op.Next {
				op.EmptyMatch = true
			}
		case "chain", "multichain":
			wantsChain = true
		case "skip":
			n, perr := strconv.Atoi(val)
			if perr != nil {
				return false, fmt.Errorf("seclang: bad skip count %q: %w", val, perr)
			}
			r.SkipCount = n
		case "skipafter":
			r.SkipAfter = unquoteValue(val)
		case "t":
			kind, ok := engine.LookupTransformKind(val)
			if !ok {
				return false, fmt.Errorf("seclang: unknown transformation t:%s", val)
			}
			if kind == engine.TNone {
				r.Transformations = nil
				r.Flags.IgnoreDefaultTransform = true
				continue
			}
			r.Transformations = append(r.Transformations, engine.Transformation{Kind: kind})
		case "log":
			r.Flags.Log = true
		case "nolog":
			r.Flags.Log = false
		case "auditlog":
			r.Flags.AuditLog = true
		case "noauditlog":
			r.Flags.AuditLog = false
		case "allow":
			r.Disruptive = engine.DisruptiveAllow
			r.AllowScope = allowScopeFor(val)
		case "block":
			r.Disruptive = engine.DisruptiveBlock
		case "deny":
			r.Disruptive = engine.DisruptiveDeny
		case "drop":
			r.Disruptive = engine.DisruptiveDrop
		case "pass":
			r.Disruptive = engine.DisruptivePass
		case "redirect":
			r.Disruptive = engine.DisruptiveRedirect
			r.RedirectTo = unquoteValue(val)
		case "status":
			n, perr := strconv.Atoi(val)
			if perr != nil {
				return false, fmt.Errorf("seclang: bad status %q: %w", val, perr)
			}
			r.Status = n
		default:
			if metadataActions[name] {
				continue
			}
			if kind, ok := runtimeActionKinds[name]; ok {
				params := val
				if !hasVal {
					params = ""
				}
				r.Actions = append(r.Actions, engine.RuleAction{Kind: kind, Params: unquoteValue(params)})
				continue
			}
			return false, fmt.Errorf("seclang: unknown action %q", name)
		}
	}
	return wantsChain, nil
}

func allowScopeFor(val string) engine.AllowScope {
	switch strings.ToLower(val) {
	case "request":
		return engine.AllowRequest
	case "none":
		return engine.AllowNone
	default: // "" or "phase": allow with no argument == allow:phase (spec.md §9)
		return engine.AllowPhase
	}
}

func parsePhase(val string) (int, error) {
	switch strings.ToLower(val) {
	case "request", "request-headers", "1":
		return 1, nil
	case "request-body", "2":
		return 2, nil
	case "response-headers", "3":
		return 3, nil
	case "response-body", "response", "4":
		return 4, nil
	case "logging", "5":
		return 5, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("seclang: bad phase %q", val)
	}
	return n, nil
}
