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
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jptosso/coraza-waf/pkg/value"
)

// LogCallback is invoked once per rule match, the host-provided per-rule
// logging hook named in spec.md §6.
type LogCallback func(rule *Rule, msgs []string, matched []MatchedVar)

// RemovedTarget records a `ctl:ruleRemoveTargetById`/`ByTag` exclusion:
// rule RuleID should skip Collection:Key for the rest of this transaction.
type RemovedTarget struct {
	RuleID     int64
	Collection string
	Key        string
}

// Transaction owns all per-request mutable state described in spec.md §3
// "Transaction context". It is exclusive to the thread driving it; the
// WAF's compiled rules and global caches it reads are shared and immutable.
//
// Lifecycle: created by (*WAF).NewTransaction, populated phase by phase via
// the Process* methods, released by the host when the request is done.
type Transaction struct {
	Id        string
	Timestamp int64

	waf *WAF

	Phase       int
	Disposition Disposition

	// Collections holds every named collection this transaction can read
	// or write: tx, args_get, args_post, args, request_headers,
	// request_cookies, response_headers, files, env (shared with the
	// engine), and so on. Keys are lowercase collection names.
	Collections map[string]*Collection

	Captures    CaptureRing
	MatchedLog  MatchedVarsLog
	Transform   *TransformCache
	Interner    Interner

	// TransformTrail is the transient per-element trail buffer: the list
	// of transformations actually applied to the current element, filled
	// between TRANSFORM_START and a PUSH_MATCHED instruction.
	TransformTrail []TransformKind

	CurrentRule *Rule
	CurrentVar  *VariableExpr

	LogCallback LogCallback

	// RuleRemoveById is the set of rule ids administratively removed by
	// `ctl:ruleRemoveById` in this transaction; a rule removed in phase
	// p<=q is skipped in phase q (spec.md §8).
	RuleRemoveById map[int64]bool
	RemovedTargets []RemovedTarget

	RequestBodyAccess bool
	RequestBodyLimit  int64

	stopRequest bool

	// matchedRules accumulates every rule that matched across all phases,
	// independent of whether a host LogCallback is wired, so ProcessLogging
	// always has something to hand the audit log.
	matchedRules []*Rule
}

// RecordMatch appends rule to this transaction's matched-rule list. The VM
// calls this on every LOG_CALLBACK instruction whose chain matched, ahead
// of invoking any host-provided LogCallback.
func (t *Transaction) RecordMatch(rule *Rule) {
	t.matchedRules = append(t.matchedRules, rule)
}

// MatchedRules returns every rule that matched in this transaction so far,
// in match order.
func (t *Transaction) MatchedRules() []*Rule {
	return t.matchedRules
}

// GetCollection returns the named collection, creating it empty on first
// use (matching the teacher's always-available `tx.GetCollection(name)`).
func (t *Transaction) GetCollection(name string) *Collection {
	if c, ok := t.Collections[name]; ok {
		return c
	}
	c := NewCollection(name)
	t.Collections[name] = c
	return c
}

// GetRemovedTargets returns the exclusions registered against ruleID.
func (t *Transaction) GetRemovedTargets(ruleID int64) []RemovedTarget {
	var out []RemovedTarget
	for _, rt := range t.RemovedTargets {
		if rt.RuleID == ruleID {
			out = append(out, rt)
		}
	}
	return out
}

// IsRuleRemoved reports whether ruleID was administratively removed via
// ctl:ruleRemoveById earlier in this transaction.
func (t *Transaction) IsRuleRemoved(ruleID int64) bool {
	return t.RuleRemoveById[ruleID]
}

// RemoveRuleById marks ruleID as administratively removed for the rest of
// the transaction.
func (t *Transaction) RemoveRuleById(ruleID int64) {
	t.RuleRemoveById[ruleID] = true
}

// RemoveRuleTarget excludes collection:key from future evaluation of
// ruleID within this transaction.
func (t *Transaction) RemoveRuleTarget(ruleID int64, collection, key string) {
	t.RemovedTargets = append(t.RemovedTargets, RemovedTarget{ruleID, collection, key})
}

// StopRequest reports whether an `allow:request` or disruptive action
// already terminated the whole transaction, not just the current phase.
func (t *Transaction) StopRequest() bool { return t.stopRequest }

// SetStopRequest latches StopRequest(); it is sticky for the transaction's
// remaining lifetime.
func (t *Transaction) SetStopRequest() { t.stopRequest = true }

// EngineMode exposes the SecRuleEngine mode to the VM, which needs it to
// decide whether a disruptive action is enforced or only detected.
func (t *Transaction) EngineMode() RuleEngineMode { return t.waf.Config.RuleEngine }

// resolveMacroVar implements scalar macro expansion for `%{VAR}` and
// `%{VAR.sub}`/`%{VAR:sub}` references (spec.md §3 "Macro").
func (t *Transaction) resolveMacroVar(varName, subKey string) string {
	vals := t.resolveMacroVarList(varName, subKey)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// resolveMacroVarList returns every value a macro variable reference
// expands to, used both for scalar expansion (element 0) and for operator
// RHS macros that should be tried against multiple candidates.
func (t *Transaction) resolveMacroVarList(varName, subKey string) []string {
	switch normalizeCollectionName(varName) {
	case "matched_var":
		if m, ok := t.MatchedLog.Last(); ok {
			return []string{m.Transformed}
		}
		return nil
	case "matched_var_name":
		if m, ok := t.MatchedLog.Last(); ok {
			return []string{m.FullName()}
		}
		return nil
	case "matched_vars":
		all := t.MatchedLog.All()
		out := make([]string, len(all))
		for i, m := range all {
			out[i] = m.Transformed
		}
		return out
	case "matched_vars_names":
		all := t.MatchedLog.All()
		out := make([]string, len(all))
		for i, m := range all {
			out[i] = m.FullName()
		}
		return out
	case "time_epoch":
		return []string{strconv.FormatInt(t.Timestamp/int64(time.Second), 10)}
	case "duration":
		return []string{strconv.FormatInt((time.Now().UnixNano()-t.Timestamp)/int64(time.Millisecond), 10)}
	}
	if normalizeCollectionName(varName) == "tx" {
		if i, ok := captureSlot(subKey); ok {
			if v := t.Captures.Get(i); v != "" {
				return []string{v}
			}
		}
	}
	col := t.GetCollection(normalizeCollectionName(varName))
	if subKey == "" {
		if col.Len() == 1 {
			return []string{col.GetFirstString("")}
		}
		return col.Get("")
	}
	return col.Get(subKey)
}

// captureSlot reports whether subKey names one of the tx.0..tx.9 capture
// slots, and which.
func captureSlot(subKey string) (int, bool) {
	if len(subKey) == 1 && subKey[0] >= '0' && subKey[0] <= '9' {
		return int(subKey[0] - '0'), true
	}
	return 0, false
}

func normalizeCollectionName(name string) string {
	return toLower(name)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// EvalVariableForRule is EvalVariable filtered by any
// `ctl:ruleRemoveTargetById`/`ByTag` exclusions registered against
// ruleID earlier in this transaction (spec.md §3 "ctl" actions).
func (t *Transaction) EvalVariableForRule(ruleID int64, v VariableExpr) []value.Element {
	elems := t.EvalVariable(v)
	removed := t.GetRemovedTargets(ruleID)
	if len(removed) == 0 {
		return elems
	}
	name := collectionNameFor(v.Kind)
	out := elems[:0]
	for _, e := range elems {
		excluded := false
		for _, rt := range removed {
			if rt.Collection == name && (rt.Key == "" || rt.Key == e.SubName) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, e)
		}
	}
	return out
}

// EvalVariable is the single generalized LOAD_VAR handler (see
// pkg/bytecode "LOAD opcode collapsing"): it resolves one VariableExpr
// against this transaction's state, for all five addressing modes.
func (t *Transaction) EvalVariable(v VariableExpr) []value.Element {
	switch v.Kind {
	case VarMATCHED_VAR, VarMATCHED_VAR_NAME, VarMATCHED_VARS, VarMATCHED_VARS_NAMES:
		return t.evalMatchedVarKind(v)
	case VarTIME_EPOCH:
		return []value.Element{{Value: value.Str(strconv.FormatInt(t.Timestamp/int64(time.Second), 10))}}
	case VarUNIQUE_ID:
		return []value.Element{{Value: value.Str(t.Id)}}
	case VarTX:
		// TX:0..TX:9 read the capture ring; every other subkey is the
		// ordinary tx collection.
		if i, ok := captureSlot(v.SubName); ok && v.Mode == ModeVS {
			if cv := t.Captures.Get(i); cv != "" {
				return []value.Element{{SubName: v.SubName, Value: value.Str(cv)}}
			}
		}
	}
	col := t.GetCollection(collectionNameFor(v.Kind))
	return t.evalCollection(col, v)
}

func (t *Transaction) evalMatchedVarKind(v VariableExpr) []value.Element {
	switch v.Kind {
	case VarMATCHED_VAR:
		if m, ok := t.MatchedLog.Last(); ok {
			return []value.Element{{SubName: m.SubName, Value: value.Str(m.Transformed)}}
		}
	case VarMATCHED_VAR_NAME:
		if m, ok := t.MatchedLog.Last(); ok {
			return []value.Element{{SubName: m.SubName, Value: value.Str(m.FullName())}}
		}
	case VarMATCHED_VARS:
		all := t.MatchedLog.All()
		out := make([]value.Element, len(all))
		for i, m := range all {
			out[i] = value.Element{SubName: m.SubName, Value: value.Str(m.Transformed)}
		}
		return out
	case VarMATCHED_VARS_NAMES:
		all := t.MatchedLog.All()
		out := make([]value.Element, len(all))
		for i, m := range all {
			out[i] = value.Element{SubName: m.SubName, Value: value.Str(m.FullName())}
		}
		return out
	}
	return nil
}

// isNamesKind reports whether v addresses the `_NAMES` projection of a
// collection (e.g. ARGS_NAMES, REQUEST_HEADERS_NAMES): the element values
// are the collection's keys rather than its values.
func isNamesKind(k VariableKind) bool {
	switch k {
	case VarARGS_NAMES, VarARGS_GET_NAMES, VarARGS_POST_NAMES,
		VarREQUEST_HEADERS_NAMES, VarREQUEST_COOKIES_NAMES,
		VarRESPONSE_HEADERS_NAMES, VarFILES_NAMES:
		return true
	}
	return false
}

func (t *Transaction) evalCollection(col *Collection, v VariableExpr) []value.Element {
	names := isNamesKind(v.Kind)
	switch v.Mode {
	case ModeCC:
		return []value.Element{{Value: value.Int(int64(col.Len()))}}
	case ModeCS:
		return []value.Element{{Value: value.Int(int64(len(col.Get(v.SubName))))}}
	case ModeVS:
		vals := col.Get(v.SubName)
		if len(vals) == 0 {
			return nil
		}
		val := vals[0]
		if names {
			val = v.SubName
		}
		return []value.Element{{SubName: v.SubName, Value: value.Str(val)}}
	case ModeVR:
		re, err := regexp.Compile(v.SubName)
		if err != nil {
			return nil
		}
		pairs := col.SelectRegex(re)
		out := make([]value.Element, 0, len(pairs))
		for _, p := range pairs {
			if containsExc(v.Exceptions, p[0]) {
				continue
			}
			val := p[1]
			if names {
				val = p[0]
			}
			out = append(out, value.Element{SubName: p[0], Value: value.Str(val)})
		}
		return out
	default: // ModeVC
		pairs := col.All()
		out := make([]value.Element, 0, len(pairs))
		for _, p := range pairs {
			if containsExc(v.Exceptions, p[0]) {
				continue
			}
			val := p[1]
			if names {
				val = p[0]
			}
			out = append(out, value.Element{SubName: p[0], Value: value.Str(val)})
		}
		return out
	}
}

func containsExc(exc []string, key string) bool {
	for _, e := range exc {
		if e == key {
			return true
		}
	}
	return false
}

var collectionNames = map[VariableKind]string{
	VarARGS: "args", VarARGS_GET: "args_get", VarARGS_POST: "args_post",
	VarARGS_NAMES: "args", VarARGS_GET_NAMES: "args_get", VarARGS_POST_NAMES: "args_post",
	VarREQUEST_HEADERS: "request_headers", VarREQUEST_HEADERS_NAMES: "request_headers",
	VarREQUEST_COOKIES: "request_cookies", VarREQUEST_COOKIES_NAMES: "request_cookies",
	VarREQUEST_LINE: "request_line", VarREQUEST_METHOD: "request_method",
	VarREQUEST_PROTOCOL: "request_protocol", VarREQUEST_URI: "request_uri",
	VarREQUEST_URI_RAW: "request_uri_raw", VarREQUEST_FILENAME: "request_filename",
	VarREQUEST_BODY: "request_body", VarQUERY_STRING: "query_string",
	VarREMOTE_ADDR: "remote_addr", VarREMOTE_PORT: "remote_port",
	VarRESPONSE_HEADERS: "response_headers", VarRESPONSE_HEADERS_NAMES: "response_headers",
	VarRESPONSE_BODY: "response_body", VarRESPONSE_STATUS: "response_status",
	VarTX: "tx", VarRULE: "rule", VarTIME: "time", VarDURATION: "duration",
	VarENV: "env", VarFILES: "files", VarFILES_NAMES: "files_names",
	VarFILES_COMBINED_SIZE: "files_combined_size", VarFILES_SIZES: "files_sizes",
}

func collectionNameFor(k VariableKind) string {
	if n, ok := collectionNames[k]; ok {
		return n
	}
	return "unknown"
}

// newTransaction allocates a Transaction bound to waf's immutable state.
func newTransaction(waf *WAF) *Transaction {
	t := &Transaction{
		Id:                uuid.NewString(),
		Timestamp:         time.Now().UnixNano(),
		waf:               waf,
		Collections:       map[string]*Collection{},
		Transform:         NewTransformCache(),
		RuleRemoveById:    map[int64]bool{},
		RequestBodyAccess: waf.Config.RequestBodyAccess,
		RequestBodyLimit:  waf.Config.RequestBodyLimit,
	}
	t.GetCollection("tx")
	t.GetCollection("env").entries = waf.env.entries
	return t
}
