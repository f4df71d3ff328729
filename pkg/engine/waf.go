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
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jptosso/coraza-waf/pkg/bytecode"
)

const PhaseTotal = 5

// Runner executes one compiled phase program against a transaction. The
// concrete implementation lives in pkg/vm (installed into WAF.Runner by
// vm.Wire) to keep
// pkg/engine free of a dependency on the VM package.
type Runner func(program *bytecode.Program, tx *Transaction) (Disposition, error)

// Marker is a `SecMarker` label: the index within its phase's rule list
// that `skipAfter` resolves against.
type Marker struct {
	Name  string
	Phase int
	Index int
}

// WAF is the engine singleton described in spec.md §6: it accumulates
// rules via Load*, finalizes them at Init, and mints Transactions bound to
// its immutable compiled state.
type WAF struct {
	Config Config

	rules         [PhaseTotal][]*Rule
	defaultAction [PhaseTotal]*Rule
	markers       map[string]Marker
	byID          map[int64]*Rule

	Programs [PhaseTotal][]*bytecode.Program

	env *Collection

	Audit *ConcurrentLogger

	Runner Runner

	initialized bool
}

// NewWAF constructs an engine with default configuration and no rules
// loaded yet.
func NewWAF() *WAF {
	cfg := DefaultConfig()
	return &WAF{
		Config:  cfg,
		markers: map[string]Marker{},
		byID:    map[int64]*Rule{},
		env:     NewCollection("env"),
	}
}

// AddRule registers one already-parsed rule (and its chain, if any) with
// the engine. Calling AddRule after Init is a configuration error: the
// engine's contract is load-then-init-then-serve.
func (w *WAF) AddRule(r *Rule) error {
	if w.initialized {
		return fmt.Errorf("engine: cannot add rule %d after Init", r.Id)
	}
	if r.Phase < 1 || r.Phase > PhaseTotal {
		return fmt.Errorf("engine: rule %d has invalid phase %d", r.Id, r.Phase)
	}
	if _, dup := w.byID[r.Id]; dup {
		return fmt.Errorf("engine: duplicate rule id %d", r.Id)
	}
	w.rules[r.Phase-1] = append(w.rules[r.Phase-1], r)
	w.byID[r.Id] = r
	return nil
}

// SetDefaultAction registers the `SecDefaultAction` rule for a phase.
func (w *WAF) SetDefaultAction(phase int, r *Rule) error {
	if phase < 1 || phase > PhaseTotal {
		return fmt.Errorf("engine: invalid phase %d for SecDefaultAction", phase)
	}
	w.defaultAction[phase-1] = r
	return nil
}

// AddMarker registers a `SecMarker` label at its current position in
// phase's rule list.
func (w *WAF) AddMarker(name string, phase int) {
	w.markers[name] = Marker{Name: name, Phase: phase, Index: len(w.rules[phase-1])}
}

// Marker resolves a SecMarker label.
func (w *WAF) Marker(name string) (Marker, bool) {
	m, ok := w.markers[name]
	return m, ok
}

// FindRuleById looks up a starter rule (chained continuations are not
// independently addressable) by id.
func (w *WAF) FindRuleById(id int64) (*Rule, bool) {
	r, ok := w.byID[id]
	return r, ok
}

// FindRulesByTag returns every starter rule carrying tag.
func (w *WAF) FindRulesByTag(tag string) []*Rule {
	var out []*Rule
	for _, r := range w.byID {
		for _, t := range r.Tags {
			if t == tag {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// FindRulesByMsg returns every starter rule whose message template equals
// msg.
func (w *WAF) FindRulesByMsg(msg string) []*Rule {
	var out []*Rule
	for _, r := range w.byID {
		if r.Msg == msg {
			out = append(out, r)
		}
	}
	return out
}

// RemoveRuleByTag removes every rule tagged tag from the load-time rule
// set, implementing `SecRuleRemoveByTag` (a load-time analogue of the
// runtime ctl:ruleRemoveByTag).
func (w *WAF) RemoveRuleByTag(tag string) {
	w.removeRulesWhere(func(r *Rule) bool {
		for _, t := range r.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// RemoveRuleByID removes a single rule from the load-time rule set,
// implementing `SecRuleRemoveById`.
func (w *WAF) RemoveRuleByID(id int64) {
	w.removeRulesWhere(func(r *Rule) bool { return r.Id == id })
}

// RemoveRuleByMsg removes every rule whose message template equals msg,
// implementing `SecRuleRemoveByMsg`.
func (w *WAF) RemoveRuleByMsg(msg string) {
	w.removeRulesWhere(func(r *Rule) bool { return r.Msg == msg })
}

func (w *WAF) removeRulesWhere(match func(*Rule) bool) {
	for phase := 0; phase < PhaseTotal; phase++ {
		kept := w.rules[phase][:0]
		for _, r := range w.rules[phase] {
			if match(r) {
				delete(w.byID, r.Id)
				continue
			}
			kept = append(kept, r)
		}
		w.rules[phase] = kept
	}
}

// Rules returns the starter rules loaded for phase (1..5), in load order.
func (w *WAF) Rules(phase int) []*Rule {
	if phase < 1 || phase > PhaseTotal {
		return nil
	}
	return w.rules[phase-1]
}

// DefaultAction returns the `SecDefaultAction` rule for phase, if any.
func (w *WAF) DefaultAction(phase int) *Rule {
	if phase < 1 || phase > PhaseTotal {
		return nil
	}
	return w.defaultAction[phase-1]
}

// Init finalizes the engine: it resolves SecRuleUpdate/Remove directives
// (already applied eagerly by Load*, so this step is a no-op today but
// kept as the documented idempotent boundary) and compiles every phase's
// rules into a Program. The operator auxiliary caches are not built here;
// pkg/operators fills them lazily on first use. It must be called exactly
// once, after every Load* call.
func (w *WAF) Init(compile func(rules []*Rule, defaultAction *Rule, phase int, markers map[string]Marker) (*bytecode.Program, error)) error {
	if w.initialized {
		return fmt.Errorf("engine: Init already called")
	}
	for phase := 1; phase <= PhaseTotal; phase++ {
		prog, err := compile(w.rules[phase-1], w.defaultAction[phase-1], phase, w.markers)
		if err != nil {
			return fmt.Errorf("engine: compiling phase %d: %w", phase, err)
		}
		w.Programs[phase-1] = append(w.Programs[phase-1], prog)
	}
	w.initialized = true
	log.WithField("rules", len(w.byID)).Info("engine initialized")
	return nil
}

// NewTransaction allocates a Transaction bound to this engine's immutable
// compiled state.
func (w *WAF) NewTransaction() *Transaction {
	return newTransaction(w)
}
