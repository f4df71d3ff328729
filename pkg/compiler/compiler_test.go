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

package compiler

import (
	"testing"

	"github.com/jptosso/coraza-waf/pkg/bytecode"
	"github.com/jptosso/coraza-waf/pkg/engine"
)

func ruleWithOp(id int64, disruptive engine.DisruptiveKind) *engine.Rule {
	r := engine.NewRule()
	r.Id = id
	r.Phase = 1
	r.Variables = []engine.VariableExpr{{Kind: engine.VarREQUEST_METHOD}}
	r.Operator = &engine.Operator{Kind: engine.OpUnconditionalMatch}
	r.Disruptive = disruptive
	return r
}

func TestCompileSkipCount(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	r1.SkipCount = 1
	r2 := ruleWithOp(2, engine.DisruptiveDeny)
	r3 := ruleWithOp(3, engine.DisruptiveDeny)

	prog, err := Compile([]*engine.Rule{r1, r2, r3}, nil, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var jrmCount int
	for _, instr := range prog.Instructions {
		if instr.Op == bytecode.JRM {
			jrmCount++
		}
	}
	if jrmCount != 1 {
		t.Fatalf("expected exactly one JRM for rule 1's skip:1, got %d", jrmCount)
	}
}

func TestCompileSkipAfterResolvesMarker(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	r1.SkipAfter = "END"
	r2 := ruleWithOp(2, engine.DisruptiveDeny)

	markers := map[string]engine.Marker{"END": {Name: "END", Phase: 1, Index: 2}}
	prog, err := Compile([]*engine.Rule{r1, r2}, nil, 1, markers)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var found bool
	for i, instr := range prog.Instructions {
		if instr.Op != bytecode.JRM {
			continue
		}
		found = true
		// The marker resolves to rule index 2, which is past the end of a
		// 2-rule program: the jump should land on the program's own end.
		if instr.A.Addr != prog.Len() {
			t.Fatalf("instruction %d: expected skipAfter to land at program end (%d), got %d", i, prog.Len(), instr.A.Addr)
		}
	}
	if !found {
		t.Fatal("expected a JRM instruction for rule 1's skipAfter")
	}
}

func TestCompileDefaultActionAppliesToUnsetDisruptive(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	def := engine.NewRule()
	def.Disruptive = engine.DisruptiveDeny
	def.Status = 403

	_, err := Compile([]*engine.Rule{r1}, def, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r1.Disruptive != engine.DisruptiveDeny || r1.Status != 403 {
		t.Fatalf("expected rule to inherit SecDefaultAction's disposition, got %+v", r1)
	}
}

func TestCompileDefaultActionDoesNotOverrideRuleLocal(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptivePass)
	def := engine.NewRule()
	def.Disruptive = engine.DisruptiveDeny
	def.Status = 403

	_, err := Compile([]*engine.Rule{r1}, def, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r1.Disruptive != engine.DisruptivePass {
		t.Fatalf("a rule with its own disruptive action must not be overridden by SecDefaultAction, got %+v", r1)
	}
}

func TestCompileDefaultTransformationPrecedesRuleLocal(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	r1.Transformations = []engine.Transformation{{Kind: engine.TTrim}}
	def := engine.NewRule()
	def.Transformations = []engine.Transformation{{Kind: engine.TLowercase}}

	prog, err := Compile([]*engine.Rule{r1}, def, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var kinds []engine.TransformKind
	for _, instr := range prog.Instructions {
		if instr.Op != bytecode.TRANSFORM {
			continue
		}
		tr, _ := prog.Ref(instr.A.Ref).(engine.Transformation)
		kinds = append(kinds, tr.Kind)
	}
	if len(kinds) != 2 || kinds[0] != engine.TLowercase || kinds[1] != engine.TTrim {
		t.Fatalf("expected [lowercase, trim] in default-then-local order, got %v", kinds)
	}
}

func TestCompileActionsEmittedAfterChainEnd(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	r1.Actions = []engine.RuleAction{{Kind: engine.ActSetVar, Params: "tx.seen=1"}}
	cont := ruleWithOp(1, engine.DisruptiveNone)
	cont.ChainIndex = 1
	cont.Actions = []engine.RuleAction{{Kind: engine.ActSetVar, Params: "tx.seen2=1"}}
	r1.Chain = cont

	prog, err := Compile([]*engine.Rule{r1}, nil, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	chainEnd := -1
	var actionAddrs []int
	for i, instr := range prog.Instructions {
		switch instr.Op {
		case bytecode.CHAIN_END:
			chainEnd = i
		case bytecode.UNC_ACTION:
			actionAddrs = append(actionAddrs, i)
		}
	}
	if chainEnd == -1 {
		t.Fatal("expected a CHAIN_END instruction")
	}
	if len(actionAddrs) != 2 {
		t.Fatalf("expected both links' setvars as UNC_ACTION, got %d", len(actionAddrs))
	}
	// The VM gates UNC_ACTION on the whole-chain flag, which is only
	// settled at CHAIN_END: an action emitted before it would fire off a
	// partially-matched chain.
	for _, addr := range actionAddrs {
		if addr < chainEnd {
			t.Fatalf("UNC_ACTION at %d precedes CHAIN_END at %d", addr, chainEnd)
		}
	}
}

func TestCompileIgnoreDefaultTransformSkipsDefaults(t *testing.T) {
	r1 := ruleWithOp(1, engine.DisruptiveNone)
	r1.Flags.IgnoreDefaultTransform = true
	r1.Transformations = []engine.Transformation{{Kind: engine.TTrim}}
	def := engine.NewRule()
	def.Transformations = []engine.Transformation{{Kind: engine.TLowercase}}

	prog, err := Compile([]*engine.Rule{r1}, def, 1, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var kinds []engine.TransformKind
	for _, instr := range prog.Instructions {
		if instr.Op != bytecode.TRANSFORM {
			continue
		}
		tr, _ := prog.Ref(instr.A.Ref).(engine.Transformation)
		kinds = append(kinds, tr.Kind)
	}
	if len(kinds) != 1 || kinds[0] != engine.TTrim {
		t.Fatalf("expected only [trim] when ignoreDefaultTransform is set, got %v", kinds)
	}
}
