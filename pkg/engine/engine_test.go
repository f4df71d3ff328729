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

import "testing"

func TestEvalVariableAddressModes(t *testing.T) {
	waf := NewWAF()
	tx := waf.NewTransaction()
	col := tx.GetCollection("args")
	col.Add("a", "1")
	col.Add("b", "2")
	col.Add("id_x", "3")

	whole := tx.EvalVariable(VariableExpr{Kind: VarARGS, Mode: ModeVC})
	if len(whole) != 3 {
		t.Fatalf("ModeVC: expected 3 elements, got %d", len(whole))
	}

	single := tx.EvalVariable(VariableExpr{Kind: VarARGS, Mode: ModeVS, SubName: "a"})
	if len(single) != 1 || single[0].Value.String() != "1" {
		t.Fatalf("ModeVS: unexpected result %+v", single)
	}

	counted := tx.EvalVariable(VariableExpr{Kind: VarARGS, Mode: ModeCC})
	if len(counted) != 1 || counted[0].Value.String() != "3" {
		t.Fatalf("ModeCC: expected count 3, got %+v", counted)
	}

	regexed := tx.EvalVariable(VariableExpr{Kind: VarARGS, Mode: ModeVR, SubName: "^id_"})
	if len(regexed) != 1 || regexed[0].SubName != "id_x" {
		t.Fatalf("ModeVR: expected one id_-prefixed match, got %+v", regexed)
	}
}

func TestEvalVariableNamesProjection(t *testing.T) {
	waf := NewWAF()
	tx := waf.NewTransaction()
	col := tx.GetCollection("args")
	col.Add("username", "bob")
	col.Add("password", "secret")

	names := tx.EvalVariable(VariableExpr{Kind: VarARGS_NAMES, Mode: ModeVC})
	if len(names) != 2 {
		t.Fatalf("expected 2 name entries, got %d", len(names))
	}
	for _, e := range names {
		if e.Value.String() != "username" && e.Value.String() != "password" {
			t.Fatalf("ARGS_NAMES should yield keys, got value %q", e.Value.String())
		}
	}
}

func TestEvalVariableExceptions(t *testing.T) {
	waf := NewWAF()
	tx := waf.NewTransaction()
	col := tx.GetCollection("args")
	col.Add("username", "bob")
	col.Add("password", "secret")

	out := tx.EvalVariable(VariableExpr{Kind: VarARGS, Mode: ModeVC, Exceptions: []string{"password"}})
	if len(out) != 1 || out[0].SubName != "username" {
		t.Fatalf("expected password excluded, got %+v", out)
	}
}

func TestCtlRuleRemoveByIdMarksOnlyThatRule(t *testing.T) {
	waf := NewWAF()
	tx := waf.NewTransaction()
	tx.RemoveRuleById(42)
	if !tx.IsRuleRemoved(42) {
		t.Fatal("expected rule 42 to be marked removed")
	}
	if tx.IsRuleRemoved(43) {
		t.Fatal("rule 43 should not be affected")
	}
}

func TestRemoveRuleTargetFiltersEvalVariableForRule(t *testing.T) {
	waf := NewWAF()
	tx := waf.NewTransaction()
	col := tx.GetCollection("args")
	col.Add("username", "bob")
	col.Add("password", "secret")
	tx.RemoveRuleTarget(7, "args", "password")

	out := tx.EvalVariableForRule(7, VariableExpr{Kind: VarARGS, Mode: ModeVC})
	if len(out) != 1 || out[0].SubName != "username" {
		t.Fatalf("expected password excluded for rule 7, got %+v", out)
	}
	// A different rule's own evaluation is unaffected.
	out2 := tx.EvalVariableForRule(8, VariableExpr{Kind: VarARGS, Mode: ModeVC})
	if len(out2) != 2 {
		t.Fatalf("expected no filtering for rule 8, got %+v", out2)
	}
}

func TestTransformCacheIsPureAndLengthGated(t *testing.T) {
	c := NewTransformCache()
	short := "short"
	if _, ok := c.Lookup(TLowercase, short); ok {
		t.Fatal("short input should never be cached")
	}
	c.Store(TLowercase, short, "SHORT", false)
	if _, ok := c.Lookup(TLowercase, short); ok {
		t.Fatal("Store should be a no-op for inputs below the caching threshold")
	}

	long := "this string is deliberately longer than the threshold"
	c.Store(TLowercase, long, "rewritten", false)
	e, ok := c.Lookup(TLowercase, long)
	if !ok || e.Output != "rewritten" || e.NoChange {
		t.Fatalf("expected a cache hit with the stored output, got %+v ok=%v", e, ok)
	}
	// A second lookup with the same (kind, identity) must return the same
	// entry: the cache is a pure function of its key.
	e2, ok2 := c.Lookup(TLowercase, long)
	if !ok2 || e2 != e {
		t.Fatalf("expected repeated lookups to agree: %+v vs %+v", e, e2)
	}
}

func TestMatchedVarsLogLastAndAll(t *testing.T) {
	var log MatchedVarsLog
	if _, ok := log.Last(); ok {
		t.Fatal("empty log should report ok=false")
	}
	log.Push(MatchedVar{VariableKind: VarARGS, SubName: "a", Transformed: "1"})
	log.Push(MatchedVar{VariableKind: VarARGS, SubName: "b", Transformed: "2"})
	last, ok := log.Last()
	if !ok || last.SubName != "b" {
		t.Fatalf("expected last entry to be 'b', got %+v", last)
	}
	if len(log.All()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(log.All()))
	}
	log.Clear()
	if len(log.All()) != 0 {
		t.Fatal("Clear should empty the log")
	}
}

func TestCaptureRingTwoPhaseCommit(t *testing.T) {
	var c CaptureRing
	c.StageCapture(0, "pending-value")
	if c.Get(0) != "" {
		t.Fatal("a staged capture must not be readable before MergeCapture")
	}
	c.MergeCapture()
	if c.Get(0) != "pending-value" {
		t.Fatalf("expected merged capture to be readable, got %q", c.Get(0))
	}
	c.Clear()
	if c.Get(0) != "" {
		t.Fatal("Clear should reset committed slots")
	}
}

func TestSetVarCreateIncreaseDecreaseGrammar(t *testing.T) {
	col := NewCollection("tx")
	col.SetVar("counter", "10")
	if col.GetFirstString("counter") != "10" {
		t.Fatalf("expected create to set 10, got %q", col.GetFirstString("counter"))
	}
	col.SetVar("counter", "+5")
	if col.GetFirstString("counter") != "15" {
		t.Fatalf("expected increase to 15, got %q", col.GetFirstString("counter"))
	}
	col.SetVar("counter", "-7")
	if col.GetFirstString("counter") != "8" {
		t.Fatalf("expected decrease to 8, got %q", col.GetFirstString("counter"))
	}
}
