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
	"testing"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

func TestLoadStringSimpleRule(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule ARGS "@rx attack" "id:100,phase:2,deny,status:403,msg:'blocked'"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, ok := waf.FindRuleById(100)
	if !ok {
		t.Fatal("rule 100 not registered")
	}
	if r.Phase != 2 || r.Disruptive != engine.DisruptiveDeny || r.Status != 403 {
		t.Fatalf("unexpected rule fields: %+v", r)
	}
	if r.Operator == nil || r.Operator.Kind != engine.OpRX || r.Operator.RawArg != "attack" {
		t.Fatalf("unexpected operator: %+v", r.Operator)
	}
	if len(r.Variables) != 1 || r.Variables[0].Kind != engine.VarARGS || r.Variables[0].Mode != engine.ModeVC {
		t.Fatalf("unexpected variables: %+v", r.Variables)
	}
}

func TestLoadStringChain(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRule REQUEST_METHOD "@streq POST" "id:200,phase:2,deny,chain"
	SecRule ARGS:user "@rx ^admin$" "t:lowercase"
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, ok := waf.FindRuleById(200)
	if !ok {
		t.Fatal("rule 200 not registered")
	}
	if r.Chain == nil {
		t.Fatal("expected chained continuation")
	}
	if r.Chain.ChainIndex != 1 {
		t.Fatalf("expected ChainIndex 1, got %d", r.Chain.ChainIndex)
	}
	if r.Chain.Phase != r.Phase {
		t.Fatalf("continuation should inherit starter's phase: got %d want %d", r.Chain.Phase, r.Phase)
	}
	if len(r.Chain.Variables) != 1 || r.Chain.Variables[0].SubName != "user" || r.Chain.Variables[0].Mode != engine.ModeVS {
		t.Fatalf("unexpected chained variables: %+v", r.Chain.Variables)
	}
}

func TestLoadStringSecAction(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecAction "id:1,phase:1,pass,nolog,setvar:tx.counter=0"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, ok := waf.FindRuleById(1)
	if !ok {
		t.Fatal("rule 1 not registered")
	}
	if r.Operator != nil {
		t.Fatalf("SecAction should carry no operator, got %+v", r.Operator)
	}
	if len(r.Actions) != 1 || r.Actions[0].Kind != engine.ActSetVar || r.Actions[0].Params != "tx.counter=0" {
		t.Fatalf("unexpected actions: %+v", r.Actions)
	}
}

func TestLoadStringDefaultAction(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecDefaultAction "phase:2,deny,status:403,log"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	def := waf.DefaultAction(2)
	if def == nil {
		t.Fatal("expected SecDefaultAction registered for phase 2")
	}
	if def.Disruptive != engine.DisruptiveDeny || def.Status != 403 {
		t.Fatalf("unexpected default action: %+v", def)
	}
}

func TestLoadStringMarkerAndSkipAfter(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRule REQUEST_METHOD "@streq GET" "id:10,phase:1,pass,skipAfter:END_CHECKS"
SecRule ARGS "@rx x" "id:11,phase:1,deny"
SecMarker "END_CHECKS"
SecRule ARGS "@rx y" "id:12,phase:1,deny"
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	m, ok := waf.Marker("END_CHECKS")
	if !ok {
		t.Fatal("expected marker END_CHECKS registered")
	}
	if m.Phase != 1 {
		t.Fatalf("expected marker on phase 1, got %d", m.Phase)
	}
	if m.Index != 2 {
		t.Fatalf("expected marker index 2 (after rules 10, 11), got %d", m.Index)
	}
}

func TestLoadStringRemoveByIDAndTag(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRule ARGS "@rx a" "id:20,phase:1,pass,tag:'drop-me'"
SecRule ARGS "@rx b" "id:21,phase:1,pass"
SecRuleRemoveById 21
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if _, ok := waf.FindRuleById(21); ok {
		t.Fatal("rule 21 should have been removed")
	}
	if _, ok := waf.FindRuleById(20); !ok {
		t.Fatal("rule 20 should remain")
	}

	waf2 := engine.NewWAF()
	err = LoadString(waf2, `
SecRule ARGS "@rx a" "id:30,phase:1,pass,tag:'drop-me'"
SecRule ARGS "@rx b" "id:31,phase:1,pass"
SecRuleRemoveByTag drop-me
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if _, ok := waf2.FindRuleById(30); ok {
		t.Fatal("rule 30 should have been removed by tag")
	}
}

func TestLoadStringExceptionVariable(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule ARGS|!ARGS:password "@rx .*" "id:40,phase:2,pass"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(40)
	if len(r.Variables) != 1 {
		t.Fatalf("expected one variable target, got %+v", r.Variables)
	}
	if len(r.Variables[0].Exceptions) != 1 || r.Variables[0].Exceptions[0] != "password" {
		t.Fatalf("expected exception 'password', got %+v", r.Variables[0].Exceptions)
	}
}

func TestLoadStringNegatedOperator(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule REQUEST_METHOD "!@streq POST" "id:50,phase:1,pass"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(50)
	if r.Operator == nil || !r.Operator.Negated {
		t.Fatalf("expected negated operator, got %+v", r.Operator)
	}
}

func TestLoadStringMacroOperator(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule REQUEST_URI "@beginsWith %{tx.base_path}" "id:60,phase:1,pass"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(60)
	if r.Operator == nil || r.Operator.Macro == nil {
		t.Fatalf("expected macro-backed operator arg, got %+v", r.Operator)
	}
}

func TestLoadStringUnknownDirectiveIsNoop(t *testing.T) {
	waf := engine.NewWAF()
	if err := LoadString(waf, `SecComponentSignature "example/1.0"`); err != nil {
		t.Fatalf("unrecognized directive should be a no-op, got: %v", err)
	}
}

func TestLoadStringUnknownVariableErrors(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule NOT_A_REAL_VAR "@rx x" "id:70,phase:1,pass"`)
	if err == nil {
		t.Fatal("expected an error for an unknown variable")
	}
}

func TestLoadStringCounterAndRegexModes(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule &ARGS "@gt 5" "id:80,phase:2,pass,chain"
	SecRule ARGS:/^id_/ "@rx \d+"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(80)
	if r.Variables[0].Mode != engine.ModeCC {
		t.Fatalf("expected counter mode for &ARGS, got %v", r.Variables[0].Mode)
	}
	if r.Chain.Variables[0].Mode != engine.ModeVR || r.Chain.Variables[0].SubName != "^id_" {
		t.Fatalf("expected regex mode variable, got %+v", r.Chain.Variables[0])
	}
}

func TestLoadStringOperatorCascade(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule REQUEST_METHOD "@streq TRACE|@streq TRACK|!@rx ^(?:GET|POST)$" "id:300,phase:1,deny"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(300)
	op := r.Operator
	if op == nil || op.Kind != engine.OpStreq || op.RawArg != "TRACE" {
		t.Fatalf("unexpected first alternative: %+v", op)
	}
	op = op.Next
	if op == nil || op.Kind != engine.OpStreq || op.RawArg != "TRACK" {
		t.Fatalf("unexpected second alternative: %+v", op)
	}
	op = op.Next
	if op == nil || op.Kind != engine.OpRX || !op.Negated || op.RawArg != "^(?:GET|POST)$" {
		t.Fatalf("unexpected third alternative: %+v", op)
	}
	if op.Next != nil {
		t.Fatalf("expected exactly three alternatives")
	}
}

func TestLoadStringRegexPipeIsNotACascade(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `SecRule ARGS "@rx foo|bar" "id:301,phase:2,deny"`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(301)
	if r.Operator.RawArg != "foo|bar" || r.Operator.Next != nil {
		t.Fatalf("a | inside a regex argument must stay in the argument: %+v", r.Operator)
	}
}

func TestLoadStringUpdateTargetById(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRule ARGS "@rx attack" "id:310,phase:2,deny"
SecRuleUpdateTargetById 310 "REQUEST_HEADERS:User-Agent|!ARGS:password"
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	r, _ := waf.FindRuleById(310)
	if len(r.Variables) != 2 {
		t.Fatalf("expected ARGS plus the appended header target, got %+v", r.Variables)
	}
	if r.Variables[1].Kind != engine.VarREQUEST_HEADERS || r.Variables[1].SubName != "User-Agent" {
		t.Fatalf("unexpected appended target: %+v", r.Variables[1])
	}
	if len(r.Variables[0].Exceptions) != 1 || r.Variables[0].Exceptions[0] != "password" {
		t.Fatalf("expected !ARGS:password to attach an exception, got %+v", r.Variables[0])
	}
}

func TestLoadStringUpdateActionByTag(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRule ARGS "@rx attack" "id:320,phase:2,deny,tag:'app-specific'"
SecRule ARGS "@rx probe" "id:321,phase:2,deny,tag:'app-specific'"
SecRuleUpdateActionByTag app-specific "pass,severity:NOTICE"
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	for _, id := range []int64{320, 321} {
		r, _ := waf.FindRuleById(id)
		if r.Disruptive != engine.DisruptivePass || r.Severity != "NOTICE" {
			t.Fatalf("rule %d not updated: %+v", id, r)
		}
	}
}

func TestLoadStringBodyAndPCRELimits(t *testing.T) {
	waf := engine.NewWAF()
	err := LoadString(waf, `
SecRequestBodyLimit 1048576
SecResponseBodyLimit 262144
SecPcreMatchLimit 2500
SecPcreMatchLimitRecursion 2500
SecResponseBodyMimeType text/plain text/html application/json
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	cfg := waf.Config
	if cfg.RequestBodyLimit != 1048576 || cfg.ResponseBodyLimit != 262144 {
		t.Fatalf("body limits not applied: %+v", cfg)
	}
	if cfg.PCREMatchLimit != 2500 || cfg.PCREMatchLimitRecursion != 2500 {
		t.Fatalf("pcre limits not applied: %+v", cfg)
	}
	if len(cfg.ResponseBodyMimeTypes) != 3 || cfg.ResponseBodyMimeTypes[2] != "application/json" {
		t.Fatalf("mime types not applied: %+v", cfg.ResponseBodyMimeTypes)
	}
}
