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

package operators

import (
	"testing"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

func newTestTx(t *testing.T) *engine.Transaction {
	t.Helper()
	waf := engine.NewWAF()
	return waf.NewTransaction()
}

func TestStreq(t *testing.T) {
	tx := newTestTx(t)
	ok, err := Streq(tx, "abc", "abc")
	if err != nil || !ok {
		t.Fatalf("Streq: got (%v, %v)", ok, err)
	}
	if ok, _ := Streq(tx, "abc", "abd"); ok {
		t.Fatal("Streq: unexpected match")
	}
}

func TestBeginsEndsWith(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := BeginsWith(tx, "hello world", "hello"); !ok {
		t.Fatal("BeginsWith: expected match")
	}
	if ok, _ := EndsWith(tx, "hello world", "world"); !ok {
		t.Fatal("EndsWith: expected match")
	}
}

func TestContainsWord(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := ContainsWord(tx, "select * from users", "from"); !ok {
		t.Fatal("ContainsWord: expected match")
	}
	if ok, _ := ContainsWord(tx, "uniform", "form"); ok {
		t.Fatal("ContainsWord: unexpected match on substring of word")
	}
}

func TestWithin(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := Within(tx, "GET", "GET POST HEAD"); !ok {
		t.Fatal("Within: expected match")
	}
	if ok, _ := Within(tx, "PATCH", "GET POST HEAD"); ok {
		t.Fatal("Within: unexpected match")
	}
	// the separators delimit tokens but are not part of the haystack
	if ok, _ := Within(tx, "helloworld", "hello world"); !ok {
		t.Fatal("Within: expected match across the joined token boundary")
	}
	if ok, _ := Within(tx, "hello1 world1", "hello world"); ok {
		t.Fatal("Within: unexpected match for a value with separator bytes")
	}
}

func TestNumericComparisons(t *testing.T) {
	tx := newTestTx(t)
	if ok, err := Gt(tx, "10", "5"); err != nil || !ok {
		t.Fatalf("Gt: got (%v, %v)", ok, err)
	}
	if ok, err := Lt(tx, "3", "5"); err != nil || !ok {
		t.Fatalf("Lt: got (%v, %v)", ok, err)
	}
	if ok, err := Eq(tx, "5", "5"); err != nil || !ok {
		t.Fatalf("Eq: got (%v, %v)", ok, err)
	}
	// a non-numeric value compares as 0
	if ok, err := Gt(tx, "abc", "5"); err != nil || ok {
		t.Fatalf("Gt: a non-numeric value should compare as 0, got (%v, %v)", ok, err)
	}
	if ok, err := Eq(tx, "abc", "0"); err != nil || !ok {
		t.Fatalf("Eq: a non-numeric value should compare as 0, got (%v, %v)", ok, err)
	}
	if _, err := Gt(tx, "5", "abc"); err == nil {
		t.Fatal("Gt: expected error for a non-numeric argument")
	}
}

func TestRx(t *testing.T) {
	tx := newTestTx(t)
	ok, err := Rx(tx, "attack=1234", `attack=(\d+)`)
	if err != nil || !ok {
		t.Fatalf("Rx: got (%v, %v)", ok, err)
	}
	tx.Captures.MergeCapture()
	if got := tx.Captures.Get(1); got != "1234" {
		t.Fatalf("Rx capture: got %q", got)
	}
}

func TestIPMatch(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := IPMatch(tx, "192.168.1.50", "192.168.1.0/24"); !ok {
		t.Fatal("IPMatch: expected CIDR match")
	}
	if ok, _ := IPMatch(tx, "10.0.0.1", "192.168.1.0/24,10.0.0.1"); !ok {
		t.Fatal("IPMatch: expected exact match")
	}
	if ok, _ := IPMatch(tx, "10.0.0.2", "192.168.1.0/24"); ok {
		t.Fatal("IPMatch: unexpected match")
	}
}

func TestValidateByteRange(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := ValidateByteRange(tx, "abc", "97-122"); ok {
		t.Fatal("ValidateByteRange: unexpected violation for in-range bytes")
	}
	if ok, _ := ValidateByteRange(tx, "abc1", "97-122"); !ok {
		t.Fatal("ValidateByteRange: expected violation for out-of-range byte")
	}
}

func TestDetectSQLi(t *testing.T) {
	tx := newTestTx(t)
	if ok, _ := DetectSQLi(tx, "1' OR 1=1 --", ""); !ok {
		t.Fatal("DetectSQLi: expected match")
	}
	if ok, _ := DetectSQLi(tx, "hello world", ""); ok {
		t.Fatal("DetectSQLi: unexpected match")
	}
}

func TestVerifyCCLuhn(t *testing.T) {
	tx := newTestTx(t)
	// 4111111111111111 is a well-known Luhn-valid test Visa number.
	if ok, _ := VerifyCC(tx, "card: 4111111111111111", `\d{13,16}`); !ok {
		t.Fatal("VerifyCC: expected match")
	}
	if ok, _ := VerifyCC(tx, "card: 1234567890123456", `\d{13,16}`); ok {
		t.Fatal("VerifyCC: unexpected match on invalid checksum")
	}
}

func TestLookupKnowsEveryKind(t *testing.T) {
	kinds := []engine.OperatorKind{
		engine.OpRX, engine.OpPM, engine.OpPMFromFile, engine.OpStreq, engine.OpBeginsWith,
		engine.OpEndsWith, engine.OpContains, engine.OpContainsWord, engine.OpWithin,
		engine.OpEq, engine.OpGe, engine.OpGt, engine.OpLe, engine.OpLt, engine.OpIPMatch,
		engine.OpValidateByteRange, engine.OpValidateURLEncoding, engine.OpDetectSQLi,
		engine.OpDetectXSS, engine.OpUnconditionalMatch, engine.OpNoMatch, engine.OpVerifyCC,
		engine.OpVerifySSN, engine.OpGeoLookup, engine.OpRBL,
	}
	for _, k := range kinds {
		if _, ok := Lookup(k); !ok {
			t.Fatalf("Lookup: no evaluator registered for kind %v", k)
		}
	}
}
