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

// Package operators implements the boolean predicates SecLang's `@name`
// tokens name. Every operator evaluates one (value, argument) pair against
// one transaction and, on a match, may stage capture groups into
// tx.Captures for a later `capture` action to commit.
package operators

import "github.com/jptosso/coraza-waf/pkg/engine"

// Func evaluates value against arg (the operator's RHS, already macro-
// expanded by the caller) for transaction tx, staging any capture groups
// before returning. An error is reserved for malformed arguments a
// compile-time check should have caught (e.g. `@eq` against a
// non-numeric arg) rather than an unmatched value.
type Func func(tx *engine.Transaction, value, arg string) (bool, error)

// byKind maps each engine.OperatorKind to its evaluator. Negation
// (`!@op`) and the `t:none` default are handled by the caller (the VM's
// OPERATOR opcode handler), not here: every Func here answers "did this
// operator match", nothing else.
var byKind = map[engine.OperatorKind]Func{
	engine.OpRX:                  Rx,
	engine.OpPM:                  Pm,
	engine.OpPMFromFile:          PmFromFile,
	engine.OpStreq:               Streq,
	engine.OpBeginsWith:          BeginsWith,
	engine.OpEndsWith:            EndsWith,
	engine.OpContains:            Contains,
	engine.OpContainsWord:        ContainsWord,
	engine.OpWithin:              Within,
	engine.OpEq:                  Eq,
	engine.OpGe:                  Ge,
	engine.OpGt:                  Gt,
	engine.OpLe:                  Le,
	engine.OpLt:                  Lt,
	engine.OpIPMatch:             IPMatch,
	engine.OpValidateByteRange:   ValidateByteRange,
	engine.OpValidateURLEncoding: ValidateURLEncoding,
	engine.OpDetectSQLi:         DetectSQLi,
	engine.OpDetectXSS:          DetectXSS,
	engine.OpUnconditionalMatch: UnconditionalMatch,
	engine.OpNoMatch:            NoMatch,
	engine.OpVerifyCC:           VerifyCC,
	engine.OpVerifySSN:          VerifySSN,
	engine.OpGeoLookup:          GeoLookup,
	engine.OpRBL:                RBL,
}

// Lookup resolves kind to its evaluator. A kind absent from byKind is a
// compiler bug (the parser accepted an operator this package never
// registered), so callers can treat a false ok as fatal.
func Lookup(kind engine.OperatorKind) (Func, bool) {
	fn, ok := byKind[kind]
	return fn, ok
}
