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
	"regexp"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// sqliPattern is a coarse heuristic standing in for a full libinjection
// grammar: tautologies, stacked queries, comment-based terminators and
// UNION-based injection, the classes CRS's SQLi rules target most often.
var sqliPattern = regexp.MustCompile(`(?i)(\bunion\b.{0,40}\bselect\b|\bor\b\s+\d+\s*=\s*\d+|\band\b\s+\d+\s*=\s*\d+|;\s*(drop|insert|delete|update)\b|--|\bsleep\(\d+\)|\bbenchmark\(|/\*.*\*/)`)

// DetectSQLi implements `@detectSQLi`.
func DetectSQLi(tx *engine.Transaction, value, arg string) (bool, error) {
	if sqliPattern.MatchString(value) {
		tx.Captures.StageCapture(0, value)
		return true, nil
	}
	return false, nil
}

// xssPattern is a coarse heuristic for the script-injection shapes CRS's
// XSS rules target: script tags, inline event handlers, javascript: URIs.
var xssPattern = regexp.MustCompile(`(?i)(<script\b|on\w+\s*=|javascript:|<iframe\b|<img[^>]+onerror|document\.cookie)`)

// DetectXSS implements `@detectXSS`.
func DetectXSS(tx *engine.Transaction, value, arg string) (bool, error) {
	if xssPattern.MatchString(value) {
		tx.Captures.StageCapture(0, value)
		return true, nil
	}
	return false, nil
}
