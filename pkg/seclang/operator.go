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
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// parseOperator parses a SecRule's second field, already unquoted, e.g.
// `@rx ^admin$`, `!@streq foo`, a bare pattern (implicit `@rx`), or an
// `@opA x|@opB y|...` cascade of alternatives (spec.md §4.2 "Operator-OR
// syntax"), returned as a linked list via Operator.Next.
func parseOperator(field string) (*engine.Operator, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	var head, tail *engine.Operator
	for _, seg := range splitCascade(field) {
		op, err := parseOneOperator(strings.TrimSpace(seg))
		if err != nil {
			return nil, err
		}
		if head == nil {
			head = op
		} else {
			tail.Next = op
		}
		tail = op
	}
	return head, nil
}

// splitCascade splits an operator field at the `|` separators of an
// operator-OR cascade. A `|` only separates when the next segment opens
// its own `@op` (or `!@op`); a `|` inside a regex argument stays in the
// argument.
func splitCascade(field string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] != '|' {
			continue
		}
		rest := field[i+1:]
		if strings.HasPrefix(rest, "@") || strings.HasPrefix(rest, "!@") {
			segs = append(segs, field[start:i])
			start = i + 1
		}
	}
	return append(segs, field[start:])
}

func parseOneOperator(field string) (*engine.Operator, error) {
	op := &engine.Operator{}
	if strings.HasPrefix(field, "!") {
		op.Negated = true
		field = field[1:]
	}
	var name, arg string
	if strings.HasPrefix(field, "@") {
		name, arg, _ = strings.Cut(field[1:], " ")
		arg = strings.TrimSpace(arg)
		kind, ok := engine.LookupOperatorKind(name)
		if !ok {
			return nil, fmt.Errorf("seclang: unknown operator @%s", name)
		}
		op.Kind = kind
	} else {
		op.Kind = engine.OpRX
		arg = field
	}
	op.RawArg = arg
	if strings.Contains(arg, "%{") {
		op.Macro = engine.ParseMacro(arg)
	}
	return op, nil
}
