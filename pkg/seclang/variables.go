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

// parseVariables parses a SecRule's first field, e.g. `ARGS|!ARGS:password`
// or `&REQUEST_HEADERS:Cookie`, into the variable expressions spec.md §3
// describes. A leading `!token` excludes a subkey from every
// whole-collection target of the same kind already listed (the common
// `ARGS|!ARGS:password` shape); it is otherwise ignored, matching the
// source's tolerance for excludes with no matching base target.
func parseVariables(field string) ([]engine.VariableExpr, error) {
	return mergeTargets(nil, field)
}

// mergeTargets applies a target list on top of an existing variable set:
// plain tokens append new targets, `!VAR:name` tokens add exceptions to
// the matching whole-collection targets already present. parseVariables
// is the empty-base case; `SecRuleUpdateTargetBy*` layers onto a loaded
// rule's variables.
func mergeTargets(existing []engine.VariableExpr, field string) ([]engine.VariableExpr, error) {
	out := existing
	for _, tok := range splitTopLevel(field, '|') {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "!") {
			kind, sub, _, err := parseVarToken(tok[1:])
			if err != nil {
				return nil, err
			}
			for i := range out {
				if out[i].Kind == kind && out[i].Mode == engine.ModeVC {
					out[i].Exceptions = append(out[i].Exceptions, sub)
				}
			}
			continue
		}
		kind, sub, mode, err := parseVarToken(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.VariableExpr{Kind: kind, SubName: sub, Mode: mode})
	}
	return out, nil
}

// parseVarToken parses one variable token (without a leading `!`) into its
// kind, subkey, and addressing mode.
func parseVarToken(tok string) (engine.VariableKind, string, engine.AddressMode, error) {
	counter := strings.HasPrefix(tok, "&")
	if counter {
		tok = tok[1:]
	}
	name, sub, hasSub := strings.Cut(tok, ":")
	kind := engine.LookupVariableKind(strings.ToUpper(name))
	if kind == engine.VarUnknown {
		return 0, "", 0, fmt.Errorf("seclang: unknown variable %q", name)
	}
	switch {
	case counter && !hasSub:
		return kind, "", engine.ModeCC, nil
	case counter && hasSub:
		return kind, sub, engine.ModeCS, nil
	case !hasSub:
		return kind, "", engine.ModeVC, nil
	case len(sub) >= 2 && sub[0] == '/' && sub[len(sub)-1] == '/':
		return kind, sub[1 : len(sub)-1], engine.ModeVR, nil
	default:
		return kind, sub, engine.ModeVS, nil
	}
}
