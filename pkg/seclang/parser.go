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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// parser accumulates chain-linkage state across the SecRule/SecAction
// directives of one LoadString call. A chain is built incrementally: the
// starter is registered with the engine the moment it is seen (its
// pointer is stable thereafter), and each continuation is appended via
// tail.Chain as `chain` directives are encountered.
type parser struct {
	waf       *engine.WAF
	tail      *engine.Rule
	chain     bool // tail requested `chain`/`multiChain`: next SecRule/SecAction continues it
	dir       string
	lastPhase int // phase of the most recently registered rule, for SecMarker
}

// LoadString parses text as a sequence of SecLang directives and
// registers the resulting rules, markers, and default actions with waf.
// It implements the `engine_load_directive` entry point of spec.md §6.
// Calling it more than once before Init merges into the existing rule set.
// After Init, engine.WAF.AddRule rejects new rules, so a SecRule or
// SecAction directive returns an error instead of being merged.
func LoadString(waf *engine.WAF, text string) error {
	return LoadStringIn(waf, text, ".")
}

// LoadStringIn is LoadString with an explicit base directory for resolving
// relative `Include` directives.
func LoadStringIn(waf *engine.WAF, text string, dir string) error {
	p := &parser{waf: waf, dir: dir, lastPhase: 1}
	for lineNo, line := range joinContinuations(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := splitFields(trimmed)
		if len(fields) == 0 {
			continue
		}
		if err := p.directive(fields[0], fields[1:]); err != nil {
			return fmt.Errorf("seclang: line %d: %w", lineNo+1, err)
		}
	}
	return nil
}

// LoadFile reads path and parses it via LoadString, implementing the
// `engine_load_file` entry point of spec.md §6.
func LoadFile(waf *engine.WAF, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("seclang: %w", err)
	}
	return LoadStringIn(waf, string(data), filepath.Dir(path))
}

func (p *parser) directive(name string, args []string) error {
	switch strings.ToLower(name) {
	case "secrule":
		return p.secRule(args)
	case "secaction":
		return p.secAction(args)
	case "secdefaultaction":
		return p.secDefaultAction(args)
	case "secmarker":
		if len(args) < 1 {
			return fmt.Errorf("SecMarker needs a name")
		}
		p.waf.AddMarker(stripQuotes(args[0]), p.lastPhase)
		return nil
	case "secruleremovebyid":
		return p.removeByID(args)
	case "secruleremovebytag":
		return p.removeByTag(args)
	case "secruleremovebymsg":
		return p.removeByMsg(args)
	case "secruleupdateactionbyid":
		return p.updateAction(args, p.rulesByID)
	case "secruleupdateactionbymsg":
		return p.updateAction(args, p.rulesByMsg)
	case "secruleupdateactionbytag":
		return p.updateAction(args, p.rulesByTag)
	case "secruleupdatetargetbyid":
		return p.updateTarget(args, p.rulesByID)
	case "secruleupdatetargetbymsg":
		return p.updateTarget(args, p.rulesByMsg)
	case "secruleupdatetargetbytag":
		return p.updateTarget(args, p.rulesByTag)
	case "secruleengine":
		return p.setRuleEngine(args)
	case "secrequestbodyaccess":
		p.waf.Config.RequestBodyAccess = isOn(args)
		return nil
	case "secresponsebodyaccess":
		p.waf.Config.ResponseBodyAccess = isOn(args)
		return nil
	case "secrequestbodylimit":
		return p.setInt64(args, &p.waf.Config.RequestBodyLimit)
	case "secresponsebodylimit":
		return p.setInt64(args, &p.waf.Config.ResponseBodyLimit)
	case "secpcrematchlimit":
		return p.setInt(args, &p.waf.Config.PCREMatchLimit)
	case "secpcrematchlimitrecursion":
		return p.setInt(args, &p.waf.Config.PCREMatchLimitRecursion)
	case "secunicodecodepage":
		return p.setInt(args, &p.waf.Config.UnicodeCodePage)
	case "secunicodemapfile":
		// The map file itself feeds t:urlDecodeUni's code-page tables,
		// which live with the transformation implementations; the engine
		// only records the selected code page.
		if len(args) >= 2 {
			return p.setInt(args[1:], &p.waf.Config.UnicodeCodePage)
		}
		return nil
	case "secresponsebodymimetype":
		p.waf.Config.ResponseBodyMimeTypes = nil
		for _, a := range args {
			p.waf.Config.ResponseBodyMimeTypes = append(p.waf.Config.ResponseBodyMimeTypes, stripQuotes(a))
		}
		return nil
	case "secargumentseparator":
		if len(args) > 0 {
			p.waf.Config.ArgumentSeparator = stripQuotes(args[0])
		}
		return nil
	case "secauditlog":
		if len(args) > 0 {
			p.waf.Config.AuditLogFile = stripQuotes(args[0])
		}
		return nil
	case "secauditlogstoragedir":
		if len(args) > 0 {
			p.waf.Config.AuditLogDirectory = stripQuotes(args[0])
		}
		return nil
	case "include":
		return p.include(args)
	default:
		// Unrecognized directives (SecComponentSignature, SecDebugLog,
		// ...) are accepted as no-ops: the ones this switch does not
		// special-case carry no behavior the core engine reads back.
		return nil
	}
}

func (p *parser) secRule(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("SecRule needs at least variables and an operator")
	}
	r := engine.NewRule()
	vars, err := parseVariables(args[0])
	if err != nil {
		return err
	}
	r.Variables = vars
	op, err := parseOperator(stripQuotes(args[1]))
	if err != nil {
		return err
	}
	r.Operator = op
	wantsChain := false
	if len(args) >= 3 {
		wantsChain, err = parseActions(r, stripQuotes(args[2]))
		if err != nil {
			return err
		}
	}
	return p.link(r, wantsChain)
}

func (p *parser) secAction(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecAction needs an action list")
	}
	r := engine.NewRule()
	wantsChain, err := parseActions(r, stripQuotes(args[0]))
	if err != nil {
		return err
	}
	return p.link(r, wantsChain)
}

// link attaches r to the in-progress chain (if p.chain was left set by the
// previous directive) or starts a new one, then registers the new chain
// state for the next directive.
func (p *parser) link(r *engine.Rule, wantsChain bool) error {
	if p.chain && p.tail != nil {
		r.ChainIndex = p.tail.ChainIndex + 1
		if r.Phase == 2 {
			r.Phase = p.tail.Phase // continuations inherit the starter's phase
		}
		p.tail.Chain = r
	} else {
		if err := p.waf.AddRule(r); err != nil {
			return err
		}
	}
	p.tail = r
	p.chain = wantsChain
	p.lastPhase = r.Phase
	return nil
}

func (p *parser) secDefaultAction(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecDefaultAction needs an action list")
	}
	r := engine.NewRule()
	if _, err := parseActions(r, stripQuotes(args[0])); err != nil {
		return err
	}
	return p.waf.SetDefaultAction(r.Phase, r)
}

func (p *parser) removeByID(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecRuleRemoveById needs an id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		return fmt.Errorf("bad rule id %q: %w", args[0], err)
	}
	p.waf.RemoveRuleByID(id)
	return nil
}

func (p *parser) removeByTag(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecRuleRemoveByTag needs a tag")
	}
	p.waf.RemoveRuleByTag(stripQuotes(args[0]))
	return nil
}

func (p *parser) removeByMsg(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecRuleRemoveByMsg needs a message")
	}
	p.waf.RemoveRuleByMsg(stripQuotes(args[0]))
	return nil
}

func (p *parser) setRuleEngine(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("SecRuleEngine needs a mode")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		p.waf.Config.RuleEngine = engine.RuleEngineOn
	case "off":
		p.waf.Config.RuleEngine = engine.RuleEngineOff
	case "detectiononly":
		p.waf.Config.RuleEngine = engine.RuleEngineDetectionOnly
	default:
		return fmt.Errorf("unknown SecRuleEngine mode %q", args[0])
	}
	return nil
}

func (p *parser) include(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("Include needs a path")
	}
	path := stripQuotes(args[0])
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	matches, err := filepath.Glob(path)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		matches = []string{path}
	}
	for _, m := range matches {
		if err := LoadFile(p.waf, m); err != nil {
			return err
		}
	}
	return nil
}

// rulesByID/ByMsg/ByTag are the selector halves of the SecRuleUpdate*By*
// directives; each resolves one selector token to the already-loaded
// starter rules it names. An unknown selector resolves to no rules rather
// than erroring, matching the Remove directives' tolerance for ids that
// were never loaded.
func (p *parser) rulesByID(sel string) ([]*engine.Rule, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(sel), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad rule id %q: %w", sel, err)
	}
	r, ok := p.waf.FindRuleById(id)
	if !ok {
		return nil, nil
	}
	return []*engine.Rule{r}, nil
}

func (p *parser) rulesByMsg(sel string) ([]*engine.Rule, error) {
	return p.waf.FindRulesByMsg(sel), nil
}

func (p *parser) rulesByTag(sel string) ([]*engine.Rule, error) {
	return p.waf.FindRulesByTag(sel), nil
}

// updateAction implements SecRuleUpdateActionBy{Id,Msg,Tag}: the action
// list in args[1] is parsed onto every selected rule, overlaying the
// fields it names and appending its runtime actions, the same merge a
// rule's own action list performs over NewRule's defaults.
func (p *parser) updateAction(args []string, find func(string) ([]*engine.Rule, error)) error {
	if len(args) < 2 {
		return fmt.Errorf("SecRuleUpdateActionBy* needs a selector and an action list")
	}
	rules, err := find(stripQuotes(args[0]))
	if err != nil {
		return err
	}
	for _, r := range rules {
		if _, err := parseActions(r, stripQuotes(args[1])); err != nil {
			return err
		}
	}
	return nil
}

// updateTarget implements SecRuleUpdateTargetBy{Id,Msg,Tag}: the target
// list in args[1] is merged onto every selected rule's variable set
// (plain tokens append, `!VAR:name` tokens attach exceptions).
func (p *parser) updateTarget(args []string, find func(string) ([]*engine.Rule, error)) error {
	if len(args) < 2 {
		return fmt.Errorf("SecRuleUpdateTargetBy* needs a selector and a target list")
	}
	rules, err := find(stripQuotes(args[0]))
	if err != nil {
		return err
	}
	for _, r := range rules {
		vars, err := mergeTargets(r.Variables, stripQuotes(args[1]))
		if err != nil {
			return err
		}
		r.Variables = vars
	}
	return nil
}

func (p *parser) setInt(args []string, dst *int) error {
	if len(args) < 1 {
		return fmt.Errorf("directive needs a numeric argument")
	}
	n, err := strconv.Atoi(strings.TrimSpace(stripQuotes(args[0])))
	if err != nil {
		return fmt.Errorf("bad numeric argument %q: %w", args[0], err)
	}
	*dst = n
	return nil
}

func (p *parser) setInt64(args []string, dst *int64) error {
	if len(args) < 1 {
		return fmt.Errorf("directive needs a numeric argument")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(stripQuotes(args[0])), 10, 64)
	if err != nil {
		return fmt.Errorf("bad numeric argument %q: %w", args[0], err)
	}
	*dst = n
	return nil
}

func isOn(args []string) bool {
	return len(args) > 0 && strings.EqualFold(args[0], "on")
}
