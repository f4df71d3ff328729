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
	"strconv"
	"strings"
)

// HeaderSource is what a host adapter feeds a phase method: a multi-valued
// header map. Input adapters themselves are out of core scope (spec.md §1);
// this is the minimal shape the core needs from one.
type HeaderSource map[string][]string

// runPhase executes every compiled program registered for phase against
// tx, stopping at the first disruptive/allow disposition.
func (t *Transaction) runPhase(phase int) (Disposition, error) {
	if t.waf.Runner == nil {
		return Safe(), fmt.Errorf("engine: no VM runner wired (call vm.Wire on the WAF before use)")
	}
	if t.stopRequest {
		return t.Disposition, nil
	}
	if t.waf.Config.RuleEngine == RuleEngineOff {
		return Safe(), nil
	}
	t.Phase = phase
	for _, prog := range t.waf.Programs[phase-1] {
		d, err := t.waf.Runner(prog, t)
		if err != nil {
			return d, err
		}
		t.Disposition = d
		if d.StopRequest {
			t.stopRequest = true
			return d, nil
		}
		if d.StopPhase {
			return d, nil
		}
	}
	return t.Disposition, nil
}

// ProcessConnection seeds the connection 4-tuple ahead of phase 1.
func (t *Transaction) ProcessConnection(downstreamIP string, downstreamPort int, upstreamIP string, upstreamPort int) {
	t.GetCollection("remote_addr").Add("", downstreamIP)
	t.GetCollection("remote_port").Add("", strconv.Itoa(downstreamPort))
	t.GetCollection("server_addr").Add("", upstreamIP)
	t.GetCollection("server_port").Add("", strconv.Itoa(upstreamPort))
}

// ProcessURI seeds the request line ahead of phase 1.
func (t *Transaction) ProcessURI(uri, method, version string) {
	path, query, _ := strings.Cut(uri, "?")
	t.GetCollection("request_method").Add("", method)
	t.GetCollection("request_protocol").Add("", version)
	t.GetCollection("request_uri").Add("", uri)
	t.GetCollection("request_uri_raw").Add("", uri)
	t.GetCollection("request_filename").Add("", path)
	t.GetCollection("query_string").Add("", query)
	t.GetCollection("request_line").Add("", fmt.Sprintf("%s %s %s", method, uri, version))
	parseArgs(t.GetCollection("args_get"), query, t.waf.Config.ArgumentSeparator)
	mergeInto(t.GetCollection("args"), t.GetCollection("args_get"))
}

// ProcessRequestHeaders runs phase 1 against the supplied headers.
func (t *Transaction) ProcessRequestHeaders(headers HeaderSource) (Disposition, error) {
	col := t.GetCollection("request_headers")
	for k, vs := range headers {
		lk := strings.ToLower(k)
		for _, v := range vs {
			col.Add(lk, v)
		}
		if lk == "cookie" {
			parseCookies(t.GetCollection("request_cookies"), vs)
		}
	}
	return t.runPhase(1)
}

// ProcessRequestBody runs phase 2 against the raw request body. If the
// content type is `application/x-www-form-urlencoded`, it is parsed into
// args_post the way the teacher's rule evaluation expects ARGS_POST to be
// populated before rules run.
func (t *Transaction) ProcessRequestBody(body []byte) (Disposition, error) {
	col := t.GetCollection("request_body")
	col.Add("", string(body))
	t.GetCollection("request_body_length").Add("", strconv.Itoa(len(body)))
	ct := t.GetCollection("request_headers").GetFirstString("content-type")
	if strings.Contains(ct, "application/x-www-form-urlencoded") {
		parseArgs(t.GetCollection("args_post"), string(body), t.waf.Config.ArgumentSeparator)
	}
	mergeInto(t.GetCollection("args"), t.GetCollection("args_post"))
	return t.runPhase(2)
}

// ProcessResponseHeaders runs phase 3.
func (t *Transaction) ProcessResponseHeaders(status int, proto string, headers HeaderSource) (Disposition, error) {
	t.GetCollection("response_status").Add("", strconv.Itoa(status))
	t.GetCollection("response_protocol").Add("", proto)
	col := t.GetCollection("response_headers")
	for k, vs := range headers {
		lk := strings.ToLower(k)
		for _, v := range vs {
			col.Add(lk, v)
		}
	}
	return t.runPhase(3)
}

// ProcessResponseBody runs phase 4.
func (t *Transaction) ProcessResponseBody(body []byte) (Disposition, error) {
	t.GetCollection("response_body").Add("", string(body))
	t.GetCollection("response_content_length").Add("", strconv.Itoa(len(body)))
	return t.runPhase(4)
}

// ProcessLogging runs phase 5 and, whenever an audit writer is configured
// (waf.Audit), writes the audit record with every matched rule; the rules'
// `log`/`auditlog` flags are not consulted here.
func (t *Transaction) ProcessLogging() (Disposition, error) {
	d, err := t.runPhase(5)
	if err != nil {
		return d, err
	}
	if t.waf.Audit != nil {
		_ = t.waf.Audit.WriteAudit(t, t.MatchedRules())
	}
	return d, nil
}

func parseArgs(col *Collection, raw, sep string) {
	if sep == "" {
		sep = "&"
	}
	for _, pair := range strings.Split(raw, sep) {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			col.Add(k, "")
			continue
		}
		col.Add(k, v)
	}
}

func parseCookies(col *Collection, raw []string) {
	for _, line := range raw {
		for _, pair := range strings.Split(line, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			col.Add(strings.TrimSpace(k), v)
		}
	}
}

func mergeInto(dst, src *Collection) {
	for _, kv := range src.All() {
		dst.Add(kv[0], kv[1])
	}
}
