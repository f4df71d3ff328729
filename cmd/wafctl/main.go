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

// Command wafctl loads a SecLang ruleset and runs one synthetic HTTP
// transaction through it, printing the disposition each phase produced.
// It exists to exercise the engine end to end from the command line; it is
// not the benchmarking/load-testing harness a production deployment would
// carry alongside the core.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/jptosso/coraza-waf/pkg/compiler"
	"github.com/jptosso/coraza-waf/pkg/engine"
	"github.com/jptosso/coraza-waf/pkg/seclang"
	"github.com/jptosso/coraza-waf/pkg/vm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "wafctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("wafctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	rulesFlag := fs.String("rules", "", "path to a SecLang rules file (required)")
	uriFlag := fs.String("uri", "/", "request URI, including query string")
	methodFlag := fs.String("method", "GET", "request method")
	bodyFlag := fs.String("body", "", "request body (sent as application/x-www-form-urlencoded if non-empty)")
	headerFlags := multiFlag{}
	fs.Var(&headerFlags, "header", "request header as Name:Value (repeatable)")
	verboseFlag := fs.Bool("v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rulesFlag == "" {
		return fmt.Errorf("-rules is required")
	}
	if *verboseFlag {
		log.SetLevel(log.DebugLevel)
	}

	waf := engine.NewWAF()
	vm.Wire(waf)
	if err := seclang.LoadFile(waf, *rulesFlag); err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if err := waf.Init(compiler.Compile); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	tx := waf.NewTransaction()
	tx.ProcessConnection("127.0.0.1", 0, "127.0.0.1", 80)
	tx.ProcessURI(*uriFlag, *methodFlag, "HTTP/1.1")

	headers := engine.HeaderSource{}
	for _, h := range headerFlags {
		name, value, _ := cut(h, ':')
		headers[name] = append(headers[name], value)
	}
	if *bodyFlag != "" {
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = []string{"application/x-www-form-urlencoded"}
		}
	}

	d, err := tx.ProcessRequestHeaders(headers)
	if err != nil {
		return err
	}
	if report("request-headers", d); d.StopRequest {
		return nil
	}

	if *bodyFlag != "" {
		decoded, _ := url.QueryUnescape(*bodyFlag)
		d, err = tx.ProcessRequestBody([]byte(decoded))
		if err != nil {
			return err
		}
		if report("request-body", d); d.StopRequest {
			return nil
		}
	}

	d, err = tx.ProcessResponseHeaders(200, "HTTP/1.1", engine.HeaderSource{})
	if err != nil {
		return err
	}
	if report("response-headers", d); d.StopRequest {
		return nil
	}

	d, err = tx.ProcessResponseBody(nil)
	if err != nil {
		return err
	}
	if report("response-body", d); d.StopRequest {
		return nil
	}

	d, err = tx.ProcessLogging()
	if err != nil {
		return err
	}
	report("logging", d)
	return nil
}

func report(phase string, d engine.Disposition) engine.Disposition {
	log.WithFields(log.Fields{
		"phase":  phase,
		"kind":   d.Kind,
		"rule":   d.RuleID,
		"status": d.Status,
	}).Info("phase complete")
	return d
}

func cut(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// multiFlag collects repeated -header flags into a slice.
type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
