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

// Package seclang is the minimal SecLang directive parser spec.md treats as
// an external collaborator (§1 "OUT OF SCOPE: The SecLang grammar and
// parser"): it turns directive text into the []*engine.Rule tree the core
// compiler consumes. It contains no compiler or VM logic, only tree
// construction, so it stays a thin ambient surface rather than an
// expansion of the core's scope.
package seclang

import "strings"

// joinContinuations collapses trailing-backslash line continuations into
// single logical lines, the way the SecLang grammar allows a directive to
// span several physical lines.
func joinContinuations(text string) []string {
	raw := strings.Split(text, "\n")
	var lines []string
	var cur strings.Builder
	for _, line := range raw {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasSuffix(trimmed, "\\") {
			cur.WriteString(strings.TrimSuffix(trimmed, "\\"))
			cur.WriteString(" ")
			continue
		}
		cur.WriteString(trimmed)
		lines = append(lines, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// splitFields splits a directive line into its top-level fields (directive
// name plus arguments), honoring double-quoted spans so a quoted
// operator/action string's internal spaces are not field boundaries.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"' && (i == 0 || line[i-1] != '\\'):
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ' ' && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields
}

// stripQuotes removes one layer of surrounding double quotes, unescaping
// `\"` to `"` inside, matching the SecLang quoting convention for the
// operator and action-list fields.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// splitTopLevel splits s on sep, ignoring occurrences of sep inside a
// single- or double-quoted span — used for both the comma-separated
// action list and the comma-separated variable list.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == sep:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

// unquoteValue strips a single layer of surrounding single or double
// quotes from an action value, e.g. `setvar:'tx.foo=bar'`.
func unquoteValue(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
