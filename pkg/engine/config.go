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

// RuleEngineMode is the `SecRuleEngine` directive's value.
type RuleEngineMode uint8

const (
	RuleEngineOn RuleEngineMode = iota
	RuleEngineOff
	RuleEngineDetectionOnly
)

// Config holds the engine-wide configuration directives named in
// spec.md §6: rule engine mode, body access toggles, body size limits,
// the ARGS separator, PCRE limits, the Unicode code page, and the
// response MIME types audited.
type Config struct {
	RuleEngine RuleEngineMode

	RequestBodyAccess  bool
	RequestBodyLimit   int64
	ResponseBodyAccess bool
	ResponseBodyLimit  int64

	ArgumentSeparator string

	PCREMatchLimit        int
	PCREMatchLimitRecursion int

	UnicodeCodePage int

	ResponseBodyMimeTypes []string

	AuditLogFile      string
	AuditLogDirectory string
}

// DefaultConfig mirrors ModSecurity's historical defaults, the ones the
// teacher's rule set and OWASP CRS assume when a directive is omitted.
func DefaultConfig() Config {
	return Config{
		RuleEngine:              RuleEngineOn,
		RequestBodyAccess:       false,
		RequestBodyLimit:        134217728,
		ResponseBodyAccess:      false,
		ResponseBodyLimit:       524288,
		ArgumentSeparator:       "&",
		PCREMatchLimit:          1000,
		PCREMatchLimitRecursion: 1000,
		UnicodeCodePage:         20127,
		ResponseBodyMimeTypes:   []string{"text/plain", "text/html"},
	}
}
