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
	"net"
	"strings"

	"github.com/jptosso/coraza-waf/pkg/engine"
)

// IPMatch implements `@ipMatch`: value matches if it falls inside any of
// arg's comma-separated IPv4/IPv6 addresses or CIDR blocks.
func IPMatch(tx *engine.Transaction, value, arg string) (bool, error) {
	ip := net.ParseIP(strings.TrimSpace(value))
	if ip == nil {
		return false, nil
	}
	for _, tok := range strings.Split(arg, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "/") {
			if candidate := net.ParseIP(tok); candidate != nil && candidate.Equal(ip) {
				return true, nil
			}
			continue
		}
		_, block, err := net.ParseCIDR(tok)
		if err != nil {
			continue
		}
		if block.Contains(ip) {
			return true, nil
		}
	}
	return false, nil
}
