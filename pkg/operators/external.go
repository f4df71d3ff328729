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

import "github.com/jptosso/coraza-waf/pkg/engine"

// GeoLookup implements `@geoLookup`: resolving REMOTE_ADDR to a country
// requires a MaxMind-style database the engine has no licensed copy of
// to ship, so this never matches. Rules depending on GEO.* fields behave
// as if the lookup always misses, matching how the original engine
// behaves with geo support compiled out.
func GeoLookup(tx *engine.Transaction, value, arg string) (bool, error) {
	return false, nil
}

// RBL implements `@rbl`: a real-time blackhole list lookup requires a live
// DNS query against a third-party zone per request, which this offline
// engine does not perform; it always reports no listing.
func RBL(tx *engine.Transaction, value, arg string) (bool, error) {
	return false, nil
}
