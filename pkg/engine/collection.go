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
	"regexp"
	"strconv"
	"strings"
)

// collectionEntry is one (key, value) pair in a Collection. Order of
// insertion is preserved, matching ARGS/HEADERS iteration semantics where a
// repeated key (e.g. two `Cookie:` headers) must keep both occurrences.
type collectionEntry struct {
	key   string
	value string
}

// Collection is the in-memory, per-transaction or per-engine store behind
// one VariableKind: ARGS, REQUEST_HEADERS, TX, and so on. It is not a
// persistence layer (spec.md §1 Non-goals) — it never outlives the
// transaction (or, for the engine-level ENV collection, the process).
type Collection struct {
	name    string
	entries []collectionEntry
}

// NewCollection allocates an empty, named collection.
func NewCollection(name string) *Collection {
	return &Collection{name: name}
}

// Name returns the name the collection was created with.
// MATCHED_VAR_NAME (`KIND:sub-name`) does not use it; it uses the
// variable's upper-case display name.
func (c *Collection) Name() string { return c.name }

// Add appends a (key, value) pair, preserving any existing entries with the
// same key.
func (c *Collection) Add(key, value string) {
	c.entries = append(c.entries, collectionEntry{key, value})
}

// Set replaces all entries for key with a single new value (create-or-
// overwrite semantics used by `setvar`).
func (c *Collection) Set(key, value string) {
	for i := range c.entries {
		if c.entries[i].key == key {
			c.entries[i].value = value
			// drop any further duplicates of the same key
			out := c.entries[:i+1]
			for _, e := range c.entries[i+1:] {
				if e.key != key {
					out = append(out, e)
				}
			}
			c.entries = out
			return
		}
	}
	c.Add(key, value)
}

// Remove deletes all entries for key.
func (c *Collection) Remove(key string) {
	out := c.entries[:0]
	for _, e := range c.entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	c.entries = out
}

// Get returns all values stored under key, in insertion order.
func (c *Collection) Get(key string) []string {
	var out []string
	for _, e := range c.entries {
		if e.key == key {
			out = append(out, e.value)
		}
	}
	return out
}

// GetFirstString returns the first value for key, or "" if absent. An
// empty key returns the first entry of the collection regardless of key,
// matching the teacher's `GetFirstString("")` idiom for singleton
// collections like remote_addr/request_line.
func (c *Collection) GetFirstString(key string) string {
	if key == "" {
		if len(c.entries) == 0 {
			return ""
		}
		return c.entries[0].value
	}
	for _, e := range c.entries {
		if e.key == key {
			return e.value
		}
	}
	return ""
}

// GetFirstInt parses GetFirstString(key) as an int, returning 0 on failure.
func (c *Collection) GetFirstInt(key string) int {
	i, _ := strconv.Atoi(c.GetFirstString(key))
	return i
}

// GetFirstInt64 parses GetFirstString(key) as an int64, returning 0 on
// failure.
func (c *Collection) GetFirstInt64(key string) int64 {
	i, _ := strconv.ParseInt(c.GetFirstString(key), 10, 64)
	return i
}

// Len returns the number of entries (the `&COLLECTION` counter value).
func (c *Collection) Len() int { return len(c.entries) }

// Keys returns every distinct key present, in first-seen order.
func (c *Collection) Keys() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range c.entries {
		if !seen[e.key] {
			seen[e.key] = true
			out = append(out, e.key)
		}
	}
	return out
}

// All returns every (key, value) pair in insertion order, for VC addressing.
func (c *Collection) All() [][2]string {
	out := make([][2]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = [2]string{e.key, e.value}
	}
	return out
}

// SelectRegex returns every (key, value) pair whose key matches re, for VR
// addressing (`VAR:/pattern/`).
func (c *Collection) SelectRegex(re *regexp.Regexp) [][2]string {
	var out [][2]string
	for _, e := range c.entries {
		if re.MatchString(e.key) {
			out = append(out, [2]string{e.key, e.value})
		}
	}
	return out
}

// SetVar applies the `setvar:collection.key=value` create/increment/
// decrement grammar: a bare value sets, a `+N` prefix increments a numeric
// value by N, a `-N` prefix decrements.
func (c *Collection) SetVar(key, expr string) {
	if strings.HasPrefix(expr, "+") || strings.HasPrefix(expr, "-") {
		delta, err := strconv.ParseInt(expr, 10, 64)
		if err == nil {
			cur := c.GetFirstInt64(key)
			c.Set(key, strconv.FormatInt(cur+delta, 10))
			return
		}
	}
	c.Set(key, expr)
}
