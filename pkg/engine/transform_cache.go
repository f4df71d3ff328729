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

// transformCacheMinLen is the source constant below which caching a
// transformation result costs more (hashing, map bookkeeping) than just
// recomputing it.
const transformCacheMinLen = 32

// transformCacheKey identifies a cached transformation result by the
// transformation kind and the *identity* of its input slice (pointer +
// length), not its contents — two different strings that happen to share
// bytes do not collide because Go strings backed by different arrays have
// different headers. unsafe.StringData gives us that pointer without
// copying.
type transformCacheKey struct {
	kind TransformKind
	ptr  uintptr
	ln   int
}

// transformCacheEntry is the 3-state outcome described in spec.md §4.4:
// a miss (not present in the map), hit-with-output, or hit-no-change
// (NoChange==true means the consumer should keep using the original
// slice rather than Output).
type transformCacheEntry struct {
	Output    string
	NoChange  bool
}

// TransformCache is the per-transaction, content-indexed cache of
// transformation results. It is a pure function: two lookups with an equal
// key in the same transaction must return identical outputs, which holds
// here because entries are only ever inserted, never mutated in place.
type TransformCache struct {
	entries map[transformCacheKey]transformCacheEntry
}

// NewTransformCache allocates an empty cache.
func NewTransformCache() *TransformCache {
	return &TransformCache{entries: make(map[transformCacheKey]transformCacheEntry)}
}

// Lookup returns the cached entry for (kind, input), and whether it was
// present. Inputs shorter than transformCacheMinLen are never cached (the
// function reports ok=false unconditionally for them, as if a miss), since
// the caller must apply the transformation itself in that case too.
func (c *TransformCache) Lookup(kind TransformKind, input string) (transformCacheEntry, bool) {
	if len(input) < transformCacheMinLen {
		return transformCacheEntry{}, false
	}
	key := keyFor(kind, input)
	e, ok := c.entries[key]
	return e, ok
}

// Store records the result of applying kind to input, provided input meets
// the caching length threshold.
func (c *TransformCache) Store(kind TransformKind, input string, output string, noChange bool) {
	if len(input) < transformCacheMinLen {
		return
	}
	c.entries[keyFor(kind, input)] = transformCacheEntry{Output: output, NoChange: noChange}
}
