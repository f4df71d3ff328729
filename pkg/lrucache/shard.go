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

// Package lrucache is the process-wide, sharded cache backing operators
// that build an auxiliary structure from a rule's literal argument once
// (`@pmFromFile`'s phrase list, `@within`'s joined haystack) and reuse it
// for every transaction that evaluates the same rule.
//
// It shards by key hash to keep lock contention low under concurrent
// transactions. Each shard has one sync.Mutex, held for the whole
// lookup-build-insert, so two goroutines racing on the same key never both
// build: the second waits and reuses the first one's entry. Reads and
// writes share that one lock (there is no reader/writer split and no
// double-checked re-insert).
package lrucache

import (
	"hash/fnv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const shardCount = 16

// Cache is a sharded LRU keyed by string, holding values of type V. Each
// shard is independently locked and independently bounded, so a single
// hot key never serializes access to unrelated keys in other shards.
type Cache[V any] struct {
	shards [shardCount]*shard[V]
}

type shard[V any] struct {
	mu sync.Mutex
	lc *lru.Cache[string, V]
}

// New returns a Cache whose per-shard LRU each holds up to
// perShardCapacity entries (so total capacity is shardCount*perShardCapacity).
func New[V any](perShardCapacity int) *Cache[V] {
	c := &Cache[V]{}
	for i := range c.shards {
		lc, err := lru.New[string, V](perShardCapacity)
		if err != nil {
			// Only returns an error for a non-positive size, which is a
			// caller bug, not a runtime condition.
			panic(err)
		}
		c.shards[i] = &shard[V]{lc: lc}
	}
	return c
}

func (c *Cache[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// GetOrBuild returns the cached value for key, building and storing it via
// build if absent. The shard's mutex is held for the duration of build,
// so a concurrent caller for the same key waits and then gets the stored
// value without building. A slow build also blocks every other key that
// hashes to the same shard; keys in other shards are unaffected.
func (c *Cache[V]) GetOrBuild(key string, build func() (V, error)) (V, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.lc.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	s.lc.Add(key, v)
	return v, nil
}

// Len returns the total number of entries cached across all shards.
func (c *Cache[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.lc.Len()
		s.mu.Unlock()
	}
	return n
}
