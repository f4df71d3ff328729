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

package lrucache

import (
	"sync/atomic"
	"testing"
)

func TestGetOrBuildCachesOnce(t *testing.T) {
	c := New[string](8)
	var builds int32
	build := func() (string, error) {
		atomic.AddInt32(&builds, 1)
		return "compiled", nil
	}
	for i := 0; i < 5; i++ {
		v, err := c.GetOrBuild("rule-42", build)
		if err != nil || v != "compiled" {
			t.Fatalf("GetOrBuild: got (%q, %v)", v, err)
		}
	}
	if builds != 1 {
		t.Fatalf("expected exactly one build, got %d", builds)
	}
}

func TestGetOrBuildDistinctKeys(t *testing.T) {
	c := New[int](8)
	a, err := c.GetOrBuild("a", func() (int, error) { return 1, nil })
	if err != nil || a != 1 {
		t.Fatalf("GetOrBuild(a): got (%d, %v)", a, err)
	}
	b, err := c.GetOrBuild("b", func() (int, error) { return 2, nil })
	if err != nil || b != 2 {
		t.Fatalf("GetOrBuild(b): got (%d, %v)", b, err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", c.Len())
	}
}

func TestGetOrBuildPropagatesError(t *testing.T) {
	c := New[string](8)
	wantErr := errBoom
	_, err := c.GetOrBuild("bad", func() (string, error) { return "", wantErr })
	if err != wantErr {
		t.Fatalf("expected build error to propagate, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("a failed build must not be cached")
	}
}

var errBoom = &buildError{"boom"}

type buildError struct{ msg string }

func (e *buildError) Error() string { return e.msg }
