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

// Interner is the transaction's append-only string arena. Any string that
// must outlive a single instruction — most notably a transformation's
// output, which the transform cache keys by pointer identity — is routed
// through Intern so its backing array is guaranteed to stay alive (and at
// a stable address) for the transaction's lifetime.
type Interner struct {
	owned []string
}

// Intern stores s and returns the arena-owned copy. Passing a string
// already allocated fresh (e.g. the result of strings.ToLower) through
// Intern is what makes it safe to use as a transform-cache key afterwards.
func (in *Interner) Intern(s string) string {
	in.owned = append(in.owned, s)
	return in.owned[len(in.owned)-1]
}
