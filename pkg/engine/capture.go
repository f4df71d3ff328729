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

// CaptureRing is the 10-slot tx.0..tx.9 capture table, with two-phase
// commit: an operator's match writes into the pending set via
// StageCapture, and only MergeCapture promotes it into the slots actually
// readable as TX:0..TX:9. This lets a rule's `capture` action decide,
// after the whole operator evaluation for one element, whether this
// element's captures should become visible, without an operator needing to
// know whether `capture` was requested.
type CaptureRing struct {
	slots   [10]string
	pending [10]string
	staged  bool
}

// StageCapture records capture group i (0-9) into the pending set. Out of
// range indices are ignored.
func (c *CaptureRing) StageCapture(i int, v string) {
	if i < 0 || i >= len(c.pending) {
		return
	}
	c.pending[i] = v
	c.staged = true
}

// MergeCapture promotes the pending set into tx.0..tx.9, clearing any
// slots the pending set didn't touch this round.
func (c *CaptureRing) MergeCapture() {
	if !c.staged {
		return
	}
	c.slots = c.pending
	c.pending = [10]string{}
	c.staged = false
}

// Get returns capture slot i, or "" if out of range.
func (c *CaptureRing) Get(i int) string {
	if i < 0 || i >= len(c.slots) {
		return ""
	}
	return c.slots[i]
}

// Clear resets both the committed and pending slots, called when a new
// rule starts evaluating (spec.md §4.2 "Prologue": clear captures).
func (c *CaptureRing) Clear() {
	c.slots = [10]string{}
	c.pending = [10]string{}
	c.staged = false
}
