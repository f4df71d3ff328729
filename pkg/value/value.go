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

// Package value holds the tagged union that flows through every register
// and collection in the engine, plus the append-only result list used as
// the VM's per-instruction dataflow unit.
package value

// Kind discriminates the variants a Value can hold.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindInt
	KindString
)

// Value is a discriminated union: empty, a 64-bit integer, or a string
// slice. Strings may borrow from host buffers, rule literals, or a
// transaction's string interner; callers that need an owned copy should
// intern it first.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// Empty returns the empty Value.
func Empty() Value { return Value{kind: KindEmpty} }

// Int wraps an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Str wraps a string Value.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// IsEmpty reports whether v holds no value.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.kind == KindString }

// Kind returns the discriminant.
func (v Value) Kind() Kind { return v.kind }

// Int64 returns the wrapped integer, or 0 if v is not an Int.
func (v Value) Int64() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.i
}

// String renders v as a string regardless of kind: strings pass through,
// integers are decimal-formatted, empty yields "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return itoa(v.i)
	default:
		return ""
	}
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Capture is a numbered capture produced by an operator on match: TX:0..TX:9
// style slots, plus any named sub-captures a future operator may add.
type Capture struct {
	Index int
	Value string
}

// Element is one entry of a Result list: a Value, its originating sub-name
// (the key that produced it, e.g. an ARGS_GET sub-key), and the capture set
// the last operator to touch it produced, if any.
//
// Transformation and operator implementations must preserve the sub-name
// one-to-one between input and output elements so MATCHED_VAR_NAME stays
// correct.
type Element struct {
	Value    Value
	SubName  string
	Captures []Capture
	moved    bool
}

// Moved reports whether this element's value ownership has already been
// transferred elsewhere (e.g. into the matched-variables log by a `move`).
func (e *Element) Moved() bool { return e.moved }

// Result is an ordered, append-only sequence of Elements: the unit of
// inter-instruction dataflow stored in one extended register.
type Result struct {
	elems []Element
}

// Clear empties the result list without releasing its backing array.
func (r *Result) Clear() { r.elems = r.elems[:0] }

// Append adds an element to the end of the list.
func (r *Result) Append(e Element) { r.elems = append(r.elems, e) }

// Len returns the number of elements.
func (r *Result) Len() int { return len(r.elems) }

// Get returns a pointer to element i for in-place mutation (e.g. by an
// operator writing a capture).
func (r *Result) Get(i int) *Element { return &r.elems[i] }

// Move destructively removes element i's value, marking it moved, and
// returns a copy of it for transfer into, e.g., the matched-variables log.
// The slot is left behind (with Moved()==true) so that length-based loops
// over the result list remain valid after a move.
func (r *Result) Move(i int) Element {
	e := r.elems[i]
	r.elems[i].moved = true
	r.elems[i].Value = Empty()
	return e
}

// All returns the underlying slice for read-only iteration.
func (r *Result) All() []Element { return r.elems }

// FromSingle builds a one-element Result, the common case for VS/CS/CC
// addressing modes.
func FromSingle(e Element) *Result {
	r := &Result{}
	r.Append(e)
	return r
}
