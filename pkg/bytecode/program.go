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

package bytecode

// Program owns one phase's compiled instruction stream plus the reference
// table its instructions' Ref operands index into. A Program is built once
// by the compiler and is immutable thereafter; many transactions' VMs
// execute the same Program concurrently.
type Program struct {
	Instructions []Instruction
	// Refs holds the pointer-equivalents a source build would embed
	// directly in instruction operands: *engine.Rule, *engine.Variable,
	// *engine.Transformation, *engine.Operator, *engine.Action,
	// *engine.Macro. Indexing is stable once the program is sealed.
	Refs []interface{}
	// Phase this program belongs to (1..5).
	Phase int
}

// AddRef appends v to the reference table and returns its index.
func (p *Program) AddRef(v interface{}) int {
	p.Refs = append(p.Refs, v)
	return len(p.Refs) - 1
}

// Ref resolves a reference-table index back to its value.
func (p *Program) Ref(idx int) interface{} {
	if idx < 0 || idx >= len(p.Refs) {
		return nil
	}
	return p.Refs[idx]
}

// Emit appends an instruction and returns its address (index).
func (p *Program) Emit(i Instruction) int {
	p.Instructions = append(p.Instructions, i)
	return len(p.Instructions) - 1
}

// Len returns the number of emitted instructions.
func (p *Program) Len() int { return len(p.Instructions) }

// Patch overwrites the operand slots of an already-emitted instruction,
// used to resolve forward jumps (chain short-circuits, skip/skipAfter).
func (p *Program) Patch(addr int, i Instruction) {
	p.Instructions[addr] = i
}
