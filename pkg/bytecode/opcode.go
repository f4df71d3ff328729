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

// Package bytecode defines the intermediate representation a compiled rule
// is lowered into: a linear instruction stream, fixed-size instructions
// with tagged operands, and the register file the VM operates on.
package bytecode

// OpCode tags an Instruction. The source engine monomorphizes LOAD/
// TRANSFORM/OPERATOR/ACTION into one opcode per (kind, mode) pair for a
// computed-goto dispatch table; a safe-language port replaces the
// computed-goto with a compiler-generated jump table over a single opcode
// per family plus a Kind operand field (see DESIGN.md "LOAD opcode
// collapsing"), so LOAD_VAR/TRANSFORM/OPERATOR/ACTION/UNC_ACTION here each
// stand in for the whole family named in spec.md §4.3.
type OpCode uint8

const (
	NOP OpCode = iota
	MOV
	ADD
	CMP
	JMP
	JZ
	JNZ
	JOM  // jump if operator matched
	JNOM // jump if operator did not match
	JRM  // jump if rule matched
	JNRM // jump if rule did not match
	DEBUG

	RULE_START
	CHAIN_START
	CHAIN_END
	JMP_IF_REMOVED

	LOAD_VAR // Kind+Mode selects the concrete loader; see pkg/engine.VariableKind/AddressMode

	TRANSFORM_START
	TRANSFORM // Kind operand selects the transformation

	OPERATOR // Kind operand selects the operator predicate

	SIZE
	PUSH_MATCHED
	PUSH_ALL_MATCHED

	EXPAND_MACRO
	LOG_CALLBACK

	ACTION     // conditional on the per-element operator result
	UNC_ACTION // unconditional within the rule

	EXIT_IF_DISRUPTIVE
)

var opcodeNames = map[OpCode]string{
	NOP: "NOP", MOV: "MOV", ADD: "ADD", CMP: "CMP",
	JMP: "JMP", JZ: "JZ", JNZ: "JNZ", JOM: "JOM", JNOM: "JNOM", JRM: "JRM", JNRM: "JNRM",
	DEBUG: "DEBUG", RULE_START: "RULE_START", CHAIN_START: "CHAIN_START",
	CHAIN_END: "CHAIN_END", JMP_IF_REMOVED: "JMP_IF_REMOVED",
	LOAD_VAR: "LOAD_VAR", TRANSFORM_START: "TRANSFORM_START", TRANSFORM: "TRANSFORM",
	OPERATOR: "OPERATOR", SIZE: "SIZE", PUSH_MATCHED: "PUSH_MATCHED",
	PUSH_ALL_MATCHED: "PUSH_ALL_MATCHED", EXPAND_MACRO: "EXPAND_MACRO",
	LOG_CALLBACK: "LOG_CALLBACK", ACTION: "ACTION", UNC_ACTION: "UNC_ACTION",
	EXIT_IF_DISRUPTIVE: "EXIT_IF_DISRUPTIVE",
}

func (op OpCode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// GeneralRegister names one of the five general-purpose 64-bit registers.
type GeneralRegister uint8

const (
	RAX GeneralRegister = iota
	RBX
	RCX
	RDX
	RFLAGS
	MaxGeneralRegister
)

// ExtendedRegister names one of the four result-list registers.
type ExtendedRegister uint8

const (
	R8 ExtendedRegister = iota
	R9
	R10
	R11
	MaxExtendedRegister
)

// Flag is a single bit in the VM's small flags word.
type Flag uint8

const (
	ZF  Flag = 1 << iota // zero flag, set by CMP
	OMF                  // operator matched, last OPERATOR instruction
	RMF                  // rule matched, any element of any variable of the current rule
)
