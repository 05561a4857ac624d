package bytecode

import "fmt"

// Opcode identifies one VM instruction.
type Opcode uint8

const (
	Nop Opcode = iota
	PushConst
	Dup
	Drop
	LoadAbs
	StoreAbs
	Add
	Sub
	Mul
	Div
	Mod
	Lsh
	Rsh
	BitAnd
	BitOr
	BitXor
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Neg
	Cast
	Jump
	JumpIfFalse
	Call
	CallHost
	Return

	opCount
)

var opNames = [...]string{
	Nop:         "Nop",
	PushConst:   "PushConst",
	Dup:         "Dup",
	Drop:        "Drop",
	LoadAbs:     "LoadAbs",
	StoreAbs:    "StoreAbs",
	Add:         "Add",
	Sub:         "Sub",
	Mul:         "Mul",
	Div:         "Div",
	Mod:         "Mod",
	Lsh:         "Lsh",
	Rsh:         "Rsh",
	BitAnd:      "BitAnd",
	BitOr:       "BitOr",
	BitXor:      "BitXor",
	Eq:          "Eq",
	Ne:          "Ne",
	Lt:          "Lt",
	Le:          "Le",
	Gt:          "Gt",
	Ge:          "Ge",
	Neg:         "Neg",
	Cast:        "Cast",
	Jump:        "Jump",
	JumpIfFalse: "JumpIfFalse",
	Call:        "Call",
	CallHost:    "CallHost",
	Return:      "Return",
}

func (o Opcode) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", int(o))
}

// Valid reports whether o is a defined opcode.
func (o Opcode) Valid() bool { return o < opCount }
