package vm

import (
	"fmt"

	"github.com/ract-lang/ract/internal/bytecode"
)

// FaultKind tags the class of an execution fault.
type FaultKind int

const (
	FaultStackUnderflow FaultKind = iota
	FaultStackOverflow
	FaultOutOfBounds
	FaultDivideByZero
	FaultUnknownOpcode
	FaultCallOverflow
	FaultBadHost
	FaultStepLimit
)

var faultNames = [...]string{
	FaultStackUnderflow: "stack underflow",
	FaultStackOverflow:  "stack overflow",
	FaultOutOfBounds:    "memory access out of bounds",
	FaultDivideByZero:   "divide by zero",
	FaultUnknownOpcode:  "unknown opcode",
	FaultCallOverflow:   "call depth overflow",
	FaultBadHost:        "unknown host routine",
	FaultStepLimit:      "step limit exceeded",
}

func (k FaultKind) String() string {
	if int(k) < len(faultNames) {
		return faultNames[k]
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is an unrecoverable execution error. It carries the faulting
// instruction index and opcode.
type Fault struct {
	Kind   FaultKind
	IP     int
	Op     bytecode.Opcode
	Detail string
}

func (f *Fault) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("fault at %04d (%s): %s: %s", f.IP, f.Op, f.Kind, f.Detail)
	}
	return fmt.Sprintf("fault at %04d (%s): %s", f.IP, f.Op, f.Kind)
}
