package bytecode

import "github.com/ract-lang/ract/internal/types"

// Instruction is one VM step: an opcode, the width it operates at and
// one optional integer operand. For Cast the width is the source type
// and the operand is the target type.
type Instruction struct {
	Op   Opcode     `yaml:"op"`
	Type types.Fund `yaml:"type,omitempty"`
	Arg  int        `yaml:"arg,omitempty"`
}

// Param is one routine parameter slot: a permanent data address and
// the width stored there.
type Param struct {
	Addr uint16     `yaml:"addr"`
	Type types.Fund `yaml:"type"`
}

// Routine is one entry of the routine table. Entry is the instruction
// index of the body, -1 for host routines. FixedAddr preserves an
// `=addr` binding from the source, -1 when absent.
type Routine struct {
	Name      string     `yaml:"name"`
	Entry     int        `yaml:"entry"`
	Params    []Param    `yaml:"params,omitempty"`
	Ret       types.Fund `yaml:"ret,omitempty"`
	Host      bool       `yaml:"host,omitempty"`
	FixedAddr int        `yaml:"fixedaddr"`
}

// Program is a complete executable artifact: code, the routine table,
// the entry routine index and the initial data image. Programs are
// immutable after emission and safe to share between VMs.
type Program struct {
	Instrs   []Instruction `yaml:"instrs"`
	Routines []Routine     `yaml:"routines"`
	Entry    int           `yaml:"entry"`
	DataBase uint16        `yaml:"database"`
	Data     []byte        `yaml:"data,flow,omitempty"`
}

// Routine finds a routine table index by name.
func (p *Program) Routine(name string) (int, bool) {
	for i := range p.Routines {
		if p.Routines[i].Name == name {
			return i, true
		}
	}
	return 0, false
}
