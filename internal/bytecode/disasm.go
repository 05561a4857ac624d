package bytecode

import (
	"fmt"
	"strings"

	"github.com/ract-lang/ract/internal/types"
)

// Disassemble renders the program as a readable assembly-style dump,
// one instruction per line with routine headers.
func Disassemble(p *Program) string {
	var b strings.Builder

	heads := map[int]string{}
	for _, rt := range p.Routines {
		if rt.Host {
			continue
		}
		label := rt.Name
		if len(rt.Params) > 0 {
			label = fmt.Sprintf("%s (params=%d)", rt.Name, len(rt.Params))
		}
		heads[rt.Entry] = label
	}

	for ip, in := range p.Instrs {
		if label, ok := heads[ip]; ok {
			if ip > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s:\n", label)
		}
		fmt.Fprintf(&b, "%04d %s\n", ip, formatInstr(in))
	}

	for _, rt := range p.Routines {
		if rt.Host {
			fmt.Fprintf(&b, "\n%s: [host]\n", rt.Name)
		}
	}
	if len(p.Data) > 0 {
		fmt.Fprintf(&b, "\ndata: %d bytes at $%04X\n", len(p.Data), p.DataBase)
	}
	return b.String()
}

func formatInstr(in Instruction) string {
	name := in.Op.String()
	switch in.Op {
	case Nop, Return, Dup, Drop, LoadAbs, StoreAbs, Neg,
		Add, Sub, Mul, Div, Mod, Lsh, Rsh, BitAnd, BitOr, BitXor,
		Eq, Ne, Lt, Le, Gt, Ge:
		if in.Op == Nop {
			return name
		}
		return fmt.Sprintf("%s.%s", name, in.Type)
	case PushConst:
		return fmt.Sprintf("%s.%s %d", name, in.Type, in.Arg)
	case Cast:
		return fmt.Sprintf("%s.%s to %s", name, in.Type, types.Fund(in.Arg))
	case Jump, JumpIfFalse:
		if in.Op == Jump {
			return fmt.Sprintf("%s %04d", name, in.Arg)
		}
		return fmt.Sprintf("%s.%s %04d", name, in.Type, in.Arg)
	case Call, CallHost:
		return fmt.Sprintf("%s %d", name, in.Arg)
	}
	return fmt.Sprintf("%s.%s %d", name, in.Type, in.Arg)
}
