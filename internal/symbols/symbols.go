package symbols

import (
	"fmt"

	"github.com/ract-lang/ract/internal/types"
)

// DataBase is the first usable data address. Everything below is
// reserved.
const DataBase = 0x0800

// memoryTop bounds the 64KB address space.
const memoryTop = 0x10000

// Kind distinguishes where a symbol was declared.
type Kind int

const (
	Global Kind = iota
	Local
	Param
)

func (k Kind) String() string {
	switch k {
	case Global:
		return "global"
	case Local:
		return "local"
	case Param:
		return "param"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Symbol is one declared variable with its permanent absolute address.
// Locals and parameters get addresses the same way globals do; there
// are no stack frames.
type Symbol struct {
	Name string
	Type types.Type
	Addr uint16
	Kind Kind
}

// Routine describes a PROC or FUNC. Entry is the instruction index of
// its body, filled during code generation (-1 until then, and for host
// routines). FixedAddr records an `=addr` binding, -1 when absent.
type Routine struct {
	Name      string
	Params    []*Symbol
	Ret       types.Fund
	Index     int
	Entry     int
	FixedAddr int
	Host      bool
}

// Table is one scope level. Routine bodies get a child table whose
// parent is the global table.
type Table struct {
	parent       *Table
	syms         map[string]*Symbol
	order        []*Symbol
	records      map[string]*types.Record
	routines     map[string]*Routine
	routineOrder []*Routine
}

// NewTable creates the global scope.
func NewTable() *Table {
	return &Table{
		syms:     map[string]*Symbol{},
		records:  map[string]*types.Record{},
		routines: map[string]*Routine{},
	}
}

// NewChild opens a routine-local scope.
func (t *Table) NewChild() *Table {
	return &Table{
		parent: t,
		syms:   map[string]*Symbol{},
	}
}

// Declare adds a symbol to this scope. Names share one namespace per
// scope with records and routines.
func (t *Table) Declare(s *Symbol) error {
	if t.taken(s.Name) {
		return fmt.Errorf("duplicate name %q", s.Name)
	}
	t.syms[s.Name] = s
	t.order = append(t.order, s)
	return nil
}

// Resolve finds a symbol here or in an enclosing scope.
func (t *Table) Resolve(name string) (*Symbol, bool) {
	for s := t; s != nil; s = s.parent {
		if sym, ok := s.syms[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Symbols returns the symbols of this scope in declaration order.
func (t *Table) Symbols() []*Symbol { return t.order }

// DeclareRecord registers a record type in the global scope.
func (t *Table) DeclareRecord(r *types.Record) error {
	g := t.global()
	if g.taken(r.Name) {
		return fmt.Errorf("duplicate name %q", r.Name)
	}
	g.records[r.Name] = r
	return nil
}

// Record finds a record type by name.
func (t *Table) Record(name string) (*types.Record, bool) {
	r, ok := t.global().records[name]
	return r, ok
}

// DeclareRoutine registers a routine in the global scope and assigns
// its table index.
func (t *Table) DeclareRoutine(r *Routine) error {
	g := t.global()
	if g.taken(r.Name) {
		return fmt.Errorf("duplicate name %q", r.Name)
	}
	r.Index = len(g.routineOrder)
	g.routines[r.Name] = r
	g.routineOrder = append(g.routineOrder, r)
	return nil
}

// Routine finds a routine by name.
func (t *Table) Routine(name string) (*Routine, bool) {
	r, ok := t.global().routines[name]
	return r, ok
}

// Routines returns all routines in declaration order.
func (t *Table) Routines() []*Routine { return t.global().routineOrder }

func (t *Table) global() *Table {
	g := t
	for g.parent != nil {
		g = g.parent
	}
	return g
}

func (t *Table) taken(name string) bool {
	if _, ok := t.syms[name]; ok {
		return true
	}
	if t.parent == nil {
		if _, ok := t.records[name]; ok {
			return true
		}
		if _, ok := t.routines[name]; ok {
			return true
		}
	}
	return false
}

// Allocator hands out permanent data addresses and builds the initial
// memory image alongside.
type Allocator struct {
	next int
	data []byte
}

// NewAllocator starts allocation at the data base.
func NewAllocator() *Allocator {
	return &Allocator{next: DataBase}
}

// Reserve claims size bytes and returns their base address.
func (a *Allocator) Reserve(size int) (uint16, error) {
	if a.next+size > memoryTop {
		return 0, fmt.Errorf("data segment overflow: %d bytes requested at $%04X", size, a.next)
	}
	addr := uint16(a.next)
	a.next += size
	for len(a.data) < a.next-DataBase {
		a.data = append(a.data, 0)
	}
	return addr, nil
}

// SetByte writes one byte of the initial image.
func (a *Allocator) SetByte(addr uint16, v int) {
	a.data[int(addr)-DataBase] = byte(v & 0xFF)
}

// SetShort writes one little-endian 16-bit value of the initial image.
func (a *Allocator) SetShort(addr uint16, v int) {
	a.data[int(addr)-DataBase] = byte(v & 0xFF)
	a.data[int(addr)-DataBase+1] = byte((v >> 8) & 0xFF)
}

// Image returns the initial data image from DataBase.
func (a *Allocator) Image() []byte { return a.data }
