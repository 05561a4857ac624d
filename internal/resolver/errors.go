package resolver

import (
	"fmt"

	"github.com/ract-lang/ract/internal/token"
)

// DeclError reports an invalid declaration.
type DeclError struct {
	Pos token.Position
	Msg string
}

func (e *DeclError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Pos.Source, e.Pos.Line, e.Msg)
}

// TypeError reports a type or semantic violation in executable code.
type TypeError struct {
	Pos token.Position
	Msg string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Pos.Source, e.Pos.Line, e.Msg)
}

// UnresolvedConst reports a constant expression that names a symbol
// not declared yet. Constants fold over previously declared names
// only.
type UnresolvedConst struct {
	Pos  token.Position
	Name string
}

func (e *UnresolvedConst) Error() string {
	return fmt.Sprintf("%s:%d: unresolved constant %q", e.Pos.Source, e.Pos.Line, e.Name)
}
