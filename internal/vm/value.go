package vm

import (
	"fmt"

	"github.com/ract-lang/ract/internal/types"
)

// Value is one operand stack entry: a number together with the width
// it was produced at. INT values carry their sign in N.
type Value struct {
	Type types.Fund
	N    int
}

func (v Value) String() string {
	return fmt.Sprintf("%d:%s", v.N, v.Type)
}

// ByteValue builds a BYTE operand.
func ByteValue(n int) Value { return Value{Type: types.Byte, N: types.Fit(types.Byte, n)} }

// IntValue builds an INT operand.
func IntValue(n int) Value { return Value{Type: types.Int, N: types.Fit(types.Int, n)} }

// CardValue builds a CARD operand.
func CardValue(n int) Value { return Value{Type: types.Card, N: types.Fit(types.Card, n)} }
