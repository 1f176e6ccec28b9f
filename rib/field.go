// Package rib implements the rib heap: a uniform three-field cell store that
// doubles as every data structure and every instruction in the VM.
package rib

import (
	"errors"
	"fmt"
)

// Field is a tagged union: either a heap Reference (an index into a Heap) or
// a signed machine Integer. It is a plain value type (no interface{}), so a
// type test is an O(1) boolean compare rather than a type switch.
type Field struct {
	ref bool
	v   int
}

// Ref makes a Field that refers to heap index i.
func Ref(i int) Field { return Field{ref: true, v: i} }

// Int makes a Field holding the integer n.
func Int(n int) Field { return Field{ref: false, v: n} }

// IsRef reports whether f holds a heap reference rather than an integer.
func (f Field) IsRef() bool { return f.ref }

// Index returns the heap index f holds. The caller must have already
// checked IsRef; Index on an Integer field returns the integer's raw bits,
// which is never a meaningful heap index.
func (f Field) Index() int { return f.v }

// Value returns the integer f holds, with the same caveat as Index.
func (f Field) Value() int { return f.v }

// AsRef returns (index, true) if f is a Reference, else (0, false).
func (f Field) AsRef() (int, bool) {
	if f.ref {
		return f.v, true
	}
	return 0, false
}

// AsInt returns (n, true) if f is an Integer, else (0, false).
func (f Field) AsInt() (int, bool) {
	if !f.ref {
		return f.v, true
	}
	return 0, false
}

func (f Field) String() string {
	if f.ref {
		return fmt.Sprintf("r%d", f.v)
	}
	return fmt.Sprintf("n%d", f.v)
}

// ErrDivByZero is returned by Div when the divisor is zero.
var ErrDivByZero = errors.New("division by zero")

// TypeError indicates that an arithmetic primitive was applied to a field
// that isn't the Integer it requires.
type TypeError struct{ Op string }

func (e TypeError) Error() string {
	return fmt.Sprintf("type error: %s requires two integers", e.Op)
}

// Add, Sub, Mul and Div implement the partial arithmetic spec.md §4.B
// describes: two Integers yield an Integer, anything else is a TypeError.

func Add(a, b Field) (Field, error) { return arith("add", a, b, func(x, y int) int { return x + y }) }
func Sub(a, b Field) (Field, error) { return arith("sub", a, b, func(x, y int) int { return x - y }) }
func Mul(a, b Field) (Field, error) { return arith("mul", a, b, func(x, y int) int { return x * y }) }

func Div(a, b Field) (Field, error) {
	x, ok := a.AsInt()
	if !ok {
		return Field{}, TypeError{"div"}
	}
	y, ok := b.AsInt()
	if !ok {
		return Field{}, TypeError{"div"}
	}
	if y == 0 {
		return Field{}, ErrDivByZero
	}
	return Int(x / y), nil
}

func arith(op string, a, b Field, f func(x, y int) int) (Field, error) {
	x, ok := a.AsInt()
	if !ok {
		return Field{}, TypeError{op}
	}
	y, ok := b.AsInt()
	if !ok {
		return Field{}, TypeError{op}
	}
	return Int(f(x, y)), nil
}

// Eqv implements the `eqv?` primitive: structural equality of the fields
// themselves. Two independently-allocated ribs with identical contents are
// NOT eqv (their Reference indices differ); only integers compare by value
// and references compare by identity (same index).
func Eqv(a, b Field) bool { return a == b }

// Less orders two Integer fields; it is undefined (always false) across a
// Reference/Integer pair or between two References, mirroring spec.md §4.B
// ("ordering is defined only between two Integers").
func Less(a, b Field) bool {
	x, ok := a.AsInt()
	if !ok {
		return false
	}
	y, ok := b.AsInt()
	if !ok {
		return false
	}
	return x < y
}
