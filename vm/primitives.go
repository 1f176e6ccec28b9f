package vm

import (
	"fmt"
	"unicode/utf8"

	"github.com/ribbit-vm/ribvm/rib"
)

// invokePrimitive dispatches one of the 22 fixed primitive operations
// (indices 0-21), enforcing each one's declared arity and popping/pushing
// the runtime stack the way its reference closure does. Primitive 2 (arg1)
// is deliberately declared arity 2 but pops only one value and pushes
// nothing: that asymmetry is load-bearing, not a mistake, and is preserved
// here rather than corrected.
func (i *Interp) invokePrimitive(code int, nargs int) error {
	switch code {
	case 0: // rib: pop z, y, x; push new rib (x, y, z)
		return i.prim3(nargs, "rib", func(x, y, z rib.Field) (rib.Field, error) {
			return rib.Ref(i.heap.Alloc(x, y, z)), nil
		})

	case 1: // id
		return i.prim1(nargs, "id", func(x rib.Field) (rib.Field, error) { return x, nil })

	case 2: // arg1
		if nargs != 2 {
			return i.arityError(nargs, 2, false)
		}
		i.pop()
		return nil

	case 3: // arg2: pop x, pop y, push x
		return i.prim2(nargs, "arg2", func(x, y rib.Field) (rib.Field, error) { return x, nil })

	case 4: // close
		return i.primClose(nargs)

	case 5: // rib?
		return i.prim1(nargs, "rib?", func(x rib.Field) (rib.Field, error) {
			return i.boolField(x.IsRef()), nil
		})

	case 6: // field0
		return i.prim1(nargs, "field0", func(x rib.Field) (rib.Field, error) { return i.fieldOf(x, 0) })
	case 7: // field1
		return i.prim1(nargs, "field1", func(x rib.Field) (rib.Field, error) { return i.fieldOf(x, 1) })
	case 8: // field2
		return i.prim1(nargs, "field2", func(x rib.Field) (rib.Field, error) { return i.fieldOf(x, 2) })

	case 9: // set-field0
		return i.setField(nargs, 0)
	case 10: // set-field1
		return i.setField(nargs, 1)
	case 11: // set-field2
		return i.setField(nargs, 2)

	case 12: // eqv?
		return i.prim2(nargs, "eqv?", func(first, second rib.Field) (rib.Field, error) {
			return i.boolField(rib.Eqv(first, second)), nil
		})

	case 13: // <, x popped second, y popped first: result is x < y
		return i.prim2(nargs, "<", func(first, second rib.Field) (rib.Field, error) {
			return i.boolField(rib.Less(second, first)), nil
		})

	case 14: // +, x popped second, y popped first: result is x + y
		return i.prim2(nargs, "+", func(first, second rib.Field) (rib.Field, error) {
			return rib.Add(second, first)
		})

	case 15: // -, x popped second, y popped first: result is x - y
		return i.prim2(nargs, "-", func(first, second rib.Field) (rib.Field, error) {
			return rib.Sub(second, first)
		})

	case 16: // *, x popped second, y popped first: result is x * y
		return i.prim2(nargs, "*", func(first, second rib.Field) (rib.Field, error) {
			return rib.Mul(second, first)
		})

	case 17: // /
		return i.primDiv(nargs)

	case 18: // getchar
		return i.primGetchar(nargs)

	case 19: // putchar
		return i.primPutchar(nargs)

	case 20: // list
		return i.primList(nargs)

	case 21: // exit
		return i.primExit(nargs)

	default:
		return fatalf(ExitIncoherent, "unknown primitive %d", code)
	}
}

// prim1, prim2 and prim3 enforce a fixed arity, pop that many values off the
// stack (in pop order: the first parameter received is the most recently
// pushed value), and push whatever the callback returns. A callback error
// becomes a fatal type error.
func (i *Interp) prim1(nargs int, name string, f func(x rib.Field) (rib.Field, error)) error {
	if nargs != 1 {
		return i.arityError(nargs, 1, false)
	}
	x := i.pop()
	r, err := f(x)
	if err != nil {
		return fatalf(ExitRuntimeError, "%s: %v", name, err)
	}
	i.push(r)
	return nil
}

func (i *Interp) prim2(nargs int, name string, f func(first, second rib.Field) (rib.Field, error)) error {
	if nargs != 2 {
		return i.arityError(nargs, 2, false)
	}
	first := i.pop()
	second := i.pop()
	r, err := f(first, second)
	if err != nil {
		return fatalf(ExitRuntimeError, "%s: %v", name, err)
	}
	i.push(r)
	return nil
}

func (i *Interp) prim3(nargs int, name string, f func(x, y, z rib.Field) (rib.Field, error)) error {
	if nargs != 3 {
		return i.arityError(nargs, 3, false)
	}
	z := i.pop()
	y := i.pop()
	x := i.pop()
	r, err := f(x, y, z)
	if err != nil {
		return fatalf(ExitRuntimeError, "%s: %v", name, err)
	}
	i.push(r)
	return nil
}

func (i *Interp) boolField(b bool) rib.Field {
	if b {
		return rib.Ref(rib.True)
	}
	return rib.Ref(rib.False)
}

func (i *Interp) fieldOf(x rib.Field, which int) (rib.Field, error) {
	idx, ok := x.AsRef()
	if !ok {
		return rib.Field{}, fmt.Errorf("not a rib")
	}
	c := i.heap.Get(idx)
	switch which {
	case 0:
		return c.First, nil
	case 1:
		return c.Middle, nil
	default:
		return c.Last, nil
	}
}

func (i *Interp) setField(nargs, which int) error {
	return i.prim2(nargs, "set-field", func(y, x rib.Field) (rib.Field, error) {
		idx, ok := x.AsRef()
		if !ok {
			return rib.Field{}, fmt.Errorf("not a rib")
		}
		switch which {
		case 0:
			i.heap.SetFirst(idx, y)
		case 1:
			i.heap.SetMiddle(idx, y)
		default:
			i.heap.SetLast(idx, y)
		}
		return y, nil
	})
}

func (i *Interp) primClose(nargs int) error {
	if nargs != 1 {
		return i.arityError(nargs, 1, false)
	}
	v := i.pop()
	idx, ok := v.AsRef()
	if !ok {
		return fatalf(ExitRuntimeError, "close: not a rib")
	}
	code := i.heap.Get(idx).First
	closure := i.heap.NewProcedure(code, rib.Ref(i.stack))
	i.push(rib.Ref(closure))
	return nil
}

// primDiv is split out from prim2 because it needs to report division by
// zero to stdout only (unlike arity and list errors, which go to both
// stdout and the trace log) before exiting with code 1.
func (i *Interp) primDiv(nargs int) error {
	if nargs != 2 {
		return i.arityError(nargs, 2, false)
	}
	divisor := i.pop()
	dividend := i.pop()
	if n, ok := divisor.AsInt(); ok && n == 0 {
		fmt.Fprintln(i.out, "Division by zero")
		i.out.Flush()
		return fatalf(ExitRuntimeError, "division by zero")
	}
	r, err := rib.Div(dividend, divisor)
	if err != nil {
		return fatalf(ExitRuntimeError, "/: %v", err)
	}
	i.push(r)
	return nil
}

func (i *Interp) primGetchar(nargs int) error {
	if nargs != 0 {
		return i.arityError(nargs, 0, false)
	}
	var buf [1]byte
	n, _ := i.in.Read(buf[:])
	if n > 0 {
		i.push(rib.Int(int(buf[0])))
		return nil
	}
	i.push(rib.Int(-1))
	return nil
}

func (i *Interp) primPutchar(nargs int) error {
	if nargs != 1 {
		return i.arityError(nargs, 1, false)
	}
	v := i.pop()
	n, ok := v.AsInt()
	if !ok || n < 0 || !utf8.ValidRune(rune(n)) {
		return fatalf(ExitRuntimeError, "putchar: code %v is not a representable character", v)
	}
	if _, err := i.out.Write([]byte(string(rune(n)))); err != nil {
		return fatalf(ExitRuntimeError, "putchar: %v", err)
	}
	if err := i.out.Flush(); err != nil {
		return fatalf(ExitRuntimeError, "putchar: %v", err)
	}
	i.push(rib.Int(n))
	return nil
}

// primList pops exactly nargs values (checking, before each pop, that the
// current stack top is an ordinary argument cell rather than a continuation
// frame) and conses them into a list in their original left-to-right order.
func (i *Interp) primList(nargs int) error {
	elems := make([]rib.Field, 0, nargs)
	for n := nargs; n > 0; n-- {
		top := i.heap.Get(i.stack)
		ordinary := false
		if !top.Last.IsRef() {
			if v, _ := top.Last.AsInt(); v == 0 {
				ordinary = true
			}
		}
		if !ordinary {
			msg := fmt.Sprintf("Expected %d elements in the list but stack had %d elements", nargs, len(elems))
			fmt.Fprintln(i.out, msg)
			i.out.Flush()
			i.logf("%s", msg)
			return fatalf(ExitIncoherent, "%s", msg)
		}
		elems = append(elems, i.pop())
	}
	newList := rib.Nil
	for _, e := range elems {
		newList = i.heap.NewPair(e, rib.Ref(newList))
	}
	i.push(rib.Ref(newList))
	return nil
}

func (i *Interp) primExit(nargs int) error {
	if nargs != 1 {
		return i.arityError(nargs, 1, false)
	}
	v := i.pop()
	if n, ok := v.AsInt(); ok {
		return FatalError{Code: n, Err: fmt.Errorf("exit %d", n)}
	}
	return FatalError{Code: ExitIncoherent, Err: fmt.Errorf("exit: non-integer exit code")}
}

// arityError reports an arity mismatch to both stdout and the trace log,
// matching the reference implementation's dual-stream reporting for
// incoherent call arguments, then signals a fatal exit with code 256.
func (i *Interp) arityError(nargs, expected int, variadic bool) error {
	var msg string
	if variadic {
		msg = fmt.Sprintf("Insufficient number of arguments. This function requires a minimum of %d arguments, got %d", expected, nargs)
	} else {
		msg = fmt.Sprintf("Incorrect number of arguments. This function takes %d arguments, got %d", expected, nargs)
	}
	fmt.Fprintln(i.out, msg)
	i.out.Flush()
	i.logf("%s", msg)
	return fatalf(ExitIncoherent, "%s", msg)
}
