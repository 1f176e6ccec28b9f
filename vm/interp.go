// Package vm runs decoded rib bytecode: it owns the three live roots (the
// program counter, the runtime stack and the symbol table), dispatches each
// instruction, constructs call/jump frames, and triggers collection once
// right after Load and again whenever the heap has doubled since the last one.
package vm

import (
	"context"

	"github.com/ribbit-vm/ribvm/decode"
	"github.com/ribbit-vm/ribvm/gc"
	"github.com/ribbit-vm/ribvm/rib"
)

// Interp is a loaded, runnable program. Zero value is not usable; build one
// with New and Load a program onto it before calling Run.
type Interp struct {
	heap *rib.Heap

	pc, stack, sym int

	in  ioReader
	out writeFlusher

	logfn func(mess string, args ...interface{})

	trace     bool
	traceHeap bool

	memLimit  uint
	gcAt      int
	gcCount   int
	stepCount uint64
}

// ioReader is the minimal getchar source; kept local so this file doesn't
// need to import io just for one method signature.
type ioReader interface {
	Read(p []byte) (n int, err error)
}

type writeFlusher interface {
	Write(p []byte) (n int, err error)
	Flush() error
}

// Load decodes source onto a fresh heap and positions the interpreter at its
// entry point. It runs one collection immediately afterward, discarding the
// decoder's scratch build-stack cells before execution begins, the way the
// reference collector is invoked once right after decoding and before the
// first step.
func (i *Interp) Load(source string) error {
	h := rib.NewHeap()
	result, err := decode.Decode(source, h)
	if err != nil {
		return err
	}
	i.heap = h
	i.pc, i.stack, i.sym = result.PC, result.Stack, result.Symtbl
	i.gcAt = h.Len() * 2
	i.collect()
	return nil
}

// Heap exposes the live heap, for dumper.go and tests.
func (i *Interp) Heap() *rib.Heap { return i.heap }

// Stack exposes the current runtime stack root, for dumper.go and tests.
func (i *Interp) Stack() int { return i.stack }

// GCCount reports how many collections have run so far.
func (i *Interp) GCCount() int { return i.gcCount }

func (i *Interp) pop() rib.Field {
	f, next := i.heap.Pop(i.stack)
	i.stack = next
	return f
}

func (i *Interp) push(f rib.Field) {
	i.stack = i.heap.Push(i.stack, f)
}

func (i *Interp) logf(format string, args ...interface{}) {
	if i.logfn != nil {
		i.logfn(format, args...)
	}
}

// resolveSlot turns an instruction operand into the heap index of the slot it
// names: a Reference operand names a symbol directly, an Integer operand
// counts frames down the current stack from its top.
func (i *Interp) resolveSlot(o rib.Field) int {
	if idx, ok := o.AsRef(); ok {
		return idx
	}
	n, _ := o.AsInt()
	return i.listTail(i.stack, n)
}

func (i *Interp) listTail(stack, n int) int {
	for ; n > 0; n-- {
		stack, _ = i.heap.Get(stack).Middle.AsRef()
	}
	return stack
}

// getCont walks up the stack from start, returning the nearest frame whose
// Last field is a Reference: the marker that makes a frame a continuation
// (somewhere to resume after a call returns), as opposed to an ordinary
// argument cell.
func (i *Interp) getCont(start int) int {
	s := start
	for {
		if _, ok := i.heap.Get(s).Last.AsRef(); ok {
			return s
		}
		s, _ = i.heap.Get(s).Middle.AsRef()
	}
}

func (i *Interp) collect() {
	newLen := gc.Collect(i.heap, gc.Roots{Stack: &i.stack, PC: &i.pc, Sym: &i.sym})
	i.gcAt = newLen * 2
	i.gcCount++
	if i.traceHeap {
		i.logf("heap size after gc %d: %d", i.gcCount, newLen)
	}
}

// run is the interpreter's step loop: fetch, optionally trace, dispatch,
// maybe collect. It returns nil on a halt instruction, or the first fatal
// error (typed as FatalError so Run can recover a process exit code from it).
func (i *Interp) run(ctx context.Context) error {
	for {
		if i.stepCount&0x3ff == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		i.stepCount++
		if i.trace && i.stepCount%100000 == 0 {
			i.logf("@%d", i.stepCount)
		}

		instr := i.heap.Get(i.pc)
		op := instr.First.Value()

		if i.trace {
			i.traceStep(op, instr)
		}

		switch op {
		case rib.OpHalt:
			return nil

		case rib.OpCall:
			if err := i.call(instr); err != nil {
				return err
			}

		case rib.OpSet:
			slot := i.resolveSlot(instr.Middle)
			v := i.pop()
			i.heap.SetFirst(slot, v)
			i.pc, _ = instr.Last.AsRef()

		case rib.OpGet:
			slot := i.resolveSlot(instr.Middle)
			i.push(i.heap.Get(slot).First)
			i.pc, _ = instr.Last.AsRef()

		case rib.OpConst:
			i.push(instr.Middle)
			i.pc, _ = instr.Last.AsRef()

		case rib.OpIf:
			v := i.pop()
			if idx, ok := v.AsRef(); ok && idx == rib.False {
				i.pc, _ = instr.Last.AsRef()
			} else {
				i.pc, _ = instr.Middle.AsRef()
			}

		default:
			return fatalf(ExitIncoherent, "unknown instruction opcode %d", op)
		}

		if i.heap.Len() > i.gcAt {
			i.collect()
			if i.memLimit != 0 && uint(i.heap.Len()) > i.memLimit {
				return fatalf(ExitRuntimeError, "memory limit of %d cells exceeded (heap at %d live cells after gc)", i.memLimit, i.heap.Len())
			}
		}
	}
}

// call implements the call/jump instruction: pop the argument count, resolve
// the callee, and either enter a user procedure (building a new frame) or
// invoke a primitive in place. instr.Last distinguishes a true call (a
// Reference: the return continuation) from a tail jump (an Integer: resume
// through whatever continuation is already on the stack).
func (i *Interp) call(instr rib.Cell) error {
	nargsF := i.pop()
	nargs, _ := nargsF.AsInt()

	slot := i.resolveSlot(instr.Middle)
	callee := i.heap.Get(slot).First

	calleeIdx, ok := callee.AsRef()
	if !ok {
		return fatalf(ExitRuntimeError, "call: callee is not a procedure")
	}
	code := i.heap.Get(calleeIdx).First
	isCall := instr.Last.IsRef()

	if codeIdx, ok := code.AsRef(); ok {
		return i.callUser(instr, codeIdx, calleeIdx, nargs, isCall)
	}

	primIdx, _ := code.AsInt()
	if err := i.invokePrimitive(primIdx, nargs); err != nil {
		return err
	}
	if isCall {
		i.pc, _ = instr.Last.AsRef()
	} else {
		k := i.getCont(i.stack)
		i.heap.SetMiddle(i.stack, i.heap.Get(k).First)
		i.pc, _ = i.heap.Get(k).Last.AsRef()
	}
	return nil
}

func (i *Interp) callUser(instr rib.Cell, codeIdx, calleeIdx, nargs int, isCall bool) error {
	codeRib := i.heap.Get(codeIdx)
	arityField, _ := codeRib.First.AsInt()
	variadic := arityField&1 == 1
	nparams := arityField >> 1

	if (!variadic && nparams != nargs) || (variadic && nparams > nargs) {
		return i.arityError(nargs, nparams, variadic)
	}

	baseIdx := i.heap.Alloc(rib.Int(0), rib.Ref(calleeIdx), rib.Int(rib.Pair))
	top := baseIdx

	extra := nargs - nparams
	if variadic {
		rest := rib.Nil
		for k := 0; k < extra; k++ {
			rest = i.heap.NewPair(i.pop(), rib.Ref(rest))
		}
		top = i.heap.Push(top, rib.Ref(rest))
	}
	for n := 0; n < nparams; n++ {
		top = i.heap.Push(top, i.pop())
	}

	if isCall {
		i.heap.SetFirst(baseIdx, rib.Ref(i.stack))
		retPC, _ := instr.Last.AsRef()
		i.heap.SetLast(baseIdx, rib.Ref(retPC))
	} else {
		k := i.getCont(i.stack)
		i.heap.SetFirst(baseIdx, i.heap.Get(k).First)
		i.heap.SetLast(baseIdx, i.heap.Get(k).Last)
	}

	i.stack = top
	i.pc, _ = codeRib.Last.AsRef()
	return nil
}
