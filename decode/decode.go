// Package decode turns a Ribbit bytecode string into a live instruction
// graph and symbol table on a rib.Heap, following the two-pass scheme the
// format was designed around: a compact symbol table, then a reverse-built
// instruction graph driven by a small per-opcode width table.
package decode

import (
	"fmt"

	"github.com/ribbit-vm/ribvm/rib"
)

// Result carries everything the interpreter needs to start running: the
// initial program counter, the symbol table root (after the four leading
// globals have been popped off it), and the initial runtime stack (the
// primordial continuation).
type Result struct {
	PC     int
	Symtbl int
	Stack  int
}

// opWidths gives, for each decode-time opcode bucket in the order the
// width-subtraction loop walks them (call, set, get, const, if, halt), how
// many extra codes beyond 3 that bucket is allotted. call gets the widest
// budget because call/jump is by far the most frequent instruction in real
// programs; its bucket is doubled by folding the following (set-shaped)
// bucket into it via the push-and-advance step below.
var opWidths = [6]int{20, 30, 0, 10, 11, 4}

type overrun struct{}

type reader struct {
	src string
	pos int
}

func (r *reader) nextByte() byte {
	if r.pos >= len(r.src) {
		panic(overrun{})
	}
	b := r.src[r.pos]
	r.pos++
	return b
}

// getCode reads one byte and maps it into [0,92]: byte-35, except bytes
// below 35 (reserved for space, quote and slash in the source alphabet) map
// to the sentinel 57.
func getCode(r *reader) int {
	x := int(r.nextByte()) - 35
	if x < 0 {
		return 57
	}
	return x
}

// getInt decodes a variable-length base-46 integer: each code below 46
// terminates the number, codes at or above 46 carry a high digit and
// continue.
func getInt(n int, r *reader) int {
	for {
		x := getCode(r)
		n *= 46
		if x < 46 {
			return n + x
		}
		n += x - 46
	}
}

// Decode parses source and populates h with its symbol table and
// instruction graph, returning the roots the interpreter needs. Malformed
// or truncated input surfaces as a non-nil error rather than a panic
// escaping to the caller.
func Decode(source string, h *rib.Heap) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(overrun); ok {
				err = fmt.Errorf("decode: unexpected end of bytecode")
				return
			}
			panic(r)
		}
	}()

	r := &reader{src: source}
	symtbl := buildSymtbl(h, r)
	entry := buildInstructions(h, r, symtbl)

	entryProc := h.Get(entry)
	codeRef, ok := entryProc.First.AsRef()
	if !ok {
		return Result{}, fmt.Errorf("decode: malformed entry procedure")
	}
	codeRib := h.Get(codeRef)
	pc, ok := codeRib.Last.AsRef()
	if !ok {
		return Result{}, fmt.Errorf("decode: entry procedure has no code")
	}

	ribClosure := h.Alloc(rib.Int(0), rib.Ref(symtbl), rib.Int(rib.Procedure))
	setGlobal(h, &symtbl, ribClosure)
	setGlobal(h, &symtbl, rib.False)
	setGlobal(h, &symtbl, rib.True)
	setGlobal(h, &symtbl, rib.Nil)

	haltInstr := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	primordialCont := h.Alloc(rib.Int(0), rib.Int(0), rib.Ref(haltInstr))

	return Result{PC: pc, Symtbl: symtbl, Stack: primordialCont}, nil
}

// buildSymtbl reads the leading anonymous-symbol count followed by a
// comma-separated, semicolon-terminated list of symbol names, consing each
// onto symtbl as it goes. The most recently read symbol ends up at the
// head, matching the reference decoder.
func buildSymtbl(h *rib.Heap, r *reader) int {
	symtbl := rib.Nil
	n := getInt(0, r)
	for i := 0; i < n; i++ {
		symtbl = pushSymbol(h, symtbl, nil)
	}

	var accum []byte
	for {
		c := r.nextByte()
		if c == ';' {
			break
		}
		if c == ',' {
			symtbl = pushSymbol(h, symtbl, accum)
			accum = nil
			continue
		}
		accum = append(accum, c)
	}
	symtbl = pushSymbol(h, symtbl, accum)
	return symtbl
}

func pushSymbol(h *rib.Heap, symtbl int, name []byte) int {
	chars := rib.Ref(rib.Nil)
	for i := len(name) - 1; i >= 0; i-- {
		chars = rib.Ref(h.NewPair(rib.Int(int(name[i])), chars))
	}
	str := h.NewString(chars, len(name))
	sym := h.NewSymbol(rib.Ref(rib.False), rib.Ref(str))
	return h.NewPair(rib.Ref(sym), rib.Ref(symtbl))
}

func symbolRef(h *rib.Heap, symtbl int, n int) int {
	idx := symtbl
	for i := 0; i < n; i++ {
		idx, _ = h.Get(idx).Middle.AsRef()
	}
	ref, _ := h.Get(idx).First.AsRef()
	return ref
}

// buildInstructions runs the second decode pass, returning the heap index
// of the program's entry Procedure once the outermost scope closes.
//
// A fresh "build stack" (distinct from the runtime stack) tracks, per
// nested scope, the head of the instruction chain accumulated so far in
// that scope. Every call/jump code pushes a new, empty scope (so a
// following procedure literal has somewhere to accumulate its body); every
// code that resolves past `if` in the width table closes the current scope,
// wrapping its accumulated chain into a Procedure and splicing it into the
// parent scope as a `const` operand. The outermost close (when no parent
// scope remains) yields the program entry.
func buildInstructions(h *rib.Heap, r *reader, symtbl int) int {
	buildStack := h.Alloc(rib.Int(0), rib.Int(0), rib.Int(0))

	for {
		x := getCode(r)
		n := x
		op := rib.OpCall
		var d int
		for {
			d = opWidths[op]
			if n <= d+2 {
				break
			}
			n -= d + 3
			op++
		}

		var operand rib.Field
		if x > 90 {
			operand, buildStack = h.Pop(buildStack)
		} else {
			if op == rib.OpCall {
				buildStack = h.Push(buildStack, rib.Int(0))
				op++
			}

			if n >= d {
				if n == d {
					operand = rib.Int(getInt(0, r))
				} else {
					operand = rib.Ref(symbolRef(h, symtbl, getInt(n-d-1, r)))
				}
			} else if op < rib.OpConst {
				operand = rib.Ref(symbolRef(h, symtbl, n))
			} else {
				operand = rib.Int(n)
			}

			if op > rib.OpIf {
				var popped rib.Field
				popped, buildStack = h.Pop(buildStack)
				innerCode := h.Alloc(operand, rib.Int(0), popped)
				procIdx := h.NewProcedure(rib.Ref(innerCode), rib.Ref(rib.Nil))
				operand = rib.Ref(procIdx)

				if _, isRef := h.Get(buildStack).Middle.AsRef(); !isRef {
					return procIdx
				}
				op = rib.OpIf
			}
		}

		next := h.Get(buildStack).First
		instr := h.Alloc(rib.Int(op-1), operand, next)
		h.SetFirst(buildStack, rib.Ref(instr))
	}
}

func setGlobal(h *rib.Heap, symtbl *int, val int) {
	top := h.Get(*symtbl)
	symIdx, _ := top.First.AsRef()
	h.SetFirst(symIdx, rib.Ref(val))
	next, _ := top.Middle.AsRef()
	*symtbl = next
}
