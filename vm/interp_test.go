package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ribbit-vm/ribvm/rib"
)

// buildProgram lets each test wire up a tiny instruction graph directly on a
// fresh heap, bypassing the decoder: the interpreter's dispatch and call
// machinery are tested independently of bytecode parsing.
func buildProgram(t *testing.T) (*rib.Heap, *Interp) {
	t.Helper()
	h := rib.NewHeap()
	i := New()
	i.heap = h
	i.stack = h.Alloc(rib.Int(0), rib.Int(0), rib.Int(0)) // primordial, non-continuation
	return h, i
}

// primitiveCallee builds a Procedure-like cell wrapping a primitive index and
// a "symbol" slot an instruction's operand Reference can point at (resolved
// as slot.First, the way a real symbol's value field works).
func primitiveCallee(h *rib.Heap, primIdx int) int {
	proc := h.NewProcedure(rib.Int(primIdx), rib.Int(0))
	return h.Alloc(rib.Ref(proc), rib.Int(0), rib.Int(rib.Pair))
}

func TestRunHaltsImmediately(t *testing.T) {
	h, i := buildProgram(t)
	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	i.pc = halt
	i.gcAt = h.Len() * 2

	err := i.run(context.Background())
	assert.NoError(t, err)
}

func TestRunPutcharWritesAndFlushesOneByte(t *testing.T) {
	h, i := buildProgram(t)
	var out bytes.Buffer
	i.out = nopFlusher{&out}

	slot := primitiveCallee(h, 19) // putchar
	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	call := h.Alloc(rib.Int(rib.OpCall), rib.Ref(slot), rib.Ref(halt))
	pushNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(call))
	pushArg := h.Alloc(rib.Int(rib.OpConst), rib.Int('A'), rib.Ref(pushNargs))
	i.pc = pushArg
	i.gcAt = h.Len() * 2

	require.NoError(t, i.run(context.Background()))
	assert.Equal(t, "A", out.String())
}

func TestRunArithmeticAddition(t *testing.T) {
	h, i := buildProgram(t)
	var out bytes.Buffer
	i.out = nopFlusher{&out}

	addSlot := primitiveCallee(h, 14) // +
	putSlot := primitiveCallee(h, 19) // putchar

	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	callPut := h.Alloc(rib.Int(rib.OpCall), rib.Ref(putSlot), rib.Ref(halt))
	pushPutNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(callPut))
	callAdd := h.Alloc(rib.Int(rib.OpCall), rib.Ref(addSlot), rib.Ref(pushPutNargs))
	pushAddNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(2), rib.Ref(callAdd))
	pushB := h.Alloc(rib.Int(rib.OpConst), rib.Int(3), rib.Ref(pushAddNargs))
	pushA := h.Alloc(rib.Int(rib.OpConst), rib.Int(62), rib.Ref(pushB))
	i.pc = pushA
	i.gcAt = h.Len() * 2

	require.NoError(t, i.run(context.Background()))
	assert.Equal(t, "A", out.String()) // 62 + 3 == 65 == 'A'
}

func TestRunDivisionByZeroExitsWithCodeOneAndPrintsToStdoutOnly(t *testing.T) {
	h, i := buildProgram(t)
	var out bytes.Buffer
	i.out = nopFlusher{&out}
	var logged []string
	i.logfn = func(mess string, args ...interface{}) { logged = append(logged, mess) }

	divSlot := primitiveCallee(h, 17) // /
	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	call := h.Alloc(rib.Int(rib.OpCall), rib.Ref(divSlot), rib.Ref(halt))
	pushNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(2), rib.Ref(call))
	pushDivisor := h.Alloc(rib.Int(rib.OpConst), rib.Int(0), rib.Ref(pushNargs))
	pushDividend := h.Alloc(rib.Int(rib.OpConst), rib.Int(10), rib.Ref(pushDivisor))
	i.pc = pushDividend
	i.gcAt = h.Len() * 2

	err := i.run(context.Background())
	require.Error(t, err)
	var fe FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ExitRuntimeError, fe.Code)
	assert.Contains(t, out.String(), "Division by zero")
	assert.Empty(t, logged) // stdout only, never the trace log
}

func TestRunExitPrimitivePropagatesItsCode(t *testing.T) {
	h, i := buildProgram(t)
	i.out = nopFlusher{&bytes.Buffer{}}

	exitSlot := primitiveCallee(h, 21)
	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	call := h.Alloc(rib.Int(rib.OpCall), rib.Ref(exitSlot), rib.Ref(halt))
	pushNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(call))
	pushCode := h.Alloc(rib.Int(rib.OpConst), rib.Int(5), rib.Ref(pushNargs))
	i.pc = pushCode
	i.gcAt = h.Len() * 2

	err := i.run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 5, ExitCode(err))
}

func TestRunArityMismatchExitsIncoherentOnBothStreams(t *testing.T) {
	h, i := buildProgram(t)
	var out bytes.Buffer
	i.out = nopFlusher{&out}
	var logged []string
	i.logfn = func(mess string, args ...interface{}) { logged = append(logged, mess) }

	addSlot := primitiveCallee(h, 14) // + wants exactly 2 args
	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	call := h.Alloc(rib.Int(rib.OpCall), rib.Ref(addSlot), rib.Ref(halt))
	pushNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(call))
	pushOnly := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(pushNargs))
	i.pc = pushOnly
	i.gcAt = h.Len() * 2

	err := i.run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitIncoherent, ExitCode(err))
	assert.NotEmpty(t, out.String())
	assert.NotEmpty(t, logged)
}

func TestRunArg1PrimitiveQuirkPopsOnlyOneValue(t *testing.T) {
	h, i := buildProgram(t)
	i.out = nopFlusher{&bytes.Buffer{}}

	arg1Slot := primitiveCallee(h, 2)
	putSlot := primitiveCallee(h, 19)
	var out bytes.Buffer
	i.out = nopFlusher{&out}

	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	callPut := h.Alloc(rib.Int(rib.OpCall), rib.Ref(putSlot), rib.Ref(halt))
	pushPutNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(callPut))
	callArg1 := h.Alloc(rib.Int(rib.OpCall), rib.Ref(arg1Slot), rib.Ref(pushPutNargs))
	pushArg1Nargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(2), rib.Ref(callArg1))
	pushB := h.Alloc(rib.Int(rib.OpConst), rib.Int('Z'), rib.Ref(pushArg1Nargs))
	pushA := h.Alloc(rib.Int(rib.OpConst), rib.Int('Y'), rib.Ref(pushB))
	i.pc = pushA
	i.gcAt = h.Len() * 2

	// arg1 declares arity 2 but pops only one value (net stack effect -1)
	// and pushes nothing; putchar then finds 'Y' still sitting below where
	// 'Z' was popped from, and prints that instead.
	require.NoError(t, i.run(context.Background()))
	assert.Equal(t, "Y", out.String())
}

func TestRunUserProcedureCallAndTailReturn(t *testing.T) {
	h, i := buildProgram(t)
	var out bytes.Buffer
	i.out = nopFlusher{&out}

	putcharSlot := primitiveCallee(h, 19)

	// procedure body: get param 0, tail-call putchar (returns through the
	// caller's continuation once putchar itself returns)
	tailCall := h.Alloc(rib.Int(rib.OpCall), rib.Ref(putcharSlot), rib.Int(0))
	pushPutNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(tailCall))
	getParam := h.Alloc(rib.Int(rib.OpGet), rib.Int(0), rib.Ref(pushPutNargs))

	codeRib := h.Alloc(rib.Int(2), rib.Int(0), rib.Ref(getParam)) // 1 fixed param
	proc := h.NewProcedure(rib.Ref(codeRib), rib.Int(0))
	closureSlot := h.Alloc(rib.Ref(proc), rib.Int(0), rib.Int(rib.Pair))

	halt := h.Alloc(rib.Int(rib.OpHalt), rib.Int(0), rib.Int(0))
	call := h.Alloc(rib.Int(rib.OpCall), rib.Ref(closureSlot), rib.Ref(halt)) // true call
	pushNargs := h.Alloc(rib.Int(rib.OpConst), rib.Int(1), rib.Ref(call))
	pushArg := h.Alloc(rib.Int(rib.OpConst), rib.Int('A'), rib.Ref(pushNargs))
	i.pc = pushArg
	i.gcAt = h.Len() * 2

	require.NoError(t, i.run(context.Background()))
	assert.Equal(t, "A", out.String())
}

func TestLoadRunsDecodedDefaultProgramToCompletion(t *testing.T) {
	const defaultBytecode = `);'u?>vD?>vRD?>vRA?>vRA?>vR:?>vR=!(:lkm!':lkv6y`
	i := New(WithInput(strings.NewReader("")), WithOutput(&bytes.Buffer{}))
	require.NoError(t, i.Load(defaultBytecode))
	err := i.Run(context.Background())
	assert.NoError(t, err)
}

type nopFlusher struct{ *bytes.Buffer }

func (nopFlusher) Flush() error { return nil }
