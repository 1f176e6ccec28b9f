package vm

import "github.com/ribbit-vm/ribvm/rib"

var opNames = [6]string{"call", "set", "get", "const", "if", "halt"}

// traceStep logs one instruction before it executes, rendering its operand
// with the rib printer the same way the reference tracer's show() calls do.
func (i *Interp) traceStep(op int, instr rib.Cell) {
	name := "?"
	if op >= 0 && op < len(opNames) {
		name = opNames[op]
	}
	switch op {
	case rib.OpCall:
		if instr.Last.IsRef() {
			i.logf("call %s", rib.Sprint(i.heap, instr.Middle))
		} else {
			i.logf("jump %s", rib.Sprint(i.heap, instr.Middle))
		}
	case rib.OpIf:
		i.logf("if")
	default:
		i.logf("%s %s", name, rib.Sprint(i.heap, instr.Middle))
	}
}
