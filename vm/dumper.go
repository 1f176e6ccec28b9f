package vm

import (
	"fmt"
	"io"

	"github.com/ribbit-vm/ribvm/rib"
)

// Dump writes a post-run snapshot of the interpreter's heap and stack to w,
// the way the teacher's own dumper prints a VM's program, dictionary, stack
// and memory sections: a small, readable summary rather than a raw cell
// listing.
func (i *Interp) Dump(w io.Writer) {
	fmt.Fprintf(w, "# VM Dump\n")
	fmt.Fprintf(w, "  heap: %d cells, %d collections\n", i.heap.Len(), i.gcCount)
	fmt.Fprintf(w, "  pc: %d\n", i.pc)
	fmt.Fprintf(w, "  stack: %s\n", i.dumpStack())
}

// dumpStack renders the live stack top to bottom, stopping at the first
// continuation frame (or the bottom of the heap-reachable chain), printing
// each ordinary cell's value with the rib printer.
func (i *Interp) dumpStack() string {
	out := "["
	s := i.stack
	first := true
	for n := 0; n < 64; n++ {
		c := i.heap.Get(s)
		if !first {
			out += " "
		}
		first = false
		out += rib.Sprint(i.heap, c.First)
		if _, isCont := c.Last.AsRef(); isCont {
			break
		}
		next, ok := c.Middle.AsRef()
		if !ok {
			break
		}
		s = next
	}
	return out + "]"
}
