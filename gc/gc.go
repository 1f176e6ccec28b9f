// Package gc implements a compacting, copying two-space collector over a
// rib.Heap. It has no dependency on the interpreter beyond the three roots
// it is handed, grounded on the small single-purpose internal packages
// gothird builds (internal/mem, internal/flushio): give the collector
// exactly the state it needs and nothing more.
package gc

import "github.com/ribbit-vm/ribvm/rib"

// Roots names the three live entry points into the heap: the symbol table,
// the program counter, and the runtime stack. Collect visits them in this
// order (Sym, PC, Stack), matching the reference collector, and rewrites
// each in place once copying completes.
type Roots struct {
	Stack *int
	PC    *int
	Sym   *int
}

// Collect copies every cell reachable from roots into a fresh heap,
// discarding everything else, and swaps the fresh heap into h. It returns
// the post-collection live cell count.
//
// The algorithm: the three singletons (False, True, Nil) are copied first
// with an identity mapping, since every heap carries them at fixed indices
// 0/1/2. Then a worklist walks the root set, appending each reachable cell
// to the new heap and recording an old-index -> new-index forwarding
// mapping. Once the worklist drains, a second pass scans the new heap from
// index 3 upward and rewrites every Reference field through the forwarding
// map (children could not be rewritten at copy time, since their own new
// index wasn't yet known). Finally the three roots themselves are rewritten
// and the old heap's storage is replaced.
func Collect(h *rib.Heap, roots Roots) int {
	oldLen := h.Len()
	fwd := make([]int, oldLen)
	enqueued := make([]bool, oldLen)
	for i := range fwd {
		fwd[i] = -1
	}

	newCells := make([]rib.Cell, 0, h.Cap())
	for i := 0; i < 3; i++ {
		newCells = append(newCells, h.Get(i))
		fwd[i] = i
		enqueued[i] = true
	}

	var worklist []int
	enqueue := func(idx int) {
		if idx < 0 || idx >= oldLen || enqueued[idx] {
			return
		}
		enqueued[idx] = true
		worklist = append(worklist, idx)
	}

	enqueue(*roots.Sym)
	enqueue(*roots.PC)
	enqueue(*roots.Stack)

	for len(worklist) > 0 {
		idx := worklist[0]
		worklist = worklist[1:]

		c := h.Get(idx)
		fwd[idx] = len(newCells)
		newCells = append(newCells, c)

		if r, ok := c.First.AsRef(); ok {
			enqueue(r)
		}
		if r, ok := c.Middle.AsRef(); ok {
			enqueue(r)
		}
		if r, ok := c.Last.AsRef(); ok {
			enqueue(r)
		}
	}

	rewrite := func(f rib.Field) rib.Field {
		if idx, ok := f.AsRef(); ok {
			if idx >= 0 && idx < len(fwd) && fwd[idx] >= 0 {
				return rib.Ref(fwd[idx])
			}
			// unreachable reference: should not occur for a live cell, but
			// leave it pointing nowhere useful rather than panic.
			return rib.Ref(idx)
		}
		return f
	}

	for i := 3; i < len(newCells); i++ {
		c := newCells[i]
		newCells[i] = rib.Cell{
			First:  rewrite(c.First),
			Middle: rewrite(c.Middle),
			Last:   rewrite(c.Last),
		}
	}

	if fwd[*roots.Sym] >= 0 {
		*roots.Sym = fwd[*roots.Sym]
	}
	if fwd[*roots.PC] >= 0 {
		*roots.PC = fwd[*roots.PC]
	}
	if fwd[*roots.Stack] >= 0 {
		*roots.Stack = fwd[*roots.Stack]
	}

	h.Absorb(newCells)
	return h.Len()
}
