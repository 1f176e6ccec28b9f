package rib

// Object kind tags, stored in a rib's Last field when it represents data.
const (
	Pair      = 0
	Procedure = 1
	Symbol    = 2
	String    = 3
	Vector    = 4
	Special   = 5
)

// Instruction opcodes, stored in a rib's First field when it represents a
// node of the instruction graph. They share their numeric range with the
// object kind tags above; which table applies depends on whether the rib is
// reached as data or as code, never on the rib itself.
const (
	OpCall  = 0 // call, or tail jump if Last is an Integer
	OpSet   = 1
	OpGet   = 2
	OpConst = 3
	OpIf    = 4
	OpHalt  = 5
)

// Fixed heap indices of the three singleton objects, allocated once at the
// bottom of every heap.
const (
	False = 0
	True  = 1
	Nil   = 2
)

// Cell is one rib: three tagged fields, uniformly addressed by position
// regardless of what kind of object or instruction the cell represents.
type Cell struct {
	First, Middle, Last Field
}

// Heap is the indexed store of cells that backs every data structure and
// every instruction node in the VM. It grows geometrically, the way
// internals.go's vm.grow grows the FIRST memory image.
type Heap struct {
	cells []Cell
}

// NewHeap allocates a heap pre-populated with the three singleton objects at
// their fixed indices: False, True and Nil, each tagged Special.
func NewHeap() *Heap {
	h := &Heap{cells: make([]Cell, 0, 64)}
	h.Alloc(Int(0), Int(0), Int(Special)) // False
	h.Alloc(Int(0), Int(0), Int(Special)) // True
	h.Alloc(Int(0), Int(0), Int(Special)) // Nil
	return h
}

// Len returns the number of live cells in the heap.
func (h *Heap) Len() int { return len(h.cells) }

// Cap returns the heap's current backing capacity.
func (h *Heap) Cap() int { return cap(h.cells) }

// Get returns the cell at index i.
func (h *Heap) Get(i int) Cell { return h.cells[i] }

// Set overwrites the cell at index i.
func (h *Heap) Set(i int, c Cell) { h.cells[i] = c }

// SetFirst, SetMiddle and SetLast mutate a single field of the cell at i,
// the way mutation-through-shared-structure (set-car!-style primitives)
// requires.
func (h *Heap) SetFirst(i int, f Field)  { c := h.cells[i]; c.First = f; h.cells[i] = c }
func (h *Heap) SetMiddle(i int, f Field) { c := h.cells[i]; c.Middle = f; h.cells[i] = c }
func (h *Heap) SetLast(i int, f Field)   { c := h.cells[i]; c.Last = f; h.cells[i] = c }

// Alloc appends a new cell and returns its index. Growth is geometric:
// append relies on the slice's own doubling, which is exactly the growth
// discipline spec.md §4.A calls for.
func (h *Heap) Alloc(first, middle, last Field) int {
	h.cells = append(h.cells, Cell{first, middle, last})
	return len(h.cells) - 1
}

// Absorb replaces the heap's backing storage wholesale. It exists so that
// package gc, which builds a compacted replacement heap, can swap it in
// without the rib package depending on gc (or vice versa).
func (h *Heap) Absorb(cells []Cell) { h.cells = cells }

// Cells exposes the raw backing slice. Package gc does not use it: the
// collector reads cells through Get and installs its result through Absorb.
func (h *Heap) Cells() []Cell { return h.cells }

// String returns the Go string held by the String object at index idx, or
// false if idx isn't a well-formed String. A printer convenience.
func (h *Heap) String(idx int) (string, bool) {
	return h.stringOf(Ref(idx))
}

// Singletons returns the three fixed singleton indices.
func (h *Heap) Singletons() (f, t, nilIdx int) { return False, True, Nil }

// NewPair allocates a (car, cdr, Pair) cell.
func (h *Heap) NewPair(car, cdr Field) int { return h.Alloc(car, cdr, Int(Pair)) }

// NewProcedure allocates a (code, env, Procedure) cell.
func (h *Heap) NewProcedure(code, env Field) int { return h.Alloc(code, env, Int(Procedure)) }

// NewSymbol allocates a (value, name, Symbol) cell.
func (h *Heap) NewSymbol(value, name Field) int { return h.Alloc(value, name, Int(Symbol)) }

// NewString allocates a (chars, length, String) cell. chars is the head of
// a Pair list of character code Integers, in left-to-right reading order.
func (h *Heap) NewString(chars Field, length int) int {
	return h.Alloc(chars, Int(length), Int(String))
}

// NewVector allocates a (elems, length, Vector) cell.
func (h *Heap) NewVector(elems Field, length int) int {
	return h.Alloc(elems, Int(length), Int(Vector))
}

// Push conses x onto the rib-linked stack rooted at the heap index stack,
// returning the new stack root. The stack is an ordinary Pair list: each
// frame's First is the value, Middle is the rest of the stack.
func (h *Heap) Push(stack int, x Field) int {
	return h.NewPair(x, Ref(stack))
}

// Pop removes and returns the top value of the rib-linked stack rooted at
// stack, along with the new stack root (the popped frame's Middle field).
func (h *Heap) Pop(stack int) (Field, int) {
	c := h.Get(stack)
	next, _ := c.Middle.AsRef()
	return c.First, next
}
