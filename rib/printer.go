package rib

import (
	"fmt"
	"strings"
)

// maxPairElems bounds how many elements of a list Sprint renders before
// truncating with "...", matching spec.md §4.H.
const maxPairElems = 5

// maxDepth bounds how deeply Sprint descends into nested objects before
// rendering "..." instead, so cyclic structures cannot recurse forever.
const maxDepth = 5

// Sprint renders the object at heap index idx for diagnostics: numbers
// print bare, pairs print as a truncated list, strings are escaped and
// quoted, symbols print their name (or #<symbol N> if unnamed),
// procedures and primitives get a distinguishing placeholder, the three
// singletons print their conventional names, and anything else falls back
// to its raw [first, middle, last] triple. Grounded on dumper.go's bounded,
// explicit-stack-free traversal style.
func Sprint(h *Heap, f Field) string {
	var b strings.Builder
	sprint(&b, h, f, 0)
	return b.String()
}

func sprint(b *strings.Builder, h *Heap, f Field, depth int) {
	n, ok := f.AsInt()
	if ok {
		fmt.Fprintf(b, "%d", n)
		return
	}
	idx, _ := f.AsRef()
	switch idx {
	case False:
		b.WriteString("#f")
		return
	case True:
		b.WriteString("#t")
		return
	case Nil:
		b.WriteString("()")
		return
	}
	if idx < 0 || idx >= h.Len() {
		fmt.Fprintf(b, "#<bad-ref %d>", idx)
		return
	}
	if depth > maxDepth {
		b.WriteString("...")
		return
	}
	c := h.Get(idx)
	tag, isTag := c.Last.AsInt()
	if !isTag {
		sprintRaw(b, c)
		return
	}
	switch tag {
	case Pair:
		sprintPair(b, h, c, depth)
	case Procedure:
		if k, isPrim := c.First.AsInt(); isPrim {
			fmt.Fprintf(b, "#<primitive %d>", k)
		} else if code, ok := c.First.AsRef(); ok && code >= 0 && code < h.Len() {
			arity, _ := h.Get(code).First.AsInt()
			fmt.Fprintf(b, "#<procedure nparams=%d>", arity>>1)
		} else {
			fmt.Fprintf(b, "#<procedure %d>", idx)
		}
	case Symbol:
		sprintSymbol(b, h, c, idx)
	case String:
		sprintString(b, h, c)
	case Vector:
		sprintVector(b, h, c, depth)
	case Special:
		fmt.Fprintf(b, "#<special %d>", idx)
	default:
		sprintRaw(b, c)
	}
}

func sprintRaw(b *strings.Builder, c Cell) {
	fmt.Fprintf(b, "[%v, %v, %v]", c.First, c.Middle, c.Last)
}

func sprintPair(b *strings.Builder, h *Heap, c Cell, depth int) {
	b.WriteByte('(')
	count := 0
	cur := c
	for {
		if count > 0 {
			b.WriteByte(' ')
		}
		if count >= maxPairElems {
			b.WriteString("...")
			break
		}
		sprint(b, h, cur.First, depth+1)
		count++
		tailIdx, isRef := cur.Middle.AsRef()
		if !isRef {
			if n, ok := cur.Middle.AsInt(); ok && n != 0 {
				b.WriteString(" . ")
				fmt.Fprintf(b, "%d", n)
			}
			break
		}
		if tailIdx == Nil {
			break
		}
		if tailIdx < 0 || tailIdx >= h.Len() {
			b.WriteString(" . #<bad-ref>")
			break
		}
		next := h.Get(tailIdx)
		if tag, ok := next.Last.AsInt(); !ok || tag != Pair {
			b.WriteString(" . ")
			sprint(b, h, cur.Middle, depth+1)
			break
		}
		cur = next
	}
	b.WriteByte(')')
}

func sprintSymbol(b *strings.Builder, h *Heap, c Cell, idx int) {
	s, ok := h.stringOf(c.Middle)
	if ok && s != "" {
		b.WriteString(s)
		return
	}
	fmt.Fprintf(b, "#<symbol %d>", idx)
}

func sprintString(b *strings.Builder, h *Heap, c Cell) {
	s, _ := h.charsOf(c.First)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

func sprintVector(b *strings.Builder, h *Heap, c Cell, depth int) {
	length, _ := c.Middle.AsInt()
	b.WriteString("#(")
	elemsIdx, isRef := c.First.AsRef()
	for i := 0; i < length && i < maxPairElems; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if !isRef {
			break
		}
		e := h.Get(elemsIdx)
		sprint(b, h, e.First, depth+1)
		elemsIdx, isRef = e.Middle.AsRef()
	}
	if length > maxPairElems {
		b.WriteString(" ...")
	}
	b.WriteByte(')')
}

// stringOf renders a String object field (for a symbol's name) as a Go
// string, reporting false if f isn't a well-formed String.
func (h *Heap) stringOf(f Field) (string, bool) {
	idx, ok := f.AsRef()
	if !ok || idx < 0 || idx >= h.Len() {
		return "", false
	}
	c := h.Get(idx)
	tag, ok := c.Last.AsInt()
	if !ok || tag != String {
		return "", false
	}
	return h.charsOf(c.First)
}

func (h *Heap) charsOf(chars Field) (string, bool) {
	var b strings.Builder
	cur := chars
	for {
		idx, isRef := cur.AsRef()
		if !isRef || idx == Nil {
			break
		}
		if idx < 0 || idx >= h.Len() {
			return b.String(), false
		}
		c := h.Get(idx)
		code, ok := c.First.AsInt()
		if !ok {
			return b.String(), false
		}
		b.WriteRune(rune(code))
		cur = c.Middle
	}
	return b.String(), true
}
