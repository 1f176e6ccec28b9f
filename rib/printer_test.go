package rib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildString(h *Heap, s string) int {
	chars := Ref(Nil)
	for i := len(s) - 1; i >= 0; i-- {
		chars = Ref(h.NewPair(Int(int(s[i])), chars))
	}
	return h.NewString(chars, len(s))
}

func TestSprintNumber(t *testing.T) {
	h := NewHeap()
	assert.Equal(t, "42", Sprint(h, Int(42)))
	assert.Equal(t, "-3", Sprint(h, Int(-3)))
}

func TestSprintSingletons(t *testing.T) {
	h := NewHeap()
	assert.Equal(t, "#f", Sprint(h, Ref(False)))
	assert.Equal(t, "#t", Sprint(h, Ref(True)))
	assert.Equal(t, "()", Sprint(h, Ref(Nil)))
}

func TestSprintString(t *testing.T) {
	h := NewHeap()
	idx := buildString(h, "hi\n\"there\"")
	assert.Equal(t, `"hi\n\"there\""`, Sprint(h, Ref(idx)))
}

func TestSprintPair(t *testing.T) {
	h := NewHeap()
	list := Ref(Nil)
	for i := 5; i >= 1; i-- {
		list = Ref(h.NewPair(Int(i), list))
	}
	assert.Equal(t, "(1 2 3 4 5)", Sprint(h, list))
}

func TestSprintPairTruncates(t *testing.T) {
	h := NewHeap()
	list := Ref(Nil)
	for i := 8; i >= 1; i-- {
		list = Ref(h.NewPair(Int(i), list))
	}
	assert.Equal(t, "(1 2 3 4 5 ...)", Sprint(h, list))
}

func TestSprintSymbol(t *testing.T) {
	h := NewHeap()
	name := buildString(h, "foo")
	sym := h.NewSymbol(Ref(False), Ref(name))
	assert.Equal(t, "foo", Sprint(h, Ref(sym)))
}

func TestSprintUnnamedSymbol(t *testing.T) {
	h := NewHeap()
	sym := h.NewSymbol(Ref(False), Ref(Nil))
	assert.Contains(t, Sprint(h, Ref(sym)), "#<symbol")
}

func TestSprintVector(t *testing.T) {
	h := NewHeap()
	elems := Ref(Nil)
	for i := 3; i >= 1; i-- {
		elems = Ref(h.NewPair(Int(i), elems))
	}
	vec := h.NewVector(elems, 3)
	assert.Equal(t, "#(1 2 3)", Sprint(h, Ref(vec)))
}
