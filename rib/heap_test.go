package rib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHeapSingletons(t *testing.T) {
	h := NewHeap()
	require.Equal(t, 3, h.Len())
	f, tt, n := h.Singletons()
	assert.Equal(t, False, f)
	assert.Equal(t, True, tt)
	assert.Equal(t, Nil, n)
}

func TestStackPushPop(t *testing.T) {
	h := NewHeap()
	stack := Nil
	stack = h.Push(stack, Int(1))
	stack = h.Push(stack, Int(2))
	stack = h.Push(stack, Int(3))

	var got []int
	for stack != Nil {
		var v Field
		v, stack = h.Pop(stack)
		n, ok := v.AsInt()
		require.True(t, ok)
		got = append(got, n)
	}
	assert.Equal(t, []int{3, 2, 1}, got)
}

func TestMutationThroughSharedStructure(t *testing.T) {
	h := NewHeap()
	p := h.NewPair(Int(1), Ref(Nil))
	alias := Ref(p)
	h.SetFirst(p, Int(99))
	idx, _ := alias.AsRef()
	got := h.Get(idx)
	n, _ := got.First.AsInt()
	assert.Equal(t, 99, n)
}

func TestGrowthIsGeometric(t *testing.T) {
	h := NewHeap()
	startCap := h.Cap()
	for i := 0; i < startCap*4; i++ {
		h.Alloc(Int(i), Int(0), Int(Pair))
	}
	assert.Greater(t, h.Cap(), startCap)
}
