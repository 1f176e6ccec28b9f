package rib

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 92, -92} {
		f := Int(n)
		got, ok := f.AsInt()
		require.True(t, ok)
		assert.Equal(t, n, got)
		_, isRef := f.AsRef()
		assert.False(t, isRef)
	}
	for _, i := range []int{0, 1, 2, 3, 1000} {
		f := Ref(i)
		got, ok := f.AsRef()
		require.True(t, ok)
		assert.Equal(t, i, got)
		_, isInt := f.AsInt()
		assert.False(t, isInt)
	}
}

func TestFieldArith(t *testing.T) {
	cases := []struct {
		name    string
		f       func(a, b Field) (Field, error)
		a, b    Field
		want    int
		wantErr bool
	}{
		{"add", Add, Int(3), Int(4), 7, false},
		{"sub", Sub, Int(10), Int(3), 7, false},
		{"mul", Mul, Int(6), Int(7), 42, false},
		{"div", Div, Int(20), Int(5), 4, false},
		{"add type error", Add, Ref(0), Int(4), 0, true},
		{"div type error", Div, Int(4), Ref(0), 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.f(c.a, c.b)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			n, ok := got.AsInt()
			require.True(t, ok)
			assert.Equal(t, c.want, n)
		})
	}
}

func TestDivByZero(t *testing.T) {
	_, err := Div(Int(5), Int(0))
	assert.True(t, errors.Is(err, ErrDivByZero))
}

func TestEqvIsIdentity(t *testing.T) {
	assert.True(t, Eqv(Ref(4), Ref(4)))
	assert.False(t, Eqv(Ref(4), Ref(5)))
	assert.True(t, Eqv(Int(4), Int(4)))
	// a Reference and an Integer with the same raw bits are never Eqv.
	assert.False(t, Eqv(Ref(4), Int(4)))
}

func TestLessOnlyDefinedOnIntegers(t *testing.T) {
	assert.True(t, Less(Int(1), Int(2)))
	assert.False(t, Less(Int(2), Int(1)))
	assert.False(t, Less(Ref(1), Int(2)))
	assert.False(t, Less(Int(1), Ref(2)))
}
