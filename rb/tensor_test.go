package rb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriIndex_PacksUpperTriangle(t *testing.T) {
	for q := 1; q <= 5; q++ {
		seen := make(map[int]bool)
		want := 0
		for q1 := 0; q1 < q; q1++ {
			for q2 := q1; q2 < q; q2++ {
				idx := triIndex(q1, q2, q)
				assert.Equal(t, want, idx, "row-major order q=%d (%d,%d)", q, q1, q2)
				assert.False(t, seen[idx])
				seen[idx] = true
				want++
			}
		}
		assert.Equal(t, triSize(q), len(seen))
	}
}

func TestSymTensor2_Symmetric(t *testing.T) {
	s := NewSymTensor2(3)
	s.Set(2, 0, 7)
	s.Set(1, 1, 3)
	assert.Equal(t, 7.0, s.At(0, 2))
	assert.Equal(t, 7.0, s.At(2, 0))
	assert.Equal(t, 3.0, s.At(1, 1))
	assert.Len(t, s.Data, 6)
}

func TestTensor3_ResizeKeepsLeadingEntries(t *testing.T) {
	x := NewTensor3(2, 3, 2)
	for a := 0; a < 2; a++ {
		for b := 0; b < 3; b++ {
			for i := 0; i < 2; i++ {
				x.Set(a, b, i, float64(100*a+10*b+i))
			}
		}
	}
	x.Resize(4)
	require.Equal(t, 4, x.N)
	for a := 0; a < 2; a++ {
		for b := 0; b < 3; b++ {
			assert.Equal(t, float64(100*a+10*b), x.At(a, b, 0))
			assert.Equal(t, float64(100*a+10*b+1), x.At(a, b, 1))
			assert.Zero(t, x.At(a, b, 2))
			assert.Zero(t, x.At(a, b, 3))
		}
	}
	x.Resize(1)
	assert.Equal(t, 110.0, x.At(1, 1, 0))
	assert.Len(t, x.Data, 6)
}

func TestSymTensor4_MirroredAccess(t *testing.T) {
	x := NewSymTensor4(3, 2)
	x.Set(2, 0, 1, 0, 5)
	assert.Equal(t, 5.0, x.At(0, 2, 0, 1))
	assert.Equal(t, 5.0, x.At(2, 0, 1, 0))
	assert.Zero(t, x.At(0, 2, 1, 0))

	x.Set(1, 1, 0, 1, 9)
	assert.Equal(t, 9.0, x.At(1, 1, 1, 0), "diagonal blocks stay symmetric")
}

func TestSymTensor4_BlockAndResize(t *testing.T) {
	x := NewSymTensor4(2, 2)
	x.Set(0, 1, 0, 0, 1)
	x.Set(0, 1, 0, 1, 2)
	x.Set(0, 1, 1, 0, 3)
	x.Set(0, 1, 1, 1, 4)
	assert.Equal(t, []float64{1, 2, 3, 4}, x.Block(0, 1))

	x.Resize(3)
	b := x.Block(0, 1)
	require.Len(t, b, 9)
	assert.Equal(t, []float64{1, 2, 0, 3, 4, 0, 0, 0, 0}, b)
}
