package matrix

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMatrix_ResizeKeepsLeadingBlock(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Values[0][0], m.Values[0][1], m.Values[1][0], m.Values[1][1] = 1, 2, 3, 4
	m.Resize(3, 3)
	assert.Equal(t, [][]float64{{1, 2, 0}, {3, 4, 0}, {0, 0, 0}}, m.Values)
	m.Resize(1, 1)
	assert.Equal(t, [][]float64{{1}}, m.Values)
	assert.Equal(t, 1, m.Rows)
}

func TestMatrix_BlockOperations(t *testing.T) {
	m := NewMatrix(3, 3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Values[i][j] = float64(3*i + j + 1)
		}
	}
	dst := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	m.AddScaledBlock(dst, 2, 2)
	assert.Equal(t, []float64{3, 5, 9, 11}, dst.RawMatrix().Data)

	// u^T m[0:2,0:2] u with u = (1, 2): 1 + 2*2 + 2*4 + 4*5
	assert.Equal(t, 33.0, m.QuadForm([]float64{1, 2, 99}, 2))
	assert.Equal(t, mat.NewDense(2, 2, []float64{1, 2, 4, 5}), m.Dense(2))
}

func TestMatrix_Cond(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Values[0][0], m.Values[1][1] = 4, 0.5
	assert.InDelta(t, 8, m.Cond(2), 1e-12)
	assert.InDelta(t, 1, m.Cond(1), 1e-12)
	assert.True(t, math.IsInf(NewMatrix(2, 2).Cond(2), 1))
	assert.True(t, math.IsInf(m.Cond(0), 1))
}

func TestMatrix_Norm(t *testing.T) {
	m := NewMatrix(2, 3)
	m.Values[1] = []float64{7, 8, 9}
	assert.InDelta(t, math.Sqrt(49+64+81), m.Norm(), 1e-12)
}

func TestSolveLU(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{2, 1, 1, 3})
	x, err := SolveLU(a, mat.NewVecDense(2, []float64{3, 5}))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, x.AtVec(0), 1e-14)
	assert.InDelta(t, 1.4, x.AtVec(1), 1e-14)

	_, err = SolveLU(mat.NewDense(2, 2, []float64{1, 2, 2, 4}), mat.NewVecDense(2, []float64{1, 1}))
	assert.ErrorIs(t, err, ErrSingular)

	_, err = SolveLU(a, mat.NewVecDense(3, nil))
	assert.Error(t, err)
}

func TestVector(t *testing.T) {
	src := []float64{2, 2, 2}
	v := NewVectorFrom(src)
	src[0] = 5
	assert.Equal(t, []float64{2, 2, 2}, v.Values, "NewVectorFrom copies")
	assert.Equal(t, 4.0, v.Dot([]float64{1, 1, 100}, 2))

	v.Resize(4)
	assert.Equal(t, []float64{2, 2, 2, 0}, v.Values)
	assert.InDelta(t, math.Sqrt(12), v.Norm(), 1e-15)
	assert.True(t, v.IsFinite())
	v.Values[3] = math.NaN()
	assert.False(t, v.IsFinite())
}

func TestFormatFloat_RoundTrip(t *testing.T) {
	for _, f := range []float64{0, 0.1 + 0.2, math.Pi, -1e-300, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		got, err := ParseFloat(FormatFloat(f))
		require.NoError(t, err)
		assert.Equal(t, ToIEEE754(f), ToIEEE754(got))
	}
}

func TestEncodeFloat64s(t *testing.T) {
	values := []float64{1, -0.5, math.Inf(1), 0.1 + 0.2}
	var buf bytes.Buffer
	require.NoError(t, EncodeFloat64s(&buf, values))
	assert.Equal(t, 8*(len(values)+1), buf.Len())

	got, err := DecodeFloat64s(&buf)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	_, err = DecodeFloat64s(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)

	var huge [8]byte
	binary.LittleEndian.PutUint64(huge[:], math.MaxUint64)
	_, err = DecodeFloat64s(bytes.NewReader(huge[:]))
	assert.ErrorIs(t, err, ErrEncodedLength)

	var short bytes.Buffer
	require.NoError(t, EncodeFloat64s(&short, values))
	_, err = DecodeFloat64s(bytes.NewReader(short.Bytes()[:20]))
	assert.Error(t, err)
}

func TestFloat64Blob(t *testing.T) {
	values := []float64{3, math.Copysign(0, -1), 1e-310}
	b := EncodeFloat64Blob(values)
	require.Len(t, b, 24)
	got := DecodeFloat64Blob(append(b, 0xff))
	for i := range values {
		assert.Equal(t, math.Float64bits(values[i]), math.Float64bits(got[i]))
	}
	assert.Empty(t, DecodeFloat64Blob(nil))
}

func TestLaTeX(t *testing.T) {
	m := NewMatrix(3, 3)
	m.Values[0][0], m.Values[0][1], m.Values[1][0], m.Values[1][1] = 1, 2, 3, 4
	assert.Equal(t, "\\begin{pmatrix}\n1 & 2 \\\\\n3 & 4\n\\end{pmatrix}\n", MatrixToLaTeX(m, 2, "%g"))

	v := NewVectorFrom([]float64{1.5, 2, 9})
	assert.Equal(t, "\\begin{pmatrix}1.5 \\\\ 2\\end{pmatrix}\n", VectorToLaTeX(v, 2, "%g"))
	assert.Equal(t, "\\begin{pmatrix}1.5 & 2\\end{pmatrix}\n", VectorToLaTeXTranspose(v, 2, "%g"))
	assert.True(t, strings.HasPrefix(VectorToLaTeX(v, 1, ""), "\\begin{pmatrix}1.5"))
}

func TestToStrings(t *testing.T) {
	v := NewVectorFrom([]float64{0.25, -1})
	text, csv := v.ToStrings("U", "%g")
	assert.Contains(t, text, "[000] 0.25")
	assert.Equal(t, "U,0.25,-1", csv)

	m := NewMatrix(1, 2)
	m.Values[0] = []float64{1, 0.5}
	_, csv = m.ToStrings("M", "")
	assert.Equal(t, "1,0.5\n", csv)
}
