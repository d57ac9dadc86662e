package rb

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/theta"
)

// lineVectorIO stores vectors as one value per line and ignores binary.
type lineVectorIO struct{}

func (lineVectorIO) WriteVector(path string, v []float64, _ bool) error {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = matrix.FormatFloat(x)
	}
	return os.WriteFile(path, []byte(strings.Join(parts, "\n")), 0644)
}

func (lineVectorIO) ReadVector(path string, _ bool) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v []float64
	for _, s := range strings.Fields(string(raw)) {
		x, err := matrix.ParseFloat(s)
		if err != nil {
			return nil, err
		}
		v = append(v, x)
	}
	return v, nil
}

func writeTestBundle(t *testing.T, e *Evaluation) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, e.WriteOfflineData(dir))
	return dir
}

func TestOfflineData_RoundTripIsBitExact(t *testing.T) {
	src := newTestModel(t, testBasis[:2]...)
	// Values that do not survive short decimal formatting.
	src.Aq[0].Values[0][1] = 0.1 + 0.2
	src.Fq[0].Values[1] = math.Pi / 3
	dir := writeTestBundle(t, src)

	dst := New(WithExpansion(testExpansion()), WithBoundPolicy(EnergyNorm(ConstantStability(1))))
	require.NoError(t, dst.ReadOfflineData(dir))

	assert.Equal(t, 2, dst.NBasisFunctions())
	assert.Equal(t, 2, dst.MaxN())
	assert.Equal(t, src.Ranges(), dst.Ranges())
	assert.Equal(t, src.GreedyParams, dst.GreedyParams)
	assert.True(t, dst.ComputeInnerProduct)
	assert.Equal(t, src.InnerProduct.Values, dst.InnerProduct.Values)
	for q := range src.Aq {
		assert.Equal(t, src.Aq[q].Values, dst.Aq[q].Values)
	}
	assert.Equal(t, src.Fq[0].Values, dst.Fq[0].Values)
	assert.Equal(t, src.Outputs[0][0].Values, dst.Outputs[0][0].Values)
	assert.Equal(t, src.FqNorms.Data, dst.FqNorms.Data)
	assert.Equal(t, src.FqAqNorms.Data, dst.FqAqNorms.Data)
	assert.Equal(t, src.AqAqNorms.Data, dst.AqAqNorms.Data)
	assert.Equal(t, src.OutputDualNorms[0].Data, dst.OutputDualNorms[0].Data)

	_, err := dst.BasisFunction(0)
	assert.ErrorIs(t, err, ErrBasisNotLoaded, "offline data carries no basis vectors")

	mu := theta.Parameters{1.7}
	want, err := src.SolveAt(mu, 2)
	require.NoError(t, err)
	got, err := dst.SolveAt(mu, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOfflineData_WritesOnlyLoadedBasis(t *testing.T) {
	src := newTestModel(t, testBasis[:2]...)
	require.NoError(t, src.Resize(6))
	dir := writeTestBundle(t, src)

	dst := New(WithExpansion(testExpansion()))
	require.NoError(t, dst.ReadOfflineData(dir))
	assert.Equal(t, 2, dst.MaxN())
	assert.Equal(t, src.AqAqNorms.Block(0, 1)[:2], dst.AqAqNorms.Block(0, 1)[:2])
}

func TestOfflineData_ReadErrors(t *testing.T) {
	src := newTestModel(t, testBasis[:2]...)

	t.Run("no expansion", func(t *testing.T) {
		err := New().ReadOfflineData(writeTestBundle(t, src))
		assert.ErrorIs(t, err, ErrNoExpansion)
	})
	t.Run("expansion mismatch", func(t *testing.T) {
		e := New(WithExpansion(&theta.Funcs{
			A: []theta.Func{theta.Constant(1)},
			F: []theta.Func{theta.Constant(1)},
		}))
		err := e.ReadOfflineData(writeTestBundle(t, src))
		assert.ErrorIs(t, err, ErrExpansionMismatch)
		var be *BundleError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, headerFile, be.File)
	})
	t.Run("missing tensor", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.Remove(filepath.Join(dir, aqAqNormsFile)))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		var be *BundleError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, aqAqNormsFile, be.File)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("short tensor", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, aqFile(1)), []byte("1\n2\n3\n"), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("unparsable value", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fqFile(0)), []byte("1\nabc\n"), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("bad format", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, headerFile), []byte(`{"format": 7}`), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("greedy count", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, greedyFile), []byte("1 1\n"), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("non-finite value", func(t *testing.T) {
		for _, bad := range []string{"NaN", "Inf", "-Inf"} {
			dir := writeTestBundle(t, src)
			require.NoError(t, os.WriteFile(filepath.Join(dir, outputFile(0, 0)), []byte(bad+"\n1\n"), 0644))
			err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
			assert.ErrorIs(t, err, ErrCorruptBundle, bad)
			var be *BundleError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, outputFile(0, 0), be.File)
		}
	})
	t.Run("non-finite greedy parameter", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, greedyFile), []byte("1 1\n1 NaN\n"), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("extra values", func(t *testing.T) {
		dir := writeTestBundle(t, src)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fqFile(0)), []byte("1\n2\n3\n"), 0644))
		err := New(WithExpansion(testExpansion())).ReadOfflineData(dir)
		assert.ErrorIs(t, err, ErrCorruptBundle)
	})
	t.Run("oversized n_bfs", func(t *testing.T) {
		for _, n := range []int64{1 << 60, 100000, 3} {
			dir := writeTestBundle(t, src)
			path := filepath.Join(dir, headerFile)
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			var h map[string]any
			require.NoError(t, json.Unmarshal(raw, &h))
			h["n_bfs"] = n
			raw, err = json.Marshal(h)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, raw, 0644))

			var readErr error
			require.NotPanics(t, func() {
				readErr = New(WithExpansion(testExpansion())).ReadOfflineData(dir)
			})
			assert.ErrorIs(t, readErr, ErrCorruptBundle, "n_bfs=%d", n)
			var be *BundleError
			require.ErrorAs(t, readErr, &be)
			assert.Equal(t, headerFile, be.File)
		}
	})
	t.Run("failed read keeps previous data", func(t *testing.T) {
		e := New(WithExpansion(testExpansion()))
		require.NoError(t, e.ReadOfflineData(writeTestBundle(t, src)))
		before := append([]float64(nil), e.AqAqNorms.Data...)

		dir := writeTestBundle(t, src)
		require.NoError(t, os.Remove(filepath.Join(dir, outputDualFile(0))))
		require.Error(t, e.ReadOfflineData(dir))
		assert.Equal(t, before, e.AqAqNorms.Data)
		assert.Equal(t, 2, e.NBasisFunctions())
	})
}

func TestOfflineData_WriteRequiresGreedyParams(t *testing.T) {
	e := newTestModel(t, testBasis[:2]...)
	e.GreedyParams = e.GreedyParams[:1]
	assert.ErrorIs(t, e.WriteOfflineData(t.TempDir()), ErrInvalidArgument)
	assert.ErrorIs(t, New().WriteOfflineData(t.TempDir()), ErrInvalidArgument)
}

func TestBasisFunctions_RoundTrip(t *testing.T) {
	src := newTestModel(t, testBasis...)
	bundle := writeTestBundle(t, src)
	basisDir := filepath.Join(t.TempDir(), "basis")
	require.NoError(t, src.WriteBasisFunctions(lineVectorIO{}, basisDir, false))
	assert.FileExists(t, filepath.Join(basisDir, "bf2.dat"))

	dst := New(WithExpansion(testExpansion()))
	require.NoError(t, dst.ReadOfflineData(bundle))
	require.NoError(t, dst.ReadBasisFunctions(lineVectorIO{}, basisDir, false))
	for i := range testBasis {
		v, err := dst.BasisFunction(i)
		require.NoError(t, err)
		assert.Equal(t, testBasis[i], v)
	}
}

func TestBasisFunctions_ReadErrors(t *testing.T) {
	src := newTestModel(t, testBasis[:2]...)
	bundle := writeTestBundle(t, src)

	t.Run("extra file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, src.WriteBasisFunctions(lineVectorIO{}, dir, false))
		require.NoError(t, os.WriteFile(filepath.Join(dir, basisFile(2, false)), []byte("1\n"), 0644))
		dst := New(WithExpansion(testExpansion()))
		require.NoError(t, dst.ReadOfflineData(bundle))
		assert.ErrorIs(t, dst.ReadBasisFunctions(lineVectorIO{}, dir, false), ErrCorruptBundle)
	})
	t.Run("missing file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, src.WriteBasisFunctions(lineVectorIO{}, dir, false))
		require.NoError(t, os.Remove(filepath.Join(dir, basisFile(1, false))))
		dst := New(WithExpansion(testExpansion()))
		require.NoError(t, dst.ReadOfflineData(bundle))
		err := dst.ReadBasisFunctions(lineVectorIO{}, dir, false)
		assert.ErrorIs(t, err, os.ErrNotExist)
		_, err = dst.BasisFunction(0)
		assert.ErrorIs(t, err, ErrBasisNotLoaded, "nothing loaded on failure")
	})
	t.Run("length mismatch", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, src.WriteBasisFunctions(lineVectorIO{}, dir, false))
		require.NoError(t, os.WriteFile(filepath.Join(dir, basisFile(1, false)), []byte("1\n2\n"), 0644))
		dst := New(WithExpansion(testExpansion()))
		require.NoError(t, dst.ReadOfflineData(bundle))
		assert.ErrorIs(t, dst.ReadBasisFunctions(lineVectorIO{}, dir, false), ErrCorruptBundle)
	})
	t.Run("unloaded slot on write", func(t *testing.T) {
		dst := New(WithExpansion(testExpansion()))
		require.NoError(t, dst.ReadOfflineData(bundle))
		assert.ErrorIs(t, dst.WriteBasisFunctions(lineVectorIO{}, t.TempDir(), true), ErrBasisNotLoaded)
	})
}
