package rb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/theta"
)

// BundleFormat is the version written to header.json.
const BundleFormat = 1

const (
	headerFile       = "header.json"
	innerProductFile = "inner_product.dat"
	fqNormsFile      = "Fq_norms.dat"
	fqAqNormsFile    = "Fq_Aq_norms.dat"
	aqAqNormsFile    = "Aq_Aq_norms.dat"
	greedyFile       = "greedy_params.dat"
)

func aqFile(q int) string         { return fmt.Sprintf("RB_A_%03d.dat", q) }
func fqFile(q int) string         { return fmt.Sprintf("RB_F_%03d.dat", q) }
func outputFile(n, q int) string  { return fmt.Sprintf("output_%03d_%03d.dat", n, q) }
func outputDualFile(n int) string { return fmt.Sprintf("output_dual_norms_%03d.dat", n) }

func basisFile(i int, binary bool) string {
	if binary {
		return fmt.Sprintf("bf%d.bin", i)
	}
	return fmt.Sprintf("bf%d.dat", i)
}

type bundleHeader struct {
	Format       int           `json:"format"`
	NBasis       int           `json:"n_bfs"`
	QA           int           `json:"q_a"`
	QF           int           `json:"q_f"`
	QL           []int         `json:"q_l"`
	InnerProduct bool          `json:"inner_product"`
	Parameters   []theta.Range `json:"parameters,omitempty"`
}

// WriteOfflineData writes the reduced data of the first NBasisFunctions()
// basis functions to dir, creating it if needed.
func (e *Evaluation) WriteOfflineData(dir string) error {
	if !e.shaped() {
		return fmt.Errorf("%w: no reduced data to write", ErrInvalidArgument)
	}
	n := len(e.basis)
	if len(e.GreedyParams) != n {
		return fmt.Errorf("%w: %d greedy parameters for %d basis functions", ErrInvalidArgument, len(e.GreedyParams), n)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	h := bundleHeader{
		Format:       BundleFormat,
		NBasis:       n,
		QA:           e.qa,
		QF:           e.qf,
		QL:           append([]int(nil), e.ql...),
		InnerProduct: e.ComputeInnerProduct,
		Parameters:   e.Ranges(),
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, headerFile), data, 0644); err != nil {
		return bundleErr("header", headerFile, err)
	}

	if e.ComputeInnerProduct {
		if err := writeValues(dir, "inner product", innerProductFile, matrixBlock(e.InnerProduct, n)); err != nil {
			return err
		}
	}
	for q, m := range e.Aq {
		if err := writeValues(dir, "RB_A", aqFile(q), matrixBlock(m, n)); err != nil {
			return err
		}
	}
	for q, v := range e.Fq {
		if err := writeValues(dir, "RB_F", fqFile(q), v.Values[:n]); err != nil {
			return err
		}
	}
	for k, out := range e.Outputs {
		for q, v := range out {
			if err := writeValues(dir, "output", outputFile(k, q), v.Values[:n]); err != nil {
				return err
			}
		}
	}
	if err := writeValues(dir, "Fq norms", fqNormsFile, e.FqNorms.Data); err != nil {
		return err
	}

	fqAq := make([]float64, 0, e.qf*e.qa*n)
	for qf := 0; qf < e.qf; qf++ {
		for qa := 0; qa < e.qa; qa++ {
			for i := 0; i < n; i++ {
				fqAq = append(fqAq, e.FqAqNorms.At(qf, qa, i))
			}
		}
	}
	if err := writeValues(dir, "Fq_Aq norms", fqAqNormsFile, fqAq); err != nil {
		return err
	}

	aqAq := make([]float64, 0, triSize(e.qa)*n*n)
	for q1 := 0; q1 < e.qa; q1++ {
		for q2 := q1; q2 < e.qa; q2++ {
			block := e.AqAqNorms.Block(q1, q2)
			for i := 0; i < n; i++ {
				aqAq = append(aqAq, block[i*e.AqAqNorms.N:i*e.AqAqNorms.N+n]...)
			}
		}
	}
	if err := writeValues(dir, "Aq_Aq norms", aqAqNormsFile, aqAq); err != nil {
		return err
	}

	for k, t := range e.OutputDualNorms {
		if err := writeValues(dir, "output dual norms", outputDualFile(k), t.Data); err != nil {
			return err
		}
	}

	if err := writeGreedy(dir, e.GreedyParams); err != nil {
		return err
	}
	e.logger.Info("rb offline data written", "dir", dir, "n_bfs", n, "q_a", e.qa, "q_f", e.qf)
	return nil
}

// ReadOfflineData replaces the reduced data with the bundle in dir. The
// associated expansion must match the term counts of the header. Basis
// slots are created empty; see ReadBasisFunctions. Nothing is changed on
// failure.
func (e *Evaluation) ReadOfflineData(dir string) error {
	exp, err := e.Expansion()
	if err != nil {
		return err
	}
	if !exp.IsInitialized() {
		return ErrExpansionNotInitialized
	}

	raw, err := os.ReadFile(filepath.Join(dir, headerFile))
	if err != nil {
		return bundleErr("header", headerFile, err)
	}
	var h bundleHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return corrupt("header", headerFile, "%v", err)
	}
	if h.Format != BundleFormat {
		return corrupt("header", headerFile, "format %d, want %d", h.Format, BundleFormat)
	}
	if h.NBasis < 0 || h.QA < 0 || h.QF < 0 {
		return corrupt("header", headerFile, "negative dimension n_bfs=%d q_a=%d q_f=%d", h.NBasis, h.QA, h.QF)
	}
	if ql := outputTerms(exp); h.QA != exp.NumA() || h.QF != exp.NumF() || !equalInts(h.QL, ql) {
		return bundleErr("header", headerFile, fmt.Errorf("%w: bundle Q_a=%d Q_f=%d Q_l=%v, expansion Q_a=%d Q_f=%d Q_l=%v",
			ErrExpansionMismatch, h.QA, h.QF, h.QL, exp.NumA(), exp.NumF(), ql))
	}

	// The greedy list has one line per basis function; checking it first
	// bounds n_bfs before any n×n block is allocated.
	greedy, err := readGreedy(dir, len(h.Parameters))
	if err != nil {
		return err
	}
	if len(greedy) != h.NBasis {
		return corrupt("header", headerFile, "n_bfs=%d but %s lists %d greedy parameters", h.NBasis, greedyFile, len(greedy))
	}

	// Load into a scratch evaluation so a failed read leaves e untouched.
	t := New(WithExpansion(exp), WithLogger(e.logger))
	t.SetRanges(h.Parameters)
	if err := t.Resize(h.NBasis); err != nil {
		return err
	}
	n := h.NBasis

	t.ComputeInnerProduct = h.InnerProduct
	if h.InnerProduct {
		v, err := readValues(dir, "inner product", innerProductFile, n*n)
		if err != nil {
			return err
		}
		fillMatrix(t.InnerProduct, v, n)
	}
	for q := range t.Aq {
		v, err := readValues(dir, "RB_A", aqFile(q), n*n)
		if err != nil {
			return err
		}
		fillMatrix(t.Aq[q], v, n)
	}
	for q := range t.Fq {
		v, err := readValues(dir, "RB_F", fqFile(q), n)
		if err != nil {
			return err
		}
		copy(t.Fq[q].Values, v)
	}
	for k := range t.Outputs {
		for q := range t.Outputs[k] {
			v, err := readValues(dir, "output", outputFile(k, q), n)
			if err != nil {
				return err
			}
			copy(t.Outputs[k][q].Values, v)
		}
	}

	v, err := readValues(dir, "Fq norms", fqNormsFile, len(t.FqNorms.Data))
	if err != nil {
		return err
	}
	copy(t.FqNorms.Data, v)

	v, err = readValues(dir, "Fq_Aq norms", fqAqNormsFile, len(t.FqAqNorms.Data))
	if err != nil {
		return err
	}
	copy(t.FqAqNorms.Data, v)

	v, err = readValues(dir, "Aq_Aq norms", aqAqNormsFile, len(t.AqAqNorms.Data))
	if err != nil {
		return err
	}
	copy(t.AqAqNorms.Data, v)

	for k, d := range t.OutputDualNorms {
		v, err := readValues(dir, "output dual norms", outputDualFile(k), len(d.Data))
		if err != nil {
			return err
		}
		copy(d.Data, v)
	}

	t.GreedyParams = greedy
	t.SetNBasisFunctions(n)

	e.adopt(t)
	e.logger.Info("rb offline data read", "dir", dir, "n_bfs", n, "q_a", e.qa, "q_f", e.qf)
	return nil
}

// adopt takes over the reduced data and domain of t, keeping the expansion,
// the policy, the logger and EvaluateErrorBound of e.
func (e *Evaluation) adopt(t *Evaluation) {
	e.Parametrized = t.Parametrized
	e.GreedyParams = t.GreedyParams
	e.InnerProduct = t.InnerProduct
	e.Aq, e.Fq, e.Outputs = t.Aq, t.Fq, t.Outputs
	e.FqNorms, e.FqAqNorms, e.AqAqNorms = t.FqNorms, t.FqAqNorms, t.AqAqNorms
	e.OutputDualNorms = t.OutputDualNorms
	e.AqRepresentors = t.AqRepresentors
	e.ComputeInnerProduct = t.ComputeInnerProduct
	e.Solution = matrix.NewVector(0)
	e.OutputValues, e.OutputBounds = nil, nil
	e.basis = t.basis
	e.nMax, e.qa, e.qf, e.ql = t.nMax, t.qa, t.qf, t.ql
}

func matrixBlock(m *matrix.Matrix, n int) []float64 {
	out := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		out = append(out, m.Values[i][:n]...)
	}
	return out
}

func fillMatrix(m *matrix.Matrix, v []float64, n int) {
	for i := 0; i < n; i++ {
		copy(m.Values[i][:n], v[i*n:(i+1)*n])
	}
}

func writeValues(dir, tensor, name string, values []float64) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return bundleErr(tensor, name, err)
	}
	w := bufio.NewWriter(f)
	for _, v := range values {
		w.WriteString(matrix.FormatFloat(v))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return bundleErr(tensor, name, err)
	}
	if err := f.Close(); err != nil {
		return bundleErr(tensor, name, err)
	}
	return nil
}

// readValues reads exactly want finite values, one per line. Blank lines
// are ignored.
func readValues(dir, tensor, name string, want int) ([]float64, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, bundleErr(tensor, name, err)
	}
	defer func() { _ = f.Close() }()

	values := make([]float64, 0, min(want, 1<<16))
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		v, err := matrix.ParseFloat(s)
		if err != nil {
			return nil, corrupt(tensor, name, "line %d: %v", line, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, corrupt(tensor, name, "line %d: non-finite value %s", line, s)
		}
		if len(values) == want {
			return nil, corrupt(tensor, name, "more than %d values", want)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, bundleErr(tensor, name, err)
	}
	if len(values) != want {
		return nil, corrupt(tensor, name, "%d values, want %d", len(values), want)
	}
	return values, nil
}

// Greedy parameters are stored one per line as "<count> <v1> <v2> ...".
func writeGreedy(dir string, params []theta.Parameters) error {
	var b strings.Builder
	for _, mu := range params {
		b.WriteString(strconv.Itoa(len(mu)))
		for _, v := range mu {
			b.WriteByte(' ')
			b.WriteString(matrix.FormatFloat(v))
		}
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, greedyFile), []byte(b.String()), 0644); err != nil {
		return bundleErr("greedy parameters", greedyFile, err)
	}
	return nil
}

func readGreedy(dir string, nParams int) ([]theta.Parameters, error) {
	raw, err := os.ReadFile(filepath.Join(dir, greedyFile))
	if err != nil {
		return nil, bundleErr("greedy parameters", greedyFile, err)
	}
	var out []theta.Parameters
	for i, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil || count != len(fields)-1 {
			return nil, corrupt("greedy parameters", greedyFile, "line %d: bad count %q", i+1, fields[0])
		}
		if nParams > 0 && count != nParams {
			return nil, corrupt("greedy parameters", greedyFile, "line %d: %d values, want %d", i+1, count, nParams)
		}
		mu := make(theta.Parameters, count)
		for j, s := range fields[1:] {
			if mu[j], err = matrix.ParseFloat(s); err != nil {
				return nil, corrupt("greedy parameters", greedyFile, "line %d: %v", i+1, err)
			}
			if math.IsNaN(mu[j]) || math.IsInf(mu[j], 0) {
				return nil, corrupt("greedy parameters", greedyFile, "line %d: non-finite value %s", i+1, s)
			}
		}
		out = append(out, mu)
	}
	return out, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// VectorIO reads and writes full-order vectors. Implementations decide the
// on-disk encoding for the binary and text variants.
type VectorIO interface {
	WriteVector(path string, v []float64, binary bool) error
	ReadVector(path string, binary bool) ([]float64, error)
}

// WriteBasisFunctions writes every basis function to dir as bf<i>.bin or
// bf<i>.dat. All slots must be loaded.
func (e *Evaluation) WriteBasisFunctions(vio VectorIO, dir string, binary bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, v := range e.basis {
		name := basisFile(i, binary)
		if v == nil {
			return bundleErr("basis function", name, fmt.Errorf("%w: basis function %d", ErrBasisNotLoaded, i))
		}
		if err := vio.WriteVector(filepath.Join(dir, name), v, binary); err != nil {
			return bundleErr("basis function", name, err)
		}
	}
	e.logger.Info("rb basis functions written", "dir", dir, "count", len(e.basis), "binary", binary)
	return nil
}

// ReadBasisFunctions loads NBasisFunctions() vectors from dir. The number of
// basis slots must equal the number of greedy parameters, and dir must hold
// exactly that many basis files. Nothing is changed on failure.
func (e *Evaluation) ReadBasisFunctions(vio VectorIO, dir string, binary bool) error {
	n := len(e.basis)
	if len(e.GreedyParams) != n {
		return corrupt("basis function", greedyFile, "%d greedy parameters for %d basis functions", len(e.GreedyParams), n)
	}
	extra := basisFile(n, binary)
	if _, err := os.Stat(filepath.Join(dir, extra)); err == nil {
		return corrupt("basis function", extra, "more basis files than the %d in the bundle", n)
	} else if !errors.Is(err, os.ErrNotExist) {
		return bundleErr("basis function", extra, err)
	}

	loaded := make([][]float64, n)
	for i := range loaded {
		name := basisFile(i, binary)
		v, err := vio.ReadVector(filepath.Join(dir, name), binary)
		if err != nil {
			return bundleErr("basis function", name, err)
		}
		if i > 0 && len(v) != len(loaded[0]) {
			return corrupt("basis function", name, "length %d, bf0 has %d", len(v), len(loaded[0]))
		}
		loaded[i] = v
	}
	copy(e.basis, loaded)
	e.logger.Info("rb basis functions read", "dir", dir, "count", n, "binary", binary)
	return nil
}
