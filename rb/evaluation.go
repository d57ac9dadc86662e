// Package rb implements the online/offline evaluation object of a certified
// reduced basis model: it owns the reduced basis and the reduced operators,
// solves the small online system for a parameter value and computes the
// residual-based a-posteriori error bound.
//
// An Evaluation is not safe for concurrent mutation. Solve overwrites
// Solution, OutputValues and OutputBounds in place; callers that share an
// Evaluation between goroutines must serialise access and copy results out
// (see Result) before releasing their lock.
package rb

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/theta"
)

// Evaluation holds the data of a reduced basis model and evaluates it.
//
// All dense reduced structures are sized to the reduced dimension MaxN(),
// which is at least NBasisFunctions(); online solves with N basis functions
// use only the leading N×N / N-length blocks.
type Evaluation struct {
	theta.Parametrized

	// GreedyParams lists the parameter selected for each basis function, in
	// the order the basis was built.
	GreedyParams []theta.Parameters

	// InnerProduct holds the basis inner products. It drifts away from the
	// identity as N grows, so it is stored rather than assumed.
	InnerProduct *matrix.Matrix

	// Aq and Fq are the affine terms projected onto the basis.
	Aq []*matrix.Matrix
	Fq []*matrix.Vector

	// Outputs holds the projected output functionals, indexed [n][q].
	Outputs [][]*matrix.Vector

	// Representor inner products used to evaluate the residual dual norm
	// without forming full-order vectors online.
	FqNorms         *SymTensor2
	FqAqNorms       *Tensor3
	AqAqNorms       *SymTensor4
	OutputDualNorms []*SymTensor2

	// AqRepresentors holds the full-order Riesz representors of A_q applied
	// to each basis function, indexed [i][q]. Offline only.
	AqRepresentors [][][]float64

	// Online state, overwritten by every Solve.
	Solution     *matrix.Vector
	OutputValues []float64
	OutputBounds []float64

	// EvaluateErrorBound toggles the bound computation in Solve. Turning it
	// off leaves Solution unchanged.
	EvaluateErrorBound bool

	// ComputeInnerProduct tells the offline stage to fill InnerProduct.
	ComputeInnerProduct bool

	basis     [][]float64
	nMax      int
	qa, qf    int
	ql        []int
	expansion theta.Expansion
	policy    BoundPolicy
	logger    *slog.Logger
}

// Option configures an Evaluation.
type Option func(*Evaluation)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluation) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBoundPolicy sets the bound policy.
func WithBoundPolicy(p BoundPolicy) Option {
	return func(e *Evaluation) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithExpansion associates the theta expansion.
func WithExpansion(exp theta.Expansion) Option {
	return func(e *Evaluation) { e.expansion = exp }
}

// New returns an empty Evaluation with error bounds enabled, the default
// bound policy and no associated expansion.
func New(opts ...Option) *Evaluation {
	e := &Evaluation{
		EvaluateErrorBound: true,
		Solution:           matrix.NewVector(0),
		policy:             DefaultPolicy(),
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetExpansion associates exp. The expansion is not owned; it must outlive
// every call that evaluates theta coefficients.
func (e *Evaluation) SetExpansion(exp theta.Expansion) {
	e.expansion = exp
}

// Expansion returns the associated expansion or ErrNoExpansion.
func (e *Evaluation) Expansion() (theta.Expansion, error) {
	if e.expansion == nil {
		return nil, ErrNoExpansion
	}
	return e.expansion, nil
}

// IsExpansionInitialized reports whether an initialized expansion is associated.
func (e *Evaluation) IsExpansionInitialized() bool {
	return e.expansion != nil && e.expansion.IsInitialized()
}

// SetBoundPolicy replaces the bound policy. nil restores the default.
func (e *Evaluation) SetBoundPolicy(p BoundPolicy) {
	if p == nil {
		p = DefaultPolicy()
	}
	e.policy = p
}

// BoundPolicy returns the active bound policy.
func (e *Evaluation) BoundPolicy() BoundPolicy { return e.policy }

// MaxN returns the reduced dimension the dense structures are sized for.
func (e *Evaluation) MaxN() int { return e.nMax }

// NumA, NumF and NumOutputTerms report the affine term counts of the stored
// reduced data.
func (e *Evaluation) NumA() int { return e.qa }
func (e *Evaluation) NumF() int { return e.qf }

func (e *Evaluation) NumOutputs() int { return len(e.ql) }

func (e *Evaluation) NumOutputTerms(n int) int { return e.ql[n] }

// NBasisFunctions returns the number of basis slots, loaded or not.
func (e *Evaluation) NBasisFunctions() int { return len(e.basis) }

// SetNBasisFunctions resizes the basis to n slots. New slots are empty until
// basis functions are read in; removed slots release their vectors.
func (e *Evaluation) SetNBasisFunctions(n int) {
	if n <= len(e.basis) {
		for i := n; i < len(e.basis); i++ {
			e.basis[i] = nil
		}
		e.basis = e.basis[:n]
		return
	}
	e.basis = append(e.basis, make([][]float64, n-len(e.basis))...)
}

// BasisFunction returns the i-th full-order basis vector. The slice is owned
// by the Evaluation and must not be modified.
func (e *Evaluation) BasisFunction(i int) ([]float64, error) {
	if i < 0 || i >= len(e.basis) {
		return nil, fmt.Errorf("%w: basis function %d of %d", ErrOutOfRange, i, len(e.basis))
	}
	if e.basis[i] == nil {
		return nil, fmt.Errorf("%w: basis function %d", ErrBasisNotLoaded, i)
	}
	return e.basis[i], nil
}

// AddBasisFunction appends a basis vector and the greedy parameter that
// produced it, growing the reduced structures when needed. It returns the
// index of the new basis function. v and mu are copied.
func (e *Evaluation) AddBasisFunction(v []float64, mu theta.Parameters) (int, error) {
	n := len(e.basis)
	for _, b := range e.basis {
		if b != nil && len(b) != len(v) {
			return 0, fmt.Errorf("%w: basis vector length %d, existing basis has %d", ErrInvalidArgument, len(v), len(b))
		}
	}
	if n+1 > e.nMax {
		if err := e.Resize(n + 1); err != nil {
			return 0, err
		}
	}
	e.basis = append(e.basis, append([]float64(nil), v...))
	e.GreedyParams = append(e.GreedyParams, mu.Clone())
	return n, nil
}

// Resize grows every dense reduced structure to nMax, keeping all existing
// entries. It fails with ErrInvalidArgument when nMax is smaller than the
// number of basis functions, and needs an initialized expansion to shape
// the affine-term dimensions on first use.
func (e *Evaluation) Resize(nMax int) error {
	if nMax < 0 || nMax < len(e.basis) {
		return fmt.Errorf("%w: resize to %d below %d basis functions", ErrInvalidArgument, nMax, len(e.basis))
	}
	exp, err := e.Expansion()
	if err != nil {
		return err
	}
	if !exp.IsInitialized() {
		return ErrExpansionNotInitialized
	}
	qa, qf, ql := exp.NumA(), exp.NumF(), outputTerms(exp)
	if !e.shaped() {
		e.reshape(qa, qf, ql)
	} else if !e.sameShape(qa, qf, ql) {
		if len(e.basis) > 0 {
			return fmt.Errorf("%w: expansion has Q_a=%d Q_f=%d Q_l=%v, reduced data Q_a=%d Q_f=%d Q_l=%v",
				ErrExpansionMismatch, qa, qf, ql, e.qa, e.qf, e.ql)
		}
		e.reshape(qa, qf, ql)
	}
	e.grow(nMax)
	e.logger.Debug("rb resize", "n_max", nMax, "q_a", qa, "q_f", qf, "outputs", len(ql))
	return nil
}

// Clear releases the basis, the representors and every reduced structure.
// The expansion, the bound policy, the parameter domain and the flags are
// kept.
func (e *Evaluation) Clear() {
	e.basis = nil
	e.GreedyParams = nil
	e.InnerProduct = nil
	e.Aq, e.Fq, e.Outputs = nil, nil, nil
	e.FqNorms, e.FqAqNorms, e.AqAqNorms, e.OutputDualNorms = nil, nil, nil, nil
	e.AqRepresentors = nil
	e.Solution = matrix.NewVector(0)
	e.OutputValues, e.OutputBounds = nil, nil
	e.nMax, e.qa, e.qf, e.ql = 0, 0, 0, nil
}

// ClearRieszRepresentors frees the full-order A_q representors. Solve only
// reads the scalar representor-norm tensors, so bounds are unaffected.
func (e *Evaluation) ClearRieszRepresentors() {
	e.AqRepresentors = nil
}

func (e *Evaluation) shaped() bool { return e.FqNorms != nil }

func (e *Evaluation) sameShape(qa, qf int, ql []int) bool {
	if qa != e.qa || qf != e.qf || len(ql) != len(e.ql) {
		return false
	}
	for i := range ql {
		if ql[i] != e.ql[i] {
			return false
		}
	}
	return true
}

// reshape allocates empty (N = 0) structures for the given term counts.
func (e *Evaluation) reshape(qa, qf int, ql []int) {
	e.qa, e.qf, e.ql = qa, qf, append([]int(nil), ql...)
	e.nMax = 0
	e.InnerProduct = matrix.NewMatrix(0, 0)
	e.Aq = make([]*matrix.Matrix, qa)
	for q := range e.Aq {
		e.Aq[q] = matrix.NewMatrix(0, 0)
	}
	e.Fq = make([]*matrix.Vector, qf)
	for q := range e.Fq {
		e.Fq[q] = matrix.NewVector(0)
	}
	e.Outputs = make([][]*matrix.Vector, len(ql))
	e.OutputDualNorms = make([]*SymTensor2, len(ql))
	for n, terms := range ql {
		e.Outputs[n] = make([]*matrix.Vector, terms)
		for q := range e.Outputs[n] {
			e.Outputs[n][q] = matrix.NewVector(0)
		}
		e.OutputDualNorms[n] = NewSymTensor2(terms)
	}
	e.FqNorms = NewSymTensor2(qf)
	e.FqAqNorms = NewTensor3(qf, qa, 0)
	e.AqAqNorms = NewSymTensor4(qa, 0)
	e.AqRepresentors = nil
}

// grow resizes every N-dependent structure to n, keeping leading entries.
func (e *Evaluation) grow(n int) {
	e.InnerProduct.Resize(n, n)
	for _, m := range e.Aq {
		m.Resize(n, n)
	}
	for _, v := range e.Fq {
		v.Resize(n)
	}
	for _, out := range e.Outputs {
		for _, v := range out {
			v.Resize(n)
		}
	}
	e.FqAqNorms.Resize(n)
	e.AqAqNorms.Resize(n)
	if len(e.AqRepresentors) > n {
		e.AqRepresentors = e.AqRepresentors[:n]
	}
	for len(e.AqRepresentors) < n {
		e.AqRepresentors = append(e.AqRepresentors, make([][]float64, e.qa))
	}
	e.nMax = n
}

// checkExpansion returns the expansion when it is associated, initialized
// and consistent with the stored reduced data.
func (e *Evaluation) checkExpansion() (theta.Expansion, error) {
	exp, err := e.Expansion()
	if err != nil {
		return nil, err
	}
	if !exp.IsInitialized() {
		return nil, ErrExpansionNotInitialized
	}
	if !e.shaped() {
		return nil, fmt.Errorf("%w: no reduced data", ErrInvalidArgument)
	}
	if ql := outputTerms(exp); !e.sameShape(exp.NumA(), exp.NumF(), ql) {
		return nil, fmt.Errorf("%w: expansion has Q_a=%d Q_f=%d Q_l=%v, reduced data Q_a=%d Q_f=%d Q_l=%v",
			ErrExpansionMismatch, exp.NumA(), exp.NumF(), ql, e.qa, e.qf, e.ql)
	}
	return exp, nil
}

func outputTerms(exp theta.Expansion) []int {
	ql := make([]int, exp.NumOutputs())
	for n := range ql {
		ql[n] = exp.NumOutputTerms(n)
	}
	return ql
}
