package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/models"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

// ErrDependentSnapshot is returned when a snapshot adds nothing to the span
// of the current basis.
var ErrDependentSnapshot = errors.New("demo: snapshot linearly dependent on the basis")

// Builder fills the reduced data of an Evaluation from a Problem, one
// snapshot at a time.
type Builder struct {
	p      *Problem
	e      *rb.Evaluation
	fReps  [][]float64
	logger *slog.Logger
}

// NewBuilder associates the problem expansion with e, shapes its reduced
// data and computes the parameter-independent representor norms.
func NewBuilder(p *Problem, e *rb.Evaluation, logger *slog.Logger) (*Builder, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Builder{p: p, e: e, logger: logger}
	e.SetExpansion(p.Expansion())
	e.SetRanges(p.Ranges())
	e.ComputeInnerProduct = true
	e.Clear()
	if err := e.Resize(0); err != nil {
		return nil, err
	}

	for _, f := range p.F {
		r, err := p.Riesz(f)
		if err != nil {
			return nil, err
		}
		b.fReps = append(b.fReps, r)
	}
	for q1 := range b.fReps {
		for q2 := q1; q2 < len(b.fReps); q2++ {
			e.FqNorms.Set(q1, q2, p.XInner(b.fReps[q1], b.fReps[q2]))
		}
	}

	for k, out := range p.L {
		reps := make([][]float64, len(out))
		for q, l := range out {
			r, err := p.Riesz(l)
			if err != nil {
				return nil, err
			}
			reps[q] = r
		}
		for q1 := range reps {
			for q2 := q1; q2 < len(reps); q2++ {
				e.OutputDualNorms[k].Set(q1, q2, p.XInner(reps[q1], reps[q2]))
			}
		}
	}
	return b, nil
}

// AddSnapshot solves the full-order problem at mu, X-orthonormalises the
// solution against the basis and appends it with all derived reduced data.
func (b *Builder) AddSnapshot(mu theta.Parameters) error {
	u, err := b.p.TruthSolve(mu)
	if err != nil {
		return err
	}
	scale := math.Sqrt(b.p.XInner(u, u))
	n := b.e.NBasisFunctions()
	// Two Gram-Schmidt passes keep the basis orthonormal to round-off.
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			bf, err := b.e.BasisFunction(i)
			if err != nil {
				return err
			}
			floats.AddScaled(u, -b.p.XInner(bf, u), bf)
		}
	}
	norm := math.Sqrt(b.p.XInner(u, u))
	if norm <= 1e-10*scale {
		return fmt.Errorf("%w: mu=%s", ErrDependentSnapshot, mu)
	}
	floats.Scale(1/norm, u)

	if _, err := b.e.AddBasisFunction(u, mu); err != nil {
		return err
	}
	return b.update(n)
}

// update computes every reduced entry that involves basis function n.
func (b *Builder) update(n int) error {
	p, e := b.p, b.e
	xi, err := e.BasisFunction(n)
	if err != nil {
		return err
	}
	xv := mat.NewVecDense(len(xi), xi)

	for i := 0; i <= n; i++ {
		bi, err := e.BasisFunction(i)
		if err != nil {
			return err
		}
		ip := p.XInner(bi, xi)
		e.InnerProduct.Values[i][n], e.InnerProduct.Values[n][i] = ip, ip
		bv := mat.NewVecDense(len(bi), bi)
		for q, a := range p.A {
			v := mat.Inner(bv, a, xv)
			e.Aq[q].Values[i][n], e.Aq[q].Values[n][i] = v, v
		}
	}
	for q, f := range p.F {
		e.Fq[q].Values[n] = mat.Dot(f, xv)
	}
	for k, out := range p.L {
		for q, l := range out {
			e.Outputs[k][q].Values[n] = mat.Dot(l, xv)
		}
	}

	// Representors of -A_q xi_n.
	reps := make([][]float64, len(p.A))
	for q, a := range p.A {
		var rhs mat.VecDense
		rhs.MulVec(a, xv)
		rhs.ScaleVec(-1, &rhs)
		if reps[q], err = p.Riesz(&rhs); err != nil {
			return err
		}
	}
	e.AqRepresentors[n] = reps

	for qf, rf := range b.fReps {
		for qa, ra := range reps {
			e.FqAqNorms.Set(qf, qa, n, p.XInner(rf, ra))
		}
	}
	for q1 := range p.A {
		for q2 := q1; q2 < len(p.A); q2++ {
			for i := 0; i <= n; i++ {
				ri := e.AqRepresentors[i]
				e.AqAqNorms.Set(q1, q2, i, n, p.XInner(ri[q1], reps[q2]))
				e.AqAqNorms.Set(q1, q2, n, i, p.XInner(reps[q1], ri[q2]))
			}
		}
	}
	b.logger.Debug("demo basis function added", "n", n+1)
	return nil
}

// Greedy runs the weak greedy loop over train: at every step the training
// parameter with the largest error bound is added, until nMax basis
// functions are reached or the largest bound relative to the first drops
// below tol. It returns the largest bound of every step.
func (b *Builder) Greedy(ctx context.Context, train []theta.Parameters, nMax int, tol float64) ([]float64, error) {
	if len(train) == 0 {
		return nil, errors.New("demo: empty training set")
	}
	var history []float64
	for {
		n := b.e.NBasisFunctions()
		worst, worstBound := -1, -1.0
		err := b.e.Sweep(ctx, train, n, func(r rb.SweepResult) error {
			if r.Bound > worstBound {
				worst, worstBound = r.Index, r.Bound
			}
			return nil
		})
		if err != nil {
			return history, err
		}
		history = append(history, worstBound)
		b.logger.Info("greedy step", "n", n, "max_bound", worstBound, "mu", train[worst].String())
		if n >= nMax || worstBound <= tol*history[0] {
			return history, nil
		}
		if err := b.AddSnapshot(train[worst]); err != nil {
			if errors.Is(err, ErrDependentSnapshot) {
				return history, nil
			}
			return history, err
		}
	}
}

// TrainingSet returns a perDim×perDim log-spaced grid over the domain.
func TrainingSet(perDim int) []theta.Parameters {
	if perDim < 2 {
		perDim = 2
	}
	vals := make([]float64, perDim)
	floats.LogSpan(vals, MuMin, MuMax)
	vals[0], vals[perDim-1] = MuMin, MuMax
	out := make([]theta.Parameters, 0, perDim*perDim)
	for _, a := range vals {
		for _, c := range vals {
			out = append(out, theta.Parameters{a, c})
		}
	}
	return out
}

// Options controls Build.
type Options struct {
	NElems int
	NMax   int
	Tol    float64
	// TrainPerDim is the number of training values per parameter.
	TrainPerDim int
	Binary      bool
}

// DefaultOptions are used by the demo command.
var DefaultOptions = Options{NElems: 64, NMax: 10, Tol: 1e-8, TrainPerDim: 8, Binary: true}

// Model is the result of Build.
type Model struct {
	Problem *Problem
	Eval    *rb.Evaluation
	Config  *models.Config
	History []float64
}

// Config describes the demo model as rbeval configuration with bundle and
// basis directories relative to the config file.
func (p *Problem) Config(binary bool) *models.Config {
	cfg := &models.Config{
		Name: "diffusion-1d",
		Bundle: models.BundleConfig{
			Dir:         "offline_data",
			BasisDir:    "basis",
			BinaryBasis: binary,
			NDofs:       p.NDofs,
		},
		Theta: p.Expansion().Spec(p.Ranges()),
		Bound: models.BoundConfig{
			Policy:    models.COMPLIANT.String(),
			Reference: []float64{1, 1},
			RefAlpha:  1,
		},
		Results: models.ResultsConfig{Path: "results.db"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Build assembles the problem, runs the greedy loop and writes the offline
// bundle, the basis and rbeval.yaml to dir.
func Build(ctx context.Context, dir string, opts Options, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p, err := NewProblem(opts.NElems)
	if err != nil {
		return nil, err
	}
	cfg := p.Config(opts.Binary)
	exp := p.Expansion()
	policy, err := rb.PolicyFromConfig(cfg.Bound, exp)
	if err != nil {
		return nil, err
	}
	e := rb.New(rb.WithExpansion(exp), rb.WithBoundPolicy(policy), rb.WithLogger(logger))
	b, err := NewBuilder(p, e, logger)
	if err != nil {
		return nil, err
	}
	history, err := b.Greedy(ctx, TrainingSet(opts.TrainPerDim), opts.NMax, opts.Tol)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := e.WriteOfflineData(filepath.Join(dir, cfg.Bundle.Dir)); err != nil {
		return nil, err
	}
	vio := file.VectorFile{NDofs: p.NDofs}
	if err := e.WriteBasisFunctions(vio, filepath.Join(dir, cfg.Bundle.BasisDir), opts.Binary); err != nil {
		return nil, err
	}
	if err := file.SaveConfig(filepath.Join(dir, "rbeval.yaml"), cfg); err != nil {
		return nil, err
	}
	logger.Info("demo model built", "dir", dir, "n_bfs", e.NBasisFunctions(), "ndofs", p.NDofs)
	return &Model{Problem: p, Eval: e, Config: cfg, History: history}, nil
}
