package rb

// Representor-norm tensors are stored flat. Pairs of affine terms (q, q') are
// kept only for q <= q' and indexed by triIndex; the mirrored half follows
// from the symmetry of the inner product.

// triIndex maps q1 <= q2 < q to a position in the packed upper triangle,
// row by row: (0,0),(0,1)...(0,q-1),(1,1),...
func triIndex(q1, q2, q int) int {
	return q1*q - q1*(q1-1)/2 + (q2 - q1)
}

func triSize(q int) int { return q * (q + 1) / 2 }

// SymTensor2 is a symmetric Q×Q array (Fq norms, output dual norms).
type SymTensor2 struct {
	Q    int
	Data []float64
}

func NewSymTensor2(q int) *SymTensor2 {
	return &SymTensor2{Q: q, Data: make([]float64, triSize(q))}
}

func (t *SymTensor2) At(q1, q2 int) float64 {
	if q1 > q2 {
		q1, q2 = q2, q1
	}
	return t.Data[triIndex(q1, q2, t.Q)]
}

func (t *SymTensor2) Set(q1, q2 int, v float64) {
	if q1 > q2 {
		q1, q2 = q2, q1
	}
	t.Data[triIndex(q1, q2, t.Q)] = v
}

// Tensor3 is a Q1×Q2×N array indexed [q1][q2][i], used for the Fq/Aq cross
// terms. N grows with the basis.
type Tensor3 struct {
	Q1, Q2, N int
	Data      []float64
}

func NewTensor3(q1, q2, n int) *Tensor3 {
	return &Tensor3{Q1: q1, Q2: q2, N: n, Data: make([]float64, q1*q2*n)}
}

func (t *Tensor3) index(q1, q2, i int) int {
	return (q1*t.Q2+q2)*t.N + i
}

func (t *Tensor3) At(q1, q2, i int) float64 { return t.Data[t.index(q1, q2, i)] }

func (t *Tensor3) Set(q1, q2, i int, v float64) { t.Data[t.index(q1, q2, i)] = v }

// Resize changes N, keeping entries with i < min(old N, n).
func (t *Tensor3) Resize(n int) {
	data := make([]float64, t.Q1*t.Q2*n)
	keep := min(t.N, n)
	for a := 0; a < t.Q1*t.Q2; a++ {
		copy(data[a*n:a*n+keep], t.Data[a*t.N:a*t.N+keep])
	}
	t.N, t.Data = n, data
}

// SymTensor4 holds the Aq/Aq representor inner products: one N×N block per
// pair q <= q'. At(q,q',i,j) == At(q',q,j,i) by construction, and writes to
// a diagonal block (q == q') keep that block symmetric.
type SymTensor4 struct {
	Q, N int
	Data []float64
}

func NewSymTensor4(q, n int) *SymTensor4 {
	return &SymTensor4{Q: q, N: n, Data: make([]float64, triSize(q)*n*n)}
}

func (t *SymTensor4) index(q1, q2, i, j int) int {
	return (triIndex(q1, q2, t.Q)*t.N+i)*t.N + j
}

func (t *SymTensor4) At(q1, q2, i, j int) float64 {
	if q1 > q2 {
		q1, q2, i, j = q2, q1, j, i
	}
	return t.Data[t.index(q1, q2, i, j)]
}

func (t *SymTensor4) Set(q1, q2, i, j int, v float64) {
	if q1 > q2 {
		q1, q2, i, j = q2, q1, j, i
	}
	t.Data[t.index(q1, q2, i, j)] = v
	if q1 == q2 {
		t.Data[t.index(q1, q2, j, i)] = v
	}
}

// Block returns the N×N block of pair (q1, q2) with q1 <= q2, row-major.
func (t *SymTensor4) Block(q1, q2 int) []float64 {
	start := triIndex(q1, q2, t.Q) * t.N * t.N
	return t.Data[start : start+t.N*t.N]
}

// Resize changes N, keeping the leading min(old N, n) square of every block.
func (t *SymTensor4) Resize(n int) {
	blocks := triSize(t.Q)
	data := make([]float64, blocks*n*n)
	keep := min(t.N, n)
	for b := 0; b < blocks; b++ {
		for i := 0; i < keep; i++ {
			src := (b*t.N + i) * t.N
			dst := (b*n + i) * n
			copy(data[dst:dst+keep], t.Data[src:src+keep])
		}
	}
	t.N, t.Data = n, data
}
