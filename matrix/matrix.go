package matrix

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const EPSILON = 1e-15
const MatrixLine = "------------------------------------------------------------------"

// Matrix is a dense row-major matrix. Reduced operators are stored at their
// full N_max size; online code reads only the leading n×n block.
type Matrix struct {
	Rows, Cols int
	Values     [][]float64
}

func NewMatrix(rows, cols int) *Matrix {
	values := make([][]float64, rows)
	for i := range values {
		values[i] = make([]float64, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Values: values}
}

// Resize grows or shrinks m in place, keeping the leading
// min(rows, m.Rows)×min(cols, m.Cols) block and zero-filling the rest.
func (m *Matrix) Resize(rows, cols int) {
	values := make([][]float64, rows)
	for i := range values {
		values[i] = make([]float64, cols)
		if i < m.Rows {
			copy(values[i], m.Values[i])
		}
	}
	m.Rows, m.Cols, m.Values = rows, cols, values
}

// Norm returns the Frobenius norm.
func (m *Matrix) Norm() float64 {
	sum := 0.0
	for i := range m.Values {
		for j := range m.Values[i] {
			sum += m.Values[i][j] * m.Values[i][j]
		}
	}
	return math.Sqrt(sum)
}

// AddScaledBlock accumulates alpha*m[0:n,0:n] into dst, which must be n×n.
func (m *Matrix) AddScaledBlock(dst *mat.Dense, alpha float64, n int) {
	for i := 0; i < n; i++ {
		row := m.Values[i]
		for j := 0; j < n; j++ {
			dst.Set(i, j, dst.At(i, j)+alpha*row[j])
		}
	}
}

// QuadForm returns u^T m[0:n,0:n] u for the first n entries of u.
func (m *Matrix) QuadForm(u []float64, n int) float64 {
	sum := 0.0
	for i := 0; i < n; i++ {
		row := m.Values[i]
		for j := 0; j < n; j++ {
			sum += u[i] * row[j] * u[j]
		}
	}
	return sum
}

// Dense copies the leading n×n block into a gonum matrix. n must be positive.
func (m *Matrix) Dense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, m.Values[i][j])
		}
	}
	return d
}

// SingularValues returns the singular values of the leading n×n block in
// descending order, or nil when the factorization fails.
func (m *Matrix) SingularValues(n int) []float64 {
	if n == 0 {
		return nil
	}
	var svd mat.SVD
	if ok := svd.Factorize(m.Dense(n), mat.SVDNone); !ok {
		return nil
	}
	return svd.Values(nil)
}

// Cond returns the 2-norm condition number of the leading n×n block. For a
// reduced inner-product matrix it measures how far the basis has drifted from
// orthonormal.
func (m *Matrix) Cond(n int) float64 {
	s := m.SingularValues(n)
	if len(s) == 0 {
		return math.Inf(1)
	}
	smin := s[len(s)-1]
	if smin <= EPSILON*s[0] {
		return math.Inf(1)
	}
	return s[0] / smin
}

func (m *Matrix) ToStrings(title, format string) (string, string) {
	sb := &strings.Builder{}
	csv := &strings.Builder{}
	sb.WriteString(MatrixLine + "\n")
	sb.WriteString(title + "\n")
	fmtStr := "%14.6e"
	if format != "" {
		fmtStr = format
	}
	for i := range m.Values {
		for j := range m.Values[i] {
			fmt.Fprintf(sb, fmtStr, m.Values[i][j])
			if j > 0 {
				csv.WriteString(",")
			}
			csv.WriteString(FormatFloat(m.Values[i][j]))
		}
		sb.WriteString("\n")
		csv.WriteString("\n")
	}
	sb.WriteString(MatrixLine)
	return sb.String(), csv.String()
}

// PrintMatrix dumps the matrix (trimmed). For debugging only.
func PrintMatrix(m *Matrix, title string, debug bool) {
	if debug {
		fmt.Print("\033[33m")
	}
	fmt.Println(MatrixLine)
	fmt.Println(title, " (", m.Rows, "x", m.Cols, ")")
	maxRows := m.Rows
	if maxRows > 12 {
		maxRows = 12
	}
	for i := 0; i < maxRows; i++ {
		row := m.Values[i]
		line := fmt.Sprintf("[%03d]", i)
		maxCols := len(row)
		if maxCols > 8 {
			maxCols = 8
		}
		for j := 0; j < maxCols; j++ {
			line += fmt.Sprintf(" % .6e", row[j])
		}
		if len(row) > maxCols {
			line += " ..."
		}
		fmt.Println(line)
	}
	if m.Rows > maxRows {
		fmt.Println("...")
	}
	fmt.Println(MatrixLine)
	if debug {
		fmt.Print("\033[0m")
	}
}
