package matrix

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Vector is a dense length-N vector of float64 values.
type Vector struct {
	Length int
	Values []float64
}

// NewVector allocates a vector of the given length initialized with zeros.
func NewVector(length int) *Vector {
	return &Vector{Length: length, Values: make([]float64, length)}
}

// NewVectorFrom wraps a copy of values.
func NewVectorFrom(values []float64) *Vector {
	v := NewVector(len(values))
	copy(v.Values, values)
	return v
}

// Resize changes the length in place, keeping the leading entries.
func (v *Vector) Resize(length int) {
	values := make([]float64, length)
	copy(values, v.Values)
	v.Length, v.Values = length, values
}

// Norm returns the Euclidean norm of v (\(\sqrt{\sum_i v_i^2}\)).
func (v *Vector) Norm() float64 {
	return floats.Norm(v.Values, 2)
}

// Dot returns the dot product of the first n entries of v and u.
func (v *Vector) Dot(u []float64, n int) float64 {
	return floats.Dot(v.Values[:n], u[:n])
}

// IsFinite reports whether every entry is neither NaN nor ±Inf.
func (v *Vector) IsFinite() bool {
	for _, val := range v.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return false
		}
	}
	return true
}

// ToStrings formats the vector for display/logging.
//
// The first string is the human-readable block, the second a single CSV line
// with exact (round-trip) values.
func (v *Vector) ToStrings(title, format string) (string, string) {
	sb := &strings.Builder{}
	sb.WriteString(MatrixLine + "\n")
	sb.WriteString(title + "\n")
	fmtStr := "% .12e"
	if format != "" {
		fmtStr = format
	}
	parts := make([]string, 0, v.Length)
	for i, val := range v.Values {
		fmt.Fprintf(sb, "[%03d] "+fmtStr+"\n", i, val)
		parts = append(parts, FormatFloat(val))
	}
	sb.WriteString(MatrixLine)
	return sb.String(), title + "," + strings.Join(parts, ",")
}

// PrintVector prints a trimmed view of a vector for debugging.
//
// When debug is true, output is colored (ANSI) to visually distinguish debug
// vectors.
func PrintVector(v *Vector, title string, debug bool) {
	if debug {
		fmt.Print("\033[33m")
	}
	fmt.Println(MatrixLine)
	fmt.Println(title, " (", v.Length, ")")
	max := v.Length
	if max > 24 {
		max = 24
	}
	for i := 0; i < max; i++ {
		fmt.Printf("[%03d] % .12e\n", i, v.Values[i])
	}
	if v.Length > max {
		fmt.Println("...")
	}
	fmt.Println(MatrixLine)
	if debug {
		fmt.Print("\033[0m")
	}
}
