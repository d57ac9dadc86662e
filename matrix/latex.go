package matrix

import (
	"fmt"
	"strings"
)

// MatrixToLaTeX renders the leading n×n block as a pmatrix.
func MatrixToLaTeX(m *Matrix, n int, format string) string {
	if format == "" {
		format = "%0.6g"
	}
	sb := &strings.Builder{}
	sb.WriteString("\\begin{pmatrix}\n")
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j > 0 {
				sb.WriteString(" & ")
			}
			fmt.Fprintf(sb, format, m.Values[i][j])
		}
		if i < n-1 {
			sb.WriteString(" \\\\")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\\end{pmatrix}\n")
	return sb.String()
}

// VectorToLaTeX renders the first n entries as a column pmatrix.
func VectorToLaTeX(v *Vector, n int, format string) string {
	if format == "" {
		format = "%0.6g"
	}
	sb := &strings.Builder{}
	sb.WriteString("\\begin{pmatrix}")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(" \\\\ ")
		}
		fmt.Fprintf(sb, format, v.Values[i])
	}
	sb.WriteString("\\end{pmatrix}\n")
	return sb.String()
}

// VectorToLaTeXTranspose renders the first n entries as a row pmatrix.
func VectorToLaTeXTranspose(v *Vector, n int, format string) string {
	if format == "" {
		format = "%0.6g"
	}
	sb := &strings.Builder{}
	sb.WriteString("\\begin{pmatrix}")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(" & ")
		}
		fmt.Fprintf(sb, format, v.Values[i])
	}
	sb.WriteString("\\end{pmatrix}\n")
	return sb.String()
}
