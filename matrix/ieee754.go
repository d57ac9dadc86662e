package matrix

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// maxEncodedLength bounds the length prefix accepted by DecodeFloat64s so a
// corrupt header cannot trigger a huge allocation.
const maxEncodedLength = 1 << 31

var ErrEncodedLength = errors.New("matrix: encoded vector length out of range")

func ToIEEE754(f float64) uint64 {
	return math.Float64bits(f)
}

// FormatFloat renders f with the shortest representation that parses back to
// the identical bits.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseFloat is the inverse of FormatFloat.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// EncodeFloat64s writes a uint64 little-endian length prefix followed by the
// IEEE-754 bits of each value.
func EncodeFloat64s(w io.Writer, values []float64) error {
	bw := bufio.NewWriter(w)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(values)))
	if _, err := bw.Write(buf[:]); err != nil {
		return err
	}
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeFloat64s reads a vector written by EncodeFloat64s.
func DecodeFloat64s(r io.Reader) ([]float64, error) {
	br := bufio.NewReader(r)
	var buf [8]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}
	n := binary.LittleEndian.Uint64(buf[:])
	if n > maxEncodedLength {
		return nil, fmt.Errorf("%w: %d", ErrEncodedLength, n)
	}
	values := make([]float64, n)
	for i := range values {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, fmt.Errorf("read value %d of %d: %w", i, n, err)
		}
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
	}
	return values, nil
}

// EncodeFloat64Blob packs values without a length prefix (for database blobs).
func EncodeFloat64Blob(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeFloat64Blob is the inverse of EncodeFloat64Blob. Trailing bytes that
// do not form a full value are ignored.
func DecodeFloat64Blob(b []byte) []float64 {
	values := make([]float64, len(b)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return values
}

// PrintBitsIEEE prints values as IEEE-754 hex next to their decimal form,
// which makes bit-exact comparisons across runs easy to eyeball.
func PrintBitsIEEE(v *Vector, title string) {
	fmt.Print("\033[38;5;208m")
	fmt.Println(MatrixLine)
	fmt.Println(title, "(IEEE754)")
	for i, val := range v.Values {
		fmt.Printf("[%03d]  % .17e  %016X\n", i, val, ToIEEE754(val))
	}
	fmt.Println(MatrixLine)
	fmt.Print("\033[0m")
}
