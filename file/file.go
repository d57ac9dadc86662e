// Package file provides helpers for persisting configuration, sweep outputs,
// and full-order basis vectors to disk.
package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CK6170/rbeval-go/matrix"
	models "github.com/CK6170/rbeval-go/models"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
	ui "github.com/CK6170/rbeval-go/ui"
)

// Config re-exports the configuration model so callers only importing
// `file` can name it.
type Config = models.Config

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadConfig reads a YAML (or, by extension, JSON) configuration file,
// applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if isJSON(path) {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// Relative paths are resolved against the config file.
	base := filepath.Dir(path)
	cfg.Bundle.Dir = resolve(base, cfg.Bundle.Dir)
	cfg.Bundle.BasisDir = resolve(base, cfg.Bundle.BasisDir)
	cfg.Results.Path = resolve(base, cfg.Results.Path)
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// SaveConfig writes cfg as YAML, or JSON when path ends in .json.
func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// OpenModel builds the expansion and bound policy described by cfg and reads
// the offline bundle, plus the basis when cfg names a basis directory. The
// parameter domain of cfg replaces the one stored in the bundle.
func OpenModel(cfg *Config, logger *slog.Logger) (*rb.Evaluation, error) {
	exp, ranges, err := theta.FromSpec(cfg.Theta)
	if err != nil {
		return nil, err
	}
	policy, err := rb.PolicyFromConfig(cfg.Bound, exp)
	if err != nil {
		return nil, err
	}
	e := rb.New(rb.WithExpansion(exp), rb.WithBoundPolicy(policy), rb.WithLogger(logger))
	e.EvaluateErrorBound = !cfg.Bound.Disabled
	if err := e.ReadOfflineData(cfg.Bundle.Dir); err != nil {
		return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
	}
	if len(ranges) > 0 {
		e.SetRanges(ranges)
	}
	if cfg.Bundle.BasisDir != "" {
		vio := VectorFile{NDofs: cfg.Bundle.NDofs}
		if err := e.ReadBasisFunctions(vio, cfg.Bundle.BasisDir, cfg.Bundle.BinaryBasis); err != nil {
			return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
		}
	}
	return e, nil
}

// AppendToFile appends content + newline to file, creating it if it does not
// exist.
func AppendToFile(file, content string) {
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		ui.Warningf("Warning: failed to open file for append: %v\n", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content + "\n"); err != nil {
		ui.Warningf("Warning: failed to write to file: %v\n", err)
	}
}

// RecordData formats vec for display and returns debug with the CSV line of
// vec appended.
//
// Bound vectors are highlighted in orange.
func RecordData(debug string, vec *matrix.Vector, title, format string) string {
	text, csv := vec.ToStrings(title, format)
	if strings.Contains(strings.ToLower(title), "bound") {
		fmt.Print("\033[38;5;208m")
		fmt.Println(text)
		fmt.Print("\033[0m")
	} else {
		fmt.Println(text)
	}
	return debug + csv + "\n"
}

// VectorFile reads and writes full-order vectors.
//
// Binary files hold a little-endian uint64 length followed by the IEEE-754
// float64 bits; text files hold one shortest round-trip value per line.
// A non-zero NDofs makes every read and write check the vector length.
type VectorFile struct {
	NDofs int
}

func (f VectorFile) check(path string, n int) error {
	if f.NDofs > 0 && n != f.NDofs {
		return fmt.Errorf("%s: vector length %d, want %d", path, n, f.NDofs)
	}
	return nil
}

// WriteVector implements rb.VectorIO.
func (f VectorFile) WriteVector(path string, v []float64, binary bool) error {
	if err := f.check(path, len(v)); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if binary {
		err = matrix.EncodeFloat64s(out, v)
	} else {
		w := bufio.NewWriter(out)
		for _, x := range v {
			if _, err = w.WriteString(matrix.FormatFloat(x) + "\n"); err != nil {
				break
			}
		}
		if err == nil {
			err = w.Flush()
		}
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadVector implements rb.VectorIO.
func (f VectorFile) ReadVector(path string, binary bool) ([]float64, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	var v []float64
	if binary {
		v, err = matrix.DecodeFloat64s(in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		sc := bufio.NewScanner(in)
		for line := 1; sc.Scan(); line++ {
			s := strings.TrimSpace(sc.Text())
			if s == "" {
				continue
			}
			x, err := matrix.ParseFloat(s)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			v = append(v, x)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	if err := f.check(path, len(v)); err != nil {
		return nil, err
	}
	if !matrix.NewVectorFrom(v).IsFinite() {
		return nil, fmt.Errorf("%s: non-finite entry", path)
	}
	return v, nil
}
