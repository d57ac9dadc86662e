// Package results records online solves in a SQLite database so that sweeps
// and single evaluations can be inspected after the fact.
package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
)

const schema = `
CREATE TABLE IF NOT EXISTS solves (
	id            TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	params        BLOB,
	n             INTEGER NOT NULL,
	bound         REAL NOT NULL,
	solution      BLOB,
	outputs_json  TEXT NOT NULL,
	bounds_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS solves_model_created ON solves(model, created_at);
`

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one stored solve.
type Record struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	rb.Result
}

// Store manages solve records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores res under model and returns the new record.
func (s *Store) Save(model string, res rb.Result) (Record, error) {
	rec := Record{ID: uuid.New().String(), Model: model, CreatedAt: time.Now().UTC(), Result: res}
	outputs, err := json.Marshal(nonNil(res.Outputs))
	if err != nil {
		return Record{}, fmt.Errorf("marshal outputs: %w", err)
	}
	bounds, err := json.Marshal(nonNil(res.OutputBounds))
	if err != nil {
		return Record{}, fmt.Errorf("marshal output bounds: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO solves (id, model, params, n, bound, solution, outputs_json, bounds_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, model, matrix.EncodeFloat64Blob(res.Params), res.N, res.Bound,
		matrix.EncodeFloat64Blob(res.Solution), string(outputs), string(bounds),
		rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert solve: %w", err)
	}
	return rec, nil
}

// Get returns the record with the given id, or sql.ErrNoRows.
func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT id, model, params, n, bound, solution, outputs_json, bounds_json, created_at
		 FROM solves WHERE id = ?`, id)
	return scanRecord(row)
}

// List returns the most recent records of model, newest first. An empty
// model lists every model. limit <= 0 means 100.
func (s *Store) List(model string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, model, params, n, bound, solution, outputs_json, bounds_json, created_at
		 FROM solves WHERE ? = '' OR model = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, model, model, limit)
	if err != nil {
		return nil, fmt.Errorf("query solves: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec                 Record
		params, solution    []byte
		outputs, bounds, at string
	)
	if err := sc.Scan(&rec.ID, &rec.Model, &params, &rec.N, &rec.Bound, &solution, &outputs, &bounds, &at); err != nil {
		return Record{}, err
	}
	rec.Params = theta.Parameters(matrix.DecodeFloat64Blob(params))
	rec.Solution = matrix.DecodeFloat64Blob(solution)
	if err := json.Unmarshal([]byte(outputs), &rec.Outputs); err != nil {
		return Record{}, fmt.Errorf("unmarshal outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(bounds), &rec.OutputBounds); err != nil {
		return Record{}, fmt.Errorf("unmarshal output bounds: %w", err)
	}
	t, err := time.Parse(timeFormat, at)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
