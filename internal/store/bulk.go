package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5"
)

// LoadResult summarizes one bulk load.
type LoadResult struct {
	Table   string `json:"table"`
	Loaded  int64  `json:"loaded"`
	Skipped int    `json:"skipped"`
}

// projection maps table columns onto positions in a source header.
type projection struct {
	specs []core.FieldSpec
	index []int // -1 when the header lacks the column
	key   int   // position of the key column in the header
}

func project(def core.EntityDefinition, header []string) (*projection, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := core.CanonicalName(h)
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}

	p := &projection{specs: def.FieldSpecs, index: make([]int, len(def.FieldSpecs)), key: -1}
	for i, spec := range def.FieldSpecs {
		idx, ok := pos[spec.Name]
		if !ok {
			idx = -1
		}
		p.index[i] = idx
		if spec.Key {
			p.key = idx
		}
	}
	if p.key < 0 {
		return nil, fmt.Errorf("%w: header has no %q column", core.ErrInvalidRequest, def.KeyField())
	}
	return p, nil
}

func (p *projection) columns() []string {
	cols := make([]string, len(p.specs))
	for i, spec := range p.specs {
		cols[i] = spec.Name
	}
	return cols
}

// values converts one source row. ok is false when the key is empty.
func (p *projection) values(row []string) ([]any, bool) {
	if p.key >= len(row) || strings.TrimSpace(row[p.key]) == "" {
		return nil, false
	}
	out := make([]any, len(p.specs))
	for i, spec := range p.specs {
		s := ""
		if idx := p.index[i]; idx >= 0 && idx < len(row) {
			s = row[idx]
		}
		out[i] = toColumnValue(spec, s)
	}
	return out, true
}

// BulkLoad appends rows to table with the COPY protocol in one transaction.
// Header columns the table does not declare are ignored and declared columns
// missing from the header load as NULL. Rows with an empty key are skipped.
// On any failure nothing is written.
func (s *Store) BulkLoad(ctx context.Context, table string, header []string, rows [][]string) (LoadResult, error) {
	res := LoadResult{Table: table}

	def, err := s.reg.Lookup(table)
	if err != nil {
		return res, &core.StoreError{Table: table, Op: "bulk load", Err: err}
	}
	p, err := project(def, header)
	if err != nil {
		return res, &core.StoreError{Table: table, Op: "bulk load", Err: err}
	}

	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		v, ok := p.values(row)
		if !ok {
			res.Skipped++
			continue
		}
		values = append(values, v)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, &core.StoreError{Table: table, Op: "bulk load", Err: err}
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, p.columns(), pgx.CopyFromRows(values))
	if err != nil {
		return res, &core.StoreError{Table: table, Op: "bulk load", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return res, &core.StoreError{Table: table, Op: "bulk load", Err: err}
	}

	res.Loaded = n
	return res, nil
}

// LoadFile bulk loads a cleaned CSV file into table.
func (s *Store) LoadFile(ctx context.Context, table, path string) (LoadResult, error) {
	header, rows, err := readCleaned(path)
	if err != nil {
		return LoadResult{Table: table}, &core.StoreError{Table: table, Op: "load file", Err: err}
	}
	return s.BulkLoad(ctx, table, header, rows)
}

// readCleaned reads a cleaned CSV as written by the pipeline. Cleaned files
// carry no null tokens, so empty strings pass straight to BulkLoad.
func readCleaned(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
