// Package store is the relational home of the cleaned entities.
//
// Tables mirror the entity registry: one table per entity, one column per
// field, the entity key as primary key. Every operation takes its own
// connection from the pool.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool the store uses.
type Pool interface {
	core.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

// Store runs schema, load, query and row operations against PostgreSQL.
type Store struct {
	pool Pool
	reg  *core.Registry
}

// New creates a store over pool for the entities in reg.
func New(pool Pool, reg *core.Registry) *Store {
	return &Store{pool: pool, reg: reg}
}

// Registry returns the entity registry backing the schema.
func (s *Store) Registry() *core.Registry {
	return s.reg
}

// Query runs a read-only statement and returns its rows with values
// normalized to int64, float64, string, bool or nil.
func (s *Store) Query(ctx context.Context, sql string, args ...any) (*core.Result, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}
	defer tx.Rollback(ctx)

	result, err := collect(ctx, tx, sql, args...)
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}
	return result, nil
}

// Execute runs one statement outside any caller transaction and returns the
// number of rows it affected.
func (s *Store) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, &core.StoreError{Op: "execute", Err: err}
	}
	return tag.RowsAffected(), nil
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Label string `json:"label"`
	Rows  int64  `json:"rows"`
}

// Counts returns the row count of every table in load order.
func (s *Store) Counts(ctx context.Context) ([]TableCount, error) {
	defs := s.reg.All()
	counts := make([]TableCount, 0, len(defs))
	for _, def := range defs {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(def.Info.Key))
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, &core.StoreError{Table: def.Info.Key, Op: "count", Err: err}
		}
		counts = append(counts, TableCount{Table: def.Info.Key, Label: def.Info.Label, Rows: n})
	}
	return counts, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collect(ctx context.Context, q querier, sql string, args ...any) (*core.Result, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &core.Result{Columns: columnNames(rows.FieldDescriptions()), Rows: [][]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func columnNames(fields []pgconn.FieldDescription) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
	}
	return quoted
}
