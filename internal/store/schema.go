package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/banksight/internal/core"
)

// columnType maps a field type to its column type. Dates and timestamps are
// stored as canonical text so the "Unknown" sentinel survives the round trip.
func columnType(t core.FieldType) string {
	switch t {
	case core.FieldNumeric:
		return "NUMERIC"
	case core.FieldInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// createTableSQL renders the CREATE TABLE statement for one entity.
func createTableSQL(reg *core.Registry, def core.EntityDefinition) string {
	var lines []string
	for _, spec := range def.FieldSpecs {
		line := quoteIdentifier(spec.Name) + " " + columnType(spec.Type)
		if spec.Key {
			line += " PRIMARY KEY"
		}
		lines = append(lines, line)
	}
	for _, spec := range def.FieldSpecs {
		if spec.References == "" {
			continue
		}
		parentKey := spec.Name
		if parent, ok := reg.Get(spec.References); ok {
			parentKey = parent.KeyField()
		}
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdentifier(spec.Name), quoteIdentifier(spec.References), quoteIdentifier(parentKey)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)",
		quoteIdentifier(def.Info.Key), strings.Join(lines, ",\n    "))
}

// schemaStatements returns drops for every table, dependents first, followed
// by creates in load order.
func schemaStatements(reg *core.Registry) []string {
	defs := reg.All()
	stmts := make([]string, 0, 2*len(defs))
	for _, def := range slices.Backward(defs) {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quoteIdentifier(def.Info.Key)))
	}
	for _, def := range defs {
		stmts = append(stmts, createTableSQL(reg, def))
	}
	return stmts
}

// RecreateSchema drops and recreates every table. All existing rows are lost.
// Running it twice leaves the same empty schema.
func (s *Store) RecreateSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &core.StoreError{Op: "recreate schema", Err: err}
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements(s.reg) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &core.StoreError{Op: "recreate schema", Err: fmt.Errorf("%s: %w", firstLine(stmt), err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &core.StoreError{Op: "recreate schema", Err: err}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
