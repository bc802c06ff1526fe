package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/banksight/internal/core"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

// MaxListLimit is the largest page List returns.
const MaxListLimit = 1000

// FilterOp is the comparison a Filter applies.
type FilterOp string

const (
	FilterEq  FilterOp = "eq"
	FilterMin FilterOp = "min"
	FilterMax FilterOp = "max"
)

// Filter narrows List. Eq matches a column exactly; Min and Max bound a
// numeric column inclusively. Date values may be written in any format the
// cleaner accepts.
type Filter struct {
	Column string
	Op     FilterOp
	Value  string
}

// List returns up to limit rows of table ordered by key, keeping only rows
// that match every filter.
func (s *Store) List(ctx context.Context, table string, limit int, filters ...Filter) (*core.Result, error) {
	def, err := s.reg.Lookup(table)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	where, args, err := whereClause(def, filters)
	if err != nil {
		return nil, err
	}
	args = append(args, limit)

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d",
		strings.Join(quoteColumns(def.Info.Columns), ", "),
		quoteIdentifier(table),
		where,
		quoteIdentifier(def.KeyField()),
		len(args),
	)
	return s.Query(ctx, query, args...)
}

// whereClause builds a WHERE clause with one placeholder per filter.
func whereClause(def core.EntityDefinition, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		spec, ok := def.Field(f.Column)
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown filter column %q for %s", core.ErrInvalidRequest, f.Column, def.Info.Key)
		}
		value := strings.TrimSpace(f.Value)
		placeholder := fmt.Sprintf("$%d", len(args)+1)

		if spec.Type.IsNumeric() {
			n := core.ParseNumeric(value)
			if !n.Valid {
				return "", nil, fmt.Errorf("%w: filter %s: %q is not a number", core.ErrInvalidRequest, f.Column, f.Value)
			}
			var cmp string
			switch f.Op {
			case FilterEq:
				cmp = "="
			case FilterMin:
				cmp = ">="
			case FilterMax:
				cmp = "<="
			default:
				return "", nil, fmt.Errorf("%w: unknown filter operator %q", core.ErrInvalidRequest, f.Op)
			}
			conds = append(conds, fmt.Sprintf("%s %s %s::float8", quoteIdentifier(f.Column), cmp, placeholder))
			args = append(args, n.Float64)
			continue
		}

		if f.Op != FilterEq {
			return "", nil, fmt.Errorf("%w: filter %s: %s applies to numeric columns only", core.ErrInvalidRequest, f.Column, f.Op)
		}
		if !isSentinel(value) {
			switch spec.Type {
			case core.FieldDate:
				d := core.NormalizeDate(value)
				if !d.Valid {
					return "", nil, fmt.Errorf("%w: filter %s: %q is not a date", core.ErrInvalidRequest, f.Column, f.Value)
				}
				value = d.String
			case core.FieldTimestamp:
				ts := core.NormalizeTimestamp(value)
				if !ts.Valid {
					return "", nil, fmt.Errorf("%w: filter %s: %q is not a timestamp", core.ErrInvalidRequest, f.Column, f.Value)
				}
				value = ts.String
			}
		}
		conds = append(conds, fmt.Sprintf("%s = %s", quoteIdentifier(f.Column), placeholder))
		args = append(args, value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Get returns the row with the given key. A missing row is an empty result,
// not an error.
func (s *Store) Get(ctx context.Context, table, key string) (*core.Result, error) {
	def, err := s.reg.Lookup(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(quoteColumns(def.Info.Columns), ", "),
		quoteIdentifier(table),
		quoteIdentifier(def.KeyField()),
	)
	return s.Query(ctx, query, key)
}

// Insert adds one row and returns its key. The row passes through the same
// entity rules as the batch cleaner, so card numbers are masked and values a
// rule would drop are rejected. Tables with generated keys receive a new UUID
// when the key is omitted.
func (s *Store) Insert(ctx context.Context, table string, values map[string]string) (string, error) {
	def, err := s.reg.Lookup(table)
	if err != nil {
		return "", err
	}
	keyField := def.KeyField()

	row := make(map[string]string, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	key := strings.TrimSpace(row[keyField])
	if key == "" {
		if !def.Info.GeneratedKey {
			return "", fmt.Errorf("%w: %s is required for %s", core.ErrInvalidRequest, keyField, table)
		}
		key = uuid.NewString()
	}
	row[keyField] = key

	cols, args, err := bindColumns(def, row)
	if err != nil {
		return "", err
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table),
		strings.Join(quoteColumns(cols), ", "),
		strings.Join(placeholders, ", "),
	)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", &core.StoreError{Table: table, Op: "insert", Err: err}
	}
	return key, nil
}

// Update overlays values on the row with key and writes it back after the
// entity rules have run over the merged row. The key cannot change.
func (s *Store) Update(ctx context.Context, table, key string, values map[string]string) error {
	def, err := s.reg.Lookup(table)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: no columns to update", core.ErrInvalidRequest)
	}
	if err := checkColumns(def, values); err != nil {
		return err
	}
	keyField := def.KeyField()
	if v, ok := values[keyField]; ok && strings.TrimSpace(v) != key {
		return fmt.Errorf("%w: %s cannot be changed", core.ErrInvalidRequest, keyField)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &core.StoreError{Table: table, Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	row, err := currentRow(ctx, tx, def, key)
	if err != nil {
		return err
	}
	for k, v := range values {
		row[k] = v
	}

	cols, args, err := bindColumns(def, row)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(cols))
	setArgs := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if col == keyField {
			continue
		}
		setArgs = append(setArgs, args[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col), len(setArgs)))
	}
	setArgs = append(setArgs, key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quoteIdentifier(table),
		strings.Join(sets, ", "),
		quoteIdentifier(keyField),
		len(setArgs),
	)
	tag, err := tx.Exec(ctx, query, setArgs...)
	if err != nil {
		return &core.StoreError{Table: table, Op: "update", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: table, Key: key}
	}
	if err := tx.Commit(ctx); err != nil {
		return &core.StoreError{Table: table, Op: "commit", Err: err}
	}
	return nil
}

// currentRow reads the row with key as text, locking it for the update.
// Null columns are absent from the result.
func currentRow(ctx context.Context, tx pgx.Tx, def core.EntityDefinition, key string) (map[string]string, error) {
	cols := make([]string, len(def.FieldSpecs))
	dest := make([]any, len(def.FieldSpecs))
	vals := make([]pgtype.Text, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		cols[i] = quoteIdentifier(spec.Name) + "::text"
		dest[i] = &vals[i]
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE",
		strings.Join(cols, ", "),
		quoteIdentifier(def.Info.Key),
		quoteIdentifier(def.KeyField()),
	)
	err := tx.QueryRow(ctx, query, key).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: def.Info.Key, Key: key}
	}
	if err != nil {
		return nil, &core.StoreError{Table: def.Info.Key, Op: "select", Err: err}
	}

	row := make(map[string]string, len(vals))
	for i, spec := range def.FieldSpecs {
		if vals[i].Valid {
			row[spec.Name] = vals[i].String
		}
	}
	return row, nil
}

// Delete removes the row with key.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	def, err := s.reg.Lookup(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdentifier(table), quoteIdentifier(def.KeyField()))

	tag, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return &core.StoreError{Table: table, Op: "delete", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: table, Key: key}
	}
	return nil
}

// checkColumns rejects names that are not columns of def.
func checkColumns(def core.EntityDefinition, values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := def.Field(name); !ok {
			return fmt.Errorf("%w: unknown column %q for %s", core.ErrInvalidRequest, name, def.Info.Key)
		}
	}
	return nil
}

// bindColumns cleans a complete row with the entity rules and converts every
// column, in declared order, to the value bound for it.
func bindColumns(def core.EntityDefinition, values map[string]string) ([]string, []any, error) {
	if err := checkColumns(def, values); err != nil {
		return nil, nil, err
	}
	cleaned, err := core.CleanRow(def, values)
	if err != nil {
		return nil, nil, err
	}

	cols := make([]string, len(def.FieldSpecs))
	args := make([]any, len(def.FieldSpecs))
	for i, spec := range def.FieldSpecs {
		cols[i] = spec.Name
		args[i] = toColumnValue(spec, cleaned[spec.Name])
	}
	return cols, args, nil
}
