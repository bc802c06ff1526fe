package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Sentinel replaces residual nulls in text and date fields.
const Sentinel = "Unknown"

// FieldType represents the canonical type of an entity field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldTimestamp
	FieldNumeric
	FieldInteger
)

// String returns the lowercase name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldDate:
		return "date"
	case FieldTimestamp:
		return "timestamp"
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	default:
		return "text"
	}
}

// IsNumeric reports whether values of this type are coerced to numbers.
// Numeric fields are exempt from the sentinel fill.
func (t FieldType) IsNumeric() bool {
	return t == FieldNumeric || t == FieldInteger
}

// FieldSpec defines the cleaning and storage rules for a single field.
type FieldSpec struct {
	Name       string    // Canonical column name: lowercase, underscores
	Type       FieldType // Coercion target
	Key        bool      // Primary key; exactly one per entity
	TitleCase  bool      // Title-cased after domain rules
	Money      bool      // Written with two decimals
	References string    // Parent table for a foreign key, empty for none

	// Normalizer rewrites the trimmed value during the domain-rule step.
	// It receives nulls too, so it can map them to a fixed value.
	Normalizer func(pgtype.Text) pgtype.Text
}

// EntityInfo contains descriptive information about an entity.
type EntityInfo struct {
	Key          string   // Table name: "customers"
	Label        string   // Display name: "Customers"
	Sources      []string // Raw file names in preference order
	GeneratedKey bool     // Insert may omit the key; one is generated
	Columns      []string // Canonical column order, filled from FieldSpecs
}

// Record is a cleaned, typed entity row.
type Record interface {
	// Key returns the primary key value.
	Key() string
	// Row returns the record's values in canonical column order.
	Row() []string
}

// DropRule decides whether a coerced row violates a business rule.
type DropRule func(r *Row) (DropReason, bool)

// DeriveFunc computes derived fields and applies clamps and defaults.
type DeriveFunc func(r *Row)

// BuildFunc converts a fully normalized row into a typed record.
type BuildFunc func(r *Row) Record

// EntityDefinition contains everything needed to clean and store an entity.
type EntityDefinition struct {
	Info       EntityInfo
	FieldSpecs []FieldSpec
	Drop       DropRule
	Derive     DeriveFunc
	Build      BuildFunc
}

// KeyField returns the name of the primary key field.
func (d EntityDefinition) KeyField() string {
	for _, spec := range d.FieldSpecs {
		if spec.Key {
			return spec.Name
		}
	}
	return ""
}

// Field returns the spec for a column name.
func (d EntityDefinition) Field(name string) (FieldSpec, bool) {
	for _, spec := range d.FieldSpecs {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// RawRecord maps canonical field names to nullable raw values.
type RawRecord map[string]pgtype.Text

// Dataset is the ordered output of the format loader for one file.
type Dataset struct {
	Name    string // Base file name
	Source  string // Full path, if read from disk
	Format  string // csv, json, ndjson, json-repaired, xlsx
	Bytes   int64  // Bytes consumed from the source
	Fields  []string
	Records []RawRecord
}

// DropReason names the business rule that excluded a row.
type DropReason string

// DropMissingKey is recorded when a row has no primary key after trimming.
const DropMissingKey DropReason = "missing_key"

// Stats summarizes one entity's normalization run.
type Stats struct {
	InputRows         int                `json:"input_rows"`
	DuplicatesDropped int                `json:"duplicates_dropped"`
	ValidationDropped int                `json:"validation_dropped"`
	DroppedBy         map[DropReason]int `json:"dropped_by,omitempty"`
	CoercionNulls     int                `json:"coercion_nulls"`
	NullTotal         int                `json:"null_total"`
	SentinelFilled    int                `json:"sentinel_filled"`
	RowsWritten       int                `json:"rows_written"`
}

// Cleaned is the typed output of normalizing one dataset.
type Cleaned struct {
	Entity  string
	Header  []string
	Records []Record
	Stats   Stats
}

// Rows returns every record as a string row in header order.
func (c *Cleaned) Rows() [][]string {
	rows := make([][]string, len(c.Records))
	for i, rec := range c.Records {
		rows[i] = rec.Row()
	}
	return rows
}

// Result is a tabular query result.
// Values are normalized to int64, float64, string, bool, or nil.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Maps returns the rows as column-keyed maps.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, 0, r.Len())
	if r == nil {
		return out
	}
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
