package core

// normalize.go implements the cleaning skeleton shared by every entity.
//
// Steps run in a fixed order and later steps assume earlier ones:
//
//  1. canonical field names
//  2. de-duplication on the key, first occurrence wins
//  3. whitespace trimming; empty cells and null tokens become null
//  4. numeric, date and timestamp coercion (unparseable values become null)
//  5. domain rules: drop predicate, per-field normalizers, derived fields
//  6. title-casing of descriptive fields
//  7. sentinel fill of remaining nulls in text and date fields
//
// Numeric fields are never sentinel-filled; a null number stays null.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Row is the working state of one record inside the normalizer.
// Text, date and timestamp fields live in text; numeric fields in num.
type Row struct {
	text map[string]pgtype.Text
	num  map[string]pgtype.Float8
}

func newRow(n int) *Row {
	return &Row{
		text: make(map[string]pgtype.Text, n),
		num:  make(map[string]pgtype.Float8, n),
	}
}

// Text returns a text, date or timestamp field.
func (r *Row) Text(name string) pgtype.Text { return r.text[name] }

// SetText replaces a text, date or timestamp field.
func (r *Row) SetText(name string, v pgtype.Text) { r.text[name] = v }

// Num returns a numeric field.
func (r *Row) Num(name string) pgtype.Float8 { return r.num[name] }

// SetNum replaces a numeric field.
func (r *Row) SetNum(name string, v pgtype.Float8) { r.num[name] = v }

// Str returns a text field's value, or "" when null.
func (r *Row) Str(name string) string { return r.text[name].String }

// Int4 returns a numeric field rounded to an integer.
func (r *Row) Int4(name string) pgtype.Int4 { return Float8ToInt4(r.num[name]) }

// Clamp bounds a numeric field into [lo, hi]. Nulls are left alone.
func (r *Row) Clamp(name string, lo, hi float64) {
	v := r.num[name]
	if !v.Valid {
		return
	}
	if v.Float64 < lo {
		v.Float64 = lo
	}
	if v.Float64 > hi {
		v.Float64 = hi
	}
	r.num[name] = v
}

// NewRow builds a Row from already-typed values. Used by tests and callers
// that need to run a single entity rule in isolation.
func NewRow(text map[string]string, num map[string]float64) *Row {
	r := newRow(len(text) + len(num))
	for k, v := range text {
		r.text[k] = pgtype.Text{String: v, Valid: true}
	}
	for k, v := range num {
		r.num[k] = pgtype.Float8{Float64: v, Valid: true}
	}
	return r
}

// Normalize cleans a dataset according to def.
// It is deterministic: identical input yields identical records and stats.
func Normalize(def EntityDefinition, ds *Dataset) *Cleaned {
	keyField := def.KeyField()
	stats := Stats{DroppedBy: make(map[DropReason]int)}
	out := &Cleaned{
		Entity: def.Info.Key,
		Header: def.Info.Columns,
	}
	if len(out.Header) == 0 {
		for _, spec := range def.FieldSpecs {
			out.Header = append(out.Header, spec.Name)
		}
	}

	var records []RawRecord
	if ds != nil {
		records = ds.Records
	}
	stats.InputRows = len(records)
	seen := make(map[string]struct{}, len(records))

	for _, raw := range records {
		rec := canonicalize(raw)

		// Keys are compared trimmed so " C1" and "C1" cannot both reach the store.
		if key := rec[keyField]; key.Valid {
			k := strings.TrimSpace(key.String)
			if k != "" {
				if _, dup := seen[k]; dup {
					stats.DuplicatesDropped++
					continue
				}
				seen[k] = struct{}{}
			}
		}

		row := newRow(len(def.FieldSpecs))
		for _, spec := range def.FieldSpecs {
			if !row.coerce(spec, trimText(rec[spec.Name])) {
				stats.CoercionNulls++
			}
		}

		if !row.text[keyField].Valid {
			stats.drop(DropMissingKey)
			continue
		}
		if def.Drop != nil {
			if reason, drop := def.Drop(row); drop {
				stats.drop(reason)
				continue
			}
		}
		out.Records = append(out.Records, finish(def, row, &stats))
	}

	stats.RowsWritten = len(out.Records)
	out.Stats = stats
	return out
}

// CleanRow applies the entity rules to one row written outside the batch
// path, such as an API insert. Absent columns are null. Where Normalize
// nulls an unparseable value or drops a row, CleanRow fails with an error
// wrapping ErrInvalidRequest that names the column or rule. The result holds
// every column in the same form the cleaned CSV would.
func CleanRow(def EntityDefinition, values map[string]string) (map[string]string, error) {
	row := newRow(len(def.FieldSpecs))
	for _, spec := range def.FieldSpecs {
		v := trimText(pgtype.Text{String: values[spec.Name], Valid: true})
		// Stored rows carry the sentinel in date fields; reading one back is a null.
		if spec.Type != FieldText && v.Valid && strings.EqualFold(v.String, Sentinel) {
			v = pgtype.Text{}
		}
		if !row.coerce(spec, v) {
			return nil, fmt.Errorf("%w: %s: cannot read %q as %s", ErrInvalidRequest, spec.Name, v.String, spec.Type)
		}
	}

	keyField := def.KeyField()
	if !row.text[keyField].Valid {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidRequest, keyField)
	}
	if def.Drop != nil {
		if reason, drop := def.Drop(row); drop {
			return nil, fmt.Errorf("%w: %s rejected: %s", ErrInvalidRequest, def.Info.Key, reason)
		}
	}

	var stats Stats
	cells := finish(def, row, &stats).Row()
	out := make(map[string]string, len(cells))
	for i, spec := range def.FieldSpecs {
		if i < len(cells) {
			out[spec.Name] = cells[i]
		}
	}
	return out, nil
}

// coerce parses v into the row according to spec.Type. It reports false
// when a present value could not be parsed; the field is then null.
func (r *Row) coerce(spec FieldSpec, v pgtype.Text) bool {
	switch spec.Type {
	case FieldNumeric, FieldInteger:
		n := pgtype.Float8{}
		if v.Valid {
			n = ParseNumeric(v.String)
		}
		r.num[spec.Name] = n
		return !v.Valid || n.Valid
	case FieldDate, FieldTimestamp:
		d := pgtype.Text{}
		if v.Valid {
			if spec.Type == FieldDate {
				d = NormalizeDate(v.String)
			} else {
				d = NormalizeTimestamp(v.String)
			}
		}
		r.text[spec.Name] = d
		return !v.Valid || d.Valid
	default:
		r.text[spec.Name] = v
		return true
	}
}

// finish runs the steps after the drop predicate: normalizers, derived
// fields, title-casing and the sentinel fill.
func finish(def EntityDefinition, row *Row, stats *Stats) Record {
	for _, spec := range def.FieldSpecs {
		if spec.Normalizer != nil {
			row.text[spec.Name] = spec.Normalizer(row.text[spec.Name])
		}
	}
	if def.Derive != nil {
		def.Derive(row)
	}

	for _, spec := range def.FieldSpecs {
		if spec.TitleCase {
			if v := row.text[spec.Name]; v.Valid {
				row.text[spec.Name] = pgtype.Text{String: TitleCase(v.String), Valid: true}
			}
		}
	}

	for _, spec := range def.FieldSpecs {
		if spec.Type.IsNumeric() {
			if !row.num[spec.Name].Valid {
				stats.NullTotal++
			}
			continue
		}
		if !row.text[spec.Name].Valid {
			stats.NullTotal++
			stats.SentinelFilled++
			row.text[spec.Name] = pgtype.Text{String: Sentinel, Valid: true}
		}
	}
	return def.Build(row)
}

func (s *Stats) drop(reason DropReason) {
	s.ValidationDropped++
	s.DroppedBy[reason]++
}

// canonicalize rewrites field names. When two raw names collapse to the same
// canonical name, the lexically first raw name wins.
func canonicalize(raw RawRecord) RawRecord {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(RawRecord, len(raw))
	for _, k := range keys {
		name := CanonicalName(k)
		if _, exists := out[name]; !exists {
			out[name] = raw[k]
		}
	}
	return out
}

func trimText(v pgtype.Text) pgtype.Text {
	if !v.Valid {
		return v
	}
	s := strings.TrimSpace(v.String)
	if IsNullToken(s) {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
