// Package loader reads raw entity exports into datasets.
//
// CSV, JSON (including newline-delimited and concatenated objects) and XLSX
// sources are supported. Every dataset leaves the loader with canonical field
// names and null tokens already mapped to null.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Formats reported in core.Dataset.Format.
const (
	FormatCSV          = "csv"
	FormatJSON         = "json"
	FormatNDJSON       = "ndjson"
	FormatJSONRepaired = "json-repaired"
	FormatXLSX         = "xlsx"
)

// Load opens path and decodes it according to its extension.
func Load(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.FormatError{Path: path, Format: formatFromExt(path), Err: err}
	}
	defer f.Close()

	ds, err := Decode(filepath.Base(path), f)
	if err != nil {
		return nil, withPath(err, path)
	}
	ds.Source = path
	return ds, nil
}

// Decode reads a source named name from r. The extension of name picks the
// decoder; an unknown extension falls back to sniffing the first bytes.
func Decode(name string, r io.Reader) (*core.Dataset, error) {
	format := formatFromExt(name)
	if format == "" {
		br := bufio.NewReader(r)
		format = sniff(br)
		r = br
	}

	var (
		ds  *core.Dataset
		err error
	)
	switch format {
	case FormatCSV:
		ds, err = decodeCSV(r)
	case FormatJSON:
		ds, err = decodeJSON(r)
	case FormatXLSX:
		ds, err = decodeXLSX(r)
	}
	if err != nil {
		return nil, &core.FormatError{Path: name, Format: format, Err: err}
	}
	ds.Name = name
	return ds, nil
}

func formatFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	}
	return ""
}

// sniff guesses a format from leading content: a zip header means xlsx,
// a brace or bracket means JSON, anything else is treated as CSV.
func sniff(br *bufio.Reader) string {
	head, _ := br.Peek(512)
	if bytes.HasPrefix(head, []byte("PK\x03\x04")) {
		return FormatXLSX
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatCSV
}

func withPath(err error, path string) error {
	if fe, ok := err.(*core.FormatError); ok {
		fe.Path = path
		return fe
	}
	return err
}

// dataset collects records under canonical field names. When two source
// columns canonicalize to the same name the first column wins.
type dataset struct {
	fields []string
	index  map[string]int
	ds     *core.Dataset
}

func newDataset(format string) *dataset {
	return &dataset{
		index: make(map[string]int),
		ds:    &core.Dataset{Format: format},
	}
}

// field registers a raw column name and returns its canonical form and
// whether this column owns that name.
func (d *dataset) field(raw string) (string, bool) {
	name := core.CanonicalName(raw)
	if name == "" {
		return "", false
	}
	if _, ok := d.index[name]; ok {
		return name, false
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, name)
	return name, true
}

func (d *dataset) add(rec core.RawRecord) {
	d.ds.Records = append(d.ds.Records, rec)
}

func (d *dataset) done(n int64) *core.Dataset {
	d.ds.Fields = d.fields
	d.ds.Bytes = n
	return d.ds
}

// cell converts a raw cell to a nullable value.
func cell(s string) pgtype.Text {
	if core.IsNullToken(s) {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func errEmpty(what string) error {
	return fmt.Errorf("no %s found", what)
}
