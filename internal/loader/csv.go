package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/banksight/internal/core"
)

// decodeCSV reads a delimited file whose first row is the header.
// Short rows are padded with nulls and long rows truncated to the header.
func decodeCSV(r io.Reader) (*core.Dataset, error) {
	text, counter := wrapText(r)

	cr := csv.NewReader(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmpty("header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	d := newDataset(FormatCSV)
	names := make([]string, len(header))
	for i, h := range header {
		if name, owns := d.field(h); owns {
			names[i] = name
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		rec := make(core.RawRecord, len(d.fields))
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(row) {
				rec[name] = cell(row[i])
			} else {
				rec[name] = cell("")
			}
		}
		d.add(rec)
	}

	return d.done(counter.n), nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
