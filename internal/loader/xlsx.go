package loader

import (
	"fmt"
	"io"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first worksheet; its first row is the header.
func decodeXLSX(r io.Reader) (*core.Dataset, error) {
	counter := &countingReader{r: r}
	f, err := excelize.OpenReader(counter)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmpty("worksheet")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	d := newDataset(FormatXLSX)
	var names []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
		}
		if names == nil {
			names = make([]string, len(cols))
			for i, h := range cols {
				if name, owns := d.field(h); owns {
					names[i] = name
				}
			}
			continue
		}
		if isBlank(cols) {
			continue
		}

		rec := make(core.RawRecord, len(d.fields))
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(cols) {
				rec[name] = cell(cols[i])
			} else {
				rec[name] = cell("")
			}
		}
		d.add(rec)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if names == nil {
		return nil, errEmpty("header row")
	}

	return d.done(counter.n), nil
}
