package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// concatenated matches the seam between two objects written back to back.
// A seam inside a string value would be rewritten as well; exports that
// need this repair have never contained one.
var concatenated = regexp.MustCompile(`}\s*{`)

// decodeJSON tries, in order: one JSON value, newline-delimited objects,
// and concatenated objects repaired into an array. The first that parses wins.
func decodeJSON(r io.Reader) (*core.Dataset, error) {
	text, counter := wrapText(r)
	data, err := io.ReadAll(text)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errEmpty("JSON value")
	}

	objs, err := parseSingle(data)
	format := FormatJSON
	if err != nil {
		objs, err = parseLines(data)
		format = FormatNDJSON
	}
	if err != nil {
		repaired := append([]byte{'['}, concatenated.ReplaceAll(data, []byte("},{"))...)
		objs, err = parseSingle(append(repaired, ']'))
		format = FormatJSONRepaired
	}
	if err != nil {
		return nil, err
	}

	d := newDataset(format)
	for _, obj := range objs {
		d.add(record(d, obj))
	}
	return d.done(counter.n), nil
}

// parseSingle decodes exactly one value: an object or an array of objects.
func parseSingle(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}

	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		objs := make([]map[string]any, 0, len(t))
		for i, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is not an object", i)
			}
			objs = append(objs, obj)
		}
		return objs, nil
	default:
		return nil, fmt.Errorf("top-level value is %T, want object or array", v)
	}
}

// parseLines decodes one object per non-empty line.
func parseLines(data []byte) ([]map[string]any, error) {
	var objs []map[string]any
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("line %d: more than one value", i+1)
		}
		objs = append(objs, obj)
	}
	if len(objs) == 0 {
		return nil, errEmpty("JSON lines")
	}
	return objs, nil
}

// record converts one object. Keys are visited in sorted order so that the
// winner of a canonical name collision does not depend on map iteration.
func record(d *dataset, obj map[string]any) core.RawRecord {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rec := make(core.RawRecord, len(obj))
	for _, k := range keys {
		name := core.CanonicalName(k)
		if name == "" {
			continue
		}
		if _, taken := rec[name]; taken {
			continue
		}
		d.field(k)
		rec[name] = scalar(obj[k])
	}
	return rec
}

func scalar(v any) pgtype.Text {
	switch t := v.(type) {
	case nil:
		return pgtype.Text{}
	case string:
		return cell(t)
	case json.Number:
		return pgtype.Text{String: t.String(), Valid: true}
	case bool:
		if t {
			return pgtype.Text{String: "true", Valid: true}
		}
		return pgtype.Text{String: "false", Valid: true}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return pgtype.Text{}
		}
		return pgtype.Text{String: string(b), Valid: true}
	}
}
