package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

type testRecord struct {
	id, label, opened string
	amount            pgtype.Float8
}

func (r testRecord) Key() string { return r.id }

func (r testRecord) Row() []string {
	return []string{r.id, r.label, r.opened, FormatFloat(r.amount, true)}
}

const dropNegative DropReason = "negative_amount"

func testDefinition() EntityDefinition {
	return EntityDefinition{
		Info: EntityInfo{Key: "widgets", Label: "Widgets"},
		FieldSpecs: []FieldSpec{
			{Name: "widget_id", Type: FieldText, Key: true},
			{Name: "label", Type: FieldText, TitleCase: true},
			{Name: "opened", Type: FieldDate},
			{Name: "amount", Type: FieldNumeric, Money: true},
		},
		Drop: func(r *Row) (DropReason, bool) {
			if v := r.Num("amount"); v.Valid && v.Float64 < 0 {
				return dropNegative, true
			}
			return "", false
		},
		Build: func(r *Row) Record {
			return testRecord{
				id:     r.Str("widget_id"),
				label:  r.Str("label"),
				opened: r.Str("opened"),
				amount: r.Num("amount"),
			}
		},
	}
}

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func TestNormalize_Skeleton(t *testing.T) {
	ds := &Dataset{Records: []RawRecord{
		{"Widget ID": text("W1"), "Label": text("  blue widget "), "Opened": text("3/15/2023"), "Amount": text("$1,000")},
		{"widget_id": text("W1"), "label": text("duplicate"), "opened": text("2023-01-01"), "amount": text("5")},
		{"widget_id": text(" W1 "), "label": text("trimmed duplicate")},
		{"widget_id": text("W2"), "label": {}, "opened": text("garbage"), "amount": text("abc")},
		{"widget_id": text("W3"), "amount": text("-50")},
		{"widget_id": text("   "), "label": text("no key")},
	}}

	got := Normalize(testDefinition(), ds)

	wantRows := [][]string{
		{"W1", "Blue Widget", "2023-03-15", "1000.00"},
		{"W2", Sentinel, Sentinel, ""},
	}
	if !reflect.DeepEqual(got.Rows(), wantRows) {
		t.Errorf("Rows() = %v, want %v", got.Rows(), wantRows)
	}

	wantHeader := []string{"widget_id", "label", "opened", "amount"}
	if !reflect.DeepEqual(got.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", got.Header, wantHeader)
	}

	s := got.Stats
	if s.InputRows != 6 {
		t.Errorf("InputRows = %d, want 6", s.InputRows)
	}
	if s.DuplicatesDropped != 2 {
		t.Errorf("DuplicatesDropped = %d, want 2", s.DuplicatesDropped)
	}
	if s.ValidationDropped != 2 {
		t.Errorf("ValidationDropped = %d, want 2", s.ValidationDropped)
	}
	if s.DroppedBy[DropMissingKey] != 1 || s.DroppedBy[dropNegative] != 1 {
		t.Errorf("DroppedBy = %v, want one missing_key and one negative_amount", s.DroppedBy)
	}
	// W2: "garbage" date and "abc" amount
	if s.CoercionNulls != 2 {
		t.Errorf("CoercionNulls = %d, want 2", s.CoercionNulls)
	}
	// W2: label and opened filled, amount left null
	if s.SentinelFilled != 2 {
		t.Errorf("SentinelFilled = %d, want 2", s.SentinelFilled)
	}
	if s.NullTotal != 3 {
		t.Errorf("NullTotal = %d, want 3", s.NullTotal)
	}
	if s.RowsWritten != 2 {
		t.Errorf("RowsWritten = %d, want 2", s.RowsWritten)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	ds := &Dataset{Records: []RawRecord{
		{"widget_id": text("A"), "label": text("x"), "opened": text("01/02/2024"), "amount": text("10")},
		{"widget_id": text("B"), "label": text("y")},
		{"widget_id": text("A"), "label": text("z")},
	}}

	first := Normalize(testDefinition(), ds)
	second := Normalize(testDefinition(), ds)

	if !reflect.DeepEqual(first.Rows(), second.Rows()) {
		t.Errorf("rows differ between runs:\n%v\n%v", first.Rows(), second.Rows())
	}
	if !reflect.DeepEqual(first.Stats, second.Stats) {
		t.Errorf("stats differ between runs:\n%+v\n%+v", first.Stats, second.Stats)
	}
}

func TestNormalize_EmptyDataset(t *testing.T) {
	got := Normalize(testDefinition(), &Dataset{})
	if len(got.Records) != 0 {
		t.Errorf("Records = %d, want 0", len(got.Records))
	}
	if len(got.Header) != 4 {
		t.Errorf("Header = %v, want 4 columns even when empty", got.Header)
	}

	got = Normalize(testDefinition(), nil)
	if got.Stats.InputRows != 0 {
		t.Errorf("InputRows = %d, want 0 for nil dataset", got.Stats.InputRows)
	}
}

func TestNormalize_NormalizerSeesNulls(t *testing.T) {
	def := testDefinition()
	def.FieldSpecs[1].Normalizer = func(v pgtype.Text) pgtype.Text {
		if !v.Valid {
			return text("default label")
		}
		return v
	}

	got := Normalize(def, &Dataset{Records: []RawRecord{{"widget_id": text("A")}}})
	if label := got.Rows()[0][1]; label != "Default Label" {
		t.Errorf("label = %q, want normalizer output title-cased", label)
	}
}

func TestCleanRow(t *testing.T) {
	tests := []struct {
		name    string
		in      map[string]string
		want    map[string]string
		wantErr string
	}{
		{
			name: "full row",
			in:   map[string]string{"widget_id": " A ", "label": "blue widget", "opened": "01/02/2024", "amount": "$1,250.5"},
			want: map[string]string{"widget_id": "A", "label": "Blue Widget", "opened": "2024-01-02", "amount": "1250.50"},
		},
		{
			name: "absent columns",
			in:   map[string]string{"widget_id": "B"},
			want: map[string]string{"widget_id": "B", "label": "Unknown", "opened": "Unknown", "amount": ""},
		},
		{
			name: "stored sentinel reads back as null",
			in:   map[string]string{"widget_id": "C", "label": "Unknown", "opened": "Unknown", "amount": "Unknown"},
			want: map[string]string{"widget_id": "C", "label": "Unknown", "opened": "Unknown", "amount": ""},
		},
		{name: "missing key", in: map[string]string{"label": "x"}, wantErr: "widget_id is required"},
		{name: "bad number", in: map[string]string{"widget_id": "D", "amount": "lots"}, wantErr: "amount"},
		{name: "bad date", in: map[string]string{"widget_id": "E", "opened": "someday"}, wantErr: "opened"},
		{name: "drop rule", in: map[string]string{"widget_id": "F", "amount": "-5"}, wantErr: string(dropNegative)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanRow(testDefinition(), tt.in)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Fatalf("err = %v, want ErrInvalidRequest", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CleanRow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanRow_Idempotent(t *testing.T) {
	in := map[string]string{"widget_id": "A", "label": "x", "opened": "2024-01-02", "amount": "10"}
	first, err := CleanRow(testDefinition(), in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := CleanRow(testDefinition(), first)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass changed the row:\n%v\n%v", first, second)
	}
}

func TestRow_Clamp(t *testing.T) {
	r := NewRow(nil, map[string]float64{"low": 0.2, "high": 9, "mid": 3})
	r.Clamp("low", 1, 5)
	r.Clamp("high", 1, 5)
	r.Clamp("mid", 1, 5)
	r.Clamp("missing", 1, 5)

	if v := r.Num("low").Float64; v != 1 {
		t.Errorf("low = %v, want 1", v)
	}
	if v := r.Num("high").Float64; v != 5 {
		t.Errorf("high = %v, want 5", v)
	}
	if v := r.Num("mid").Float64; v != 3 {
		t.Errorf("mid = %v, want 3", v)
	}
	if r.Num("missing").Valid {
		t.Error("clamping a null must leave it null")
	}
}
