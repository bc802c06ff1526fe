package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/core/tables"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func val(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeCSV(t *testing.T) {
	input := "\xEF\xBB\xBFCustomer ID, Name ,Age,City\n" +
		"C0001,Asha,34,Chennai\n" +
		"C0002,NA,n/a,\n" +
		"C0003,Short\n" +
		",,,\n" +
		"C0004,Long,40,Pune,extra\n"

	ds, err := Decode("customers.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, ds.Format)
	assert.Equal(t, "customers.csv", ds.Name)
	assert.Equal(t, []string{"customer_id", "name", "age", "city"}, ds.Fields)
	assert.Equal(t, int64(len(input)), ds.Bytes)
	require.Len(t, ds.Records, 4)

	assert.Equal(t, core.RawRecord{
		"customer_id": val("C0001"), "name": val("Asha"), "age": val("34"), "city": val("Chennai"),
	}, ds.Records[0])

	assert.False(t, ds.Records[1]["name"].Valid)
	assert.False(t, ds.Records[1]["age"].Valid)
	assert.False(t, ds.Records[1]["city"].Valid)

	assert.Equal(t, val("Short"), ds.Records[2]["name"])
	assert.False(t, ds.Records[2]["city"].Valid)

	assert.Len(t, ds.Records[3], 4)
	assert.Equal(t, val("Pune"), ds.Records[3]["city"])
}

func TestDecodeCSV_DuplicateCanonicalHeader(t *testing.T) {
	ds, err := Decode("x.csv", strings.NewReader("Name,name\nfirst,second\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ds.Fields)
	assert.Equal(t, val("first"), ds.Records[0]["name"])
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := Decode("empty.csv", strings.NewReader(""))
	var fe *core.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FormatCSV, fe.Format)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
		count  int
	}{
		{"array", `[{"ticket_id":"S1"},{"ticket_id":"S2"}]`, FormatJSON, 2},
		{"single object", `{"ticket_id":"S1"}`, FormatJSON, 1},
		{"empty array", `[]`, FormatJSON, 0},
		{"ndjson", "{\"ticket_id\":\"S1\"}\n\n{\"ticket_id\":\"S2\"}\n{\"ticket_id\":\"S3\"}\n", FormatNDJSON, 3},
		{"concatenated", `{"ticket_id":"S1"}{"ticket_id":"S2"}`, FormatJSONRepaired, 2},
		{"concatenated with whitespace", "{\"ticket_id\":\"S1\"} \n\t {\"ticket_id\":\"S2\"}", FormatJSONRepaired, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Decode("support_tickets.json", strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.format, ds.Format)
			assert.Len(t, ds.Records, tt.count)
		})
	}
}

func TestDecodeJSON_Scalars(t *testing.T) {
	input := `{"Loan ID":"L1","Loan Amount":250000.50,"Term":36,"Active":true,"Closed":false,` +
		`"End Date":null,"Tags":["a","b"],"Meta":{"k":1},"Status":"NaN"}`

	ds, err := Decode("loans.json", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)

	rec := ds.Records[0]
	assert.Equal(t, val("L1"), rec["loan_id"])
	assert.Equal(t, val("250000.50"), rec["loan_amount"])
	assert.Equal(t, val("36"), rec["term"])
	assert.Equal(t, val("true"), rec["active"])
	assert.Equal(t, val("false"), rec["closed"])
	assert.Equal(t, val(`["a","b"]`), rec["tags"])
	assert.Equal(t, val(`{"k":1}`), rec["meta"])
	assert.False(t, rec["end_date"].Valid)
	assert.False(t, rec["status"].Valid)
	_, present := rec["end_date"]
	assert.True(t, present)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	for _, input := range []string{`{"a":`, `[1,2,3]`, `"just a string"`, `   `} {
		t.Run(input, func(t *testing.T) {
			_, err := Decode("bad.json", strings.NewReader(input))
			var fe *core.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, FormatJSON, fe.Format)
			assert.Equal(t, "bad.json", fe.Path)
		})
	}
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Card ID", "Card Number", "Credit Limit"},
		{"K1", "4111-1111-1111-2345", 50000},
		{"K2", "N/A"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	path := filepath.Join(t.TempDir(), "credit_cards.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, ds.Format)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, []string{"card_id", "card_number", "credit_limit"}, ds.Fields)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, val("4111-1111-1111-2345"), ds.Records[0]["card_number"])
	assert.Equal(t, val("50000"), ds.Records[0]["credit_limit"])
	assert.False(t, ds.Records[1]["card_number"].Valid)
	assert.False(t, ds.Records[1]["credit_limit"].Valid)
}

func TestDecode_Sniff(t *testing.T) {
	ds, err := Decode("export", strings.NewReader(`  [{"id":"1"}]`))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, ds.Format)

	ds, err = Decode("export", strings.NewReader("id\n1\n"))
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, ds.Format)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	var fe *core.FormatError
	require.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocate(t *testing.T) {
	reg := tables.NewRegistry()
	loans, _ := reg.Get(tables.Loans)
	cards, _ := reg.Get(tables.CreditCards)
	customers, _ := reg.Get(tables.Customers)

	t.Run("preference order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "loans.xlsx", "")
		writeFile(t, dir, "loans.csv", "")
		path, err := Locate(dir, loans)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "loans.csv"), path)

		writeFile(t, dir, "loans.json", "")
		path, err = Locate(dir, loans)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "loans.json"), path)
	})

	t.Run("cards never read csv", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "credit_cards.csv", "")
		_, err := Locate(dir, cards)
		assert.ErrorIs(t, err, core.ErrSourceMissing)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Locate(t.TempDir(), customers)
		assert.ErrorIs(t, err, core.ErrSourceMissing)
	})
}
