package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/core/tables"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestCreateTableSQL(t *testing.T) {
	reg := tables.NewRegistry()
	accounts, _ := reg.Get(tables.Accounts)

	got := createTableSQL(reg, accounts)
	want := `CREATE TABLE "accounts" (
    "customer_id" TEXT PRIMARY KEY,
    "account_balance" NUMERIC,
    "last_updated" TEXT,
    FOREIGN KEY ("customer_id") REFERENCES "customers" ("customer_id")
)`
	if got != want {
		t.Errorf("createTableSQL mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(tables.NewRegistry())
	if len(stmts) != 14 {
		t.Fatalf("got %d statements, want 14", len(stmts))
	}

	wantDrops := []string{
		tables.SupportTickets, tables.CreditCards, tables.Loans, tables.Transactions,
		tables.Accounts, tables.Branches, tables.Customers,
	}
	for i, table := range wantDrops {
		want := `DROP TABLE IF EXISTS "` + table + `" CASCADE`
		if stmts[i] != want {
			t.Errorf("stmt %d = %q, want %q", i, stmts[i], want)
		}
	}
	if !strings.HasPrefix(stmts[7], `CREATE TABLE "customers"`) {
		t.Errorf("first create = %q, want customers", firstLine(stmts[7]))
	}

	fks := 0
	for _, stmt := range stmts[7:] {
		fks += strings.Count(stmt, "FOREIGN KEY")
	}
	if fks != 2 {
		t.Errorf("got %d foreign keys, want 2", fks)
	}
}

func TestProject(t *testing.T) {
	reg := tables.NewRegistry()
	customers, _ := reg.Get(tables.Customers)

	p, err := project(customers, []string{"extra", "Customer ID", "age", "name"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, ok := p.values([]string{"x", "C1", "34", "Asha"})
	if !ok {
		t.Fatal("row with key was skipped")
	}
	if len(row) != len(customers.FieldSpecs) {
		t.Fatalf("got %d values, want %d", len(row), len(customers.FieldSpecs))
	}
	if row[0] != (pgtype.Text{String: "C1", Valid: true}) {
		t.Errorf("customer_id = %v", row[0])
	}
	if row[3] != (pgtype.Int4{Int32: 34, Valid: true}) {
		t.Errorf("age = %v", row[3])
	}
	if row[4] != (pgtype.Text{}) {
		t.Errorf("missing city = %v, want NULL", row[4])
	}

	for _, empty := range [][]string{{"x", "", "1", "n"}, {"x", "   "}, {"x"}} {
		if _, ok := p.values(empty); ok {
			t.Errorf("row %q should be skipped", empty)
		}
	}

	_, err = project(customers, []string{"name", "age"})
	if !errors.Is(err, core.ErrInvalidRequest) {
		t.Errorf("missing key column: got %v, want ErrInvalidRequest", err)
	}
}

func TestToColumnValue(t *testing.T) {
	tests := []struct {
		name string
		spec core.FieldSpec
		in   string
		want any
	}{
		{"text", core.FieldSpec{Type: core.FieldText}, "Chennai", pgtype.Text{String: "Chennai", Valid: true}},
		{"text keeps sentinel", core.FieldSpec{Type: core.FieldDate}, "Unknown", pgtype.Text{String: "Unknown", Valid: true}},
		{"text empty", core.FieldSpec{Type: core.FieldText}, "", pgtype.Text{}},
		{"integer", core.FieldSpec{Type: core.FieldInteger}, "12", pgtype.Int4{Int32: 12, Valid: true}},
		{"integer sentinel", core.FieldSpec{Type: core.FieldInteger}, "Unknown", pgtype.Int4{}},
		{"integer empty", core.FieldSpec{Type: core.FieldInteger}, "", pgtype.Int4{}},
		{"numeric sentinel", core.FieldSpec{Type: core.FieldNumeric}, "unknown", pgtype.Numeric{}},
		{"numeric empty", core.FieldSpec{Type: core.FieldNumeric}, "", pgtype.Numeric{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toColumnValue(tt.spec, tt.in); got != tt.want {
				t.Errorf("toColumnValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	n, ok := toColumnValue(core.FieldSpec{Type: core.FieldNumeric}, "1250.50").(pgtype.Numeric)
	if !ok || !n.Valid {
		t.Fatalf("numeric value not valid: %#v", n)
	}
	if f, _ := n.Float64Value(); f.Float64 != 1250.5 {
		t.Errorf("numeric = %v, want 1250.5", f.Float64)
	}
}

func TestNormalizeValue(t *testing.T) {
	var num pgtype.Numeric
	if err := num.Scan("12.75"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int16", int16(3), int64(3)},
		{"int32", int32(4), int64(4)},
		{"int64", int64(5), int64(5)},
		{"float32", float32(1.5), float64(1.5)},
		{"float64", 2.25, 2.25},
		{"bool", true, true},
		{"string", "Chennai", "Chennai"},
		{"bytes", []byte("raw"), "raw"},
		{"numeric", num, 12.75},
		{"null numeric", pgtype.Numeric{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeValue(tt.in); got != tt.want {
				t.Errorf("normalizeValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBindColumns(t *testing.T) {
	reg := tables.NewRegistry()
	branches, _ := reg.Get(tables.Branches)

	cols, args, err := bindColumns(branches, map[string]string{
		"branch_id":          "B1",
		"city":               "chennai",
		"performance_rating": "4.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(cols, ",") != strings.Join(branches.Info.Columns, ",") {
		t.Errorf("cols = %v, want every column %v", cols, branches.Info.Columns)
	}
	bound := make(map[string]any, len(cols))
	for i, col := range cols {
		bound[col] = args[i]
	}
	if _, ok := bound["performance_rating"].(pgtype.Numeric); !ok {
		t.Errorf("performance_rating bound as %T, want pgtype.Numeric", bound["performance_rating"])
	}
	if bound["city"] != (pgtype.Text{String: "Chennai", Valid: true}) {
		t.Errorf("city = %v, want title-cased", bound["city"])
	}
	if bound["branch_name"] != (pgtype.Text{String: core.Sentinel, Valid: true}) {
		t.Errorf("absent branch_name = %v, want sentinel", bound["branch_name"])
	}

	tests := []struct {
		name    string
		table   string
		values  map[string]string
		wantErr string
	}{
		{"unknown column", tables.Branches, map[string]string{"branch_id": "B1", "drop_table": "x"}, "drop_table"},
		{"age out of range", tables.Customers, map[string]string{"customer_id": "C1", "age": "101"}, "age_out_of_range"},
		{"negative balance", tables.Accounts, map[string]string{"customer_id": "C1", "account_balance": "-10"}, "negative_balance"},
		{"non-positive amount", tables.Transactions, map[string]string{"txn_id": "T1", "amount": "0"}, "non_positive_amount"},
		{"unparseable number", tables.Loans, map[string]string{"loan_id": "L1", "loan_amount": "a lot"}, "loan_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, _ := reg.Get(tt.table)
			_, _, err := bindColumns(def, tt.values)
			if !errors.Is(err, core.ErrInvalidRequest) {
				t.Fatalf("got %v, want ErrInvalidRequest", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

// fakePool records Exec calls and serves one row to Update through fakeTx.
type fakePool struct {
	execSQL  string
	execArgs []any
	current  []string // column values returned by the locking select; nil means no row
	tx       *fakeTx
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL, p.execArgs = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: errors.New("not implemented")}
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.tx = &fakeTx{current: p.current}
	return p.tx, nil
}

func (p *fakePool) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return p.Begin(ctx)
}

// fakeTx embeds pgx.Tx so only the methods Update uses need bodies.
type fakeTx struct {
	pgx.Tx
	current   []string
	execSQL   string
	execArgs  []any
	committed bool
}

func (tx *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	if tx.current == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: tx.current}
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tx.execSQL, tx.execArgs = sql, args
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error { return nil }

type fakeRow struct {
	values []string
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		t := d.(*pgtype.Text)
		if r.values[i] == "" {
			*t = pgtype.Text{}
			continue
		}
		*t = pgtype.Text{String: r.values[i], Valid: true}
	}
	return nil
}

func TestInsert_AppliesEntityRules(t *testing.T) {
	pool := &fakePool{}
	s := New(pool, tables.NewRegistry())
	ctx := context.Background()

	key, err := s.Insert(ctx, tables.CreditCards, map[string]string{"card_id": "C9", "card_number": "4111111111112345"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "C9" {
		t.Errorf("key = %q, want C9", key)
	}
	for _, arg := range pool.execArgs {
		if txt, ok := arg.(pgtype.Text); ok && strings.Contains(txt.String, "4111") {
			t.Errorf("card digits reached the database: %v", pool.execArgs)
		}
	}
	if !containsText(pool.execArgs, "**** **** **** 2345") {
		t.Errorf("masked card number not bound: %v", pool.execArgs)
	}

	pool.execArgs = nil
	_, err = s.Insert(ctx, tables.Customers, map[string]string{"customer_id": "C1", "age": "10"})
	if !errors.Is(err, core.ErrInvalidRequest) {
		t.Errorf("underage customer: got %v, want ErrInvalidRequest", err)
	}
	if pool.execArgs != nil {
		t.Error("rejected row must not be written")
	}
}

func TestUpdate_MergesAndCleans(t *testing.T) {
	// customer_id, name, gender, age, city, account_type, join_date
	pool := &fakePool{current: []string{"C1", "Asha", "F", "30", "Chennai", "Savings", "2023-01-05"}}
	s := New(pool, tables.NewRegistry())
	ctx := context.Background()

	if err := s.Update(ctx, tables.Customers, "C1", map[string]string{"city": "new delhi", "age": "31"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pool.tx.committed {
		t.Error("update was not committed")
	}
	if !strings.HasSuffix(pool.tx.execSQL, `WHERE "customer_id" = $7`) {
		t.Errorf("sql = %s", pool.tx.execSQL)
	}
	if last := pool.tx.execArgs[len(pool.tx.execArgs)-1]; last != "C1" {
		t.Errorf("key arg = %v, want C1", last)
	}
	if !containsText(pool.tx.execArgs, "New Delhi") || !containsText(pool.tx.execArgs, "Asha") {
		t.Errorf("merged row not written: %v", pool.tx.execArgs)
	}

	tests := []struct {
		name    string
		current []string
		values  map[string]string
		want    error
	}{
		{"age out of range", pool.current, map[string]string{"age": "150"}, core.ErrInvalidRequest},
		{"key change", pool.current, map[string]string{"customer_id": "C2"}, core.ErrInvalidRequest},
		{"unknown column", pool.current, map[string]string{"nope": "x"}, core.ErrInvalidRequest},
		{"missing row", nil, map[string]string{"name": "x"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePool{current: tt.current}
			err := New(p, tables.NewRegistry()).Update(ctx, tables.Customers, "C1", tt.values)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if p.tx != nil && p.tx.committed {
				t.Error("failed update must not commit")
			}
		})
	}
}

func containsText(args []any, want string) bool {
	for _, arg := range args {
		if txt, ok := arg.(pgtype.Text); ok && txt.Valid && txt.String == want {
			return true
		}
	}
	return false
}

func TestWhereClause(t *testing.T) {
	accounts, _ := tables.NewRegistry().Get(tables.Accounts)

	where, args, err := whereClause(accounts, []Filter{
		{Column: "account_balance", Op: FilterMin, Value: "1,000"},
		{Column: "account_balance", Op: FilterMax, Value: "5000"},
		{Column: "last_updated", Op: FilterEq, Value: "2024-01-02T10:00:00"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ` WHERE "account_balance" >= $1::float8 AND "account_balance" <= $2::float8 AND "last_updated" = $3`
	if where != want {
		t.Errorf("where = %q\nwant    %q", where, want)
	}
	if len(args) != 3 || args[0] != 1000.0 || args[1] != 5000.0 || args[2] != "2024-01-02 10:00:00" {
		t.Errorf("args = %#v", args)
	}

	if where, args, err := whereClause(accounts, nil); where != "" || args != nil || err != nil {
		t.Errorf("no filters: got %q %v %v", where, args, err)
	}

	bad := []Filter{
		{Column: "nope", Op: FilterEq, Value: "x"},
		{Column: "account_balance", Op: FilterMin, Value: "abc"},
		{Column: "customer_id", Op: FilterMin, Value: "C1"},
		{Column: "last_updated", Op: FilterEq, Value: "not a time"},
	}
	for _, f := range bad {
		t.Run(f.Column+"_"+string(f.Op), func(t *testing.T) {
			if _, _, err := whereClause(accounts, []Filter{f}); !errors.Is(err, core.ErrInvalidRequest) {
				t.Errorf("got %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("quoteIdentifier = %s", got)
	}
}
