package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/banksight/internal/config"
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/core/tables"
	"github.com/JonMunkholm/banksight/internal/metrics"
	"github.com/JonMunkholm/banksight/internal/store"
)

var rawFixtures = map[string]string{
	"customers.csv": "Customer ID,Name,Gender,Age,City,Account Type,Join Date\n" +
		"C1,Asha,female,30,chennai,savings,2023-01-05\n" +
		"C1,Duplicate,male,40,delhi,current,2023-02-01\n" +
		"C2,Kid,m,10,pune,savings,2023-03-01\n",
	"accounts.csv": "customer_id,account_balance,last_updated\n" +
		"C1,500,2024-01-01 10:00:00\n" +
		"C2,-50,2024-01-01 10:00:00\n",
	"transactions.csv": "txn_id,customer_id,txn_type,amount,txn_time,status\n" +
		"T1,C1,deposit,100,2024-01-02 09:00:00,success\n" +
		"T2,C1,withdrawal,0,2024-01-02 10:00:00,success\n",
	"loans.json":        `{{{ not json`,
	"credit_cards.json": `[{"card_id":"K1","customer_id":"C1","card_number":"4111-1111-1111-2345"}]`,
	"support_tickets.json": `{"ticket_id":"S1","customer_id":"C1","date_opened":"2024-01-01","date_closed":"2024-01-04","customer_rating":9}` +
		`{"ticket_id":"S2","customer_id":"C1","date_opened":"2024-01-01","customer_rating":3}`,
}

func writeRaw(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range rawFixtures {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func newPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	cfg := config.PipelineConfig{
		RawDir:     writeRaw(t),
		CleanedDir: filepath.Join(t.TempDir(), "cleaned"),
		Workers:    3,
	}
	return New(tables.NewRegistry(), cfg, opts...)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func byEntity(results []EntityResult) map[string]EntityResult {
	m := make(map[string]EntityResult, len(results))
	for _, r := range results {
		m[r.Entity] = r
	}
	return m
}

func TestClean_IsolatesEntityFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newPipeline(t, WithMetrics(m))

	results, err := p.Clean(context.Background())
	require.NoError(t, err)

	keys := make([]string, len(results))
	for i, r := range results {
		keys[i] = r.Entity
	}
	assert.Equal(t, tables.NewRegistry().Keys(), keys, "results follow registry order")

	got := byEntity(results)

	assert.True(t, got[tables.Branches].Missing())

	var fe *core.FormatError
	require.ErrorAs(t, got[tables.Loans].Err, &fe)
	assert.False(t, got[tables.Loans].Missing())

	for _, entity := range []string{tables.Customers, tables.Accounts, tables.Transactions, tables.CreditCards, tables.SupportTickets} {
		assert.NoError(t, got[entity].Err, entity)
		assert.FileExists(t, got[entity].Output, entity)
	}

	assert.Equal(t, 1, got[tables.Customers].Stats.RowsWritten)
	assert.Equal(t, 1, got[tables.Customers].Stats.DuplicatesDropped)
	assert.Equal(t, 1, got[tables.Accounts].Stats.RowsWritten)
	assert.Equal(t, 1, got[tables.Transactions].Stats.RowsWritten)
	assert.Equal(t, "json-repaired", got[tables.SupportTickets].Format)
	assert.Equal(t, 2, got[tables.SupportTickets].Stats.RowsWritten)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityFailures.WithLabelValues(tables.Loans, "clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityFailures.WithLabelValues(tables.Branches, "clean")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InputRows.WithLabelValues(tables.Customers)))
}

func TestClean_CleanedFileContents(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Clean(context.Background())
	require.NoError(t, err)

	customers := readCSV(t, CleanedPath(p.cleanedDir, tables.Customers))
	require.Len(t, customers, 2)
	assert.Equal(t, []string{"customer_id", "name", "gender", "age", "city", "account_type", "join_date"}, customers[0])
	assert.Equal(t, []string{"C1", "Asha", "F", "30", "Chennai", "Savings", "2023-01-05"}, customers[1])

	cards := readCSV(t, CleanedPath(p.cleanedDir, tables.CreditCards))
	require.Len(t, cards, 2)
	assert.Contains(t, cards[1], "**** **** **** 2345")
}

func TestClean_Idempotent(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.Clean(ctx)
	require.NoError(t, err)
	first := make(map[string][]byte)
	for _, key := range p.reg.Keys() {
		if data, err := os.ReadFile(CleanedPath(p.cleanedDir, key)); err == nil {
			first[key] = data
		}
	}

	_, err = p.Clean(ctx)
	require.NoError(t, err)
	for key, want := range first {
		data, err := os.ReadFile(CleanedPath(p.cleanedDir, key))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(data), key)
	}
}

func TestClean_CancelledContext(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Clean(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCleaned_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	c := &core.Cleaned{Entity: "accounts", Header: []string{"customer_id", "account_balance", "last_updated"}}

	path, err := WriteCleaned(dir, c)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "accounts_cleaned.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "customer_id,account_balance,last_updated\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

type fakeStore struct {
	mu          sync.Mutex
	recreateErr error
	fail        map[string]error
	loads       []string
}

func (f *fakeStore) RecreateSchema(context.Context) error {
	return f.recreateErr
}

func (f *fakeStore) LoadFile(_ context.Context, table, path string) (store.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, table)
	if err := f.fail[table]; err != nil {
		return store.LoadResult{Table: table}, err
	}
	rows, err := os.ReadFile(path)
	if err != nil {
		return store.LoadResult{}, err
	}
	var n int64
	for _, b := range rows {
		if b == '\n' {
			n++
		}
	}
	return store.LoadResult{Table: table, Loaded: n - 1}, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestLoad_NoStore(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestLoad_ParentFirstWithFailures(t *testing.T) {
	storeErr := &core.StoreError{Table: tables.Transactions, Op: "bulk load", Err: errors.New("violates foreign key constraint")}
	fs := &fakeStore{fail: map[string]error{tables.Transactions: storeErr}}
	inv := &countingInvalidator{}
	p := newPipeline(t, WithStore(fs), WithInvalidator(inv))

	// Output of an earlier run for entities that fail this time.
	require.NoError(t, os.MkdirAll(p.cleanedDir, 0o755))
	for _, table := range []string{tables.Branches, tables.Loans} {
		require.NoError(t, os.WriteFile(CleanedPath(p.cleanedDir, table), []byte("id\nOLD\n"), 0o644))
	}

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, table := range []string{tables.Branches, tables.Loans} {
		assert.NoFileExists(t, CleanedPath(p.cleanedDir, table), "stale %s output must be removed", table)
	}
	assert.Equal(t, []string{
		tables.Customers, tables.Accounts, tables.Transactions, tables.CreditCards, tables.SupportTickets,
	}, fs.loads, "tables without a cleaned file are not loaded")
	assert.Equal(t, 1, inv.calls)

	require.Len(t, summary.Tables, 7)
	results := make(map[string]TableResult)
	for _, r := range summary.Tables {
		results[r.Table] = r
	}
	assert.Equal(t, int64(1), results[tables.Customers].Loaded)
	assert.ErrorIs(t, results[tables.Branches].Err, core.ErrSourceMissing)
	assert.ErrorIs(t, results[tables.Loans].Err, core.ErrSourceMissing, "a failed clean is not loaded from old output")

	var se *core.StoreError
	require.ErrorAs(t, results[tables.Transactions].Err, &se)
	assert.Zero(t, results[tables.Transactions].Loaded)
	assert.NoError(t, results[tables.SupportTickets].Err, "a failed table does not stop later ones")

	entities, tablesFailed := summary.Failed()
	assert.Equal(t, 2, entities)
	assert.Equal(t, 3, tablesFailed)
	assert.False(t, summary.AllFailed())
}

func TestLoad_RecreateSchemaFails(t *testing.T) {
	fs := &fakeStore{recreateErr: errors.New("connection refused")}
	inv := &countingInvalidator{}
	p := newPipeline(t, WithStore(fs), WithInvalidator(inv))

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recreate schema")
	assert.Empty(t, fs.loads)
	assert.Zero(t, inv.calls)
}

func TestSummary_AllFailed(t *testing.T) {
	tests := []struct {
		name     string
		entities []EntityResult
		want     bool
	}{
		{"empty", nil, false},
		{"one success", []EntityResult{{Err: core.ErrSourceMissing}, {}}, false},
		{"all failed", []EntityResult{{Err: core.ErrSourceMissing}, {Err: errors.New("bad")}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Summary{Entities: tt.entities}
			if got := s.AllFailed(); got != tt.want {
				t.Errorf("AllFailed() = %v, want %v", got, tt.want)
			}
		})
	}
}
