package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transaction is a cleaned transactions row.
type Transaction struct {
	TxnID      string
	CustomerID string
	TxnType    string
	Amount     float64
	TxnTime    string
	Status     string
}

func (t Transaction) Key() string { return t.TxnID }

func (t Transaction) Row() []string {
	return []string{
		t.TxnID,
		t.CustomerID,
		t.TxnType,
		core.FormatFloat(pgtype.Float8{Float64: t.Amount, Valid: true}, true),
		t.TxnTime,
		t.Status,
	}
}

func transactionDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:     Transactions,
			Label:   "Transactions",
			Sources: []string{"transactions.csv"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "txn_id", Type: core.FieldText, Key: true},
			{Name: "customer_id", Type: core.FieldText, References: Customers},
			{Name: "txn_type", Type: core.FieldText, TitleCase: true},
			{Name: "amount", Type: core.FieldNumeric, Money: true},
			{Name: "txn_time", Type: core.FieldTimestamp},
			{Name: "status", Type: core.FieldText, TitleCase: true},
		},
		// A missing amount fails the same check as zero.
		Drop: func(r *core.Row) (core.DropReason, bool) {
			if a := r.Num("amount"); !a.Valid || a.Float64 <= 0 {
				return DropNonPositiveAmount, true
			}
			return "", false
		},
		Build: func(r *core.Row) core.Record {
			return Transaction{
				TxnID:      r.Str("txn_id"),
				CustomerID: r.Str("customer_id"),
				TxnType:    r.Str("txn_type"),
				Amount:     r.Num("amount").Float64,
				TxnTime:    r.Str("txn_time"),
				Status:     r.Str("status"),
			}
		},
	}
}
