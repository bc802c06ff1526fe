package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Account is a cleaned accounts row. An account is keyed by its customer.
type Account struct {
	CustomerID  string
	Balance     float64
	LastUpdated string
}

func (a Account) Key() string { return a.CustomerID }

func (a Account) Row() []string {
	return []string{
		a.CustomerID,
		core.FormatFloat(pgtype.Float8{Float64: a.Balance, Valid: true}, true),
		a.LastUpdated,
	}
}

func accountDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:     Accounts,
			Label:   "Accounts",
			Sources: []string{"accounts.csv"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "customer_id", Type: core.FieldText, Key: true, References: Customers},
			{Name: "account_balance", Type: core.FieldNumeric, Money: true},
			{Name: "last_updated", Type: core.FieldTimestamp},
		},
		Drop: func(r *core.Row) (core.DropReason, bool) {
			if b := r.Num("account_balance"); b.Valid && b.Float64 < 0 {
				return DropNegativeBalance, true
			}
			return "", false
		},
		Derive: func(r *core.Row) {
			if !r.Num("account_balance").Valid {
				r.SetNum("account_balance", pgtype.Float8{Float64: 0, Valid: true})
			}
		},
		Build: func(r *core.Row) core.Record {
			return Account{
				CustomerID:  r.Str("customer_id"),
				Balance:     r.Num("account_balance").Float64,
				LastUpdated: r.Str("last_updated"),
			}
		},
	}
}
