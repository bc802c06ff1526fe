package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreditCard is a cleaned credit_cards row. CardNumber is always masked.
type CreditCard struct {
	CardID         string
	CustomerID     string
	AccountID      string
	Branch         string
	CardNumber     string
	CardType       string
	CardNetwork    string
	CreditLimit    pgtype.Float8
	CurrentBalance pgtype.Float8
	IssuedDate     string
	ExpiryDate     string
	Status         string
}

func (c CreditCard) Key() string { return c.CardID }

func (c CreditCard) Row() []string {
	return []string{
		c.CardID,
		c.CustomerID,
		c.AccountID,
		c.Branch,
		c.CardNumber,
		c.CardType,
		c.CardNetwork,
		core.FormatFloat(c.CreditLimit, true),
		core.FormatFloat(c.CurrentBalance, true),
		c.IssuedDate,
		c.ExpiryDate,
		c.Status,
	}
}

func creditCardDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:          CreditCards,
			Label:        "Credit Cards",
			Sources:      []string{"credit_cards.json", "credit_cards.xlsx"},
			GeneratedKey: true,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "card_id", Type: core.FieldText, Key: true},
			{Name: "customer_id", Type: core.FieldText},
			{Name: "account_id", Type: core.FieldText},
			{Name: "branch", Type: core.FieldText},
			{Name: "card_number", Type: core.FieldText, Normalizer: MaskCardNumber},
			{Name: "card_type", Type: core.FieldText, TitleCase: true},
			{Name: "card_network", Type: core.FieldText, TitleCase: true},
			{Name: "credit_limit", Type: core.FieldNumeric, Money: true},
			{Name: "current_balance", Type: core.FieldNumeric, Money: true},
			{Name: "issued_date", Type: core.FieldDate},
			{Name: "expiry_date", Type: core.FieldDate},
			{Name: "status", Type: core.FieldText, TitleCase: true},
		},
		Build: func(r *core.Row) core.Record {
			return CreditCard{
				CardID:         r.Str("card_id"),
				CustomerID:     r.Str("customer_id"),
				AccountID:      r.Str("account_id"),
				Branch:         r.Str("branch"),
				CardNumber:     r.Str("card_number"),
				CardType:       r.Str("card_type"),
				CardNetwork:    r.Str("card_network"),
				CreditLimit:    r.Num("credit_limit"),
				CurrentBalance: r.Num("current_balance"),
				IssuedDate:     r.Str("issued_date"),
				ExpiryDate:     r.Str("expiry_date"),
				Status:         r.Str("status"),
			}
		},
	}
}
