package tables

import (
	"strconv"

	"github.com/JonMunkholm/banksight/internal/core"
)

const (
	minCustomerAge = 18
	maxCustomerAge = 100
)

// Customer is a cleaned customers row.
type Customer struct {
	CustomerID  string
	Name        string
	Gender      string
	Age         int32
	City        string
	AccountType string
	JoinDate    string
}

func (c Customer) Key() string { return c.CustomerID }

func (c Customer) Row() []string {
	return []string{
		c.CustomerID,
		c.Name,
		c.Gender,
		strconv.Itoa(int(c.Age)),
		c.City,
		c.AccountType,
		c.JoinDate,
	}
}

func customerDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:     Customers,
			Label:   "Customers",
			Sources: []string{"customers.csv"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "customer_id", Type: core.FieldText, Key: true},
			{Name: "name", Type: core.FieldText},
			{Name: "gender", Type: core.FieldText, Normalizer: NormalizeGender},
			{Name: "age", Type: core.FieldInteger},
			{Name: "city", Type: core.FieldText, TitleCase: true},
			{Name: "account_type", Type: core.FieldText, TitleCase: true},
			{Name: "join_date", Type: core.FieldDate},
		},
		// Age is the one field where a bad value rejects the row instead of nulling it.
		Drop: func(r *core.Row) (core.DropReason, bool) {
			age := r.Num("age")
			if !age.Valid || age.Float64 < minCustomerAge || age.Float64 > maxCustomerAge {
				return DropAgeOutOfRange, true
			}
			return "", false
		},
		Build: func(r *core.Row) core.Record {
			return Customer{
				CustomerID:  r.Str("customer_id"),
				Name:        r.Str("name"),
				Gender:      r.Str("gender"),
				Age:         r.Int4("age").Int32,
				City:        r.Str("city"),
				AccountType: r.Str("account_type"),
				JoinDate:    r.Str("join_date"),
			}
		},
	}
}
