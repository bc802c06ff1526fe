package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// Loan is a cleaned loans row.
type Loan struct {
	LoanID         string
	CustomerID     string
	AccountID      string
	Branch         string
	LoanType       string
	LoanAmount     pgtype.Float8
	InterestRate   pgtype.Float8
	LoanTermMonths pgtype.Int4
	StartDate      string
	EndDate        string
	LoanStatus     string
}

func (l Loan) Key() string { return l.LoanID }

func (l Loan) Row() []string {
	return []string{
		l.LoanID,
		l.CustomerID,
		l.AccountID,
		l.Branch,
		l.LoanType,
		core.FormatFloat(l.LoanAmount, true),
		core.FormatFloat(l.InterestRate, false),
		core.FormatInt(l.LoanTermMonths),
		l.StartDate,
		l.EndDate,
		l.LoanStatus,
	}
}

func loanDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:          Loans,
			Label:        "Loans",
			Sources:      []string{"loans.json", "loans.csv", "loans.xlsx"},
			GeneratedKey: true,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "loan_id", Type: core.FieldText, Key: true},
			{Name: "customer_id", Type: core.FieldText},
			{Name: "account_id", Type: core.FieldText},
			{Name: "branch", Type: core.FieldText},
			{Name: "loan_type", Type: core.FieldText, TitleCase: true},
			{Name: "loan_amount", Type: core.FieldNumeric, Money: true},
			{Name: "interest_rate", Type: core.FieldNumeric},
			{Name: "loan_term_months", Type: core.FieldInteger},
			{Name: "start_date", Type: core.FieldDate},
			{Name: "end_date", Type: core.FieldDate},
			{Name: "loan_status", Type: core.FieldText, TitleCase: true},
		},
		Build: func(r *core.Row) core.Record {
			return Loan{
				LoanID:         r.Str("loan_id"),
				CustomerID:     r.Str("customer_id"),
				AccountID:      r.Str("account_id"),
				Branch:         r.Str("branch"),
				LoanType:       r.Str("loan_type"),
				LoanAmount:     r.Num("loan_amount"),
				InterestRate:   r.Num("interest_rate"),
				LoanTermMonths: r.Int4("loan_term_months"),
				StartDate:      r.Str("start_date"),
				EndDate:        r.Str("end_date"),
				LoanStatus:     r.Str("loan_status"),
			}
		},
	}
}
