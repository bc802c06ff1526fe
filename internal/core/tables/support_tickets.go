package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// SupportTicket is a cleaned support_tickets row.
type SupportTicket struct {
	TicketID          string
	CustomerID        string
	AccountID         string
	LoanID            string
	BranchName        string
	IssueCategory     string
	Description       string
	DateOpened        string
	DateClosed        string
	Priority          string
	Status            string
	ResolutionRemarks string
	SupportAgent      string
	Channel           string
	CustomerRating    pgtype.Float8
	ResolutionDays    pgtype.Int4
}

func (t SupportTicket) Key() string { return t.TicketID }

func (t SupportTicket) Row() []string {
	return []string{
		t.TicketID,
		t.CustomerID,
		t.AccountID,
		t.LoanID,
		t.BranchName,
		t.IssueCategory,
		t.Description,
		t.DateOpened,
		t.DateClosed,
		t.Priority,
		t.Status,
		t.ResolutionRemarks,
		t.SupportAgent,
		t.Channel,
		core.FormatFloat(t.CustomerRating, false),
		core.FormatInt(t.ResolutionDays),
	}
}

func supportTicketDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:     SupportTickets,
			Label:   "Support Tickets",
			Sources: []string{"support_tickets.json", "support_tickets.csv", "support_tickets.xlsx"},
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "ticket_id", Type: core.FieldText, Key: true},
			{Name: "customer_id", Type: core.FieldText},
			{Name: "account_id", Type: core.FieldText},
			{Name: "loan_id", Type: core.FieldText},
			{Name: "branch_name", Type: core.FieldText},
			{Name: "issue_category", Type: core.FieldText, TitleCase: true},
			{Name: "description", Type: core.FieldText},
			{Name: "date_opened", Type: core.FieldDate},
			{Name: "date_closed", Type: core.FieldDate},
			{Name: "priority", Type: core.FieldText, TitleCase: true},
			{Name: "status", Type: core.FieldText, TitleCase: true},
			{Name: "resolution_remarks", Type: core.FieldText},
			{Name: "support_agent", Type: core.FieldText},
			{Name: "channel", Type: core.FieldText, TitleCase: true},
			{Name: "customer_rating", Type: core.FieldNumeric},
			{Name: "resolution_days", Type: core.FieldInteger},
		},
		Derive: deriveResolution,
		Build: func(r *core.Row) core.Record {
			return SupportTicket{
				TicketID:          r.Str("ticket_id"),
				CustomerID:        r.Str("customer_id"),
				AccountID:         r.Str("account_id"),
				LoanID:            r.Str("loan_id"),
				BranchName:        r.Str("branch_name"),
				IssueCategory:     r.Str("issue_category"),
				Description:       r.Str("description"),
				DateOpened:        r.Str("date_opened"),
				DateClosed:        r.Str("date_closed"),
				Priority:          r.Str("priority"),
				Status:            r.Str("status"),
				ResolutionRemarks: r.Str("resolution_remarks"),
				SupportAgent:      r.Str("support_agent"),
				Channel:           r.Str("channel"),
				CustomerRating:    r.Num("customer_rating"),
				ResolutionDays:    r.Int4("resolution_days"),
			}
		},
	}
}

// deriveResolution recomputes resolution_days from the two dates, ignoring
// any value present in the source. Either date missing yields null.
func deriveResolution(r *core.Row) {
	r.Clamp("customer_rating", minRating, maxRating)

	opened, closed := r.Text("date_opened"), r.Text("date_closed")
	if !opened.Valid || !closed.Valid {
		r.SetNum("resolution_days", pgtype.Float8{})
		return
	}
	days, ok := core.DaysBetween(opened.String, closed.String)
	if !ok {
		r.SetNum("resolution_days", pgtype.Float8{})
		return
	}
	r.SetNum("resolution_days", pgtype.Float8{Float64: float64(max(days, 0)), Valid: true})
}
