// Package tables defines the seven banking entities and their cleaning rules.
//
// Use NewRegistry to get every definition in load order (parents first).
package tables

import "github.com/JonMunkholm/banksight/internal/core"

// Table keys, also the relational table names.
const (
	Customers      = "customers"
	Branches       = "branches"
	Accounts       = "accounts"
	Transactions   = "transactions"
	Loans          = "loans"
	CreditCards    = "credit_cards"
	SupportTickets = "support_tickets"
)

// Drop reasons recorded by entity rules.
const (
	DropAgeOutOfRange     core.DropReason = "age_out_of_range"
	DropNegativeBalance   core.DropReason = "negative_balance"
	DropNonPositiveAmount core.DropReason = "non_positive_amount"
)

// Register adds every entity to r in load order.
func Register(r *core.Registry) {
	r.Register(customerDefinition())
	r.Register(branchDefinition())
	r.Register(accountDefinition())
	r.Register(transactionDefinition())
	r.Register(loanDefinition())
	r.Register(creditCardDefinition())
	r.Register(supportTicketDefinition())
}

// NewRegistry returns a registry holding all seven entities.
func NewRegistry() *core.Registry {
	r := core.NewRegistry()
	Register(r)
	return r
}
