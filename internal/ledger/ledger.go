// Package ledger simulates teller postings against loaded accounts.
// Each posting updates the balance, stamps last_updated and records a
// transactions row in a single database transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/logging"
	"github.com/JonMunkholm/banksight/internal/metrics"
)

const (
	MinAmount      = 1.0
	MaxAmount      = 5_000_000.0
	MinimumBalance = 1000.0

	// DefaultRecent is how many postings Recent returns when n is not positive.
	DefaultRecent = 10
	maxRecent     = 100
)

// Posting kinds, stored as txn_type.
const (
	KindDeposit    = "Deposit"
	KindWithdrawal = "Withdrawal"
)

const statusSuccess = "Success"

var (
	ErrAmountOutOfRange  = errors.New("amount out of range")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// DB is the connection surface the ledger needs. *pgxpool.Pool satisfies it.
type DB interface {
	core.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Ledger posts deposits and withdrawals.
type Ledger struct {
	db      DB
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides the time source used for stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(db DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Posting is a committed deposit or withdrawal.
type Posting struct {
	TxnID      string  `json:"txn_id"`
	CustomerID string  `json:"customer_id"`
	Type       string  `json:"txn_type"`
	Amount     float64 `json:"amount"`
	Balance    float64 `json:"balance"`
	Time       string  `json:"txn_time"`
	Status     string  `json:"status"`
}

// Deposit credits amount to the customer's account.
func (l *Ledger) Deposit(ctx context.Context, customerID string, amount float64) (*Posting, error) {
	return l.post(ctx, KindDeposit, customerID, amount)
}

// Withdraw debits amount, refusing to leave less than MinimumBalance.
func (l *Ledger) Withdraw(ctx context.Context, customerID string, amount float64) (*Posting, error) {
	return l.post(ctx, KindWithdrawal, customerID, amount)
}

// NewTxnID returns "T" followed by 12 hex characters.
func NewTxnID() string {
	return "T" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && amount >= MinAmount && amount <= MaxAmount
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func (l *Ledger) post(ctx context.Context, kind, customerID string, amount float64) (*Posting, error) {
	customerID = strings.TrimSpace(customerID)
	if !validAmount(amount) {
		l.metrics.ObservePosting(kind, "rejected")
		return nil, fmt.Errorf("%w: %v", ErrAmountOutOfRange, amount)
	}
	amount = roundMoney(amount)

	p, err := l.apply(ctx, kind, customerID, amount)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, core.ErrNotFound) {
			outcome = "rejected"
		}
		l.metrics.ObservePosting(kind, outcome)
		return nil, err
	}

	l.metrics.ObservePosting(kind, "committed")
	logging.FromContext(ctx).Info("posting committed",
		"txn_id", p.TxnID,
		"customer_id", p.CustomerID,
		"type", kind,
		"amount", p.Amount,
		"balance", p.Balance,
	)
	return p, nil
}

func (l *Ledger) apply(ctx context.Context, kind, customerID string, amount float64) (*Posting, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, &core.StoreError{Table: "accounts", Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	var balance pgtype.Float8
	err = tx.QueryRow(ctx,
		`SELECT account_balance FROM accounts WHERE customer_id = $1 FOR UPDATE`,
		customerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "account", Key: customerID}
	}
	if err != nil {
		return nil, &core.StoreError{Table: "accounts", Op: "lock", Err: err}
	}

	next := balance.Float64 + amount
	if kind == KindWithdrawal {
		next = balance.Float64 - amount
		if next < MinimumBalance {
			return nil, fmt.Errorf("%w: balance %.2f, withdrawal %.2f, minimum %.2f",
				ErrInsufficientFunds, balance.Float64, amount, MinimumBalance)
		}
	}
	next = roundMoney(next)
	stamp := l.now().Format(core.TimestampLayout)

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET account_balance = $2, last_updated = $3 WHERE customer_id = $1`,
		customerID, next, stamp,
	); err != nil {
		return nil, &core.StoreError{Table: "accounts", Op: "update", Err: err}
	}

	p := &Posting{
		TxnID:      NewTxnID(),
		CustomerID: customerID,
		Type:       kind,
		Amount:     amount,
		Balance:    next,
		Time:       stamp,
		Status:     statusSuccess,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (txn_id, customer_id, txn_type, amount, txn_time, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.TxnID, p.CustomerID, p.Type, p.Amount, p.Time, p.Status,
	); err != nil {
		return nil, &core.StoreError{Table: "transactions", Op: "insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &core.StoreError{Table: "accounts", Op: "commit", Err: err}
	}
	return p, nil
}

// Entry is one row of a customer's transaction history.
type Entry struct {
	TxnID   string  `json:"txn_id"`
	TxnType string  `json:"txn_type"`
	Amount  float64 `json:"amount"`
	TxnTime string  `json:"txn_time"`
	Status  string  `json:"status"`
}

// Recent returns the customer's latest n transactions, newest first.
func (l *Ledger) Recent(ctx context.Context, customerID string, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	n = min(n, maxRecent)

	rows, err := l.db.Query(ctx,
		`SELECT txn_id, txn_type, amount, txn_time, status
		 FROM transactions
		 WHERE customer_id = $1
		 ORDER BY txn_time DESC, txn_id DESC
		 LIMIT $2`,
		strings.TrimSpace(customerID), n,
	)
	if err != nil {
		return nil, &core.StoreError{Table: "transactions", Op: "query", Err: err}
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			id, kind, at, status pgtype.Text
			amount               pgtype.Float8
		)
		if err := rows.Scan(&id, &kind, &amount, &at, &status); err != nil {
			return nil, &core.StoreError{Table: "transactions", Op: "scan", Err: err}
		}
		entries = append(entries, Entry{
			TxnID:   id.String,
			TxnType: kind.String,
			Amount:  amount.Float64,
			TxnTime: at.String,
			Status:  status.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Table: "transactions", Op: "query", Err: err}
	}
	return entries, nil
}
