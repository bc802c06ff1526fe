package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/logging"
	"github.com/JonMunkholm/banksight/internal/metrics"
)

// Querier runs read-only SQL. *store.Store satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (*core.Result, error)
}

// Service runs catalog reports with optional caching and a concurrency cap.
type Service struct {
	db      Querier
	cache   Cache
	limiter *Limiter
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLimiter replaces the default limiter.
func WithLimiter(l *Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(db Querier, opts ...Option) *Service {
	s := &Service{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewLimiter(DefaultMaxConcurrent, DefaultMaxWait)
	}
	return s
}

// Limiter exposes the concurrency limiter for status and shutdown.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// List returns the catalog.
func (s *Service) List() []Report {
	return List()
}

// Get returns one catalog entry or a NotFoundError.
func (s *Service) Get(id int) (Report, error) {
	r, ok := Get(id)
	if !ok {
		return Report{}, &core.NotFoundError{Kind: "report", Key: strconv.Itoa(id)}
	}
	return r, nil
}

// Run executes report id. An empty table yields zero rows, not an error.
func (s *Service) Run(ctx context.Context, id int) (*core.Result, error) {
	r, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	if s.cache != nil {
		if result, ok := s.cache.Get(ctx, id); ok {
			s.metrics.ObserveReport(id, "cache", time.Since(start))
			return result, nil
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyReports) {
			s.metrics.ObserveRejected()
		}
		return nil, err
	}
	defer s.limiter.Release()

	result, err := s.db.Query(ctx, r.SQL)
	if err != nil {
		return nil, fmt.Errorf("report %d: %w", id, err)
	}
	if result.Columns == nil {
		result.Columns = r.Columns
	}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}

	elapsed := time.Since(start)
	s.metrics.ObserveReport(id, "store", elapsed)
	logging.FromContext(ctx).Debug("report executed",
		"report", id,
		"rows", result.Len(),
		"duration_ms", elapsed.Milliseconds(),
	)

	if s.cache != nil {
		s.cache.Set(ctx, id, result)
	}
	return result, nil
}

// Invalidate drops cached results after the data changed.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// Overview holds the dashboard headline figures.
type Overview struct {
	Customers    int64   `json:"customers"`
	Transactions int64   `json:"transactions"`
	TotalBalance float64 `json:"total_balance"`
	ActiveLoans  int64   `json:"active_loans"`
	OpenTickets  int64   `json:"open_tickets"`
}

const overviewSQL = `
SELECT (SELECT COUNT(*) FROM customers)                                              AS customers,
       (SELECT COUNT(*) FROM transactions)                                           AS transactions,
       (SELECT COALESCE(SUM(account_balance), 0) FROM accounts)                      AS total_balance,
       (SELECT COUNT(*) FROM loans WHERE loan_status <> 'Closed')                    AS active_loans,
       (SELECT COUNT(*) FROM support_tickets WHERE status NOT IN ('Resolved', 'Closed')) AS open_tickets`

// Overview computes the headline figures in one round trip.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	result, err := s.db.Query(ctx, overviewSQL)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	if result.Len() != 1 {
		return &Overview{}, nil
	}
	m := result.Maps()[0]
	return &Overview{
		Customers:    asInt(m["customers"]),
		Transactions: asInt(m["transactions"]),
		TotalBalance: asFloat(m["total_balance"]),
		ActiveLoans:  asInt(m["active_loans"]),
		OpenTickets:  asInt(m["open_tickets"]),
	}, nil
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	}
	return 0
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	}
	return 0
}
