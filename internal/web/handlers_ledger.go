package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/banksight/internal/ledger"
)

type postFunc func(ctx context.Context, customerID string, amount float64) (*ledger.Posting, error)

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handlePosting(w, r, s.deps.Ledger.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handlePosting(w, r, s.deps.Ledger.Withdraw)
}

func (s *Server) handlePosting(w http.ResponseWriter, r *http.Request, post postFunc) {
	customerID := chi.URLParam(r, "customerID")

	var req postingRequest
	if err := s.validate.bind(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := post(r.Context(), customerID, req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dataChanged(r)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}

// handleRecent lists the customer's latest transactions, newest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	n := parseIntParam(r, "limit", ledger.DefaultRecent)

	entries, err := s.deps.Ledger.Recent(r.Context(), customerID, n)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}
