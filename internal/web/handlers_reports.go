package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/report"
)

// reportResponse pairs a report's metadata with its result rows.
type reportResponse struct {
	report.Report
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

// handleListReports returns the catalog without SQL.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports := s.deps.Reports.List()
	for i := range reports {
		reports[i].SQL = ""
	}
	render.JSON(w, r, reports)
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.deps.Reports.Limiter().Status())
}

// handleRunReport executes one report. Empty tables give an empty rows array.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: report id %q is not a number", core.ErrInvalidRequest, raw))
		return
	}

	meta, err := s.deps.Reports.Get(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.deps.Reports.Run(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	meta.SQL = ""
	render.JSON(w, r, reportResponse{
		Report: meta,
		Rows:   result.Maps(),
		Count:  result.Len(),
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.deps.Reports.Overview(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, overview)
}
