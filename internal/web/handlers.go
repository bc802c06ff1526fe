package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/JonMunkholm/banksight/internal/logging"
	"github.com/JonMunkholm/banksight/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			s.respondErrorStatus(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// tableInfo describes one table for clients building forms.
type tableInfo struct {
	Table        string   `json:"table"`
	Label        string   `json:"label"`
	Rows         int64    `json:"rows"`
	Key          string   `json:"key"`
	Columns      []string `json:"columns"`
	GeneratedKey bool     `json:"generated_key"`
}

// handleListTables returns every table with its row count and columns.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Tables.Counts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	reg := s.deps.Tables.Registry()
	out := make([]tableInfo, 0, len(counts))
	for _, c := range counts {
		info := tableInfo{Table: c.Table, Label: c.Label, Rows: c.Rows}
		if def, ok := reg.Get(c.Table); ok {
			info.Key = def.KeyField()
			info.Columns = def.Info.Columns
			info.GeneratedKey = def.Info.GeneratedKey
		}
		out = append(out, info)
	}
	render.JSON(w, r, out)
}

// handleListRows pages through a table. Every query parameter other than
// limit filters a column: ?city=Chennai matches exactly, and
// ?age.min=30&age.max=60 bounds a numeric column.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	limit := parseIntParam(r, "limit", store.DefaultListLimit)

	result, err := s.deps.Tables.List(r.Context(), table, limit, parseFilters(r)...)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// handleGetRow returns one row. A missing key yields 404.
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")

	result, err := s.deps.Tables.Get(r.Context(), table, key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if result.Len() == 0 {
		s.respondErrorStatus(w, r, errRowNotFound(table, key), http.StatusNotFound)
		return
	}
	render.JSON(w, r, result.Maps()[0])
}

func errRowNotFound(table, key string) error {
	return &core.NotFoundError{Kind: table, Key: key}
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var req rowRequest
	if err := s.validate.bind(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	key, err := s.deps.Tables.Insert(r.Context(), table, req.Values)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dataChanged(r)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"table": table, "key": key})
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")

	var req rowRequest
	if err := s.validate.bind(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.deps.Tables.Update(r.Context(), table, key, req.Values); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dataChanged(r)
	render.JSON(w, r, map[string]string{"status": "updated", "key": key})
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	table, key := chi.URLParam(r, "table"), chi.URLParam(r, "key")

	if err := s.deps.Tables.Delete(r.Context(), table, key); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.dataChanged(r)
	w.WriteHeader(http.StatusNoContent)
}

// dataChanged drops cached report results after a successful write.
// A cache failure is logged; the write itself already succeeded.
func (s *Server) dataChanged(r *http.Request) {
	if s.deps.Reports == nil {
		return
	}
	if err := s.deps.Reports.Invalidate(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("report cache invalidation failed", "error", err)
	}
}
