package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"pointage/internal/core"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListCatalog(w, r)
	case http.MethodPost:
		s.handleAddCatalogName(w, r)
	case http.MethodDelete:
		s.handleDeactivateCatalogName(w, r)
	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

// handleListCatalog lists catalog entries of a kind. Active names only by
// default; ?all=true includes deactivated ones.
func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	kind := core.Kind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		writeError(w, r, fmt.Errorf("%q: %w", kind, core.ErrUnknownKind))
		return
	}
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	ctx, cancel := s.queryContext(r)
	defer cancel()

	var (
		entries []core.CatalogEntry
		err     error
	)
	if all {
		entries, err = s.svc.ListAll(ctx, kind)
	} else {
		entries, err = s.svc.ListActive(ctx, kind)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCatalogList(kind, entries))
}

type catalogRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (s *Server) handleAddCatalogName(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	kind := core.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, r, fmt.Errorf("%q: %w", kind, core.ErrUnknownKind))
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.svc.AddOrReactivate(ctx, kind, sanitizeInput(req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateCatalogName(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	kind := core.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, r, fmt.Errorf("%q: %w", kind, core.ErrUnknownKind))
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.svc.Deactivate(ctx, kind, sanitizeInput(req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type taskRequest struct {
	Name string `json:"name"`
	Rate string `json:"rate"`
}

// handleUpsertTask creates or updates a task with its hourly rate.
func (s *Server) handleUpsertTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		methodNotAllowed(w, "POST, PUT")
		return
	}

	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		writeBadRequest(w, "invalid rate")
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.svc.UpsertTask(ctx, sanitizeInput(req.Name), rate); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
