package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pointage/internal/core"
)

// prestationRequest carries the caller-settable fields of a ledger row.
// Hours and total are derived server side and never accepted from a client.
type prestationRequest struct {
	Provider    string    `json:"provider"`
	Client      string    `json:"client"`
	Task        string    `json:"task"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Rate        string    `json:"rate"`
}

func (req prestationRequest) toInput() (core.PrestationInput, error) {
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		return core.PrestationInput{}, err
	}
	return core.PrestationInput{
		Provider:    sanitizeInput(req.Provider),
		Client:      sanitizeInput(req.Client),
		Task:        sanitizeInput(req.Task),
		Description: sanitizeInput(req.Description),
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Rate:        rate,
	}, nil
}

func (s *Server) handlePrestations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPrestations(w, r)
	case http.MethodPost:
		s.handleCreatePrestation(w, r)
	case http.MethodDelete:
		s.handleDeletePrestations(w, r)
	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (s *Server) handleListPrestations(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	rows, err := s.svc.ListFiltered(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrestationList(rows))
}

func (s *Server) handleCreatePrestation(w http.ResponseWriter, r *http.Request) {
	var req prestationRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeBadRequest(w, "invalid rate")
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	p, err := s.svc.Insert(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrestationJSON(p))
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

// handleDeletePrestations hard-deletes a selection of rows. An empty
// selection is rejected so a stray click cannot silently do nothing.
func (s *Server) handleDeletePrestations(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, core.ErrEmptySelection)
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.svc.Delete(ctx, req.IDs); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePrestationByID updates a single row, re-deriving hours and total
// from the submitted span and rate.
func (s *Server) handlePrestationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, "PUT")
		return
	}

	id, err := pathID(r.URL.Path, "/prestations/")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req prestationRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeBadRequest(w, "invalid rate")
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	p, err := s.svc.Update(ctx, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrestationJSON(p))
}

type invoiceRequest struct {
	IDs        []int64 `json:"ids"`
	InvoiceRef string  `json:"invoice_ref"`
}

// handleMarkInvoiced archives a batch of rows under one invoice reference.
// The batch is atomic: one unknown id fails the whole request.
func (s *Server) handleMarkInvoiced(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req invoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, core.ErrEmptySelection)
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.svc.MarkInvoiced(ctx, req.IDs, sanitizeInput(req.InvoiceRef)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
