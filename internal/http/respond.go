package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"pointage/internal/core"
)

// prestationJSON is the wire shape of one ledger row. Decimal fields travel
// as fixed two-place strings so totals survive any JSON number handling.
type prestationJSON struct {
	ID          int64      `json:"id"`
	Provider    string     `json:"provider"`
	Client      string     `json:"client"`
	Task        string     `json:"task"`
	Description string     `json:"description"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	Hours       string     `json:"hours"`
	Rate        string     `json:"rate"`
	Total       string     `json:"total"`
	CreatedAt   time.Time  `json:"created_at"`
	Invoiced    bool       `json:"invoiced"`
	InvoiceRef  string     `json:"invoice_ref,omitempty"`
	InvoicedAt  *time.Time `json:"invoiced_at,omitempty"`
}

func toPrestationJSON(p core.Prestation) prestationJSON {
	return prestationJSON{
		ID:          p.ID,
		Provider:    p.Provider,
		Client:      p.Client,
		Task:        p.Task,
		Description: p.Description,
		StartAt:     p.StartAt,
		EndAt:       p.EndAt,
		Hours:       p.Hours.StringFixed(2),
		Rate:        p.Rate.StringFixed(2),
		Total:       p.Total.StringFixed(2),
		CreatedAt:   p.CreatedAt,
		Invoiced:    p.Invoiced,
		InvoiceRef:  p.InvoiceRef,
		InvoicedAt:  p.InvoicedAt,
	}
}

func toPrestationList(rows []core.Prestation) []prestationJSON {
	out := make([]prestationJSON, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPrestationJSON(p))
	}
	return out
}

type catalogEntryJSON struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rate   string `json:"rate,omitempty"`
	Active bool   `json:"active"`
}

func toCatalogList(kind core.Kind, entries []core.CatalogEntry) []catalogEntryJSON {
	out := make([]catalogEntryJSON, 0, len(entries))
	for _, e := range entries {
		j := catalogEntryJSON{ID: e.ID, Name: e.Name, Active: e.Active}
		if kind == core.KindTask {
			j.Rate = e.Rate.StringFixed(2)
		}
		out = append(out, j)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels to HTTP statuses: unknown rows and names
// are 404, rejected input is 422, everything else is a 500 with the detail
// kept in the log rather than the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNegativeRate),
		errors.Is(err, core.ErrEndNotAfterStart),
		errors.Is(err, core.ErrEmptySelection),
		errors.Is(err, core.ErrUnknownKind):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "method", r.Method, "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
