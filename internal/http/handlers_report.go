package http

import (
	"log/slog"
	"net/http"
	"strings"

	"pointage/internal/export"
	"pointage/internal/services"
)

type groupTotalJSON struct {
	Key   string `json:"key"`
	Hours string `json:"hours"`
	Total string `json:"total"`
	Count int    `json:"count"`
}

type reportResponse struct {
	Total  string           `json:"total"`
	Hours  string           `json:"hours"`
	Count  int              `json:"count"`
	Groups []groupTotalJSON `json:"groups,omitempty"`
}

// handleReports aggregates the filtered rows: headline totals always,
// per-group breakdown when ?group_by=client|provider|task|month is given.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	groupBy := strings.TrimSpace(r.URL.Query().Get("group_by"))
	if groupBy != "" && !services.ValidGroupBy(groupBy) {
		writeBadRequest(w, "invalid group_by, want client, provider, task or month")
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	rows, err := s.svc.ListFiltered(ctx, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ov := services.Summarize(rows)
	resp := reportResponse{
		Total: ov.Total.StringFixed(2),
		Hours: ov.Hours.StringFixed(2),
		Count: ov.Count,
	}
	if groupBy != "" {
		totals := services.TotalsBy(rows, groupBy)
		resp.Groups = make([]groupTotalJSON, 0, len(totals))
		for _, g := range totals {
			resp.Groups = append(resp.Groups, groupTotalJSON{
				Key:   g.Key,
				Hours: g.Hours.StringFixed(2),
				Total: g.Total.StringFixed(2),
				Count: g.Count,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleExportCSV streams the filtered rows as a spreadsheet-ready CSV
// attachment.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

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

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="prestations.csv"`)
	if err := export.WriteCSV(w, rows); err != nil {
		// Headers are already sent, logging is all that is left.
		slog.ErrorContext(ctx, "CSV export failed mid-stream", "error", err)
	}
}
