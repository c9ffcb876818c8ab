package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pointage/internal/core"
)

const dateLayout = "2006-01-02"

// parseFilter builds a ledger filter from the query string. Name fields
// accept the "(Tous)" sentinel as well as being absent; dates are
// YYYY-MM-DD; invoiced is true, false or absent for both.
func parseFilter(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	f := core.Filter{
		Provider: q.Get("provider"),
		Client:   q.Get("client"),
		Task:     q.Get("task"),
	}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid from date %q", v)
		}
		f.From = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid to date %q", v)
		}
		f.To = t
	}
	if v := strings.TrimSpace(q.Get("invoiced")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid invoiced value %q", v)
		}
		f.Invoiced = &b
	}

	return f, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathID extracts the numeric id from a /prefix/{id} path.
func pathID(path, prefix string) (int64, error) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, fmt.Errorf("invalid id in path %q", path)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
