package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"pointage/internal/core"
)

// Grouping dimensions for report totals.
const (
	GroupByClient   = "client"
	GroupByProvider = "provider"
	GroupByTask     = "task"
	GroupByMonth    = "month"
)

// GroupKey returns the grouping key of a prestation for the given dimension.
// The month key is the start timestamp truncated to its calendar month.
func GroupKey(p core.Prestation, groupBy string) string {
	switch groupBy {
	case GroupByClient:
		return p.Client
	case GroupByProvider:
		return p.Provider
	case GroupByTask:
		return p.Task
	case GroupByMonth:
		return core.MonthKey(p.StartAt)
	}
	return ""
}

// ValidGroupBy reports whether the dimension is one of the supported keys.
func ValidGroupBy(groupBy string) bool {
	switch groupBy {
	case GroupByClient, GroupByProvider, GroupByTask, GroupByMonth:
		return true
	}
	return false
}

// TotalsBy sums hours and totals over the rows per grouping key, sorted by
// key. An empty input yields an empty, non-nil slice.
func TotalsBy(rows []core.Prestation, groupBy string) []core.GroupTotal {
	byKey := make(map[string]*core.GroupTotal)
	for _, p := range rows {
		key := GroupKey(p, groupBy)
		g, ok := byKey[key]
		if !ok {
			g = &core.GroupTotal{Key: key}
			byKey[key] = g
		}
		g.Hours = g.Hours.Add(p.Hours)
		g.Total = g.Total.Add(p.Total)
		g.Count++
	}

	totals := make([]core.GroupTotal, 0, len(byKey))
	for _, g := range byKey {
		totals = append(totals, *g)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Key < totals[j].Key })
	return totals
}

// Summarize computes the headline numbers over a result set: grand total,
// total hours and the row count.
func Summarize(rows []core.Prestation) core.Overview {
	ov := core.Overview{Total: decimal.Zero, Hours: decimal.Zero, Count: len(rows)}
	for _, p := range rows {
		ov.Total = ov.Total.Add(p.Total)
		ov.Hours = ov.Hours.Add(p.Hours)
	}
	return ov
}
