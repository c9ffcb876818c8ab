package core

import "github.com/shopspring/decimal"

// GroupTotal is an aggregated sum for one grouping key
// (a client, a provider, a task or a calendar month).
type GroupTotal struct {
	Key   string
	Hours decimal.Decimal
	Total decimal.Decimal
	Count int
}

// Overview holds the headline numbers for a filtered result set.
type Overview struct {
	Total decimal.Decimal
	Hours decimal.Decimal
	Count int
}
