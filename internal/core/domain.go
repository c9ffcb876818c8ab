package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind selects one of the three catalog tables.
type Kind string

const (
	KindClient   Kind = "clients"
	KindTask     Kind = "tasks"
	KindProvider Kind = "providers"
)

// FilterAll is the sentinel select-box value meaning "no filter".
const FilterAll = "(Tous)"

var (
	ErrEndNotAfterStart = errors.New("end must be after start")
	ErrEmptyName        = errors.New("empty name")
	ErrNegativeRate     = errors.New("negative rate")
	ErrNotFound         = errors.New("not found")
	ErrEmptySelection   = errors.New("empty selection")
	ErrUnknownKind      = errors.New("unknown catalog kind")
)

type (
	// CatalogEntry is a reusable named reference (client, task or provider)
	// with a soft active/inactive state. Rate is meaningful for tasks only.
	CatalogEntry struct {
		ID     int64
		Name   string
		Rate   decimal.Decimal
		Active bool
	}

	// Prestation is one billable service entry. Hours and Total are derived
	// from the time span and the rate snapshot, never set directly.
	Prestation struct {
		ID          int64
		Provider    string
		Client      string
		Task        string
		Description string
		StartAt     time.Time
		EndAt       time.Time
		Hours       decimal.Decimal
		Rate        decimal.Decimal
		Total       decimal.Decimal
		CreatedAt   time.Time
		Invoiced    bool
		InvoiceRef  string
		InvoicedAt  *time.Time
	}

	// PrestationInput carries the caller-settable fields for an insert or
	// update. The ledger derives hours and total from it.
	PrestationInput struct {
		Provider    string
		Client      string
		Task        string
		Description string
		StartAt     time.Time
		EndAt       time.Time
		Rate        decimal.Decimal
	}

	// Filter narrows a ledger query. Zero values (and the FilterAll
	// sentinel on the name fields) mean "no constraint". Date bounds apply
	// inclusively to the prestation start: From at 00:00:00, To at 23:59:59.
	Filter struct {
		Provider string
		Client   string
		Task     string
		From     time.Time
		To       time.Time
		Invoiced *bool
	}
)

// Valid reports whether k names one of the catalog tables.
func (k Kind) Valid() bool {
	switch k {
	case KindClient, KindTask, KindProvider:
		return true
	}
	return false
}

func (in PrestationInput) Validate() error {
	if strings.TrimSpace(in.Client) == "" {
		return fmt.Errorf("client: %w", ErrEmptyName)
	}
	if strings.TrimSpace(in.Task) == "" {
		return fmt.Errorf("task: %w", ErrEmptyName)
	}
	if in.Rate.IsNegative() {
		return ErrNegativeRate
	}
	if !in.EndAt.After(in.StartAt) {
		return ErrEndNotAfterStart
	}
	return nil
}

// HoursBetween converts a time span to decimal hours rounded to 2 places.
func HoursBetween(start, end time.Time) decimal.Decimal {
	seconds := decimal.NewFromFloat(end.Sub(start).Seconds())
	return seconds.Div(decimal.NewFromInt(3600)).Round(2)
}

// TotalAmount is hours × rate rounded to 2 places.
func TotalAmount(hours, rate decimal.Decimal) decimal.Decimal {
	return hours.Mul(rate).Round(2)
}

// MonthKey truncates a timestamp to its calendar month, e.g. "2024-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// Normalized returns a copy of f with the FilterAll sentinel and surrounding
// whitespace stripped from the name fields.
func (f Filter) Normalized() Filter {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		if s == FilterAll {
			return ""
		}
		return s
	}
	f.Provider = clean(f.Provider)
	f.Client = clean(f.Client)
	f.Task = clean(f.Task)
	return f
}

// Key builds a stable cache key for the filter.
func (f Filter) Key() string {
	inv := "any"
	if f.Invoiced != nil {
		if *f.Invoiced {
			inv = "yes"
		} else {
			inv = "no"
		}
	}
	from, to := "", ""
	if !f.From.IsZero() {
		from = f.From.Format("2006-01-02")
	}
	if !f.To.IsZero() {
		to = f.To.Format("2006-01-02")
	}
	return strings.Join([]string{f.Provider, f.Client, f.Task, from, to, inv}, "|")
}
