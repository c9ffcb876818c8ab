package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestHoursBetween(t *testing.T) {
	cases := []struct {
		start, end time.Time
		want       string
	}{
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC), "2.5"},
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), "1"},
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 9, 1, 0, 0, time.UTC), "0.02"},
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), "24"},
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 9, 50, 0, 0, time.UTC), "0.83"},
	}
	for i, tc := range cases {
		got := HoursBetween(tc.start, tc.end)
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("case %d: got %s, want %s", i, got, tc.want)
		}
	}
}

func TestTotalAmount(t *testing.T) {
	cases := []struct {
		hours, rate, want string
	}{
		{"2.5", "75", "187.5"},
		{"0.02", "90", "1.8"},
		{"1.33", "60.5", "80.47"}, // 80.465 rounds up
		{"0", "100", "0"},
	}
	for i, tc := range cases {
		got := TotalAmount(dec(tc.hours), dec(tc.rate))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("case %d: got %s, want %s", i, got, tc.want)
		}
	}
}

func TestPrestationInputValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	good := PrestationInput{
		Provider: "Alice",
		Client:   "Acme",
		Task:     "Analyse",
		StartAt:  start,
		EndAt:    start.Add(time.Hour),
		Rate:     dec("75"),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PrestationInput)
		want   error
	}{
		{"end equals start", func(in *PrestationInput) { in.EndAt = in.StartAt }, ErrEndNotAfterStart},
		{"end before start", func(in *PrestationInput) { in.EndAt = in.StartAt.Add(-time.Second) }, ErrEndNotAfterStart},
		{"empty client", func(in *PrestationInput) { in.Client = "  " }, ErrEmptyName},
		{"empty task", func(in *PrestationInput) { in.Task = "" }, ErrEmptyName},
		{"negative rate", func(in *PrestationInput) { in.Rate = dec("-1") }, ErrNegativeRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mutate(&in)
			err := in.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFilterNormalized(t *testing.T) {
	f := Filter{Provider: FilterAll, Client: " Acme ", Task: FilterAll}
	n := f.Normalized()
	if n.Provider != "" || n.Task != "" {
		t.Fatalf("sentinel not stripped: %+v", n)
	}
	if n.Client != "Acme" {
		t.Fatalf("client not trimmed: %q", n.Client)
	}
}

func TestFilterKey(t *testing.T) {
	yes := true
	a := Filter{Client: "Acme", Invoiced: &yes, From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := Filter{Client: "Acme"}
	if a.Key() == b.Key() {
		t.Fatal("distinct filters must have distinct keys")
	}
	if a.Key() != a.Key() {
		t.Fatal("key must be stable")
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)); got != "2024-03" {
		t.Fatalf("got %s", got)
	}
}
