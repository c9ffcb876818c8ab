package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pointage/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "pointage.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleInput() core.PrestationInput {
	return core.PrestationInput{
		Provider:    "Alice",
		Client:      "Acme",
		Task:        "Analyse",
		Description: "",
		StartAt:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC),
		Rate:        dec("75"),
	}
}

func TestInsertPrestationDerivesHoursAndTotal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.InsertPrestation(ctx, sampleInput())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !p.Hours.Equal(dec("2.5")) {
		t.Errorf("hours = %s, want 2.5", p.Hours)
	}
	if !p.Total.Equal(dec("187.5")) {
		t.Errorf("total = %s, want 187.5", p.Total)
	}
	if p.ID == 0 {
		t.Error("expected assigned id")
	}
	if p.Invoiced {
		t.Error("new prestation must be open")
	}

	rows, err := repo.ListFiltered(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	got := rows[0]
	if !got.Hours.Equal(dec("2.5")) || !got.Total.Equal(dec("187.5")) || !got.Rate.Equal(dec("75")) {
		t.Errorf("persisted row mismatch: %+v", got)
	}
	if got.Client != "Acme" || got.Task != "Analyse" || got.Provider != "Alice" {
		t.Errorf("persisted names mismatch: %+v", got)
	}
}

func TestInsertPrestationRejectsBadSpan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := sampleInput()
	in.EndAt = in.StartAt
	if _, err := repo.InsertPrestation(ctx, in); !errors.Is(err, core.ErrEndNotAfterStart) {
		t.Fatalf("got %v, want ErrEndNotAfterStart", err)
	}

	in.EndAt = in.StartAt.Add(-time.Hour)
	if _, err := repo.InsertPrestation(ctx, in); !errors.Is(err, core.ErrEndNotAfterStart) {
		t.Fatalf("got %v, want ErrEndNotAfterStart", err)
	}

	rows, err := repo.ListFiltered(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rejected insert persisted %d rows", len(rows))
	}
}

func TestUpdatePrestationRederives(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.InsertPrestation(ctx, sampleInput())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	in := sampleInput()
	in.Rate = dec("100")
	in.Description = "revu"
	updated, err := repo.UpdatePrestation(ctx, p.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Hours.Equal(dec("2.5")) {
		t.Errorf("hours = %s, want 2.5", updated.Hours)
	}
	if !updated.Total.Equal(dec("250")) {
		t.Errorf("total = %s, want 250 after rate change", updated.Total)
	}
	if updated.Description != "revu" {
		t.Errorf("description = %q", updated.Description)
	}
}

func TestUpdatePrestationUnknownID(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.UpdatePrestation(context.Background(), 999, sampleInput()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAddOrReactivateNeverDuplicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.AddOrReactivate(ctx, core.KindClient, "Acme"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := repo.AddOrReactivate(ctx, core.KindClient, "Acme"); err != nil {
		t.Fatalf("second add: %v", err)
	}

	all, err := repo.ListAll(ctx, core.KindClient)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d clients, want 1", len(all))
	}
	if all[0].Name != "Acme" || !all[0].Active {
		t.Fatalf("unexpected entry: %+v", all[0])
	}
}

func TestAddOrReactivateRejectsBlankName(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.AddOrReactivate(context.Background(), core.KindProvider, "   "); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("got %v, want ErrEmptyName", err)
	}
}

func TestUpsertTaskOverwritesRate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertTask(ctx, "Analyse", dec("75")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpsertTask(ctx, "Analyse", dec("80")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.UpsertTask(ctx, "Audit", dec("-5")); !errors.Is(err, core.ErrNegativeRate) {
		t.Fatalf("got %v, want ErrNegativeRate", err)
	}

	tasks, err := repo.ListAll(ctx, core.KindTask)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if !tasks[0].Rate.Equal(dec("80")) {
		t.Fatalf("rate = %s, want 80", tasks[0].Rate)
	}
}

func TestEnsureDefaultTasksIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureDefaultTasks(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	tasks, err := repo.ListActive(ctx, core.KindTask)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("got %d default tasks, want 4", len(tasks))
	}

	// A later rate change must survive a re-seed.
	if err := repo.UpsertTask(ctx, "Analyse", dec("120")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.EnsureDefaultTasks(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	tasks, _ = repo.ListActive(ctx, core.KindTask)
	if len(tasks) != 4 {
		t.Fatalf("re-seed changed task count to %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Name == "Analyse" && !task.Rate.Equal(dec("120")) {
			t.Fatalf("re-seed reset rate to %s", task.Rate)
		}
	}
}

func TestDeletePrestations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, _ := repo.InsertPrestation(ctx, sampleInput())

	if err := repo.DeletePrestations(ctx, nil); err != nil {
		t.Fatalf("empty delete must be a no-op: %v", err)
	}
	if err := repo.DeletePrestations(ctx, []int64{p.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, _ := repo.ListFiltered(ctx, core.Filter{})
	if len(rows) != 0 {
		t.Fatalf("row survived delete")
	}
}

func TestMarkInvoicedLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, err := repo.InsertPrestation(ctx, sampleInput())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := repo.MarkInvoiced(ctx, nil, "2024-001"); err != nil {
		t.Fatalf("empty batch must be a no-op: %v", err)
	}

	if err := repo.MarkInvoiced(ctx, []int64{p.ID}, "2024-001"); err != nil {
		t.Fatalf("mark invoiced: %v", err)
	}

	open := false
	rows, err := repo.ListFiltered(ctx, core.Filter{Client: "Acme", Invoiced: &open})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("invoiced row still listed as open")
	}

	archived := true
	rows, err = repo.ListFiltered(ctx, core.Filter{Invoiced: &archived})
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d archived rows, want 1", len(rows))
	}
	got := rows[0]
	if !got.Invoiced || got.InvoiceRef != "2024-001" || got.InvoicedAt == nil {
		t.Fatalf("invoicing metadata missing: %+v", got)
	}

	// Re-invoicing overwrites the reference.
	if err := repo.MarkInvoiced(ctx, []int64{p.ID}, "2024-002"); err != nil {
		t.Fatalf("re-invoice: %v", err)
	}
	rows, _ = repo.ListFiltered(ctx, core.Filter{Invoiced: &archived})
	if rows[0].InvoiceRef != "2024-002" {
		t.Fatalf("invoice_ref = %q, want 2024-002", rows[0].InvoiceRef)
	}
}

func TestMarkInvoicedUnknownIDFailsWholeBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, _ := repo.InsertPrestation(ctx, sampleInput())

	err := repo.MarkInvoiced(ctx, []int64{p.ID, 12345}, "2024-001")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	open := false
	rows, _ := repo.ListFiltered(ctx, core.Filter{Invoiced: &open})
	if len(rows) != 1 {
		t.Fatalf("failed batch was partially applied")
	}
}

func TestListFilteredDateBoundsInclusive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertAt := func(start time.Time) {
		t.Helper()
		in := sampleInput()
		in.StartAt = start
		in.EndAt = start.Add(time.Hour)
		if _, err := repo.InsertPrestation(ctx, in); err != nil {
			t.Fatalf("insert at %v: %v", start, err)
		}
	}

	// One second before the window, both edges, one second after.
	insertAt(time.Date(2024, 1, 9, 23, 59, 59, 0, time.UTC))
	insertAt(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	insertAt(time.Date(2024, 1, 20, 23, 59, 59, 0, time.UTC))
	insertAt(time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC))

	rows, err := repo.ListFiltered(ctx, core.Filter{
		From: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want the 2 edge rows", len(rows))
	}
	if !rows[0].StartAt.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first row start = %v", rows[0].StartAt)
	}
	if !rows[1].StartAt.Equal(time.Date(2024, 1, 20, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("second row start = %v", rows[1].StartAt)
	}
}

func TestListFilteredByNamesAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	later := sampleInput()
	later.StartAt = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	later.EndAt = later.StartAt.Add(time.Hour)
	if _, err := repo.InsertPrestation(ctx, later); err != nil {
		t.Fatal(err)
	}

	other := sampleInput()
	other.Client = "Globex"
	other.Task = "Consultance"
	if _, err := repo.InsertPrestation(ctx, other); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.InsertPrestation(ctx, sampleInput()); err != nil {
		t.Fatal(err)
	}

	rows, err := repo.ListFiltered(ctx, core.Filter{Client: "Acme"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d Acme rows, want 2", len(rows))
	}
	if !rows[0].StartAt.Before(rows[1].StartAt) {
		t.Fatal("rows not ordered by start ascending")
	}

	// The sentinel behaves like no filter.
	rows, err = repo.ListFiltered(ctx, core.Filter{Client: core.FilterAll})
	if err != nil {
		t.Fatalf("list with sentinel: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("sentinel filter got %d rows, want 3", len(rows))
	}
}

func TestListFilteredEmptyResultIsNotNil(t *testing.T) {
	repo := newTestRepo(t)
	rows, err := repo.ListFiltered(context.Background(), core.Filter{Client: "Nobody"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows == nil {
		t.Fatal("empty result must be a non-nil slice")
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

func TestCatalogSoftDeleteDoesNotTouchLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.AddOrReactivate(ctx, core.KindClient, "Acme"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.InsertPrestation(ctx, sampleInput()); err != nil {
		t.Fatal(err)
	}

	if err := repo.Deactivate(ctx, core.KindClient, "Acme"); err != nil {
		t.Fatal(err)
	}

	active, err := repo.ListActive(ctx, core.KindClient)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatal("deactivated client still listed as active")
	}

	rows, err := repo.ListFiltered(ctx, core.Filter{Client: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatal("ledger row lost after catalog deactivation")
	}

	// Re-adding the same name reactivates the existing row.
	if err := repo.AddOrReactivate(ctx, core.KindClient, "Acme"); err != nil {
		t.Fatal(err)
	}
	all, err := repo.ListAll(ctx, core.KindClient)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || !all[0].Active {
		t.Fatalf("reactivation produced %+v", all)
	}
}
