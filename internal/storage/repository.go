package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pointage/internal/core"

	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed catalog store and prestation ledger.
type Repository struct {
	db *sql.DB
}

// New opens (and creates, if needed) the database at dbPath and runs the
// schema migrations.
func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// catalogTable maps a kind to its table name. Kinds are a closed set, so the
// returned name is safe to splice into SQL.
func catalogTable(kind core.Kind) (string, error) {
	switch kind {
	case core.KindClient:
		return "clients", nil
	case core.KindTask:
		return "tasks", nil
	case core.KindProvider:
		return "providers", nil
	}
	return "", fmt.Errorf("%q: %w", kind, core.ErrUnknownKind)
}

// ListActive returns the active catalog entries of the given kind,
// alphabetical by name.
func (r *Repository) ListActive(ctx context.Context, kind core.Kind) ([]core.CatalogEntry, error) {
	return r.listCatalog(ctx, kind, true)
}

// ListAll returns every catalog entry of the given kind, active or not,
// alphabetical by name.
func (r *Repository) ListAll(ctx context.Context, kind core.Kind) ([]core.CatalogEntry, error) {
	return r.listCatalog(ctx, kind, false)
}

func (r *Repository) listCatalog(ctx context.Context, kind core.Kind, activeOnly bool) ([]core.CatalogEntry, error) {
	table, err := catalogTable(kind)
	if err != nil {
		return nil, err
	}

	cols := "id, name, active"
	if kind == core.KindTask {
		cols = "id, name, rate, active"
	}
	query := "SELECT " + cols + " FROM " + table
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]core.CatalogEntry, 0)
	for rows.Next() {
		var e core.CatalogEntry
		if kind == core.KindTask {
			err = rows.Scan(&e.ID, &e.Name, &e.Rate, &e.Active)
		} else {
			err = rows.Scan(&e.ID, &e.Name, &e.Active)
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return entries, nil
}

// AddOrReactivate inserts a new active entry, or flips an existing entry of
// the same name (active or not) back to active. Never creates a duplicate
// and touches no other field on reactivation.
func (r *Repository) AddOrReactivate(ctx context.Context, kind core.Kind, name string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	query := "INSERT INTO " + table + " (name, active) VALUES (?, 1)" +
		" ON CONFLICT (name) DO UPDATE SET active = 1"
	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("add or reactivate %s %q: %w", table, name, err)
	}

	slog.InfoContext(ctx, "Catalog entry saved", "kind", string(kind), "name", name)
	return nil
}

// Deactivate removes an entry from the active set without deleting it.
// The ledger keeps referencing the name; existing rows are not touched.
func (r *Repository) Deactivate(ctx context.Context, kind core.Kind, name string) error {
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	res, err := r.db.ExecContext(ctx, "UPDATE "+table+" SET active = 0 WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deactivate %s %q: %w", table, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", table, name, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Catalog entry deactivated", "kind", string(kind), "name", name)
	return nil
}

// UpsertTask inserts a task or, when the name already exists, re-activates it
// and overwrites its hourly rate.
func (r *Repository) UpsertTask(ctx context.Context, name string, rate decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	if rate.IsNegative() {
		return core.ErrNegativeRate
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (name, rate, active) VALUES (?, ?, 1)
		 ON CONFLICT (name) DO UPDATE SET rate = excluded.rate, active = 1`,
		name, rate)
	if err != nil {
		return fmt.Errorf("upsert task %q: %w", name, err)
	}

	slog.InfoContext(ctx, "Task saved", "name", name, "rate", rate.String())
	return nil
}

var defaultTasks = []struct {
	Name string
	Rate decimal.Decimal
}{
	{"Analyse", decimal.NewFromInt(75)},
	{"Consultance", decimal.NewFromInt(90)},
	{"Déplacement", decimal.NewFromInt(50)},
	{"Administration", decimal.NewFromInt(60)},
}

// EnsureDefaultTasks seeds the starter task set when the table is empty.
// Idempotent: a non-empty table is left untouched.
func (r *Repository) EnsureDefaultTasks(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, t := range defaultTasks {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tasks (name, rate, active) VALUES (?, ?, 1) ON CONFLICT (name) DO NOTHING",
			t.Name, t.Rate)
		if err != nil {
			return fmt.Errorf("seed task %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit default tasks: %w", err)
	}
	slog.InfoContext(ctx, "Seeded default tasks", "count", len(defaultTasks))
	return nil
}

// InsertPrestation validates the input, derives hours and total, and
// persists a new open ledger row. The stored row is returned so callers can
// display the derived values.
func (r *Repository) InsertPrestation(ctx context.Context, in core.PrestationInput) (core.Prestation, error) {
	if err := in.Validate(); err != nil {
		return core.Prestation{}, err
	}

	p := core.Prestation{
		Provider:    in.Provider,
		Client:      in.Client,
		Task:        in.Task,
		Description: in.Description,
		StartAt:     in.StartAt.UTC(),
		EndAt:       in.EndAt.UTC(),
		Rate:        in.Rate,
		CreatedAt:   time.Now().UTC(),
	}
	p.Hours = core.HoursBetween(p.StartAt, p.EndAt)
	p.Total = core.TotalAmount(p.Hours, p.Rate)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO prestations
		 (provider, client, task, description, start_at, end_at, hours, rate, total, created_at, invoiced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		p.Provider, p.Client, p.Task, p.Description, p.StartAt, p.EndAt,
		p.Hours, p.Rate, p.Total, p.CreatedAt)
	if err != nil {
		return core.Prestation{}, fmt.Errorf("insert prestation: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.Prestation{}, fmt.Errorf("read inserted id: %w", err)
	}

	slog.InfoContext(ctx, "Prestation saved",
		"id", p.ID,
		"client", p.Client,
		"task", p.Task,
		"hours", p.Hours.String(),
		"total", p.Total.String())
	return p, nil
}

// UpdatePrestation replaces the caller-settable fields of an existing row and
// re-derives hours and total from the new span and rate. The derivation is
// always done here, never trusted from the caller.
func (r *Repository) UpdatePrestation(ctx context.Context, id int64, in core.PrestationInput) (core.Prestation, error) {
	if err := in.Validate(); err != nil {
		return core.Prestation{}, err
	}

	hours := core.HoursBetween(in.StartAt.UTC(), in.EndAt.UTC())
	total := core.TotalAmount(hours, in.Rate)

	res, err := r.db.ExecContext(ctx,
		`UPDATE prestations
		 SET provider = ?, client = ?, task = ?, description = ?,
		     start_at = ?, end_at = ?, hours = ?, rate = ?, total = ?
		 WHERE id = ?`,
		in.Provider, in.Client, in.Task, in.Description,
		in.StartAt.UTC(), in.EndAt.UTC(), hours, in.Rate, total, id)
	if err != nil {
		return core.Prestation{}, fmt.Errorf("update prestation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Prestation{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.Prestation{}, fmt.Errorf("prestation %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Prestation updated", "id", id, "hours", hours.String(), "total", total.String())
	return r.getPrestation(ctx, id)
}

func (r *Repository) getPrestation(ctx context.Context, id int64) (core.Prestation, error) {
	row := r.db.QueryRowContext(ctx, selectPrestation+" WHERE id = ?", id)
	p, err := scanPrestation(row)
	if err == sql.ErrNoRows {
		return core.Prestation{}, fmt.Errorf("prestation %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Prestation{}, fmt.Errorf("get prestation %d: %w", id, err)
	}
	return p, nil
}

// DeletePrestations hard-deletes the given rows in one transaction.
// A nil or empty id set is a no-op.
func (r *Repository) DeletePrestations(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := "DELETE FROM prestations WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := r.db.ExecContext(ctx, query, idArgs(ids)...); err != nil {
		return fmt.Errorf("delete prestations: %w", err)
	}

	slog.InfoContext(ctx, "Prestations deleted", "count", len(ids))
	return nil
}

// MarkInvoiced archives the given rows: invoiced=true, invoiced_at=now and
// the given invoice reference. The batch is applied in a single transaction;
// if any id does not exist the whole call fails, naming the missing ids, and
// nothing is written. Re-invoicing an already-invoiced row overwrites its
// reference and timestamp. An empty id set is a no-op.
func (r *Repository) MarkInvoiced(ctx context.Context, ids []int64, invoiceRef string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM prestations WHERE id IN ("+placeholders(len(ids))+")", idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("check invoice candidates: %w", err)
	}
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan candidate id: %w", err)
		}
		found[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate candidate ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prestations %v: %w", missing, core.ErrNotFound)
	}

	var ref any
	if invoiceRef != "" {
		ref = invoiceRef
	}
	args := append([]any{time.Now().UTC(), ref}, idArgs(ids)...)
	_, err = tx.ExecContext(ctx,
		"UPDATE prestations SET invoiced = 1, invoiced_at = ?, invoice_ref = ? WHERE id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return fmt.Errorf("mark invoiced: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoicing batch: %w", err)
	}

	slog.InfoContext(ctx, "Prestations invoiced", "count", len(ids), "invoice_ref", invoiceRef)
	return nil
}

const selectPrestation = `SELECT id, provider, client, task, description,
	start_at, end_at, hours, rate, total, created_at, invoiced, invoice_ref, invoiced_at
	FROM prestations`

// ListFiltered returns the ledger rows matching the filter, ordered by start
// ascending. The result is never nil: no matches yields an empty slice.
func (r *Repository) ListFiltered(ctx context.Context, f core.Filter) ([]core.Prestation, error) {
	f = f.Normalized()

	var conds []string
	var args []any
	if f.Provider != "" {
		conds = append(conds, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.Client != "" {
		conds = append(conds, "client = ?")
		args = append(args, f.Client)
	}
	if f.Task != "" {
		conds = append(conds, "task = ?")
		args = append(args, f.Task)
	}
	if !f.From.IsZero() {
		conds = append(conds, "start_at >= ?")
		args = append(args, dayStart(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_at <= ?")
		args = append(args, dayEnd(f.To))
	}
	if f.Invoiced != nil {
		if *f.Invoiced {
			conds = append(conds, "invoiced = 1")
		} else {
			conds = append(conds, "invoiced = 0")
		}
	}

	query := selectPrestation
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prestations: %w", err)
	}
	defer rows.Close()

	result := make([]core.Prestation, 0)
	for rows.Next() {
		p, err := scanPrestation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prestation row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prestation rows: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrestation(row rowScanner) (core.Prestation, error) {
	var (
		p          core.Prestation
		invoiced   int
		invoiceRef sql.NullString
		invoicedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Provider, &p.Client, &p.Task, &p.Description,
		&p.StartAt, &p.EndAt, &p.Hours, &p.Rate, &p.Total, &p.CreatedAt,
		&invoiced, &invoiceRef, &invoicedAt)
	if err != nil {
		return core.Prestation{}, err
	}
	p.Invoiced = invoiced != 0
	p.InvoiceRef = invoiceRef.String
	if invoicedAt.Valid {
		t := invoicedAt.Time
		p.InvoicedAt = &t
	}
	return p, nil
}

// dayStart lower-bounds a date filter at 00:00:00 of that day.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayEnd upper-bounds a date filter at 23:59:59 of that day.
func dayEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
