package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pointage/internal/amqp"
	"pointage/internal/cache"
	"pointage/internal/core"
	"pointage/internal/storage"
)

// LedgerService fronts the SQLite repository with the short-lived read cache
// and publishes ledger events when an AMQP client is configured. Every
// mutating operation invalidates the caches it can affect before returning,
// so a follow-up read never observes the pre-write state.
type LedgerService struct {
	repo   *storage.Repository
	events *amqp.Client

	catalogCache *cache.LRUCache[[]core.CatalogEntry]
	queryCache   *cache.LRUCache[[]core.Prestation]
}

// NewLedgerService wires the service. events may be nil (eventing disabled).
func NewLedgerService(repo *storage.Repository, events *amqp.Client, cacheTTL time.Duration) *LedgerService {
	return &LedgerService{
		repo:         repo,
		events:       events,
		catalogCache: cache.NewLRU[[]core.CatalogEntry](50, cacheTTL),
		queryCache:   cache.NewLRU[[]core.Prestation](200, cacheTTL),
	}
}

func catalogKey(kind core.Kind, activeOnly bool) string {
	if activeOnly {
		return string(kind) + "/active"
	}
	return string(kind) + "/all"
}

// ListActive returns the active catalog entries of a kind, cached.
func (s *LedgerService) ListActive(ctx context.Context, kind core.Kind) ([]core.CatalogEntry, error) {
	return s.listCatalog(ctx, kind, true)
}

// ListAll returns every catalog entry of a kind, cached.
func (s *LedgerService) ListAll(ctx context.Context, kind core.Kind) ([]core.CatalogEntry, error) {
	return s.listCatalog(ctx, kind, false)
}

func (s *LedgerService) listCatalog(ctx context.Context, kind core.Kind, activeOnly bool) ([]core.CatalogEntry, error) {
	key := catalogKey(kind, activeOnly)
	if entries, found := s.catalogCache.Get(key); found {
		out := make([]core.CatalogEntry, len(entries))
		copy(out, entries)
		return out, nil
	}

	var (
		entries []core.CatalogEntry
		err     error
	)
	if activeOnly {
		entries, err = s.repo.ListActive(ctx, kind)
	} else {
		entries, err = s.repo.ListAll(ctx, kind)
	}
	if err != nil {
		return nil, err
	}

	s.catalogCache.Set(key, entries)
	return entries, nil
}

func (s *LedgerService) invalidateCatalog(kind core.Kind) {
	s.catalogCache.Delete(catalogKey(kind, true))
	s.catalogCache.Delete(catalogKey(kind, false))
}

// AddOrReactivate inserts or re-activates a catalog name.
func (s *LedgerService) AddOrReactivate(ctx context.Context, kind core.Kind, name string) error {
	if err := s.repo.AddOrReactivate(ctx, kind, name); err != nil {
		return err
	}
	s.invalidateCatalog(kind)
	return nil
}

// Deactivate soft-deletes a catalog name.
func (s *LedgerService) Deactivate(ctx context.Context, kind core.Kind, name string) error {
	if err := s.repo.Deactivate(ctx, kind, name); err != nil {
		return err
	}
	s.invalidateCatalog(kind)
	return nil
}

// UpsertTask inserts or updates a task and its hourly rate.
func (s *LedgerService) UpsertTask(ctx context.Context, name string, rate decimal.Decimal) error {
	if err := s.repo.UpsertTask(ctx, name, rate); err != nil {
		return err
	}
	s.invalidateCatalog(core.KindTask)
	return nil
}

// EnsureDefaultTasks seeds the starter tasks when the table is empty.
func (s *LedgerService) EnsureDefaultTasks(ctx context.Context) error {
	if err := s.repo.EnsureDefaultTasks(ctx); err != nil {
		return err
	}
	s.invalidateCatalog(core.KindTask)
	return nil
}

// TaskRate looks up the current hourly rate for a task name. Deactivated
// tasks keep their last rate.
func (s *LedgerService) TaskRate(ctx context.Context, name string) (decimal.Decimal, error) {
	tasks, err := s.ListAll(ctx, core.KindTask)
	if err != nil {
		return decimal.Zero, err
	}
	for _, t := range tasks {
		if t.Name == name {
			return t.Rate, nil
		}
	}
	return decimal.Zero, fmt.Errorf("task %q: %w", name, core.ErrNotFound)
}

// Insert records a new prestation and returns the stored row with its
// derived hours and total.
func (s *LedgerService) Insert(ctx context.Context, in core.PrestationInput) (core.Prestation, error) {
	p, err := s.repo.InsertPrestation(ctx, in)
	if err != nil {
		return core.Prestation{}, err
	}
	s.queryCache.Purge()
	s.publish(ctx, amqp.NewEvent(amqp.EventCreated, []int64{p.ID}))
	return p, nil
}

// Update replaces the editable fields of a prestation; hours and total are
// re-derived by the ledger, never taken from the caller.
func (s *LedgerService) Update(ctx context.Context, id int64, in core.PrestationInput) (core.Prestation, error) {
	p, err := s.repo.UpdatePrestation(ctx, id, in)
	if err != nil {
		return core.Prestation{}, err
	}
	s.queryCache.Purge()
	return p, nil
}

// Delete hard-deletes the given prestations. Empty set is a no-op.
func (s *LedgerService) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.DeletePrestations(ctx, ids); err != nil {
		return err
	}
	s.queryCache.Purge()
	s.publish(ctx, amqp.NewEvent(amqp.EventDeleted, ids))
	return nil
}

// MarkInvoiced archives the batch under the given reference. Empty set is a
// no-op; an unknown id fails the whole batch.
func (s *LedgerService) MarkInvoiced(ctx context.Context, ids []int64, invoiceRef string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.MarkInvoiced(ctx, ids, invoiceRef); err != nil {
		return err
	}
	s.queryCache.Purge()

	e := amqp.NewEvent(amqp.EventInvoiced, ids)
	e.InvoiceRef = invoiceRef
	s.publish(ctx, e)
	return nil
}

// ListFiltered returns the rows matching the filter, cached per filter key.
func (s *LedgerService) ListFiltered(ctx context.Context, f core.Filter) ([]core.Prestation, error) {
	f = f.Normalized()
	key := f.Key()

	if rows, found := s.queryCache.Get(key); found {
		out := make([]core.Prestation, len(rows))
		copy(out, rows)
		return out, nil
	}

	rows, err := s.repo.ListFiltered(ctx, f)
	if err != nil {
		return nil, err
	}
	s.queryCache.Set(key, rows)
	return rows, nil
}

// publish sends a ledger event; failures are logged, never surfaced, so a
// broker outage cannot fail a committed write.
func (s *LedgerService) publish(ctx context.Context, e amqp.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event", "kind", e.Kind, "error", err)
	}
}

// RunCacheJanitor sweeps expired cache entries until ctx is cancelled.
func (s *LedgerService) RunCacheJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := s.catalogCache.CleanExpired() + s.queryCache.CleanExpired()
			if cleaned > 0 {
				slog.DebugContext(ctx, "Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the repository and the event client.
func (s *LedgerService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
