// Package services hosts the repository facade: the single entry point the
// rest of the system talks to for mutations, reads and observation.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/observe"
	"fintrack/internal/storage"
)

const (
	cacheKeyTransactions = "transactions"
	cacheKeyBalance      = "balance"
	cacheKeyCategories   = "categories"

	snapshotTTL = time.Minute
)

// Tracker serializes all mutation intents against the store and fans
// committed state out to observers. Reads go through a snapshot cache that
// is write-through from the mutation path only: every committed mutation
// installs the fresh snapshots, so consumers polling between mutations
// don't rescan the store. A read miss queries the store directly and never
// backfills the cache; a racing reader could otherwise install a
// pre-commit snapshot over a newer one.
type Tracker struct {
	store    *storage.Store
	notifier notify.Notifier

	// mu serializes mutations; feeds are published while it is held, so
	// observers see commits in order with no interleaved partial state.
	mu sync.Mutex

	transactions *observe.Feed[[]core.Transaction]
	balance      *observe.Feed[core.Money]
	categories   *observe.Feed[[]core.Category]

	txCache  cache.Cache[[]core.Transaction]
	balCache cache.Cache[core.Money]
	catCache cache.Cache[[]core.Category]
}

// NewTracker wires the facade to an explicitly constructed store and
// notifier, and primes the observable feeds with the current state so the
// first subscriber gets a value immediately.
func NewTracker(store *storage.Store, notifier notify.Notifier) (*Tracker, error) {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	t := &Tracker{
		store:        store,
		notifier:     notifier,
		transactions: observe.NewFeed[[]core.Transaction](),
		balance:      observe.NewFeed[core.Money](),
		categories:   observe.NewFeed[[]core.Category](),
		txCache:      cache.NewLRUCache[[]core.Transaction](2, snapshotTTL),
		balCache:     cache.NewLRUCache[core.Money](2, snapshotTTL),
		catCache:     cache.NewLRUCache[[]core.Category](2, snapshotTTL),
	}

	ctx := context.Background()
	if err := t.refreshTransactions(ctx); err != nil {
		return nil, err
	}
	if err := t.refreshCategories(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Insert commits tx locally and then hands it to the remote notifier. The
// returned result describes the remote outcome; a remote failure never
// rolls back or fails the local insert.
func (t *Tracker) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, notify.Result, error) {
	t.mu.Lock()
	stored, err := t.store.InsertTransaction(ctx, tx)
	if err != nil {
		t.mu.Unlock()
		return core.Transaction{}, notify.Result{}, err
	}
	t.afterTransactionCommit(ctx)
	t.mu.Unlock()

	res := t.notifier.Send(ctx, notify.PayloadFor(stored))
	return stored, res, nil
}

// Delete removes tx by identity. Absent rows are a successful no-op.
func (t *Tracker) Delete(ctx context.Context, tx core.Transaction) error {
	return t.DeleteByID(ctx, tx.ID)
}

// DeleteByID removes the transaction with the given id, idempotently.
func (t *Tracker) DeleteByID(ctx context.Context, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.DeleteTransactionByID(ctx, id); err != nil {
		return err
	}
	t.afterTransactionCommit(ctx)
	return nil
}

// InsertCategory upserts c by name and returns the stored row.
func (t *Tracker) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored, err := t.store.InsertCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	t.afterCategoryCommit(ctx)
	return stored, nil
}

// DeleteCategory removes c; the "Uncategorized" fallback is a protected
// no-op. Transactions referencing a deleted category keep their plain
// category name string.
func (t *Tracker) DeleteCategory(ctx context.Context, c core.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.DeleteCategory(ctx, c); err != nil {
		return err
	}
	t.afterCategoryCommit(ctx)
	return nil
}

// DeleteCategoryByID removes the category with the given id, same policy as
// DeleteCategory.
func (t *Tracker) DeleteCategoryByID(ctx context.Context, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.DeleteCategoryByID(ctx, id); err != nil {
		return err
	}
	t.afterCategoryCommit(ctx)
	return nil
}

// Transactions lists all transactions, most recent first, optionally
// filtered by type. Filtering is a pure transform over the full snapshot,
// never a separate persisted view.
func (t *Tracker) Transactions(ctx context.Context, filter core.TransactionType) ([]core.Transaction, error) {
	if ts, ok := t.txCache.Get(cacheKeyTransactions); ok {
		return core.FilterByType(ts, filter), nil
	}
	ts, err := t.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return core.FilterByType(ts, filter), nil
}

// GetTransaction returns a single transaction or storage.ErrNotFound.
func (t *Tracker) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return t.store.GetTransaction(ctx, id)
}

// Balance returns the current balance aggregate.
func (t *Tracker) Balance(ctx context.Context) (core.Money, error) {
	if b, ok := t.balCache.Get(cacheKeyBalance); ok {
		return b, nil
	}
	return t.store.SumBalance(ctx)
}

// Categories lists all categories in stable order.
func (t *Tracker) Categories(ctx context.Context) ([]core.Category, error) {
	if cs, ok := t.catCache.Get(cacheKeyCategories); ok {
		return cs, nil
	}
	return t.store.ListCategories(ctx)
}

// ObserveTransactions subscribes to the live transaction listing.
func (t *Tracker) ObserveTransactions(ctx context.Context) <-chan []core.Transaction {
	return t.transactions.Subscribe(ctx)
}

// ObserveBalance subscribes to the live balance aggregate.
func (t *Tracker) ObserveBalance(ctx context.Context) <-chan core.Money {
	return t.balance.Subscribe(ctx)
}

// ObserveCategories subscribes to the live category listing.
func (t *Tracker) ObserveCategories(ctx context.Context) <-chan []core.Category {
	return t.categories.Subscribe(ctx)
}

// Close releases the notifier and the store.
func (t *Tracker) Close() error {
	if err := t.notifier.Close(); err != nil {
		slog.Warn("Notifier close failed", "error", err)
	}
	return t.store.Close()
}

// afterTransactionCommit recomputes and publishes the transaction and
// balance views. Called with t.mu held so notifications keep commit order.
// A recompute failure leaves observers on the previous state and is logged;
// the commit itself already succeeded.
func (t *Tracker) afterTransactionCommit(ctx context.Context) {
	if err := t.refreshTransactions(ctx); err != nil {
		slog.ErrorContext(ctx, "Recompute after commit failed", "error", err)
	}
}

func (t *Tracker) afterCategoryCommit(ctx context.Context) {
	if err := t.refreshCategories(ctx); err != nil {
		slog.ErrorContext(ctx, "Recompute after commit failed", "error", err)
	}
}

func (t *Tracker) refreshTransactions(ctx context.Context) error {
	ts, err := t.store.ListTransactions(ctx)
	if err != nil {
		return err
	}
	b, err := t.store.SumBalance(ctx)
	if err != nil {
		return err
	}
	t.txCache.Set(cacheKeyTransactions, ts)
	t.balCache.Set(cacheKeyBalance, b)
	t.transactions.Publish(ts)
	t.balance.Publish(b)
	return nil
}

func (t *Tracker) refreshCategories(ctx context.Context) error {
	cs, err := t.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	t.catCache.Set(cacheKeyCategories, cs)
	t.categories.Publish(cs)
	return nil
}
