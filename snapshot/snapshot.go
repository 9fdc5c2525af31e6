// Package snapshot keeps read-only, versioned copies of the tally
// collections for live views.
//
// A Mirror loads each collection once, then reloads a collection whenever
// the change feed names it. Every reload publishes a new immutable Snapshot
// with a higher version; readers grab the current one without locking.
// Mirrors never write to the store.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/supplier"
	"github.com/xraph/tally/watch"
)

// Source is the read side of a store.
type Source interface {
	ListClients(ctx context.Context) ([]*client.Client, error)
	ListSuppliers(ctx context.Context) ([]*supplier.Supplier, error)
	ListStock(ctx context.Context) ([]*stock.Product, error)
	ListClientInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.ClientInvoice, error)
	ListSupplierInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.SupplierInvoice, error)
}

// Snapshot is one immutable load of a collection. Callers must not modify
// Records or the values they point to.
type Snapshot[T any] struct {
	Collection string    `json:"collection"`
	Version    uint64    `json:"version"`
	LoadedAt   time.Time `json:"loaded_at"`
	Records    []T       `json:"records"`
}

// Len returns the number of records.
func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// view owns the current snapshot of one collection. Refreshes are
// serialized so versions are unique and a slower load never replaces a
// newer one.
type view[T any] struct {
	name    string
	load    func(ctx context.Context) ([]T, error)
	publish func(*Snapshot[T])

	mu      sync.Mutex
	current atomic.Pointer[Snapshot[T]]
}

func newView[T any](name string, load func(ctx context.Context) ([]T, error)) *view[T] {
	v := &view[T]{name: name, load: load}
	v.current.Store(&Snapshot[T]{Collection: name})
	return v
}

func (v *view[T]) refresh(ctx context.Context) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	records, err := v.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: load %s: %w", v.name, err)
	}
	next := &Snapshot[T]{
		Collection: v.name,
		Version:    v.current.Load().Version + 1,
		LoadedAt:   time.Now().UTC(),
		Records:    records,
	}
	v.current.Store(next)
	if v.publish != nil {
		v.publish(next)
	}
	return next.Version, nil
}

// Observer is told about every new snapshot version.
type Observer func(collection string, version uint64)

// Mirror holds one snapshot per collection.
type Mirror struct {
	source Source
	feed   watch.Subscriber
	logger *slog.Logger

	clients          *view[*client.Client]
	suppliers        *view[*supplier.Supplier]
	stock            *view[*stock.Product]
	clientInvoices   *view[*invoice.ClientInvoice]
	supplierInvoices *view[*invoice.SupplierInvoice]
	catalog          atomic.Pointer[stock.Index]

	refreshers map[string]func(ctx context.Context) (uint64, error)

	mu        sync.RWMutex
	observers []Observer
}

// New returns a mirror over source, fed by feed. Nothing is loaded until
// Sync or Run.
func New(source Source, feed watch.Subscriber, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mirror{
		source: source,
		feed:   feed,
		logger: logger,
	}

	m.clients = newView(store.CollectionClients, source.ListClients)
	m.suppliers = newView(store.CollectionSuppliers, source.ListSuppliers)
	m.stock = newView(store.CollectionStock, source.ListStock)
	m.clientInvoices = newView(store.CollectionClientInvoices, func(ctx context.Context) ([]*invoice.ClientInvoice, error) {
		return source.ListClientInvoices(ctx, invoice.ListOpts{})
	})
	m.supplierInvoices = newView(store.CollectionSupplierInvoices, func(ctx context.Context) ([]*invoice.SupplierInvoice, error) {
		return source.ListSupplierInvoices(ctx, invoice.ListOpts{})
	})
	m.stock.publish = func(snap *Snapshot[*stock.Product]) {
		m.catalog.Store(stock.NewIndex(snap.Records))
	}
	m.catalog.Store(stock.NewIndex(nil))

	m.refreshers = map[string]func(ctx context.Context) (uint64, error){
		store.CollectionClients:   m.clients.refresh,
		store.CollectionSuppliers: m.suppliers.refresh,
		store.CollectionStock:     m.stock.refresh,
		store.CollectionClientInvoices:   m.clientInvoices.refresh,
		store.CollectionSupplierInvoices: m.supplierInvoices.refresh,
	}

	return m
}

// Observe registers fn for every new snapshot.
func (m *Mirror) Observe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Clients returns the current clients snapshot.
func (m *Mirror) Clients() *Snapshot[*client.Client] { return m.clients.current.Load() }

// Suppliers returns the current suppliers snapshot.
func (m *Mirror) Suppliers() *Snapshot[*supplier.Supplier] { return m.suppliers.current.Load() }

// Stock returns the current stock snapshot, oldest entry first.
func (m *Mirror) Stock() *Snapshot[*stock.Product] { return m.stock.current.Load() }

// ClientInvoices returns the current client invoices snapshot.
func (m *Mirror) ClientInvoices() *Snapshot[*invoice.ClientInvoice] {
	return m.clientInvoices.current.Load()
}

// SupplierInvoices returns the current supplier invoices snapshot.
func (m *Mirror) SupplierInvoices() *Snapshot[*invoice.SupplierInvoice] {
	return m.supplierInvoices.current.Load()
}

// Catalog returns a name index over the current stock snapshot.
func (m *Mirror) Catalog() *stock.Index { return m.catalog.Load() }

// Version returns the current version of a collection, 0 before the first
// load.
func (m *Mirror) Version(collection string) uint64 {
	switch collection {
	case store.CollectionClients:
		return m.Clients().Version
	case store.CollectionSuppliers:
		return m.Suppliers().Version
	case store.CollectionStock:
		return m.Stock().Version
	case store.CollectionClientInvoices:
		return m.ClientInvoices().Version
	case store.CollectionSupplierInvoices:
		return m.SupplierInvoices().Version
	}
	return 0
}

// Refresh reloads one collection.
func (m *Mirror) Refresh(ctx context.Context, collection string) error {
	refresh, ok := m.refreshers[collection]
	if !ok {
		return fmt.Errorf("snapshot: unknown collection %q", collection)
	}

	version, err := refresh(ctx)
	if err != nil {
		return err
	}

	m.mu.RLock()
	observers := m.observers
	m.mu.RUnlock()
	for _, fn := range observers {
		fn(collection, version)
	}
	return nil
}

// Sync reloads every collection.
func (m *Mirror) Sync(ctx context.Context) error {
	for _, collection := range store.Collections() {
		if err := m.Refresh(ctx, collection); err != nil {
			return err
		}
	}
	return nil
}

// Run subscribes to the change feed, loads every collection and then
// reloads collections as changes arrive, until ctx ends or the feed closes.
// Changes that queue up while a reload runs are coalesced per collection.
func (m *Mirror) Run(ctx context.Context) error {
	changes, err := m.feed.Subscribe(ctx, store.Collections()...)
	if err != nil {
		return fmt.Errorf("snapshot: subscribe: %w", err)
	}
	if err := m.Sync(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			pending := map[string]bool{c.Collection: true}
			for drained := false; !drained; {
				select {
				case more, ok := <-changes:
					if !ok {
						drained = true
						break
					}
					pending[more.Collection] = true
				default:
					drained = true
				}
			}
			for collection := range pending {
				if err := m.Refresh(ctx, collection); err != nil {
					m.logger.Warn("snapshot refresh failed",
						"collection", collection,
						"error", err,
					)
				}
			}
		}
	}
}
