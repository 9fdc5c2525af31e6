// Package memory is an in-process store.Store backed by maps. It is used in
// tests and single-process deployments; data is lost on exit.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/supplier"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps every collection in memory. Records are copied on the way in
// and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	clients          map[string]*client.Client
	suppliers        map[string]*supplier.Supplier
	stock            map[string]*stock.Product
	clientInvoices   map[string]*invoice.ClientInvoice
	supplierInvoices map[string]*invoice.SupplierInvoice
	counters         map[string]*sequence.Counter

	closed bool
}

func New() *Store {
	return &Store{
		clients:          make(map[string]*client.Client),
		suppliers:        make(map[string]*supplier.Supplier),
		stock:            make(map[string]*stock.Product),
		clientInvoices:   make(map[string]*invoice.ClientInvoice),
		supplierInvoices: make(map[string]*invoice.SupplierInvoice),
		counters:         make(map[string]*sequence.Counter),
	}
}

// ──────────────────────────────────────────────────
// Clients
// ──────────────────────────────────────────────────

func (s *Store) PutClient(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.clients[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID id.ClientID) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID.String()]
	if !ok {
		return nil, tally.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListClients(_ context.Context) ([]*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*client.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *client.Client) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

func (s *Store) UpdateClientBalance(_ context.Context, clientID id.ClientID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID.String()]
	if !ok {
		return tally.ErrClientNotFound
	}
	c.CurrentBalance = balance
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteClient(_ context.Context, clientID id.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[clientID.String()]; !ok {
		return tally.ErrClientNotFound
	}
	delete(s.clients, clientID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Suppliers
// ──────────────────────────────────────────────────

func (s *Store) PutSupplier(_ context.Context, sup *supplier.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sup
	s.suppliers[sup.ID.String()] = &cp
	return nil
}

func (s *Store) GetSupplier(_ context.Context, supplierID id.SupplierID) (*supplier.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[supplierID.String()]
	if !ok {
		return nil, tally.ErrSupplierNotFound
	}
	cp := *sup
	return &cp, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]*supplier.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*supplier.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		cp := *sup
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *supplier.Supplier) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

func (s *Store) DeleteSupplier(_ context.Context, supplierID id.SupplierID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[supplierID.String()]; !ok {
		return tally.ErrSupplierNotFound
	}
	delete(s.suppliers, supplierID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Stock
// ──────────────────────────────────────────────────

func cloneProduct(p *stock.Product) *stock.Product {
	cp := *p
	cp.Movements = slices.Clone(p.Movements)
	return &cp
}

func (s *Store) PutStockProduct(_ context.Context, p *stock.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stock[p.ID.String()] = cloneProduct(p)
	return nil
}

func (s *Store) GetStockProduct(_ context.Context, productID id.StockProductID) (*stock.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.stock[productID.String()]
	if !ok {
		return nil, tally.ErrStockProductNotFound
	}
	return cloneProduct(p), nil
}

// ListStock returns entries in creation order so that name collisions
// resolve to the oldest entry.
func (s *Store) ListStock(_ context.Context) ([]*stock.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*stock.Product, 0, len(s.stock))
	for _, p := range s.stock {
		cp := *p
		cp.Movements = nil
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *stock.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *Store) PruneMovements(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := ref + "/"
	for _, p := range s.stock {
		p.Movements = slices.DeleteFunc(p.Movements, func(k string) bool {
			return strings.HasPrefix(k, prefix)
		})
	}
	return nil
}

func (s *Store) DeleteStockProduct(_ context.Context, productID id.StockProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stock[productID.String()]; !ok {
		return tally.ErrStockProductNotFound
	}
	delete(s.stock, productID.String())
	return nil
}

func (s *Store) ApplyMovement(_ context.Context, m *stock.Movement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.stock[m.ProductID.String()]
	if !ok {
		return false, tally.ErrStockProductNotFound
	}
	return p.Fold(m), nil
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (s *Store) PutClientInvoice(_ context.Context, inv *invoice.ClientInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	s.clientInvoices[inv.ID.String()] = &cp
	return nil
}

func (s *Store) GetClientInvoice(_ context.Context, invID id.ClientInvoiceID) (*invoice.ClientInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.clientInvoices[invID.String()]
	if !ok {
		return nil, tally.ErrClientInvoiceNotFound
	}
	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	return &cp, nil
}

func (s *Store) ListClientInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.ClientInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*invoice.ClientInvoice
	for _, inv := range s.clientInvoices {
		if !opts.ClientID.IsNil() && inv.ClientID != opts.ClientID {
			continue
		}
		if !opts.Match(inv.Date) {
			continue
		}
		cp := *inv
		cp.Items = slices.Clone(inv.Items)
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *invoice.ClientInvoice) int {
		return cmp.Compare(a.InvoiceNumber, b.InvoiceNumber)
	})
	return limit(out, opts.Limit), nil
}

func (s *Store) DeleteClientInvoice(_ context.Context, invID id.ClientInvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clientInvoices[invID.String()]; !ok {
		return tally.ErrClientInvoiceNotFound
	}
	delete(s.clientInvoices, invID.String())
	return nil
}

func (s *Store) PutSupplierInvoice(_ context.Context, inv *invoice.SupplierInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	s.supplierInvoices[inv.ID.String()] = &cp
	return nil
}

func (s *Store) GetSupplierInvoice(_ context.Context, invID id.SupplierInvoiceID) (*invoice.SupplierInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.supplierInvoices[invID.String()]
	if !ok {
		return nil, tally.ErrSupplierInvoiceNotFound
	}
	cp := *inv
	cp.Items = slices.Clone(inv.Items)
	return &cp, nil
}

func (s *Store) ListSupplierInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.SupplierInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*invoice.SupplierInvoice
	for _, inv := range s.supplierInvoices {
		if !opts.SupplierID.IsNil() && inv.SupplierID != opts.SupplierID {
			continue
		}
		if !opts.Match(inv.Date) {
			continue
		}
		cp := *inv
		cp.Items = slices.Clone(inv.Items)
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *invoice.SupplierInvoice) int {
		return cmp.Compare(a.InvoiceNumber, b.InvoiceNumber)
	})
	return limit(out, opts.Limit), nil
}

func (s *Store) DeleteSupplierInvoice(_ context.Context, invID id.SupplierInvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.supplierInvoices[invID.String()]; !ok {
		return tally.ErrSupplierInvoiceNotFound
	}
	delete(s.supplierInvoices, invID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Counter
// ──────────────────────────────────────────────────

// MutateCounter holds the write lock across fn, so it never conflicts.
func (s *Store) MutateCounter(_ context.Context, name string, fn sequence.MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *sequence.Counter
	if c, ok := s.counters[name]; ok {
		cp := *c
		cur = &cp
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	cp := *next
	cp.Name = name
	s.counters[name] = &cp
	return nil
}

func (s *Store) GetCounter(_ context.Context, name string) (*sequence.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[name]
	if !ok {
		return nil, sequence.ErrCounterNotFound
	}
	cp := *c
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tally.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
