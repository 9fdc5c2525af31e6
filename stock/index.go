package stock

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
)

// Index maps normalized product names to stock entries. When two entries
// share a name the first one added wins.
type Index struct {
	mu      sync.RWMutex
	entries map[string]indexEntry
}

type indexEntry struct {
	id        id.StockProductID
	unitPrice decimal.Decimal
}

// NewIndex builds an index over a stock snapshot.
func NewIndex(products []*Product) *Index {
	x := &Index{entries: make(map[string]indexEntry, len(products))}
	for _, p := range products {
		x.Add(p)
	}
	return x
}

// Add registers p unless its name is already taken.
func (x *Index) Add(p *Product) {
	key := NormalizeName(p.Name)
	if key == "" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if _, taken := x.entries[key]; !taken {
		x.entries[key] = indexEntry{id: p.ID, unitPrice: p.UnitPrice}
	}
}

// Remove drops the entry registered for p's name if it points at p.
func (x *Index) Remove(p *Product) {
	key := NormalizeName(p.Name)

	x.mu.Lock()
	defer x.mu.Unlock()
	if e, ok := x.entries[key]; ok && e.id == p.ID {
		delete(x.entries, key)
	}
}

// Lookup resolves a product name.
func (x *Index) Lookup(name string) (id.StockProductID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[NormalizeName(name)]
	return e.id, ok
}

// UnitPrice returns the catalog price for a product name.
func (x *Index) UnitPrice(name string) (decimal.Decimal, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[NormalizeName(name)]
	return e.unitPrice, ok
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
