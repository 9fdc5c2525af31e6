// Package stock holds the inventory aggregate and the reconciler that moves
// quantities and kilos in response to invoices.
package stock

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Product is a stock entry for one named product.
type Product struct {
	types.Entity
	ID           id.StockProductID `json:"id"`
	Name         string            `json:"name"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Kilos        decimal.Decimal   `json:"kilos"`
	UnitPrice    decimal.Decimal   `json:"unit_price"`
	LastEditedBy string            `json:"last_edited_by"`
	LastEditedAt time.Time         `json:"last_edited_at"`

	// Movements lists the keys of every movement already folded into the
	// quantities. Stores persist it; callers never edit it.
	Movements []string `json:"-"`
}

// NewProduct returns an empty stock entry priced at unitPrice.
func NewProduct(name string, unitPrice decimal.Decimal, editor string) *Product {
	now := time.Now().UTC()
	return &Product{
		Entity:       types.Entity{CreatedAt: now, UpdatedAt: now},
		ID:           id.NewStockProductID(),
		Name:         strings.TrimSpace(name),
		UnitPrice:    unitPrice,
		LastEditedBy: editor,
		LastEditedAt: now,
	}
}

// HasMovement reports whether the movement key was already applied.
func (p *Product) HasMovement(key string) bool {
	return slices.Contains(p.Movements, key)
}

// Movement is a signed delta against one stock entry. Applying the same Key
// twice has no further effect.
//
// An Undo movement takes back a previously applied one: it only applies while
// Key is recorded on the product, and removes the key so the original
// movement can be applied again later. Its deltas carry the opposite sign.
type Movement struct {
	Key       string
	ProductID id.StockProductID
	Quantity  decimal.Decimal
	Kilos     decimal.Decimal
	UnitPrice *decimal.Decimal
	EditedBy  string
	EditedAt  time.Time
	Undo      bool
}

// Fold applies m to p in place. It returns false, leaving p untouched, when
// m is a duplicate, or an undo of a movement that is not recorded.
func (p *Product) Fold(m *Movement) bool {
	recorded := p.HasMovement(m.Key)
	if recorded != m.Undo {
		return false
	}

	p.Quantity = p.Quantity.Add(m.Quantity)
	p.Kilos = p.Kilos.Add(m.Kilos)
	if m.UnitPrice != nil {
		p.UnitPrice = *m.UnitPrice
	}
	p.LastEditedBy = m.EditedBy
	p.LastEditedAt = m.EditedAt
	p.UpdatedAt = m.EditedAt

	if m.Undo {
		p.Movements = slices.DeleteFunc(p.Movements, func(k string) bool { return k == m.Key })
	} else {
		p.Movements = append(p.Movements, m.Key)
	}

	return true
}

// NormalizeName returns the index key for a product name: trimmed and
// lowercased. Matching is exact on this key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
