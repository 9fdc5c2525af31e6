// Package supplier defines the supplier aggregate. Suppliers carry no
// balance; purchases from them only move stock.
package supplier

import (
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Supplier struct {
	types.Entity
	ID   id.SupplierID `json:"id"`
	Name string        `json:"name"`
}

func New(name string) *Supplier {
	return &Supplier{
		Entity: types.NewEntity(),
		ID:     id.NewSupplierID(),
		Name:   name,
	}
}
