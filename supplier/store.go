package supplier

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	PutSupplier(ctx context.Context, s *Supplier) error
	GetSupplier(ctx context.Context, supplierID id.SupplierID) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]*Supplier, error)
	DeleteSupplier(ctx context.Context, supplierID id.SupplierID) error
}
