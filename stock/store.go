package stock

import (
	"context"

	"github.com/xraph/tally/id"
)

// Store persists stock entries.
//
// ApplyMovement folds a movement into its product atomically, following the
// rules of Product.Fold. It returns (false, nil) when Fold would refuse the
// movement and an error matching tally.ErrStockProductNotFound when the
// product is gone.
//
// ListStock returns products without their movement keys; only
// GetStockProduct loads them. PruneMovements forgets every key recorded for
// the invoice ref (keys starting with "<ref>/") across all products.
type Store interface {
	PutStockProduct(ctx context.Context, p *Product) error
	GetStockProduct(ctx context.Context, productID id.StockProductID) (*Product, error)
	ListStock(ctx context.Context) ([]*Product, error)
	DeleteStockProduct(ctx context.Context, productID id.StockProductID) error
	ApplyMovement(ctx context.Context, m *Movement) (bool, error)
	PruneMovements(ctx context.Context, ref string) error
}
