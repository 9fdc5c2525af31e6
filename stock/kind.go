package stock

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a stock effect.
type Kind string

const (
	Sale           Kind = "sale"
	Purchase       Kind = "purchase"
	RevertSale     Kind = "revert_sale"
	RevertPurchase Kind = "revert_purchase"
)

var minusOne = decimal.NewFromInt(-1)

// Multiplier is -1 for kinds that remove stock and +1 for kinds that add it.
func (k Kind) Multiplier() decimal.Decimal {
	switch k {
	case Sale, RevertPurchase:
		return minusOne
	default:
		return decimal.NewFromInt(1)
	}
}

// Creates reports whether an unknown product name gets a new stock entry.
// Only stock-increasing kinds create; decreasing ones drop the item.
func (k Kind) Creates() bool {
	return k == Purchase || k == RevertSale
}

// Inverse returns the kind that undoes k.
func (k Kind) Inverse() Kind {
	switch k {
	case Sale:
		return RevertSale
	case RevertSale:
		return Sale
	case Purchase:
		return RevertPurchase
	case RevertPurchase:
		return Purchase
	}
	return k
}

// Validate rejects unknown kinds.
func (k Kind) Validate() error {
	switch k {
	case Sale, Purchase, RevertSale, RevertPurchase:
		return nil
	}
	return fmt.Errorf("stock: unknown effect kind %q", string(k))
}
