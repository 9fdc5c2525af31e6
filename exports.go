package tally

import (
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/types"
)

// Re-export common types so callers composing drafts need fewer imports.

// Entity is re-exported from types package.
type Entity = types.Entity

// Item is re-exported from invoice package.
type Item = invoice.Item

// ClientDraft is re-exported from invoice package.
type ClientDraft = invoice.ClientDraft

// SupplierDraft is re-exported from invoice package.
type SupplierDraft = invoice.SupplierDraft

// Invoice types.
const (
	Sale    = invoice.TypeSale
	Payment = invoice.TypePayment
)

// Re-export helpers
var (
	NewEntity      = types.NewEntity
	FormatCurrency = types.FormatCurrency
	FormatKilos    = types.FormatKilos
)
