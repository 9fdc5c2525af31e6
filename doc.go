// Package tally keeps the books of a meat retailer: client balances, stock
// levels and the invoices that move both.
//
// Tally is designed as a library, not a service. Import it into your Go
// application, or run cmd/tally for an HTTP front end. It provides:
//
//   - Sale, payment and purchase invoices numbered from one shared counter
//   - Client balances kept in step with every close and delete
//   - Stock quantities and kilos reconciled by product name
//   - Idempotent stock movements, so a failed operation can be re-run
//   - A change feed and versioned snapshots for live views
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/tally"
//	    "github.com/xraph/tally/store/memory"
//	)
//
//	t := tally.New(memory.New())
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
//	c, _ := t.AddClient(ctx, "Carnicería Don Pepe")
//	inv, err := t.CloseClientInvoice(ctx, invoice.ClientDraft{
//	    ClientID: c.ID,
//	    Items: []invoice.Item{
//	        {Detail: "Vacío", Quantity: decimal.NewFromInt(2), Kilos: decimal.RequireFromString("3.5"), UnitPrice: decimal.NewFromInt(9000)},
//	    },
//	})
//
// # Operations
//
// Closing and deleting an invoice runs a fixed sequence of steps. A client
// sale reserves a number, persists the invoice, sets the client's balance to
// the invoice's final balance and removes the items from stock. Deleting it
// gives back the balance, returns the items and removes the record.
//
// The engine takes no locks. A failure stops the operation at the failing
// step and returns an *OperationError naming it, together with the steps
// already applied. Those stay applied unless the engine was built with
// WithCompensation(true). Stock steps are idempotent, so re-running a failed
// delete is safe; balance steps are not, and AuditBalances reports the drift.
//
// # Amounts
//
// Money, kilos and quantities are decimal.Decimal values. Inbound numbers go
// through package sanitize, which turns anything non-numeric or non-finite
// into zero, so no stored amount is ever NaN.
//
// # TypeID
//
// All records use TypeIDs:
//
//	cli_01h2xcejqtf2nbrexx3vqjhp41   // Client
//	stk_01h2xcejqtf2nbrexx3vqjhp41   // Stock product
//	cinv_01h455vb4pex5vsknk084sn02q  // Client invoice
package tally
